package upload

import (
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/cultcreative/deck/internal/apperr"
)

// File is a local file selected for upload.
type File struct {
	Name        string
	Size        int64
	ContentType string
	Open        func() (io.ReadCloser, error)
}

// FileFromPath describes the file at path. The content type is derived from
// the extension.
func FileFromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return File{}, &apperr.ValidationError{Field: "file", Reason: path + " is a directory"}
	}
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return File{
		Name:        filepath.Base(path),
		Size:        info.Size(),
		ContentType: contentType,
		Open:        func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// Constraints limit what may be uploaded.
type Constraints struct {
	// Accept lists MIME patterns ("video/*", "video/mp4") or extensions
	// (".mov"). Empty accepts anything.
	Accept  []string
	MaxSize int64 // bytes; zero means unlimited
}

// Validate checks f before any request is made.
func (c Constraints) Validate(f File) error {
	if f.Open == nil {
		return &apperr.ValidationError{Field: "file", Reason: "no file selected"}
	}
	if f.Size <= 0 {
		return &apperr.ValidationError{Field: "file", Reason: "file is empty"}
	}
	if c.MaxSize > 0 && f.Size > c.MaxSize {
		return &apperr.ValidationError{
			Field:  "file",
			Reason: fmt.Sprintf("%s exceeds the %s limit", humanSize(f.Size), humanSize(c.MaxSize)),
		}
	}
	if len(c.Accept) > 0 && !c.accepts(f) {
		return &apperr.ValidationError{
			Field:  "file",
			Reason: fmt.Sprintf("type %s is not accepted (want %s)", describeType(f), strings.Join(c.Accept, ", ")),
		}
	}
	return nil
}

func (c Constraints) accepts(f File) bool {
	ext := strings.ToLower(filepath.Ext(f.Name))
	contentType := strings.ToLower(f.ContentType)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	for _, raw := range c.Accept {
		pattern := strings.ToLower(strings.TrimSpace(raw))
		switch {
		case pattern == "":
		case strings.HasPrefix(pattern, "."):
			if ext == pattern {
				return true
			}
		case strings.HasSuffix(pattern, "/*"):
			if strings.HasPrefix(contentType, strings.TrimSuffix(pattern, "*")) {
				return true
			}
		case contentType == pattern:
			return true
		}
	}
	return false
}

func describeType(f File) string {
	if f.ContentType != "" {
		return f.ContentType
	}
	if ext := filepath.Ext(f.Name); ext != "" {
		return ext
	}
	return "unknown"
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
