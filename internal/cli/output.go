package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/cultcreative/deck/internal/notify"
	"github.com/cultcreative/deck/internal/upload"
)

func okMark() string {
	return color.New(color.FgGreen).Sprint("✓")
}

func failMark() string {
	return color.New(color.FgRed).Sprint("✗")
}

func statusColor(s upload.Status) *color.Color {
	switch s {
	case upload.Uploading:
		return color.New(color.FgBlue)
	case upload.Processing:
		return color.New(color.FgYellow)
	case upload.Done:
		return color.New(color.FgGreen)
	case upload.Failed:
		return color.New(color.FgRed)
	default:
		return color.New(color.Faint)
	}
}

// taskLine renders one upload state, e.g. "s1  uploading   45%  4.5 MB/10.0 MB".
func taskLine(t upload.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s", t.SubjectID, statusColor(t.Status).Sprintf("%-10s", t.Status))
	if t.Status.Active() {
		fmt.Fprintf(&b, " %3.0f%%", t.Percent)
	}
	if t.Status == upload.Uploading && t.BytesTotal > 0 {
		fmt.Fprintf(&b, "  %s/%s", byteSize(t.BytesSent), byteSize(t.BytesTotal))
	}
	if t.Err != nil && !errors.Is(t.Err, upload.ErrCancelled) {
		fmt.Fprintf(&b, "  %s", t.Err)
	}
	return b.String()
}

// uploadResult maps a settled task to the command's error.
func uploadResult(t upload.Task) error {
	switch t.Status {
	case upload.Failed:
		if t.Err != nil {
			return fmt.Errorf("upload failed: %w", t.Err)
		}
		return errors.New("upload failed")
	case upload.Cancelled:
		return upload.ErrCancelled
	default:
		return nil
	}
}

func noticeLine(n notify.Notice) string {
	var c *color.Color
	switch n.Level {
	case notify.Success:
		c = color.New(color.FgGreen)
	case notify.Warning:
		c = color.New(color.FgYellow)
	case notify.Error:
		c = color.New(color.FgRed)
	default:
		c = color.New(color.FgCyan)
	}
	return c.Sprintf("[%s]", n.Level) + " " + n.Message
}

func submissionStatus(status string) string {
	switch strings.ToUpper(status) {
	case "APPROVED", "SUBMITTED":
		return color.New(color.FgGreen).Sprint(status)
	case "IN_PROGRESS", "PENDING_REVIEW":
		return color.New(color.FgYellow).Sprint(status)
	case "REJECTED", "CHANGES_REQUIRED":
		return color.New(color.FgRed).Sprint(status)
	default:
		return status
	}
}

func stamp(t time.Time) string {
	return color.New(color.Faint).Sprint(t.Format("15:04:05"))
}

func byteSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGT"[exp])
}
