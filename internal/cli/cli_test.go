package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/cultcreative/deck/internal/kanban"
	"github.com/cultcreative/deck/internal/upload"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func sampleBoard() kanban.Board {
	return kanban.Board{
		Columns: []kanban.Column{
			{ID: "c1", Name: "Todo", TaskIDs: []string{"t1", "t2"}},
			{ID: "c2", Name: "Done"},
		},
		Tasks: map[string]kanban.Task{
			"t1": {ID: "t1", Name: "Script", Priority: "high", Assignee: "ana", DueDate: "2026-03-04"},
			"t2": {ID: "t2", Name: "Shoot", Labels: []string{"video", "b-roll"}},
		},
	}
}

func TestPrintBoard(t *testing.T) {
	var buf bytes.Buffer
	printBoard(&buf, sampleBoard())
	got := buf.String()
	for _, want := range []string{
		"Todo (c1, 2)",
		"  t1 Script  high  @ana  due Mar 4",
		"  t2 Shoot  #video #b-roll",
		"Done (c2, 0)",
		"2 columns, 2 tasks",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	buf.Reset()
	printBoard(&buf, kanban.Board{})
	if strings.TrimSpace(buf.String()) != "(empty board)" {
		t.Fatalf("empty board output = %q", buf.String())
	}
}

func TestTaskLine(t *testing.T) {
	tests := []struct {
		name string
		task upload.Task
		want string
	}{
		{
			name: "uploading with bytes",
			task: upload.Task{SubjectID: "s1", Status: upload.Uploading, BytesSent: 2048, BytesTotal: 4096},
			want: "s1  uploading    0%  2.0 KB/4.0 KB",
		},
		{
			name: "processing",
			task: upload.Task{SubjectID: "s1", Status: upload.Processing, Percent: 45},
			want: "s1  processing  45%",
		},
		{
			name: "failed shows error",
			task: upload.Task{SubjectID: "s1", Status: upload.Failed, Err: errors.New("413")},
			want: "s1  failed      413",
		},
		{
			name: "cancelled hides sentinel",
			task: upload.Task{SubjectID: "s1", Status: upload.Cancelled, Err: upload.ErrCancelled},
			want: "s1  cancelled ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := taskLine(tt.task); got != tt.want {
				t.Errorf("taskLine = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUploadResult(t *testing.T) {
	if err := uploadResult(upload.Task{Status: upload.Done}); err != nil {
		t.Fatalf("done: %v", err)
	}
	if err := uploadResult(upload.Task{Status: upload.Cancelled}); !errors.Is(err, upload.ErrCancelled) {
		t.Fatalf("cancelled: %v", err)
	}
	cause := errors.New("boom")
	if err := uploadResult(upload.Task{Status: upload.Failed, Err: cause}); !errors.Is(err, cause) {
		t.Fatalf("failed: %v", err)
	}
}

func TestByteSize(t *testing.T) {
	tests := map[int64]string{
		0:         "0 B",
		1023:      "1023 B",
		1024:      "1.0 KB",
		5 << 20:   "5.0 MB",
		3 << 30:   "3.0 GB",
		1536:      "1.5 KB",
	}
	for in, want := range tests {
		if got := byteSize(in); got != want {
			t.Errorf("byteSize(%d) = %q, want %q", in, got, want)
		}
	}
}

func videoFile() upload.File {
	return upload.File{
		Name:        "draft.mp4",
		Size:        4,
		ContentType: "video/mp4",
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader("data")), nil },
	}
}

func TestFollowUpload_UntilDone(t *testing.T) {
	c := upload.NewController(upload.Config{})
	if _, err := c.Start(context.Background(), upload.Job{
		SubjectID: "s1",
		File:      videoFile(),
		Send:      func(context.Context, upload.File, func(int64, int64)) error { return nil },
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	go func() {
		for {
			if task, ok := c.Get("s1"); ok && task.Status == upload.Processing {
				break
			}
			time.Sleep(time.Millisecond)
		}
		c.Progress("s1", 50)
		c.Progress("s1", 100)
	}()

	var out bytes.Buffer
	if err := followUpload(context.Background(), c, &out, "s1"); err != nil {
		t.Fatalf("followUpload: %v", err)
	}
	if !strings.Contains(out.String(), "✓ s1 uploaded") {
		t.Fatalf("output:\n%s", out.String())
	}
}

type recordingCanceller struct {
	mu       sync.Mutex
	subjects []string
}

func (r *recordingCanceller) CancelProcessing(subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	return nil
}

func TestFollowUpload_InterruptCancels(t *testing.T) {
	canceller := &recordingCanceller{}
	c := upload.NewController(upload.Config{Canceller: canceller})
	block := make(chan struct{})
	defer close(block)
	if _, err := c.Start(context.Background(), upload.Job{
		SubjectID: "s1",
		File:      videoFile(),
		Send: func(ctx context.Context, _ upload.File, _ func(int64, int64)) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-block:
				return nil
			}
		},
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := followUpload(ctx, c, io.Discard, "s1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("followUpload err = %v", err)
	}
	if task, _ := c.Get("s1"); task.Status != upload.Cancelled {
		t.Fatalf("status = %v, want cancelled", task.Status)
	}
	canceller.mu.Lock()
	defer canceller.mu.Unlock()
	if len(canceller.subjects) != 1 || canceller.subjects[0] != "s1" {
		t.Fatalf("cancel-processing sent for %v", canceller.subjects)
	}
}

type boardServer struct {
	mu      sync.Mutex
	board   kanban.Board
	created []map[string]any
}

func newBoardServer(t *testing.T) (*boardServer, string) {
	t.Helper()
	bs := &boardServer{board: sampleBoard()}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/kanban/board", func(w http.ResponseWriter, _ *http.Request) {
		bs.mu.Lock()
		defer bs.mu.Unlock()
		_ = json.NewEncoder(w).Encode(bs.board)
	})
	mux.HandleFunc("/api/kanban/task", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		bs.mu.Lock()
		bs.created = append(bs.created, body)
		bs.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := "api_base = \"" + srv.URL + "\"\nstate_path = \"" + filepath.Join(dir, "state.db") + "\"\n"
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(cfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return bs, path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestBoardCommand(t *testing.T) {
	_, cfgPath := newBoardServer(t)
	out, err := execute(t, "board", "--config", cfgPath)
	if err != nil {
		t.Fatalf("board: %v", err)
	}
	if !strings.Contains(out, "Todo (c1, 2)") || !strings.Contains(out, "2 columns, 2 tasks") {
		t.Fatalf("output:\n%s", out)
	}
}

func TestBoardTaskAddCommand(t *testing.T) {
	bs, cfgPath := newBoardServer(t)
	out, err := execute(t, "board", "task", "add", "c2", "Edit cut", "--priority", "low", "--config", cfgPath)
	if err != nil {
		t.Fatalf("task add: %v", err)
	}
	if !strings.Contains(out, "Created task") || !strings.Contains(out, "Edit cut") {
		t.Fatalf("output:\n%s", out)
	}
	bs.mu.Lock()
	defer bs.mu.Unlock()
	if len(bs.created) != 1 {
		t.Fatalf("server saw %d creates", len(bs.created))
	}
	body := bs.created[0]
	if body["columnId"] != "c2" || body["name"] != "Edit cut" || body["priority"] != "low" {
		t.Fatalf("create body = %v", body)
	}
}

func TestSubmissionsRequiresUser(t *testing.T) {
	t.Setenv("DECK_USER_ID", "")
	_, cfgPath := newBoardServer(t)
	_, err := execute(t, "submissions", "--campaign", "c1", "--config", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "no user id") {
		t.Fatalf("err = %v", err)
	}
}

func TestRootCommandTree(t *testing.T) {
	root := NewRootCmd()
	for _, path := range [][]string{
		{"board"},
		{"board", "column", "add"},
		{"board", "task", "move"},
		{"upload", "draft"},
		{"upload", "pitch"},
		{"submissions"},
		{"watch"},
	} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("command %v not found: %v", path, err)
		}
	}
}
