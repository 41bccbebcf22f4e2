package submission

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cultcreative/deck/internal/api"
	"github.com/cultcreative/deck/internal/apperr"
	"github.com/cultcreative/deck/internal/cache"
	"github.com/cultcreative/deck/internal/realtime"
	"github.com/cultcreative/deck/internal/upload"
)

type fakeAPI struct {
	mu       sync.Mutex
	list     []Submission
	params   api.Params
	form     api.Multipart
	body     string
	gate     chan struct{}
	uploaded chan struct{}
	onUpload func()
}

func (f *fakeAPI) Get(_ context.Context, op string, params api.Params, dest any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = params
	*(dest.(*[]Submission)) = append([]Submission(nil), f.list...)
	return nil
}

func (f *fakeAPI) Upload(ctx context.Context, op string, _ api.Params, form api.Multipart, _ any) error {
	if f.onUpload != nil {
		f.onUpload()
	}
	rc, err := form.Open()
	if err != nil {
		return err
	}
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	form.Progress(int64(len(body)), form.Size)

	f.mu.Lock()
	f.form = form
	f.body = string(body)
	f.mu.Unlock()
	f.uploaded <- struct{}{}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-f.gate:
		return nil
	}
}

func (f *fakeAPI) setStatus(id, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.list {
		if f.list[i].ID == id {
			f.list[i].Status = status
		}
	}
}

type harness struct {
	api     *fakeAPI
	store   *cache.Store
	uploads *upload.Controller
	svc     *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := &fakeAPI{
		list:     []Submission{{ID: "s1", CampaignID: "c1", UserID: "u1", Status: "DRAFT"}},
		gate:     make(chan struct{}),
		uploaded: make(chan struct{}, 1),
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	router := cache.NewRouter()
	store := cache.New(ctx, cache.Config{Fetcher: router.Fetch})
	uploads := upload.NewController(upload.Config{Constraints: upload.Constraints{Accept: []string{"video/*"}}})
	svc := NewService(fake, store, uploads, nil)
	router.Handle(KeyPrefix, svc.Fetch)
	return &harness{api: fake, store: store, uploads: uploads, svc: svc}
}

func clip(content string) upload.File {
	return upload.File{
		Name:        "draft.mp4",
		Size:        int64(len(content)),
		ContentType: "video/mp4",
		Open:        func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(content)), nil },
	}
}

func (h *harness) statusOf(id string) string {
	list, _ := cache.Value[[]Submission](h.store.Read(Key("u1", "c1")))
	for _, s := range list {
		if s.ID == id {
			return s.Status
		}
	}
	return ""
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestKey_RoundTrip(t *testing.T) {
	key := Key("u1", "c1")
	if key != "submissions:u1:c1" {
		t.Fatalf("Key = %q", key)
	}
	user, campaign, ok := ParseKey(key)
	if !ok || user != "u1" || campaign != "c1" {
		t.Fatalf("ParseKey = %q %q %v", user, campaign, ok)
	}
	for _, bad := range []string{"submissions", "submissions:u1", "board:u1:c1", "submissions::c1"} {
		if _, _, ok := ParseKey(bad); ok {
			t.Fatalf("ParseKey(%q) accepted", bad)
		}
	}
}

func TestService_ListUsesUserAndCampaign(t *testing.T) {
	h := newHarness(t)
	list, err := h.svc.List(context.Background(), "u1", "c1")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].Status != "DRAFT" {
		t.Fatalf("list = %+v", list)
	}
	if h.api.params["userId"] != "u1" || h.api.params["campaignId"] != "c1" {
		t.Fatalf("params = %v", h.api.params)
	}
}

func TestService_SubmitDraftLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.List(ctx, "u1", "c1"); err != nil {
		t.Fatalf("List: %v", err)
	}
	sending := make(chan string, 1)
	h.api.onUpload = func() { sending <- h.statusOf("s1") }

	task, err := h.svc.SubmitDraft(ctx, Draft{UserID: "u1", CampaignID: "c1", SubmissionID: "s1", Caption: " take two ", File: clip("frames")})
	if err != nil {
		t.Fatalf("SubmitDraft: %v", err)
	}
	if task.Status != upload.Uploading {
		t.Fatalf("task = %+v", task)
	}
	if got := h.statusOf("s1"); got != StatusInProgress {
		t.Fatalf("status = %q, want %s", got, StatusInProgress)
	}

	if got := <-sending; got != StatusInProgress {
		t.Fatalf("status while sending = %q, want %s", got, StatusInProgress)
	}
	<-h.api.uploaded
	h.api.mu.Lock()
	form, body := h.api.form, h.api.body
	h.api.mu.Unlock()
	if form.FileField != "draftVideo" || body != "frames" {
		t.Fatalf("form field = %q body = %q", form.FileField, body)
	}
	meta, _ := json.Marshal(form.Metadata)
	if string(meta) != `{"submissionId":"s1","campaignId":"c1","userId":"u1","caption":"take two"}` {
		t.Fatalf("metadata = %s", meta)
	}

	close(h.api.gate)
	waitFor(t, "processing", func() bool {
		task, _ := h.uploads.Get("s1")
		return task.Status == upload.Processing
	})

	h.svc.HandleProgress(realtime.Progress{SubmissionID: "s1", Progress: 45})
	if task, _ := h.uploads.Get("s1"); task.Percent != 45 {
		t.Fatalf("percent = %v, want 45", task.Percent)
	}

	h.api.setStatus("s1", "SUBMITTED")
	h.svc.HandleProgress(realtime.Progress{SubmissionID: "s1", Progress: 100})
	task, _ = h.uploads.Get("s1")
	if task.Status != upload.Done || task.Preview != "" {
		t.Fatalf("task after 100%% = %+v", task)
	}
	waitFor(t, "revalidated status", func() bool { return h.statusOf("s1") == "SUBMITTED" })
}

func TestService_HandleProgressIgnoresUnknownSubmission(t *testing.T) {
	h := newHarness(t)
	h.svc.HandleProgress(realtime.Progress{SubmissionID: "ghost", Progress: 80})
	if tasks := h.uploads.Tasks(); len(tasks) != 0 {
		t.Fatalf("tasks = %+v", tasks)
	}
}

func TestService_SubmitDraftValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	if _, err := h.svc.List(ctx, "u1", "c1"); err != nil {
		t.Fatalf("List: %v", err)
	}
	cases := []Draft{
		{CampaignID: "c1", SubmissionID: "s1", File: clip("x")},
		{UserID: "u1", SubmissionID: "s1", File: clip("x")},
		{UserID: "u1", CampaignID: "c1", File: clip("x")},
		{UserID: "u1", CampaignID: "c1", SubmissionID: "s1", File: upload.File{Name: "a.png", Size: 1, ContentType: "image/png", Open: clip("x").Open}},
	}
	for i, d := range cases {
		if _, err := h.svc.SubmitDraft(ctx, d); !apperr.IsValidation(err) {
			t.Fatalf("case %d: error = %v, want ValidationError", i, err)
		}
	}
	if got := h.statusOf("s1"); got != "DRAFT" {
		t.Fatalf("status after rejected drafts = %q, want DRAFT", got)
	}
}
