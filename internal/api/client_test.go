package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestParseBaseURL_DefaultsAndNormalizes(t *testing.T) {
	u, err := parseBaseURL("")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.String() != defaultAPIBase {
		t.Fatalf("url = %q, want %q", u.String(), defaultAPIBase)
	}

	u, err = parseBaseURL("example.com:1234/path?x=1#frag")
	if err != nil {
		t.Fatalf("parseBaseURL returned error: %v", err)
	}
	if u.Scheme != "http" || u.Path != "" || u.RawQuery != "" || u.Fragment != "" {
		t.Fatalf("url not normalized: %q", u.String())
	}
}

func TestEndpoints_Resolve(t *testing.T) {
	e := DefaultEndpoints()

	rel, err := e.Resolve(OpKanbanTaskUpdate, Params{"taskId": "t 1/2"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rel.String() != "/api/kanban/task/t%201%2F2" {
		t.Fatalf("path = %q", rel.String())
	}

	rel, err = e.Resolve(OpSubmissionList, Params{"userId": "u&1", "campaignId": "c1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rel.Path != "/api/submission" || rel.RawQuery != "userId=u%261&campaignId=c1" {
		t.Fatalf("url = %q", rel.String())
	}

	if _, err := e.Resolve(OpKanbanTaskUpdate, nil); err == nil || !strings.Contains(err.Error(), "taskId") {
		t.Fatalf("Resolve without params error = %v, want missing taskId", err)
	}
	if _, err := e.Resolve("nope", nil); err == nil {
		t.Fatal("Resolve(nope) returned nil error")
	}
}

func TestEndpoints_MergeIgnoresBlankOverrides(t *testing.T) {
	e := DefaultEndpoints().Merge(map[string]string{
		OpKanbanBoard:   " /v2/board ",
		OpCampaignCount: "  ",
	})
	if e[OpKanbanBoard] != "/v2/board" {
		t.Fatalf("board endpoint = %q", e[OpKanbanBoard])
	}
	if e[OpCampaignCount] != DefaultEndpoints()[OpCampaignCount] {
		t.Fatalf("campaign count endpoint = %q, want default", e[OpCampaignCount])
	}
}

func TestClient_SendsJSONWithAuth(t *testing.T) {
	t.Parallel()

	var (
		gotMethod, gotAuth, gotAgent, gotType string
		gotBody                               map[string]any
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		gotType = r.Header.Get("Content-Type")
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
		}
		switch r.URL.Path {
		case "/api/kanban/task/t1":
			w.WriteHeader(http.StatusNoContent)
		case "/api/campaign/count":
			_ = json.NewEncoder(w).Encode(map[string]int{"count": 3})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL, WithToken(" tok "))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)

	if err := c.Send(ctx, http.MethodPatch, OpKanbanTaskUpdate, Params{"taskId": "t1"}, map[string]string{"name": "x"}, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotMethod != http.MethodPatch || gotAuth != "Bearer tok" || gotType != "application/json" {
		t.Fatalf("request = %s auth=%q type=%q", gotMethod, gotAuth, gotType)
	}
	if gotBody["name"] != "x" {
		t.Fatalf("body = %v", gotBody)
	}
	if !strings.HasPrefix(gotAgent, "deck/") {
		t.Fatalf("User-Agent = %q, want deck/*", gotAgent)
	}

	var count struct {
		Count int `json:"count"`
	}
	if err := c.Get(ctx, OpCampaignCount, nil, &count); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if count.Count != 3 {
		t.Fatalf("count = %d, want 3", count.Count)
	}
}

func TestClient_HTTPErrorAndDecodeError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/kanban/board":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte("{not-json"))
		case "/api/campaign/count":
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"message":"campaign closed"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	var dest map[string]any
	err = c.Get(context.Background(), OpKanbanBoard, nil, &dest)
	if err == nil || !strings.Contains(err.Error(), "decode response") {
		t.Fatalf("Get(board) error = %v, want decode response error", err)
	}

	err = c.Get(context.Background(), OpCampaignCount, nil, &dest)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("Get(count) error = %v, want StatusError", err)
	}
	if statusErr.StatusCode != http.StatusUnprocessableEntity || statusErr.Message != "campaign closed" {
		t.Fatalf("StatusError = %+v", statusErr)
	}
	if !strings.Contains(err.Error(), "returned status 422") {
		t.Fatalf("error text = %q", err.Error())
	}
}

func TestClient_UploadStreamsMultipart(t *testing.T) {
	t.Parallel()

	type received struct {
		data     string
		field    string
		filename string
		content  string
	}
	got := make(chan received, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("draftVideo")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		body, _ := io.ReadAll(file)
		got <- received{
			data:     r.FormValue("data"),
			field:    "draftVideo",
			filename: header.Filename,
			content:  string(body),
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "processing"})
	}))
	t.Cleanup(server.Close)

	c, err := NewClient(server.URL)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	var (
		mu       sync.Mutex
		lastSent int64
	)
	var resp struct {
		Status string `json:"status"`
	}
	payload := strings.Repeat("v", 4096)
	err = c.Upload(context.Background(), OpSubmissionDraft, nil, Multipart{
		Metadata:    map[string]string{"submissionId": "s1"},
		FileField:   "draftVideo",
		FileName:    "cut.mp4",
		ContentType: "video/mp4",
		File:        strings.NewReader(payload),
		Size:        int64(len(payload)),
		Progress: func(sent, total int64) {
			mu.Lock()
			lastSent = sent
			mu.Unlock()
		},
	}, &resp)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if resp.Status != "processing" {
		t.Fatalf("response = %+v", resp)
	}

	r := <-got
	if r.data != `{"submissionId":"s1"}` || r.filename != "cut.mp4" || r.content != payload {
		t.Fatalf("server received %+v", r)
	}
	mu.Lock()
	defer mu.Unlock()
	if lastSent != int64(len(payload)) {
		t.Fatalf("last progress = %d, want %d", lastSent, len(payload))
	}
}

func TestClient_UploadRequiresFile(t *testing.T) {
	c, err := NewClient("127.0.0.1:1")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Upload(context.Background(), OpSubmissionDraft, nil, Multipart{FileField: "draftVideo"}, nil); err == nil {
		t.Fatal("Upload without file returned nil error")
	}
}
