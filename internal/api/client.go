package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	defaultAPIBase   = "http://127.0.0.1:8080"
	defaultUserAgent = "deck/0.1"
	requestTimeout   = 10 * time.Second
	maxErrorBody     = 4 << 10
)

// Client talks to the platform REST API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
	token     string
	endpoints Endpoints
	timeout   time.Duration
	log       *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithToken sends token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithEndpoints overrides entries of the default endpoint table.
func WithEndpoints(overrides map[string]string) Option {
	return func(c *Client) { c.endpoints = c.endpoints.Merge(overrides) }
}

// WithTimeout bounds JSON requests. Uploads are bounded by their context.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l.Named("api")
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// StatusError is returned for responses with status >= 400.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api %s %s returned status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("api %s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// NewClient builds a Client for the API rooted at apiBase.
func NewClient(apiBase string, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(apiBase)
	if err != nil {
		return nil, err
	}
	c := &Client{
		baseURL:   base,
		http:      &http.Client{},
		userAgent: defaultUserAgent,
		endpoints: DefaultEndpoints(),
		timeout:   requestTimeout,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get decodes the JSON response of a GET on op into dest.
func (c *Client) Get(ctx context.Context, op string, params Params, dest any) error {
	return c.Send(ctx, http.MethodGet, op, params, nil, dest)
}

// Send issues a JSON request. body and dest may be nil.
func (c *Client) Send(ctx context.Context, method, op string, params Params, body, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	rel, err := c.endpoints.Resolve(op, params)
	if err != nil {
		return err
	}
	var (
		reader      io.Reader
		contentType string
	)
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.do(ctx, method, rel, reader, contentType, dest)
}

// Multipart describes a file upload: JSON metadata under the "data" field
// plus one binary part.
type Multipart struct {
	Metadata    any
	FileField   string // e.g. "draftVideo", "pitchVideo"
	FileName    string
	ContentType string
	File        io.Reader
	// Open is used when File is nil; the reader is closed after the upload.
	Open func() (io.ReadCloser, error)
	Size int64
	// Progress is called as file bytes are handed to the transport.
	Progress func(sent, total int64)
}

// Upload POSTs form as multipart/form-data. The body is streamed; cancel
// ctx to abort the transfer.
func (c *Client) Upload(ctx context.Context, op string, params Params, form Multipart, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if (form.File == nil && form.Open == nil) || strings.TrimSpace(form.FileField) == "" {
		return fmt.Errorf("upload requires a file and field name")
	}
	rel, err := c.endpoints.Resolve(op, params)
	if err != nil {
		return err
	}
	if form.File == nil {
		rc, err := form.Open()
		if err != nil {
			return fmt.Errorf("open %s: %w", form.FileName, err)
		}
		defer func() { _ = rc.Close() }()
		form.File = rc
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		err := writeMultipart(mw, form)
		if err == nil {
			err = mw.Close()
		}
		_ = pw.CloseWithError(err)
	}()

	return c.do(ctx, http.MethodPost, rel, pr, mw.FormDataContentType(), dest)
}

func writeMultipart(mw *multipart.Writer, form Multipart) error {
	if form.Metadata != nil {
		payload, err := json.Marshal(form.Metadata)
		if err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
		if err := mw.WriteField("data", string(payload)); err != nil {
			return err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, form.FileField, form.FileName))
	contentType := form.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return err
	}

	src := form.File
	if form.Progress != nil {
		src = &progressReader{r: src, total: form.Size, report: form.Progress}
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("stream file: %w", err)
	}
	return nil
}

type progressReader struct {
	r      io.Reader
	sent   int64
	total  int64
	report func(sent, total int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.report(p.sent, p.total)
	}
	return n, err
}

func (c *Client) do(ctx context.Context, method string, rel *url.URL, body io.Reader, contentType string, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	c.log.Debug("request",
		zap.String("method", method),
		zap.String("path", rel.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(started)))

	if resp.StatusCode >= 400 {
		return &StatusError{
			Method:     method,
			Path:       rel.String(),
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.Body),
		}
	}
	if dest == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return strings.TrimSpace(string(raw))
}

func parseBaseURL(apiBase string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBase)
	if trimmed == "" {
		trimmed = defaultAPIBase
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_base %q: %w", apiBase, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
