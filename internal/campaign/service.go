// Package campaign covers the campaign-facing parts of the client: the
// campaign counter, pitch video uploads, shortlist notices and the set of
// open campaign tabs.
package campaign

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cultcreative/deck/internal/api"
	"github.com/cultcreative/deck/internal/apperr"
	"github.com/cultcreative/deck/internal/cache"
	"github.com/cultcreative/deck/internal/notify"
	"github.com/cultcreative/deck/internal/realtime"
	"github.com/cultcreative/deck/internal/upload"
)

// CountKey is the cache key of the campaign counter.
const CountKey = "campaign:count"

// Count mirrors /api/campaign/count.
type Count struct {
	Count int `json:"count"`
}

// PitchSubject returns the upload subject of a campaign's pitch video.
func PitchSubject(campaignID string) string {
	return "pitch:" + campaignID
}

// API is the subset of *api.Client campaigns use.
type API interface {
	Get(ctx context.Context, op string, params api.Params, dest any) error
	Upload(ctx context.Context, op string, params api.Params, form api.Multipart, dest any) error
}

// Cache is the subset of *cache.Store campaigns use.
type Cache interface {
	Load(ctx context.Context, key string) (cache.Entry, error)
	Mutate(key string, patch cache.PatchFunc, revalidate bool) cache.Revision
}

// Uploads is the subset of *upload.Controller campaigns use.
type Uploads interface {
	Start(ctx context.Context, job upload.Job) (upload.Task, error)
	Progress(subject string, percent float64) bool
	Complete(subject string) bool
}

// Notices receives user-facing messages.
type Notices interface {
	Push(level notify.Level, message string) notify.Notice
}

// Service implements campaign operations and realtime handlers.
type Service struct {
	api     API
	cache   Cache
	uploads Uploads
	notices Notices
	log     *zap.Logger

	mu        sync.Mutex
	processed map[string]realtime.VideoUploadDone
}

// NewService builds a Service. notices and logger may be nil.
func NewService(client API, c Cache, uploads Uploads, notices Notices, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		api:       client,
		cache:     c,
		uploads:   uploads,
		notices:   notices,
		log:       logger.Named("campaign"),
		processed: make(map[string]realtime.VideoUploadDone),
	}
}

// FetchCount loads the campaign counter. It is registered as the cache
// fetcher for CountKey.
func (s *Service) FetchCount(ctx context.Context, _ string) (any, error) {
	var c Count
	if err := s.api.Get(ctx, api.OpCampaignCount, nil, &c); err != nil {
		return nil, err
	}
	return c, nil
}

// Count returns the campaign counter. On error the last known value is
// returned with the error.
func (s *Service) Count(ctx context.Context) (Count, error) {
	entry, err := s.cache.Load(ctx, CountKey)
	c, _ := cache.Value[Count](entry)
	return c, err
}

// Pitch is a pitch video upload request.
type Pitch struct {
	CampaignID string
	UserID     string
	Message    string
	File       upload.File
}

type pitchMetadata struct {
	CampaignID string `json:"campaignId"`
	UserID     string `json:"userId"`
	Message    string `json:"message,omitempty"`
}

// SubmitPitch starts uploading a pitch video for a campaign. A pitch already
// in flight for the same campaign is cancelled.
func (s *Service) SubmitPitch(ctx context.Context, p Pitch) (upload.Task, error) {
	if strings.TrimSpace(p.CampaignID) == "" {
		return upload.Task{}, &apperr.ValidationError{Field: "campaign", Reason: "campaign id is required"}
	}
	if strings.TrimSpace(p.UserID) == "" {
		return upload.Task{}, &apperr.ValidationError{Field: "user", Reason: "user id is required"}
	}
	meta := pitchMetadata{CampaignID: p.CampaignID, UserID: p.UserID, Message: strings.TrimSpace(p.Message)}
	campaignID := p.CampaignID
	return s.uploads.Start(ctx, upload.Job{
		SubjectID: PitchSubject(campaignID),
		File:      p.File,
		Send: func(ctx context.Context, f upload.File, progress func(sent, total int64)) error {
			return s.api.Upload(ctx, api.OpCampaignPitch, nil, api.Multipart{
				Metadata:    meta,
				FileField:   "pitchVideo",
				FileName:    f.Name,
				ContentType: f.ContentType,
				Open:        f.Open,
				Size:        f.Size,
				Progress:    progress,
			}, nil)
		},
		OnSettled: func(t upload.Task) {
			switch t.Status {
			case upload.Done:
				s.notify(notify.Success, "Pitch video for campaign "+campaignID+" is ready")
			case upload.Failed:
				s.notify(notify.Error, apperr.Message(&apperr.MutationError{Op: "pitch upload", Err: t.Err}))
			}
		},
	})
}

// ProcessedVideo returns the processed pitch video reported for campaignID.
func (s *Service) ProcessedVideo(campaignID string) (realtime.VideoUploadDone, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.processed[campaignID]
	return v, ok
}

// HandleCampaign revalidates the counter.
func (s *Service) HandleCampaign() {
	s.cache.Mutate(CountKey, nil, true)
}

// HandleVideoUpload applies pitch processing progress.
func (s *Service) HandleVideoUpload(ev realtime.VideoUpload) {
	s.uploads.Progress(PitchSubject(ev.CampaignID), ev.Progress)
}

// HandleVideoUploadDone completes the pitch upload for the campaign. Events
// for campaigns without an active pitch upload are ignored.
func (s *Service) HandleVideoUploadDone(ev realtime.VideoUploadDone) {
	if !s.uploads.Complete(PitchSubject(ev.CampaignID)) {
		s.log.Debug("ignoring video-upload-done", zap.String("campaign", ev.CampaignID), zap.Error(apperr.ErrStaleEvent))
		return
	}
	s.mu.Lock()
	s.processed[ev.CampaignID] = ev
	s.mu.Unlock()
}

// HandleShortlisted tells the user and refreshes the counter.
func (s *Service) HandleShortlisted(ev realtime.Shortlisted) {
	name := strings.TrimSpace(ev.CampaignName)
	if name == "" {
		name = ev.CampaignID
	}
	s.notify(notify.Success, "You were shortlisted for "+name)
	s.cache.Mutate(CountKey, nil, true)
}

func (s *Service) notify(level notify.Level, msg string) {
	if s.notices != nil {
		s.notices.Push(level, msg)
	}
}
