// Package submission lists a creator's campaign submissions and uploads
// draft videos for them.
package submission

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/cultcreative/deck/internal/api"
	"github.com/cultcreative/deck/internal/apperr"
	"github.com/cultcreative/deck/internal/cache"
	"github.com/cultcreative/deck/internal/realtime"
	"github.com/cultcreative/deck/internal/upload"
)

// KeyPrefix is the cache key prefix of submission lists.
const KeyPrefix = "submissions"

// StatusInProgress is the status a draft holds while it is uploaded and
// processed.
const StatusInProgress = "IN_PROGRESS"

// Submission mirrors one entry of /api/submission.
type Submission struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaignId"`
	UserID     string `json:"userId"`
	Status     string `json:"status"`
	DraftVideo string `json:"draftVideo,omitempty"`
	Feedback   string `json:"feedback,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// Key returns the cache key of a user's submissions for a campaign.
func Key(userID, campaignID string) string {
	return cache.Key(KeyPrefix, userID, campaignID)
}

// ParseKey splits a key built by Key.
func ParseKey(key string) (userID, campaignID string, ok bool) {
	parts := strings.Split(key, ":")
	if len(parts) != 3 || parts[0] != KeyPrefix || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// API is the subset of *api.Client submissions use.
type API interface {
	Get(ctx context.Context, op string, params api.Params, dest any) error
	Upload(ctx context.Context, op string, params api.Params, form api.Multipart, dest any) error
}

// Cache is the subset of *cache.Store submissions use.
type Cache interface {
	Load(ctx context.Context, key string) (cache.Entry, error)
	Mutate(key string, patch cache.PatchFunc, revalidate bool) cache.Revision
	Rollback(rev cache.Revision, revalidate bool) bool
}

// Uploads is the subset of *upload.Controller submissions use.
type Uploads interface {
	Start(ctx context.Context, job upload.Job) (upload.Task, error)
	Progress(subject string, percent float64) bool
}

// Service reads submissions and uploads drafts.
type Service struct {
	api     API
	cache   Cache
	uploads Uploads
	log     *zap.Logger
}

// NewService builds a Service. logger may be nil.
func NewService(client API, c Cache, uploads Uploads, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{api: client, cache: c, uploads: uploads, log: logger.Named("submission")}
}

// Fetch loads the submission list for a key built by Key.
func (s *Service) Fetch(ctx context.Context, key string) (any, error) {
	userID, campaignID, ok := ParseKey(key)
	if !ok {
		return nil, fmt.Errorf("malformed submissions key %q", key)
	}
	var list []Submission
	if err := s.api.Get(ctx, api.OpSubmissionList, api.Params{"userId": userID, "campaignId": campaignID}, &list); err != nil {
		return nil, err
	}
	if list == nil {
		list = []Submission{}
	}
	return list, nil
}

// List returns a user's submissions for a campaign. On error the last known
// list is returned with the error.
func (s *Service) List(ctx context.Context, userID, campaignID string) ([]Submission, error) {
	entry, err := s.cache.Load(ctx, Key(userID, campaignID))
	list, _ := cache.Value[[]Submission](entry)
	return list, err
}

// Draft is a draft video upload request.
type Draft struct {
	UserID       string
	CampaignID   string
	SubmissionID string
	Caption      string
	File         upload.File
}

type draftMetadata struct {
	SubmissionID string `json:"submissionId"`
	CampaignID   string `json:"campaignId"`
	UserID       string `json:"userId"`
	Caption      string `json:"caption,omitempty"`
}

// SubmitDraft starts uploading a draft video. The submission shows
// IN_PROGRESS immediately and the list is refetched once the upload
// settles.
func (s *Service) SubmitDraft(ctx context.Context, d Draft) (upload.Task, error) {
	switch {
	case strings.TrimSpace(d.UserID) == "":
		return upload.Task{}, &apperr.ValidationError{Field: "user", Reason: "user id is required"}
	case strings.TrimSpace(d.CampaignID) == "":
		return upload.Task{}, &apperr.ValidationError{Field: "campaign", Reason: "campaign id is required"}
	case strings.TrimSpace(d.SubmissionID) == "":
		return upload.Task{}, &apperr.ValidationError{Field: "submission", Reason: "submission id is required"}
	}

	key := Key(d.UserID, d.CampaignID)
	meta := draftMetadata{
		SubmissionID: d.SubmissionID,
		CampaignID:   d.CampaignID,
		UserID:       d.UserID,
		Caption:      strings.TrimSpace(d.Caption),
	}
	// The list shows IN_PROGRESS before the first byte is sent.
	rev := s.cache.Mutate(key, setStatus(d.SubmissionID, StatusInProgress), false)
	task, err := s.uploads.Start(ctx, upload.Job{
		SubjectID: d.SubmissionID,
		File:      d.File,
		Send: func(ctx context.Context, f upload.File, progress func(sent, total int64)) error {
			return s.api.Upload(ctx, api.OpSubmissionDraft, nil, api.Multipart{
				Metadata:    meta,
				FileField:   "draftVideo",
				FileName:    f.Name,
				ContentType: f.ContentType,
				Open:        f.Open,
				Size:        f.Size,
				Progress:    progress,
			}, nil)
		},
		OnSettled: func(t upload.Task) {
			s.log.Debug("draft settled", zap.String("submission", t.SubjectID), zap.Stringer("status", t.Status))
			s.cache.Mutate(key, nil, true)
		},
	})
	if err != nil {
		s.cache.Rollback(rev, false)
		return upload.Task{}, err
	}
	return task, nil
}

// HandleProgress applies a realtime progress event. Events for submissions
// without an active upload are ignored.
func (s *Service) HandleProgress(ev realtime.Progress) {
	s.uploads.Progress(ev.SubmissionID, ev.Progress)
}

func setStatus(id, status string) cache.PatchFunc {
	return func(cur any) any {
		list, ok := cur.([]Submission)
		if !ok {
			return cur
		}
		out := make([]Submission, len(list))
		copy(out, list)
		for i := range out {
			if out[i].ID == id {
				out[i].Status = status
			}
		}
		return out
	}
}
