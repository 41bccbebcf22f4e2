package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/cultcreative/deck/internal/api"
	"github.com/cultcreative/deck/internal/cache"
	"github.com/cultcreative/deck/internal/campaign"
	"github.com/cultcreative/deck/internal/config"
	"github.com/cultcreative/deck/internal/inbox"
	"github.com/cultcreative/deck/internal/kanban"
	"github.com/cultcreative/deck/internal/localstate"
	"github.com/cultcreative/deck/internal/mutation"
	"github.com/cultcreative/deck/internal/notify"
	"github.com/cultcreative/deck/internal/realtime"
	"github.com/cultcreative/deck/internal/submission"
	"github.com/cultcreative/deck/internal/upload"
)

// Runtime holds every long-lived component of a deck process.
type Runtime struct {
	Config config.Config
	Log    *zap.Logger

	API         *api.Client
	Cache       *cache.Store
	Dispatcher  *mutation.Dispatcher
	Notices     *notify.Center
	State       *localstate.Store
	Uploads     *upload.Controller
	Kanban      *kanban.Service
	Submissions *submission.Service
	Campaigns   *campaign.Service
	Tabs        *campaign.Tabs
	Inbox       *inbox.Counter
	Session     *realtime.Session

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New wires a Runtime from cfg. Background work runs under ctx until Close.
// logger may be nil.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(ctx)
	r := &Runtime{Config: cfg, Log: logger, ctx: ctx, cancel: cancel}

	client, err := api.NewClient(cfg.APIBase,
		api.WithToken(cfg.Token),
		api.WithEndpoints(cfg.Endpoints),
		api.WithTimeout(cfg.RequestTimeout),
		api.WithLogger(logger),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("init api client: %w", err)
	}
	r.API = client

	r.State = openState(cfg.StatePath, logger)
	r.Notices = notify.NewCenter(0)

	router := cache.NewRouter()
	opts := cacheOptions(cfg.Cache)
	r.Cache = cache.New(ctx, cache.Config{
		Fetcher:  router.Fetch,
		Defaults: &opts,
		Timeout:  cfg.RequestTimeout,
		Logger:   logger,
	})
	// The counter is pushed by the socket; focus alone should not refetch it.
	countOpts := opts
	countOpts.RevalidateOnFocus = false
	r.Cache.SetOptions(campaign.CountKey, countOpts)

	r.Dispatcher = mutation.NewDispatcher(r.Cache, r.Notices, cfg.RequestTimeout, logger)

	r.Session = realtime.NewSession(r.newBridge, r.wire, r.resetUser, logger)

	previews := upload.NewPreviews(r.State, logger)
	if n := previews.Reclaim(); n > 0 {
		logger.Info("reclaimed upload previews", zap.Int("count", n))
	}
	r.Uploads = upload.NewController(upload.Config{
		Constraints: upload.Constraints{Accept: cfg.Upload.Accept, MaxSize: cfg.Upload.MaxSize},
		Canceller:   r.Session,
		Previews:    previews,
		Logger:      logger,
	})

	r.Kanban = kanban.NewService(client, r.Cache, r.Dispatcher)
	r.Submissions = submission.NewService(client, r.Cache, r.Uploads, logger)
	r.Campaigns = campaign.NewService(client, r.Cache, r.Uploads, r.Notices, logger)
	r.Tabs = campaign.LoadTabs(r.State)
	r.Inbox = inbox.NewCounter()

	router.Handle(kanban.Key, r.Kanban.Fetch)
	router.Handle(submission.KeyPrefix, r.Submissions.Fetch)
	router.Handle(campaign.CountKey, r.Campaigns.FetchCount)

	return r, nil
}

// Start signs in the configured user, if any, and launches the refresh
// poller. It returns immediately.
func (r *Runtime) Start() error {
	if r.Config.UserID != "" {
		if _, err := r.Session.Login(r.ctx, r.Config.UserID); err != nil {
			return fmt.Errorf("start session: %w", err)
		}
	}
	StartPoller(r.ctx, r.Cache, defaultPollInterval, r.Log)
	return nil
}

// Login switches the realtime session to userID. Switching from another
// user aborts that user's uploads and clears their cached data first.
func (r *Runtime) Login(userID string) error {
	if b := r.Session.Bridge(); b != nil && b.UserID() != strings.TrimSpace(userID) {
		r.releaseUploads()
	}
	_, err := r.Session.Login(r.ctx, userID)
	return err
}

// Logout aborts uploads, disconnects the socket and clears every
// user-scoped value.
func (r *Runtime) Logout() {
	r.releaseUploads()
	r.Session.Logout()
}

// releaseUploads cancels active uploads while the socket can still deliver
// cancel-processing, then forgets every task.
func (r *Runtime) releaseUploads() {
	for _, t := range r.Uploads.Tasks() {
		if t.Status.Active() {
			r.Uploads.Cancel(t.SubjectID)
		}
		r.Uploads.Release(t.SubjectID)
	}
}

// UserID returns the signed-in user, or the configured one when the socket
// is not up yet.
func (r *Runtime) UserID() string {
	if b := r.Session.Bridge(); b != nil {
		return b.UserID()
	}
	return r.Config.UserID
}

// Close stops background work and releases local state.
func (r *Runtime) Close() error {
	var err error
	r.closeOnce.Do(func() {
		r.Logout()
		r.cancel()
		err = r.State.Close()
		_ = r.Log.Sync()
	})
	return err
}

func (r *Runtime) newBridge(userID string) *realtime.Bridge {
	return realtime.NewBridge(realtime.Config{
		URL:    r.Config.SocketURL,
		UserID: userID,
		Token:  r.Config.Token,
		Logger: r.Log,
	})
}

// wire binds the socket events to the domain services.
func (r *Runtime) wire(b *realtime.Bridge) {
	realtime.Listen(b, realtime.EventProgress, r.Submissions.HandleProgress)
	realtime.Listen(b, realtime.EventVideoUpload, r.Campaigns.HandleVideoUpload)
	realtime.Listen(b, realtime.EventVideoUploadDone, r.Campaigns.HandleVideoUploadDone)
	realtime.Listen(b, realtime.EventMessageCount, r.Inbox.HandleMessageCount)
	realtime.Listen(b, realtime.EventShortlisted, r.Campaigns.HandleShortlisted)
	b.On(realtime.EventCampaign, func(json.RawMessage) { r.Campaigns.HandleCampaign() })
	b.OnReconnect(func() {
		n := r.Cache.Reconnect()
		r.Log.Debug("socket reconnected", zap.Int("revalidating", n))
	})
}

func (r *Runtime) resetUser() {
	r.Cache.Reset()
	r.Inbox.Reset()
}

func cacheOptions(c config.CacheConfig) cache.Options {
	return cache.Options{
		RevalidateOnFocus:     c.RevalidateOnFocus,
		RevalidateOnReconnect: c.RevalidateOnReconnect,
		DedupingInterval:      c.DedupingInterval,
		RefreshInterval:       c.RefreshInterval,
	}
}

// openState opens the local state database. Failure is not fatal: the
// returned nil store discards writes.
func openState(path string, logger *zap.Logger) *localstate.Store {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.Warn("local state disabled", zap.Error(err))
		return nil
	}
	store, err := localstate.Open(path, logger)
	if err != nil {
		logger.Warn("local state disabled", zap.String("path", path), zap.Error(err))
		return nil
	}
	return store
}
