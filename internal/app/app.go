package app

import (
	"context"
	"fmt"
	"net/http"

	"retrolog/internal/retention"
	"retrolog/pkg/banner"
	"retrolog/pkg/collection"
	"retrolog/pkg/config"
	"retrolog/pkg/identity"
	"retrolog/pkg/logger"
	"retrolog/pkg/policy"
	"retrolog/pkg/session"
)

// App encapsulates the engine components and their lifecycle: remote
// collection, session (store + policy + subscription) and the local HTTP
// surface.
type App struct {
	cfg     *config.Config
	version string

	col       collection.Collection
	provider  identity.Provider
	sess      *session.Session
	retCancel context.CancelFunc

	srv *http.Server
}

// New validates the config and initializes the collection, identity
// provider and session. It does not start the HTTP server; call Run to
// start it and block until shutdown.
func New(cfg *config.Config, version string) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	col, err := collection.Open(cfg.Remote)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s collection: %w", cfg.Remote.Mode, err)
	}

	provider := identity.NewTokenProvider(
		cfg.Identity.TokenSecret,
		cfg.Identity.AdminEmails,
		cfg.Identity.AdminPassphraseBcrypt,
	)

	sess, err := session.Open(col, provider, session.Options{
		Policy: policy.Options{
			Cooldown:      config.ParseDuration(cfg.Feed.Cooldown, 0),
			MaxPayload:    config.ParseSize(cfg.Feed.MaxPayload, 0),
			MaxContentLen: cfg.Feed.MaxContentLen,
			MaxTitleLen:   cfg.Feed.MaxTitleLen,
		},
		KnownTags:     cfg.Feed.KnownTags,
		QueueCapacity: cfg.Feed.QueueCapacity,
	})
	if err != nil {
		_ = col.Close()
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	a := &App{cfg: cfg, version: version, col: col, provider: provider, sess: sess}

	if pb, ok := col.(*collection.Pebble); ok {
		cancel, err := retention.Start(context.Background(), cfg.Retention, pb)
		if err != nil {
			a.closeCore()
			return nil, err
		}
		a.retCancel = cancel
	}
	return a, nil
}

// Session exposes the session root, mainly for tests.
func (a *App) Session() *session.Session { return a.sess }

// Run prints the banner, starts the HTTP server and blocks until ctx is
// canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	banner.Print(a.cfg.Addr(), a.cfg.Remote.Mode, a.version)

	errCh := a.startHTTP()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

// Shutdown stops components in dependency order: HTTP surface first, then
// retention, then the session (unsubscribe + worker), then the
// collection.
func (a *App) Shutdown(ctx context.Context) {
	if a.srv != nil {
		if err := a.srv.Shutdown(ctx); err != nil {
			logger.Warn("http_shutdown_failed", "err", err)
		}
	}
	a.closeCore()
	logger.Info("shutdown_complete")
}

func (a *App) closeCore() {
	if a.retCancel != nil {
		a.retCancel()
		a.retCancel = nil
	}
	if a.sess != nil {
		a.sess.Close()
		a.sess = nil
	}
	if a.col != nil {
		if err := a.col.Close(); err != nil {
			logger.Warn("collection_close_failed", "err", err)
		}
		a.col = nil
	}
}
