// ABOUTME: Builds the auth manager, file client and controller shared by commands
// ABOUTME: Restores the saved session so every invocation starts signed in when possible

package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/AsafNachman/file-management-system/internal/auth"
	"github.com/AsafNachman/file-management-system/internal/client"
	"github.com/AsafNachman/file-management-system/internal/config"
	"github.com/AsafNachman/file-management-system/internal/controller"
	"github.com/AsafNachman/file-management-system/internal/logger"
)

// app bundles what a command needs to talk to the backend
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	session *auth.Manager
	repo    *client.Client
}

// newApp loads config, configures logging and restores any saved session
func newApp(ctx context.Context, log *slog.Logger) (*app, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Init(cfg.Log.Level, cfg.Log.Format)
	}

	provider := auth.NewOAuthProvider(auth.OAuthConfig{
		TokenURL:     cfg.Auth.TokenURL,
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Scopes:       cfg.Auth.Scopes,
		Timeout:      cfg.Timeout,
	})
	manager := auth.NewManager(provider,
		auth.WithStore(auth.NewStore(auth.DefaultStorePath(config.DefaultDir()))),
		auth.WithLogger(log),
		auth.WithRefreshSkew(cfg.Auth.RefreshSkew),
	)
	if _, err := manager.Restore(ctx); err != nil {
		log.Warn("could not restore saved session", "error", err)
	}

	repo := client.New(cfg.APIURL, client.WithTimeout(cfg.Timeout), client.WithLogger(log))

	return &app{cfg: cfg, logger: log, session: manager, repo: repo}, nil
}

// controller builds a controller over the app's session and client
func (a *app) controller(opts ...controller.Option) *controller.Controller {
	base := []controller.Option{
		controller.WithDownloadDir(a.cfg.DownloadDir),
		controller.WithLogger(a.logger),
	}
	return controller.New(a.session, a.repo, append(base, opts...)...)
}

// signedIn runs the controller's session reconciliation and fails when no
// session exists. The returned state includes the first list fetch.
func signedIn(r *controller.Runner) (controller.State, error) {
	st := r.Dispatch(controller.SessionChanged{})
	if st.Identity == nil {
		if err := noticeError(st); err != nil {
			return st, err
		}
		return st, fmt.Errorf("not signed in, run \"filemgr login\" first")
	}
	return st, nil
}

// noticeError returns the error carried by an error-level notice
func noticeError(st controller.State) error {
	if st.Notice == nil || st.Notice.Level != controller.LevelError {
		return nil
	}
	return fmt.Errorf("%s", st.Notice.Text)
}
