package app

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"tgstate/internal/authclient"
	"tgstate/internal/config"
	"tgstate/internal/domain"
	"tgstate/internal/engine"
	"tgstate/internal/logging"
	"tgstate/internal/services/lifecycle"
	"tgstate/internal/services/login"
	"tgstate/internal/store"
)

// ErrNoPrompter is returned by Start when nothing can answer login prompts.
var ErrNoPrompter = errors.New("app: login needs a prompter")

type App struct {
	Config    config.Config
	Log       logging.Logger
	Registry  *prometheus.Registry
	Engine    *engine.State
	Auth      *store.AuthFileStore
	Cursor    *store.CursorFileStore
	Secrets   *store.SecretChatFileStore
	Remote    *authclient.HTTP
	Lifecycle *lifecycle.Controller
	Login     *login.Sequence

	hasPrompter bool
}

// Start logs in. The controller is attached first so events raised by the
// initial synchronization are queued for it.
func (a *App) Start(ctx context.Context) (login.Result, error) {
	if !a.hasPrompter {
		return login.Result{}, ErrNoPrompter
	}
	a.Lifecycle.Attach()
	res, err := a.Login.Run(ctx)
	if err != nil {
		return res, err
	}
	a.Lifecycle.Drain(ctx)
	return res, nil
}

// Sync fetches one difference after Start and lets the controller act on
// the events it raised.
func (a *App) Sync(ctx context.Context) (domain.Difference, error) {
	diff, err := a.Login.Sync(ctx)
	a.Lifecycle.Drain(ctx)
	return diff, err
}

// Serve processes events and flushes the stores until ctx is done.
func (a *App) Serve(ctx context.Context) error {
	return a.Lifecycle.Run(ctx, a.Config.FlushInterval)
}

// Restore loads the stores into the engine without any network traffic.
func (a *App) Restore() (login.Result, error) {
	res, err := a.Login.Restore()
	if err != nil {
		return res, err
	}
	a.Lifecycle.Resync()
	return res, nil
}
