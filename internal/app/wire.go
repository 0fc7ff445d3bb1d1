package app

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"tgstate/internal/authclient"
	"tgstate/internal/config"
	"tgstate/internal/engine"
	"tgstate/internal/logging"
	"tgstate/internal/metrics"
	"tgstate/internal/services/lifecycle"
	"tgstate/internal/services/login"
	"tgstate/internal/store"
)

// NewApp constructs the dependency graph for one account from cfg. It
// creates the state directory and its downloads subdirectory.
func NewApp(cfg config.Config, opts Options) (*App, error) {
	dir := cfg.StateDir()
	if err := os.MkdirAll(filepath.Join(dir, config.DownloadsDir), 0o700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	policy, err := cfg.AcceptPolicy()
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logging.Nop()
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	httpClient := opts.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	// File-based stores report their writes to the metrics recorder.
	storeMetrics := metrics.NewStore(reg)
	obs := store.WithObserver(storeMetrics)
	authStore := store.NewAuthFileStore(dir, obs)
	cursorStore := store.NewCursorFileStore(dir, obs)
	secretStore := store.NewSecretChatFileStore(dir, obs)

	remote := authclient.NewHTTP(cfg.AuthURL)
	remote.HTTP = httpClient

	eng := engine.New()

	ctrlOpts := []lifecycle.Option{
		lifecycle.WithLogger(log.With("component", "lifecycle")),
		lifecycle.WithFlushObserver(storeMetrics),
		lifecycle.WithRequester(remote),
	}
	if opts.Prompter != nil {
		ctrlOpts = append(ctrlOpts, lifecycle.WithPrompter(opts.Prompter))
	}
	ctrl := lifecycle.New(eng, lifecycle.Stores{
		Auth:    authStore,
		Cursor:  cursorStore,
		Secrets: secretStore,
	}, remote, policy, ctrlOpts...)

	seq := login.New(eng, login.Stores{
		Auth:    authStore,
		Cursor:  cursorStore,
		Secrets: secretStore,
	}, remote, opts.Prompter, login.Options{
		Phone:        cfg.Phone,
		TestMode:     cfg.TestMode,
		PollInterval: cfg.AuthPollInterval,
		Logger:       log.With("component", "login"),
		Restored:     ctrl.Resync,
	})

	return &App{
		Config:    cfg,
		Log:       log,
		Registry:  reg,
		Engine:    eng,
		Auth:      authStore,
		Cursor:    cursorStore,
		Secrets:   secretStore,
		Remote:    remote,
		Lifecycle: ctrl,
		Login:     seq,

		hasPrompter: opts.Prompter != nil,
	}, nil
}
