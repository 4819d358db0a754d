package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/five82/platesolve/internal/cache"
	"github.com/five82/platesolve/internal/config"
	"github.com/five82/platesolve/internal/logging"
	"github.com/five82/platesolve/internal/nova"
	"github.com/five82/platesolve/internal/notify"
)

// Options configure an App.
type Options struct {
	Plain  bool      // no progress view; logs go to stderr
	Out    io.Writer // command output; defaults to os.Stdout
	Logger *zap.Logger
}

// App wires config, logging, the nova client, the cache and notifications
// for the CLI commands.
type App struct {
	cfg      config.Config
	plain    bool
	out      io.Writer
	logger   *zap.Logger
	client   *nova.Client
	cache    *cache.Store
	notifier *notify.Fanout

	loginMu sync.Mutex
}

// New builds an App from cfg. The nova client is created but does not log in
// until a command needs a session.
func New(cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		var err error
		logger, err = logging.New(logging.Options{
			Level: cfg.LogLevel,
			File:  cfg.LogFile,
			Quiet: !opts.Plain,
		})
		if err != nil {
			return nil, fmt.Errorf("init logger: %w", err)
		}
	}

	store, err := cache.Open(cache.Options{Dir: cfg.CacheDir, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	client, err := nova.NewClient(nova.Options{BaseURL: cfg.BaseURL, APIKey: cfg.APIKey, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("init nova client: %w", err)
	}

	notifier, err := buildNotifier(cfg.Notify, logger)
	if err != nil {
		return nil, fmt.Errorf("init notifications: %w", err)
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}

	return &App{
		cfg:      cfg,
		plain:    opts.Plain,
		out:      out,
		logger:   logger,
		client:   client,
		cache:    store,
		notifier: notifier,
	}, nil
}

// Config returns the configuration the App was built with.
func (a *App) Config() config.Config {
	return a.cfg
}

// Logger returns the App logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Close releases the nova client and flushes the logger.
func (a *App) Close() error {
	err := a.client.Close()
	if syncErr := a.logger.Sync(); syncErr != nil && !isIgnorableSyncError(syncErr) {
		err = multierr.Append(err, syncErr)
	}
	return err
}

// ensureSession logs in once; later calls reuse the session.
func (a *App) ensureSession(ctx context.Context) error {
	a.loginMu.Lock()
	defer a.loginMu.Unlock()
	if a.client.Session() != "" {
		return nil
	}
	if err := a.cfg.Validate(); err != nil {
		return err
	}
	_, err := a.client.Login(ctx)
	return err
}

func buildNotifier(cfg config.NotifyConfig, logger *zap.Logger) (*notify.Fanout, error) {
	client := &http.Client{Timeout: notifyTimeout}
	var sinks []notify.Sink
	if cfg.SlackWebhook != "" {
		sinks = append(sinks, notify.NewSlackSink(cfg.SlackWebhook, client))
	}
	if cfg.DiscordWebhook != "" {
		sinks = append(sinks, notify.NewDiscordSink(cfg.DiscordWebhook, client))
	}
	if cfg.Email.Enabled() {
		email, err := notify.NewEmailSink(notify.EmailOptions{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.Port,
			From:     cfg.Email.From,
			To:       cfg.Email.To,
			Password: cfg.Email.Password,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, email)
	}
	return notify.NewFanout(logger, sinks...), nil
}

// isIgnorableSyncError filters the EINVAL/ENOTTY zap reports when stderr is
// a terminal.
func isIgnorableSyncError(err error) bool {
	var pathErr *os.PathError
	return errors.As(err, &pathErr) && pathErr.Path == "/dev/stderr"
}
