package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/richxcame/support-chat/internal/supportapi"
	"github.com/richxcame/support-chat/pkg/auth"
	"github.com/richxcame/support-chat/pkg/config"
	apperrors "github.com/richxcame/support-chat/pkg/errors"
	"github.com/richxcame/support-chat/pkg/kvstore"
	"github.com/richxcame/support-chat/pkg/logger"
	"github.com/richxcame/support-chat/pkg/tracing"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const serviceName = "support-chat"

// app holds the process-wide dependencies shared by every subcommand
type app struct {
	cfg    *config.Config
	tokens *auth.StaticToken
	api    *supportapi.Client
	store  kvstore.Store
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "supportchat",
		Short:         "Terminal client for in-app support conversations",
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			a.shutdown()
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(newChatCmd(a), newTicketsCmd(a), newFAQCmd(a))
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	a.cfg = cfg

	// The terminal is the UI, so logs go to a file unless one is not configured.
	opts := logger.Options{Environment: cfg.App.Environment, Level: cfg.App.LogLevel}
	if cfg.App.LogFile != "" {
		opts.OutputPaths = []string{cfg.App.LogFile}
	}
	if err := logger.Init(opts); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if cfg.Sentry.DSN != "" {
		if err := apperrors.InitSentry(&apperrors.SentryConfig{
			DSN:              cfg.Sentry.DSN,
			Environment:      cfg.App.Environment,
			Release:          cfg.Sentry.Release,
			SampleRate:       cfg.Sentry.SampleRate,
			ServerName:       cfg.App.ServiceName,
			AttachStacktrace: true,
		}); err != nil {
			logger.Warn("Failed to initialize Sentry", zap.Error(err))
		}
	}

	if cfg.Tracing.Enabled {
		if _, err := tracing.InitTracer(tracing.Config{
			ServiceName:    cfg.App.ServiceName,
			ServiceVersion: version,
			Environment:    cfg.App.Environment,
			OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
			SampleRate:     cfg.Tracing.SampleRate,
			Enabled:        true,
		}, logger.Get()); err != nil {
			logger.Warn("Failed to initialize tracing", zap.Error(err))
		}
	}

	tokens, err := auth.NewStaticToken(cfg.API.Token)
	if err != nil {
		return fmt.Errorf("read access token: %w", err)
	}
	a.tokens = tokens
	if id := tokens.Identity().UserID; id != "" {
		apperrors.SetUser(id)
	}

	store, err := kvstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Driver, err)
	}
	a.store = store
	a.api = supportapi.NewFromConfig(cfg, tokens)
	return nil
}

func (a *app) shutdown() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warn("Failed to close store", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracing.Shutdown(ctx); err != nil {
		logger.Warn("Failed to shut down tracer", zap.Error(err))
	}
	apperrors.Flush(2 * time.Second)
	_ = logger.Sync()
}

func (a *app) keys() kvstore.Keys {
	return kvstore.Keys{Prefix: a.cfg.Store.KeyPrefix}
}

// serveMetrics exposes the Prometheus registry until ctx is cancelled.
func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Metrics listener started", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics listener: %w", err)
	}
	return nil
}
