package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"moneywire/internal/amqp"
	"moneywire/internal/api"
	"moneywire/internal/cache"
	"moneywire/internal/cli"
	"moneywire/internal/events"
	apphttp "moneywire/internal/http"
	"moneywire/internal/log"
	"moneywire/internal/session"
	"moneywire/internal/storage"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	startCtx, cancelStart := context.WithTimeout(context.Background(), 10*time.Second)
	kv, err := storage.Open(startCtx, cfg.Storage(), logger.WithComponent(log.ComponentStorage).Logger)
	cancelStart()
	if err != nil {
		logger.Error("Failed to open session storage",
			log.FieldError, err,
			log.FieldBackend, cfg.SessionBackend,
			log.FieldErrorType, log.ErrorTypeStorage)
		os.Exit(1)
	}

	sweeper := cache.NewManager(logger.WithComponent(log.ComponentCache).Logger)
	if c, ok := kv.(cache.Cleaner); ok {
		sweeper.Register(c)
		sweeper.StartCleanup(cfg.SessionSweepInterval)
	}

	client := api.New(cfg.APIBaseURL, api.WithTimeout(cfg.APITimeout))
	sessions := session.NewManager(client, kv, session.ManagerConfig{
		TTL:    cfg.SessionTTL,
		Cookie: session.CookieConfig{Secure: cfg.CookieSecure, MaxAge: cfg.SessionTTL},
	}, logger.WithComponent(log.ComponentSession))

	var (
		publisher *events.Publisher
		broker    *amqp.Client
	)
	if cfg.AMQPURL != "" {
		broker, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Error("Failed to connect to AMQP broker",
				log.FieldError, err,
				log.FieldErrorType, log.ErrorTypeConfiguration)
			os.Exit(1)
		}
		publisher = events.NewPublisher(broker, logger.WithComponent(log.ComponentAMQP), 0)
		sessions.AddListener(publisher.Listen)
		logger.Info("Publishing session events", "exchange", broker.Exchange())
	}

	opts := apphttp.Options{
		Addr:               cfg.Addr(),
		Backend:            client,
		Sessions:           sessions,
		Storage:            kv,
		Logger:             logger.WithComponent(log.ComponentHTTP),
		RefreshWindow:      cfg.TokenRefreshWindow,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	}
	if publisher != nil {
		opts.Events = publisher
	}
	srv, err := apphttp.NewServer(opts)
	if err != nil {
		logger.Error("Failed to build HTTP server", log.FieldError, err)
		os.Exit(1)
	}
	srv.ReadTimeout = 15 * time.Second
	srv.WriteTimeout = 30 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(shutdownCtx context.Context) {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting moneywire server",
			"addr", cfg.Addr(),
			"api", client.BaseURL(),
			log.FieldBackend, cfg.SessionBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if publisher != nil {
		g.Go(func() error {
			return publisher.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Server error", log.FieldError, err)
		_ = srv.Shutdown(context.Background())
		closeAll(logger, sweeper, broker, kv)
		os.Exit(1)
	}

	<-done
	closeAll(logger, sweeper, broker, kv)
	logger.Info("Server stopped gracefully")
}

func closeAll(logger *log.Logger, sweeper *cache.Manager, broker *amqp.Client, kv storage.KV) {
	sweeper.Stop()
	if broker != nil {
		if err := broker.Close(); err != nil {
			logger.Warn("AMQP close error", log.FieldError, err)
		}
	}
	if err := kv.Close(); err != nil {
		logger.Warn("Session storage close error", log.FieldError, err)
	}
}
