// Package server assembles the LACPA HTTP service: storage backends, mail
// delivery, routing, and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lacpa/lacpa-backend/internal/applications"
	"github.com/lacpa/lacpa-backend/internal/auth"
	"github.com/lacpa/lacpa-backend/internal/config"
	"github.com/lacpa/lacpa-backend/internal/db"
	"github.com/lacpa/lacpa-backend/internal/logging"
	"github.com/lacpa/lacpa-backend/internal/mail"
)

const (
	shutdownTimeout = 10 * time.Second
	redisKeyPrefix  = "lacpa"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	server  *http.Server
	closers []func() error
}

func NewApp(cfg *config.Config, logger logging.Logger) (*App, error) {
	app := &App{config: cfg, logger: logger}

	d, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.closers = append(app.closers, db.Close)

	if err := auth.Init(d); err != nil {
		app.close()
		return nil, fmt.Errorf("auth schema: %w", err)
	}
	if err := applications.Init(d); err != nil {
		app.close()
		return nil, fmt.Errorf("applications schema: %w", err)
	}

	sqlDB, err := d.DB()
	if err != nil {
		app.close()
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	checks := []func(context.Context) error{sqlDB.PingContext}

	stores := auth.NewGormStores(d)
	if cfg.SessionBackend == config.SessionBackendRedis {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		app.closers = append(app.closers, rdb.Close)

		pctx, cancel := context.WithTimeout(context.Background(), cfg.StoreTimeout)
		err := rdb.Ping(pctx).Err()
		cancel()
		if err != nil {
			app.close()
			return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
		}
		stores.Sessions = auth.NewRedisSessionStore(rdb, redisKeyPrefix)
		checks = append(checks, func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
	}
	logger.Info(context.Background(), "session backend selected", "backend", cfg.SessionBackend)

	handler, err := NewRouter(Deps{
		Config:       cfg,
		Stores:       stores,
		Applications: applications.NewGormStore(d),
		Mailer:       newMailer(cfg, logger),
		Logger:       logger,
		Ready: func(r *http.Request) error {
			ctx, cancel := context.WithTimeout(r.Context(), cfg.StoreTimeout)
			defer cancel()
			for _, check := range checks {
				if err := check(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	})
	if err != nil {
		app.close()
		return nil, err
	}

	app.server = &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return app, nil
}

func newMailer(cfg *config.Config, logger logging.Logger) mail.Mailer {
	if cfg.MailDriver == config.MailDriverSMTP {
		return mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		})
	}
	return mail.NewLogMailer(logger)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	app.logger.Info(ctx, "server listening", "addr", app.server.Addr)
	if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server failed", "error", err)
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// drains in-flight requests and releases the backends.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")
	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	<-ctx.Done()
	app.logger.Info(context.Background(), "shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := app.server.Shutdown(sctx); err != nil {
		app.logger.Error(sctx, "graceful shutdown failed", "error", err)
	}
	wg.Wait()
	app.close()
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	app.closers = nil
}
