package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	deliveryHandler "github.com/jwalitptl/notifier/internal/handler/delivery"
	"github.com/jwalitptl/notifier/internal/handler/health"
	jobsHandler "github.com/jwalitptl/notifier/internal/handler/jobs"
	"github.com/jwalitptl/notifier/internal/handler/prometheus"
	"github.com/jwalitptl/notifier/internal/middleware"
	"github.com/jwalitptl/notifier/internal/repository/postgres"
	"github.com/jwalitptl/notifier/internal/router"
	"github.com/jwalitptl/notifier/pkg/auth"
)

const shutdownTimeout = 30 * time.Second

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the scheduled jobs and the ops API until interrupted",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if migrateOnStart {
			if err := postgres.Migrate(a.db); err != nil {
				return err
			}
		}

		var srv *http.Server
		if a.cfg.Server.Enabled {
			srv, err = a.httpServer()
			if err != nil {
				return err
			}
			go func() {
				a.logger.Info("ops API listening", "addr", srv.Addr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					a.logger.Error(err, "ops API stopped")
					stop()
				}
			}()
		}

		a.runner.Start()
		<-ctx.Done()
		a.logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if srv != nil {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error(err, "ops API forced to shut down")
			}
		}
		if err := a.runner.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("jobs did not stop in time: %w", err)
		}
		a.logger.Info("shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply pending migrations before starting")
}

func (a *app) httpServer() (*http.Server, error) {
	metricsH, err := prometheus.New(a.registry, metricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to register HTTP metrics: %w", err)
	}

	checks := map[string]health.Pinger{"database": a.db}
	if a.redis != nil {
		checks["redis"] = health.PingFunc(func(ctx context.Context) error {
			return a.redis.Ping(ctx).Err()
		})
	}

	var authMW *middleware.AuthMiddleware
	if a.cfg.Security.JWTSecret != "" {
		authMW = middleware.NewAuthMiddleware(auth.NewJWTService(a.cfg.Security.JWTSecret, jwtIssuer))
	}

	r := router.NewRouter(
		a.logger,
		authMW,
		health.NewHandler(checks),
		metricsH,
		deliveryHandler.NewHandler(a.queue),
		jobsHandler.NewHandler(a.runner),
		router.RouterConfig{
			RateLimit: rate.Limit(a.cfg.Server.RateLimit),
			RateBurst: a.cfg.Server.RateBurst,
		},
	)
	r.Setup()

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}, nil
}
