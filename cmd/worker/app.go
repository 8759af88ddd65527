package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	promclient "github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/jwalitptl/notifier/internal/config"
	"github.com/jwalitptl/notifier/internal/jobs"
	"github.com/jwalitptl/notifier/internal/model"
	"github.com/jwalitptl/notifier/internal/repository/postgres"
	"github.com/jwalitptl/notifier/internal/service/delivery"
	"github.com/jwalitptl/notifier/internal/service/notification"
	"github.com/jwalitptl/notifier/pkg/logger"
	"github.com/jwalitptl/notifier/pkg/messaging"
	"github.com/jwalitptl/notifier/pkg/messaging/redis"
	"github.com/jwalitptl/notifier/pkg/metrics"
	"github.com/jwalitptl/notifier/pkg/security"
	"github.com/jwalitptl/notifier/pkg/transport"
	"github.com/jwalitptl/notifier/pkg/transport/exchange"
	"github.com/jwalitptl/notifier/pkg/transport/sms"
	"github.com/jwalitptl/notifier/pkg/transport/smtp"
)

const metricsNamespace = "notifier"

// app holds everything the subcommands share.
type app struct {
	cfg      *config.Config
	logger   *logger.Logger
	registry *promclient.Registry
	metrics  *metrics.Metrics
	db       *sqlx.DB
	redis    *goredis.Client
	broker   messaging.Broker

	queue    *delivery.Queue
	notifier notification.Service
	delivery delivery.Service
	runner   *jobs.Runner
}

func loadConfig() (*config.Config, error) {
	if configDir != "" {
		return config.Load(configDir)
	}
	return config.Load()
}

func newLogger(cfg config.LogConfig) *logger.Logger {
	return logger.NewLogger(&logger.Config{
		Level:  logger.ParseLevel(cfg.Level),
		Output: os.Stdout,
		JSON:   cfg.Format == "json",
	})
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   newLogger(cfg.Log),
		registry: promclient.NewRegistry(),
		metrics:  metrics.New(metricsNamespace),
	}
	if err := a.metrics.Register(a.registry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	a.db, err = postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	var locker jobs.Locker
	if cfg.Redis.URL != "" {
		a.redis, err = redis.NewClient(redis.Config{URL: cfg.Redis.URL, PoolSize: cfg.Redis.PoolSize})
		if err != nil {
			a.Close()
			return nil, err
		}
		a.broker = redis.NewRedisBroker(a.redis, a.logger.Zerolog())
		locker = jobs.NewRedisLocker(a.redis)
	} else {
		a.logger.Warn("redis not configured, progress is not published and jobs are locked per process")
	}

	enc, err := security.NewCredentialEncryptor(cfg.Security.CredentialKey)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize credential encryption: %w", err)
	}

	loc, err := cfg.Jobs.Location()
	if err != nil {
		a.Close()
		return nil, err
	}

	base := postgres.NewBaseRepository(a.db)
	a.queue = delivery.NewQueue(postgres.NewDeliveryRepository(base), a.metrics, a.logger)

	a.notifier = notification.NewService(
		postgres.NewRuleRepository(base),
		postgres.NewRecordQuerier(base),
		a.queue,
		notification.NewDirectory(postgres.NewDirectoryRepository(base), cfg.Jobs.DirectoryCacheTTL),
		a.metrics,
		a.logger.WithFields(map[string]interface{}{"component": "notification"}),
		notification.Options{Location: loc},
	)

	a.delivery = delivery.NewService(
		a.queue,
		postgres.NewDeliverySystemRepository(base, enc),
		newRegistry(),
		a.metrics,
		a.logger.WithFields(map[string]interface{}{"component": "delivery"}),
		delivery.Options{Rate: cfg.Jobs.DispatchRate, Burst: cfg.Jobs.DispatchBurst},
	)

	a.runner = jobs.NewRunner(jobs.RunnerConfig{Location: loc, LockTTL: cfg.Jobs.LockTTL}, locker, a.broker, a.metrics, a.logger)
	if err := a.registerJobs(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func newRegistry() *transport.Registry {
	r := transport.NewRegistry()
	r.Register(string(model.SystemSMTP), smtp.New())
	r.Register(string(model.SystemExchange), exchange.New())
	r.Register(string(model.SystemSMS), sms.New())
	return r
}

func (a *app) registerJobs() error {
	if err := a.runner.Register(jobs.Job{
		Name:     jobs.JobEvaluate,
		Schedule: a.cfg.Jobs.EvaluateSchedule,
		Run: func(ctx context.Context, p jobs.Progress) (interface{}, error) {
			return a.notifier.Run(ctx, p)
		},
	}); err != nil {
		return err
	}
	return a.runner.Register(jobs.Job{
		Name:     jobs.JobDispatch,
		Schedule: a.cfg.Jobs.DispatchSchedule,
		Run: func(ctx context.Context, p jobs.Progress) (interface{}, error) {
			return a.delivery.Run(ctx, p)
		},
	})
}

func (a *app) Close() {
	if a.broker != nil {
		_ = a.broker.Close()
	} else if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
