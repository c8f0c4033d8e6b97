// Package app wires configuration, storage, collaborators and services into
// the object graph shared by the API server and the scheduler worker.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"finpanel/internal/actor"
	"finpanel/internal/attachments"
	"finpanel/internal/config"
	"finpanel/internal/database"
	"finpanel/internal/logger"
	"finpanel/internal/metrics"
	"finpanel/internal/money"
	"finpanel/internal/notify"
	"finpanel/internal/services"
)

// App holds the long-lived dependencies of a process.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Registry *prometheus.Registry
	Metrics  *metrics.PrometheusCollector
	Notifier notify.Notifier

	Accounts     services.AccountServicer
	Transactions services.TransactionServicer
	Items        services.ItemServicer
	Goals        services.GoalServicer
	Scheduler    services.SchedulerServicer

	closers []func() error
}

// New connects to the database, runs pending migrations and builds every
// service. Close releases what New opened.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logger.Get()
	a := &App{Config: cfg}

	money.SetDefaultCurrency(cfg.Setting(config.KeyCurrencyCode))

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.Metrics = metrics.NewPrometheusCollector("finpanel")
	if err := a.Metrics.Register(a.Registry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	a.closers = append(a.closers, dbManager.Close)

	if err := dbManager.RunMigrations(); err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	a.DB = dbManager.DB()

	store, err := newAttachmentStore(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if c, ok := store.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	a.Notifier = notify.LogNotifier{}
	if cfg.AMQPURL != "" {
		amqpNotifier, err := notify.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, a.Metrics)
		if err != nil {
			log.Warnw("AMQP unavailable, notifications go to the log", "error", err)
		} else {
			a.Notifier = amqpNotifier
			a.closers = append(a.closers, amqpNotifier.Close)
		}
	}

	opts := services.Options{
		Config:      cfg,
		Metrics:     a.Metrics,
		Attachments: store,
	}
	opts.Audit = services.NewAuditService(a.DB, actor.ContextProvider{})

	a.Accounts = services.NewAccountService(a.DB, opts)
	a.Transactions = services.NewTransactionService(a.DB, a.Accounts, opts)
	a.Items = services.NewItemService(a.DB, opts)
	a.Goals = services.NewGoalService(a.DB, a.Accounts, a.Transactions, opts)
	a.Scheduler = services.NewSchedulerService(a.DB, a.Accounts, opts)

	return a, nil
}

func newAttachmentStore(ctx context.Context, cfg *config.Config) (attachments.Store, error) {
	switch backend := cfg.Setting(config.KeyAttachmentsBackend); backend {
	case "", "local":
		return attachments.NewLocalStore(cfg.Setting(config.KeyAttachmentsDir)), nil
	case "gcs":
		store, err := attachments.NewGCSStore(ctx, cfg.Setting(config.KeyAttachmentsGCSBucket))
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS attachment store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown attachments backend %q", backend)
	}
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logger.Get().Warnw("failed to close resource", "error", err)
		}
	}
	a.closers = nil
}
