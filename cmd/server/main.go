package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dbayan/storefront/internal/audit"
	"github.com/dbayan/storefront/internal/auth"
	"github.com/dbayan/storefront/internal/chat"
	"github.com/dbayan/storefront/internal/config"
	"github.com/dbayan/storefront/internal/db"
	"github.com/dbayan/storefront/internal/gate"
	"github.com/dbayan/storefront/internal/logger"
	"github.com/dbayan/storefront/internal/notify"
	"github.com/dbayan/storefront/internal/repository/postgresql"
	"github.com/dbayan/storefront/internal/server"
	"github.com/dbayan/storefront/internal/session"
	"github.com/dbayan/storefront/internal/storage"
)

func main() {
	config.LoadEnv()
	cfg := config.FromEnv()

	log := logger.New()
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := buildStore(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize storage", zap.Error(err))
	}

	var notifier notify.Notifier
	if cfg.SMTPHost != "" {
		notifier = notify.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass)
	} else {
		log.Warn("SMTP_HOST not set, mail goes to the log")
		notifier = notify.NewLogNotifier(log)
	}
	dispatcher := notify.NewDispatcher(notifier, notify.DefaultDispatcherConfig(), log)

	var producer audit.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = audit.NewKafkaProducer(cfg.KafkaBrokers, cfg.AuditTopic)
	} else {
		producer = audit.NewLogProducer(log)
	}
	auditor := audit.NewManager(2, 5, 500*time.Millisecond, producer, log)
	auditor.Start(ctx)

	srv := server.New(
		store,
		session.NewRegistry(),
		chat.NewHub(log),
		gate.NewWindow(log),
		dispatcher,
		auditor,
		auth.NewResolver(cfg.OperatorEmail, cfg.OperatorPasswordHash, log),
		log,
		server.Config{
			Port:               cfg.Port,
			OperatorEmail:      cfg.OperatorEmail,
			SessionIdleTimeout: time.Duration(cfg.SessionIdleTimeout) * time.Minute,
		},
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("server shutdown failed", zap.Error(err))
		}
		auditor.Shutdown(shutdownCtx)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server exited", zap.Error(err))
	}
	log.Info("server stopped")
}

// buildStore picks the backend: postgres when DATABASE_URL is configured,
// otherwise the flat JSON file next to the binary.
func buildStore(ctx context.Context, cfg config.Config, log *zap.Logger) (server.Store, error) {
	if cfg.DatabaseURL != "" {
		database, err := db.NewDb(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		store := storage.NewPostgresStore(database, postgresql.NewItemRepo(database), postgresql.NewBanRepo(database), log)
		if err := store.Load(ctx); err != nil {
			return nil, err
		}
		log.Info("using postgres stock store")
		return store, nil
	}

	store := storage.NewFileStore(cfg.StockFile, log)
	if err := store.Load(ctx); err != nil {
		if errors.Is(err, storage.ErrStorageUnavailable) {
			// Corrupt file: run with an empty catalog rather than crash.
			log.Warn("stock file unreadable, continuing with empty catalog", zap.Error(err))
		} else {
			return nil, err
		}
	}
	log.Info("using JSON file stock store", zap.String("path", cfg.StockFile))
	return store, nil
}
