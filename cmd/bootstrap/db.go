package bootstrap

import (
	"context"
	"log/slog"

	"billiard-hall/internal/infra/db"
	"billiard-hall/internal/infra/memstore"
	"billiard-hall/internal/infra/repository"
	"billiard-hall/internal/infra/uow"
	"billiard-hall/internal/messaging"
	"billiard-hall/internal/pkg/config"
	"billiard-hall/internal/usecase/readmodel"
	"billiard-hall/internal/usecase/shared"

	"go.uber.org/fx"
)

var DBModule = fx.Module("db",
	fx.Provide(
		NewStorage,
	),
)

// Storage is every store the process needs, backed by the configured driver.
type Storage struct {
	fx.Out

	UoW         shared.UnitOfWork
	Reads       shared.ReadStore
	Outbox      shared.OutboxStore
	Events      shared.EventReader
	Members     readmodel.ReplicaStore[readmodel.MemberReplica]
	Tables      readmodel.ReplicaStore[readmodel.TableReplica]
	Inbox       messaging.InboxStore
	DeadLetters messaging.DeadLetterStore
}

func NewStorage(lc fx.Lifecycle, cfg config.Config, logger *slog.Logger) (Storage, error) {
	if cfg.App.StorageDriver == config.StoragePostgres {
		return newPostgresStorage(lc, cfg, logger)
	}

	store := memstore.New()
	logger.Info("Using in-memory storage")
	return Storage{
		UoW:         store,
		Reads:       store,
		Outbox:      store,
		Events:      store,
		Members:     memstore.NewReplicas[readmodel.MemberReplica](),
		Tables:      memstore.NewReplicas[readmodel.TableReplica](),
		Inbox:       messaging.NewMemoryInbox(),
		DeadLetters: messaging.NewMemoryDeadLetters(),
	}, nil
}

func newPostgresStorage(lc fx.Lifecycle, cfg config.Config, logger *slog.Logger) (Storage, error) {
	ctx := context.Background()
	pool, cleanup, err := db.Connect(ctx, cfg.DB)
	if err != nil {
		return Storage{}, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		cleanup()
		return Storage{}, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			if cleanup != nil {
				cleanup()
			}
			return nil
		},
	})

	logger.Info("Using postgres storage", slog.String("host", cfg.DB.Host), slog.String("database", cfg.DB.DBName))
	return Storage{
		UoW:         uow.NewPostgresUoW(pool, cfg.Lock.AcquireTimeout, logger),
		Reads:       repository.NewReadStore(pool),
		Outbox:      repository.NewOutbox(pool),
		Events:      repository.NewEventLog(pool),
		Members:     repository.NewMemberReplicas(pool),
		Tables:      repository.NewTableReplicas(pool),
		Inbox:       repository.NewInbox(pool),
		DeadLetters: repository.NewDeadLetters(pool),
	}, nil
}
