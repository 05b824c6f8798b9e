package components

import (
	"log/slog"

	"billiard-hall/internal/contracts"
	"billiard-hall/internal/domain/reservation"
	"billiard-hall/internal/messaging"
	"billiard-hall/internal/pkg/clock"
	"billiard-hall/internal/pkg/config"
	"billiard-hall/internal/pkg/keylock"
	"billiard-hall/internal/usecase/commands"
	"billiard-hall/internal/usecase/queries"
	"billiard-hall/internal/usecase/reactions"
	"billiard-hall/internal/usecase/readmodel"
	"billiard-hall/internal/usecase/relay"
	"billiard-hall/internal/usecase/shared"

	"go.uber.org/fx"
)

var UseCaseModule = fx.Module("usecase",
	usecaseBaseOption,
	usecaseQueriesModule,
	usecaseReadModelModule,
	usecaseCommandsModule,
	fx.Invoke(RegisterHandlers),
)

var usecaseBaseOption = fx.Provide(
	func(cfg config.Config) *keylock.Locker {
		return keylock.New(cfg.Lock.AcquireTimeout)
	},
	func(cfg config.Config) reservation.Policy {
		return reservation.Policy{
			MaxHorizon:         cfg.Reservation.MaxHorizon,
			CancellationCutoff: cfg.Reservation.CancellationCutoff,
		}
	},
	fx.Annotate(
		func(r *relay.Relay) *relay.Relay { return r },
		fx.As(new(commands.Notifier)),
	),
	fx.Annotate(
		func(b *messaging.Bus) *messaging.Bus { return b },
		fx.As(new(reactions.CommandSender)),
	),
)

var usecaseCommandsModule = fx.Module("usecase/commands",
	fx.Provide(
		func(cfg config.Config, uow shared.UnitOfWork, locks *keylock.Locker, clk clock.Clock, notifier commands.Notifier, logger *slog.Logger) *commands.Pipeline {
			return commands.NewPipeline(uow, locks, clk, notifier, cfg.Idempotency.TTL, logger)
		},
		commands.NewTableCommands,
		commands.NewReservationCommands,
		commands.NewOrderCommands,
		reactions.NewTableReactions,
	),
)

var usecaseReadModelModule = fx.Module("usecase/readmodel",
	fx.Provide(
		readmodel.NewMemberProjector,
		func(store readmodel.ReplicaStore[readmodel.TableReplica], events shared.EventReader, logger *slog.Logger) *readmodel.Projector[readmodel.TableReplica] {
			return readmodel.NewTableProjector(store, events, logger)
		},
	),
)

var usecaseQueriesModule = fx.Module("usecase/queries",
	fx.Provide(
		queries.NewTableQueries,
		queries.NewReservationQueries,
		queries.NewOrderQueries,
	),
)

type registrar interface {
	Register(r *messaging.Registry) error
}

type handlerParams struct {
	fx.In

	Registry     *messaging.Registry
	Tables       *commands.TableCommands
	Reservations *commands.ReservationCommands
	Orders       *commands.OrderCommands
	Reactions    *reactions.TableReactions
	Members      *readmodel.Projector[readmodel.MemberReplica]
	TableReplica *readmodel.Projector[readmodel.TableReplica]
	Logger       *slog.Logger
}

// RegisterHandlers registers every command handler and subscription, then seals
// the registry. A missing handler fails startup.
func RegisterHandlers(p handlerParams) error {
	for _, c := range []registrar{p.Tables, p.Reservations, p.Orders, p.Reactions} {
		if err := c.Register(p.Registry); err != nil {
			return err
		}
	}
	if err := p.Registry.Subscribe(contracts.MemberEvents, p.Members.Name(), p.Members.Handler()); err != nil {
		return err
	}
	if err := p.Registry.Subscribe(contracts.TableEvents, p.TableReplica.Name(), p.TableReplica.Handler()); err != nil {
		return err
	}

	p.Registry.Require(contracts.CommandKinds()...)
	if err := p.Registry.Seal(); err != nil {
		return err
	}
	p.Logger.Info("Handlers registered", slog.Int("subscriptions", len(p.Registry.Subscriptions())))
	return nil
}
