package bootstrap

import (
	"context"
	"log/slog"

	"billiard-hall/internal/messaging"
	"billiard-hall/internal/pkg/clock"
	"billiard-hall/internal/pkg/config"
	"billiard-hall/internal/usecase/relay"
	"billiard-hall/internal/usecase/shared"

	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"
)

var MessagingModule = fx.Module("messaging",
	fx.Provide(
		clock.NewRealClock,
		messaging.NewRegistry,
		NewBus,
		NewBridge,
		NewRelay,
	),
)

func NewBus(cfg config.Config, registry *messaging.Registry, deadLetters messaging.DeadLetterStore, clk clock.Clock, logger *slog.Logger) *messaging.Bus {
	return messaging.NewBus(registry, deadLetters, clk, logger, messaging.RetryPolicy{
		MaxAttempts:     cfg.Bus.MaxDeliveryAttempts,
		InitialInterval: cfg.Bus.RetryInitialInterval,
		MaxInterval:     cfg.Bus.RetryMaxInterval,
	})
}

// NewBridge returns nil when NATS_URL is empty; the process then runs without
// cross-process transport.
func NewBridge(lc fx.Lifecycle, cfg config.Config, bus *messaging.Bus, logger *slog.Logger) (*messaging.JetStreamBridge, error) {
	if !cfg.NATS.Enabled() {
		logger.Info("JetStream bridge disabled")
		return nil, nil
	}
	bridge, err := messaging.ConnectJetStream(cfg.NATS.URL, cfg.NATS.Stream, cfg.NATS.SubjectPrefix, bus, logger)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			bridge.Close()
			return nil
		},
	})
	return bridge, nil
}

// NewRelay publishes committed events to the local bus and, when enabled, to JetStream.
// A batch leaves the outbox only after every local subscriber handled or parked it.
func NewRelay(cfg config.Config, outbox shared.OutboxStore, bus *messaging.Bus, bridge *messaging.JetStreamBridge, clk clock.Clock, logger *slog.Logger) *relay.Relay {
	publishers := relay.Fanout{relay.PublisherFunc(bus.PublishAndWait)}
	if bridge != nil {
		publishers = append(publishers, bridge)
	}
	return relay.New(outbox, publishers, clk, cfg.Outbox.PollInterval, cfg.Outbox.BatchSize, logger)
}

// StartMessaging starts the bus, the foreign event imports and the outbox relay.
// Handlers are registered and the registry sealed before any start hook runs.
func StartMessaging(lc fx.Lifecycle, cfg config.Config, bus *messaging.Bus, bridge *messaging.JetStreamBridge, r *relay.Relay, logger *slog.Logger) {
	var (
		cancel context.CancelFunc
		group  *errgroup.Group
	)

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			if err := bus.Start(); err != nil {
				return err
			}
			if bridge != nil {
				for _, subject := range cfg.NATS.ImportSubjects {
					if err := bridge.Import(subject, cfg.NATS.Durable); err != nil {
						return err
					}
				}
			}

			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			group, ctx = errgroup.WithContext(ctx)
			group.Go(func() error {
				return r.Run(ctx)
			})
			logger.Info("Messaging started", slog.Bool("jetstream", bridge != nil))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
				if err := group.Wait(); err != nil {
					logger.Warn("Outbox relay stopped with error", slog.String("error", err.Error()))
				}
			}

			drainCtx, drainCancel := context.WithTimeout(ctx, cfg.Bus.DrainTimeout)
			defer drainCancel()
			return bus.Stop(drainCtx)
		},
	})
}
