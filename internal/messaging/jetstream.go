package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"billiard-hall/internal/pkg/errs"

	"github.com/nats-io/nats.go"
)

// JetStreamBridge connects the in-process bus to other modules over NATS JetStream.
// Local events are exported to "<prefix>.event.<kind>" and foreign events
// (e.g. from the Members module) are imported into Bus.Publish.
type JetStreamBridge struct {
	conn   *nats.Conn
	js     nats.JetStreamContext
	bus    *Bus
	prefix string
	logger *slog.Logger

	subs []*nats.Subscription
}

func ConnectJetStream(url string, stream string, prefix string, bus *Bus, logger *slog.Logger) (*JetStreamBridge, error) {
	conn, err := nats.Connect(url, nats.Name("billiard-hall"))
	if err != nil {
		return nil, errs.MarkKind(errs.Wrap(err, "connect nats"), errs.KindInfrastructure)
	}
	js, err := conn.JetStream()
	if err != nil {
		_ = conn.Drain()
		conn.Close()
		return nil, errs.Wrap(err, "open jetstream context")
	}
	if err := EnsureStream(js, stream, []string{prefix + ".event.>"}); err != nil {
		_ = conn.Drain()
		conn.Close()
		return nil, err
	}
	return &JetStreamBridge{conn: conn, js: js, bus: bus, prefix: prefix, logger: logger}, nil
}

// EnsureStream creates the stream when it does not exist yet.
func EnsureStream(js nats.JetStreamContext, name string, subjects []string) error {
	if _, err := js.StreamInfo(name); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return errs.Wrapf(err, "stream info %s", name)
		}
		if _, addErr := js.AddStream(&nats.StreamConfig{
			Name:       name,
			Subjects:   subjects,
			Retention:  nats.LimitsPolicy,
			Storage:    nats.FileStorage,
			Replicas:   1,
			Duplicates: 2 * time.Minute,
		}); addErr != nil {
			return errs.Wrapf(addErr, "add stream %s", name)
		}
	}
	return nil
}

func SubjectFor(prefix string, kind Kind) string {
	return prefix + ".event." + string(kind)
}

// Exporter returns a subscriber that republishes each event to JetStream.
// The event id doubles as Nats-Msg-Id so retried exports are dropped server side.
func (b *JetStreamBridge) Exporter() EventHandler {
	return EventHandlerFunc(func(ctx context.Context, evt Event) error {
		data, err := json.Marshal(evt)
		if err != nil {
			return errs.MarkKind(errs.Wrap(err, "marshal event"), errs.KindValidation)
		}
		msg := nats.NewMsg(SubjectFor(b.prefix, evt.Kind))
		msg.Data = data
		msg.Header.Set(nats.MsgIdHdr, evt.ID.String())
		if _, err := b.js.PublishMsg(msg, nats.Context(ctx)); err != nil {
			return errs.MarkKind(errs.Wrapf(err, "export %s", evt.Kind), errs.KindInfrastructure)
		}
		return nil
	})
}

// Publish exports events in order, so the bridge can sit behind the outbox relay.
func (b *JetStreamBridge) Publish(ctx context.Context, events ...Event) error {
	export := b.Exporter()
	for _, evt := range events {
		if err := export.Handle(ctx, evt); err != nil {
			return err
		}
	}
	return nil
}

// importAckWait bounds how long one imported event may take to be handled
// before JetStream redelivers it.
const importAckWait = 30 * time.Second

// Import subscribes durably to subject and feeds decoded events into the bus.
// A message is acked only after every subscriber handled or parked it, so a
// crash before that leaves it for redelivery. One unacked message at a time
// keeps the consumer in stream order; replicas without a gap filler rely on it.
func (b *JetStreamBridge) Import(subject string, durable string) error {
	sub, err := b.js.Subscribe(subject, func(msg *nats.Msg) {
		evt, err := DecodeWireEvent(msg.Data)
		if err != nil {
			b.logger.Warn("Discarding undecodable event",
				slog.String("subject", msg.Subject),
				slog.String("error", err.Error()),
			)
			_ = msg.Term()
			return
		}
		if err := b.handleImported(evt); err != nil {
			b.logger.Warn("Imported event not handled, asking for redelivery",
				slog.String("kind", string(evt.Kind)),
				slog.String("aggregate_id", evt.AggregateID.String()),
				slog.Uint64("version", evt.Version),
				slog.String("error", err.Error()),
			)
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(durableName(durable, subject)),
		nats.ManualAck(),
		nats.DeliverAll(),
		nats.AckWait(importAckWait),
		nats.MaxAckPending(1),
	)
	if err != nil {
		return errs.Wrapf(err, "subscribe %s", subject)
	}
	b.subs = append(b.subs, sub)
	b.logger.Info("Importing events", slog.String("subject", subject))
	return nil
}

func (b *JetStreamBridge) handleImported(evt Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), importAckWait)
	defer cancel()
	return b.bus.PublishAndWait(ctx, evt)
}

func (b *JetStreamBridge) Close() {
	if b == nil || b.conn == nil {
		return
	}
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
	_ = b.conn.Drain()
	b.conn.Close()
}

// DecodeWireEvent parses an exported event and validates its envelope.
func DecodeWireEvent(data []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return Event{}, errs.MarkKind(errs.Wrap(err, "decode wire event"), errs.KindValidation)
	}
	if err := evt.Validate(); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// durableName derives one durable per imported subject; NATS forbids '.', '*' and '>' in names.
func durableName(base, subject string) string {
	r := strings.NewReplacer(".", "_", "*", "any", ">", "all")
	return base + "_" + r.Replace(subject)
}
