package readmodel

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"billiard-hall/internal/messaging"
	"billiard-hall/internal/pkg/errs"

	"github.com/google/uuid"
)

// Replica is a local copy of another module's aggregate, tagged with the last
// event version folded into it.
type Replica[S any] interface {
	SyncedVersion() uint64
	WithSyncedVersion(version uint64) S
}

// ReplicaStore persists replicas by aggregate id. Load reports found=false for
// aggregates never seen, which the projector treats as version 0.
type ReplicaStore[S any] interface {
	Load(ctx context.Context, id uuid.UUID) (state S, found bool, err error)
	Save(ctx context.Context, id uuid.UUID, state S) error
}

// GapFiller returns the events of an aggregate after a version, in order.
// shared.EventReader satisfies it.
type GapFiller interface {
	Since(ctx context.Context, aggregateID uuid.UUID, afterVersion uint64) ([]messaging.Event, error)
}

// FoldFunc applies one event to a replica. found is false for the first event.
type FoldFunc[S any] func(state S, found bool, evt messaging.Event) (S, error)

type Outcome int

const (
	OutcomeApplied Outcome = iota + 1
	OutcomeDuplicate
	OutcomeBuffered
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeBuffered:
		return "buffered"
	default:
		return "unknown"
	}
}

// Projector folds events into replicas strictly in version order.
//
// Versions at or below the replica's synced version are ignored. A version that
// skips ahead is buffered until the missing ones arrive, either through the
// GapFiller or through later deliveries, and the buffer is drained in order.
type Projector[S Replica[S]] struct {
	name   string
	store  ReplicaStore[S]
	fold   FoldFunc[S]
	filler GapFiller
	logger *slog.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]map[uint64]messaging.Event
}

// NewProjector builds a projector. filler may be nil when the source of the
// events is remote.
func NewProjector[S Replica[S]](name string, store ReplicaStore[S], fold FoldFunc[S], filler GapFiller, logger *slog.Logger) *Projector[S] {
	return &Projector[S]{
		name:    name,
		store:   store,
		fold:    fold,
		filler:  filler,
		logger:  logger,
		pending: make(map[uuid.UUID]map[uint64]messaging.Event),
	}
}

func (p *Projector[S]) Name() string { return p.name }

func (p *Projector[S]) Apply(ctx context.Context, evt messaging.Event) (Outcome, error) {
	if err := evt.Validate(); err != nil {
		return 0, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	state, found, err := p.store.Load(ctx, evt.AggregateID)
	if err != nil {
		return 0, errs.Wrapf(err, "load %s replica %s", p.name, evt.AggregateID)
	}
	last := uint64(0)
	if found {
		last = state.SyncedVersion()
	}
	if evt.Version <= last {
		return OutcomeDuplicate, nil
	}

	p.buffer(evt)
	if evt.Version > last+1 && p.filler != nil {
		if err := p.fill(ctx, evt.AggregateID, last, evt.Version); err != nil {
			return OutcomeBuffered, err
		}
	}

	applied, err := p.drain(ctx, evt.AggregateID, state, found, last)
	if err != nil {
		return 0, err
	}
	if applied == 0 {
		p.logger.Warn("Replica gap detected, event buffered",
			slog.String("projector", p.name),
			slog.String("aggregate_id", evt.AggregateID.String()),
			slog.Uint64("synced_version", last),
			slog.Uint64("version", evt.Version),
		)
		return OutcomeBuffered, nil
	}
	return OutcomeApplied, nil
}

// Handler adapts the projector to a bus subscription.
func (p *Projector[S]) Handler() messaging.EventHandler {
	return messaging.EventHandlerFunc(func(ctx context.Context, evt messaging.Event) error {
		_, err := p.Apply(ctx, evt)
		return err
	})
}

// Buffered returns the buffered versions of an aggregate in ascending order.
func (p *Projector[S]) Buffered(id uuid.UUID) []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	versions := make([]uint64, 0, len(p.pending[id]))
	for v := range p.pending[id] {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions
}

func (p *Projector[S]) buffer(evt messaging.Event) {
	byVersion, ok := p.pending[evt.AggregateID]
	if !ok {
		byVersion = make(map[uint64]messaging.Event)
		p.pending[evt.AggregateID] = byVersion
	}
	byVersion[evt.Version] = evt
}

func (p *Projector[S]) fill(ctx context.Context, id uuid.UUID, last, upTo uint64) error {
	missing, err := p.filler.Since(ctx, id, last)
	if err != nil {
		return errs.Wrapf(err, "fill %s replica gap after v%d", p.name, last)
	}
	for _, evt := range missing {
		if evt.Version > last && evt.Version < upTo {
			p.buffer(evt)
		}
	}
	return nil
}

// drain folds consecutive buffered events starting at last+1 and saves after each.
func (p *Projector[S]) drain(ctx context.Context, id uuid.UUID, state S, found bool, last uint64) (int, error) {
	byVersion := p.pending[id]
	applied := 0
	for {
		next, ok := byVersion[last+1]
		if !ok {
			break
		}
		folded, err := p.fold(state, found, next)
		if err != nil {
			return applied, errs.Wrapf(err, "fold %s v%d into %s replica", next.Kind, next.Version, p.name)
		}
		folded = folded.WithSyncedVersion(next.Version)
		if err := p.store.Save(ctx, id, folded); err != nil {
			return applied, errs.Wrapf(err, "save %s replica %s", p.name, id)
		}
		delete(byVersion, next.Version)
		state, found, last = folded, true, next.Version
		applied++
	}

	for v := range byVersion {
		if v <= last {
			delete(byVersion, v)
		}
	}
	if len(byVersion) == 0 {
		delete(p.pending, id)
	}
	return applied, nil
}
