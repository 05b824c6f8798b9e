package messaging

import (
	"context"
	"sort"
	"sync"

	"billiard-hall/internal/pkg/errs"
)

type CommandHandler interface {
	Handle(ctx context.Context, cmd Command) (Result, error)
}

type CommandHandlerFunc func(ctx context.Context, cmd Command) (Result, error)

func (f CommandHandlerFunc) Handle(ctx context.Context, cmd Command) (Result, error) {
	return f(ctx, cmd)
}

// EventHandler must be idempotent: the bus delivers at least once.
type EventHandler interface {
	Handle(ctx context.Context, evt Event) error
}

type EventHandlerFunc func(ctx context.Context, evt Event) error

func (f EventHandlerFunc) Handle(ctx context.Context, evt Event) error {
	return f(ctx, evt)
}

type Subscription struct {
	Kind    Kind
	Name    string
	Handler EventHandler
}

// Registry is filled once at the composition root and sealed before use.
type Registry struct {
	mu            sync.RWMutex
	commands      map[Kind][]CommandHandler
	subscriptions []Subscription
	required      map[Kind]struct{}
	sealed        bool
}

func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[Kind][]CommandHandler),
		required: make(map[Kind]struct{}),
	}
}

// RegisterCommand records a handler. Duplicates are reported by Seal.
func (r *Registry) RegisterCommand(kind Kind, handler CommandHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return errs.Wrapf(ErrRegistrySealed, "register command %s", kind)
	}
	if kind == "" || handler == nil {
		return errs.Wrap(ErrInvalidEnvelope, "register command: empty kind or nil handler")
	}
	r.commands[kind] = append(r.commands[kind], handler)
	return nil
}

func (r *Registry) Subscribe(kind Kind, name string, handler EventHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return errs.Wrapf(ErrRegistrySealed, "subscribe %s to %s", name, kind)
	}
	if kind == "" || name == "" || handler == nil {
		return errs.Wrap(ErrInvalidEnvelope, "subscribe: empty kind, empty name or nil handler")
	}
	for _, s := range r.subscriptions {
		if s.Kind == kind && s.Name == name {
			return errs.Wrapf(ErrHandlerConflict, "subscriber %s already subscribed to %s", name, kind)
		}
	}
	r.subscriptions = append(r.subscriptions, Subscription{Kind: kind, Name: name, Handler: handler})
	return nil
}

// Require marks command kinds that must have a handler when the registry is sealed.
func (r *Registry) Require(kinds ...Kind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range kinds {
		r.required[k] = struct{}{}
	}
}

// Seal validates the registrations and freezes the registry.
func (r *Registry) Seal() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sealed {
		return nil
	}

	var problems []error
	for _, kind := range sortedKinds(r.commands) {
		if n := len(r.commands[kind]); n > 1 {
			problems = append(problems, errs.Wrapf(ErrHandlerConflict, "%d handlers for %s", n, kind))
		}
	}
	for _, kind := range sortedKinds(r.required) {
		if len(r.commands[kind]) == 0 {
			problems = append(problems, errs.Wrapf(ErrNoHandlerRegistered, "required command %s", kind))
		}
	}
	if len(problems) > 0 {
		return errs.Join(problems...)
	}

	r.sealed = true
	return nil
}

func (r *Registry) Sealed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sealed
}

func (r *Registry) commandHandler(kind Kind) (CommandHandler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handlers := r.commands[kind]
	switch len(handlers) {
	case 0:
		return nil, errs.Wrapf(ErrNoHandlerRegistered, "command %s", kind)
	case 1:
		return handlers[0], nil
	default:
		return nil, errs.Wrapf(ErrHandlerConflict, "command %s", kind)
	}
}

func (r *Registry) Subscriptions() []Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Subscription(nil), r.subscriptions...)
}

func sortedKinds[V any](m map[Kind]V) []Kind {
	kinds := make([]Kind, 0, len(m))
	for k := range m {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
