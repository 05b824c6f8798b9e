package memstore

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Replicas is an in-memory readmodel.ReplicaStore.
type Replicas[S any] struct {
	mu    sync.RWMutex
	items map[uuid.UUID]S
}

func NewReplicas[S any]() *Replicas[S] {
	return &Replicas[S]{items: make(map[uuid.UUID]S)}
}

func (r *Replicas[S]) Load(_ context.Context, id uuid.UUID) (S, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.items[id]
	return v, ok, nil
}

func (r *Replicas[S]) Save(_ context.Context, id uuid.UUID, state S) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[id] = state
	return nil
}
