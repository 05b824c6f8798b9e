package messaging

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DeadLetter is an event a subscriber could not process within the retry budget.
type DeadLetter struct {
	ID         uuid.UUID
	Subscriber string
	Event      Event
	Attempts   int
	LastError  string
	ParkedAt   time.Time
}

type DeadLetterStore interface {
	Park(ctx context.Context, dl DeadLetter) error
	List(ctx context.Context, limit int) ([]DeadLetter, error)
	Remove(ctx context.Context, id uuid.UUID) error
}

type MemoryDeadLetters struct {
	mu      sync.Mutex
	letters []DeadLetter
}

func NewMemoryDeadLetters() *MemoryDeadLetters {
	return &MemoryDeadLetters{}
}

func (m *MemoryDeadLetters) Park(_ context.Context, dl DeadLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.letters = append(m.letters, dl)
	return nil
}

func (m *MemoryDeadLetters) List(_ context.Context, limit int) ([]DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.letters)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]DeadLetter(nil), m.letters[:n]...), nil
}

func (m *MemoryDeadLetters) Remove(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, dl := range m.letters {
		if dl.ID == id {
			m.letters = append(m.letters[:i], m.letters[i+1:]...)
			return nil
		}
	}
	return nil
}
