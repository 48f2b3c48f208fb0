package model

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is an immutable point-in-time collection produced by one polling
// cycle. A new cycle replaces it wholesale.
type Snapshot[T any] struct {
	ID      string    `json:"id"`
	TakenAt time.Time `json:"takenAt"`
	Items   []T       `json:"items"`
	// Err is the failure of the cycle that produced it, if any.
	Err error `json:"-"`
}

func NewSnapshot[T any](items []T, err error) *Snapshot[T] {
	return &Snapshot[T]{
		ID:      uuid.NewString(),
		TakenAt: time.Now(),
		Items:   items,
		Err:     err,
	}
}

func (s *Snapshot[T]) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Items)
}
