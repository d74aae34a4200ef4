// Package learnerlock serializes read-modify-write work per learner.
package learnerlock

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Locker hands out an exclusive lock per learner. The returned unlock must be
// called exactly once; it is safe to call from a different goroutine.
type Locker interface {
	Lock(ctx context.Context, learnerID uuid.UUID) (unlock func(), err error)
}

// Memory is an in-process Locker. Idle entries are dropped so the map only
// holds learners with a holder or waiters.
type Memory struct {
	mu    sync.Mutex
	slots map[uuid.UUID]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewMemory() *Memory {
	return &Memory{slots: map[uuid.UUID]*slot{}}
}

func (m *Memory) Lock(ctx context.Context, learnerID uuid.UUID) (func(), error) {
	m.mu.Lock()
	s, ok := m.slots[learnerID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		m.slots[learnerID] = s
	}
	s.refs++
	m.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		m.release(learnerID, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			m.release(learnerID, s)
		})
	}, nil
}

func (m *Memory) release(learnerID uuid.UUID, s *slot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(m.slots, learnerID)
	}
}

// held reports how many learners currently have a holder or waiters.
func (m *Memory) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.slots)
}
