package app

import (
	"sync"

	"github.com/auxroom/auxroom/internal/domain"
)

// roomLocks serializes state machine transitions per room. Every transition
// acquires the room's mutex for its full read-modify-write span, so two
// clients mutating the same room can never interleave and lose an update.
// Rooms are independent; there is no cross-room locking.
type roomLocks struct {
	mu    sync.Mutex
	locks map[domain.RoomID]*sync.Mutex
}

func newRoomLocks() *roomLocks {
	return &roomLocks{locks: make(map[domain.RoomID]*sync.Mutex)}
}

// lock acquires the mutex for id, creating it on first use, and returns the
// matching unlock.
func (l *roomLocks) lock(id domain.RoomID) func() {
	l.mu.Lock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}
