package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/auxroom/auxroom/internal/core"
	"github.com/auxroom/auxroom/internal/domain"
)

// MemoryStore keeps room records in a map. It backs debug mode and tests;
// semantics mirror the redis store exactly.
type MemoryStore struct {
	mu     sync.RWMutex
	rooms  map[domain.RoomID]*domain.Room
	nextID int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[domain.RoomID]*domain.Room)}
}

func (s *MemoryStore) NextID(_ context.Context) (domain.RoomID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	return domain.RoomID(fmt.Sprintf("room%d", s.nextID)), nil
}

func (s *MemoryStore) CreateRoom(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[room.ID]; ok {
		return fmt.Errorf("room %s already exists", room.ID)
	}
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

func (s *MemoryStore) FindRoomByID(_ context.Context, id domain.RoomID, includeSecrets bool) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	out := cloneRoom(room)
	if !includeSecrets {
		out.RoomPassword = ""
	}
	return out, nil
}

func (s *MemoryStore) UpdateRoom(_ context.Context, id domain.RoomID, patch core.RoomPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return domain.ErrRoomNotFound
	}
	applyPatch(room, patch)
	return nil
}

func (s *MemoryStore) AllRooms(_ context.Context) ([]*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		c := cloneRoom(room)
		c.RoomPassword = ""
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
