package core

import (
	"context"

	"github.com/auxroom/auxroom/internal/domain"
)

// RoomStore is the system of record for room state. Each call must be atomic
// on its own; the engine serializes whole read-modify-write cycles per room
// on top of it, so implementations never see two concurrent updates for the
// same room.
type RoomStore interface {
	// NextID allocates a fresh room identifier of the form "room<N>".
	NextID(ctx context.Context) (domain.RoomID, error)
	CreateRoom(ctx context.Context, room *domain.Room) error
	// FindRoomByID returns domain.ErrRoomNotFound for unknown ids. With
	// includeSecrets false the password field is cleared.
	FindRoomByID(ctx context.Context, id domain.RoomID, includeSecrets bool) (*domain.Room, error)
	UpdateRoom(ctx context.Context, id domain.RoomID, patch RoomPatch) error
	// AllRooms lists every room, secrets stripped.
	AllRooms(ctx context.Context) ([]*domain.Room, error)
}

// RoomPatch is a partial room update; nil fields are left untouched.
// CurrentTrack is double-pointered so a patch can set it to null.
type RoomPatch struct {
	Name            *string
	ActiveListeners *[]string
	Queue           *[]domain.Track
	Shuffled        *bool
	ShuffledQueue   *[]domain.Track
	CurrentTrack    **domain.TrackState
	History         *[]*domain.TrackState
}
