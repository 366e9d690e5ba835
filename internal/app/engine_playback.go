package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/auxroom/auxroom/internal/core"
	"github.com/auxroom/auxroom/internal/domain"
)

// Enqueue appends a track to the room's queue. On a room with nothing
// loaded the append immediately triggers one forward skip, so playback
// starts by itself.
func (e *Engine) Enqueue(ctx context.Context, roomID domain.RoomID, track domain.Track) error {
	unlock := e.locks.lock(roomID)
	defer unlock()

	room, err := e.Store.FindRoomByID(ctx, roomID, false)
	if err != nil {
		return err
	}
	queue := append(room.Queue, track)
	if err := e.Store.UpdateRoom(ctx, roomID, core.RoomPatch{Queue: &queue}); err != nil {
		return err
	}
	e.publishRoom(ctx, "", roomID, true)

	if room.CurrentTrack == nil {
		return e.skipForwardLocked(ctx, roomID)
	}
	return nil
}

// ClearQueue empties the queue (and its shuffled permutation, which may only
// ever hold remaining queue entries). Current track and history stay as they
// are.
func (e *Engine) ClearQueue(ctx context.Context, roomID domain.RoomID) error {
	unlock := e.locks.lock(roomID)
	defer unlock()

	empty := []domain.Track{}
	emptyShuffled := []domain.Track{}
	patch := core.RoomPatch{Queue: &empty, ShuffledQueue: &emptyShuffled}
	if err := e.Store.UpdateRoom(ctx, roomID, patch); err != nil {
		return err
	}
	e.publishRoom(ctx, "", roomID, true)
	return nil
}

// SkipForward loads the next track from the shuffled queue when shuffle is
// on, otherwise from the queue head.
func (e *Engine) SkipForward(ctx context.Context, roomID domain.RoomID) error {
	unlock := e.locks.lock(roomID)
	defer unlock()
	return e.skipForwardLocked(ctx, roomID)
}

// skipForwardLocked is the transition body; the caller holds the room lock.
// With both sources empty the room is left untouched and nothing is
// broadcast.
func (e *Engine) skipForwardLocked(ctx context.Context, roomID domain.RoomID) error {
	room, err := e.Store.FindRoomByID(ctx, roomID, false)
	if err != nil {
		return err
	}

	var next domain.Track
	switch {
	case room.Shuffled && len(room.ShuffledQueue) > 0:
		next = room.ShuffledQueue[0]
		room.ShuffledQueue = room.ShuffledQueue[1:]
		room.Queue = removeTrack(room.Queue, next.URI)
	case len(room.Queue) > 0:
		next = room.Queue[0]
		room.Queue = room.Queue[1:]
	default:
		return nil
	}

	history := append(room.History, room.CurrentTrack)
	current := &domain.TrackState{URI: next.URI, Timestamp: e.now()}

	patch := core.RoomPatch{
		Queue:        &room.Queue,
		History:      &history,
		CurrentTrack: &current,
	}
	if room.Shuffled {
		patch.ShuffledQueue = &room.ShuffledQueue
	}
	if err := e.Store.UpdateRoom(ctx, roomID, patch); err != nil {
		return err
	}
	log.Info().Str("module", "app.engine").Str("room", string(roomID)).Str("uri", next.URI).Msg("skipped forward")
	e.publishRoom(ctx, "", roomID, true)
	return nil
}

// SkipBackward pops the last history snapshot back onto the player. The
// outgoing track returns to the front of the queue so that an immediate
// forward skip restores it. Empty history is a no-op; a nil snapshot puts
// the room back to its empty state.
func (e *Engine) SkipBackward(ctx context.Context, roomID domain.RoomID) error {
	unlock := e.locks.lock(roomID)
	defer unlock()

	room, err := e.Store.FindRoomByID(ctx, roomID, false)
	if err != nil {
		return err
	}
	if len(room.History) == 0 {
		return nil
	}

	prev := room.History[len(room.History)-1]
	history := room.History[:len(room.History)-1]

	queue := room.Queue
	shuffledQueue := room.ShuffledQueue
	if out := room.CurrentTrack; out != nil {
		requeued := domain.Track{URI: out.URI}
		queue = append([]domain.Track{requeued}, queue...)
		if room.Shuffled {
			shuffledQueue = append([]domain.Track{requeued}, shuffledQueue...)
		}
	}

	var current *domain.TrackState
	if prev != nil {
		current = &domain.TrackState{URI: prev.URI, Timestamp: e.now()}
	}

	patch := core.RoomPatch{
		Queue:        &queue,
		History:      &history,
		CurrentTrack: &current,
	}
	if room.Shuffled {
		patch.ShuffledQueue = &shuffledQueue
	}
	if err := e.Store.UpdateRoom(ctx, roomID, patch); err != nil {
		return err
	}
	log.Info().Str("module", "app.engine").Str("room", string(roomID)).Msg("skipped backward")
	e.publishRoom(ctx, "", roomID, true)
	return nil
}

// SetPlaybackState flips only the paused flag of the loaded track. With
// nothing loaded there is nothing to pause, so the call is a no-op.
func (e *Engine) SetPlaybackState(ctx context.Context, roomID domain.RoomID, paused bool) error {
	unlock := e.locks.lock(roomID)
	defer unlock()

	room, err := e.Store.FindRoomByID(ctx, roomID, false)
	if err != nil {
		return err
	}
	if room.CurrentTrack == nil {
		return nil
	}
	state := *room.CurrentTrack
	state.Paused = paused
	current := &state
	if err := e.Store.UpdateRoom(ctx, roomID, core.RoomPatch{CurrentTrack: &current}); err != nil {
		return err
	}
	e.publishRoom(ctx, "", roomID, true)
	return nil
}

// ToggleShuffle computes a fresh permutation of the queue when enabling;
// disabling clears the permutation, which is not authoritative until shuffle
// comes back on.
func (e *Engine) ToggleShuffle(ctx context.Context, roomID domain.RoomID, shuffled bool) error {
	unlock := e.locks.lock(roomID)
	defer unlock()

	room, err := e.Store.FindRoomByID(ctx, roomID, false)
	if err != nil {
		return err
	}
	shuffledQueue := []domain.Track{}
	if shuffled && len(room.Queue) > 0 {
		shuffledQueue = e.shuffle(room.Queue)
	}
	patch := core.RoomPatch{Shuffled: &shuffled, ShuffledQueue: &shuffledQueue}
	if err := e.Store.UpdateRoom(ctx, roomID, patch); err != nil {
		return err
	}
	log.Info().Str("module", "app.engine").Str("room", string(roomID)).Bool("shuffled", shuffled).Msg("toggled shuffle")
	e.publishRoom(ctx, "", roomID, true)
	return nil
}

// removeTrack drops the first entry matching uri.
func removeTrack(tracks []domain.Track, uri string) []domain.Track {
	for i, t := range tracks {
		if t.URI == uri {
			return append(tracks[:i:i], tracks[i+1:]...)
		}
	}
	return tracks
}
