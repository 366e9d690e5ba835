// Package store provides RoomStore implementations: redis as the production
// system of record and an in-memory store for debug mode and tests.
package store

import (
	"github.com/auxroom/auxroom/internal/core"
	"github.com/auxroom/auxroom/internal/domain"
)

// applyPatch writes the set fields of p onto room, in place.
func applyPatch(room *domain.Room, p core.RoomPatch) {
	if p.Name != nil {
		room.Name = *p.Name
	}
	if p.ActiveListeners != nil {
		room.ActiveListeners = *p.ActiveListeners
	}
	if p.Queue != nil {
		room.Queue = *p.Queue
	}
	if p.Shuffled != nil {
		room.Shuffled = *p.Shuffled
	}
	if p.ShuffledQueue != nil {
		room.ShuffledQueue = *p.ShuffledQueue
	}
	if p.CurrentTrack != nil {
		room.CurrentTrack = *p.CurrentTrack
	}
	if p.History != nil {
		room.History = *p.History
	}
}

// cloneRoom deep-copies a room so callers can never alias store-owned state.
func cloneRoom(r *domain.Room) *domain.Room {
	c := *r
	c.ActiveListeners = append([]string(nil), r.ActiveListeners...)
	c.Queue = append([]domain.Track(nil), r.Queue...)
	c.ShuffledQueue = append([]domain.Track(nil), r.ShuffledQueue...)
	if r.CurrentTrack != nil {
		ct := *r.CurrentTrack
		c.CurrentTrack = &ct
	}
	c.History = make([]*domain.TrackState, len(r.History))
	for i, h := range r.History {
		if h != nil {
			hc := *h
			c.History[i] = &hc
		}
	}
	return &c
}
