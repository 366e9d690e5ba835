// Package domain contains entity without logic, just meta-data
package domain

import "time"

type RoomID string

const MaxRoomNameLen = 64

// Track is a catalog reference plus display metadata. Identity is the URI;
// find-and-remove on queues compares URIs only.
type Track struct {
	URI        string `json:"uri"`
	Name       string `json:"name,omitempty"`
	Artists    string `json:"artists,omitempty"`
	Album      string `json:"album,omitempty"`
	DurationMS int    `json:"duration_ms,omitempty"`
	Image      string `json:"image,omitempty"`
}

// TrackState is the shared player position for the currently loaded track.
type TrackState struct {
	URI        string    `json:"uri"`
	PositionMS int       `json:"position_ms"`
	Paused     bool      `json:"paused"`
	Timestamp  time.Time `json:"timestamp"`
}

// Room is the persisted record for one listening session. CurrentTrack is nil
// when nothing is loaded; History entries may be nil (the snapshot taken by
// the first forward skip on a fresh room).
type Room struct {
	ID              RoomID        `json:"id"`
	Name            string        `json:"name"`
	RoomPublic      bool          `json:"roomPublic"`
	RoomPassword    string        `json:"roomPassword,omitempty"`
	CreatorID       string        `json:"creatorId"`
	ActiveListeners []string      `json:"activeListeners"`
	Queue           []Track       `json:"queue"`
	Shuffled        bool          `json:"shuffled"`
	ShuffledQueue   []Track       `json:"shuffledQueue"`
	CurrentTrack    *TrackState   `json:"currentTrack"`
	History         []*TrackState `json:"history"`
}

func (r *Room) HasListener(name string) bool {
	for _, l := range r.ActiveListeners {
		if l == name {
			return true
		}
	}
	return false
}
