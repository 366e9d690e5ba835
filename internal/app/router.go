package app

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/auxroom/auxroom/internal/core"
	"github.com/auxroom/auxroom/internal/domain"
)

// Router selects the delivery set for an outbound event: the originating
// session, every session in a room, or every connected session. It wraps
// payloads in the server envelope and does nothing else to them.
type Router struct {
	registry *Registry
}

func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

func (rt *Router) Unicast(sid core.SessionID, event string, payload any) {
	frame, ok := rt.marshal(event, payload)
	if !ok {
		return
	}
	conn, ok := rt.registry.Conn(sid)
	if !ok {
		return
	}
	rt.deliver(SessionSnap{SID: sid, Conn: conn}, event, frame)
}

func (rt *Router) RoomCast(roomID domain.RoomID, event string, payload any) {
	frame, ok := rt.marshal(event, payload)
	if !ok {
		return
	}
	for _, snap := range rt.registry.SessionsInRoom(roomID) {
		rt.deliver(snap, event, frame)
	}
}

func (rt *Router) GlobalCast(event string, payload any) {
	frame, ok := rt.marshal(event, payload)
	if !ok {
		return
	}
	for _, snap := range rt.registry.AllSessions() {
		rt.deliver(snap, event, frame)
	}
}

func (rt *Router) marshal(event string, payload any) (core.Frame, bool) {
	b, err := json.Marshal(core.ServerEnvelope(event, payload))
	if err != nil {
		log.Error().Err(err).Str("module", "app.router").Str("event", event).Msg("marshal envelope")
		return nil, false
	}
	return b, true
}

// deliver drops the session on backpressure: a client that cannot keep up
// with state fan-out is disconnected rather than queued unbounded.
func (rt *Router) deliver(snap SessionSnap, event string, frame core.Frame) {
	if err := snap.Conn.TrySend(frame); err != nil {
		log.Warn().Err(err).Str("module", "app.router").Str("sid", string(snap.SID)).Str("event", event).Msg("dropping slow session")
		rt.registry.Cancel(snap.SID)
	}
}
