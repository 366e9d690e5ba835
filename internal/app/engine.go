package app

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/auxroom/auxroom/internal/core"
	"github.com/auxroom/auxroom/internal/domain"
)

// Engine owns the per-room state machine. It serializes every transition
// through a per-room lock, persists through the RoomStore, and publishes the
// result through the Router, strictly in that order, so nothing is ever
// announced before it is stored.
type Engine struct {
	Store    core.RoomStore
	Registry *Registry
	Router   *Router

	locks   *roomLocks
	now     func() time.Time
	shuffle func([]domain.Track) []domain.Track
}

func NewEngine(store core.RoomStore, registry *Registry, router *Router) *Engine {
	return &Engine{
		Store:    store,
		Registry: registry,
		Router:   router,
		locks:    newRoomLocks(),
		now:      time.Now,
		shuffle:  ShuffleTracks,
	}
}

// CreateParams carries the client-supplied fields of a create request.
type CreateParams struct {
	Name            string
	RoomPublic      bool
	RoomPassword    string
	ActiveListeners []string
}

// CreateRoom allocates an id, persists the new room and replies with the id.
// The name defaults to the id; the caller becomes creatorId but that is
// informational only.
func (e *Engine) CreateRoom(ctx context.Context, sid core.SessionID, p CreateParams) (domain.RoomID, error) {
	id, err := e.Store.NextID(ctx)
	if err != nil {
		return "", &domain.CreationError{Err: err}
	}

	name := p.Name
	if name == "" {
		name = string(id)
	}
	listeners := p.ActiveListeners
	if listeners == nil {
		listeners = []string{}
	}

	room := &domain.Room{
		ID:              id,
		Name:            name,
		RoomPublic:      p.RoomPublic,
		RoomPassword:    p.RoomPassword,
		CreatorID:       string(sid),
		ActiveListeners: listeners,
		Queue:           []domain.Track{},
		ShuffledQueue:   []domain.Track{},
		History:         []*domain.TrackState{},
	}

	if err := e.Store.CreateRoom(ctx, room); err != nil {
		return "", &domain.CreationError{Err: err}
	}
	log.Info().Str("module", "app.engine").Str("room", string(id)).Str("name", name).Bool("public", p.RoomPublic).Msg("room created")

	e.Router.Unicast(sid, core.EventRoomCreate, string(id))
	e.publishRoom(ctx, sid, id, false)
	e.publishRooms(ctx, sid, true)
	return id, nil
}

// Join attaches the session to a room. Private rooms require password
// equality; a mismatch rejects without touching any state. A session already
// in another room leaves it first, keeping membership at most one room.
func (e *Engine) Join(ctx context.Context, sid core.SessionID, roomID domain.RoomID, username, password string) error {
	if prev, ok := e.Registry.RoomOf(sid); ok && prev != roomID {
		if _, err := e.Leave(ctx, sid); err != nil {
			log.Warn().Err(err).Str("module", "app.engine").Str("sid", string(sid)).Msg("implicit leave before join failed")
		}
	}

	unlock := e.locks.lock(roomID)
	defer unlock()

	room, err := e.Store.FindRoomByID(ctx, roomID, true)
	if err != nil {
		return err
	}
	if !room.RoomPublic && room.RoomPassword != password {
		return domain.ErrWrongPassword
	}

	if username != "" {
		e.Registry.SetUsername(sid, username)
	}
	if !room.HasListener(username) {
		listeners := append(room.ActiveListeners, username)
		if err := e.Store.UpdateRoom(ctx, roomID, core.RoomPatch{ActiveListeners: &listeners}); err != nil {
			return err
		}
	}
	e.Registry.AttachRoom(sid, roomID)
	log.Info().Str("module", "app.engine").Str("sid", string(sid)).Str("room", string(roomID)).Str("listener", username).Msg("joined room")

	e.publishRooms(ctx, sid, true)
	e.publishRoom(ctx, sid, roomID, true)
	return nil
}

// Leave detaches the session from its current room, if any. With no active
// room it is a safe no-op returning an empty id.
func (e *Engine) Leave(ctx context.Context, sid core.SessionID) (domain.RoomID, error) {
	roomID, ok := e.Registry.RoomOf(sid)
	if !ok {
		return "", nil
	}
	username := e.Registry.Username(sid)

	unlock := e.locks.lock(roomID)
	defer unlock()

	room, err := e.Store.FindRoomByID(ctx, roomID, false)
	if err != nil {
		return roomID, err
	}
	listeners := make([]string, 0, len(room.ActiveListeners))
	for _, l := range room.ActiveListeners {
		if l != username {
			listeners = append(listeners, l)
		}
	}
	if err := e.Store.UpdateRoom(ctx, roomID, core.RoomPatch{ActiveListeners: &listeners}); err != nil {
		return roomID, err
	}
	// detach only once the record reflects it; a failed write leaves both
	// membership views as they were
	e.Registry.DetachRoom(sid)
	log.Info().Str("module", "app.engine").Str("sid", string(sid)).Str("room", string(roomID)).Int("listeners", len(listeners)).Msg("left room")

	e.publishRooms(ctx, sid, true)
	e.publishRoom(ctx, sid, roomID, true)
	return roomID, nil
}

// OnDisconnect treats a dropped connection as an implicit leave. The caller
// passes its own connection: after a rebind under the same session id, the
// stale pump's teardown must not touch the live connection's state.
func (e *Engine) OnDisconnect(ctx context.Context, sid core.SessionID, conn core.SignalConnection) {
	if current, ok := e.Registry.Conn(sid); !ok || current != conn {
		return
	}
	if _, err := e.Leave(ctx, sid); err != nil {
		log.Warn().Err(err).Str("module", "app.engine").Str("sid", string(sid)).Msg("leave on disconnect failed")
	}
	e.Registry.Unbind(sid, conn)
}

// RelayChat fans a chat message out to the sender's room. No state changes.
func (e *Engine) RelayChat(sid core.SessionID, payload json.RawMessage) {
	roomID, ok := e.Registry.RoomOf(sid)
	if !ok {
		return
	}
	e.Router.RoomCast(roomID, core.EventChatMessage, payload)
}

// ListRooms returns the public listing, secrets stripped.
func (e *Engine) ListRooms(ctx context.Context) ([]*domain.Room, error) {
	return e.Store.AllRooms(ctx)
}

// SendAvailableRooms unicasts the listing to one session on request.
func (e *Engine) SendAvailableRooms(ctx context.Context, sid core.SessionID) error {
	return e.publishRooms(ctx, sid, false)
}

// SendRoomPrivacy unicasts the room's roomPublic flag.
func (e *Engine) SendRoomPrivacy(ctx context.Context, sid core.SessionID, roomID domain.RoomID) error {
	room, err := e.Store.FindRoomByID(ctx, roomID, false)
	if err != nil {
		return err
	}
	e.Router.Unicast(sid, core.EventRoomIsPrivate, room.RoomPublic)
	return nil
}

// SendPasswordCheck unicasts whether the supplied password matches. It never
// mutates state or joins the room.
func (e *Engine) SendPasswordCheck(ctx context.Context, sid core.SessionID, roomID domain.RoomID, password string) error {
	room, err := e.Store.FindRoomByID(ctx, roomID, true)
	if err != nil {
		return err
	}
	e.Router.Unicast(sid, core.EventPasswordCorrect, room.RoomPassword == password)
	return nil
}

// publishRoom re-reads the room and casts the full snapshot, either to the
// whole room or back to one session.
func (e *Engine) publishRoom(ctx context.Context, sid core.SessionID, roomID domain.RoomID, toRoom bool) {
	room, err := e.Store.FindRoomByID(ctx, roomID, false)
	if err != nil {
		log.Error().Err(err).Str("module", "app.engine").Str("room", string(roomID)).Msg("read for room broadcast failed")
		return
	}
	if toRoom {
		e.Router.RoomCast(roomID, core.EventRoomFullInfo, room)
	} else {
		e.Router.Unicast(sid, core.EventRoomFullInfo, room)
	}
}

// publishRooms casts the public room listing, globally or back to one session.
func (e *Engine) publishRooms(ctx context.Context, sid core.SessionID, toAll bool) error {
	rooms, err := e.Store.AllRooms(ctx)
	if err != nil {
		log.Error().Err(err).Str("module", "app.engine").Msg("read for listing broadcast failed")
		return err
	}
	if toAll {
		e.Router.GlobalCast(core.EventRoomSetAll, rooms)
	} else {
		e.Router.Unicast(sid, core.EventRoomSetAll, rooms)
	}
	return nil
}
