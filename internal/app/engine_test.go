package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/auxroom/auxroom/internal/core"
	"github.com/auxroom/auxroom/internal/domain"
	"github.com/auxroom/auxroom/internal/store"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {}

// events decodes the type field of every received frame, in order.
func (f *fakeConn) events(t *testing.T) []string {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, fr := range f.frames {
		var env struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal(fr, &env))
		out = append(out, env.Type)
	}
	return out
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func newTestEngine() *Engine {
	registry := NewRegistry()
	return NewEngine(store.NewMemoryStore(), registry, NewRouter(registry))
}

func (e *Engine) bindFake(sid core.SessionID) *fakeConn {
	conn := &fakeConn{}
	e.Registry.Bind(sid, conn, nil)
	return conn
}

func track(uri string) domain.Track {
	return domain.Track{URI: uri, Name: "track " + uri}
}

func mustRoom(t *testing.T, e *Engine, id domain.RoomID) *domain.Room {
	t.Helper()
	room, err := e.Store.FindRoomByID(context.Background(), id, true)
	require.NoError(t, err)
	return room
}

func TestCreateRoomDefaultsNameToID(t *testing.T) {
	e := newTestEngine()
	e.bindFake("s1")

	id, err := e.CreateRoom(context.Background(), "s1", CreateParams{RoomPublic: true})
	require.NoError(t, err)
	require.Equal(t, domain.RoomID("room1"), id)

	room := mustRoom(t, e, id)
	require.Equal(t, "room1", room.Name)
	require.Equal(t, "s1", room.CreatorID)
	require.Empty(t, room.Queue)
	require.Empty(t, room.History)
	require.Nil(t, room.CurrentTrack)
}

func TestEnqueueAutoplaysFirstTrack(t *testing.T) {
	e := newTestEngine()
	e.bindFake("s1")
	ctx := context.Background()

	id, err := e.CreateRoom(ctx, "s1", CreateParams{RoomPublic: true})
	require.NoError(t, err)
	require.NoError(t, e.Join(ctx, "s1", id, "ada", ""))

	require.NoError(t, e.Enqueue(ctx, id, track("spotify:track:1")))
	require.NoError(t, e.Enqueue(ctx, id, track("spotify:track:2")))

	room := mustRoom(t, e, id)
	require.NotNil(t, room.CurrentTrack)
	require.Equal(t, "spotify:track:1", room.CurrentTrack.URI)
	require.False(t, room.CurrentTrack.Paused)
	require.Zero(t, room.CurrentTrack.PositionMS)
	require.Len(t, room.Queue, 1)
	require.Equal(t, "spotify:track:2", room.Queue[0].URI)
	require.Equal(t, []*domain.TrackState{nil}, room.History)
}

func TestTrackAccountingInvariant(t *testing.T) {
	e := newTestEngine()
	e.bindFake("s1")
	ctx := context.Background()

	id, err := e.CreateRoom(ctx, "s1", CreateParams{RoomPublic: true})
	require.NoError(t, err)

	uris := []string{"a", "b", "c", "d", "e"}
	for _, u := range uris {
		require.NoError(t, e.Enqueue(ctx, id, track(u)))
	}
	require.NoError(t, e.SkipForward(ctx, id))
	require.NoError(t, e.SkipForward(ctx, id))

	room := mustRoom(t, e, id)
	total := len(room.Queue)
	if room.CurrentTrack != nil {
		total++
	}
	for _, h := range room.History {
		if h != nil {
			total++
		}
	}
	require.Equal(t, len(uris), total)
}

func TestSkipForwardOnEmptyRoomIsSilentNoop(t *testing.T) {
	e := newTestEngine()
	e.bindFake("s1")
	ctx := context.Background()

	id, err := e.CreateRoom(ctx, "s1", CreateParams{RoomPublic: true})
	require.NoError(t, err)
	require.NoError(t, e.Join(ctx, "s1", id, "ada", ""))

	conn, _ := e.Registry.Conn("s1")
	before := conn.(*fakeConn).count()

	require.NoError(t, e.SkipForward(ctx, id))

	room := mustRoom(t, e, id)
	require.Nil(t, room.CurrentTrack)
	require.Empty(t, room.History)
	require.Equal(t, before, conn.(*fakeConn).count(), "no-op skip must not broadcast")
}

func TestSkipBackwardThenForwardRoundTrips(t *testing.T) {
	e := newTestEngine()
	e.bindFake("s1")
	ctx := context.Background()

	id, err := e.CreateRoom(ctx, "s1", CreateParams{RoomPublic: true})
	require.NoError(t, err)

	require.NoError(t, e.Enqueue(ctx, id, track("a")))
	require.NoError(t, e.Enqueue(ctx, id, track("b")))
	require.NoError(t, e.SkipForward(ctx, id))

	room := mustRoom(t, e, id)
	require.Equal(t, "b", room.CurrentTrack.URI)

	require.NoError(t, e.SkipBackward(ctx, id))
	room = mustRoom(t, e, id)
	require.Equal(t, "a", room.CurrentTrack.URI)
	require.Zero(t, room.CurrentTrack.PositionMS)
	require.False(t, room.CurrentTrack.Paused)
	require.Equal(t, "b", room.Queue[0].URI, "outgoing track returns to the queue head")

	require.NoError(t, e.SkipForward(ctx, id))
	room = mustRoom(t, e, id)
	require.Equal(t, "b", room.CurrentTrack.URI)
	require.Empty(t, room.Queue)
}

func TestSkipBackwardOnEmptyHistoryIsNoop(t *testing.T) {
	e := newTestEngine()
	e.bindFake("s1")
	ctx := context.Background()

	id, err := e.CreateRoom(ctx, "s1", CreateParams{RoomPublic: true})
	require.NoError(t, err)
	require.NoError(t, e.SkipBackward(ctx, id))

	room := mustRoom(t, e, id)
	require.Nil(t, room.CurrentTrack)
	require.Empty(t, room.Queue)
}

func TestSkipBackwardToNilSnapshotEmptiesPlayer(t *testing.T) {
	e := newTestEngine()
	e.bindFake("s1")
	ctx := context.Background()

	id, err := e.CreateRoom(ctx, "s1", CreateParams{RoomPublic: true})
	require.NoError(t, err)
	require.NoError(t, e.Enqueue(ctx, id, track("a")))

	// history is [nil] after the autoplay skip
	require.NoError(t, e.SkipBackward(ctx, id))
	room := mustRoom(t, e, id)
	require.Nil(t, room.CurrentTrack)
	require.Empty(t, room.History)
	require.Equal(t, "a", room.Queue[0].URI)
}

func TestToggleShuffleBuildsPermutation(t *testing.T) {
	e := newTestEngine()
	e.bindFake("s1")
	// deterministic permutation for the test
	e.shuffle = func(tracks []domain.Track) []domain.Track {
		out := make([]domain.Track, len(tracks))
		for i, tr := range tracks {
			out[len(tracks)-1-i] = tr
		}
		return out
	}
	ctx := context.Background()

	id, err := e.CreateRoom(ctx, "s1", CreateParams{RoomPublic: true})
	require.NoError(t, err)
	for _, u := range []string{"a", "b", "c", "d"} {
		require.NoError(t, e.Enqueue(ctx, id, track(u)))
	}
	// "a" autoplayed; queue is [b c d]

	require.NoError(t, e.ToggleShuffle(ctx, id, true))
	room := mustRoom(t, e, id)
	require.True(t, room.Shuffled)
	require.Equal(t, []string{"d", "c", "b"}, trackURIs(room.ShuffledQueue))
	require.Equal(t, []string{"b", "c", "d"}, trackURIs(room.Queue), "queue order untouched")

	// forward skip consumes the shuffled head and prunes it from the queue
	require.NoError(t, e.SkipForward(ctx, id))
	room = mustRoom(t, e, id)
	require.Equal(t, "d", room.CurrentTrack.URI)
	require.Equal(t, []string{"c", "b"}, trackURIs(room.ShuffledQueue))
	require.Equal(t, []string{"b", "c"}, trackURIs(room.Queue))

	require.NoError(t, e.ToggleShuffle(ctx, id, false))
	room = mustRoom(t, e, id)
	require.False(t, room.Shuffled)
	require.Empty(t, room.ShuffledQueue)
}

func TestJoinPrivateRoomPasswordGate(t *testing.T) {
	e := newTestEngine()
	e.bindFake("s1")
	e.bindFake("s2")
	ctx := context.Background()

	id, err := e.CreateRoom(ctx, "s1", CreateParams{Name: "vault", RoomPassword: "secret"})
	require.NoError(t, err)

	err = e.Join(ctx, "s2", id, "grace", "wrong")
	require.ErrorIs(t, err, domain.ErrWrongPassword)
	room := mustRoom(t, e, id)
	require.Empty(t, room.ActiveListeners)
	_, joined := e.Registry.RoomOf("s2")
	require.False(t, joined)

	require.NoError(t, e.Join(ctx, "s2", id, "grace", "secret"))
	room = mustRoom(t, e, id)
	require.Equal(t, []string{"grace"}, room.ActiveListeners)

	// re-join is idempotent on the listener set
	require.NoError(t, e.Join(ctx, "s2", id, "grace", "secret"))
	room = mustRoom(t, e, id)
	require.Equal(t, []string{"grace"}, room.ActiveListeners)
}

func TestJoinSwitchesRooms(t *testing.T) {
	e := newTestEngine()
	e.bindFake("s1")
	ctx := context.Background()

	first, err := e.CreateRoom(ctx, "s1", CreateParams{RoomPublic: true})
	require.NoError(t, err)
	second, err := e.CreateRoom(ctx, "s1", CreateParams{RoomPublic: true})
	require.NoError(t, err)

	require.NoError(t, e.Join(ctx, "s1", first, "ada", ""))
	require.NoError(t, e.Join(ctx, "s1", second, "ada", ""))

	roomID, ok := e.Registry.RoomOf("s1")
	require.True(t, ok)
	require.Equal(t, second, roomID)

	require.Empty(t, mustRoom(t, e, first).ActiveListeners, "implicit leave prunes the old room")
	require.Equal(t, []string{"ada"}, mustRoom(t, e, second).ActiveListeners)
}

func TestLeaveWithoutRoomIsNoop(t *testing.T) {
	e := newTestEngine()
	e.bindFake("s1")

	roomID, err := e.Leave(context.Background(), "s1")
	require.NoError(t, err)
	require.Empty(t, roomID)
}

func TestClearQueueKeepsPlayerAndHistory(t *testing.T) {
	e := newTestEngine()
	e.bindFake("s1")
	ctx := context.Background()

	id, err := e.CreateRoom(ctx, "s1", CreateParams{RoomPublic: true})
	require.NoError(t, err)
	for _, u := range []string{"a", "b", "c"} {
		require.NoError(t, e.Enqueue(ctx, id, track(u)))
	}
	require.NoError(t, e.ToggleShuffle(ctx, id, true))

	require.NoError(t, e.ClearQueue(ctx, id))
	room := mustRoom(t, e, id)
	require.Empty(t, room.Queue)
	require.Empty(t, room.ShuffledQueue)
	require.Equal(t, "a", room.CurrentTrack.URI)
	require.Len(t, room.History, 1)
}

func TestSetPlaybackStateFlipsOnlyPaused(t *testing.T) {
	e := newTestEngine()
	e.bindFake("s1")
	ctx := context.Background()

	id, err := e.CreateRoom(ctx, "s1", CreateParams{RoomPublic: true})
	require.NoError(t, err)

	// nothing loaded: no-op
	require.NoError(t, e.SetPlaybackState(ctx, id, true))
	require.Nil(t, mustRoom(t, e, id).CurrentTrack)

	require.NoError(t, e.Enqueue(ctx, id, track("a")))
	before := mustRoom(t, e, id).CurrentTrack

	require.NoError(t, e.SetPlaybackState(ctx, id, true))
	room := mustRoom(t, e, id)
	require.True(t, room.CurrentTrack.Paused)
	require.Equal(t, before.URI, room.CurrentTrack.URI)
	require.Equal(t, before.PositionMS, room.CurrentTrack.PositionMS)
	require.Equal(t, before.Timestamp, room.CurrentTrack.Timestamp)
}

func TestJoinBroadcastsListingGlobally(t *testing.T) {
	e := newTestEngine()
	e.bindFake("s1")
	lobby := e.bindFake("s2") // connected, not in any room
	ctx := context.Background()

	id, err := e.CreateRoom(ctx, "s1", CreateParams{RoomPublic: true})
	require.NoError(t, err)
	require.NoError(t, e.Join(ctx, "s1", id, "ada", ""))

	require.Contains(t, lobby.events(t), core.EventRoomSetAll, "lobby sessions must see membership changes")
}

func TestRoomMutationBroadcastsFullInfoToRoomOnly(t *testing.T) {
	e := newTestEngine()
	e.bindFake("s1")
	outsider := e.bindFake("s2")
	ctx := context.Background()

	id, err := e.CreateRoom(ctx, "s1", CreateParams{RoomPublic: true})
	require.NoError(t, err)
	require.NoError(t, e.Join(ctx, "s1", id, "ada", ""))

	outsiderBefore := outsider.count()
	require.NoError(t, e.Enqueue(ctx, id, track("a")))

	member, _ := e.Registry.Conn("s1")
	require.Contains(t, member.(*fakeConn).events(t), core.EventRoomFullInfo)
	require.Equal(t, outsiderBefore, outsider.count(), "queue changes stay inside the room")
}

func TestDisconnectOfStaleConnectionLeavesLiveSessionAlone(t *testing.T) {
	e := newTestEngine()
	stale := &fakeConn{}
	e.Registry.Bind("s1", stale, nil)
	live := e.bindFake("s1") // reconnect under the same cookie
	ctx := context.Background()

	id, err := e.CreateRoom(ctx, "s1", CreateParams{RoomPublic: true})
	require.NoError(t, err)
	require.NoError(t, e.Join(ctx, "s1", id, "ada", ""))

	// the old pump's teardown fires after the reconnect has joined
	e.OnDisconnect(ctx, "s1", stale)

	conn, ok := e.Registry.Conn("s1")
	require.True(t, ok, "live session must stay bound")
	require.Same(t, live, conn)
	roomID, ok := e.Registry.RoomOf("s1")
	require.True(t, ok)
	require.Equal(t, id, roomID)
	require.Equal(t, []string{"ada"}, mustRoom(t, e, id).ActiveListeners)

	// teardown by the owning connection still cleans up fully
	e.OnDisconnect(ctx, "s1", live)
	_, ok = e.Registry.Conn("s1")
	require.False(t, ok)
	require.Empty(t, mustRoom(t, e, id).ActiveListeners)
}

type flakyStore struct {
	core.RoomStore
	failUpdate bool
}

func (s *flakyStore) UpdateRoom(ctx context.Context, id domain.RoomID, patch core.RoomPatch) error {
	if s.failUpdate {
		return errors.New("store down")
	}
	return s.RoomStore.UpdateRoom(ctx, id, patch)
}

func TestLeaveKeepsMembershipWhenStoreFails(t *testing.T) {
	flaky := &flakyStore{RoomStore: store.NewMemoryStore()}
	registry := NewRegistry()
	e := NewEngine(flaky, registry, NewRouter(registry))
	e.bindFake("s1")
	ctx := context.Background()

	id, err := e.CreateRoom(ctx, "s1", CreateParams{RoomPublic: true})
	require.NoError(t, err)
	require.NoError(t, e.Join(ctx, "s1", id, "ada", ""))

	flaky.failUpdate = true
	_, err = e.Leave(ctx, "s1")
	require.Error(t, err)

	// both membership views are untouched by the failed write
	roomID, ok := e.Registry.RoomOf("s1")
	require.True(t, ok)
	require.Equal(t, id, roomID)
	require.Equal(t, []string{"ada"}, mustRoom(t, e, id).ActiveListeners)

	flaky.failUpdate = false
	_, err = e.Leave(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, mustRoom(t, e, id).ActiveListeners)
	_, ok = e.Registry.RoomOf("s1")
	require.False(t, ok)
}

func TestChatRelayReachesRoomMembers(t *testing.T) {
	e := newTestEngine()
	e.bindFake("s1")
	e.bindFake("s2")
	ctx := context.Background()

	id, err := e.CreateRoom(ctx, "s1", CreateParams{RoomPublic: true})
	require.NoError(t, err)
	require.NoError(t, e.Join(ctx, "s1", id, "ada", ""))
	require.NoError(t, e.Join(ctx, "s2", id, "grace", ""))

	e.RelayChat("s1", json.RawMessage(`{"msg":"hi","user":"ada"}`))

	for _, sid := range []core.SessionID{"s1", "s2"} {
		conn, _ := e.Registry.Conn(sid)
		require.Contains(t, conn.(*fakeConn).events(t), core.EventChatMessage)
	}
}

func trackURIs(tracks []domain.Track) []string {
	out := make([]string, len(tracks))
	for i, t := range tracks {
		out[i] = t.URI
	}
	return out
}
