package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/auxroom/auxroom/internal/app"
	"github.com/auxroom/auxroom/internal/core"
	"github.com/auxroom/auxroom/internal/domain"
)

type inboundFrame struct {
	Type    string          `json:"type"`
	Message json.RawMessage `json:"message"`
}

type createPayload struct {
	Name            string   `json:"name"`
	RoomPublic      bool     `json:"roomPublic"`
	RoomPassword    string   `json:"roomPassword"`
	ActiveListeners []string `json:"activeListeners"`
}

type joinPayload struct {
	RoomID   string `json:"roomId"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type trackPayload struct {
	RoomID string       `json:"roomId"`
	Track  domain.Track `json:"track"`
}

type roomPayload struct {
	RoomID string `json:"roomId"`
}

type playPayload struct {
	RoomID string `json:"roomId"`
	Paused bool   `json:"paused"`
}

type shufflePayload struct {
	RoomID   string `json:"roomId"`
	Shuffled bool   `json:"shuffled"`
}

type passwordPayload struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password"`
}

func (ctl *Controller) handleFrame(ctx context.Context, sid core.SessionID, c *wsConn, data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad json")
		ctl.sendError(sid, "bad_payload")
		return
	}

	switch frame.Type {
	case "create":
		ctl.handleCreate(ctx, sid, frame.Message)
	case "join":
		ctl.handleJoin(ctx, sid, frame.Message)
	case "leave":
		ctl.handleLeave(ctx, sid)
	case "new-message":
		ctl.Engine.RelayChat(sid, frame.Message)
	case "add-to-queue":
		ctl.handleAddToQueue(ctx, sid, frame.Message)
	case "clear-queue":
		ctl.handleClearQueue(ctx, sid, frame.Message)
	case "toggle-play":
		ctl.handleTogglePlay(ctx, sid, frame.Message)
	case "toggle-shuffle":
		ctl.handleToggleShuffle(ctx, sid, frame.Message)
	case "skip-forward":
		ctl.handleSkip(ctx, sid, frame.Message, true)
	case "skip-backward":
		ctl.handleSkip(ctx, sid, frame.Message, false)
	case "get-available-rooms":
		ctl.logIfErr(sid, "get-available-rooms", ctl.Engine.SendAvailableRooms(ctx, sid))
	case "get-room-privacy":
		ctl.handleRoomPrivacy(ctx, sid, frame.Message)
	case "check-password":
		ctl.handleCheckPassword(ctx, sid, frame.Message)
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "ws").Str("type", frame.Type).Msg("unknown event")
	}
}

func (ctl *Controller) handleCreate(ctx context.Context, sid core.SessionID, msg json.RawMessage) {
	var p createPayload
	if err := json.Unmarshal(msg, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad create payload")
		ctl.sendError(sid, "bad_payload")
		return
	}
	if len(p.Name) > domain.MaxRoomNameLen {
		p.Name = p.Name[:domain.MaxRoomNameLen]
	}
	if _, err := ctl.Engine.CreateRoom(ctx, sid, app.CreateParams{
		Name:            p.Name,
		RoomPublic:      p.RoomPublic,
		RoomPassword:    p.RoomPassword,
		ActiveListeners: p.ActiveListeners,
	}); err != nil {
		log.Error().Err(err).Str("module", "ws").Str("sid", string(sid)).Msg("create room")
		ctl.sendError(sid, err.Error())
	}
}

func (ctl *Controller) handleJoin(ctx context.Context, sid core.SessionID, msg json.RawMessage) {
	if !ctl.Limiter.Allow(sid) {
		ctl.sendError(sid, "too many attempts")
		return
	}
	var p joinPayload
	if err := json.Unmarshal(msg, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad join payload")
		ctl.sendError(sid, "bad_payload")
		return
	}
	if err := domain.ValidateListenerName(p.Username); err != nil {
		ctl.sendError(sid, err.Error())
		return
	}
	if err := ctl.Engine.Join(ctx, sid, domain.RoomID(p.RoomID), p.Username, p.Password); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("sid", string(sid)).Str("room", p.RoomID).Msg("join rejected")
		ctl.sendError(sid, err.Error())
	}
}

func (ctl *Controller) handleLeave(ctx context.Context, sid core.SessionID) {
	roomID, err := ctl.Engine.Leave(ctx, sid)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("sid", string(sid)).Str("room", string(roomID)).Msg("leave")
	}
}

func (ctl *Controller) handleAddToQueue(ctx context.Context, sid core.SessionID, msg json.RawMessage) {
	var p trackPayload
	if err := json.Unmarshal(msg, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad add-to-queue payload")
		ctl.sendError(sid, "bad_payload")
		return
	}
	ctl.logIfErr(sid, "add-to-queue", ctl.Engine.Enqueue(ctx, domain.RoomID(p.RoomID), p.Track))
}

func (ctl *Controller) handleClearQueue(ctx context.Context, sid core.SessionID, msg json.RawMessage) {
	var p roomPayload
	if err := json.Unmarshal(msg, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad clear-queue payload")
		ctl.sendError(sid, "bad_payload")
		return
	}
	ctl.logIfErr(sid, "clear-queue", ctl.Engine.ClearQueue(ctx, domain.RoomID(p.RoomID)))
}

func (ctl *Controller) handleTogglePlay(ctx context.Context, sid core.SessionID, msg json.RawMessage) {
	var p playPayload
	if err := json.Unmarshal(msg, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad toggle-play payload")
		ctl.sendError(sid, "bad_payload")
		return
	}
	ctl.logIfErr(sid, "toggle-play", ctl.Engine.SetPlaybackState(ctx, domain.RoomID(p.RoomID), p.Paused))
}

func (ctl *Controller) handleToggleShuffle(ctx context.Context, sid core.SessionID, msg json.RawMessage) {
	var p shufflePayload
	if err := json.Unmarshal(msg, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad toggle-shuffle payload")
		ctl.sendError(sid, "bad_payload")
		return
	}
	ctl.logIfErr(sid, "toggle-shuffle", ctl.Engine.ToggleShuffle(ctx, domain.RoomID(p.RoomID), p.Shuffled))
}

func (ctl *Controller) handleSkip(ctx context.Context, sid core.SessionID, msg json.RawMessage, forward bool) {
	var p roomPayload
	if err := json.Unmarshal(msg, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad skip payload")
		ctl.sendError(sid, "bad_payload")
		return
	}
	if forward {
		ctl.logIfErr(sid, "skip-forward", ctl.Engine.SkipForward(ctx, domain.RoomID(p.RoomID)))
		return
	}
	ctl.logIfErr(sid, "skip-backward", ctl.Engine.SkipBackward(ctx, domain.RoomID(p.RoomID)))
}

func (ctl *Controller) handleRoomPrivacy(ctx context.Context, sid core.SessionID, msg json.RawMessage) {
	var p roomPayload
	if err := json.Unmarshal(msg, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad get-room-privacy payload")
		ctl.sendError(sid, "bad_payload")
		return
	}
	ctl.logIfErr(sid, "get-room-privacy", ctl.Engine.SendRoomPrivacy(ctx, sid, domain.RoomID(p.RoomID)))
}

func (ctl *Controller) handleCheckPassword(ctx context.Context, sid core.SessionID, msg json.RawMessage) {
	if !ctl.Limiter.Allow(sid) {
		ctl.sendError(sid, "too many attempts")
		return
	}
	var p passwordPayload
	if err := json.Unmarshal(msg, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad check-password payload")
		ctl.sendError(sid, "bad_payload")
		return
	}
	ctl.logIfErr(sid, "check-password", ctl.Engine.SendPasswordCheck(ctx, sid, domain.RoomID(p.RoomID), p.Password))
}

func (ctl *Controller) handlePing(c *wsConn) {
	b, err := json.Marshal(struct {
		Type string `json:"type"`
	}{Type: "pong"})
	if err != nil {
		return
	}
	_ = c.TrySend(b)
}

// sendError unicasts the generic server-error envelope back to the sender.
func (ctl *Controller) sendError(sid core.SessionID, msg string) {
	ctl.Engine.Router.Unicast(sid, core.EventServerError, msg)
}

// logIfErr applies the drop-silently policy for store failures: the client
// request is abandoned and only the log knows. Authorization and not-found
// errors on mutations still stay server-side; queries surface nothing.
func (ctl *Controller) logIfErr(sid core.SessionID, op string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, domain.ErrRoomNotFound) {
		log.Warn().Str("module", "ws").Str("sid", string(sid)).Str("op", op).Msg("unknown room")
		return
	}
	log.Error().Err(err).Str("module", "ws").Str("sid", string(sid)).Str("op", op).Msg("event failed")
}
