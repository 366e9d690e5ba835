package core

// Outbound event names. These are the original client contract and must not
// change without a frontend release.
const (
	EventRoomCreate      = "room/create"
	EventRoomFullInfo    = "room/full_info"
	EventRoomIsPrivate   = "room/is_private"
	EventPasswordCorrect = "room/password_correct"
	EventRoomSetAll      = "room/set_all"
	EventChatMessage     = "room/chat/new_message"
	EventServerError     = "server-error"
)

// Envelope is the uniform outbound frame shape:
// {type, source: "server", message: {payload}}.
type Envelope struct {
	Type    string  `json:"type"`
	Source  string  `json:"source"`
	Message Message `json:"message"`
}

type Message struct {
	Payload any `json:"payload"`
}

func ServerEnvelope(event string, payload any) Envelope {
	return Envelope{Type: event, Source: "server", Message: Message{Payload: payload}}
}
