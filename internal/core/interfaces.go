package core

// Frame is a marshaled outbound message.
type Frame []byte

// SessionID identifies one connected client for the lifetime of its cookie.
type SessionID string

// SignalConnection abstracts the client messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}
