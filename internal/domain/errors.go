package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrRoomNotFound means the store has no record for the requested id.
	ErrRoomNotFound = errors.New("room not found")

	// ErrWrongPassword rejects a private-room join. The message is part of
	// the client contract.
	ErrWrongPassword = errors.New("Wrong Password")
)

// CreationError marks a store write failure while creating a room.
type CreationError struct {
	Err error
}

func (e *CreationError) Error() string { return fmt.Sprintf("room creation failed: %v", e.Err) }
func (e *CreationError) Unwrap() error { return e.Err }

// StoreError wraps any other store failure during a read or update. The
// triggering mutation is abandoned; nothing is retried or rolled back.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string { return fmt.Sprintf("store %s: %v", e.Op, e.Err) }
func (e *StoreError) Unwrap() error { return e.Err }
