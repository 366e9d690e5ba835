package domain

import "errors"

const MaxListenerNameLen = 36

var (
	ErrListenerNameTooLong = errors.New("listener name too long")
	ErrListenerNameEmpty   = errors.New("listener name empty")
)

// ValidateListenerName keeps name checks out of the adapters.
func ValidateListenerName(name string) error {
	if len(name) == 0 {
		return ErrListenerNameEmpty
	}
	if len(name) > MaxListenerNameLen {
		return ErrListenerNameTooLong
	}
	return nil
}
