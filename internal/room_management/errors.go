package room_management

import (
	"errors"
	"fmt"
)

var (
	ErrAlreadyEnrolled = errors.New("already enrolled in a room")
	ErrRoomNotFound    = errors.New("room not found")
	ErrNotEnrolled     = errors.New("not enrolled in a room")
	ErrIllegalState    = errors.New("illegal state")
	ErrNotFound        = errors.New("not found in queue")
	ErrInvalidRole     = errors.New("invalid role")
	ErrMissingUser     = errors.New("user id is required")

	// ErrNotAsker is an ErrIllegalState: only askers may finish a session.
	ErrNotAsker = fmt.Errorf("%w: only askers can finish a session", ErrIllegalState)
)

func illegalState(msg string) error {
	return fmt.Errorf("%w: %s", ErrIllegalState, msg)
}
