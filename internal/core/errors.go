package core

import (
	"errors"
	"fmt"
)

var (
	// ErrAccessDenied is raised when the viewer holds no role in the room.
	ErrAccessDenied = errors.New("access to the room was denied")
	ErrNoServer     = errors.New("room has no server")
	ErrUnsupported  = errors.New("operation not supported by this server")
)

// RemoteError is a failure reported by, or while talking to, a conference server.
type RemoteError struct {
	Call    string
	Key     string
	Message string
	Cause   error
}

func (e *RemoteError) Error() string {
	switch {
	case e.Message != "" && e.Key != "":
		return fmt.Sprintf("%s: %s", e.Key, e.Message)
	case e.Message != "":
		return e.Message
	case e.Cause != nil:
		return fmt.Sprintf("%s: %v", e.Call, e.Cause)
	default:
		return e.Call + ": remote call failed"
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Cause
}

func IsRemote(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
