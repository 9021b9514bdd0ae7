// Package domain contains entities without transport logic, just meta-data and validation.
package domain

import (
	"errors"
	"strings"
)

const (
	MaxUserIDLen   = 64
	MaxUsernameLen = 255
)

var (
	ErrUsernameTooLong = errors.New("username too long")
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUserIDTooLong   = errors.New("user id too long")
)

type UserID string

// Viewer is whoever is looking at a room. An empty ID is an anonymous guest.
type Viewer struct {
	ID   UserID `json:"id,omitempty"`
	Name string `json:"name"`
}

// NewViewer validates the display name and id of a viewer.
func NewViewer(id UserID, name string) (*Viewer, error) {
	v := &Viewer{}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	v.ID = id
	if err := v.SetName(name); err != nil {
		return nil, err
	}
	return v, nil
}

func (v *Viewer) SetName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	v.Name = name
	return nil
}

func (v *Viewer) Anonymous() bool {
	return v == nil || v.ID == ""
}
