package domain

import "fmt"

// Role is the capability a viewer holds in a room. The zero value is RoleDenied.
type Role int

const (
	RoleDenied Role = iota
	RoleModerator
	RoleAttendee
	// RolePassword means the viewer still has to present a room password.
	RolePassword
)

func (r Role) String() string {
	switch r {
	case RoleModerator:
		return "moderator"
	case RoleAttendee:
		return "attendee"
	case RolePassword:
		return "password"
	default:
		return "denied"
	}
}

// Granted reports whether the role lets the viewer proceed at all.
func (r Role) Granted() bool {
	return r == RoleModerator || r == RoleAttendee || r == RolePassword
}

func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func ParseRole(s string) (Role, error) {
	switch s {
	case "moderator":
		return RoleModerator, nil
	case "attendee":
		return RoleAttendee, nil
	case "password":
		return RolePassword, nil
	case "denied", "":
		return RoleDenied, nil
	}
	return RoleDenied, fmt.Errorf("unknown role %q", s)
}
