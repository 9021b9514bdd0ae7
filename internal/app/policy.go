package app

import (
	"context"
	"maps"

	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/domain"
)

// Policy answers who may do what in a room. Host applications swap it for their own rules.
type Policy interface {
	core.RoleResolver
	core.CreateAuthorizer
	core.CreateOptionsProvider
}

// DefaultPolicy asks anonymous viewers and everyone in a private room for a password.
// Room owners and logged-in viewers of public rooms moderate.
type DefaultPolicy struct {
	// CreateRoles lists roles allowed to start a meeting. Empty means moderators only.
	CreateRoles []domain.Role
	// ExtraCreateOptions is sent with every create call.
	ExtraCreateOptions map[string]string
}

var _ Policy = DefaultPolicy{}

func (p DefaultPolicy) Role(_ context.Context, room *domain.Room, viewer *domain.Viewer) domain.Role {
	if room == nil {
		return domain.RoleDenied
	}
	if !viewer.Anonymous() && room.OwnerID != "" && string(viewer.ID) == room.OwnerID {
		return domain.RoleModerator
	}
	if room.Private || viewer.Anonymous() {
		return domain.RolePassword
	}
	return domain.RoleModerator
}

func (p DefaultPolicy) CanCreate(_ context.Context, _ *domain.Room, role domain.Role) bool {
	if len(p.CreateRoles) == 0 {
		return role == domain.RoleModerator
	}
	for _, r := range p.CreateRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (p DefaultPolicy) CreateOptions(_ context.Context, _ *domain.Room) map[string]string {
	opts := make(map[string]string, len(p.ExtraCreateOptions))
	maps.Copy(opts, p.ExtraCreateOptions)
	return opts
}
