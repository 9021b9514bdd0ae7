// Package conference routes conference calls to the backend hosting each room.
package conference

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Rooms/internal/adapters/bbb"
	"github.com/dkeye/Rooms/internal/adapters/livekit"
	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/domain"
)

// Factory builds the backend for one configured server.
type Factory func(server domain.Server) (core.Conference, error)

// Dial is the default factory: servers are dispatched on their kind.
func Dial(timeout time.Duration) Factory {
	return func(server domain.Server) (core.Conference, error) {
		switch server.Kind {
		case domain.ServerBigBlueButton, "":
			return bbb.NewConference(server, timeout), nil
		case domain.ServerLiveKit:
			return livekit.NewConference(server), nil
		default:
			return nil, fmt.Errorf("server %s: unknown kind %q", server.ID, server.Kind)
		}
	}
}

// Gateway is both the server registry and the conference every service talks to.
type Gateway struct {
	servers  []domain.Server
	byID     map[domain.ServerID]domain.Server
	backends map[domain.ServerID]core.Conference
}

func NewGateway(servers []domain.Server, factory Factory) (*Gateway, error) {
	g := &Gateway{
		byID:     make(map[domain.ServerID]domain.Server, len(servers)),
		backends: make(map[domain.ServerID]core.Conference, len(servers)),
	}
	for _, s := range servers {
		if _, dup := g.byID[s.ID]; dup {
			return nil, fmt.Errorf("server %s declared twice", s.ID)
		}
		backend, err := factory(s)
		if err != nil {
			return nil, err
		}
		g.servers = append(g.servers, s)
		g.byID[s.ID] = s
		g.backends[s.ID] = backend
		log.Info().Str("module", "conference").Str("server", string(s.ID)).Str("kind", string(s.Kind)).Msg("server registered")
	}
	return g, nil
}

func (g *Gateway) Servers() []domain.Server {
	out := make([]domain.Server, len(g.servers))
	copy(out, g.servers)
	return out
}

func (g *Gateway) Server(id domain.ServerID) (domain.Server, bool) {
	s, ok := g.byID[id]
	return s, ok
}

func (g *Gateway) backend(id domain.ServerID) (core.Conference, error) {
	if b, ok := g.backends[id]; ok {
		return b, nil
	}
	return nil, core.ErrNoServer
}

func (g *Gateway) IsMeetingRunning(ctx context.Context, room *domain.Room) (bool, error) {
	b, err := g.backend(room.ServerID)
	if err != nil {
		return false, err
	}
	return b.IsMeetingRunning(ctx, room)
}

func (g *Gateway) CreateMeeting(ctx context.Context, room *domain.Room, viewer *domain.Viewer, req core.RequestInfo, opts map[string]string) error {
	b, err := g.backend(room.ServerID)
	if err != nil {
		return err
	}
	return b.CreateMeeting(ctx, room, viewer, req, opts)
}

func (g *Gateway) FetchNewToken(ctx context.Context, room *domain.Room) (string, error) {
	b, err := g.backend(room.ServerID)
	if err != nil {
		return "", err
	}
	return b.FetchNewToken(ctx, room)
}

func (g *Gateway) JoinURL(ctx context.Context, room *domain.Room, name string, role domain.Role, userID domain.UserID, opts map[string]string) (string, error) {
	b, err := g.backend(room.ServerID)
	if err != nil {
		return "", err
	}
	return b.JoinURL(ctx, room, name, role, userID, opts)
}

func (g *Gateway) EndMeeting(ctx context.Context, room *domain.Room) error {
	b, err := g.backend(room.ServerID)
	if err != nil {
		return err
	}
	return b.EndMeeting(ctx, room)
}

func (g *Gateway) FetchRecordings(ctx context.Context, server domain.Server, filter map[string]string) ([]domain.Recording, error) {
	b, err := g.backend(server.ID)
	if err != nil {
		return nil, err
	}
	return b.FetchRecordings(ctx, server, filter)
}
