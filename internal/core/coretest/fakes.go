// Package coretest provides in-memory collaborators for exercising code that talks to a conference server.
package coretest

import (
	"context"
	"sync"

	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/domain"
)

type CreateCall struct {
	Room    *domain.Room
	Viewer  *domain.Viewer
	Request core.RequestInfo
	Options map[string]string
}

type JoinURLCall struct {
	Name    string
	Role    domain.Role
	UserID  domain.UserID
	Options map[string]string
}

// Conference is a scripted core.Conference that records every call.
type Conference struct {
	mu sync.Mutex

	Running    bool
	RunningErr error
	CreateErr  error
	Token      string
	TokenErr   error
	URL        string
	URLErr     error
	EndErr     error
	Recordings []domain.Recording
	FetchErr   error

	RunningCalls int
	CreateCalls  []CreateCall
	TokenCalls   int
	JoinCalls    []JoinURLCall
	EndCalls     int
	FetchFilters []map[string]string
}

var _ core.Conference = (*Conference)(nil)

func (c *Conference) IsMeetingRunning(ctx context.Context, room *domain.Room) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.RunningCalls++
	return c.Running, c.RunningErr
}

func (c *Conference) CreateMeeting(ctx context.Context, room *domain.Room, viewer *domain.Viewer, req core.RequestInfo, opts map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CreateCalls = append(c.CreateCalls, CreateCall{Room: room, Viewer: viewer, Request: req, Options: opts})
	if c.CreateErr == nil {
		c.Running = true
	}
	return c.CreateErr
}

func (c *Conference) FetchNewToken(ctx context.Context, room *domain.Room) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TokenCalls++
	return c.Token, c.TokenErr
}

func (c *Conference) JoinURL(ctx context.Context, room *domain.Room, name string, role domain.Role, uid domain.UserID, opts map[string]string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.JoinCalls = append(c.JoinCalls, JoinURLCall{Name: name, Role: role, UserID: uid, Options: opts})
	return c.URL, c.URLErr
}

func (c *Conference) EndMeeting(ctx context.Context, room *domain.Room) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.EndCalls++
	if c.EndErr == nil {
		c.Running = false
	}
	return c.EndErr
}

func (c *Conference) FetchRecordings(ctx context.Context, server domain.Server, filter map[string]string) ([]domain.Recording, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FetchFilters = append(c.FetchFilters, filter)
	return c.Recordings, c.FetchErr
}

// Policy answers role and create questions with fixed values.
type Policy struct {
	RoleValue  domain.Role
	Create     bool
	Options    map[string]string
	CreateAsks []domain.Role
}

func (p *Policy) Role(ctx context.Context, room *domain.Room, viewer *domain.Viewer) domain.Role {
	return p.RoleValue
}

func (p *Policy) CanCreate(ctx context.Context, room *domain.Room, role domain.Role) bool {
	p.CreateAsks = append(p.CreateAsks, role)
	return p.Create
}

func (p *Policy) CreateOptions(ctx context.Context, room *domain.Room) map[string]string {
	return p.Options
}

// Scheduler keeps enqueued tasks in memory.
type Scheduler struct {
	mu    sync.Mutex
	Err   error
	Tasks []core.Task
}

func (s *Scheduler) Enqueue(ctx context.Context, task core.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.Tasks = append(s.Tasks, task)
	return nil
}

func (s *Scheduler) Enqueued() []core.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Task(nil), s.Tasks...)
}

// Servers is a fixed core.ServerRegistry.
type Servers []domain.Server

func (s Servers) Servers() []domain.Server {
	return s
}

func (s Servers) Server(id domain.ServerID) (domain.Server, bool) {
	for _, srv := range s {
		if srv.ID == id {
			return srv, true
		}
	}
	return domain.Server{}, false
}

// Publisher records published statuses.
type Publisher struct {
	mu        sync.Mutex
	Published map[domain.RoomID][]domain.MeetingStatus
}

func (p *Publisher) PublishStatus(id domain.RoomID, status domain.MeetingStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Published == nil {
		p.Published = make(map[domain.RoomID][]domain.MeetingStatus)
	}
	p.Published[id] = append(p.Published[id], status)
}
