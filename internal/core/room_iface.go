package core

import (
	"context"
	"errors"

	"github.com/dkeye/Rooms/internal/domain"
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrServerNotFound    = errors.New("server not found")
	ErrRecordingNotFound = errors.New("recording not found")
)

// RoomFinder looks a room up by its public param.
type RoomFinder interface {
	FindByParam(ctx context.Context, param string) (*domain.Room, error)
}

// RoomStore owns persisted rooms. Implementations enforce param, meetingid and voice bridge uniqueness.
type RoomStore interface {
	RoomFinder
	List(ctx context.Context) ([]domain.Room, error)
	FindByID(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	Create(ctx context.Context, room *domain.Room) error
	Update(ctx context.Context, room *domain.Room) error
	Delete(ctx context.Context, id domain.RoomID) error
	SetStatus(ctx context.Context, id domain.RoomID, status domain.MeetingStatus) error
}

// RecordingStore keeps recordings fetched from servers.
type RecordingStore interface {
	UpsertRecordings(ctx context.Context, recs []domain.Recording) error
	RecordingsByRoom(ctx context.Context, id domain.RoomID) ([]domain.Recording, error)
}

// ServerRegistry resolves the conference server a room lives on.
type ServerRegistry interface {
	Servers() []domain.Server
	Server(id domain.ServerID) (domain.Server, bool)
}
