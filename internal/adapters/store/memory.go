// Package store persists rooms and recordings.
package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/domain"
)

// MemoryStore keeps everything in process. Rooms are copied in and out so callers never share state.
type MemoryStore struct {
	mu         sync.RWMutex
	rooms      map[domain.RoomID]*domain.Room
	recordings map[string]domain.Recording
}

var (
	_ core.RoomStore      = (*MemoryStore)(nil)
	_ core.RecordingStore = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		rooms:      make(map[domain.RoomID]*domain.Room),
		recordings: make(map[string]domain.Recording),
	}
}

func cloneRoom(r *domain.Room) *domain.Room {
	c := *r
	c.Metadata = slices.Clone(r.Metadata)
	if r.Status != nil {
		st := *r.Status
		c.Status = &st
	}
	return &c
}

func (s *MemoryStore) List(_ context.Context) ([]domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, *cloneRoom(r))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Param < out[j].Param
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) FindByParam(_ context.Context, param string) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.rooms {
		if r.Param == param {
			return cloneRoom(r), nil
		}
	}
	return nil, core.ErrRoomNotFound
}

func (s *MemoryStore) FindByID(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[id]
	if !ok {
		return nil, core.ErrRoomNotFound
	}
	return cloneRoom(r), nil
}

// checkUnique must run under the write lock.
func (s *MemoryStore) checkUnique(room *domain.Room) error {
	for id, other := range s.rooms {
		if id == room.ID {
			continue
		}
		switch {
		case other.Param == room.Param:
			return domain.ErrParamTaken
		case other.MeetingID == room.MeetingID:
			return domain.ErrMeetingIDTaken
		case room.VoiceBridge != "" && other.VoiceBridge == room.VoiceBridge:
			return domain.ErrVoiceBridgeTaken
		}
	}
	return nil
}

func (s *MemoryStore) Create(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkUnique(room); err != nil {
		return err
	}
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.rooms[room.ID]
	if !ok {
		return core.ErrRoomNotFound
	}
	if err := s.checkUnique(room); err != nil {
		return err
	}
	updated := cloneRoom(room)
	updated.Status = stored.Status
	s.rooms[room.ID] = updated
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, id domain.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rooms[id]; !ok {
		return core.ErrRoomNotFound
	}
	delete(s.rooms, id)
	for key, rec := range s.recordings {
		if rec.RoomID == id {
			rec.RoomID = ""
			s.recordings[key] = rec
		}
	}
	return nil
}

func (s *MemoryStore) SetStatus(_ context.Context, id domain.RoomID, status domain.MeetingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[id]
	if !ok {
		return core.ErrRoomNotFound
	}
	r.Status = &status
	return nil
}

func (s *MemoryStore) UpsertRecordings(_ context.Context, recs []domain.Recording) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range recs {
		rec.Playbacks = slices.Clone(rec.Playbacks)
		s.recordings[rec.RecordID] = rec
	}
	return nil
}

func (s *MemoryStore) RecordingsByRoom(_ context.Context, id domain.RoomID) ([]domain.Recording, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Recording, 0)
	for _, rec := range s.recordings {
		if rec.RoomID == id {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}
