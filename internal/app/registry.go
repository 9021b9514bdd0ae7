package app

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/domain"
	"github.com/dkeye/Rooms/internal/metrics"
)

type sessionEntry struct {
	RoomID domain.RoomID
	Conn   core.SignalConnection
	Cancel context.CancelFunc
}

// Registry tracks live status subscribers per room and the last status seen for each room.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
	last     map[domain.RoomID]domain.MeetingStatus
}

var _ core.StatusPublisher = (*Registry)(nil)

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
		last:     make(map[domain.RoomID]domain.MeetingStatus),
	}
}

func (r *Registry) Bind(sid core.SessionID, roomID domain.RoomID, conn core.SignalConnection, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; !ok {
		metrics.StatusSubscribers.Inc()
	}
	r.sessions[sid] = &sessionEntry{RoomID: roomID, Conn: conn, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("room", string(roomID)).Msg("bound session")
}

func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[sid]; !ok {
		return
	}
	delete(r.sessions, sid)
	metrics.StatusSubscribers.Dec()
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

type regSnap struct {
	SID  core.SessionID
	Conn core.SignalConnection
}

func (r *Registry) SubscribersOf(roomID domain.RoomID) []regSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]regSnap, 0, len(r.sessions))
	for sid, e := range r.sessions {
		if e.RoomID == roomID {
			out = append(out, regSnap{SID: sid, Conn: e.Conn})
		}
	}
	return out
}

func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}

func (r *Registry) LastStatus(roomID domain.RoomID) (domain.MeetingStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st, ok := r.last[roomID]
	return st, ok
}

// StatusFrame encodes the event sent to subscribers of a room.
func StatusFrame(roomID domain.RoomID, status domain.MeetingStatus) (core.Frame, error) {
	return json.Marshal(core.StatusEvent{
		Type:      core.StatusEventType,
		RoomID:    roomID,
		Running:   status.Running,
		CheckedAt: status.CheckedAt.Unix(),
	})
}

// PublishStatus remembers the status and pushes it to every subscriber of the room.
// Subscribers that cannot keep up are canceled.
func (r *Registry) PublishStatus(roomID domain.RoomID, status domain.MeetingStatus) {
	r.mu.Lock()
	r.last[roomID] = status
	r.mu.Unlock()

	frame, err := StatusFrame(roomID, status)
	if err != nil {
		log.Error().Err(err).Str("module", "app.registry").Msg("marshal status event")
		return
	}
	for _, snap := range r.SubscribersOf(roomID) {
		if err := snap.Conn.TrySend(frame); err != nil {
			log.Warn().Err(err).Str("module", "app.registry").Str("sid", string(snap.SID)).Msg("drop slow subscriber")
			r.Cancel(snap.SID)
		}
	}
}

// Forget drops everything known about a deleted room.
func (r *Registry) Forget(roomID domain.RoomID) {
	for _, snap := range r.SubscribersOf(roomID) {
		r.Cancel(snap.SID)
	}
	r.mu.Lock()
	delete(r.last, roomID)
	r.mu.Unlock()
}
