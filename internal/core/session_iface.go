package core

import "github.com/dkeye/Rooms/internal/domain"

type SessionID string

// StatusEvent is fanned out to subscribers whenever a meeting status is recorded.
type StatusEvent struct {
	Type      string        `json:"type"`
	RoomID    domain.RoomID `json:"room"`
	Running   bool          `json:"running"`
	CheckedAt int64         `json:"checked_at"`
}

const StatusEventType = "meeting_status"

// StatusPublisher delivers status events to whoever watches a room.
type StatusPublisher interface {
	PublishStatus(roomID domain.RoomID, status domain.MeetingStatus)
}
