package domain

import "time"

type Playback struct {
	Format string `json:"format"`
	URL    string `json:"url"`
	Length int    `json:"length"`
}

// Recording is a recorded meeting as reported by the conference server.
type Recording struct {
	RecordID  string            `json:"record_id"`
	RoomID    RoomID            `json:"room_id,omitempty"`
	ServerID  ServerID          `json:"server_id"`
	MeetingID string            `json:"meetingid"`
	Name      string            `json:"name"`
	Published bool              `json:"published"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Playbacks []Playback        `json:"playbacks,omitempty"`
}
