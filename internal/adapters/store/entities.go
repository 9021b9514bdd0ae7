package store

import (
	"time"

	"github.com/dkeye/Rooms/internal/domain"
)

// RoomEntity is the persisted shape of a room.
type RoomEntity struct {
	ID                string            `gorm:"type:uuid;primaryKey"`
	ServerID          string            `gorm:"type:varchar(64);index"`
	Name              string            `gorm:"type:varchar(255);not null"`
	MeetingID         string            `gorm:"column:meetingid;type:varchar(255);not null;uniqueIndex"`
	Param             string            `gorm:"type:varchar(255);not null;uniqueIndex"`
	AttendeePassword  string            `gorm:"type:varchar(16)"`
	ModeratorPassword string            `gorm:"type:varchar(16)"`
	WelcomeMsg        string            `gorm:"type:varchar(250)"`
	Private           bool              `gorm:"not null;default:false"`
	LogoutURL         string            `gorm:"type:text"`
	DialNumber        string            `gorm:"type:varchar(64)"`
	VoiceBridge       *string           `gorm:"type:varchar(32);uniqueIndex"`
	MaxParticipants   int               `gorm:"not null;default:0"`
	OwnerID           string            `gorm:"type:varchar(64);index"`
	OwnerType         string            `gorm:"type:varchar(64)"`
	External          bool              `gorm:"not null;default:false"`
	Record            bool              `gorm:"not null;default:false"`
	Duration          int               `gorm:"not null;default:0"`
	Metadata          []domain.Metadata `gorm:"serializer:json;type:jsonb"`
	Running           *bool             `gorm:"column:status_running"`
	CheckedAt         *time.Time        `gorm:"column:status_checked_at"`
	Options           RoomOptionsEntity `gorm:"foreignKey:RoomID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time         `gorm:"autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"autoUpdateTime"`
}

func (RoomEntity) TableName() string {
	return "rooms"
}

// RoomOptionsEntity stores per-room client configuration one-to-one with a room.
type RoomOptionsEntity struct {
	ID            uint      `gorm:"primaryKey"`
	RoomID        string    `gorm:"type:uuid;not null;uniqueIndex"`
	DefaultLayout string    `gorm:"type:varchar(255)"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (RoomOptionsEntity) TableName() string {
	return "room_options"
}

type RecordingEntity struct {
	RecordID  string  `gorm:"type:varchar(255);primaryKey"`
	RoomID    *string `gorm:"type:uuid;index"`
	ServerID  string  `gorm:"type:varchar(64);index"`
	MeetingID string  `gorm:"column:meetingid;type:varchar(255);index"`
	Name      string  `gorm:"type:varchar(255)"`
	Published bool    `gorm:"not null;default:false"`
	StartTime time.Time
	EndTime   time.Time
	Metadata  map[string]string `gorm:"serializer:json;type:jsonb"`
	Playbacks []domain.Playback `gorm:"serializer:json;type:jsonb"`
	CreatedAt time.Time         `gorm:"autoCreateTime"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime"`
}

func (RecordingEntity) TableName() string {
	return "recordings"
}

func roomToEntity(r *domain.Room) RoomEntity {
	e := RoomEntity{
		ID:                string(r.ID),
		ServerID:          string(r.ServerID),
		Name:              r.Name,
		MeetingID:         r.MeetingID,
		Param:             r.Param,
		AttendeePassword:  r.AttendeePassword,
		ModeratorPassword: r.ModeratorPassword,
		WelcomeMsg:        r.WelcomeMsg,
		Private:           r.Private,
		LogoutURL:         r.LogoutURL,
		DialNumber:        r.DialNumber,
		MaxParticipants:   r.MaxParticipants,
		OwnerID:           r.OwnerID,
		OwnerType:         r.OwnerType,
		External:          r.External,
		Record:            r.Record,
		Duration:          r.Duration,
		Metadata:          r.Metadata,
		Options: RoomOptionsEntity{
			RoomID:        string(r.ID),
			DefaultLayout: r.Options.DefaultLayout,
			CreatedAt:     r.Options.CreatedAt,
			UpdatedAt:     r.Options.UpdatedAt,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.VoiceBridge != "" {
		vb := r.VoiceBridge
		e.VoiceBridge = &vb
	}
	if r.Status != nil {
		running, checked := r.Status.Running, r.Status.CheckedAt
		e.Running, e.CheckedAt = &running, &checked
	}
	return e
}

func roomFromEntity(e RoomEntity) *domain.Room {
	r := &domain.Room{
		ID:                domain.RoomID(e.ID),
		ServerID:          domain.ServerID(e.ServerID),
		Name:              e.Name,
		MeetingID:         e.MeetingID,
		Param:             e.Param,
		AttendeePassword:  e.AttendeePassword,
		ModeratorPassword: e.ModeratorPassword,
		WelcomeMsg:        e.WelcomeMsg,
		Private:           e.Private,
		LogoutURL:         e.LogoutURL,
		DialNumber:        e.DialNumber,
		MaxParticipants:   e.MaxParticipants,
		OwnerID:           e.OwnerID,
		OwnerType:         e.OwnerType,
		External:          e.External,
		Record:            e.Record,
		Duration:          e.Duration,
		Metadata:          e.Metadata,
		Options: domain.RoomOptions{
			DefaultLayout: e.Options.DefaultLayout,
			CreatedAt:     e.Options.CreatedAt,
			UpdatedAt:     e.Options.UpdatedAt,
		},
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
	if e.VoiceBridge != nil {
		r.VoiceBridge = *e.VoiceBridge
	}
	if e.Running != nil {
		st := domain.MeetingStatus{Running: *e.Running}
		if e.CheckedAt != nil {
			st.CheckedAt = *e.CheckedAt
		}
		r.Status = &st
	}
	return r
}

func recordingToEntity(rec domain.Recording) RecordingEntity {
	e := RecordingEntity{
		RecordID:  rec.RecordID,
		ServerID:  string(rec.ServerID),
		MeetingID: rec.MeetingID,
		Name:      rec.Name,
		Published: rec.Published,
		StartTime: rec.StartTime,
		EndTime:   rec.EndTime,
		Metadata:  rec.Metadata,
		Playbacks: rec.Playbacks,
	}
	if rec.RoomID != "" {
		id := string(rec.RoomID)
		e.RoomID = &id
	}
	return e
}

func recordingFromEntity(e RecordingEntity) domain.Recording {
	rec := domain.Recording{
		RecordID:  e.RecordID,
		ServerID:  domain.ServerID(e.ServerID),
		MeetingID: e.MeetingID,
		Name:      e.Name,
		Published: e.Published,
		StartTime: e.StartTime,
		EndTime:   e.EndTime,
		Metadata:  e.Metadata,
		Playbacks: e.Playbacks,
	}
	if e.RoomID != nil {
		rec.RoomID = domain.RoomID(*e.RoomID)
	}
	return rec
}
