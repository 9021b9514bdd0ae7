package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/domain"
)

// ValidationError wraps a rule a room failed before being saved.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type MetadataForm struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Destroy bool   `json:"_destroy"`
	OwnerID string `json:"owner_id"`
}

// RoomForm carries the attributes a client may set on a room. Nil fields are left untouched.
type RoomForm struct {
	Name              *string        `json:"name"`
	ServerID          *string        `json:"server_id"`
	MeetingID         *string        `json:"meetingid"`
	AttendeePassword  *string        `json:"attendee_password"`
	ModeratorPassword *string        `json:"moderator_password"`
	WelcomeMsg        *string        `json:"welcome_msg"`
	Private           *bool          `json:"private"`
	LogoutURL         *string        `json:"logout_url"`
	DialNumber        *string        `json:"dial_number"`
	VoiceBridge       *string        `json:"voice_bridge"`
	MaxParticipants   *int           `json:"max_participants"`
	OwnerID           *string        `json:"owner_id"`
	OwnerType         *string        `json:"owner_type"`
	External          *bool          `json:"external"`
	Param             *string        `json:"param"`
	Record            *bool          `json:"record"`
	Duration          *int           `json:"duration"`
	DefaultLayout     *string        `json:"default_layout"`
	Metadata          []MetadataForm `json:"metadata_attributes"`
}

// DecodeRoomForm builds a form from loosely typed input such as posted form fields.
// Keys outside the permitted set are ignored.
func DecodeRoomForm(raw map[string]string) (RoomForm, error) {
	var form RoomForm
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           &form,
	})
	if err != nil {
		return form, err
	}
	if err := dec.Decode(raw); err != nil {
		return form, &ValidationError{Err: err}
	}
	return form, nil
}

// Apply copies the set fields of the form onto the room.
func (f RoomForm) Apply(r *domain.Room) {
	setString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	setBool := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	setInt := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	setString(&r.Name, f.Name)
	if f.ServerID != nil {
		r.ServerID = domain.ServerID(*f.ServerID)
	}
	setString(&r.MeetingID, f.MeetingID)
	setString(&r.AttendeePassword, f.AttendeePassword)
	setString(&r.ModeratorPassword, f.ModeratorPassword)
	setString(&r.WelcomeMsg, f.WelcomeMsg)
	setBool(&r.Private, f.Private)
	setString(&r.LogoutURL, f.LogoutURL)
	setString(&r.DialNumber, f.DialNumber)
	setString(&r.VoiceBridge, f.VoiceBridge)
	setInt(&r.MaxParticipants, f.MaxParticipants)
	setString(&r.OwnerID, f.OwnerID)
	setString(&r.OwnerType, f.OwnerType)
	setBool(&r.External, f.External)
	setString(&r.Param, f.Param)
	setBool(&r.Record, f.Record)
	setInt(&r.Duration, f.Duration)
	setString(&r.Options.DefaultLayout, f.DefaultLayout)

	for _, m := range f.Metadata {
		r.Metadata = applyMetadata(r.Metadata, m)
	}
}

func applyMetadata(list []domain.Metadata, m MetadataForm) []domain.Metadata {
	for i := range list {
		if m.ID == "" || list[i].ID != m.ID {
			continue
		}
		if m.Destroy {
			return append(list[:i], list[i+1:]...)
		}
		list[i].Name, list[i].Content, list[i].OwnerID = m.Name, m.Content, m.OwnerID
		return list
	}
	if m.Destroy {
		return list
	}
	id := m.ID
	if id == "" {
		id = uuid.NewString()
	}
	return append(list, domain.Metadata{ID: id, Name: m.Name, Content: m.Content, OwnerID: m.OwnerID})
}

// RoomService is the room lifecycle around the conference servers.
type RoomService struct {
	Rooms      core.RoomStore
	Recordings core.RecordingStore
	Servers    core.ServerRegistry
	Conference core.Conference
	Publisher  core.StatusPublisher
	Now        func() time.Time
}

func (s *RoomService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *RoomService) List(ctx context.Context) ([]domain.Room, error) {
	return s.Rooms.List(ctx)
}

func (s *RoomService) Get(ctx context.Context, param string) (*domain.Room, error) {
	return s.Rooms.FindByParam(ctx, param)
}

// New returns an unsaved room with default values for a blank form.
func (s *RoomService) New() *domain.Room {
	r := &domain.Room{}
	if servers := s.Servers.Servers(); len(servers) > 0 {
		r.ServerID = servers[0].ID
	}
	return r
}

func (s *RoomService) Create(ctx context.Context, form RoomForm) (*domain.Room, error) {
	room := s.New()
	form.Apply(room)
	if err := s.validate(room); err != nil {
		return room, err
	}
	room.ID = domain.RoomID(uuid.NewString())
	now := s.now()
	room.CreatedAt, room.UpdatedAt = now, now
	room.Options.CreatedAt, room.Options.UpdatedAt = now, now
	if err := s.Rooms.Create(ctx, room); err != nil {
		return room, err
	}
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Str("param", room.Param).Msg("room created")
	return room, nil
}

func (s *RoomService) Update(ctx context.Context, param string, form RoomForm) (*domain.Room, error) {
	room, err := s.Rooms.FindByParam(ctx, param)
	if err != nil {
		return nil, err
	}
	form.Apply(room)
	if err := s.validate(room); err != nil {
		return room, err
	}
	room.UpdatedAt = s.now()
	room.Options.UpdatedAt = room.UpdatedAt
	if err := s.Rooms.Update(ctx, room); err != nil {
		return room, err
	}
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Msg("room updated")
	return room, nil
}

func (s *RoomService) validate(room *domain.Room) error {
	room.Normalize()
	if err := room.Validate(); err != nil {
		return &ValidationError{Err: err}
	}
	if room.ServerID != "" {
		if _, ok := s.Servers.Server(room.ServerID); !ok {
			return &ValidationError{Err: domain.ErrRoomServerNotExists}
		}
	}
	return nil
}

// Destroy ends a running meeting and deletes the room. A remote failure while ending does
// not stop the delete; it is returned as remoteErr for the caller to report.
func (s *RoomService) Destroy(ctx context.Context, room *domain.Room) (remoteErr error, err error) {
	if room.ServerID != "" {
		if _, err := s.End(ctx, room); err != nil {
			if !core.IsRemote(err) && !errors.Is(err, core.ErrNoServer) {
				return nil, err
			}
			remoteErr = err
		}
	}
	if err := s.Rooms.Delete(ctx, room.ID); err != nil {
		return remoteErr, err
	}
	if f, ok := s.Publisher.(interface{ Forget(domain.RoomID) }); ok {
		f.Forget(room.ID)
	}
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Msg("room destroyed")
	return remoteErr, nil
}

func (s *RoomService) Running(ctx context.Context, room *domain.Room) (bool, error) {
	return s.Conference.IsMeetingRunning(ctx, room)
}

// End stops the meeting if it is running and reports whether it was.
func (s *RoomService) End(ctx context.Context, room *domain.Room) (bool, error) {
	running, err := s.Conference.IsMeetingRunning(ctx, room)
	if err != nil || !running {
		return false, err
	}
	if err := s.Conference.EndMeeting(ctx, room); err != nil {
		return false, err
	}
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Msg("meeting ended")
	return true, nil
}

// FetchRecordings pulls this room's recordings from its server and stores them.
func (s *RoomService) FetchRecordings(ctx context.Context, room *domain.Room) (int, error) {
	if room.ServerID == "" {
		return 0, core.ErrNoServer
	}
	server, ok := s.Servers.Server(room.ServerID)
	if !ok {
		return 0, core.ErrNoServer
	}
	recs, err := s.Conference.FetchRecordings(ctx, server, map[string]string{"meetingID": room.MeetingID})
	if err != nil {
		return 0, err
	}
	for i := range recs {
		recs[i].ServerID = server.ID
		if recs[i].MeetingID == room.MeetingID {
			recs[i].RoomID = room.ID
		}
	}
	if err := s.Recordings.UpsertRecordings(ctx, recs); err != nil {
		return 0, fmt.Errorf("store recordings: %w", err)
	}
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Int("count", len(recs)).Msg("recordings fetched")
	return len(recs), nil
}

func (s *RoomService) ListRecordings(ctx context.Context, room *domain.Room) ([]domain.Recording, error) {
	return s.Recordings.RecordingsByRoom(ctx, room.ID)
}
