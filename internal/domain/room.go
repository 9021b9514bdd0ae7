package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"
)

type (
	RoomID   string
	ServerID string
)

const (
	MaxPasswordLen   = 16
	MaxWelcomeMsgLen = 250
)

var (
	ErrRoomNameEmpty       = errors.New("name can't be blank")
	ErrMeetingIDEmpty      = errors.New("meetingid can't be blank")
	ErrParamInvalid        = errors.New("param is invalid")
	ErrPasswordTooLong     = errors.New("password too long")
	ErrWelcomeMsgTooLong   = errors.New("welcome message too long")
	ErrNegativeLimit       = errors.New("max_participants must be greater than or equal to 0")
	ErrNegativeDuration    = errors.New("duration must be greater than or equal to 0")
	ErrMeetingIDTaken      = errors.New("meetingid has already been taken")
	ErrParamTaken          = errors.New("param has already been taken")
	ErrVoiceBridgeTaken    = errors.New("voice_bridge has already been taken")
	ErrRoomServerNotExists = errors.New("server does not exist")
)

var paramFormat = regexp.MustCompile(`^[a-z0-9\-_]+$`)

// Metadata is a free-form key/content pair attached to a room and sent on create.
type Metadata struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	OwnerID string `json:"owner_id,omitempty"`
}

// RoomOptions holds per-room client configuration pushed to the server through a config token.
type RoomOptions struct {
	DefaultLayout string    `json:"default_layout,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// HasChanges reports whether the options differ from the server defaults.
func (o RoomOptions) HasChanges() bool {
	return o.DefaultLayout != ""
}

// MeetingStatus is the last observation of the remote meeting, written by the status updater.
type MeetingStatus struct {
	Running   bool      `json:"running"`
	CheckedAt time.Time `json:"checked_at"`
}

type Room struct {
	ID                RoomID         `json:"id"`
	ServerID          ServerID       `json:"server_id,omitempty"`
	Name              string         `json:"name"`
	MeetingID         string         `json:"meetingid"`
	Param             string         `json:"param"`
	AttendeePassword  string         `json:"attendee_password,omitempty"`
	ModeratorPassword string         `json:"moderator_password,omitempty"`
	WelcomeMsg        string         `json:"welcome_msg,omitempty"`
	Private           bool           `json:"private"`
	LogoutURL         string         `json:"logout_url,omitempty"`
	DialNumber        string         `json:"dial_number,omitempty"`
	VoiceBridge       string         `json:"voice_bridge,omitempty"`
	MaxParticipants   int            `json:"max_participants"`
	OwnerID           string         `json:"owner_id,omitempty"`
	OwnerType         string         `json:"owner_type,omitempty"`
	External          bool           `json:"external"`
	Record            bool           `json:"record"`
	Duration          int            `json:"duration"`
	Options           RoomOptions    `json:"options"`
	Metadata          []Metadata     `json:"metadata,omitempty"`
	Status            *MeetingStatus `json:"status,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
}

// Normalize fills derived fields: meetingid falls back to name, param to a slug of name.
func (r *Room) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	if r.MeetingID == "" {
		r.MeetingID = r.Name
	}
	if r.Param == "" {
		r.Param = Parameterize(r.Name)
	}
}

// Validate checks the fields that do not need the store. Uniqueness is the store's job.
func (r *Room) Validate() error {
	if r.Name == "" {
		return ErrRoomNameEmpty
	}
	if r.MeetingID == "" {
		return ErrMeetingIDEmpty
	}
	if !paramFormat.MatchString(r.Param) {
		return ErrParamInvalid
	}
	if len(r.AttendeePassword) > MaxPasswordLen || len(r.ModeratorPassword) > MaxPasswordLen {
		return ErrPasswordTooLong
	}
	if len(r.WelcomeMsg) > MaxWelcomeMsgLen {
		return ErrWelcomeMsgTooLong
	}
	if r.MaxParticipants < 0 {
		return ErrNegativeLimit
	}
	if r.Duration < 0 {
		return ErrNegativeDuration
	}
	return nil
}

// UserRole maps a password typed by a guest onto a role.
func (r *Room) UserRole(password string) Role {
	switch {
	case password == "":
		return RoleDenied
	case password == r.ModeratorPassword:
		return RoleModerator
	case password == r.AttendeePassword:
		return RoleAttendee
	default:
		return RoleDenied
	}
}

// Parameterize turns a display name into a URL slug.
func Parameterize(s string) string {
	var b strings.Builder
	dash := false
	for _, c := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case c < unicode.MaxASCII && (unicode.IsLetter(c) || unicode.IsDigit(c)) || c == '_':
			b.WriteRune(c)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
