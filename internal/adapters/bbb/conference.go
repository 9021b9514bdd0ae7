package bbb

import (
	"context"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/domain"
)

// Conference hosts rooms on one BigBlueButton server.
type Conference struct {
	client *Client
}

func NewConference(server domain.Server, timeout time.Duration) *Conference {
	return &Conference{client: NewClient(server.URL, server.Secret, timeout)}
}

func (c *Conference) IsMeetingRunning(ctx context.Context, room *domain.Room) (bool, error) {
	return c.client.IsMeetingRunning(ctx, room.MeetingID)
}

func (c *Conference) CreateMeeting(ctx context.Context, room *domain.Room, viewer *domain.Viewer, req core.RequestInfo, opts map[string]string) error {
	params := url.Values{
		"name":        {room.Name},
		"meetingID":   {room.MeetingID},
		"attendeePW":  {room.AttendeePassword},
		"moderatorPW": {room.ModeratorPassword},
	}
	setIf := func(key, value string) {
		if value != "" {
			params.Set(key, value)
		}
	}
	setIf("welcome", room.WelcomeMsg)
	setIf("dialNumber", room.DialNumber)
	setIf("voiceBridge", room.VoiceBridge)
	setIf("logoutURL", room.LogoutURL)
	if room.MaxParticipants > 0 {
		params.Set("maxParticipants", strconv.Itoa(room.MaxParticipants))
	}
	if room.Duration > 0 {
		params.Set("duration", strconv.Itoa(room.Duration))
	}
	params.Set("record", strconv.FormatBool(room.Record))
	for _, m := range room.Metadata {
		if m.Name != "" {
			params.Set("meta_"+m.Name, m.Content)
		}
	}
	if !viewer.Anonymous() {
		params.Set("meta_creator-id", string(viewer.ID))
	}
	for k, v := range opts {
		params.Set(k, v)
	}
	return c.client.CreateMeeting(core.WithRequestInfo(ctx, req), params)
}

// FetchNewToken pushes the room's client options to the server. Rooms on server defaults get no token.
func (c *Conference) FetchNewToken(ctx context.Context, room *domain.Room) (string, error) {
	if !room.Options.HasChanges() {
		return "", nil
	}
	doc, err := c.client.DefaultConfigXML(ctx)
	if err != nil {
		return "", err
	}
	return c.client.SetConfigXML(ctx, room.MeetingID, SetDefaultLayout(doc, room.Options.DefaultLayout))
}

// JoinURL signs a join link locally. Only moderators and attendees have a password to join with.
func (c *Conference) JoinURL(_ context.Context, room *domain.Room, name string, role domain.Role, userID domain.UserID, opts map[string]string) (string, error) {
	var password string
	switch role {
	case domain.RoleModerator:
		password = room.ModeratorPassword
	case domain.RoleAttendee:
		password = room.AttendeePassword
	default:
		return "", nil
	}
	params := url.Values{
		"fullName":  {name},
		"meetingID": {room.MeetingID},
		"password":  {password},
	}
	if userID != "" {
		params.Set("userID", string(userID))
	}
	for k, v := range opts {
		params.Set(k, v)
	}
	return c.client.URL("join", params), nil
}

func (c *Conference) EndMeeting(ctx context.Context, room *domain.Room) error {
	return c.client.EndMeeting(ctx, room.MeetingID, room.ModeratorPassword)
}

func (c *Conference) FetchRecordings(ctx context.Context, server domain.Server, filter map[string]string) ([]domain.Recording, error) {
	params := url.Values{}
	for k, v := range filter {
		params.Set(k, v)
	}
	raw, err := c.client.GetRecordings(ctx, params)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Recording, 0, len(raw))
	for _, r := range raw {
		rec := domain.Recording{
			RecordID:  r.RecordID,
			ServerID:  server.ID,
			MeetingID: r.MeetingID,
			Name:      r.Name,
			Published: r.Published,
			StartTime: fromMillis(r.StartTime),
			EndTime:   fromMillis(r.EndTime),
		}
		if len(r.Metadata.Items) > 0 {
			rec.Metadata = make(map[string]string, len(r.Metadata.Items))
			for _, item := range r.Metadata.Items {
				rec.Metadata[item.XMLName.Local] = item.Value
			}
		}
		for _, f := range r.Formats {
			rec.Playbacks = append(rec.Playbacks, domain.Playback{Format: f.Type, URL: f.URL, Length: f.Length})
		}
		out = append(out, rec)
	}
	return out, nil
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

var (
	layoutAttr = regexp.MustCompile(`(<layout\b[^>]*?\bdefaultLayout=")[^"]*(")`)
	layoutTag  = regexp.MustCompile(`<layout\b`)

	attrEscaper = strings.NewReplacer("&", "&amp;", `"`, "&quot;", "<", "&lt;", ">", "&gt;")
)

// SetDefaultLayout rewrites the defaultLayout attribute of the <layout> element, adding it when missing.
func SetDefaultLayout(doc, layout string) string {
	value := attrEscaper.Replace(layout)
	if layoutAttr.MatchString(doc) {
		return layoutAttr.ReplaceAllStringFunc(doc, func(m string) string {
			sub := layoutAttr.FindStringSubmatch(m)
			return sub[1] + value + sub[2]
		})
	}
	if loc := layoutTag.FindStringIndex(doc); loc != nil {
		return doc[:loc[1]] + ` defaultLayout="` + value + `"` + doc[loc[1]:]
	}
	return doc
}
