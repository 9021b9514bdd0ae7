// Package livekit hosts rooms on a LiveKit server through its room service API.
package livekit

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"
	"github.com/livekit/protocol/livekit"
	lksdk "github.com/livekit/server-sdk-go/v2"

	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/domain"
	"github.com/dkeye/Rooms/internal/metrics"
)

const defaultTokenTTL = 4 * time.Hour

type Conference struct {
	rooms     *lksdk.RoomServiceClient
	apiKey    string
	apiSecret string
	wsURL     string
	clientURL string
	tokenTTL  time.Duration
}

func NewConference(server domain.Server) *Conference {
	return &Conference{
		rooms:     lksdk.NewRoomServiceClient(server.URL, server.APIKey, server.APISecret),
		apiKey:    server.APIKey,
		apiSecret: server.APISecret,
		wsURL:     toWebsocketURL(server.URL),
		clientURL: server.ClientURL,
		tokenTTL:  defaultTokenTTL,
	}
}

func toWebsocketURL(u string) string {
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	default:
		return u
	}
}

func remote(call string, err error) error {
	metrics.RecordRemoteCall("livekit", call, err)
	if err == nil {
		return nil
	}
	return &core.RemoteError{Call: call, Message: err.Error(), Cause: err}
}

// requestFailed reports a call that could not be built, so no server was contacted.
func requestFailed(call string, err error) error {
	return &core.RemoteError{Call: call, Message: err.Error(), Cause: err}
}

func (c *Conference) IsMeetingRunning(ctx context.Context, room *domain.Room) (bool, error) {
	resp, err := c.rooms.ListRooms(ctx, &livekit.ListRoomsRequest{Names: []string{room.MeetingID}})
	if err := remote("ListRooms", err); err != nil {
		return false, err
	}
	for _, r := range resp.GetRooms() {
		if r.GetName() == room.MeetingID {
			return true, nil
		}
	}
	return false, nil
}

func (c *Conference) CreateMeeting(ctx context.Context, room *domain.Room, viewer *domain.Viewer, _ core.RequestInfo, opts map[string]string) error {
	meta := map[string]string{"name": room.Name}
	if room.WelcomeMsg != "" {
		meta["welcome"] = room.WelcomeMsg
	}
	for _, m := range room.Metadata {
		meta[m.Name] = m.Content
	}
	if !viewer.Anonymous() {
		meta["creator-id"] = string(viewer.ID)
	}
	for k, v := range opts {
		meta[k] = v
	}
	encoded, err := json.Marshal(meta)
	if err != nil {
		return requestFailed("CreateRoom", err)
	}
	req := &livekit.CreateRoomRequest{
		Name:     room.MeetingID,
		Metadata: string(encoded),
	}
	if room.MaxParticipants > 0 {
		req.MaxParticipants = uint32(room.MaxParticipants)
	}
	_, err = c.rooms.CreateRoom(ctx, req)
	return remote("CreateRoom", err)
}

// FetchNewToken always returns an empty token: client options travel inside the access token.
func (c *Conference) FetchNewToken(context.Context, *domain.Room) (string, error) {
	return "", nil
}

// JoinURL mints an access token for the role and points the web client at it.
func (c *Conference) JoinURL(_ context.Context, room *domain.Room, name string, role domain.Role, userID domain.UserID, opts map[string]string) (string, error) {
	canPublish := true
	grant := &auth.VideoGrant{
		RoomJoin:   true,
		Room:       room.MeetingID,
		CanPublish: &canPublish,
	}
	switch role {
	case domain.RoleModerator:
		grant.RoomAdmin = true
	case domain.RoleAttendee:
	default:
		return "", nil
	}

	identity := string(userID)
	if identity == "" {
		identity = "guest-" + uuid.NewString()
	}
	at := auth.NewAccessToken(c.apiKey, c.apiSecret)
	at.AddGrant(grant).
		SetIdentity(identity).
		SetName(name).
		SetValidFor(c.tokenTTL)
	if layout := room.Options.DefaultLayout; layout != "" {
		at.SetMetadata(`{"layout":` + jsonString(layout) + `}`)
	}
	token, err := at.ToJWT()
	if err != nil {
		return "", requestFailed("JoinURL", err)
	}

	q := url.Values{"liveKitUrl": {c.wsURL}, "token": {token}}
	for k, v := range opts {
		q.Set(k, v)
	}
	base := c.clientURL
	if base == "" {
		base = c.wsURL
	}
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + q.Encode(), nil
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (c *Conference) EndMeeting(ctx context.Context, room *domain.Room) error {
	_, err := c.rooms.DeleteRoom(ctx, &livekit.DeleteRoomRequest{Room: room.MeetingID})
	return remote("DeleteRoom", err)
}

// FetchRecordings is not offered: LiveKit egress output is not tracked by this service.
func (c *Conference) FetchRecordings(context.Context, domain.Server, map[string]string) ([]domain.Recording, error) {
	return nil, &core.RemoteError{
		Call:    "getRecordings",
		Message: "recordings are not available on LiveKit servers",
		Cause:   core.ErrUnsupported,
	}
}
