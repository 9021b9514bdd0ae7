package core

import (
	"context"

	"github.com/dkeye/Rooms/internal/domain"
)

// ConfigTokenKey is the join option carrying a per-room client configuration token.
const ConfigTokenKey = "configToken"

// RequestInfo is the request-scoped data forwarded to the remote conference API.
type RequestInfo struct {
	ForwardedFor string
	UserAgent    string
	RequestID    string
}

type requestInfoKey struct{}

func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

func RequestInfoFrom(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}

type RoleResolver interface {
	Role(ctx context.Context, room *domain.Room, viewer *domain.Viewer) domain.Role
}

type MeetingStatusChecker interface {
	IsMeetingRunning(ctx context.Context, room *domain.Room) (bool, error)
}

type CreateAuthorizer interface {
	CanCreate(ctx context.Context, room *domain.Room, role domain.Role) bool
}

type CreateOptionsProvider interface {
	CreateOptions(ctx context.Context, room *domain.Room) map[string]string
}

type MeetingCreator interface {
	CreateMeeting(ctx context.Context, room *domain.Room, viewer *domain.Viewer, req RequestInfo, opts map[string]string) error
}

// TokenIssuer returns an empty token when the room needs no extra client configuration.
type TokenIssuer interface {
	FetchNewToken(ctx context.Context, room *domain.Room) (string, error)
}

// JoinURLBuilder returns an empty URL when the role cannot join right now.
type JoinURLBuilder interface {
	JoinURL(ctx context.Context, room *domain.Room, name string, role domain.Role, userID domain.UserID, opts map[string]string) (string, error)
}

type MeetingEnder interface {
	EndMeeting(ctx context.Context, room *domain.Room) error
}

type RecordingFetcher interface {
	FetchRecordings(ctx context.Context, server domain.Server, filter map[string]string) ([]domain.Recording, error)
}

// Conference is everything a backend offers for rooms hosted on it.
type Conference interface {
	MeetingStatusChecker
	MeetingCreator
	TokenIssuer
	JoinURLBuilder
	MeetingEnder
	RecordingFetcher
}
