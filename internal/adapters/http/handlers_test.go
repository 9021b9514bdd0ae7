package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Rooms/internal/adapters/signal"
	"github.com/dkeye/Rooms/internal/adapters/store"
	"github.com/dkeye/Rooms/internal/app"
	"github.com/dkeye/Rooms/internal/app/join"
	"github.com/dkeye/Rooms/internal/config"
	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/core/coretest"
	"github.com/dkeye/Rooms/internal/domain"
)

const (
	testSecret    = "0123456789abcdef0123456789abcdef"
	testJWTSecret = "viewer-secret"
)

func ptr[T any](v T) *T { return &v }

type fixture struct {
	router    *gin.Engine
	handler   *Handler
	store     *store.MemoryStore
	conf      *coretest.Conference
	scheduler *coretest.Scheduler
	room      *domain.Room
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		store:     store.NewMemoryStore(),
		conf:      &coretest.Conference{},
		scheduler: &coretest.Scheduler{},
	}
	registry := app.NewRegistry()
	servers := coretest.Servers{{ID: "bbb", Name: "Main", Kind: domain.ServerBigBlueButton}}
	rooms := &app.RoomService{
		Rooms:      f.store,
		Recordings: f.store,
		Servers:    servers,
		Conference: f.conf,
		Publisher:  registry,
	}
	policy := app.DefaultPolicy{}
	f.handler = &Handler{
		Rooms:  rooms,
		Policy: policy,
		Resolver: &join.Resolver{
			Status:     f.conf,
			Authorizer: policy,
			Options:    policy,
			Creator:    f.conf,
			Tokens:     f.conf,
			URLs:       f.conf,
			Scheduler:  f.scheduler,
		},
		Servers:  servers,
		Status:   signal.NewStatusWSController(registry, 0, 0),
		Attempts: NewAttemptLimiter(100, time.Minute),
	}

	cfg := &config.Config{Mode: "test", Secret: testSecret}
	cfg.Auth.JWTSecret = testJWTSecret
	cfg.Auth.ViewerCookie = "viewer"
	cfg.Tracing.ServiceName = "rooms-test"
	f.router = SetupRouter(context.Background(), cfg, f.handler)

	room, err := rooms.Create(context.Background(), app.RoomForm{
		Name:              ptr("Weekly Sync"),
		AttendeePassword:  ptr("att"),
		ModeratorPassword: ptr("mod"),
	})
	require.NoError(t, err)
	f.room = room
	return f
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func viewerToken(t *testing.T, id, name string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, ViewerClaims{
		Name:             name,
		RegisteredClaims: jwt.RegisteredClaims{Subject: id},
	}).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return tok
}

func postAuth(path, name, password string) *http.Request {
	form := url.Values{"user[name]": {name}, "user[password]": {password}}
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func flashes(t *testing.T, body map[string]any, kind string) []any {
	t.Helper()
	fl, ok := body["flash"].(map[string]any)
	require.True(t, ok, "response has no flash: %v", body)
	list, _ := fl[kind].([]any)
	return list
}

func TestJoinLoggedInViewerRedirects(t *testing.T) {
	f := newFixture(t)
	f.conf.Running = true
	f.conf.URL = "https://bbb.example.com/join?x=1"

	req := httptest.NewRequest(http.MethodGet, "/bigbluebutton/rooms/weekly-sync/join", nil)
	req.Header.Set("Authorization", "Bearer "+viewerToken(t, "u-1", "Alice"))
	w := f.do(req)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://bbb.example.com/join?x=1", w.Header().Get("Location"))
	require.Len(t, f.conf.JoinCalls, 1)
	assert.Equal(t, coretest.JoinURLCall{Name: "Alice", Role: domain.RoleModerator, UserID: "u-1", Options: map[string]string{}}, f.conf.JoinCalls[0])
	assert.Len(t, f.scheduler.Enqueued(), 1)
}

func TestJoinMobileRewritesScheme(t *testing.T) {
	f := newFixture(t)
	f.conf.Running = true
	f.conf.URL = "https://bbb.example.com/join"

	req := httptest.NewRequest(http.MethodGet, "/bigbluebutton/rooms/weekly-sync/join?mobile=1", nil)
	req.Header.Set("Authorization", "Bearer "+viewerToken(t, "u-1", "Alice"))
	w := f.do(req)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "bigbluebutton://bbb.example.com/join", w.Header().Get("Location"))
}

func TestJoinGuestGoesToInvite(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/bigbluebutton/rooms/weekly-sync/join", nil))

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/bigbluebutton/rooms/weekly-sync/invite", w.Header().Get("Location"))
	assert.Zero(t, f.conf.RunningCalls)
}

func TestJoinUnknownRoom(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/bigbluebutton/rooms/nope/join", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
	body := decode(t, w)
	assert.Equal(t, "not_found", body["error"].(map[string]any)["type"])
}

func TestInvalidViewerTokenRejected(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/bigbluebutton/rooms/weekly-sync/join", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	w := f.do(req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestInviteShowsRole(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/bigbluebutton/rooms/weekly-sync/invite", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "password", body["user_role"])
	room := body["room"].(map[string]any)
	assert.Equal(t, "weekly-sync", room["param"])
	assert.NotContains(t, room, "moderator_password")
}

func TestJoinMobileEndpoint(t *testing.T) {
	f := newFixture(t)
	f.conf.URL = "https://bbb.example.com/join?a=b"

	req := httptest.NewRequest(http.MethodGet, "/bigbluebutton/rooms/weekly-sync/join_mobile", nil)
	req.Host = "rooms.example.com"
	w := f.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "http://rooms.example.com/bigbluebutton/rooms/weekly-sync/join?mobile=1", body["join_url"])
	assert.Equal(t, "bigbluebutton://bbb.example.com/join?a=b", body["qrcode_url"])
}

func TestAuthModeratorPasswordCreatesMeeting(t *testing.T) {
	f := newFixture(t)
	f.conf.URL = "https://bbb.example.com/join"

	w := f.do(postAuth("/bigbluebutton/rooms/weekly-sync/auth", "Guest", "mod"))

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://bbb.example.com/join", w.Header().Get("Location"))
	require.Len(t, f.conf.CreateCalls, 1)
	require.Len(t, f.conf.JoinCalls, 1)
	assert.Equal(t, "Guest", f.conf.JoinCalls[0].Name)
	assert.Equal(t, domain.RoleModerator, f.conf.JoinCalls[0].Role)
	assert.Empty(t, f.conf.JoinCalls[0].UserID)
}

func TestAuthAttendeeCannotCreate(t *testing.T) {
	f := newFixture(t)

	w := f.do(postAuth("/bigbluebutton/rooms/weekly-sync/auth", "Guest", "att"))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, []any{Message("auth.cannot_create")}, flashes(t, decode(t, w), flashError))
	assert.Empty(t, f.conf.CreateCalls)
}

func TestAuthNotRunning(t *testing.T) {
	f := newFixture(t)
	f.conf.Running = true

	w := f.do(postAuth("/bigbluebutton/rooms/weekly-sync/auth", "Guest", "att"))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []any{Message("auth.not_running")}, flashes(t, decode(t, w), flashNotice))
}

func TestAuthFailures(t *testing.T) {
	tests := []struct {
		name, user, password string
	}{
		{"wrong password", "Guest", "nope"},
		{"blank name", "  ", "mod"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			w := f.do(postAuth("/bigbluebutton/rooms/weekly-sync/auth", tt.user, tt.password))

			require.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, []any{Message("auth.failure")}, flashes(t, decode(t, w), flashError))
			assert.Zero(t, f.conf.RunningCalls)
		})
	}
}

func TestAuthUnknownRoomRedirectsBack(t *testing.T) {
	f := newFixture(t)

	req := postAuth("/bigbluebutton/rooms/missing/auth", "Guest", "mod")
	req.Header.Set("Referer", "/somewhere")
	w := f.do(req)

	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/somewhere", w.Header().Get("Location"))
}

func TestAuthRemoteErrorIsTruncated(t *testing.T) {
	f := newFixture(t)
	f.conf.RunningErr = &core.RemoteError{Call: "isMeetingRunning", Message: strings.Repeat("x", 300)}

	w := f.do(postAuth("/bigbluebutton/rooms/weekly-sync/auth", "Guest", "mod"))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/bigbluebutton/rooms/weekly-sync", w.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/bigbluebutton/rooms/weekly-sync", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	body := decode(t, f.do(req))
	assert.Equal(t, []any{strings.Repeat("x", MaxFlashMessage)}, flashes(t, body, flashError))
}

func TestAuthIsRateLimited(t *testing.T) {
	f := newFixture(t)
	f.handler.Attempts = NewAttemptLimiter(1, time.Minute)

	first := postAuth("/bigbluebutton/rooms/weekly-sync/auth", "Guest", "nope")
	first.AddCookie(&http.Cookie{Name: "ct", Value: "client-1"})
	assert.Equal(t, http.StatusUnauthorized, f.do(first).Code)

	second := postAuth("/bigbluebutton/rooms/weekly-sync/auth", "Guest", "mod")
	second.AddCookie(&http.Cookie{Name: "ct", Value: "client-1"})
	assert.Equal(t, http.StatusTooManyRequests, f.do(second).Code)
}

func TestRunning(t *testing.T) {
	f := newFixture(t)
	f.conf.Running = true

	w := f.do(httptest.NewRequest(http.MethodGet, "/bigbluebutton/rooms/weekly-sync/running", nil))
	assert.JSONEq(t, `{"running":"true"}`, w.Body.String())

	f.conf.RunningErr = &core.RemoteError{Message: "down"}
	w = f.do(httptest.NewRequest(http.MethodGet, "/bigbluebutton/rooms/weekly-sync/running", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"running":"false"}`, w.Body.String())
}

func TestEnd(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/bigbluebutton/rooms/weekly-sync/end", nil))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Zero(t, f.conf.EndCalls)

	f.conf.Running = true
	w = f.do(httptest.NewRequest(http.MethodGet, "/bigbluebutton/rooms/weekly-sync/end?redir_url=/done", nil))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/done", w.Header().Get("Location"))
	assert.Equal(t, 1, f.conf.EndCalls)
}

func TestFetchRecordings(t *testing.T) {
	f := newFixture(t)
	f.conf.Recordings = []domain.Recording{{RecordID: "r1", MeetingID: "Weekly Sync", StartTime: time.Unix(1, 0)}}

	w := f.do(httptest.NewRequest(http.MethodPost, "/bigbluebutton/rooms/weekly-sync/fetch_recordings", nil))
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/bigbluebutton/rooms/weekly-sync", w.Header().Get("Location"))

	w = f.do(httptest.NewRequest(http.MethodGet, "/bigbluebutton/rooms/weekly-sync/recordings", nil))
	require.Equal(t, http.StatusOK, w.Code)
	recs := decode(t, w)["recordings"].([]any)
	require.Len(t, recs, 1)
	assert.Equal(t, "r1", recs[0].(map[string]any)["record_id"])
}

func TestCreateRoom(t *testing.T) {
	f := newFixture(t)

	body := `{"name":"Design Review","attendee_password":"a","moderator_password":"m","unknown":"x"}`
	req := httptest.NewRequest(http.MethodPost, "/bigbluebutton/rooms", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := f.do(req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/bigbluebutton/rooms/design-review", w.Header().Get("Location"))
	room, err := f.store.FindByParam(context.Background(), "design-review")
	require.NoError(t, err)
	assert.Equal(t, "Design Review", room.MeetingID)
	assert.Equal(t, domain.ServerID("bbb"), room.ServerID)
}

func TestCreateRoomFromForm(t *testing.T) {
	f := newFixture(t)

	form := url.Values{"room[name]": {"Form Room"}, "room[max_participants]": {"12"}, "room[private]": {"true"}}
	req := httptest.NewRequest(http.MethodPost, "/bigbluebutton/rooms", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := f.do(req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	room, err := f.store.FindByParam(context.Background(), "form-room")
	require.NoError(t, err)
	assert.Equal(t, 12, room.MaxParticipants)
	assert.True(t, room.Private)
}

func TestCreateRoomValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing name", `{"moderator_password":"m"}`},
		{"duplicate param", `{"name":"Weekly Sync","meetingid":"other"}`},
		{"negative limit", `{"name":"X","max_participants":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/bigbluebutton/rooms", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := f.do(req)
			assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
		})
	}
}

func TestUpdateAndDestroyRoom(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPut, "/bigbluebutton/rooms/weekly-sync", strings.NewReader(`{"welcome_msg":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	w := f.do(req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	room, err := f.store.FindByParam(context.Background(), "weekly-sync")
	require.NoError(t, err)
	assert.Equal(t, "hello", room.WelcomeMsg)

	f.conf.Running = true
	f.conf.EndErr = &core.RemoteError{Message: "could not end"}
	w = f.do(httptest.NewRequest(http.MethodDelete, "/bigbluebutton/rooms/weekly-sync", nil))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/bigbluebutton/rooms", w.Header().Get("Location"))
	_, err = f.store.FindByParam(context.Background(), "weekly-sync")
	assert.ErrorIs(t, err, core.ErrRoomNotFound)
}

func TestRoomsIndexHidesPasswords(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/bigbluebutton/rooms", nil))

	require.Equal(t, http.StatusOK, w.Code)
	rooms := decode(t, w)["rooms"].([]any)
	require.Len(t, rooms, 1)
	assert.NotContains(t, rooms[0], "attendee_password")
}

func TestServers(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/bigbluebutton/servers/bbb", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Main", decode(t, w)["server"].(map[string]any)["name"])

	w = f.do(httptest.NewRequest(http.MethodGet, "/bigbluebutton/servers/other", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)
	assert.Equal(t, http.StatusOK, f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil)).Code)

	f.handler.Ready = func(context.Context) error { return assert.AnError }
	assert.Equal(t, http.StatusServiceUnavailable, f.do(httptest.NewRequest(http.MethodGet, "/readyz", nil)).Code)

	w := f.do(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestRedirURLIsHonoured(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/bigbluebutton/rooms?redir_url=/created", strings.NewReader(`{"name":"Other"}`))
	req.Header.Set("Content-Type", "application/json")
	w := f.do(req)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "/created", w.Header().Get("Location"))

	form := url.Values{"room[welcome_msg]": {"hi"}, "redir_url": {"/updated"}}
	req = httptest.NewRequest(http.MethodPut, "/bigbluebutton/rooms/other", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w = f.do(req)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	assert.Equal(t, "/updated", w.Header().Get("Location"))

	w = f.do(httptest.NewRequest(http.MethodDelete, "/bigbluebutton/rooms/weekly-sync?redir_url=/any", nil))
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/any", w.Header().Get("Location"))
}

func TestAuthFailureKeepsPasswordRole(t *testing.T) {
	tests := []struct {
		name, user, password string
	}{
		{"wrong password", "Guest", "nope"},
		{"blank name with moderator password", "", "mod"},
		{"blank name with attendee password", " ", "att"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			w := f.do(postAuth("/bigbluebutton/rooms/weekly-sync/auth", tt.user, tt.password))

			require.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, "password", decode(t, w)["user_role"])
		})
	}
}
