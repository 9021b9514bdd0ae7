package conference

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/Rooms/internal/adapters/bbb"
	"github.com/dkeye/Rooms/internal/adapters/livekit"
	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/core/coretest"
	"github.com/dkeye/Rooms/internal/domain"
)

func fakeFactory(backends map[domain.ServerID]*coretest.Conference) Factory {
	return func(s domain.Server) (core.Conference, error) {
		return backends[s.ID], nil
	}
}

func TestGatewayDispatchesByServer(t *testing.T) {
	a := &coretest.Conference{Running: true, URL: "http://a/join"}
	b := &coretest.Conference{URL: "http://b/join"}
	g, err := NewGateway([]domain.Server{{ID: "a"}, {ID: "b"}}, fakeFactory(map[domain.ServerID]*coretest.Conference{"a": a, "b": b}))
	require.NoError(t, err)
	ctx := context.Background()

	running, err := g.IsMeetingRunning(ctx, &domain.Room{ServerID: "a"})
	require.NoError(t, err)
	assert.True(t, running)

	url, err := g.JoinURL(ctx, &domain.Room{ServerID: "b"}, "n", domain.RoleAttendee, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "http://b/join", url)
	assert.Equal(t, 1, a.RunningCalls)
	assert.Len(t, b.JoinCalls, 1)

	require.NoError(t, g.EndMeeting(ctx, &domain.Room{ServerID: "a"}))
	assert.Equal(t, 1, a.EndCalls)

	_, err = g.FetchRecordings(ctx, domain.Server{ID: "b"}, map[string]string{"meetingID": "m"})
	require.NoError(t, err)
	assert.Equal(t, []map[string]string{{"meetingID": "m"}}, b.FetchFilters)
}

func TestGatewayUnknownServer(t *testing.T) {
	g, err := NewGateway(nil, fakeFactory(nil))
	require.NoError(t, err)
	room := &domain.Room{ServerID: "missing"}

	_, err = g.IsMeetingRunning(context.Background(), room)
	assert.ErrorIs(t, err, core.ErrNoServer)
	assert.ErrorIs(t, g.CreateMeeting(context.Background(), room, nil, core.RequestInfo{}, nil), core.ErrNoServer)
	_, err = g.FetchNewToken(context.Background(), room)
	assert.ErrorIs(t, err, core.ErrNoServer)
}

func TestGatewayRegistry(t *testing.T) {
	servers := []domain.Server{{ID: "a", Name: "A"}, {ID: "b", Name: "B"}}
	g, err := NewGateway(servers, fakeFactory(map[domain.ServerID]*coretest.Conference{}))
	require.NoError(t, err)

	assert.Equal(t, servers, g.Servers())
	s, ok := g.Server("b")
	assert.True(t, ok)
	assert.Equal(t, "B", s.Name)
	_, ok = g.Server("c")
	assert.False(t, ok)

	_, err = NewGateway([]domain.Server{{ID: "a"}, {ID: "a"}}, fakeFactory(nil))
	assert.Error(t, err)
}

func TestDialByKind(t *testing.T) {
	dial := Dial(time.Second)

	c, err := dial(domain.Server{ID: "1", Kind: domain.ServerBigBlueButton, URL: "http://bbb"})
	require.NoError(t, err)
	assert.IsType(t, &bbb.Conference{}, c)

	c, err = dial(domain.Server{ID: "2", Kind: domain.ServerLiveKit, URL: "http://lk", APIKey: "k", APISecret: "s"})
	require.NoError(t, err)
	assert.IsType(t, &livekit.Conference{}, c)

	_, err = dial(domain.Server{ID: "3", Kind: "jitsi"})
	assert.Error(t, err)
}
