package http

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathTo(t *testing.T) {
	tests := []struct {
		page   string
		params map[string]string
		want   string
	}{
		{"home", nil, "/"},
		{"new room", nil, "/bigbluebutton/rooms/new"},
		{"rooms index", nil, "/bigbluebutton/rooms"},
		{"create room", nil, "/bigbluebutton/rooms"},
		{"servers index", nil, "/bigbluebutton/servers"},
		{"the room page", map[string]string{"id": "my-room"}, "/bigbluebutton/rooms/my-room"},
		{"the join room page", map[string]string{"id": "r", "mobile": "1"}, "/bigbluebutton/rooms/r/join?mobile=1"},
		{"rooms index", map[string]string{"z": "1", "a": "x y"}, "/bigbluebutton/rooms?a=x+y&z=1"},
	}
	for _, tt := range tests {
		t.Run(tt.page, func(t *testing.T) {
			got, err := PathTo(tt.page, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := PathTo("the moon page", nil)
	assert.Error(t, err)
	_, err = PathTo("nowhere", nil)
	assert.Error(t, err)
	_, err = PathTo("the room page", nil)
	assert.Error(t, err)
}

func TestTruncateMessage(t *testing.T) {
	assert.Equal(t, "short", TruncateMessage("short"))
	assert.Len(t, TruncateMessage(strings.Repeat("a", 500)), MaxFlashMessage)
	assert.Equal(t, []rune(strings.Repeat("é", MaxFlashMessage)), []rune(TruncateMessage(strings.Repeat("é", 300))))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Authentication failure.", Message("auth.failure"))
	assert.Contains(t, Message("success_with_bbb_error", "boom"), "boom")
	assert.Equal(t, "custom.key", Message("custom.key"))
}

func TestAttemptLimiter(t *testing.T) {
	rl := NewAttemptLimiter(2, time.Minute)
	now := time.Unix(1000, 0)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"))

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.Allow("a"))

	var disabled *AttemptLimiter
	assert.True(t, disabled.Allow("a"))
}

func TestAttemptLimiterSweepsOncePerInterval(t *testing.T) {
	rl := NewAttemptLimiter(5, time.Minute)
	start := time.Unix(1000, 0)
	now := start
	rl.now = func() time.Time { return now }
	at := func(offset time.Duration, key string) {
		t.Helper()
		now = start.Add(offset)
		assert.True(t, rl.Allow(key))
	}

	at(0, "a")
	at(10*time.Second, "b")
	at(65*time.Second, "c")
	assert.NotContains(t, rl.history, "a")
	assert.Contains(t, rl.history, "b")

	at(90*time.Second, "d")
	assert.Contains(t, rl.history, "b", "stale key kept until the next sweep")

	at(125*time.Second, "e")
	assert.NotContains(t, rl.history, "b")
	assert.NotContains(t, rl.history, "c")
	assert.Contains(t, rl.history, "d")
	assert.Contains(t, rl.history, "e")
}
