package core

import (
	"context"
	"time"
)

const (
	// MeetingUpdaterTask re-checks a meeting a few seconds after someone joined it.
	MeetingUpdaterTask = "MeetingStatusUpdater"
	// MeetingUpdaterDelay is how long the updater waits, in seconds.
	MeetingUpdaterDelay = 15
)

// Task is a queued job. Args mirror the JSON array stored in the queue.
type Task struct {
	Class string `json:"class"`
	Args  []any  `json:"args"`
}

type TaskScheduler interface {
	Enqueue(ctx context.Context, task Task) error
}

// TaskHandler runs one dequeued task.
type TaskHandler func(ctx context.Context, task Task) error

// DelaySeconds converts a JSON-decoded arg into a duration.
func DelaySeconds(v any) time.Duration {
	switch n := v.(type) {
	case int:
		return time.Duration(n) * time.Second
	case int64:
		return time.Duration(n) * time.Second
	case float64:
		return time.Duration(n * float64(time.Second))
	default:
		return 0
	}
}
