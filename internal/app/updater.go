package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/domain"
	"github.com/dkeye/Rooms/internal/metrics"
)

// ErrLocked is returned by a Locker when another worker holds the lock.
var ErrLocked = errors.New("lock is held elsewhere")

// Locker serializes work across processes. A nil Locker means no serialization.
type Locker interface {
	WithLock(ctx context.Context, name string, ttl time.Duration, fn func() error) error
}

// MeetingUpdater handles MeetingStatusUpdater tasks: wait, ask the server, record the answer.
type MeetingUpdater struct {
	Rooms     core.RoomStore
	Status    core.MeetingStatusChecker
	Publisher core.StatusPublisher
	Locker    Locker
	LockTTL   time.Duration
	Now       func() time.Time
}

func (u *MeetingUpdater) Handle(ctx context.Context, task core.Task) error {
	if task.Class != core.MeetingUpdaterTask {
		return fmt.Errorf("unexpected task class %q", task.Class)
	}
	if len(task.Args) == 0 {
		return errors.New("meeting updater: missing room id")
	}
	id, ok := task.Args[0].(string)
	if !ok || id == "" {
		return fmt.Errorf("meeting updater: bad room id %v", task.Args[0])
	}
	var delay time.Duration
	if len(task.Args) > 1 {
		delay = core.DelaySeconds(task.Args[1])
	}

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if u.Locker == nil {
		return u.update(ctx, domain.RoomID(id))
	}
	ttl := u.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	err := u.Locker.WithLock(ctx, "rooms:updater:"+id, ttl, func() error {
		return u.update(ctx, domain.RoomID(id))
	})
	if errors.Is(err, ErrLocked) {
		metrics.RecordMeetingUpdate("skipped")
		log.Debug().Str("module", "app.updater").Str("room", id).Msg("update already in progress")
		return nil
	}
	return err
}

func (u *MeetingUpdater) update(ctx context.Context, id domain.RoomID) error {
	room, err := u.Rooms.FindByID(ctx, id)
	if errors.Is(err, core.ErrRoomNotFound) {
		metrics.RecordMeetingUpdate("skipped")
		log.Info().Str("module", "app.updater").Str("room", string(id)).Msg("room gone, skipping update")
		return nil
	}
	if err != nil {
		return err
	}

	running, err := u.Status.IsMeetingRunning(ctx, room)
	if err != nil {
		metrics.RecordMeetingUpdate("error")
		return fmt.Errorf("check meeting %s: %w", room.MeetingID, err)
	}

	now := time.Now
	if u.Now != nil {
		now = u.Now
	}
	status := domain.MeetingStatus{Running: running, CheckedAt: now()}
	if err := u.Rooms.SetStatus(ctx, id, status); err != nil {
		return err
	}
	if u.Publisher != nil {
		u.Publisher.PublishStatus(id, status)
	}

	result := "stopped"
	if running {
		result = "running"
	}
	metrics.RecordMeetingUpdate(result)
	log.Info().Str("module", "app.updater").Str("room", string(id)).Bool("running", running).Msg("meeting status updated")
	return nil
}
