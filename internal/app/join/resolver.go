// Package join decides what happens when a viewer asks to enter a room.
package join

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/domain"
	"github.com/dkeye/Rooms/internal/metrics"
)

// MobileScheme replaces the scheme of join URLs handed to mobile clients.
const MobileScheme = "bigbluebutton"

const enqueueTimeout = 2 * time.Second

var tracer = otel.Tracer("github.com/dkeye/Rooms/internal/app/join")

type Request struct {
	Room    *domain.Room
	Viewer  *domain.Viewer
	Role    domain.Role
	Mobile  bool
	Request core.RequestInfo
}

// Resolver runs one join decision per call and keeps no state between calls.
type Resolver struct {
	Status     core.MeetingStatusChecker
	Authorizer core.CreateAuthorizer
	Options    core.CreateOptionsProvider
	Creator    core.MeetingCreator
	Tokens     core.TokenIssuer
	URLs       core.JoinURLBuilder
	Scheduler  core.TaskScheduler
}

func (r *Resolver) Resolve(ctx context.Context, req Request) (core.JoinOutcome, error) {
	ctx, span := tracer.Start(ctx, "join.resolve", trace.WithAttributes(
		attribute.String("room.id", string(req.Room.ID)),
		attribute.String("role", req.Role.String()),
		attribute.Bool("mobile", req.Mobile),
	))
	defer span.End()

	start := time.Now()
	out, err := r.resolve(ctx, req)
	metrics.JoinDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, core.ErrAccessDenied):
		metrics.RecordJoinOutcome("denied")
	case err != nil:
		metrics.RecordJoinOutcome("error")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		metrics.RecordJoinOutcome(out.Kind.String())
		span.SetAttributes(attribute.String("outcome", out.Kind.String()))
	}
	return out, err
}

func (r *Resolver) resolve(ctx context.Context, req Request) (core.JoinOutcome, error) {
	if !req.Role.Granted() {
		return core.JoinOutcome{}, core.ErrAccessDenied
	}
	room := req.Room

	running, err := r.Status.IsMeetingRunning(ctx, room)
	if err != nil {
		return core.JoinOutcome{}, err
	}
	if !running {
		if !r.Authorizer.CanCreate(ctx, room, req.Role) {
			log.Info().Str("module", "app.join").Str("room", string(room.ID)).
				Str("role", req.Role.String()).Msg("role cannot create meeting")
			return core.Unauthorized(core.ReasonCannotCreate), nil
		}
		opts := r.Options.CreateOptions(ctx, room)
		if err := r.Creator.CreateMeeting(ctx, room, req.Viewer, req.Request, opts); err != nil {
			return core.JoinOutcome{}, err
		}
		log.Info().Str("module", "app.join").Str("room", string(room.ID)).Msg("meeting created")
	}

	r.scheduleUpdate(ctx, room.ID)

	token, err := r.Tokens.FetchNewToken(ctx, room)
	if err != nil {
		return core.JoinOutcome{}, err
	}
	opts := map[string]string{}
	if token != "" {
		opts[core.ConfigTokenKey] = token
	}

	var (
		name string
		uid  domain.UserID
	)
	if req.Viewer != nil {
		name, uid = req.Viewer.Name, req.Viewer.ID
	}
	url, err := r.URLs.JoinURL(ctx, room, name, req.Role, uid, opts)
	if err != nil {
		return core.JoinOutcome{}, err
	}
	if url == "" {
		return core.NotRunning(), nil
	}
	if req.Mobile {
		url = MobileURL(url)
	}
	return core.Redirect(url), nil
}

// scheduleUpdate queues the meeting status updater. Failures are logged and dropped.
func (r *Resolver) scheduleUpdate(ctx context.Context, id domain.RoomID) {
	if r.Scheduler == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), enqueueTimeout)
	defer cancel()

	task := core.Task{
		Class: core.MeetingUpdaterTask,
		Args:  []any{string(id), core.MeetingUpdaterDelay},
	}
	if err := r.Scheduler.Enqueue(ctx, task); err != nil {
		metrics.RecordTaskEnqueued(task.Class, "failed")
		log.Warn().Err(err).Str("module", "app.join").Str("room", string(id)).Msg("enqueue meeting updater")
		return
	}
	metrics.RecordTaskEnqueued(task.Class, "queued")
}

// MobileURL swaps whatever scheme the URL has for MobileScheme, keeping everything from "://" on.
func MobileURL(url string) string {
	i := strings.Index(url, "://")
	if i < 0 {
		return url
	}
	return MobileScheme + url[i:]
}
