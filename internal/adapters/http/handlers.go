package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/dkeye/Rooms/internal/adapters/signal"
	"github.com/dkeye/Rooms/internal/app"
	"github.com/dkeye/Rooms/internal/app/join"
	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/domain"
)

// Handler serves the room, meeting and join endpoints.
type Handler struct {
	Rooms    *app.RoomService
	Policy   app.Policy
	Resolver *join.Resolver
	Servers  core.ServerRegistry
	Status   *signal.StatusWSController
	Attempts *AttemptLimiter
	// Ready reports whether backing services are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

// reqCtx carries the caller's request info down to the conference server calls.
func reqCtx(c *gin.Context) context.Context {
	return core.WithRequestInfo(c.Request.Context(), RequestInfoFrom(c))
}

// publicRoom hides the room passwords.
func publicRoom(r *domain.Room) domain.Room {
	v := *r
	v.AttendeePassword, v.ModeratorPassword = "", ""
	return v
}

func (h *Handler) loadRoom(c *gin.Context) (*domain.Room, bool) {
	room, err := h.Rooms.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err)
		return nil, false
	}
	return room, true
}

func bindRoomForm(c *gin.Context) (app.RoomForm, error) {
	if c.ContentType() == binding.MIMEJSON {
		var form app.RoomForm
		if err := c.ShouldBindJSON(&form); err != nil {
			return form, &app.ValidationError{Err: err}
		}
		return form, nil
	}
	if err := c.Request.ParseForm(); err != nil {
		return app.RoomForm{}, &app.ValidationError{Err: err}
	}
	raw := make(map[string]string, len(c.Request.PostForm))
	for key, vals := range c.Request.PostForm {
		if len(vals) == 0 {
			continue
		}
		if inner, ok := strings.CutPrefix(key, "room["); ok {
			key = strings.TrimSuffix(inner, "]")
		}
		if strings.Contains(key, "[") {
			continue
		}
		raw[key] = vals[len(vals)-1]
	}
	return app.DecodeRoomForm(raw)
}

func (h *Handler) listRooms(c *gin.Context) {
	rooms, err := h.Rooms.List(c.Request.Context())
	if err != nil {
		HandleError(c, err)
		return
	}
	views := make([]domain.Room, 0, len(rooms))
	for i := range rooms {
		views = append(views, publicRoom(&rooms[i]))
	}
	render(c, http.StatusOK, gin.H{"rooms": views})
}

func (h *Handler) newRoom(c *gin.Context) {
	render(c, http.StatusOK, gin.H{"room": h.Rooms.New(), "servers": h.Servers.Servers()})
}

func (h *Handler) showRoom(c *gin.Context) {
	room, ok := h.loadRoom(c)
	if !ok {
		return
	}
	render(c, http.StatusOK, gin.H{"room": publicRoom(room)})
}

func (h *Handler) editRoom(c *gin.Context) {
	room, ok := h.loadRoom(c)
	if !ok {
		return
	}
	render(c, http.StatusOK, gin.H{"room": room, "servers": h.Servers.Servers()})
}

func (h *Handler) createRoom(c *gin.Context) {
	form, err := bindRoomForm(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	room, err := h.Rooms.Create(c.Request.Context(), form)
	if err != nil {
		HandleError(c, err)
		return
	}
	flashNoticeKey(c, "room.created")
	if target := redirURL(c); target != "" {
		c.Redirect(http.StatusFound, target)
		return
	}
	c.Header("Location", roomPath(room.Param))
	render(c, http.StatusCreated, gin.H{"room": room})
}

func (h *Handler) updateRoom(c *gin.Context) {
	form, err := bindRoomForm(c)
	if err != nil {
		HandleError(c, err)
		return
	}
	room, err := h.Rooms.Update(c.Request.Context(), c.Param("id"), form)
	if err != nil {
		HandleError(c, err)
		return
	}
	flashNoticeKey(c, "room.updated")
	if target := redirURL(c); target != "" {
		c.Redirect(http.StatusFound, target)
		return
	}
	render(c, http.StatusOK, gin.H{"room": room})
}

func (h *Handler) destroyRoom(c *gin.Context) {
	room, ok := h.loadRoom(c)
	if !ok {
		return
	}
	remoteErr, err := h.Rooms.Destroy(reqCtx(c), room)
	if err != nil {
		HandleError(c, err)
		return
	}
	if remoteErr != nil {
		flashErrorKey(c, "success_with_bbb_error", TruncateMessage(remoteErr.Error()))
	} else {
		flashNoticeKey(c, "room.destroyed")
	}
	target := redirURL(c)
	if target == "" {
		target = roomsPath
	}
	c.Redirect(http.StatusSeeOther, target)
}

func (h *Handler) running(c *gin.Context) {
	room, ok := h.loadRoom(c)
	if !ok {
		return
	}
	running, err := h.Rooms.Running(reqCtx(c), room)
	if err != nil {
		flashRemote(c, err)
		running = false
	}
	value := "false"
	if running {
		value = "true"
	}
	c.JSON(http.StatusOK, gin.H{"running": value})
}

// redirURL is the redir_url the caller asked to land on, from the query or the form.
func redirURL(c *gin.Context) string {
	if target := c.Query("redir_url"); target != "" {
		return target
	}
	return c.PostForm("redir_url")
}

// afterAction is where end and fetch_recordings send the browser: redir_url when given.
func afterAction(c *gin.Context, room *domain.Room) string {
	if target := redirURL(c); target != "" {
		return target
	}
	return roomPath(room.Param)
}

func (h *Handler) end(c *gin.Context) {
	room, ok := h.loadRoom(c)
	if !ok {
		return
	}
	ended, err := h.Rooms.End(reqCtx(c), room)
	switch {
	case err != nil:
		flashRemote(c, err)
		redirectBack(c, roomPath(room.Param))
	case !ended:
		flashErrorKey(c, "end.not_running")
		redirectBack(c, roomPath(room.Param))
	default:
		flashNoticeKey(c, "end.success")
		c.Redirect(http.StatusFound, afterAction(c, room))
	}
}

func (h *Handler) fetchRecordings(c *gin.Context) {
	room, ok := h.loadRoom(c)
	if !ok {
		return
	}
	_, err := h.Rooms.FetchRecordings(reqCtx(c), room)
	switch {
	case errors.Is(err, core.ErrNoServer):
		flashErrorKey(c, "fetch_recordings.no_server")
	case err != nil && core.IsRemote(err):
		flashRemote(c, err)
	case err != nil:
		HandleError(c, err)
		return
	default:
		flashNoticeKey(c, "fetch_recordings.success")
	}
	c.Redirect(http.StatusFound, afterAction(c, room))
}

func (h *Handler) recordings(c *gin.Context) {
	room, ok := h.loadRoom(c)
	if !ok {
		return
	}
	recs, err := h.Rooms.ListRecordings(c.Request.Context(), room)
	if err != nil {
		HandleError(c, err)
		return
	}
	if recs == nil {
		recs = []domain.Recording{}
	}
	render(c, http.StatusOK, gin.H{"room": publicRoom(room), "recordings": recs})
}

func (h *Handler) listServers(c *gin.Context) {
	render(c, http.StatusOK, gin.H{"servers": h.Servers.Servers()})
}

func (h *Handler) showServer(c *gin.Context) {
	server, ok := h.Servers.Server(domain.ServerID(c.Param("id")))
	if !ok {
		HandleError(c, core.ErrServerNotFound)
		return
	}
	render(c, http.StatusOK, gin.H{"server": server})
}

func (h *Handler) statusFeed(ctx context.Context) gin.HandlerFunc {
	return func(c *gin.Context) {
		room, ok := h.loadRoom(c)
		if !ok {
			return
		}
		h.Status.HandleStatus(ctx, c, room)
	}
}
