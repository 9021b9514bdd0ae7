package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Rooms/internal/app/join"
	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/domain"
)

func (h *Handler) deny(c *gin.Context) {
	writeError(c, http.StatusForbidden, ErrorTypeForbidden, core.ErrAccessDenied)
}

func inviteView(room *domain.Room, role domain.Role) gin.H {
	return gin.H{"room": publicRoom(room), "user_role": role}
}

// join sends a logged-in or public viewer into the meeting. Password holders go to the invite page.
func (h *Handler) join(c *gin.Context) {
	room, ok := h.loadRoom(c)
	if !ok {
		return
	}
	viewer := ViewerFrom(c)
	role := h.Policy.Role(c.Request.Context(), room, viewer)
	switch role {
	case domain.RolePassword:
		c.Redirect(http.StatusFound, invitePath(room.Param))
		return
	case domain.RoleDenied:
		h.deny(c)
		return
	}

	mobile, _ := strconv.ParseBool(c.Query("mobile"))
	h.resolve(c, room, role, viewer, mobile)
}

func (h *Handler) joinMobile(c *gin.Context) {
	room, ok := h.loadRoom(c)
	if !ok {
		return
	}
	viewer := ViewerFrom(c)
	role := h.Policy.Role(c.Request.Context(), room, viewer)
	if role == domain.RoleDenied {
		h.deny(c)
		return
	}

	var name string
	var uid domain.UserID
	if viewer != nil {
		name, uid = viewer.Name, viewer.ID
	}
	remote, err := h.Rooms.Conference.JoinURL(reqCtx(c), room, name, role, uid, map[string]string{})
	if err != nil {
		h.remoteFailure(c, room, err)
		return
	}
	qr := ""
	if remote != "" {
		qr = join.MobileURL(remote)
	}
	render(c, http.StatusOK, gin.H{
		"join_url":   absoluteURL(c, roomPath(room.Param)+"/join?mobile=1"),
		"qrcode_url": qr,
	})
}

func (h *Handler) invite(c *gin.Context) {
	room, ok := h.loadRoom(c)
	if !ok {
		return
	}
	role := h.Policy.Role(c.Request.Context(), room, ViewerFrom(c))
	if role == domain.RoleDenied {
		h.deny(c)
		return
	}
	render(c, http.StatusOK, inviteView(room, role))
}

// auth joins with a name and password posted from the invite page.
func (h *Handler) auth(c *gin.Context) {
	room, err := h.Rooms.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if !errors.Is(err, core.ErrRoomNotFound) {
			HandleError(c, err)
			return
		}
		flashErrorKey(c, "auth.wrong_params")
		redirectBack(c, roomsPath)
		return
	}
	if !h.Attempts.Allow(c.GetString(clientTokenKey)) {
		writeError(c, http.StatusTooManyRequests, ErrorTypeRateLimited, errors.New("too many attempts, try again later"))
		return
	}

	viewer := ViewerFrom(c)
	role := h.Policy.Role(c.Request.Context(), room, viewer)
	if role == domain.RoleDenied {
		h.deny(c)
		return
	}
	joinRole := role
	if role == domain.RolePassword {
		joinRole = room.UserRole(c.PostForm("user[password]"))
	}

	name := strings.TrimSpace(c.PostForm("user[name]"))
	if viewer != nil && viewer.Name != "" {
		name = viewer.Name
	}
	if name == "" || joinRole == domain.RoleDenied {
		log.Info().Str("module", "adapters.http").Str("room", string(room.ID)).Msg("join authentication failed")
		flashErrorKey(c, "auth.failure")
		render(c, http.StatusUnauthorized, inviteView(room, role))
		return
	}

	mobile, _ := strconv.ParseBool(c.Query("mobile"))
	h.resolve(c, room, joinRole, &domain.Viewer{Name: name}, mobile)
}

func (h *Handler) resolve(c *gin.Context, room *domain.Room, role domain.Role, viewer *domain.Viewer, mobile bool) {
	out, err := h.Resolver.Resolve(reqCtx(c), join.Request{
		Room:    room,
		Viewer:  viewer,
		Role:    role,
		Mobile:  mobile,
		Request: RequestInfoFrom(c),
	})
	switch {
	case errors.Is(err, core.ErrAccessDenied):
		h.deny(c)
		return
	case err != nil:
		h.remoteFailure(c, room, err)
		return
	}

	switch out.Kind {
	case core.OutcomeRedirect:
		c.Redirect(http.StatusFound, out.URL)
	case core.OutcomeUnauthorized:
		flashErrorKey(c, "auth."+out.Reason)
		render(c, http.StatusUnauthorized, inviteView(room, role))
	case core.OutcomeNotRunning:
		flashNoticeKey(c, "auth.not_running")
		render(c, http.StatusOK, inviteView(room, role))
	default:
		HandleError(c, errors.New("unknown join outcome "+out.Kind.String()))
	}
}

// remoteFailure flashes what the conference server said and sends the browser back.
func (h *Handler) remoteFailure(c *gin.Context, room *domain.Room, err error) {
	if !core.IsRemote(err) && !errors.Is(err, core.ErrNoServer) {
		HandleError(c, err)
		return
	}
	flashRemote(c, err)
	redirectBack(c, roomPath(room.Param))
}

func absoluteURL(c *gin.Context, path string) string {
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + path
}
