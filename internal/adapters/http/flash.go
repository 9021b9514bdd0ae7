package http

import (
	"fmt"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	flashNotice = "notice"
	flashError  = "error"
)

// MaxFlashMessage is how many characters of a remote error reach the user.
const MaxFlashMessage = 201

var messages = map[string]string{
	"auth.not_running":           "The meeting is not running. You must wait for a moderator to join.",
	"auth.cannot_create":         "You don't have permissions to start this meeting.",
	"auth.failure":               "Authentication failure.",
	"auth.wrong_params":          "Wrong parameters in your request.",
	"end.success":                "The meeting was successfully ended.",
	"end.not_running":            "The meeting could not be ended because it is not running.",
	"fetch_recordings.no_server": "There is no server associated with this room.",
	"fetch_recordings.success":   "The list of recordings for this room was successfully updated.",
	"room.created":               "Your room was successfully created.",
	"room.updated":               "Your room was successfully updated.",
	"room.destroyed":             "Your room was successfully destroyed.",
	"success_with_bbb_error":     "The room was successfully destroyed but the meeting wasn't ended in the conference server: %s",
}

// Message looks up the user-facing text of key. Unknown keys are returned as they are.
func Message(key string, args ...any) string {
	msg, ok := messages[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

// TruncateMessage keeps the first MaxFlashMessage characters of msg.
func TruncateMessage(msg string) string {
	runes := []rune(msg)
	if len(runes) <= MaxFlashMessage {
		return msg
	}
	return string(runes[:MaxFlashMessage])
}

func addFlash(c *gin.Context, kind, msg string) {
	s := sessions.Default(c)
	s.AddFlash(msg, kind)
	if err := s.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("save flash")
	}
}

func flashNoticeKey(c *gin.Context, key string, args ...any) { addFlash(c, flashNotice, Message(key, args...)) }
func flashErrorKey(c *gin.Context, key string, args ...any)  { addFlash(c, flashError, Message(key, args...)) }

// flashRemote reports a remote failure to the user, truncated.
func flashRemote(c *gin.Context, err error) {
	addFlash(c, flashError, TruncateMessage(err.Error()))
}

// takeFlashes pops every pending flash, grouped by kind.
func takeFlashes(c *gin.Context) map[string][]string {
	s := sessions.Default(c)
	out := map[string][]string{}
	for _, kind := range []string{flashNotice, flashError} {
		for _, f := range s.Flashes(kind) {
			if msg, ok := f.(string); ok {
				out[kind] = append(out[kind], msg)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	if err := s.Save(); err != nil {
		log.Warn().Err(err).Str("module", "adapters.http").Msg("clear flashes")
	}
	return out
}

// render writes a JSON view with any pending flashes attached.
func render(c *gin.Context, status int, view gin.H) {
	if flashes := takeFlashes(c); flashes != nil {
		view["flash"] = flashes
	}
	c.JSON(status, view)
}

// redirectBack follows the Referer, falling back to fallback.
func redirectBack(c *gin.Context, fallback string) {
	target := c.GetHeader("Referer")
	if target == "" {
		target = fallback
	}
	c.Redirect(http.StatusFound, target)
}
