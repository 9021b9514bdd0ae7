// Package signal pushes live meeting status to browsers over websockets.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Rooms/internal/app"
	"github.com/dkeye/Rooms/internal/core"
	"github.com/dkeye/Rooms/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// StatusWSController serves the status feed of one room per connection.
type StatusWSController struct {
	Registry *app.Registry
	// ReadLimit caps the size of client messages. Zero keeps the default.
	ReadLimit int64
	// PingPeriod is how often the server pings. A client silent for longer than
	// pongWait is dropped.
	PingPeriod time.Duration
}

func NewStatusWSController(registry *app.Registry, readLimit int64, pingPeriod time.Duration) *StatusWSController {
	if readLimit <= 0 {
		readLimit = 4096
	}
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	return &StatusWSController{Registry: registry, ReadLimit: readLimit, PingPeriod: pingPeriod}
}

func (ctl *StatusWSController) pongWait() time.Duration {
	return ctl.PingPeriod * 10 / 9
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleStatus upgrades the request and subscribes it to room. The last known status,
// from the registry or else from the stored room, is sent first.
func (ctl *StatusWSController) HandleStatus(ctx context.Context, c *gin.Context, room *domain.Room) {
	sid := core.SessionID(uuid.NewString())
	log.Info().Str("module", "signal").Str("sid", string(sid)).Str("client", c.GetString("client_token")).
		Str("room", string(room.ID)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(ctl.pongWait()))
	})

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	ctl.Registry.Bind(sid, room.ID, conn, cancel)

	status, ok := ctl.Registry.LastStatus(room.ID)
	if !ok && room.Status != nil {
		status, ok = *room.Status, true
	}
	if ok {
		if frame, err := app.StatusFrame(room.ID, status); err == nil {
			_ = conn.TrySend(frame)
		}
	}

	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, sid, conn)
}
