// Package signal streams signaling store changes to WebSocket watchers.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duplex/internal/adapters/store/memory"
	"github.com/dkeye/Duplex/internal/domain"
	"github.com/dkeye/Duplex/internal/metrics"
)

var (
	ErrBackpressure = errors.New("backpressure")
	errConnClosed   = errors.New("connection closed")
)

// Frame is one encoded text message.
type Frame []byte

// WatchController upgrades watch requests and pumps store changes to them.
type WatchController struct {
	Store      *memory.Store
	ReadLimit  int64
	PingPeriod time.Duration
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan Frame

	done chan struct{}
	once sync.Once
}

func newConn() *WsSignalConn {
	return &WsSignalConn{
		send: make(chan Frame, 32),
		done: make(chan struct{}),
	}
}

// TrySend queues f without blocking.
func (c *WsSignalConn) TrySend(f Frame) error {
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.send <- f:
		return nil
	case <-c.done:
		return errConnClosed
	default:
		return ErrBackpressure
	}
}

// Send queues f, waiting for room in the buffer. Store feeds are unbounded,
// so waiting here never stalls store writers.
func (c *WsSignalConn) Send(ctx context.Context, f Frame) error {
	select {
	case c.send <- f:
		return nil
	case <-c.done:
		return errConnClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *WsSignalConn) Close() {
	c.once.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSessionWatch streams the room record, then every change to it.
func (ctl *WatchController) HandleSessionWatch(ctx context.Context, c *gin.Context) {
	id := domain.SessionID(c.Param("id"))
	ctx, cancel := context.WithCancel(ctx)
	conn := newConn()

	sub, err := ctl.Store.WatchSession(ctx, id, func(s domain.Session) {
		ctl.sendJSON(ctx, conn, s)
	})
	if err != nil {
		cancel()
		abort(c, err)
		return
	}
	ctl.serve(ctx, cancel, c, conn, sub, "session", id)
}

// HandleCandidateWatch streams every record in one queue, then each later append.
func (ctl *WatchController) HandleCandidateWatch(ctx context.Context, c *gin.Context) {
	id := domain.SessionID(c.Param("id"))
	q := domain.Queue(c.Param("queue"))
	ctx, cancel := context.WithCancel(ctx)
	conn := newConn()

	sub, err := ctl.Store.WatchCandidates(ctx, id, q, func(rec domain.CandidateRecord) {
		ctl.sendJSON(ctx, conn, rec)
	})
	if err != nil {
		cancel()
		abort(c, err)
		return
	}
	ctl.serve(ctx, cancel, c, conn, sub, string(q), id)
}

func (ctl *WatchController) serve(
	ctx context.Context,
	cancel context.CancelFunc,
	c *gin.Context,
	conn *WsSignalConn,
	sub *memory.Subscription,
	kind string,
	id domain.SessionID,
) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		sub.Unsubscribe()
		cancel()
		return
	}
	conn.conn = ws
	log.Info().Str("module", "signal").Str("session_id", string(id)).Str("kind", kind).Msg("watch opened")

	metrics.ActiveWatchers.WithLabelValues(kind).Inc()
	go func() {
		defer metrics.ActiveWatchers.WithLabelValues(kind).Dec()
		go ctl.readPump(ctx, cancel, id, conn)

		reason := ctl.writePump(ctx, conn, sub.Done())
		sub.Unsubscribe()
		cancel()
		conn.Close()
		log.Info().Str("module", "signal").Str("session_id", string(id)).Str("kind", kind).Str("reason", reason).Msg("watch closed")
	}()
}

func abort(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, domain.ErrorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrInvalidQueue):
		c.AbortWithStatusJSON(http.StatusBadRequest, domain.ErrorResponse{Error: err.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, domain.ErrorResponse{Error: err.Error()})
	}
}
