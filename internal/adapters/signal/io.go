package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duplex/internal/domain"
)

const writeWait = 5 * time.Second

// writePump is the only writer on c. It returns why the stream ended.
func (ctl *WatchController) writePump(ctx context.Context, c *WsSignalConn, gone <-chan struct{}) string {
	period := ctl.PingPeriod
	if period <= 0 {
		period = 54 * time.Second
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-gone:
			ctl.writeClose(c, websocket.CloseNormalClosure, "room deleted")
			return "room deleted"
		case <-ctx.Done():
			ctl.writeClose(c, websocket.CloseGoingAway, "closing")
			return "ctx done"
		case data := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return "write deadline"
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return "write error"
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				return "ping failed"
			}
		}
	}
}

func (ctl *WatchController) writeClose(c *WsSignalConn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait)); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("write close")
	}
}

// readPump only serves keepalive: pongs extend the deadline and text pings
// get a pong back. Any read error ends the watch.
func (ctl *WatchController) readPump(ctx context.Context, cancel context.CancelFunc, id domain.SessionID, c *WsSignalConn) {
	defer cancel()

	if ctl.ReadLimit > 0 {
		c.conn.SetReadLimit(ctl.ReadLimit)
	}
	period := ctl.PingPeriod
	if period <= 0 {
		period = 54 * time.Second
	}
	pongWait := period * 10 / 9
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("module", "signal").Str("session_id", string(id)).Msg("readPump read error")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		ctl.handleMessage(id, c, data)
	}
}

func (ctl *WatchController) handleMessage(id domain.SessionID, c *WsSignalConn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	switch env.Type {
	case "ping":
		ctl.handlePing(c)
	default:
		log.Warn().Str("module", "signal").Str("session_id", string(id)).Str("type", env.Type).Msg("unknown message")
	}
}

func (ctl *WatchController) sendJSON(ctx context.Context, c *WsSignalConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	if err := c.Send(ctx, b); err != nil && ctx.Err() == nil {
		log.Debug().Err(err).Str("module", "signal").Msg("sendJSON")
	}
}
