package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/Duplex/internal/metrics"
)

func (ctl *WatchController) handlePing(
	conn *WsSignalConn,
) {
	resp := struct {
		Type string `json:"type"`
	}{
		Type: "pong",
	}
	b, _ := json.Marshal(resp)
	if err := conn.TrySend(b); err != nil {
		// A watcher that cannot take a pong is too far behind to be useful.
		log.Warn().Err(err).Str("module", "signal").Msg("pong dropped, closing watch")
		metrics.WatchDroppedTotal.Inc()
		conn.Close()
	}
}
