package gateway

import (
	"net/http"

	"github.com/gobwas/ws"
	"go.uber.org/zap"
)

// NewHandler upgrades requests to websocket connections and registers each
// one with observers.
func NewHandler(observers Observers, snapshots SnapshotReader, logger *zap.Logger, tickers []string) http.Handler {
	validTickers := make(map[string]bool, len(tickers))
	for _, t := range tickers {
		validTickers[t] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, _, err := ws.UpgradeHTTP(r, w)
		if err != nil {
			logger.Debug("Upgrade failed", zap.Error(err))
			return
		}

		client := NewClient(conn, observers, snapshots, logger, validTickers)
		client.Start()
	})
}
