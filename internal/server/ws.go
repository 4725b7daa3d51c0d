package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayusman/posereps/internal/metrics"
	"github.com/ayusman/posereps/internal/observability"
	"github.com/ayusman/posereps/internal/session"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// SnapshotFeed publishes session snapshots.
type SnapshotFeed interface {
	Snapshot() session.Snapshot
	Subscribe() chan session.Snapshot
	Unsubscribe(ch chan session.Snapshot)
}

// SnapshotHandler pushes session snapshots to WebSocket clients: the current
// one on connect, then one per change.
type SnapshotHandler struct {
	feed    SnapshotFeed
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewSnapshotHandler creates a SnapshotHandler. m may be nil.
func NewSnapshotHandler(feed SnapshotFeed, m *metrics.Metrics, logger *zap.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		feed:    feed,
		metrics: m,
		logger:  observability.OrNop(logger),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *SnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	if h.metrics != nil {
		h.metrics.ActiveClients.Add(1)
		defer h.metrics.ActiveClients.Add(-1)
	}

	updates := h.feed.Subscribe()
	defer h.feed.Unsubscribe(updates)

	// Clients only send control frames; reading until error detects a close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := send(conn, h.feed.Snapshot()); err != nil {
		return
	}

	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			if err := send(conn, snap); err != nil {
				h.logger.Debug("WebSocket client dropped", zap.Error(err))
				return
			}
		}
	}
}

func send(conn *websocket.Conn, snap session.Snapshot) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(snap)
}
