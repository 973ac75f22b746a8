package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"

	"github.com/meetrelay/backend/internal/app"
	"github.com/meetrelay/backend/internal/room"
	"github.com/meetrelay/backend/internal/signaling"
	"github.com/meetrelay/backend/pkg/metrics"
	"github.com/meetrelay/backend/pkg/ratelimit"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// Browsers pick their own Origin; the front-end may be served from
	// anywhere, so the check stays permissive.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// NewRouter wires the websocket endpoint, the admin query surface, and
// the operational endpoints onto one handler. Everything listens on a
// single port.
func NewRouter(cfg app.Config, logger *slog.Logger, hub *signaling.Hub, store *room.Store) http.Handler {
	api := &directoryAPI{store: store, log: logger}
	limiter := ratelimit.New(cfg.RateLimitMax, cfg.RateLimitWindow)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthCheckHandler)
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/ws", ServeWs(hub, logger))

	rest := http.NewServeMux()
	rest.HandleFunc("GET /api/create-room", api.createRoom)
	rest.HandleFunc("GET /api/check-room/{roomId}", api.checkRoom)
	rest.HandleFunc("GET /api/stats", api.stats)
	mux.Handle("/api/", limiter.Middleware(rest))

	c := cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllow,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(mux)
}

// healthCheckHandler reports liveness.
func healthCheckHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Signaling server is healthy."))
}

// ServeWs returns the handler that upgrades HTTP to a websocket and
// hands the connection to the hub.
func ServeWs(hub *signaling.Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("websocket upgrade failed", "err", err)
			return
		}

		client := signaling.NewClient(hub, conn)
		hub.Register <- client

		// One goroutine per direction; the read pump's exit doubles as
		// the disconnect signal.
		go client.WritePump()
		go client.ReadPump()
	}
}

// directoryAPI is the non-mutating admin query surface plus room-id
// minting for the front-end bootstrap.
type directoryAPI struct {
	store *room.Store
	log   *slog.Logger
}

// createRoom hands out a fresh room id. The room itself is created
// lazily when its first participant joins over the websocket.
func (a *directoryAPI) createRoom(w http.ResponseWriter, _ *http.Request) {
	roomID := uuid.NewString()
	a.log.Debug("room id minted", "room", roomID)
	writeJSON(w, map[string]string{"roomId": roomID})
}

// checkRoom reports whether a room currently has participants.
func (a *directoryAPI) checkRoom(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	writeJSON(w, map[string]bool{"exists": a.store.Exists(roomID)})
}

// stats returns the aggregate room statistics.
func (a *directoryAPI) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, a.store.Stats())
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
