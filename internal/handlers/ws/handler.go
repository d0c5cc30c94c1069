package ws

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/gridhall/bingo/internal/services/session"
)

// Config holds the configuration for the websocket handler
type Config struct {
	// Session service
	SessionService session.Service

	// CheckOrigin overrides the upgrader's origin check (nil allows all,
	// the browser client is served from a separate origin)
	CheckOrigin func(r *http.Request) bool
}

// Handler upgrades participant connections and bridges frames to the
// session service
type Handler struct {
	sessionService session.Service
	upgrader       websocket.Upgrader
}

// New creates a new websocket handler
func New(cfg *Config) (*Handler, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.SessionService == nil {
		return nil, errors.New("session service cannot be nil")
	}

	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}

	return &Handler{
		sessionService: cfg.SessionService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}, nil
}

// ServeHTTP upgrades GET /ws/{sessionID}?user={id}&since={version}. The
// client receives a snapshot frame, the event backlog after since, then live
// event frames in version order.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimPrefix(r.URL.Path, "/ws/")
	if sessionID == "" || strings.Contains(sessionID, "/") {
		http.Error(w, "session ID required", http.StatusBadRequest)
		return
	}

	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "user required", http.StatusBadRequest)
		return
	}

	var since int64
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			http.Error(w, "since must be a non-negative integer", http.StatusBadRequest)
			return
		}
		since = parsed
	}

	sub, err := h.sessionService.Subscribe(r.Context(), &session.SubscribeInput{
		SessionID:    sessionID,
		SinceVersion: since,
	})
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "subscription failed", http.StatusInternalServerError)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Cancel()
		log.Printf("Failed to upgrade connection for %s: %v", userID, err)
		return
	}

	c := newClient(h, conn, sessionID, userID, sub.Cancel)

	// Feed the snapshot, the backlog and then the live stream through the
	// write pump in that order. The updates channel closing means the hub
	// disconnected us; tear the client down.
	go func() {
		defer c.close()

		if !c.enqueue(&SnapshotFrame{
			Type:    frameTypeSnapshot,
			Session: sub.Session,
			Cells:   sub.Cells,
			Players: sub.Players,
		}) {
			return
		}

		for _, ev := range sub.Backlog {
			if !c.enqueue(&EventFrame{Type: frameTypeEvent, Event: ev}) {
				return
			}
		}

		for ev := range sub.Updates {
			if !c.enqueue(&EventFrame{Type: frameTypeEvent, Event: ev}) {
				return
			}
		}
	}()

	go c.writePump()
	c.readPump()
}
