package dictation

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	dictationsvc "github.com/petpal-ai/petcare/backend/internal/service/dictation"
	"github.com/petpal-ai/petcare/backend/internal/service/transcript"
)

// Handler carries live dictation over a websocket. The browser runs
// the speech recognizer and sends the cumulative utterance after every
// recognition update; the bridge overwrites the composition buffer
// with each one.
type Handler struct {
	bridge   *dictationsvc.Bridge
	store    *transcript.Store
	upgrader websocket.Upgrader
}

// NewHandler creates the websocket dictation handler.
func NewHandler(bridge *dictationsvc.Bridge, store *transcript.Store) *Handler {
	return &Handler{
		bridge: bridge,
		store:  store,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes registers the dictation websocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/session/{sessionID}/dictation", h.handleWebSocket)
}

type inboundFrame struct {
	Type      string `json:"type"` // "start", "transcript" or "stop"
	Text      string `json:"text,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

type outgoingFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		http.Error(w, "sessionID is required", http.StatusBadRequest)
		return
	}

	if _, err := h.store.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[dictation] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[dictation] new connection for session: %s", sessionID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Capture dies with the socket.
	defer h.bridge.Stop(sessionID)

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go h.pingLoop(ctx, conn)

	h.sendInfo(conn, sessionID, map[string]any{
		"type":      "connected",
		"listening": h.bridge.Listening(sessionID),
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var frame inboundFrame
			if err := conn.ReadJSON(&frame); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[dictation] read error: %v", err)
				}
				return
			}

			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			h.handleFrame(ctx, conn, sessionID, frame)
		}
	}
}

func (h *Handler) handleFrame(ctx context.Context, conn *websocket.Conn, sessionID string, frame inboundFrame) {
	switch frame.Type {
	case "start":
		if err := h.bridge.Start(ctx, sessionID); err != nil {
			h.sendError(conn, err.Error())
			return
		}
		h.sendInfo(conn, sessionID, map[string]any{"type": "state", "listening": true})
	case "transcript":
		if err := h.bridge.Update(ctx, sessionID, frame.Text); err != nil {
			if errors.Is(err, dictationsvc.ErrNotListening) {
				h.sendError(conn, "dictation is not active")
				return
			}
			h.sendError(conn, err.Error())
		}
	case "stop":
		h.bridge.Stop(sessionID)
		h.sendInfo(conn, sessionID, map[string]any{"type": "state", "listening": false})
	default:
		h.sendError(conn, "unsupported frame type: "+frame.Type)
	}
}

func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}

func (h *Handler) sendInfo(conn *websocket.Conn, sessionID string, data any) {
	h.send(conn, outgoingFrame{
		Type:      "info",
		SessionID: sessionID,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (h *Handler) sendError(conn *websocket.Conn, message string) {
	h.send(conn, outgoingFrame{
		Type:      "error",
		Error:     message,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (h *Handler) send(conn *websocket.Conn, frame outgoingFrame) {
	payload, err := json.Marshal(frame)
	if err != nil {
		log.Printf("[dictation] failed to marshal frame: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		log.Printf("[dictation] write failed: %v", err)
	}
}
