// Package ws serves streaming call sessions: the client performs its own
// end-of-utterance detection and sends one finalized utterance per binary
// frame; the server answers each with a reply event and an audio frame.
package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/polarline/santacall/internal/auth"
	"github.com/polarline/santacall/internal/children"
	"github.com/polarline/santacall/internal/metrics"
	"github.com/polarline/santacall/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// HandlerConfig holds the shared collaborators for all call sessions.
type HandlerConfig struct {
	Pipeline      *pipeline.Pipeline
	Scratch       *pipeline.Scratch
	MaxConcurrent int
}

// Handler manages WebSocket call sessions with admission control.
type Handler struct {
	cfg HandlerConfig
	sem chan struct{}
}

// NewHandler creates a handler with the given concurrency limit.
func NewHandler(cfg HandlerConfig) *Handler {
	maxConc := cfg.MaxConcurrent
	if maxConc <= 0 {
		maxConc = 100
	}
	return &Handler{cfg: cfg, sem: make(chan struct{}, maxConc)}
}

// callMetadata is the first text frame sent by the client.
type callMetadata struct {
	ChildID string `json:"child_id"`
}

// greetingFrame is a text frame requesting the greeting turn.
type greetingFrame struct {
	Type         string `json:"type"`
	GreetingText string `json:"greeting_text"`
	ChildName    string `json:"child_name"`
}

// replyEvent is sent for each completed turn; an audio binary frame
// follows when synthesis succeeded.
type replyEvent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
	Reprompt bool   `json:"reprompt,omitempty"`
	HasAudio bool   `json:"has_audio"`
	Error    string `json:"error,omitempty"`
}

// ServeHTTP upgrades the connection and runs the call session.
// Returns 503 at max concurrent call capacity.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case h.sem <- struct{}{}:
		defer func() { <-h.sem }()
	default:
		http.Error(w, "at capacity", http.StatusServiceUnavailable)
		return
	}

	parentID := auth.ParentID(r.Context())
	if parentID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.CallsActive.Inc()
	metrics.CallsTotal.Inc()
	defer metrics.CallsActive.Dec()

	h.runSession(r.Context(), conn, parentID)
}

func (h *Handler) runSession(ctx context.Context, conn *websocket.Conn, parentID string) {
	meta, err := readMetadata(conn)
	if err != nil {
		slog.Error("read call metadata", "error", err)
		return
	}
	if meta.ChildID == "" {
		writeEvent(conn, &sync.Mutex{}, replyEvent{Type: "error", Error: "child_id required"})
		return
	}

	slog.Info("call started", "parent_id", parentID, "child_id", meta.ChildID)
	var writeMu sync.Mutex

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			slog.Info("call connection closed", "error", err)
			return
		}

		req := pipeline.Request{ParentID: parentID, ChildID: meta.ChildID}
		switch msgType {
		case websocket.TextMessage:
			var g greetingFrame
			if err := json.Unmarshal(data, &g); err != nil || g.Type != "greeting" {
				continue
			}
			req.IsGreeting = true
			req.GreetingText = g.GreetingText
		case websocket.BinaryMessage:
			path, _, err := h.cfg.Scratch.Save(bytes.NewReader(data))
			if err != nil {
				slog.Error("save utterance", "error", err)
				writeEvent(conn, &writeMu, replyEvent{Type: "error", Error: "upload failed"})
				continue
			}
			req.AudioPath = path
		default:
			continue
		}

		h.respond(ctx, conn, &writeMu, req)
	}
}

func (h *Handler) respond(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, req pipeline.Request) {
	reply, err := h.cfg.Pipeline.Respond(ctx, req)
	if err != nil {
		msg := "pipeline failed"
		switch {
		case errors.Is(err, children.ErrNotFound):
			msg = "child not found"
		case errors.Is(err, pipeline.ErrBadInput):
			msg = "bad input"
		}
		slog.Error("pipeline respond", "error", err)
		writeEvent(conn, writeMu, replyEvent{Type: "error", Error: msg})
		return
	}

	ev := replyEvent{
		Type:     "reply",
		Text:     reply.Text,
		Fallback: reply.Fallback,
		Reprompt: reply.Reprompt,
		HasAudio: len(reply.Audio) > 0,
	}
	writeEvent(conn, writeMu, ev)
	if len(reply.Audio) > 0 {
		writeMu.Lock()
		if err := conn.WriteMessage(websocket.BinaryMessage, reply.Audio); err != nil {
			slog.Error("write reply audio", "error", err)
		}
		writeMu.Unlock()
	}
}

func writeEvent(conn *websocket.Conn, mu *sync.Mutex, ev replyEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Error("write reply event", "error", err)
	}
}

func readMetadata(conn *websocket.Conn) (*callMetadata, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var meta callMetadata
	if err = json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
