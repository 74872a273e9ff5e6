// Package server exposes the chat gateway: a websocket endpoint that routes
// user messages to their session's agent.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/becomeliminal/recall-go-sdk/engine"
)

// failureReply is sent when message processing fails for any reason. The
// underlying error goes to the log, never to the user.
const failureReply = "Sorry, my brain short-circuited. Try again later."

// ClientMessage is one inbound chat message.
type ClientMessage struct {
	Text     string `json:"text"`
	UserName string `json:"user_name,omitempty"`
}

// ServerMessage is one outbound reply.
type ServerMessage struct {
	Text string `json:"text"`

	// Status is "complete", "exhausted", or "error".
	Status string `json:"status"`
}

// Server is the websocket chat gateway.
type Server struct {
	runtime  *engine.Runtime
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// New creates a gateway over a session runtime.
func New(runtime *engine.Runtime, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		runtime: runtime,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Non-browser clients often omit Origin. Allow them;
				// otherwise require same origin.
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

// Router returns the HTTP handler for the gateway.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWS)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleWS upgrades the connection and processes messages one at a time.
// Query parameters: user (required), session (optional; defaults to a direct
// conversation keyed by the user id), name (optional display name).
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		http.Error(w, "query parameter user is required", http.StatusBadRequest)
		return
	}
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		sessionID = engine.DMSessionID(userID)
	}
	userName := strings.TrimSpace(r.URL.Query().Get("name"))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.logger.Info("client connected", "session_id", sessionID, "user_id", userID)
	conn.SetReadLimit(1 << 20)

	for {
		var msg ClientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("client read failed", "session_id", sessionID, "error", err)
			}
			return
		}
		if strings.TrimSpace(msg.Text) == "" {
			continue
		}

		name := msg.UserName
		if name == "" {
			name = userName
		}
		reply := s.process(r.Context(), sessionID, userID, name, msg.Text)

		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteJSON(reply); err != nil {
			s.logger.Warn("client write failed", "session_id", sessionID, "error", err)
			return
		}
	}
}

func (s *Server) process(ctx context.Context, sessionID, userID, userName, text string) ServerMessage {
	out, err := s.runtime.HandleMessage(ctx, sessionID, userID, engine.Input{
		UserMessage: text,
		UserName:    userName,
	})
	if err != nil {
		s.logger.Error("message processing failed",
			"session_id", sessionID, "user_id", userID, "error", err)
		return ServerMessage{Text: failureReply, Status: "error"}
	}
	return ServerMessage{Text: out.Text, Status: string(out.Type)}
}
