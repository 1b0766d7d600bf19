package ws

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	chatmodel "github.com/zhizhi/bobi/backend/internal/model/chat"
	chatservice "github.com/zhizhi/bobi/backend/internal/service/chat"
)

// Handler serves interactive chat over a WebSocket. Each connection owns
// exactly one session: the id is minted on connect and lives until the
// socket closes. The single read loop serializes turns naturally.
type Handler struct {
	chatSvc  *chatservice.Service
	upgrader websocket.Upgrader
}

// New creates the WebSocket chat handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{
		chatSvc: chatSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the WebSocket route.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws", h.handleWebSocket)
}

type inboundMessage struct {
	Content string `json:"content"`
}

type outboundMessage struct {
	Type    string             `json:"type"`
	Session *chatmodel.Session `json:"session,omitempty"`
	Message *chatmodel.Message `json:"message,omitempty"`
	Error   string             `json:"error,omitempty"`
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()

	session, err := h.chatSvc.CreateSession(ctx)
	if err != nil {
		writeJSON(conn, outboundMessage{Type: "error", Error: err.Error()})
		return
	}

	if err := writeJSON(conn, outboundMessage{Type: "session", Session: &session}); err != nil {
		return
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("[ws] session=%s read error: %v", session.ID, err)
			}
			return
		}

		var inbound inboundMessage
		if err := json.Unmarshal(data, &inbound); err != nil {
			if err := writeJSON(conn, outboundMessage{Type: "error", Error: "invalid message payload"}); err != nil {
				return
			}
			continue
		}

		reply, err := h.chatSvc.Turn(ctx, session.ID, inbound.Content)
		if err != nil {
			if err := writeJSON(conn, outboundMessage{Type: "error", Error: err.Error()}); err != nil {
				return
			}
			continue
		}
		if reply == nil {
			// Blank input: no turn ran, nothing to report.
			continue
		}

		if err := writeJSON(conn, outboundMessage{Type: "reply", Message: reply}); err != nil {
			return
		}
	}
}

func writeJSON(conn *websocket.Conn, msg outboundMessage) error {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[ws] write failed: %v", err)
		return err
	}
	return nil
}
