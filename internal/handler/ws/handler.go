package ws

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/symposium-ai/symposium/backend/internal/orchestrator"
	conversationService "github.com/symposium-ai/symposium/backend/internal/service/conversation"
)

// Handler is the realtime gateway: it upgrades client sockets, feeds
// inbound control commands to the orchestrator, and registers each
// socket with its conversation room for fan-out.
type Handler struct {
	orc      *orchestrator.Orchestrator
	convSvc  *conversationService.Service
	upgrader websocket.Upgrader
}

// New creates the websocket handler.
func New(orc *orchestrator.Orchestrator, convSvc *conversationService.Service) *Handler {
	return &Handler{
		orc:     orc,
		convSvc: convSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/{conversationID}", h.handleSocket)
}

// inboundMessage is the client command frame. Only the fields relevant
// to the given type are read.
type inboundMessage struct {
	Type            string  `json:"type"`
	Content         string  `json:"content"`
	SpeedMultiplier float64 `json:"speedMultiplier"`
}

func (h *Handler) handleSocket(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		http.Error(w, "conversationID is required", http.StatusBadRequest)
		return
	}

	conv, err := h.convSvc.GetConversation(r.Context(), conversationID)
	if err != nil {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}

	socket, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed for conversation %s: %v", conversationID, err)
		return
	}
	defer socket.Close()

	conn := newWSConn(socket)
	h.orc.Connect(conversationID, conn)
	defer func() {
		h.orc.Disconnect(conversationID, conn)
		if !h.orc.Room(conversationID).IsActive() {
			h.orc.StopAgents(conversationID)
		}
	}()

	// (Re)attach the agent set. StartAgents tears down any previous
	// set first, so a reconnect never doubles up agents.
	h.orc.StartAgents(conversationID, conv.Thinkers, conv.Topic, conv.UserName, h.convSvc)

	for {
		_, data, err := socket.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ws] read error on conversation %s: %v", conversationID, err)
			}
			return
		}

		var msg inboundMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = conn.Send(orchestrator.ErrorEvent{Content: "invalid JSON"})
			continue
		}

		switch msg.Type {
		case "pause":
			h.orc.Pause(conversationID)
		case "resume":
			h.orc.Resume(conversationID)
		case "set_speed":
			h.orc.SetSpeed(conversationID, msg.SpeedMultiplier)
		case "user_message":
			// Realtime notification only; storage goes through REST.
			h.orc.BroadcastUserMessage(conversationID, msg.Content)
		case "typing_start", "typing_stop", "join", "leave":
			// Presence is implied by the socket itself.
		default:
			_ = conn.Send(orchestrator.ErrorEvent{Content: "unknown message type: " + msg.Type})
		}
	}
}
