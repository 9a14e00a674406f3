package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/symposium-ai/symposium/backend/internal/orchestrator"
)

// wsConn adapts a websocket to orchestrator.Conn. Gorilla permits one
// concurrent writer, so sends are serialized with a mutex.
type wsConn struct {
	mu     sync.Mutex
	socket *websocket.Conn
}

func newWSConn(socket *websocket.Conn) *wsConn {
	return &wsConn{socket: socket}
}

func (c *wsConn) Send(event orchestrator.Event) error {
	frame, err := encodeEvent(event)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socket.WriteMessage(websocket.TextMessage, frame)
}

// encodeEvent flattens an event into a wire frame with its kind as the
// "type" field, keeping the protocol a single flat JSON object per
// event for simple clients.
func encodeEvent(event orchestrator.Event) ([]byte, error) {
	raw, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]any)
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	fields["type"] = string(event.Kind())
	return json.Marshal(fields)
}
