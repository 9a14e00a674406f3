package ws

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/symposium-ai/symposium/backend/internal/model/thinker"
	"github.com/symposium-ai/symposium/backend/internal/orchestrator"
	conversationService "github.com/symposium-ai/symposium/backend/internal/service/conversation"
)

func setupSocketServer(t *testing.T) (*httptest.Server, *orchestrator.Orchestrator, string) {
	t.Helper()

	convSvc := conversationService.NewService(0)
	conv, err := convSvc.CreateConversation(context.Background(), "progress", "Sam", []thinker.Thinker{
		{ID: "socrates", Name: "Socrates"},
	})
	if err != nil {
		t.Fatalf("CreateConversation err: %v", err)
	}

	// No chat model configured, so StartAgents is a no-op and the test
	// exercises only the socket protocol.
	orc := orchestrator.New(nil, orchestrator.Config{})

	r := chi.NewRouter()
	New(orc, convSvc).RegisterRoutes(r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	t.Cleanup(orc.StopAll)

	return server, orc, conv.ID
}

func dialSocket(t *testing.T, server *httptest.Server, conversationID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/" + conversationID
	socket, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	t.Cleanup(func() { socket.Close() })
	return socket
}

func readFrame(t *testing.T, socket *websocket.Conn) map[string]any {
	t.Helper()

	socket.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := socket.ReadMessage()
	if err != nil {
		t.Fatalf("read err: %v", err)
	}
	var frame map[string]any
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("invalid frame %q: %v", data, err)
	}
	return frame
}

func readFrameOfType(t *testing.T, socket *websocket.Conn, kind string) map[string]any {
	t.Helper()

	for i := 0; i < 10; i++ {
		frame := readFrame(t, socket)
		if frame["type"] == kind {
			return frame
		}
	}
	t.Fatalf("no %s frame received", kind)
	return nil
}

func TestSocketUnknownConversation(t *testing.T) {
	server, _, _ := setupSocketServer(t)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/missing"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected dial to fail for an unknown conversation")
	}
	if resp == nil || resp.StatusCode != 404 {
		t.Fatalf("expected 404, got %+v", resp)
	}
}

func TestSocketJoinAnnouncement(t *testing.T) {
	server, _, convID := setupSocketServer(t)
	socket := dialSocket(t, server, convID)

	frame := readFrameOfType(t, socket, "user_joined")
	if frame["conversationId"] != convID {
		t.Fatalf("unexpected conversation id: %v", frame["conversationId"])
	}
}

func TestSocketSpeedCommandClampsAndNotifies(t *testing.T) {
	server, _, convID := setupSocketServer(t)
	socket := dialSocket(t, server, convID)
	readFrameOfType(t, socket, "user_joined")

	if err := socket.WriteJSON(map[string]any{"type": "set_speed", "speedMultiplier": 99}); err != nil {
		t.Fatalf("write err: %v", err)
	}

	frame := readFrameOfType(t, socket, "speed_changed")
	if frame["speedMultiplier"].(float64) != 6.0 {
		t.Fatalf("expected clamped multiplier 6.0, got %v", frame["speedMultiplier"])
	}
}

func TestSocketPauseResume(t *testing.T) {
	server, orc, convID := setupSocketServer(t)
	socket := dialSocket(t, server, convID)
	readFrameOfType(t, socket, "user_joined")

	if err := socket.WriteJSON(map[string]any{"type": "pause"}); err != nil {
		t.Fatalf("write err: %v", err)
	}
	readFrameOfType(t, socket, "paused")
	if !orc.IsPaused(convID) {
		t.Fatal("orchestrator should be paused")
	}

	if err := socket.WriteJSON(map[string]any{"type": "resume"}); err != nil {
		t.Fatalf("write err: %v", err)
	}
	readFrameOfType(t, socket, "resumed")
	if orc.IsPaused(convID) {
		t.Fatal("orchestrator should have resumed")
	}
}

func TestSocketInvalidJSON(t *testing.T) {
	server, _, convID := setupSocketServer(t)
	socket := dialSocket(t, server, convID)
	readFrameOfType(t, socket, "user_joined")

	if err := socket.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write err: %v", err)
	}

	frame := readFrameOfType(t, socket, "error")
	if frame["content"] != "invalid JSON" {
		t.Fatalf("unexpected error content: %v", frame["content"])
	}
}

func TestSocketUserMessageBroadcast(t *testing.T) {
	server, _, convID := setupSocketServer(t)
	first := dialSocket(t, server, convID)
	readFrameOfType(t, first, "user_joined")

	second := dialSocket(t, server, convID)
	readFrameOfType(t, second, "user_joined")

	if err := second.WriteJSON(map[string]any{"type": "user_message", "content": "hello all"}); err != nil {
		t.Fatalf("write err: %v", err)
	}

	frame := readFrameOfType(t, first, "message")
	if frame["content"] != "hello all" || frame["senderType"] != "user" {
		t.Fatalf("unexpected message frame: %v", frame)
	}
}
