package ws

import (
	"encoding/json"
	"testing"

	"github.com/symposium-ai/symposium/backend/internal/orchestrator"
)

func TestEncodeEventFlatFrame(t *testing.T) {
	cost := 0.002
	frame, err := encodeEvent(orchestrator.MessageEvent{
		ConversationID: "conv-1",
		SenderType:     "thinker",
		SenderName:     "Socrates",
		Content:        "A question first.",
		Cost:           &cost,
	})
	if err != nil {
		t.Fatalf("encodeEvent err: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(frame, &decoded); err != nil {
		t.Fatalf("frame is not valid JSON: %v", err)
	}

	if decoded["type"] != "message" {
		t.Fatalf("type: got %v", decoded["type"])
	}
	if decoded["conversationId"] != "conv-1" {
		t.Fatalf("conversationId: got %v", decoded["conversationId"])
	}
	if decoded["senderName"] != "Socrates" {
		t.Fatalf("senderName: got %v", decoded["senderName"])
	}
	if decoded["content"] != "A question first." {
		t.Fatalf("content: got %v", decoded["content"])
	}
	if decoded["cost"].(float64) != 0.002 {
		t.Fatalf("cost: got %v", decoded["cost"])
	}
}

func TestEncodeEventKinds(t *testing.T) {
	cases := []struct {
		event orchestrator.Event
		want  string
	}{
		{orchestrator.PausedEvent{ConversationID: "c"}, "paused"},
		{orchestrator.ResumedEvent{ConversationID: "c"}, "resumed"},
		{orchestrator.SpeedChangedEvent{ConversationID: "c", SpeedMultiplier: 2}, "speed_changed"},
		{orchestrator.ThinkerTypingEvent{ConversationID: "c", ThinkerName: "Ada"}, "thinker_typing"},
		{orchestrator.ThinkerThinkingEvent{ConversationID: "c", ThinkerName: "Ada", Content: "hm"}, "thinker_thinking"},
		{orchestrator.ErrorEvent{Content: "boom"}, "error"},
	}

	for _, tc := range cases {
		frame, err := encodeEvent(tc.event)
		if err != nil {
			t.Fatalf("encodeEvent(%T) err: %v", tc.event, err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(frame, &decoded); err != nil {
			t.Fatalf("frame is not valid JSON: %v", err)
		}
		if decoded["type"] != tc.want {
			t.Fatalf("%T: type got %v want %s", tc.event, decoded["type"], tc.want)
		}
	}
}
