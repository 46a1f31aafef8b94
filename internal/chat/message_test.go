package chat

import (
	"encoding/json"
	"testing"
	"time"
)

func marshalEvent(t *testing.T, e Event) map[string]any {
	t.Helper()

	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	return m
}

func TestEventMarshal_Metadata(t *testing.T) {
	t.Parallel()

	m := marshalEvent(t, Event{
		Type: EventMetadata,
		Metadata: Metadata{
			AssistantType:       "skipper",
			UserRole:            "sailor",
			KnowledgeChunksUsed: 2,
			IsGuest:             false,
			Timestamp:           time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		},
	})

	if m["type"] != "metadata" {
		t.Errorf("type = %v", m["type"])
	}
	if m["assistantType"] != "skipper" || m["userRole"] != "sailor" {
		t.Errorf("metadata fields not flattened: %v", m)
	}
	if m["knowledgeChunksUsed"] != float64(2) {
		t.Errorf("knowledgeChunksUsed = %v", m["knowledgeChunksUsed"])
	}
	if m["isGuest"] != false {
		t.Errorf("isGuest = %v", m["isGuest"])
	}
}

func TestEventMarshal_Content(t *testing.T) {
	t.Parallel()

	m := marshalEvent(t, Event{Type: EventContent, Delta: "lo ", FullContent: "Hello "})

	if m["type"] != "content" {
		t.Errorf("type = %v", m["type"])
	}
	if m["content"] != "lo " {
		t.Errorf("content = %v", m["content"])
	}
	if m["fullContent"] != "Hello " {
		t.Errorf("fullContent = %v", m["fullContent"])
	}
	if _, ok := m["reason"]; ok {
		t.Error("content event should not carry finish fields")
	}
}

func TestEventMarshal_Finish(t *testing.T) {
	t.Parallel()

	m := marshalEvent(t, Event{
		Type:        EventFinish,
		Reason:      "stop",
		FullContent: "Hello world",
		Message: &Message{
			Role:    RoleAssistant,
			Content: "Hello world",
			Metadata: map[string]any{
				"responsesLeft": 2,
			},
		},
	})

	if m["type"] != "finish" || m["reason"] != "stop" {
		t.Errorf("finish header wrong: %v", m)
	}
	msg, ok := m["message"].(map[string]any)
	if !ok {
		t.Fatalf("message = %T", m["message"])
	}
	if msg["role"] != RoleAssistant || msg["content"] != "Hello world" {
		t.Errorf("message = %v", msg)
	}
	meta, ok := msg["metadata"].(map[string]any)
	if !ok || meta["responsesLeft"] != float64(2) {
		t.Errorf("message metadata = %v", msg["metadata"])
	}
}

func TestEventMarshal_Error(t *testing.T) {
	t.Parallel()

	m := marshalEvent(t, Event{Type: EventError, Err: "upstream exploded"})

	if m["type"] != "error" {
		t.Errorf("type = %v", m["type"])
	}
	if m["error"] != "upstream exploded" {
		t.Errorf("error = %v", m["error"])
	}
}

func TestEventMarshal_UnknownType(t *testing.T) {
	t.Parallel()

	if _, err := json.Marshal(Event{Type: "bogus"}); err == nil {
		t.Fatal("expected error for unknown event type")
	}
}

func TestMessageJSON_OmitsEmptyFields(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(Message{Role: RoleUser, Content: "hi"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if _, ok := m["timestamp"]; ok {
		t.Error("zero timestamp should be omitted")
	}
	if _, ok := m["metadata"]; ok {
		t.Error("nil metadata should be omitted")
	}
}
