package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
)

// Message roles on the wire.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one conversation entry. Order within a conversation is
// significant and preserved end to end.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp,omitzero"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Usage carries the provider's token counters for one completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// toAIMessages converts wire messages to genkit messages, preserving
// order. System messages are passed via ai.WithSystem, not here.
func toAIMessages(msgs []Message) []*ai.Message {
	out := make([]*ai.Message, 0, len(msgs))
	for _, m := range msgs {
		part := ai.NewTextPart(m.Content)
		switch m.Role {
		case RoleAssistant:
			out = append(out, ai.NewModelMessage(part))
		default:
			out = append(out, ai.NewUserMessage(part))
		}
	}
	return out
}

// EventType tags one streaming event.
type EventType string

const (
	EventMetadata EventType = "metadata"
	EventContent  EventType = "content"
	EventFinish   EventType = "finish"
	EventError    EventType = "error"
)

// Metadata is the payload of the first event on every stream.
type Metadata struct {
	AssistantType       string    `json:"assistantType"`
	UserRole            string    `json:"userRole"`
	KnowledgeChunksUsed int       `json:"knowledgeChunksUsed"`
	IsGuest             bool      `json:"isGuest"`
	Timestamp           time.Time `json:"timestamp"`
}

// Event is one entry in the ordered stream protocol: exactly one
// metadata event, zero or more content events, then exactly one finish
// or error event. Only the fields for the tagged variant are set.
type Event struct {
	Type EventType

	// metadata
	Metadata Metadata

	// content
	Delta       string
	FullContent string

	// finish
	Reason  string
	Message *Message

	// error
	Err string
}

// MarshalJSON emits the flat wire shape for the tagged variant.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventMetadata:
		return json.Marshal(struct {
			Type EventType `json:"type"`
			Metadata
		}{Type: e.Type, Metadata: e.Metadata})
	case EventContent:
		return json.Marshal(struct {
			Type        EventType `json:"type"`
			Content     string    `json:"content"`
			FullContent string    `json:"fullContent"`
		}{e.Type, e.Delta, e.FullContent})
	case EventFinish:
		return json.Marshal(struct {
			Type        EventType `json:"type"`
			Reason      string    `json:"reason"`
			FullContent string    `json:"fullContent"`
			Message     *Message  `json:"message"`
		}{e.Type, e.Reason, e.FullContent, e.Message})
	case EventError:
		return json.Marshal(struct {
			Type  EventType `json:"type"`
			Error string    `json:"error"`
		}{e.Type, e.Err})
	default:
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
}
