package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/daosail/compass/internal/log"
	"github.com/daosail/compass/internal/session"
	"github.com/daosail/compass/internal/testutil"
)

// fastRetry keeps backoff out of test wall time.
func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries:      2,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	}
}

func newTestDispatcher(t *testing.T, mock *testutil.MockLLM) *Dispatcher {
	t.Helper()

	g := genkit.Init(context.Background())
	mock.RegisterModel(g)

	return NewDispatcher(DispatcherConfig{
		Genkit:    g,
		ModelName: "mock/test-model",
		Logger:    log.NewNop(),
		Retry:     fastRetry(),
	})
}

func userTurn(content string) []Message {
	return []Message{{Role: RoleUser, Content: content}}
}

func TestDispatcherComplete(t *testing.T) {
	mock := testutil.NewMockLLM("fallback answer")
	mock.AddResponse("points of sail", "A close haul keeps the bow near the wind.")
	d := newTestDispatcher(t, mock)

	msg, usage, err := d.Complete(context.Background(), "You are a sailing instructor.", userTurn("Explain the points of sail"))
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if msg.Role != RoleAssistant {
		t.Errorf("role = %q, want %q", msg.Role, RoleAssistant)
	}
	if msg.Content != "A close haul keeps the bow near the wind." {
		t.Errorf("content = %q", msg.Content)
	}
	if msg.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
	if usage.TotalTokens == 0 {
		t.Error("usage should carry token counts")
	}
	if usage.TotalTokens != usage.PromptTokens+usage.CompletionTokens {
		t.Errorf("usage total = %d, prompt %d + completion %d",
			usage.TotalTokens, usage.PromptTokens, usage.CompletionTokens)
	}

	calls := mock.Calls()
	if len(calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(calls))
	}
	if !strings.Contains(calls[0].System, "sailing instructor") {
		t.Errorf("system instruction not forwarded, got %q", calls[0].System)
	}
}

func TestDispatcherComplete_EmptyCompletion(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddResponse("blank", "   ")
	d := newTestDispatcher(t, mock)

	_, _, err := d.Complete(context.Background(), "", userTurn("blank please"))
	if !errors.Is(err, ErrEmptyCompletion) {
		t.Fatalf("err = %v, want ErrEmptyCompletion", err)
	}
}

func TestDispatcherComplete_UpstreamError(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddError("broken", errors.New("invalid API key"))
	d := newTestDispatcher(t, mock)

	_, _, err := d.Complete(context.Background(), "", userTurn("broken request"))
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}

func TestDispatcherComplete_RetriesTransientErrors(t *testing.T) {
	g := genkit.Init(context.Background())

	var attempts int
	genkit.DefineModel(g, "mock/flaky-model", &ai.ModelOptions{
		Supports: &ai.ModelSupports{Multiturn: true, SystemRole: true},
	}, func(_ context.Context, req *ai.ModelRequest, _ ai.ModelStreamCallback) (*ai.ModelResponse, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("503 service unavailable")
		}
		return &ai.ModelResponse{
			Request: req,
			Message: &ai.Message{
				Role:    ai.RoleModel,
				Content: []*ai.Part{ai.NewTextPart("recovered")},
			},
		}, nil
	})

	d := NewDispatcher(DispatcherConfig{
		Genkit:    g,
		ModelName: "mock/flaky-model",
		Logger:    log.NewNop(),
		Retry:     fastRetry(),
	})

	msg, _, err := d.Complete(context.Background(), "", userTurn("hello"))
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}
	if msg.Content != "recovered" {
		t.Errorf("content = %q, want %q", msg.Content, "recovered")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestDispatcherComplete_CircuitBreakerRejects(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddError("broken", errors.New("invalid API key"))

	g := genkit.Init(context.Background())
	mock.RegisterModel(g)
	d := NewDispatcher(DispatcherConfig{
		Genkit:    g,
		ModelName: "mock/test-model",
		Logger:    log.NewNop(),
		Retry:     fastRetry(),
		CircuitBreaker: CircuitBreakerConfig{
			FailureThreshold: 1,
			SuccessThreshold: 1,
			Timeout:          time.Minute,
		},
	})

	if _, _, err := d.Complete(context.Background(), "", userTurn("broken request")); err == nil {
		t.Fatal("first call should fail")
	}

	_, _, err := d.Complete(context.Background(), "", userTurn("anything at all"))
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, should wrap ErrUpstream", err)
	}
}

func collectEvents(t *testing.T, ch <-chan Event) []Event {
	t.Helper()

	var events []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatalf("stream did not terminate, got %d events", len(events))
		}
	}
}

func TestDispatcherStream_EventOrder(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddStreamResponse("greet the world", []string{"Hel", "lo ", "world"})
	d := newTestDispatcher(t, mock)

	meta := Metadata{AssistantType: "navigator", UserRole: "public", IsGuest: true}
	events := collectEvents(t, d.Stream(context.Background(), "system", userTurn("greet the world"), meta))

	if len(events) != 5 {
		t.Fatalf("events = %d, want 5 (metadata + 3 content + finish)", len(events))
	}

	if events[0].Type != EventMetadata {
		t.Errorf("first event = %q, want metadata", events[0].Type)
	}
	if events[0].Metadata.AssistantType != "navigator" || !events[0].Metadata.IsGuest {
		t.Errorf("metadata not forwarded: %+v", events[0].Metadata)
	}

	wantDeltas := []string{"Hel", "lo ", "world"}
	wantCumulative := []string{"Hel", "Hello ", "Hello world"}
	for i := 0; i < 3; i++ {
		ev := events[i+1]
		if ev.Type != EventContent {
			t.Fatalf("event %d = %q, want content", i+1, ev.Type)
		}
		if ev.Delta != wantDeltas[i] {
			t.Errorf("delta %d = %q, want %q", i, ev.Delta, wantDeltas[i])
		}
		if ev.FullContent != wantCumulative[i] {
			t.Errorf("cumulative %d = %q, want %q", i, ev.FullContent, wantCumulative[i])
		}
	}

	last := events[4]
	if last.Type != EventFinish {
		t.Fatalf("last event = %q, want finish", last.Type)
	}
	if last.Reason == "" {
		t.Error("finish reason should be set")
	}
	if last.FullContent != "Hello world" {
		t.Errorf("finish fullContent = %q, want %q", last.FullContent, "Hello world")
	}
	if last.Message == nil || last.Message.Content != "Hello world" {
		t.Errorf("finish message = %+v, want complete assistant message", last.Message)
	}
}

func TestDispatcherStream_ErrorEvent(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddError("broken", errors.New("invalid API key"))
	d := newTestDispatcher(t, mock)

	events := collectEvents(t, d.Stream(context.Background(), "", userTurn("broken request"), Metadata{}))

	if len(events) != 2 {
		t.Fatalf("events = %d, want 2 (metadata + error)", len(events))
	}
	if events[0].Type != EventMetadata {
		t.Errorf("first event = %q, want metadata", events[0].Type)
	}
	if events[1].Type != EventError {
		t.Fatalf("second event = %q, want error", events[1].Type)
	}
	if events[1].Err == "" {
		t.Error("error event should carry a message")
	}
}

func TestDispatcherStream_MatchesBatch(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddStreamResponse("reef the main", []string{"Ease the ", "halyard ", "first."})
	d := newTestDispatcher(t, mock)

	msg, _, err := d.Complete(context.Background(), "sys", userTurn("when to reef the main"))
	if err != nil {
		t.Fatalf("Complete() error: %v", err)
	}

	events := collectEvents(t, d.Stream(context.Background(), "sys", userTurn("when to reef the main"), Metadata{}))
	finish := events[len(events)-1]
	if finish.Type != EventFinish {
		t.Fatalf("last event = %q, want finish", finish.Type)
	}

	if finish.FullContent != msg.Content {
		t.Errorf("streamed content %q != batch content %q", finish.FullContent, msg.Content)
	}
}

func TestDispatcherStream_ConsumerCancellation(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddStreamResponse("long answer", []string{"one ", "two ", "three ", "four"})
	d := newTestDispatcher(t, mock)

	ctx, cancel := context.WithCancel(context.Background())
	ch := d.Stream(ctx, "", userTurn("long answer"), Metadata{})

	// Read the metadata and the first token, then walk away.
	<-ch
	<-ch
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream channel not closed after consumer cancellation")
		}
	}
}

func TestGenerateTitle(t *testing.T) {
	mock := testutil.NewMockLLM("Беседа")
	mock.AddResponse("узлы", "Морские узлы для начинающих")
	d := newTestDispatcher(t, mock)

	title := d.GenerateTitle(context.Background(), "Какие узлы нужно знать новичку?")
	if title != "Морские узлы для начинающих" {
		t.Errorf("title = %q", title)
	}
}

func TestGenerateTitle_Truncates(t *testing.T) {
	long := strings.Repeat("я", 80)
	mock := testutil.NewMockLLM(long)
	d := newTestDispatcher(t, mock)

	title := d.GenerateTitle(context.Background(), "anything")
	if n := len([]rune(title)); n > session.TitleMaxLength {
		t.Errorf("title length = %d runes, limit %d", n, session.TitleMaxLength)
	}
	if !strings.HasSuffix(title, "...") {
		t.Errorf("truncated title should end with ellipsis, got %q", title)
	}
}

func TestGenerateTitle_FailureReturnsEmpty(t *testing.T) {
	mock := testutil.NewMockLLM("fallback")
	mock.AddError("doomed", errors.New("invalid API key"))
	d := newTestDispatcher(t, mock)

	if title := d.GenerateTitle(context.Background(), "doomed question"); title != "" {
		t.Errorf("title = %q, want empty on failure", title)
	}
}
