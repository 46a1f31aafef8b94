package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/daosail/compass/internal/log"
	"github.com/daosail/compass/internal/session"
)

// Dispatcher sends assembled conversations to the completion provider
// and normalizes the result. Batch calls go through the retry policy
// and circuit breaker; streaming calls are wrapped into the ordered
// event protocol.
type Dispatcher struct {
	g         *genkit.Genkit
	modelName string
	retry     RetryConfig
	breaker   *CircuitBreaker
	limiter   *rate.Limiter
	logger    log.Logger
}

// DispatcherConfig contains the dispatcher's dependencies. Zero-value
// resilience settings fall back to defaults.
type DispatcherConfig struct {
	Genkit    *genkit.Genkit
	ModelName string // Provider-qualified, e.g. "googleai/gemini-2.5-flash"
	Logger    log.Logger

	Retry          RetryConfig
	CircuitBreaker CircuitBreakerConfig
	RateLimiter    *rate.Limiter
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig) *Dispatcher {
	retry := cfg.Retry
	if retry.MaxRetries == 0 {
		retry = DefaultRetryConfig()
	}
	cb := cfg.CircuitBreaker
	if cb.FailureThreshold == 0 {
		cb = DefaultCircuitBreakerConfig()
	}
	limiter := cfg.RateLimiter
	if limiter == nil {
		// 10 req/s sustained, burst of 30.
		limiter = rate.NewLimiter(10, 30)
	}

	return &Dispatcher{
		g:         cfg.Genkit,
		modelName: cfg.ModelName,
		retry:     retry,
		breaker:   NewCircuitBreaker(cb),
		limiter:   limiter,
		logger:    cfg.Logger,
	}
}

// Complete runs one synchronous completion. The system instruction
// becomes the lone system message; history passes through in order.
func (d *Dispatcher) Complete(ctx context.Context, system string, history []Message) (Message, Usage, error) {
	if err := d.breaker.Allow(); err != nil {
		d.logger.Warn("circuit breaker rejecting request", "state", d.breaker.State().String())
		return Message{}, Usage{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	resp, err := d.generateWithRetry(ctx, d.generateOpts(system, history, nil))
	if err != nil {
		d.breaker.Failure()
		return Message{}, Usage{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	d.breaker.Success()

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return Message{}, Usage{}, ErrEmptyCompletion
	}

	return Message{
		Role:      RoleAssistant,
		Content:   text,
		Timestamp: time.Now().UTC(),
	}, usageFromResponse(resp), nil
}

// Stream opens a provider token stream and re-emits it as the ordered
// event protocol: meta first, then one content event per token with
// both the delta and the cumulative text, then exactly one finish or
// error event. The channel is closed after the terminal event. If the
// consumer's context is canceled mid-stream, the provider call is
// canceled with it.
func (d *Dispatcher) Stream(ctx context.Context, system string, history []Message, meta Metadata) <-chan Event {
	events := make(chan Event)

	go func() {
		defer close(events)

		send := func(e Event) bool {
			select {
			case events <- e:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(Event{Type: EventMetadata, Metadata: meta}) {
			return
		}

		if err := d.breaker.Allow(); err != nil {
			d.logger.Warn("circuit breaker rejecting stream", "state", d.breaker.State().String())
			send(Event{Type: EventError, Err: err.Error()})
			return
		}

		if err := d.limiter.Wait(ctx); err != nil {
			send(Event{Type: EventError, Err: err.Error()})
			return
		}

		var full strings.Builder
		cb := func(cbCtx context.Context, chunk *ai.ModelResponseChunk) error {
			delta := chunk.Text()
			if delta == "" {
				return nil
			}
			full.WriteString(delta)
			if !send(Event{Type: EventContent, Delta: delta, FullContent: full.String()}) {
				return context.Cause(ctx)
			}
			return nil
		}

		resp, err := genkit.Generate(ctx, d.g, d.generateOpts(system, history, cb)...)
		if err != nil {
			d.breaker.Failure()
			d.logger.Error("stream failed", "error", err)
			send(Event{Type: EventError, Err: err.Error()})
			return
		}
		d.breaker.Success()

		fullContent := resp.Text()
		if fullContent == "" {
			fullContent = full.String()
		}
		reason := string(resp.FinishReason)
		if reason == "" {
			reason = "stop"
		}

		send(Event{
			Type:        EventFinish,
			Reason:      reason,
			FullContent: fullContent,
			Message: &Message{
				Role:      RoleAssistant,
				Content:   fullContent,
				Timestamp: time.Now().UTC(),
			},
		})
	}()

	return events
}

func (d *Dispatcher) generateOpts(system string, history []Message, cb ai.ModelStreamCallback) []ai.GenerateOption {
	opts := []ai.GenerateOption{
		ai.WithSystem(system),
		ai.WithMessages(toAIMessages(history)...),
	}
	if d.modelName != "" {
		opts = append(opts, ai.WithModelName(d.modelName))
	}
	if cb != nil {
		opts = append(opts, ai.WithStreaming(cb))
	}
	return opts
}

func usageFromResponse(resp *ai.ModelResponse) Usage {
	if resp.Usage == nil {
		return Usage{}
	}
	return Usage{
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
}

// Title generation constants.
const (
	titleGenerationTimeout = 5 * time.Second
	titleInputMaxRunes     = 500
)

var titlePrompt = fmt.Sprintf(
	`Generate a concise title (max %d characters) for a chat session based on this first message.`,
	session.TitleMaxLength) + `
The title should capture the main topic or intent, in the same language as the message.
Return ONLY the title text, no quotes, no explanations, no punctuation at the end.

Message: %s

Title:`

// GenerateTitle generates a concise session title from the user's
// first message. Best-effort: returns empty string on failure.
func (d *Dispatcher) GenerateTitle(ctx context.Context, userMessage string) string {
	ctx, cancel := context.WithTimeout(ctx, titleGenerationTimeout)
	defer cancel()

	inputRunes := []rune(userMessage)
	if len(inputRunes) > titleInputMaxRunes {
		userMessage = string(inputRunes[:titleInputMaxRunes]) + "..."
	}

	opts := []ai.GenerateOption{
		ai.WithPrompt(titlePrompt, userMessage),
	}
	if d.modelName != "" {
		opts = append(opts, ai.WithModelName(d.modelName))
	}

	response, err := genkit.Generate(ctx, d.g, opts...)
	if err != nil {
		d.logger.Debug("title generation failed", "error", err)
		return ""
	}

	title := strings.TrimSpace(response.Text())
	if title == "" {
		return ""
	}

	titleRunes := []rune(title)
	if len(titleRunes) > session.TitleMaxLength {
		title = string(titleRunes[:session.TitleMaxLength-3]) + "..."
	}

	return title
}
