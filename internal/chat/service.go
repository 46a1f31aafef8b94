package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/daosail/compass/internal/gate"
	"github.com/daosail/compass/internal/knowledge"
	"github.com/daosail/compass/internal/log"
	"github.com/daosail/compass/internal/persona"
	"github.com/daosail/compass/internal/roles"
	"github.com/daosail/compass/internal/session"
)

// MaxMessageLength is the per-message content limit in characters.
const MaxMessageLength = 4000

// Retriever supplies grounding snippets. *knowledge.Retriever
// satisfies it.
type Retriever interface {
	Retrieve(ctx context.Context, q knowledge.Query) []knowledge.Snippet
}

// Completer runs completions. *Dispatcher satisfies it.
type Completer interface {
	Complete(ctx context.Context, system string, history []Message) (Message, Usage, error)
	Stream(ctx context.Context, system string, history []Message, meta Metadata) <-chan Event
}

// Titler generates a short conversation title. *Dispatcher satisfies
// it.
type Titler interface {
	GenerateTitle(ctx context.Context, userMessage string) string
}

// GateStore persists per-session gate state. *session.Store satisfies
// it.
type GateStore interface {
	ConsumeQuota(ctx context.Context, id uuid.UUID) (gate.State, error)
	SetTitle(ctx context.Context, id uuid.UUID, title string) error
}

// Request is one conversation turn as seen by the service. Gate and
// role come from the caller's session; the service never authenticates.
type Request struct {
	SessionID    uuid.UUID
	Messages     []Message
	Persona      knowledge.Persona
	Role         roles.Tier
	Language     string
	FilesContext string
	Gate         gate.State
}

// Result is the batch-mode outcome of one turn.
type Result struct {
	Message             Message
	Usage               Usage
	KnowledgeChunksUsed int
	Role                roles.Tier
	IsGuest             bool
	Gate                gate.State
}

// ServiceConfig contains the service's dependencies.
type ServiceConfig struct {
	Retriever Retriever
	Completer Completer
	Titler    Titler // optional; nil disables title generation
	Sessions  GateStore
	Logger    log.Logger

	// BackgroundCtx outlives individual requests; used for async title
	// generation. WG tracks those goroutines for graceful shutdown.
	BackgroundCtx context.Context //nolint:containedctx // App lifecycle context, not a request context
	WG            *sync.WaitGroup
}

// Service orchestrates one conversation turn: gate check, retrieval,
// prompt assembly, dispatch, quota consumption. Stateless; safe for
// concurrent use.
type Service struct {
	retriever Retriever
	completer Completer
	titler    Titler
	sessions  GateStore
	logger    log.Logger

	bgCtx context.Context //nolint:containedctx // App lifecycle context, not a request context
	wg    *sync.WaitGroup
}

// NewService creates a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Retriever == nil {
		return nil, fmt.Errorf("retriever is required")
	}
	if cfg.Completer == nil {
		return nil, fmt.Errorf("completer is required")
	}
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	bgCtx := cfg.BackgroundCtx
	if bgCtx == nil {
		bgCtx = context.Background()
	}
	wg := cfg.WG
	if wg == nil {
		wg = &sync.WaitGroup{}
	}

	return &Service{
		retriever: cfg.Retriever,
		completer: cfg.Completer,
		titler:    cfg.Titler,
		sessions:  cfg.Sessions,
		logger:    cfg.Logger,
		bgCtx:     bgCtx,
		wg:        wg,
	}, nil
}

// Complete handles one batch turn.
func (s *Service) Complete(ctx context.Context, req Request) (Result, error) {
	prep, err := s.prepare(ctx, &req)
	if err != nil {
		return Result{}, err
	}

	msg, usage, err := s.completer.Complete(ctx, prep.system, req.Messages)
	if err != nil {
		return Result{}, err
	}

	newGate := s.consume(ctx, req)

	return Result{
		Message:             msg,
		Usage:               usage,
		KnowledgeChunksUsed: prep.chunks,
		Role:                req.Role,
		IsGuest:             !req.Gate.SignedIn,
		Gate:                newGate,
	}, nil
}

// Stream handles one streaming turn. Validation and gate failures are
// returned synchronously before any event is emitted; provider
// failures arrive as a terminal error event on the channel.
func (s *Service) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	prep, err := s.prepare(ctx, &req)
	if err != nil {
		return nil, err
	}

	meta := Metadata{
		AssistantType:       string(req.Persona),
		UserRole:            string(req.Role),
		KnowledgeChunksUsed: prep.chunks,
		IsGuest:             !req.Gate.SignedIn,
		Timestamp:           time.Now().UTC(),
	}

	upstream := s.completer.Stream(ctx, prep.system, req.Messages, meta)

	out := make(chan Event)
	go func() {
		defer close(out)
		for ev := range upstream {
			if ev.Type == EventFinish {
				newGate := s.consume(ctx, req)
				if ev.Message != nil {
					ev.Message.Metadata = map[string]any{
						"userRole":      string(req.Role),
						"isGuest":       !req.Gate.SignedIn,
						"responsesLeft": newGate.ResponsesLeft,
						"stage":         string(newGate.Stage()),
					}
				}
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

type prepared struct {
	system string
	chunks int
}

// prepare runs the shared pre-dispatch pipeline: validation, gate
// check, retrieval and prompt assembly. It normalizes the request's
// persona and language in place.
func (s *Service) prepare(ctx context.Context, req *Request) (prepared, error) {
	if err := validateMessages(req.Messages); err != nil {
		return prepared{}, err
	}

	// Fail fast before any upstream work once quota is gone.
	if err := req.Gate.Check(); err != nil {
		return prepared{}, fmt.Errorf("%w: %w", ErrAuthRequired, err)
	}

	if !knowledge.ValidPersona(req.Persona) {
		req.Persona = knowledge.PersonaNavigator
	}
	if req.Language != "ru" && req.Language != "en" {
		req.Language = persona.DefaultLanguage
	}

	snippets := s.retriever.Retrieve(ctx, knowledge.Query{
		Text:     lastUserText(req.Messages),
		Persona:  req.Persona,
		Role:     req.Role,
		Language: req.Language,
	})

	system := persona.Assemble(req.Persona, req.Language, snippets, req.FilesContext)

	s.logger.Debug("turn prepared",
		"session_id", req.SessionID,
		"persona", req.Persona,
		"role", req.Role,
		"snippets", len(snippets),
	)

	s.maybeGenerateTitle(*req)

	return prepared{system: system, chunks: len(snippets)}, nil
}

// consume records the answered question. A store failure degrades to a
// local computation so the answer is never lost over a quota write.
func (s *Service) consume(ctx context.Context, req Request) gate.State {
	newGate, err := s.sessions.ConsumeQuota(ctx, req.SessionID)
	if err != nil {
		s.logger.Warn("quota consume failed", "session_id", req.SessionID, "error", err)
		return req.Gate.Consume()
	}
	return newGate
}

// maybeGenerateTitle starts async title generation on the first
// question of a session. Best-effort; tracked by wg for shutdown.
func (s *Service) maybeGenerateTitle(req Request) {
	if s.titler == nil || req.Gate.QuestionsAsked > 0 {
		return
	}
	text := lastUserText(req.Messages)
	if text == "" {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		title := s.titler.GenerateTitle(s.bgCtx, text)
		if title == "" {
			// Fallback: truncate the question itself.
			runes := []rune(text)
			if len(runes) > session.TitleMaxLength {
				runes = runes[:session.TitleMaxLength-3]
				title = string(runes) + "..."
			} else {
				title = text
			}
		}
		if err := s.sessions.SetTitle(s.bgCtx, req.SessionID, title); err != nil {
			s.logger.Debug("storing title", "session_id", req.SessionID, "error", err)
		}
	}()
}

// validateMessages enforces the request invariants before anything
// reaches an upstream provider.
func validateMessages(msgs []Message) error {
	if len(msgs) == 0 {
		return fmt.Errorf("%w: messages are required", ErrValidation)
	}
	for i, m := range msgs {
		switch m.Role {
		case RoleUser, RoleAssistant, RoleSystem:
		default:
			return fmt.Errorf("%w: message %d has unknown role %q", ErrValidation, i, m.Role)
		}
		if strings.TrimSpace(m.Content) == "" {
			return fmt.Errorf("%w: message %d is empty", ErrValidation, i)
		}
		if n := utf8.RuneCountInString(m.Content); n > MaxMessageLength {
			return fmt.Errorf("%w: message %d is %d characters, limit is %d", ErrValidation, i, n, MaxMessageLength)
		}
	}
	return nil
}

// lastUserText returns the content of the most recent user message.
func lastUserText(msgs []Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == RoleUser {
			return msgs[i].Content
		}
	}
	return ""
}
