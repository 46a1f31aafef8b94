package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/daosail/compass/internal/chat"
	"github.com/daosail/compass/internal/gate"
	"github.com/daosail/compass/internal/knowledge"
	"github.com/daosail/compass/internal/log"
	"github.com/daosail/compass/internal/roles"
	"github.com/daosail/compass/internal/session"
)

// maxChatBodyBytes limits chat request bodies.
const maxChatBodyBytes = 1 << 20

// ChatService runs conversation turns. *chat.Service satisfies it.
type ChatService interface {
	Complete(ctx context.Context, req chat.Request) (chat.Result, error)
	Stream(ctx context.Context, req chat.Request) (<-chan chat.Event, error)
}

// SessionStore is the session persistence the handlers need.
// *session.Store satisfies it.
type SessionStore interface {
	GetOrCreate(ctx context.Context, id uuid.UUID) (*session.Session, error)
	Authenticate(ctx context.Context, id uuid.UUID, email string, role roles.Tier) (*session.Session, error)
	CaptureEmail(ctx context.Context, id uuid.UUID, email string) error
	SetLanguage(ctx context.Context, id uuid.UUID, language string) error
}

// chatHandler serves POST /api/v1/chat.
type chatHandler struct {
	service  ChatService
	sessions SessionStore
	logger   log.Logger
}

// chatRequest is the JSON body of a chat turn.
type chatRequest struct {
	Messages      []chat.Message `json:"messages"`
	AssistantType string         `json:"assistantType"`
	Language      string         `json:"language"`
	FilesContext  string         `json:"filesContext"`
}

// chatResponse is the JSON body of a batch chat turn.
type chatResponse struct {
	Message             chat.Message `json:"message"`
	Usage               chat.Usage   `json:"usage"`
	KnowledgeChunksUsed int          `json:"knowledgeChunksUsed"`
	UserRole            string       `json:"userRole"`
	IsGuest             bool         `json:"isGuest"`
	ResponsesLeft       int          `json:"responsesLeft"`
	Stage               string       `json:"stage"`
}

// send handles one conversation turn. The stream query flag switches
// the response to SSE.
func (h *chatHandler) send(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "session_missing", "no session in request")
		return
	}

	var body chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}

	sess, err := h.sessions.GetOrCreate(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("loading session", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "session_failed", "failed to load session")
		return
	}

	language := body.Language
	switch {
	case language == "":
		language = sess.Language
	case language != sess.Language && (language == "ru" || language == "en"):
		// Remember the caller's preference for future turns.
		if err := h.sessions.SetLanguage(r.Context(), sessionID, language); err != nil {
			h.logger.Debug("storing language preference", "error", err, "session_id", sessionID)
		}
	}

	req := chat.Request{
		SessionID:    sessionID,
		Messages:     body.Messages,
		Persona:      knowledge.Persona(body.AssistantType),
		Role:         sess.Role,
		Language:     language,
		FilesContext: body.FilesContext,
		Gate:         sess.Gate,
	}

	if streaming(r) {
		h.stream(w, r, req)
		return
	}

	res, err := h.service.Complete(r.Context(), req)
	if err != nil {
		h.writeChatError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Message:             res.Message,
		Usage:               res.Usage,
		KnowledgeChunksUsed: res.KnowledgeChunksUsed,
		UserRole:            string(res.Role),
		IsGuest:             res.IsGuest,
		ResponsesLeft:       res.Gate.ResponsesLeft,
		Stage:               string(res.Gate.Stage()),
	})
}

// stream re-emits the service's event channel as SSE. Each event is
// one JSON object; the SSE event name mirrors the type tag.
func (h *chatHandler) stream(w http.ResponseWriter, r *http.Request, req chat.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported", "streaming not supported")
		return
	}

	events, err := h.service.Stream(r.Context(), req)
	if err != nil {
		// Pre-stream failures are plain JSON errors, not SSE.
		h.writeChatError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for ev := range events {
		if err := writeSSEEvent(w, flusher, ev); err != nil {
			// Write failure usually means the client disconnected.
			h.logger.Debug("writing SSE event", "error", err, "session_id", req.SessionID)
			return
		}
	}
}

// writeSSEEvent writes one event in SSE format: "event: <type>\ndata: <json>\n\n".
func writeSSEEvent(w http.ResponseWriter, flusher http.Flusher, ev chat.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	flusher.Flush()
	return nil
}

// writeChatError maps service errors to HTTP responses.
func (h *chatHandler) writeChatError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, chat.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, chat.ErrAuthRequired):
		writeJSON(w, http.StatusUnauthorized, errorBody{
			Error:   "auth_required",
			Message: "guest quota exhausted, please sign in",
			Stage:   string(gate.StageRegistrationRequired),
		})
	case errors.Is(err, chat.ErrEmptyCompletion):
		writeError(w, http.StatusBadGateway, "empty_completion", "provider returned no content")
	case errors.Is(err, chat.ErrUpstream):
		writeError(w, http.StatusBadGateway, "upstream_error", "completion provider failed")
	default:
		h.logger.Error("chat turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// streaming reports whether the request asked for SSE.
func streaming(r *http.Request) bool {
	switch r.URL.Query().Get("stream") {
	case "1", "true":
		return true
	}
	return false
}
