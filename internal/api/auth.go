package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"

	"github.com/daosail/compass/internal/knowledge"
	"github.com/daosail/compass/internal/log"
	"github.com/daosail/compass/internal/persona"
	"github.com/daosail/compass/internal/roles"
	"github.com/daosail/compass/internal/session"
)

// authHandler serves sign-in and lead capture.
type authHandler struct {
	sessions SessionStore
	logger   log.Logger
}

// signinRequest is the JSON body of POST /api/v1/auth/signin.
// Credential verification happens in the external identity provider;
// this endpoint records the verified identity against the session.
type signinRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (h *authHandler) signin(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "session_missing", "no session in request")
		return
	}

	var body signinRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if _, err := mail.ParseAddress(body.Email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_email", "a valid email is required")
		return
	}

	if _, err := h.sessions.GetOrCreate(r.Context(), sessionID); err != nil {
		h.logger.Error("loading session", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "session_failed", "failed to load session")
		return
	}

	sess, err := h.sessions.Authenticate(r.Context(), sessionID, body.Email, roles.Tier(body.Role))
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		h.logger.Error("authenticating session", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "signin_failed", "failed to sign in")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"role":  string(sess.Role),
		"stage": string(sess.Gate.Stage()),
	})
}

// leadRequest is the JSON body of POST /api/v1/leads, produced by the
// soft email-capture prompt.
type leadRequest struct {
	Email string `json:"email"`
}

func (h *authHandler) captureLead(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusInternalServerError, "session_missing", "no session in request")
		return
	}

	var body leadRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "invalid request body")
		return
	}
	if _, err := mail.ParseAddress(body.Email); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_email", "a valid email is required")
		return
	}

	if _, err := h.sessions.GetOrCreate(r.Context(), sessionID); err != nil {
		h.logger.Error("loading session", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "session_failed", "failed to load session")
		return
	}

	if err := h.sessions.CaptureEmail(r.Context(), sessionID, body.Email); err != nil {
		h.logger.Error("capturing lead", "error", err, "session_id", sessionID)
		writeError(w, http.StatusInternalServerError, "capture_failed", "failed to store email")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// quickQuestions serves GET /api/v1/questions.
func quickQuestions(w http.ResponseWriter, r *http.Request) {
	p := knowledge.Persona(r.URL.Query().Get("assistantType"))
	language := r.URL.Query().Get("language")

	writeJSON(w, http.StatusOK, map[string]any{
		"questions": persona.QuickQuestions(p, language),
	})
}
