// Package gate implements the anonymous usage quota state machine.
//
// Guests get a fixed number of answered questions per session. The gate
// is consulted before any retrieval or completion work so that an
// exhausted session never triggers upstream calls. State is a plain
// value; persistence belongs to the session store.
package gate

import "errors"

// DefaultGuestQuota is the number of answers an unauthenticated
// session may receive.
const DefaultGuestQuota = 3

// emailCaptureThreshold is the question count at which the soft
// email-capture prompt is surfaced to unauthenticated sessions.
const emailCaptureThreshold = 3

// ErrQuotaExceeded is returned by Check once an unauthenticated
// session has used all its answers.
var ErrQuotaExceeded = errors.New("guest quota exceeded")

// Stage describes what the client should surface to the user.
type Stage string

const (
	StageInitial              Stage = "initial"
	StageEmailCapture         Stage = "email_capture"
	StageRegistrationRequired Stage = "registration_required"
	StageAuthenticated        Stage = "authenticated"
)

// State tracks one session's position in the gate. The zero value is
// not meaningful; use NewGuest or Authenticated.
type State struct {
	ResponsesLeft  int
	QuestionsAsked int
	SignedIn       bool
}

// NewGuest returns the starting state for an anonymous session.
func NewGuest() State {
	return State{ResponsesLeft: DefaultGuestQuota}
}

// Authenticated returns the state for a signed-in session. Quota does
// not apply; QuestionsAsked is still tracked for statistics.
func Authenticated(questionsAsked int) State {
	return State{QuestionsAsked: questionsAsked, SignedIn: true}
}

// Stage derives the client-facing stage from the counters. Exhausted
// quota dominates the email-capture prompt.
func (s State) Stage() Stage {
	switch {
	case s.SignedIn:
		return StageAuthenticated
	case s.ResponsesLeft <= 0:
		return StageRegistrationRequired
	case s.QuestionsAsked >= emailCaptureThreshold:
		return StageEmailCapture
	default:
		return StageInitial
	}
}

// Check reports whether a new question may proceed. It must be called
// before retrieval so exhausted sessions never reach the providers.
func (s State) Check() error {
	if s.SignedIn {
		return nil
	}
	if s.ResponsesLeft <= 0 {
		return ErrQuotaExceeded
	}
	return nil
}

// Consume records one answered question and returns the new state.
// ResponsesLeft is floored at zero; QuestionsAsked always increments.
func (s State) Consume() State {
	next := s
	next.QuestionsAsked++
	if !s.SignedIn && next.ResponsesLeft > 0 {
		next.ResponsesLeft--
	}
	return next
}

// SignIn transitions the session to the authenticated stage. The
// question counter carries over; the remaining-quota counter becomes
// irrelevant.
func (s State) SignIn() State {
	next := s
	next.SignedIn = true
	return next
}
