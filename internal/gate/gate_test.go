package gate

import (
	"errors"
	"testing"
)

func TestNewGuest(t *testing.T) {
	s := NewGuest()
	if s.ResponsesLeft != DefaultGuestQuota {
		t.Errorf("ResponsesLeft = %d, want %d", s.ResponsesLeft, DefaultGuestQuota)
	}
	if s.Stage() != StageInitial {
		t.Errorf("Stage = %q, want %q", s.Stage(), StageInitial)
	}
	if err := s.Check(); err != nil {
		t.Errorf("fresh guest Check() = %v, want nil", err)
	}
}

func TestConsumeDecrementsAndFloors(t *testing.T) {
	s := NewGuest()
	for i := range DefaultGuestQuota {
		s = s.Consume()
		want := DefaultGuestQuota - i - 1
		if s.ResponsesLeft != want {
			t.Fatalf("after %d questions ResponsesLeft = %d, want %d", i+1, s.ResponsesLeft, want)
		}
	}

	// Further consumes must not push the counter negative.
	s = s.Consume()
	if s.ResponsesLeft != 0 {
		t.Errorf("ResponsesLeft = %d, want floor at 0", s.ResponsesLeft)
	}
	if s.QuestionsAsked != DefaultGuestQuota+1 {
		t.Errorf("QuestionsAsked = %d, want %d", s.QuestionsAsked, DefaultGuestQuota+1)
	}
}

func TestQuotaExhaustionBlocksBeforeRetrieval(t *testing.T) {
	// One answer left: the answer succeeds, then the session is locked out.
	s := State{ResponsesLeft: 1}
	if err := s.Check(); err != nil {
		t.Fatalf("Check() with quota remaining = %v", err)
	}

	s = s.Consume()
	if s.Stage() != StageRegistrationRequired {
		t.Errorf("Stage = %q, want %q", s.Stage(), StageRegistrationRequired)
	}
	if err := s.Check(); !errors.Is(err, ErrQuotaExceeded) {
		t.Errorf("Check() after exhaustion = %v, want ErrQuotaExceeded", err)
	}
}

func TestEmailCaptureStage(t *testing.T) {
	// The soft prompt appears at the third question when quota remains.
	s := State{ResponsesLeft: 5}
	for range 3 {
		s = s.Consume()
	}
	if s.Stage() != StageEmailCapture {
		t.Errorf("Stage = %q, want %q", s.Stage(), StageEmailCapture)
	}

	// Exhausted quota dominates the soft prompt.
	s.ResponsesLeft = 0
	if s.Stage() != StageRegistrationRequired {
		t.Errorf("Stage = %q, want %q", s.Stage(), StageRegistrationRequired)
	}
}

func TestAuthenticatedBypassesQuota(t *testing.T) {
	s := Authenticated(0)
	for range 20 {
		if err := s.Check(); err != nil {
			t.Fatalf("authenticated Check() = %v", err)
		}
		s = s.Consume()
	}
	if s.Stage() != StageAuthenticated {
		t.Errorf("Stage = %q, want %q", s.Stage(), StageAuthenticated)
	}
	if s.QuestionsAsked != 20 {
		t.Errorf("QuestionsAsked = %d, want 20", s.QuestionsAsked)
	}
}

func TestSignInPreservesQuestionCount(t *testing.T) {
	s := NewGuest()
	s = s.Consume()
	s = s.Consume()

	s = s.SignIn()
	if s.Stage() != StageAuthenticated {
		t.Errorf("Stage = %q, want %q", s.Stage(), StageAuthenticated)
	}
	if s.QuestionsAsked != 2 {
		t.Errorf("QuestionsAsked = %d, want 2", s.QuestionsAsked)
	}
	if err := s.Check(); err != nil {
		t.Errorf("Check() after sign-in = %v, want nil", err)
	}
}
