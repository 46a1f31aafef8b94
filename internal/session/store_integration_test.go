//go:build integration

package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/daosail/compass/internal/gate"
	"github.com/daosail/compass/internal/log"
	"github.com/daosail/compass/internal/roles"
	"github.com/daosail/compass/internal/testutil"
)

func TestGetOrCreate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(db.Pool, log.NewNop())
	id := uuid.New()

	sess, err := store.GetOrCreate(ctx, id)
	if err != nil {
		t.Fatalf("GetOrCreate() = %v", err)
	}
	if sess.Role != roles.TierPublic {
		t.Errorf("new session role = %q, want public", sess.Role)
	}
	if sess.Gate.ResponsesLeft != gate.DefaultGuestQuota {
		t.Errorf("responses_left = %d, want %d", sess.Gate.ResponsesLeft, gate.DefaultGuestQuota)
	}
	if sess.Gate.SignedIn {
		t.Error("new session should not be signed in")
	}

	// Second call must return the same session, not reset it.
	if _, err := store.ConsumeQuota(ctx, id); err != nil {
		t.Fatalf("ConsumeQuota() = %v", err)
	}
	again, err := store.GetOrCreate(ctx, id)
	if err != nil {
		t.Fatalf("GetOrCreate() second call = %v", err)
	}
	if again.Gate.ResponsesLeft != gate.DefaultGuestQuota-1 {
		t.Errorf("responses_left = %d after reuse, want %d", again.Gate.ResponsesLeft, gate.DefaultGuestQuota-1)
	}

	// A configured quota applies to new sessions only.
	store.SetGuestQuota(5)
	other, err := store.GetOrCreate(ctx, uuid.New())
	if err != nil {
		t.Fatalf("GetOrCreate() with custom quota = %v", err)
	}
	if other.Gate.ResponsesLeft != 5 {
		t.Errorf("responses_left = %d, want configured 5", other.Gate.ResponsesLeft)
	}
	if again2, _ := store.Get(ctx, id); again2.Gate.ResponsesLeft != gate.DefaultGuestQuota-1 {
		t.Error("existing session quota changed by SetGuestQuota")
	}

	// The aggregate usage counter sees every consumed question.
	total, err := store.QuestionsAsked(ctx)
	if err != nil {
		t.Fatalf("QuestionsAsked() = %v", err)
	}
	if total < 1 {
		t.Errorf("aggregate questions_asked = %d, want >= 1", total)
	}
}

func TestGetUnknownSession(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(db.Pool, log.NewNop())
	if _, err := store.Get(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unknown) = %v, want ErrNotFound", err)
	}
	if _, err := store.ConsumeQuota(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("ConsumeQuota(unknown) = %v, want ErrNotFound", err)
	}
}

func TestConsumeQuotaSerialized(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(db.Pool, log.NewNop())
	id := uuid.New()
	if _, err := store.GetOrCreate(ctx, id); err != nil {
		t.Fatalf("GetOrCreate() = %v", err)
	}

	// Many concurrent consumes: the row lock must keep the counter
	// exact and never negative.
	const workers = 10
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ConsumeQuota(ctx, id); err != nil {
				t.Errorf("ConsumeQuota() = %v", err)
			}
		}()
	}
	wg.Wait()

	sess, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if sess.Gate.ResponsesLeft != 0 {
		t.Errorf("responses_left = %d, want 0", sess.Gate.ResponsesLeft)
	}
	if sess.Gate.QuestionsAsked != workers {
		t.Errorf("questions_asked = %d, want %d", sess.Gate.QuestionsAsked, workers)
	}
	if err := sess.Gate.Check(); !errors.Is(err, gate.ErrQuotaExceeded) {
		t.Errorf("Check() = %v, want ErrQuotaExceeded", err)
	}
}

func TestAuthenticate(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(db.Pool, log.NewNop())
	id := uuid.New()
	if _, err := store.GetOrCreate(ctx, id); err != nil {
		t.Fatalf("GetOrCreate() = %v", err)
	}
	if _, err := store.ConsumeQuota(ctx, id); err != nil {
		t.Fatalf("ConsumeQuota() = %v", err)
	}

	sess, err := store.Authenticate(ctx, id, "sailor@example.com", roles.TierSailor)
	if err != nil {
		t.Fatalf("Authenticate() = %v", err)
	}
	if !sess.Gate.SignedIn {
		t.Error("session should be signed in")
	}
	if sess.Role != roles.TierSailor {
		t.Errorf("role = %q, want sailor", sess.Role)
	}
	if sess.Email != "sailor@example.com" {
		t.Errorf("email = %q", sess.Email)
	}
	if sess.Gate.QuestionsAsked != 1 {
		t.Errorf("questions_asked = %d, want 1 (carried over)", sess.Gate.QuestionsAsked)
	}
	if sess.Gate.Stage() != gate.StageAuthenticated {
		t.Errorf("stage = %q, want authenticated", sess.Gate.Stage())
	}

	// Unknown role falls back to the lowest member tier.
	id2 := uuid.New()
	if _, err := store.GetOrCreate(ctx, id2); err != nil {
		t.Fatalf("GetOrCreate() = %v", err)
	}
	sess2, err := store.Authenticate(ctx, id2, "x@example.com", roles.Tier("admiral"))
	if err != nil {
		t.Fatalf("Authenticate() = %v", err)
	}
	if sess2.Role != roles.TierInterested {
		t.Errorf("role = %q, want interested fallback", sess2.Role)
	}
}

func TestCaptureEmailAndTitle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	store := NewStore(db.Pool, log.NewNop())
	id := uuid.New()
	if _, err := store.GetOrCreate(ctx, id); err != nil {
		t.Fatalf("GetOrCreate() = %v", err)
	}

	if err := store.CaptureEmail(ctx, id, "lead@example.com"); err != nil {
		t.Fatalf("CaptureEmail() = %v", err)
	}
	sess, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if sess.Email != "lead@example.com" {
		t.Errorf("email = %q", sess.Email)
	}
	if sess.Gate.SignedIn {
		t.Error("email capture must not authenticate the session")
	}

	long := strings.Repeat("я", TitleMaxLength+20)
	if err := store.SetTitle(ctx, id, long); err != nil {
		t.Fatalf("SetTitle() = %v", err)
	}
	sess, err = store.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if got := len([]rune(sess.Title)); got != TitleMaxLength {
		t.Errorf("title length = %d runes, want %d", got, TitleMaxLength)
	}
	if !strings.HasSuffix(sess.Title, "...") {
		t.Errorf("truncated title should end with ellipsis: %q", sess.Title)
	}

	if err := store.CaptureEmail(ctx, uuid.New(), "x@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("CaptureEmail(unknown) = %v, want ErrNotFound", err)
	}
}
