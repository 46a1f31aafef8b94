package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/daosail/compass/internal/gate"
	"github.com/daosail/compass/internal/log"
	"github.com/daosail/compass/internal/roles"
)

// DB is the subset of pgx operations the store needs. Satisfied by
// *pgxpool.Pool.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Store manages session persistence. Safe for concurrent use.
type Store struct {
	db         DB
	logger     log.Logger
	guestQuota int
}

// NewStore creates a Store.
func NewStore(db DB, logger log.Logger) *Store {
	return &Store{db: db, logger: logger, guestQuota: gate.DefaultGuestQuota}
}

// SetGuestQuota overrides the initial answer quota for newly created
// guest sessions. Zero or negative keeps the default. Call before the
// store is shared across goroutines.
func (s *Store) SetGuestQuota(n int) {
	if n > 0 {
		s.guestQuota = n
	}
}

const sessionColumns = `id, COALESCE(email, ''), role, COALESCE(title, ''), language,
	responses_left, questions_asked, authenticated, created_at, updated_at`

// GetOrCreate returns the session for id, creating a fresh guest
// session on first sight.
func (s *Store) GetOrCreate(ctx context.Context, id uuid.UUID) (*Session, error) {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sessions (id, role, responses_left)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING`,
		id, string(roles.TierPublic), s.guestQuota)
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Get returns the session for id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	row := s.db.QueryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// ConsumeQuota records one answered question and returns the new gate
// state. The row lock serializes concurrent consumes for one session,
// so the counter can never go below zero or apply out of order.
func (s *Store) ConsumeQuota(ctx context.Context, id uuid.UUID) (gate.State, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return gate.State{}, fmt.Errorf("begin consume: %w", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			s.logger.Debug("consume rollback", "error", err)
		}
	}()

	var st gate.State
	err = tx.QueryRow(ctx, `
		SELECT responses_left, questions_asked, authenticated
		FROM sessions WHERE id = $1 FOR UPDATE`, id).
		Scan(&st.ResponsesLeft, &st.QuestionsAsked, &st.SignedIn)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return gate.State{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
		}
		return gate.State{}, fmt.Errorf("lock session %s: %w", id, err)
	}

	next := st.Consume()
	_, err = tx.Exec(ctx, `
		UPDATE sessions
		SET responses_left = $2, questions_asked = $3, updated_at = now()
		WHERE id = $1`,
		id, next.ResponsesLeft, next.QuestionsAsked)
	if err != nil {
		return gate.State{}, fmt.Errorf("update quota for %s: %w", id, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return gate.State{}, fmt.Errorf("commit consume: %w", err)
	}

	s.logger.Debug("quota consumed",
		"session_id", id, "responses_left", next.ResponsesLeft, "stage", next.Stage())
	return next, nil
}

// Authenticate marks the session as signed in with the given email and
// role. The guest counters stay in place for statistics.
func (s *Store) Authenticate(ctx context.Context, id uuid.UUID, email string, role roles.Tier) (*Session, error) {
	if !roles.Valid(role) {
		role = roles.TierInterested
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE sessions
		SET authenticated = TRUE, email = $2, role = $3, updated_at = now()
		WHERE id = $1`,
		id, email, string(role))
	if err != nil {
		return nil, fmt.Errorf("authenticate session %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}

	s.logger.Info("session authenticated", "session_id", id, "role", role)
	return s.Get(ctx, id)
}

// CaptureEmail stores the email collected by the soft gate prompt
// without authenticating the session.
func (s *Store) CaptureEmail(ctx context.Context, id uuid.UUID, email string) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE sessions SET email = $2, updated_at = now() WHERE id = $1`,
		id, email)
	if err != nil {
		return fmt.Errorf("capture email for %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetTitle stores the conversation title, truncated to TitleMaxLength.
func (s *Store) SetTitle(ctx context.Context, id uuid.UUID, title string) error {
	runes := []rune(title)
	if len(runes) > TitleMaxLength {
		title = string(runes[:TitleMaxLength-3]) + "..."
	}
	_, err := s.db.Exec(ctx, `
		UPDATE sessions SET title = $2, updated_at = now() WHERE id = $1`,
		id, title)
	if err != nil {
		return fmt.Errorf("set title for %s: %w", id, err)
	}
	return nil
}

// SetLanguage stores the caller's preferred language.
func (s *Store) SetLanguage(ctx context.Context, id uuid.UUID, language string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE sessions SET language = $2, updated_at = now() WHERE id = $1`,
		id, language)
	if err != nil {
		return fmt.Errorf("set language for %s: %w", id, err)
	}
	return nil
}

// QuestionsAsked returns the total question count across all sessions.
func (s *Store) QuestionsAsked(ctx context.Context) (int, error) {
	var total int
	err := s.db.QueryRow(ctx, `SELECT COALESCE(SUM(questions_asked), 0) FROM sessions`).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum questions asked: %w", err)
	}
	return total, nil
}

func scanSession(row pgx.Row) (*Session, error) {
	var sess Session
	var role string
	err := row.Scan(&sess.ID, &sess.Email, &role, &sess.Title, &sess.Language,
		&sess.Gate.ResponsesLeft, &sess.Gate.QuestionsAsked, &sess.Gate.SignedIn,
		&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	sess.Role = roles.Tier(role)
	return &sess, nil
}
