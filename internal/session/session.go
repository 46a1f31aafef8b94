// Package session persists caller profiles and their gate state in
// PostgreSQL. A session is identified by the uid cookie; it carries the
// caller's role, authentication status and remaining guest quota.
//
// Quota updates go through ConsumeQuota, which serializes per session
// with a row lock so concurrent requests from one session never apply
// out of order.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/daosail/compass/internal/gate"
	"github.com/daosail/compass/internal/roles"
)

// TitleMaxLength is the maximum session title length in runes.
const TitleMaxLength = 50

// Sentinel errors, checked with errors.Is.
var (
	// ErrNotFound indicates the session does not exist.
	ErrNotFound = errors.New("session not found")
)

// Session is one caller's persistent state.
type Session struct {
	ID        uuid.UUID
	Email     string
	Role      roles.Tier
	Title     string
	Language  string
	Gate      gate.State
	CreatedAt time.Time
	UpdatedAt time.Time
}
