package roster

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("unique constraint violated")
)

// ConflictError is returned by a Repository when a write violates a uniqueness constraint.
// Field names the conflicting column (eg. "username").
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Field, e.Value)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

func NewConflictError(field, value string) error {
	return &ConflictError{Field: field, Value: value}
}

// IsConflict reports whether err signals a uniqueness violation.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// Repository is the keyed relational store holding the roster.
// Every implementation returns ErrNotFound for missing rows and a *ConflictError on uniqueness violations.
type Repository interface {
	// QueryIdentities returns every Identity of role, ordered by last then first name.
	QueryIdentities(ctx context.Context, role Role) ([]Identity, error)
	GetIdentity(ctx context.Context, filter GetFilter) (Identity, error)
	CreateIdentity(ctx context.Context, ident Identity) (Identity, error)
	UpdateIdentity(ctx context.Context, ident Identity) (Identity, error)

	GetLoginAccount(ctx context.Context, identityID int64) (LoginAccount, error)
	CreateLoginAccount(ctx context.Context, acct LoginAccount) (LoginAccount, error)

	// EnsureGradeAggregate inserts an empty GradeAggregate for identityID if none exists.
	EnsureGradeAggregate(ctx context.Context, identityID int64) error
	// SetAttendancePresent overwrites the presence total, creating the GradeAggregate if needed.
	SetAttendancePresent(ctx context.Context, identityID int64, count int) error
	GetGradeAggregate(ctx context.Context, identityID int64) (GradeAggregate, error)

	GetTrainingDay(ctx context.Context, id int64) (TrainingDay, error)
	// UpsertAttendance inserts or updates the record keyed by (TrainingDayID, IdentityID).
	UpsertAttendance(ctx context.Context, rec AttendanceRecord) (AttendanceRecord, error)
	CountAttendance(ctx context.Context, identityID int64, statuses ...AttendanceStatus) (int, error)
}
