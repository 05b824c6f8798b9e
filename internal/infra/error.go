package infra

import (
	"errors"

	"billiard-hall/internal/pkg/errs"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type RepositoryErrorKind string

type RepositoryError struct {
	Kind       RepositoryErrorKind
	Constraint string
	msg        string
	err        error // wrapped low-level error
}

func (e RepositoryError) Error() string {
	if e.err != nil {
		return string(e.Kind) + ": " + e.msg + ": " + e.err.Error()
	}
	return string(e.Kind) + ": " + e.msg
}

func (e RepositoryError) Unwrap() error {
	return e.err
}

// WrapRepoErr classifies a driver error. Lock timeouts and serialization
// failures are marked as contention so callers may retry them.
func WrapRepoErr(msg string, err error) error {
	kind, constraint := classify(err)
	if err != nil {
		err = errs.Wrap(err, msg)
	}
	wrapped := RepositoryError{Kind: kind, Constraint: constraint, msg: msg, err: err}
	switch kind {
	case KindLockTimeout, KindSerialization:
		return errs.MarkKind(wrapped, errs.KindContention)
	default:
		return wrapped
	}
}

func IsKind(err error, kind RepositoryErrorKind) bool {
	var e RepositoryError
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsConstraint reports whether err was raised by the named constraint.
func IsConstraint(err error, constraint string) bool {
	var e RepositoryError
	if errors.As(err, &e) {
		return e.Constraint == constraint
	}
	return false
}

func classify(err error) (RepositoryErrorKind, string) {
	if errors.Is(err, pgx.ErrNoRows) {
		return KindNotFound, ""
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return KindDBFailure, ""
	}
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return KindDuplicateKey, pgErr.ConstraintName
	case pgerrcode.ExclusionViolation:
		return KindExclusionViolated, pgErr.ConstraintName
	case pgerrcode.ForeignKeyViolation:
		return KindForeignKeyViolated, pgErr.ConstraintName
	case pgerrcode.LockNotAvailable:
		return KindLockTimeout, ""
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected:
		return KindSerialization, ""
	default:
		return KindDBFailure, ""
	}
}

// Infrastructure-specific error kinds
const (
	KindNotFound           RepositoryErrorKind = "NOT_FOUND"
	KindDBFailure          RepositoryErrorKind = "DB_FAILURE"
	KindDuplicateKey       RepositoryErrorKind = "DUPLICATE_KEY"
	KindExclusionViolated  RepositoryErrorKind = "EXCLUSION_VIOLATED"
	KindForeignKeyViolated RepositoryErrorKind = "FOREIGN_KEY_VIOLATED"
	KindLockTimeout        RepositoryErrorKind = "LOCK_TIMEOUT"
	KindSerialization      RepositoryErrorKind = "SERIALIZATION_FAILURE"
)
