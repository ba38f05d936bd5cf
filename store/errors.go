package store

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a unique or exclusion
	// constraint.
	ErrDuplicate = errors.New("record conflicts with an existing one")
)

const (
	pqUniqueViolation    = pq.ErrorCode("23505")
	pqExclusionViolation = pq.ErrorCode("23P01")
)

func isConstraintViolation(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == pqUniqueViolation || pqErr.Code == pqExclusionViolation
}
