package sessions

import "errors"

var (
	// ErrEmptyBucket means Build was called with no events. Group never
	// produces an empty bucket, so this indicates a caller bug.
	ErrEmptyBucket = errors.New("cannot build a session from zero events")
	// ErrNoEvents means the requested window holds no raw events.
	ErrNoEvents = errors.New("no events to reconstruct")
	// ErrDomainNotFound means the domain is not registered.
	ErrDomainNotFound = errors.New("domain not found")
	// ErrConflict means another materialization overlaps the request and its
	// sessions could not be returned instead.
	ErrConflict = errors.New("sessions already materialized for an overlapping range")
	// ErrInvalidRange means start is after end.
	ErrInvalidRange = errors.New("start must not be after end")
)
