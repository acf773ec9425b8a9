package domain

import "errors"

// Sentinel errors for the engine. Check with errors.Is.
var (
	// ErrNotFound covers both unknown ids and ownership mismatches so that
	// a non-owner cannot learn whether a card or session exists.
	ErrNotFound = errors.New("srs: not found")

	// ErrInvalidRating is returned for a rating outside again..easy.
	ErrInvalidRating = errors.New("srs: invalid rating")

	// ErrInvariantViolation is returned when stored card state fails the
	// scheduling invariants. Corrupt state is surfaced, never repaired.
	ErrInvariantViolation = errors.New("srs: card state invariant violated")

	// ErrStorage wraps persistence-layer failures.
	ErrStorage = errors.New("srs: storage failure")
)
