package domain

import "time"

// Difficulty is the author's one-off estimate of how hard a card is.
// It is set at creation and never changed by the scheduler; the engine
// treats it as informational only.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// IsValid reports whether d is one of the three authored difficulties.
func (d Difficulty) IsValid() bool {
	return d == DifficultyEasy || d == DifficultyMedium || d == DifficultyHard
}

// Card is the persisted scheduling state for one flashcard.
//
// Front, Back, Hint, Difficulty, Bookmarked and Tags are opaque to the
// scheduler. Status, IntervalDays, Repetitions, EaseFactor, NextReviewAt
// and LastReviewedAt are mutated only through a review.
type Card struct {
	ID         string     `json:"id"`
	OwnerID    string     `json:"ownerId"`
	SessionID  string     `json:"sessionId"`
	Front      string     `json:"front"`
	Back       string     `json:"back"`
	Hint       string     `json:"hint,omitempty"`
	Difficulty Difficulty `json:"difficulty"`

	Status         Status     `json:"status"`
	IntervalDays   int        `json:"intervalDays"`
	Repetitions    int        `json:"repetitions"`
	EaseFactor     float64    `json:"easeFactor"`
	NextReviewAt   time.Time  `json:"nextReviewAt"`
	LastReviewedAt *time.Time `json:"lastReviewedAt"` // nil before first review.

	Bookmarked bool      `json:"bookmarked"`
	Tags       []string  `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Due reports whether the card is due for review as of now.
func (c Card) Due(now time.Time) bool {
	return !c.NextReviewAt.After(now)
}
