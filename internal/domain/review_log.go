package domain

import "time"

// ReviewLog records a single review event for a card. Entries are
// append-only and immutable once written; they carry before/after
// snapshots for audit and for the quality-distribution analytics
// consumed outside the engine.
type ReviewLog struct {
	CardID           string    `json:"cardId"`
	Timestamp        time.Time `json:"timestamp"`
	Rating           Rating    `json:"rating"`
	IntervalBefore   int       `json:"intervalBefore"`
	IntervalAfter    int       `json:"intervalAfter"`
	EaseFactorBefore float64   `json:"easeFactorBefore"`
	EaseFactorAfter  float64   `json:"easeFactorAfter"`
	StatusAfter      Status    `json:"statusAfter"`
}
