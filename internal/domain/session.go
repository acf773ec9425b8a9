package domain

import "time"

// Session is a named batch of cards created together, e.g. from one
// upload. It exists for scoping due-queries and bulk deletion; it plays
// no part in scheduling math.
type Session struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	CardIDs   []string  `json:"cardIds,omitempty"`
}

// Stats is the on-demand aggregate over one owner's cards. It is
// recomputed from the card store on every call rather than kept as
// counters that could drift.
type Stats struct {
	Total     int `json:"total"`
	Learning  int `json:"learning"`
	Reviewing int `json:"reviewing"`
	Mastered  int `json:"mastered"`
	DueToday  int `json:"dueToday"`
}
