// Package scheduler implements the spaced-repetition update rule: given a
// card's scheduling state and a rating, it computes the next state and a
// review-log entry. It is pure — no storage, no clock reads, no knowledge
// of owners or sessions.
package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/quizforge/srs/internal/domain"
)

// Params holds the tunable constants of the update rule. The defaults are
// deliberately configuration, not frozen law; deployments may retune them.
type Params struct {
	InitialEase float64 `koanf:"initial_ease" validate:"gte=1.3,lte=3.0"`
	MinEase     float64 `koanf:"min_ease" validate:"gt=0"`
	MaxEase     float64 `koanf:"max_ease" validate:"gtefield=MinEase"`

	AgainPenalty float64 `koanf:"again_penalty" validate:"gte=0"` // ease drop on again
	HardPenalty  float64 `koanf:"hard_penalty" validate:"gte=0"`  // ease drop on hard
	EasyReward   float64 `koanf:"easy_reward" validate:"gte=0"`   // ease gain on easy

	HardMultiplier float64 `koanf:"hard_multiplier" validate:"gte=1"` // interval growth on hard
	EasyBonus      float64 `koanf:"easy_bonus" validate:"gte=1"`      // extra interval growth on easy

	// Mastery requires MasterReps consecutive successes at an interval of
	// at least MasterIntervalDays.
	MasterReps         int `koanf:"master_reps" validate:"gte=1"`
	MasterIntervalDays int `koanf:"master_interval_days" validate:"gte=1"`
}

// DefaultParams returns the stock constants: 2.5 initial ease bounded to
// [1.3, 3.0], and mastery at 5 repetitions with a 21-day interval.
func DefaultParams() *Params {
	return &Params{
		InitialEase:        2.5,
		MinEase:            1.3,
		MaxEase:            3.0,
		AgainPenalty:       0.20,
		HardPenalty:        0.15,
		EasyReward:         0.15,
		HardMultiplier:     1.2,
		EasyBonus:          1.3,
		MasterReps:         5,
		MasterIntervalDays: 21,
	}
}

// NewCardState initializes the scheduling fields of a freshly created card
// in place: learning, one-day interval, zero repetitions, initial ease, and
// immediately due.
func (p *Params) NewCardState(c *domain.Card, now time.Time) {
	c.Status = domain.Learning
	c.IntervalDays = 1
	c.Repetitions = 0
	c.EaseFactor = p.InitialEase
	c.NextReviewAt = now
	c.LastReviewedAt = nil
	c.CreatedAt = now
}

// Schedule applies one review to the card and returns the next state plus
// the log entry for it. The input card is not mutated.
//
// An out-of-range rating returns domain.ErrInvalidRating; a card that fails
// the scheduling invariants on entry returns domain.ErrInvariantViolation.
// Corrupt state is never silently healed.
func (p *Params) Schedule(card domain.Card, rating domain.Rating, now time.Time) (domain.Card, domain.ReviewLog, error) {
	if !rating.IsValid() {
		return domain.Card{}, domain.ReviewLog{}, fmt.Errorf("%w: %d", domain.ErrInvalidRating, int(rating))
	}
	if err := p.CheckInvariants(card); err != nil {
		return domain.Card{}, domain.ReviewLog{}, err
	}

	next := card
	switch rating {
	case domain.Again:
		next.Repetitions = 0
		next.IntervalDays = 1
		next.EaseFactor = math.Max(p.MinEase, card.EaseFactor-p.AgainPenalty)
		next.Status = domain.Learning

	case domain.Hard:
		next.IntervalDays = growInterval(card.IntervalDays, p.HardMultiplier)
		next.EaseFactor = math.Max(p.MinEase, card.EaseFactor-p.HardPenalty)
		if next.IntervalDays < p.MasterIntervalDays {
			next.Status = domain.Learning
		} else {
			next.Status = domain.Reviewing
		}

	case domain.Good:
		next.Repetitions = card.Repetitions + 1
		next.IntervalDays = growInterval(card.IntervalDays, card.EaseFactor)
		next.Status = p.successStatus(next)

	case domain.Easy:
		next.Repetitions = card.Repetitions + 1
		next.IntervalDays = growInterval(card.IntervalDays, card.EaseFactor*p.EasyBonus)
		next.EaseFactor = math.Min(p.MaxEase, card.EaseFactor+p.EasyReward)
		next.Status = p.successStatus(next)
	}

	next.LastReviewedAt = &now
	next.NextReviewAt = now.AddDate(0, 0, next.IntervalDays)

	entry := domain.ReviewLog{
		CardID:           card.ID,
		Timestamp:        now,
		Rating:           rating,
		IntervalBefore:   card.IntervalDays,
		IntervalAfter:    next.IntervalDays,
		EaseFactorBefore: card.EaseFactor,
		EaseFactorAfter:  next.EaseFactor,
		StatusAfter:      next.Status,
	}
	return next, entry, nil
}

// successStatus decides between reviewing and mastered after a good or
// easy review. Mastery is re-evaluated on every review, never sticky.
func (p *Params) successStatus(c domain.Card) domain.Status {
	if c.Repetitions >= p.MasterReps && c.IntervalDays >= p.MasterIntervalDays {
		return domain.Mastered
	}
	return domain.Reviewing
}

// growInterval rounds interval * factor to the nearest whole day, floor 1.
func growInterval(days int, factor float64) int {
	grown := int(math.Round(float64(days) * factor))
	if grown < 1 {
		return 1
	}
	return grown
}

// CheckInvariants verifies the five scheduling invariants a stored card
// must satisfy before it may be reviewed.
func (p *Params) CheckInvariants(c domain.Card) error {
	switch {
	case c.IntervalDays < 1:
		return fmt.Errorf("%w: interval %d < 1", domain.ErrInvariantViolation, c.IntervalDays)
	case c.EaseFactor < p.MinEase || c.EaseFactor > p.MaxEase:
		return fmt.Errorf("%w: ease factor %g outside [%g, %g]",
			domain.ErrInvariantViolation, c.EaseFactor, p.MinEase, p.MaxEase)
	case c.Repetitions < 0:
		return fmt.Errorf("%w: repetitions %d < 0", domain.ErrInvariantViolation, c.Repetitions)
	case !c.Status.IsValid():
		return fmt.Errorf("%w: unknown status %d", domain.ErrInvariantViolation, int(c.Status))
	case c.Status == domain.Mastered && (c.Repetitions < p.MasterReps || c.IntervalDays < p.MasterIntervalDays):
		return fmt.Errorf("%w: mastered with repetitions %d and interval %d (need %d and %d)",
			domain.ErrInvariantViolation, c.Repetitions, c.IntervalDays, p.MasterReps, p.MasterIntervalDays)
	}
	if c.LastReviewedAt != nil {
		want := c.LastReviewedAt.AddDate(0, 0, c.IntervalDays)
		if !c.NextReviewAt.Equal(want) {
			return fmt.Errorf("%w: next review %s != last review + %d days (%s)",
				domain.ErrInvariantViolation, c.NextReviewAt.Format(time.RFC3339), c.IntervalDays, want.Format(time.RFC3339))
		}
	}
	return nil
}
