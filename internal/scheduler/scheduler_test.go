package scheduler

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/quizforge/srs/internal/domain"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newCard(p *Params) domain.Card {
	c := domain.Card{ID: "card-1", OwnerID: "owner-1"}
	p.NewCardState(&c, t0)
	return c
}

func mustSchedule(t *testing.T, p *Params, c domain.Card, r domain.Rating, now time.Time) (domain.Card, domain.ReviewLog) {
	t.Helper()
	next, entry, err := p.Schedule(c, r, now)
	if err != nil {
		t.Fatalf("Schedule(%v): %v", r, err)
	}
	return next, entry
}

func TestNewCardState(t *testing.T) {
	p := DefaultParams()
	c := newCard(p)

	if c.Status != domain.Learning {
		t.Errorf("Status = %v, want learning", c.Status)
	}
	if c.IntervalDays != 1 {
		t.Errorf("IntervalDays = %d, want 1", c.IntervalDays)
	}
	if c.Repetitions != 0 {
		t.Errorf("Repetitions = %d, want 0", c.Repetitions)
	}
	if c.EaseFactor != 2.5 {
		t.Errorf("EaseFactor = %g, want 2.5", c.EaseFactor)
	}
	if !c.NextReviewAt.Equal(t0) {
		t.Errorf("NextReviewAt = %v, want creation time %v", c.NextReviewAt, t0)
	}
	if c.LastReviewedAt != nil {
		t.Errorf("LastReviewedAt = %v, want nil", c.LastReviewedAt)
	}
	if !c.Due(t0) {
		t.Error("new card should be immediately due")
	}
}

// New card rated good: interval 1 -> round(1*2.5) = 3, one repetition,
// graduates to reviewing.
func TestGoodFirstReview(t *testing.T) {
	p := DefaultParams()
	c, entry := mustSchedule(t, p, newCard(p), domain.Good, t0)

	if c.IntervalDays != 3 {
		t.Errorf("IntervalDays = %d, want 3", c.IntervalDays)
	}
	if c.Repetitions != 1 {
		t.Errorf("Repetitions = %d, want 1", c.Repetitions)
	}
	if c.EaseFactor != 2.5 {
		t.Errorf("EaseFactor = %g, want 2.5 (unchanged)", c.EaseFactor)
	}
	if c.Status != domain.Reviewing {
		t.Errorf("Status = %v, want reviewing", c.Status)
	}
	if want := t0.AddDate(0, 0, 3); !c.NextReviewAt.Equal(want) {
		t.Errorf("NextReviewAt = %v, want %v", c.NextReviewAt, want)
	}
	if entry.IntervalBefore != 1 || entry.IntervalAfter != 3 {
		t.Errorf("log intervals = %d -> %d, want 1 -> 3", entry.IntervalBefore, entry.IntervalAfter)
	}
	if entry.StatusAfter != domain.Reviewing {
		t.Errorf("log StatusAfter = %v, want reviewing", entry.StatusAfter)
	}
}

// Second good review: round(3*2.5) = 8.
func TestGoodSecondReview(t *testing.T) {
	p := DefaultParams()
	c, _ := mustSchedule(t, p, newCard(p), domain.Good, t0)
	c, _ = mustSchedule(t, p, c, domain.Good, t0.AddDate(0, 0, 3))

	if c.IntervalDays != 8 {
		t.Errorf("IntervalDays = %d, want 8", c.IntervalDays)
	}
	if c.Repetitions != 2 {
		t.Errorf("Repetitions = %d, want 2", c.Repetitions)
	}
	if c.Status != domain.Reviewing {
		t.Errorf("Status = %v, want reviewing", c.Status)
	}
}

// A card at interval 25, 5 repetitions, ease 2.5 rated good crosses both
// mastery thresholds: interval round(25*2.5)=63, reps 6, mastered.
func TestGoodReachesMastery(t *testing.T) {
	p := DefaultParams()
	last := t0
	c := domain.Card{
		ID: "card-1", Status: domain.Reviewing,
		IntervalDays: 25, Repetitions: 5, EaseFactor: 2.5,
		LastReviewedAt: &last, NextReviewAt: last.AddDate(0, 0, 25),
	}
	now := last.AddDate(0, 0, 25)
	c, _ = mustSchedule(t, p, c, domain.Good, now)

	if c.IntervalDays != 63 {
		t.Errorf("IntervalDays = %d, want 63", c.IntervalDays)
	}
	if c.Repetitions != 6 {
		t.Errorf("Repetitions = %d, want 6", c.Repetitions)
	}
	if c.Status != domain.Mastered {
		t.Errorf("Status = %v, want mastered", c.Status)
	}

	// Mastery is not sticky: again demotes straight back to learning.
	c, _ = mustSchedule(t, p, c, domain.Again, now.AddDate(0, 0, 63))
	if c.Status != domain.Learning {
		t.Errorf("Status after again = %v, want learning", c.Status)
	}
	if c.IntervalDays != 1 || c.Repetitions != 0 {
		t.Errorf("after again: interval %d reps %d, want 1 and 0", c.IntervalDays, c.Repetitions)
	}
	if c.EaseFactor != 2.3 {
		t.Errorf("EaseFactor = %g, want 2.3", c.EaseFactor)
	}
}

// Mastery needs repetitions >= 5 AND interval >= 21 after the update.
func TestMasteryBoundaries(t *testing.T) {
	p := DefaultParams()
	tests := []struct {
		name        string
		repsAfter   int
		ivlAfter    int
		wantMastery bool
	}{
		{"4 reps 20 days", 4, 20, false},
		{"5 reps 20 days", 5, 20, false},
		{"4 reps 21 days", 4, 21, false},
		{"5 reps 21 days", 5, 21, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.successStatus(domain.Card{Repetitions: tt.repsAfter, IntervalDays: tt.ivlAfter})
			want := domain.Reviewing
			if tt.wantMastery {
				want = domain.Mastered
			}
			if got != want {
				t.Errorf("successStatus(reps=%d, ivl=%d) = %v, want %v", tt.repsAfter, tt.ivlAfter, got, want)
			}
		})
	}
}

func TestAgainResets(t *testing.T) {
	p := DefaultParams()
	last := t0
	starts := []domain.Card{
		{ID: "a", Status: domain.Learning, IntervalDays: 1, Repetitions: 0, EaseFactor: 2.5,
			NextReviewAt: t0},
		{ID: "b", Status: domain.Reviewing, IntervalDays: 14, Repetitions: 3, EaseFactor: 1.9,
			LastReviewedAt: &last, NextReviewAt: last.AddDate(0, 0, 14)},
		{ID: "c", Status: domain.Mastered, IntervalDays: 90, Repetitions: 11, EaseFactor: 3.0,
			LastReviewedAt: &last, NextReviewAt: last.AddDate(0, 0, 90)},
	}
	for _, start := range starts {
		c, _ := mustSchedule(t, p, start, domain.Again, t0.AddDate(0, 0, 120))
		if c.Repetitions != 0 {
			t.Errorf("card %s: Repetitions = %d, want 0", start.ID, c.Repetitions)
		}
		if c.IntervalDays != 1 {
			t.Errorf("card %s: IntervalDays = %d, want 1", start.ID, c.IntervalDays)
		}
		if c.Status != domain.Learning {
			t.Errorf("card %s: Status = %v, want learning", start.ID, c.Status)
		}
	}
}

func TestHard(t *testing.T) {
	p := DefaultParams()

	t.Run("short interval stays learning", func(t *testing.T) {
		c, _ := mustSchedule(t, p, newCard(p), domain.Hard, t0)
		if c.IntervalDays != 1 { // round(1 * 1.2) = 1
			t.Errorf("IntervalDays = %d, want 1", c.IntervalDays)
		}
		if c.Repetitions != 0 {
			t.Errorf("Repetitions = %d, want 0 (unchanged)", c.Repetitions)
		}
		if c.EaseFactor != 2.35 {
			t.Errorf("EaseFactor = %g, want 2.35", c.EaseFactor)
		}
		if c.Status != domain.Learning {
			t.Errorf("Status = %v, want learning", c.Status)
		}
	})

	t.Run("long interval moves to reviewing", func(t *testing.T) {
		last := t0
		c := domain.Card{
			ID: "h", Status: domain.Reviewing, IntervalDays: 20, Repetitions: 4, EaseFactor: 2.0,
			LastReviewedAt: &last, NextReviewAt: last.AddDate(0, 0, 20),
		}
		c, _ = mustSchedule(t, p, c, domain.Hard, last.AddDate(0, 0, 20))
		if c.IntervalDays != 24 { // round(20 * 1.2)
			t.Errorf("IntervalDays = %d, want 24", c.IntervalDays)
		}
		if c.Status != domain.Reviewing { // 24 >= 21
			t.Errorf("Status = %v, want reviewing", c.Status)
		}
	})
}

func TestEasy(t *testing.T) {
	p := DefaultParams()
	c, _ := mustSchedule(t, p, newCard(p), domain.Easy, t0)

	if c.IntervalDays != 3 { // round(1 * 2.5 * 1.3) = round(3.25)
		t.Errorf("IntervalDays = %d, want 3", c.IntervalDays)
	}
	if c.EaseFactor != 2.65 {
		t.Errorf("EaseFactor = %g, want 2.65", c.EaseFactor)
	}
	if c.Repetitions != 1 {
		t.Errorf("Repetitions = %d, want 1", c.Repetitions)
	}
	if c.Status != domain.Reviewing {
		t.Errorf("Status = %v, want reviewing", c.Status)
	}
}

func TestEaseFactorBounds(t *testing.T) {
	p := DefaultParams()

	t.Run("floor at 1.3", func(t *testing.T) {
		c := newCard(p)
		now := t0
		for i := 0; i < 20; i++ {
			prev := c.EaseFactor
			c, _ = mustSchedule(t, p, c, domain.Again, now)
			if c.EaseFactor > prev {
				t.Fatalf("ease increased on again: %g -> %g", prev, c.EaseFactor)
			}
			now = now.AddDate(0, 0, 1)
		}
		if c.EaseFactor != p.MinEase {
			t.Errorf("EaseFactor = %g, want floor %g", c.EaseFactor, p.MinEase)
		}
	})

	t.Run("ceiling at 3.0", func(t *testing.T) {
		c := newCard(p)
		now := t0
		for i := 0; i < 20; i++ {
			c, _ = mustSchedule(t, p, c, domain.Easy, now)
			now = c.NextReviewAt
		}
		if c.EaseFactor != p.MaxEase {
			t.Errorf("EaseFactor = %g, want ceiling %g", c.EaseFactor, p.MaxEase)
		}
	})
}

func TestSuccessGrowsInterval(t *testing.T) {
	p := DefaultParams()
	for _, r := range []domain.Rating{domain.Good, domain.Easy} {
		c := newCard(p)
		now := t0
		for i := 0; i < 10; i++ {
			prev := c.IntervalDays
			c, _ = mustSchedule(t, p, c, r, now)
			if c.IntervalDays <= prev {
				t.Fatalf("%v did not grow interval: %d -> %d", r, prev, c.IntervalDays)
			}
			now = c.NextReviewAt
		}
	}
}

func TestInvalidRating(t *testing.T) {
	p := DefaultParams()
	for _, r := range []domain.Rating{0, 5, -1} {
		_, _, err := p.Schedule(newCard(p), r, t0)
		if !errors.Is(err, domain.ErrInvalidRating) {
			t.Errorf("Schedule(rating=%d) error = %v, want ErrInvalidRating", int(r), err)
		}
	}
}

func TestCorruptStateRejected(t *testing.T) {
	p := DefaultParams()
	last := t0
	tests := []struct {
		name string
		card domain.Card
	}{
		{"zero interval", domain.Card{Status: domain.Learning, IntervalDays: 0, EaseFactor: 2.5, NextReviewAt: t0}},
		{"ease below floor", domain.Card{Status: domain.Learning, IntervalDays: 1, EaseFactor: 1.1, NextReviewAt: t0}},
		{"ease above ceiling", domain.Card{Status: domain.Learning, IntervalDays: 1, EaseFactor: 3.4, NextReviewAt: t0}},
		{"negative repetitions", domain.Card{Status: domain.Learning, IntervalDays: 1, Repetitions: -2, EaseFactor: 2.5, NextReviewAt: t0}},
		{"unknown status", domain.Card{Status: 9, IntervalDays: 1, EaseFactor: 2.5, NextReviewAt: t0}},
		{"premature mastery", domain.Card{Status: domain.Mastered, IntervalDays: 5, Repetitions: 2, EaseFactor: 2.5,
			LastReviewedAt: &last, NextReviewAt: last.AddDate(0, 0, 5)}},
		{"due date drift", domain.Card{Status: domain.Reviewing, IntervalDays: 4, Repetitions: 1, EaseFactor: 2.5,
			LastReviewedAt: &last, NextReviewAt: last.AddDate(0, 0, 9)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := p.Schedule(tt.card, domain.Good, t0.AddDate(0, 0, 30))
			if !errors.Is(err, domain.ErrInvariantViolation) {
				t.Errorf("error = %v, want ErrInvariantViolation", err)
			}
		})
	}
}

// Any sequence of valid reviews preserves the scheduling invariants.
func TestInvariantsHoldUnderRandomSequences(t *testing.T) {
	p := DefaultParams()
	rng := rand.New(rand.NewSource(42))
	ratings := []domain.Rating{domain.Again, domain.Hard, domain.Good, domain.Easy}

	for run := 0; run < 50; run++ {
		c := newCard(p)
		now := t0
		for step := 0; step < 40; step++ {
			r := ratings[rng.Intn(len(ratings))]
			next, entry, err := p.Schedule(c, r, now)
			if err != nil {
				t.Fatalf("run %d step %d %v: %v", run, step, r, err)
			}
			if err := p.CheckInvariants(next); err != nil {
				t.Fatalf("run %d step %d %v: output violates invariants: %v", run, step, r, err)
			}
			if entry.IntervalBefore != c.IntervalDays || entry.IntervalAfter != next.IntervalDays {
				t.Fatalf("run %d step %d: log intervals %d/%d do not match states %d/%d",
					run, step, entry.IntervalBefore, entry.IntervalAfter, c.IntervalDays, next.IntervalDays)
			}
			if next.LastReviewedAt == nil || !next.LastReviewedAt.Equal(now) {
				t.Fatalf("run %d step %d: LastReviewedAt not set to review time", run, step)
			}
			c = next
			// Review somewhere between on time and a few days late.
			now = c.NextReviewAt.AddDate(0, 0, rng.Intn(3))
		}
	}
}

func TestInputCardNotMutated(t *testing.T) {
	p := DefaultParams()
	orig := newCard(p)
	if _, _, err := p.Schedule(orig, domain.Good, t0); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if orig.IntervalDays != 1 || orig.Repetitions != 0 || orig.EaseFactor != 2.5 ||
		orig.Status != domain.Learning || orig.LastReviewedAt != nil {
		t.Errorf("Schedule mutated its input card: %+v", orig)
	}
}
