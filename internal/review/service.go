// Package review orchestrates the engine's operations: it loads cards,
// runs the scheduler, persists the outcome, and answers due-card and
// stats queries. Ownership is enforced here, never in the scheduler.
package review

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quizforge/srs/internal/domain"
	"github.com/quizforge/srs/internal/scheduler"
	"github.com/quizforge/srs/internal/storage"
)

// Store is the persistence surface the service needs. *storage.DB
// implements it; tests may substitute their own.
type Store interface {
	GetCard(ownerID, cardID string) (domain.Card, error)
	ApplyReview(card domain.Card, entry domain.ReviewLog) error
	DueCards(ownerID string, now time.Time, q storage.DueQuery) ([]domain.Card, error)
	CountDue(ownerID string, now time.Time, sessionID string) (int, error)
	Stats(ownerID string, now time.Time) (domain.Stats, error)
	CreateSession(session domain.Session, cards []domain.Card) error
	GetSession(ownerID, sessionID string) (domain.Session, error)
	DeleteSession(ownerID, sessionID string) (int, error)
	ReviewLogs(ownerID, cardID string) ([]domain.ReviewLog, error)
	SetBookmark(ownerID, cardID string, bookmarked bool) (domain.Card, error)
}

// Service wires the scheduler to the store.
type Service struct {
	store  Store
	params *scheduler.Params

	// Now supplies the clock; tests override it.
	Now func() time.Time
}

// NewService creates a Service. A nil params uses the defaults.
func NewService(store Store, params *scheduler.Params) *Service {
	if params == nil {
		params = scheduler.DefaultParams()
	}
	return &Service{
		store:  store,
		params: params,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// ReviewResult is the outcome of one review: the updated card plus the due
// counts external XP/quest logic reacts to without a second round trip.
type ReviewResult struct {
	Card            domain.Card `json:"card"`
	SessionDueCount int         `json:"sessionDueCount"`
	GlobalDueCount  int         `json:"globalDueCount"`
}

// ReviewCard applies one rating to the owner's card. Each call is a
// distinct review event; repeated submissions are not deduplicated.
func (s *Service) ReviewCard(ownerID, cardID string, rating domain.Rating) (ReviewResult, error) {
	card, err := s.store.GetCard(ownerID, cardID)
	if err != nil {
		return ReviewResult{}, err
	}

	now := s.Now()
	next, entry, err := s.params.Schedule(card, rating, now)
	if err != nil {
		return ReviewResult{}, err
	}

	if err := s.store.ApplyReview(next, entry); err != nil {
		return ReviewResult{}, fmt.Errorf("review card %s rated %s: %w", cardID, rating, err)
	}

	sessionDue, err := s.store.CountDue(ownerID, now, next.SessionID)
	if err != nil {
		return ReviewResult{}, fmt.Errorf("review card %s rated %s: %w", cardID, rating, err)
	}
	globalDue, err := s.store.CountDue(ownerID, now, "")
	if err != nil {
		return ReviewResult{}, fmt.Errorf("review card %s rated %s: %w", cardID, rating, err)
	}

	slog.Debug("card reviewed",
		"card", cardID,
		"rating", rating.String(),
		"status", next.Status.String(),
		"interval_days", next.IntervalDays,
	)

	return ReviewResult{Card: next, SessionDueCount: sessionDue, GlobalDueCount: globalDue}, nil
}

// DueCards returns the owner's due cards as of now, optionally scoped to a
// session and capped at a limit.
func (s *Service) DueCards(ownerID string, q storage.DueQuery) ([]domain.Card, error) {
	return s.store.DueCards(ownerID, s.Now(), q)
}

// Stats returns the owner's aggregate card counts, recomputed on demand.
func (s *Service) Stats(ownerID string) (domain.Stats, error) {
	return s.store.Stats(ownerID, s.Now())
}

// History returns the card's review-log entries, newest first.
func (s *Service) History(ownerID, cardID string) ([]domain.ReviewLog, error) {
	return s.store.ReviewLogs(ownerID, cardID)
}

// SetBookmark toggles the card's bookmark flag.
func (s *Service) SetBookmark(ownerID, cardID string, bookmarked bool) (domain.Card, error) {
	return s.store.SetBookmark(ownerID, cardID, bookmarked)
}

// CardSpec is the authored content for one card in a new session.
type CardSpec struct {
	Front      string            `json:"front" validate:"required"`
	Back       string            `json:"back" validate:"required"`
	Hint       string            `json:"hint"`
	Difficulty domain.Difficulty `json:"difficulty" validate:"oneof=easy medium hard"`
	Tags       []string          `json:"tags"`
}

// CreateSession creates a session and its initial batch of cards, each
// starting in the learning state and immediately due.
func (s *Service) CreateSession(ownerID, name string, specs []CardSpec) (domain.Session, error) {
	now := s.Now()
	session := domain.Session{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Name:      name,
		CreatedAt: now,
	}

	cards := make([]domain.Card, 0, len(specs))
	for _, spec := range specs {
		c := domain.Card{
			ID:         uuid.NewString(),
			OwnerID:    ownerID,
			SessionID:  session.ID,
			Front:      spec.Front,
			Back:       spec.Back,
			Hint:       spec.Hint,
			Difficulty: spec.Difficulty,
			Tags:       spec.Tags,
		}
		s.params.NewCardState(&c, now)
		cards = append(cards, c)
		session.CardIDs = append(session.CardIDs, c.ID)
	}

	if err := s.store.CreateSession(session, cards); err != nil {
		return domain.Session{}, err
	}

	slog.Info("session created", "session", session.ID, "owner", ownerID, "cards", len(cards))
	return session, nil
}

// DeleteSession removes the session, its cards and their review logs, and
// returns the number of cards deleted.
func (s *Service) DeleteSession(ownerID, sessionID string) (int, error) {
	deleted, err := s.store.DeleteSession(ownerID, sessionID)
	if err != nil {
		return 0, err
	}
	slog.Info("session deleted", "session", sessionID, "owner", ownerID, "cards", deleted)
	return deleted, nil
}
