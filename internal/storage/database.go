package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/quizforge/srs/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB wraps the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open database: %v", domain.ErrStorage, err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: connect to database: %v", domain.ErrStorage, err)
	}

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("%w: apply schema: %v", domain.ErrStorage, err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

const cardColumns = `id, owner_id, session_id, front, back, hint, difficulty,
	status, interval_days, repetitions, ease_factor, next_review_at, last_reviewed_at,
	bookmarked, tags, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (domain.Card, error) {
	var (
		c            domain.Card
		status       string
		lastReviewed sql.NullTime
		tagsJSON     string
	)
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.SessionID, &c.Front, &c.Back, &c.Hint, &c.Difficulty,
		&status, &c.IntervalDays, &c.Repetitions, &c.EaseFactor, &c.NextReviewAt, &lastReviewed,
		&c.Bookmarked, &tagsJSON, &c.CreatedAt,
	)
	if err != nil {
		return domain.Card{}, err
	}
	if err := c.Status.UnmarshalText([]byte(status)); err != nil {
		return domain.Card{}, err
	}
	if lastReviewed.Valid {
		t := lastReviewed.Time
		c.LastReviewedAt = &t
	}
	if tagsJSON != "" {
		if err := json.Unmarshal([]byte(tagsJSON), &c.Tags); err != nil {
			return domain.Card{}, fmt.Errorf("decode tags for card %s: %w", c.ID, err)
		}
	}
	return c, nil
}

func cardArgs(c domain.Card) ([]any, error) {
	tags := c.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags for card %s: %w", c.ID, err)
	}
	var lastReviewed sql.NullTime
	if c.LastReviewedAt != nil {
		lastReviewed = sql.NullTime{Time: *c.LastReviewedAt, Valid: true}
	}
	return []any{
		c.ID, c.OwnerID, c.SessionID, c.Front, c.Back, c.Hint, string(c.Difficulty),
		c.Status.String(), c.IntervalDays, c.Repetitions, c.EaseFactor, c.NextReviewAt, lastReviewed,
		c.Bookmarked, string(tagsJSON), c.CreatedAt,
	}, nil
}

// GetCard retrieves one card scoped to its owner. An unknown id and an
// ownership mismatch both return domain.ErrNotFound.
func (db *DB) GetCard(ownerID, cardID string) (domain.Card, error) {
	row := db.conn.QueryRow(`
		SELECT `+cardColumns+`
		FROM cards WHERE id = ? AND owner_id = ?
	`, cardID, ownerID)

	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Card{}, fmt.Errorf("%w: card %s", domain.ErrNotFound, cardID)
	}
	if err != nil {
		return domain.Card{}, fmt.Errorf("%w: get card %s: %v", domain.ErrStorage, cardID, err)
	}
	return c, nil
}

// ApplyReview persists the reviewed card state and appends its log entry as
// one transaction. A crash cannot leave one without the other.
func (db *DB) ApplyReview(card domain.Card, entry domain.ReviewLog) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin review for card %s: %v", domain.ErrStorage, card.ID, err)
	}
	defer tx.Rollback()

	var lastReviewed sql.NullTime
	if card.LastReviewedAt != nil {
		lastReviewed = sql.NullTime{Time: *card.LastReviewedAt, Valid: true}
	}

	res, err := tx.Exec(`
		UPDATE cards
		SET status = ?, interval_days = ?, repetitions = ?, ease_factor = ?,
		    next_review_at = ?, last_reviewed_at = ?
		WHERE id = ? AND owner_id = ?
	`,
		card.Status.String(), card.IntervalDays, card.Repetitions, card.EaseFactor,
		card.NextReviewAt, lastReviewed,
		card.ID, card.OwnerID,
	)
	if err != nil {
		return fmt.Errorf("%w: update card %s: %v", domain.ErrStorage, card.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: update card %s: %v", domain.ErrStorage, card.ID, err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: card %s", domain.ErrNotFound, card.ID)
	}

	if _, err := tx.Exec(`
		INSERT INTO review_logs (card_id, timestamp, rating, interval_before, interval_after,
			ease_before, ease_after, status_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		entry.CardID, entry.Timestamp, int(entry.Rating), entry.IntervalBefore, entry.IntervalAfter,
		entry.EaseFactorBefore, entry.EaseFactorAfter, entry.StatusAfter.String(),
	); err != nil {
		return fmt.Errorf("%w: append review log for card %s: %v", domain.ErrStorage, card.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit review for card %s: %v", domain.ErrStorage, card.ID, err)
	}
	return nil
}

// DueQuery narrows a due-cards query. A zero SessionID means all sessions;
// a Limit <= 0 means no limit.
type DueQuery struct {
	SessionID string
	Limit     int
}

// DueCards returns the owner's cards due as of now, ordered by next review
// time and tie-broken by card id for determinism.
func (db *DB) DueCards(ownerID string, now time.Time, q DueQuery) ([]domain.Card, error) {
	query := `SELECT ` + cardColumns + `
		FROM cards WHERE owner_id = ? AND next_review_at <= ?`
	args := []any{ownerID, now}
	if q.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, q.SessionID)
	}
	query += ` ORDER BY next_review_at ASC, id ASC`
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: due cards for owner %s: %v", domain.ErrStorage, ownerID, err)
	}
	defer rows.Close()

	var cards []domain.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan due card: %v", domain.ErrStorage, err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: due cards for owner %s: %v", domain.ErrStorage, ownerID, err)
	}
	return cards, nil
}

// CountDue returns the number of cards due for the owner, optionally scoped
// to one session.
func (db *DB) CountDue(ownerID string, now time.Time, sessionID string) (int, error) {
	query := `SELECT COUNT(*) FROM cards WHERE owner_id = ? AND next_review_at <= ?`
	args := []any{ownerID, now}
	if sessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, sessionID)
	}
	var n int
	if err := db.conn.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count due for owner %s: %v", domain.ErrStorage, ownerID, err)
	}
	return n, nil
}

// Stats recomputes the owner's aggregate card counts. There are no cached
// counters to drift out of sync with the card rows.
func (db *DB) Stats(ownerID string, now time.Time) (domain.Stats, error) {
	var s domain.Stats
	err := db.conn.QueryRow(`
		SELECT COUNT(*),
		       SUM(CASE WHEN status = 'learning' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = 'reviewing' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN status = 'mastered' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN next_review_at <= ? THEN 1 ELSE 0 END)
		FROM cards WHERE owner_id = ?
	`, now, ownerID).Scan(
		&s.Total,
		&sumOrZero{&s.Learning}, &sumOrZero{&s.Reviewing}, &sumOrZero{&s.Mastered}, &sumOrZero{&s.DueToday},
	)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("%w: stats for owner %s: %v", domain.ErrStorage, ownerID, err)
	}
	return s, nil
}

// sumOrZero scans a SUM() result that is NULL when no rows match.
type sumOrZero struct{ dst *int }

func (s *sumOrZero) Scan(src any) error {
	if src == nil {
		*s.dst = 0
		return nil
	}
	switch v := src.(type) {
	case int64:
		*s.dst = int(v)
		return nil
	case float64:
		*s.dst = int(v)
		return nil
	default:
		return fmt.Errorf("unexpected SUM type %T", src)
	}
}

// CreateSession inserts the session row and its initial batch of cards in a
// single transaction.
func (db *DB) CreateSession(session domain.Session, cards []domain.Card) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin create session: %v", domain.ErrStorage, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO sessions (id, owner_id, name, created_at)
		VALUES (?, ?, ?, ?)
	`, session.ID, session.OwnerID, session.Name, session.CreatedAt); err != nil {
		return fmt.Errorf("%w: insert session %s: %v", domain.ErrStorage, session.ID, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO cards (` + cardColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("%w: prepare card insert: %v", domain.ErrStorage, err)
	}
	defer stmt.Close()

	for _, c := range cards {
		args, err := cardArgs(c)
		if err != nil {
			return fmt.Errorf("%w: %v", domain.ErrStorage, err)
		}
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("%w: insert card %s: %v", domain.ErrStorage, c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit create session %s: %v", domain.ErrStorage, session.ID, err)
	}
	return nil
}

// GetSession retrieves a session scoped to its owner, including its card ids.
func (db *DB) GetSession(ownerID, sessionID string) (domain.Session, error) {
	var s domain.Session
	err := db.conn.QueryRow(`
		SELECT id, owner_id, name, created_at
		FROM sessions WHERE id = ? AND owner_id = ?
	`, sessionID, ownerID).Scan(&s.ID, &s.OwnerID, &s.Name, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Session{}, fmt.Errorf("%w: session %s", domain.ErrNotFound, sessionID)
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: get session %s: %v", domain.ErrStorage, sessionID, err)
	}

	rows, err := db.conn.Query(`SELECT id FROM cards WHERE session_id = ? ORDER BY id`, sessionID)
	if err != nil {
		return domain.Session{}, fmt.Errorf("%w: cards for session %s: %v", domain.ErrStorage, sessionID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return domain.Session{}, fmt.Errorf("%w: scan card id: %v", domain.ErrStorage, err)
		}
		s.CardIDs = append(s.CardIDs, id)
	}
	if err := rows.Err(); err != nil {
		return domain.Session{}, fmt.Errorf("%w: cards for session %s: %v", domain.ErrStorage, sessionID, err)
	}
	return s, nil
}

// DeleteSession removes the session, its cards and their review logs in one
// transaction and returns the number of cards deleted.
func (db *DB) DeleteSession(ownerID, sessionID string) (int, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("%w: begin delete session %s: %v", domain.ErrStorage, sessionID, err)
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRow(`SELECT id FROM sessions WHERE id = ? AND owner_id = ?`, sessionID, ownerID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: session %s", domain.ErrNotFound, sessionID)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: find session %s: %v", domain.ErrStorage, sessionID, err)
	}

	if _, err := tx.Exec(`
		DELETE FROM review_logs WHERE card_id IN (SELECT id FROM cards WHERE session_id = ?)
	`, sessionID); err != nil {
		return 0, fmt.Errorf("%w: delete logs for session %s: %v", domain.ErrStorage, sessionID, err)
	}

	res, err := tx.Exec(`DELETE FROM cards WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("%w: delete cards for session %s: %v", domain.ErrStorage, sessionID, err)
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: delete cards for session %s: %v", domain.ErrStorage, sessionID, err)
	}

	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, sessionID); err != nil {
		return 0, fmt.Errorf("%w: delete session %s: %v", domain.ErrStorage, sessionID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit delete session %s: %v", domain.ErrStorage, sessionID, err)
	}
	return int(deleted), nil
}

// ReviewLogs returns the card's review history, newest first. Ownership is
// enforced the same way as GetCard.
func (db *DB) ReviewLogs(ownerID, cardID string) ([]domain.ReviewLog, error) {
	if _, err := db.GetCard(ownerID, cardID); err != nil {
		return nil, err
	}

	rows, err := db.conn.Query(`
		SELECT card_id, timestamp, rating, interval_before, interval_after,
		       ease_before, ease_after, status_after
		FROM review_logs WHERE card_id = ?
		ORDER BY timestamp DESC, id DESC
	`, cardID)
	if err != nil {
		return nil, fmt.Errorf("%w: logs for card %s: %v", domain.ErrStorage, cardID, err)
	}
	defer rows.Close()

	var logs []domain.ReviewLog
	for rows.Next() {
		var (
			entry       domain.ReviewLog
			rating      int
			statusAfter string
		)
		if err := rows.Scan(
			&entry.CardID, &entry.Timestamp, &rating, &entry.IntervalBefore, &entry.IntervalAfter,
			&entry.EaseFactorBefore, &entry.EaseFactorAfter, &statusAfter,
		); err != nil {
			return nil, fmt.Errorf("%w: scan log for card %s: %v", domain.ErrStorage, cardID, err)
		}
		entry.Rating = domain.Rating(rating)
		if err := entry.StatusAfter.UnmarshalText([]byte(statusAfter)); err != nil {
			return nil, fmt.Errorf("%w: scan log for card %s: %v", domain.ErrStorage, cardID, err)
		}
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: logs for card %s: %v", domain.ErrStorage, cardID, err)
	}
	return logs, nil
}

// SetBookmark flips the orthogonal bookmark flag without touching any
// scheduling state, and returns the updated card.
func (db *DB) SetBookmark(ownerID, cardID string, bookmarked bool) (domain.Card, error) {
	res, err := db.conn.Exec(`
		UPDATE cards SET bookmarked = ? WHERE id = ? AND owner_id = ?
	`, bookmarked, cardID, ownerID)
	if err != nil {
		return domain.Card{}, fmt.Errorf("%w: bookmark card %s: %v", domain.ErrStorage, cardID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Card{}, fmt.Errorf("%w: bookmark card %s: %v", domain.ErrStorage, cardID, err)
	}
	if affected == 0 {
		return domain.Card{}, fmt.Errorf("%w: card %s", domain.ErrNotFound, cardID)
	}
	return db.GetCard(ownerID, cardID)
}
