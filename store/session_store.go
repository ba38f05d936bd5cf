package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cloudboard/api/models"
)

// SessionStore holds materialized sessions. Overlap protection lives in the
// table constraints, not here.
type SessionStore struct {
	db  *sql.DB
	log *zap.Logger
}

func NewSessionStore(db *sql.DB, log *zap.Logger) *SessionStore {
	return &SessionStore{db: db, log: log}
}

// QuerySessions returns the sessions of a domain whose interval intersects
// [start, end], both ends inclusive.
func (s *SessionStore) QuerySessions(ctx context.Context, domainID int64, start, end time.Time) ([]models.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, user_id, domain_id, start_at, end_at, duration, event_count,
			device, os, browser, country, entry_path, exit_path
		FROM sessions
		WHERE domain_id = $1 AND start_at <= $3 AND end_at >= $2
		ORDER BY start_at, session_id;
	`, domainID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var (
			sess    models.Session
			country sql.NullString
		)
		if err := rows.Scan(
			&sess.ID,
			&sess.SessionID,
			&sess.UserID,
			&sess.DomainID,
			&sess.Start,
			&sess.End,
			&sess.Duration,
			&sess.EventCount,
			&sess.Device,
			&sess.OS,
			&sess.Browser,
			&country,
			&sess.EntryPath,
			&sess.ExitPath,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		if country.Valid {
			c := country.String
			sess.Country = &c
		}
		sessions = append(sessions, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating session rows: %w", err)
	}

	return sessions, nil
}

// InsertSessions writes all sessions in one transaction. Either every row is
// committed or none is; a constraint violation is reported as ErrDuplicate.
func (s *SessionStore) InsertSessions(ctx context.Context, sessions []models.Session) ([]models.Session, error) {
	if len(sessions) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin session insert: %w", err)
	}
	defer func() {
		// No-op after a successful commit.
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO sessions (
			session_id, user_id, domain_id, start_at, end_at, duration, event_count,
			device, os, browser, country, entry_path, exit_path
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare session insert: %w", err)
	}
	defer stmt.Close()

	inserted := make([]models.Session, len(sessions))
	for i, sess := range sessions {
		var country sql.NullString
		if sess.Country != nil {
			country = sql.NullString{String: *sess.Country, Valid: true}
		}

		err := stmt.QueryRowContext(ctx,
			sess.SessionID,
			sess.UserID,
			sess.DomainID,
			sess.Start,
			sess.End,
			sess.Duration,
			sess.EventCount,
			sess.Device,
			sess.OS,
			sess.Browser,
			country,
			sess.EntryPath,
			sess.ExitPath,
		).Scan(&sess.ID)
		if err != nil {
			if isConstraintViolation(err) {
				return nil, fmt.Errorf("session '%s' overlaps a materialized session: %w", sess.SessionID, ErrDuplicate)
			}
			return nil, fmt.Errorf("failed to insert session '%s': %w", sess.SessionID, err)
		}
		inserted[i] = sess
	}

	if err := tx.Commit(); err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("session commit: %w", ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to commit sessions: %w", err)
	}

	s.log.Info("Sessions materialized",
		zap.Int64("domain_id", sessions[0].DomainID),
		zap.Int("count", len(inserted)))
	return inserted, nil
}
