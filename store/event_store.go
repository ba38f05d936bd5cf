package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cloudboard/api/database"
	"cloudboard/api/models"
)

// EventStore reads and writes raw tracker events in ClickHouse.
type EventStore struct {
	DB  *database.ClickHouseClient
	log *zap.Logger
}

func NewEventStore(chClient *database.ClickHouseClient, log *zap.Logger) *EventStore {
	return &EventStore{
		DB:  chClient,
		log: log,
	}
}

const eventColumns = `
	id, domain, pathname, referrer, user_agent, screen_width, screen_height, session_id,
	event_type, element, time_spent, ip_address, timestamp, created_at, user_id, domain_id
`

func (s *EventStore) InsertEvents(ctx context.Context, events []models.RawEvent) error {
	if len(events) == 0 {
		return nil
	}

	// Column order must match eventColumns.
	batch, err := s.DB.Conn.PrepareBatch(ctx, `INSERT INTO events (`+eventColumns+`)`)
	if err != nil {
		return fmt.Errorf("failed to prepare batch insert: %w", err)
	}

	for _, event := range events {
		err := batch.Append(
			event.ID,
			event.Domain,
			event.Pathname,
			event.Referrer,
			event.UserAgent,
			event.ScreenWidth,
			event.ScreenHeight,
			event.SessionID,
			event.EventType,
			event.Element,
			event.TimeSpent,
			event.IPAddress,
			event.Timestamp,
			event.CreatedAt,
			event.UserID,
			event.DomainID,
		)
		if err != nil {
			// Abort instead of sending a partial batch.
			_ = batch.Abort()
			return fmt.Errorf("failed to append event %s to batch: %w", event.ID, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("failed to send batch: %w", err)
	}

	s.log.Debug("Inserted events", zap.Int("count", len(events)))
	return nil
}

// QueryEvents returns every event of a domain with start <= timestamp <= end.
func (s *EventStore) QueryEvents(ctx context.Context, domain string, start, end time.Time) ([]models.RawEvent, error) {
	var events []models.RawEvent
	err := s.DB.Conn.Select(ctx, &events, `
		SELECT `+eventColumns+`
		FROM events
		WHERE domain = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp, id
	`, domain, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for %s: %w", domain, err)
	}
	return events, nil
}

// ListEvents pages through the events of the given domains, newest first.
func (s *EventStore) ListEvents(ctx context.Context, domainIDs []int64, limit, offset int) ([]models.RawEvent, error) {
	if len(domainIDs) == 0 {
		return nil, nil
	}

	var events []models.RawEvent
	err := s.DB.Conn.Select(ctx, &events, `
		SELECT `+eventColumns+`
		FROM events
		WHERE has(?, domain_id)
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`, domainIDs, uint64(limit), uint64(offset))
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

func (s *EventStore) GetEvent(ctx context.Context, domainIDs []int64, id string) (*models.RawEvent, error) {
	if len(domainIDs) == 0 {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}

	var events []models.RawEvent
	err := s.DB.Conn.Select(ctx, &events, `
		SELECT `+eventColumns+`
		FROM events
		WHERE id = ? AND has(?, domain_id)
		LIMIT 1
	`, id, domainIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", id, err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return &events[0], nil
}

// LatestEvent returns the most recently ingested event of the given domains.
func (s *EventStore) LatestEvent(ctx context.Context, domainIDs []int64) (*models.RawEvent, error) {
	events, err := s.ListEvents(ctx, domainIDs, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("latest event: %w", ErrNotFound)
	}
	return &events[0], nil
}

// DeleteEvent removes one event with a lightweight delete.
func (s *EventStore) DeleteEvent(ctx context.Context, domainIDs []int64, id string) error {
	if _, err := s.GetEvent(ctx, domainIDs, id); err != nil {
		return err
	}

	if err := s.DB.Conn.Exec(ctx, `DELETE FROM events WHERE id = ? AND has(?, domain_id)`, id, domainIDs); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", id, err)
	}

	s.log.Info("Event deleted", zap.String("event_id", id))
	return nil
}
