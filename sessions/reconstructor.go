package sessions

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"cloudboard/api/models"
	"cloudboard/api/store"
)

// EventSource reads raw events for one domain within an inclusive window.
type EventSource interface {
	QueryEvents(ctx context.Context, domain string, start, end time.Time) ([]models.RawEvent, error)
}

// SessionRepository persists materialized sessions. InsertSessions must be
// all-or-nothing and wrap store.ErrDuplicate when a row collides with an
// existing session.
type SessionRepository interface {
	QuerySessions(ctx context.Context, domainID int64, start, end time.Time) ([]models.Session, error)
	InsertSessions(ctx context.Context, sessions []models.Session) ([]models.Session, error)
}

// DomainResolver maps a domain name to its registration.
type DomainResolver interface {
	GetDomainByName(ctx context.Context, name string) (*models.Domain, error)
}

// Reconstructor turns raw events into persisted sessions, materializing any
// given range at most once.
type Reconstructor struct {
	domains  DomainResolver
	events   EventSource
	sessions SessionRepository
	builder  *Builder
	log      *zap.Logger
}

func NewReconstructor(domains DomainResolver, events EventSource, sessions SessionRepository, builder *Builder, log *zap.Logger) *Reconstructor {
	return &Reconstructor{
		domains:  domains,
		events:   events,
		sessions: sessions,
		builder:  builder,
		log:      log,
	}
}

// Reconstruct returns the sessions of domain within [start, end]. Sessions
// already materialized for an overlapping range are returned as they are;
// otherwise they are built from raw events and inserted in one batch.
func (r *Reconstructor) Reconstruct(ctx context.Context, domainName string, start, end time.Time) ([]models.Session, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	domain, err := r.resolve(ctx, domainName)
	if err != nil {
		return nil, err
	}

	existing, err := r.sessions.QuerySessions(ctx, domain.ID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing sessions: %w", err)
	}
	if len(existing) > 0 {
		r.log.Debug("Sessions already materialized",
			zap.String("domain", domain.Domain),
			zap.Int("count", len(existing)))
		return existing, nil
	}

	events, err := r.events.QueryEvents(ctx, domain.Domain, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch events: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w in %s between %s and %s", ErrNoEvents, domain.Domain,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}

	built, err := r.BuildSessions(domain, events)
	if err != nil {
		return nil, err
	}
	if len(built) == 0 {
		return nil, fmt.Errorf("%w in %s: every event lacked a session id", ErrNoEvents, domain.Domain)
	}

	inserted, err := r.sessions.InsertSessions(ctx, built)
	if err == nil {
		r.log.Info("Sessions reconstructed",
			zap.String("domain", domain.Domain),
			zap.Int("events", len(events)),
			zap.Int("sessions", len(inserted)))
		return inserted, nil
	}
	if !errors.Is(err, store.ErrDuplicate) {
		return nil, fmt.Errorf("failed to persist sessions: %w", err)
	}

	// Another request materialized an overlapping range first.
	r.log.Info("Lost materialization race, returning stored sessions",
		zap.String("domain", domain.Domain), zap.Error(err))

	existing, qerr := r.sessions.QuerySessions(ctx, domain.ID, start, end)
	if qerr != nil {
		return nil, fmt.Errorf("failed to re-fetch sessions after conflict: %w", qerr)
	}
	if len(existing) == 0 {
		return nil, fmt.Errorf("%w: %v", ErrConflict, err)
	}
	return existing, nil
}

// Materialized returns the stored sessions of domain overlapping
// [start, end] without building anything.
func (r *Reconstructor) Materialized(ctx context.Context, domainName string, start, end time.Time) ([]models.Session, error) {
	if start.After(end) {
		return nil, ErrInvalidRange
	}

	domain, err := r.resolve(ctx, domainName)
	if err != nil {
		return nil, err
	}

	sessions, err := r.sessions.QuerySessions(ctx, domain.ID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	return sessions, nil
}

// BuildSessions groups events by session id and builds one session per
// bucket, ordered by start then session id. It performs no I/O. Events must
// all belong to domain.
func (r *Reconstructor) BuildSessions(domain *models.Domain, events []models.RawEvent) ([]models.Session, error) {
	buckets, skipped := Group(events)
	if skipped > 0 {
		r.log.Warn("Skipped events without a session id",
			zap.String("domain", domain.Domain),
			zap.Int("skipped", skipped))
	}

	built := make([]models.Session, 0, len(buckets))
	for sessionID, bucket := range buckets {
		SortByTime(bucket)

		session, err := r.builder.Build(bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to build session %s: %w", sessionID, err)
		}

		session.DomainID = domain.ID
		if session.UserID == 0 && domain.OwnerID != nil {
			session.UserID = *domain.OwnerID
		}
		built = append(built, *session)
	}

	slices.SortFunc(built, func(a, b models.Session) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return strings.Compare(a.SessionID, b.SessionID)
	})

	return built, nil
}

func (r *Reconstructor) resolve(ctx context.Context, name string) (*models.Domain, error) {
	domain, err := r.domains.GetDomainByName(ctx, name)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDomainNotFound, name)
		}
		return nil, fmt.Errorf("failed to resolve domain: %w", err)
	}
	return domain, nil
}
