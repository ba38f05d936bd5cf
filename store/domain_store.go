package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"cloudboard/api/models"
)

type DomainStore struct {
	db  *sql.DB
	log *zap.Logger
}

func NewDomainStore(db *sql.DB, log *zap.Logger) *DomainStore {
	return &DomainStore{db: db, log: log}
}

const domainColumns = `id, domain, is_active, owner_id, created_at, last_used_at`

func scanDomain(row interface{ Scan(...any) error }) (*models.Domain, error) {
	var (
		d       models.Domain
		ownerID sql.NullInt64
		used    sql.NullTime
	)
	if err := row.Scan(&d.ID, &d.Domain, &d.IsActive, &ownerID, &d.CreatedAt, &used); err != nil {
		return nil, err
	}
	if ownerID.Valid {
		id := ownerID.Int64
		d.OwnerID = &id
	}
	if used.Valid {
		t := used.Time
		d.LastUsedAt = &t
	}
	return &d, nil
}

// CreateDomain registers a domain owned by ownerID.
func (s *DomainStore) CreateDomain(ctx context.Context, name string, ownerID int64) (*models.Domain, error) {
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO domains (domain, owner_id)
		VALUES ($1, $2)
		RETURNING `+domainColumns+`;
	`, name, ownerID)

	d, err := scanDomain(row)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("domain '%s': %w", name, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to create domain: %w", err)
	}

	s.log.Info("Domain registered", zap.Int64("domain_id", d.ID), zap.String("domain", d.Domain))
	return d, nil
}

func (s *DomainStore) GetDomainByName(ctx context.Context, name string) (*models.Domain, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+domainColumns+` FROM domains WHERE domain = $1;`, name)
	d, err := scanDomain(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("domain '%s': %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get domain by name: %w", err)
	}
	return d, nil
}

func (s *DomainStore) GetDomainByID(ctx context.Context, id int64) (*models.Domain, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+domainColumns+` FROM domains WHERE id = $1;`, id)
	d, err := scanDomain(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("domain %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get domain by id: %w", err)
	}
	return d, nil
}

func (s *DomainStore) ListDomains(ctx context.Context, limit, offset int) ([]models.Domain, error) {
	return s.listDomains(ctx, `
		SELECT `+domainColumns+`
		FROM domains
		ORDER BY id
		LIMIT $1 OFFSET $2;
	`, limit, offset)
}

// ListDomainsByOwner returns every domain the user owns, oldest first.
func (s *DomainStore) ListDomainsByOwner(ctx context.Context, ownerID int64) ([]models.Domain, error) {
	return s.listDomains(ctx, `
		SELECT `+domainColumns+`
		FROM domains
		WHERE owner_id = $1
		ORDER BY id;
	`, ownerID)
}

func (s *DomainStore) listDomains(ctx context.Context, query string, args ...any) ([]models.Domain, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list domains: %w", err)
	}
	defer rows.Close()

	var domains []models.Domain
	for rows.Next() {
		d, err := scanDomain(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan domain row: %w", err)
		}
		domains = append(domains, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating domain rows: %w", err)
	}
	return domains, nil
}

// TouchDomain records that the domain just authenticated.
func (s *DomainStore) TouchDomain(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE domains SET last_used_at = now() WHERE id = $1;`, id); err != nil {
		return fmt.Errorf("failed to touch domain %d: %w", id, err)
	}
	return nil
}
