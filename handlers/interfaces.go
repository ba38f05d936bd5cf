package handlers

import (
	"context"
	"time"

	"cloudboard/api/models"
)

// UserRepository is the subset of store.UserStore the handlers use.
type UserRepository interface {
	CreateUser(ctx context.Context, email string, hashedPassword []byte) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]models.User, error)
}

// DomainRepository is the subset of store.DomainStore the handlers use.
type DomainRepository interface {
	CreateDomain(ctx context.Context, name string, ownerID int64) (*models.Domain, error)
	GetDomainByName(ctx context.Context, name string) (*models.Domain, error)
	GetDomainByID(ctx context.Context, id int64) (*models.Domain, error)
	ListDomains(ctx context.Context, limit, offset int) ([]models.Domain, error)
	ListDomainsByOwner(ctx context.Context, ownerID int64) ([]models.Domain, error)
}

// CredentialRepository is the subset of store.CredentialStore the handlers use.
type CredentialRepository interface {
	CreateAPIKey(ctx context.Context, domainID int64, domain, keyHash string) (*models.APIKey, error)
	CreateRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (*models.RefreshToken, error)
	GetActiveRefreshToken(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id int64) error
	RevokeUserRefreshTokens(ctx context.Context, userID int64) (int64, error)
}

// EventRepository is the subset of store.EventStore the handlers use.
type EventRepository interface {
	InsertEvents(ctx context.Context, events []models.RawEvent) error
	ListEvents(ctx context.Context, domainIDs []int64, limit, offset int) ([]models.RawEvent, error)
	GetEvent(ctx context.Context, domainIDs []int64, id string) (*models.RawEvent, error)
	LatestEvent(ctx context.Context, domainIDs []int64) (*models.RawEvent, error)
	DeleteEvent(ctx context.Context, domainIDs []int64, id string) error
}

// SessionService is implemented by sessions.Reconstructor.
type SessionService interface {
	Reconstruct(ctx context.Context, domain string, start, end time.Time) ([]models.Session, error)
	Materialized(ctx context.Context, domain string, start, end time.Time) ([]models.Session, error)
}

// Pinger is anything the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}
