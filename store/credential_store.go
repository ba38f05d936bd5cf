package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"cloudboard/api/models"
)

// CredentialStore persists hashed API keys and refresh tokens. Raw secrets
// are never written.
type CredentialStore struct {
	db  *sql.DB
	log *zap.Logger
}

func NewCredentialStore(db *sql.DB, log *zap.Logger) *CredentialStore {
	return &CredentialStore{db: db, log: log}
}

func (s *CredentialStore) CreateAPIKey(ctx context.Context, domainID int64, domain, keyHash string) (*models.APIKey, error) {
	key := &models.APIKey{DomainID: domainID, Domain: domain, KeyHash: keyHash}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO api_keys (domain_id, domain, key_hash)
		VALUES ($1, $2, $3)
		RETURNING id, revoked, created_at;
	`, domainID, domain, keyHash).Scan(&key.ID, &key.Revoked, &key.CreatedAt)
	if err != nil {
		if isConstraintViolation(err) {
			return nil, fmt.Errorf("api key for '%s': %w", domain, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to store api key: %w", err)
	}

	s.log.Info("API key issued", zap.Int64("key_id", key.ID), zap.Int64("domain_id", domainID))
	return key, nil
}

// UseAPIKey looks up a live key by hash and stamps its last use.
func (s *CredentialStore) UseAPIKey(ctx context.Context, keyHash string) (*models.APIKey, error) {
	key := &models.APIKey{KeyHash: keyHash}
	var used sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		UPDATE api_keys
		SET last_used_at = now()
		WHERE key_hash = $1 AND NOT revoked
		RETURNING id, domain_id, domain, revoked, created_at, last_used_at;
	`, keyHash).Scan(&key.ID, &key.DomainID, &key.Domain, &key.Revoked, &key.CreatedAt, &used)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("api key: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up api key: %w", err)
	}
	if used.Valid {
		t := used.Time
		key.LastUsedAt = &t
	}
	return key, nil
}

func (s *CredentialStore) CreateRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (*models.RefreshToken, error) {
	token := &models.RefreshToken{UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at;
	`, userID, tokenHash, expiresAt).Scan(&token.ID, &token.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("could not store refresh token: %w", err)
	}
	return token, nil
}

// GetActiveRefreshToken returns the token only if it is neither revoked nor
// expired at now.
func (s *CredentialStore) GetActiveRefreshToken(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	token := &models.RefreshToken{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked, created_at
		FROM refresh_tokens
		WHERE token_hash = $1 AND NOT revoked AND expires_at > $2;
	`, tokenHash, now).Scan(&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt, &token.Revoked, &token.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("refresh token: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}
	return token, nil
}

// RevokeRefreshToken revokes a single token. Revoking an already revoked
// token reports ErrNotFound so rotation cannot be replayed.
func (s *CredentialStore) RevokeRefreshToken(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE id = $1 AND NOT revoked;`, id)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke refresh token: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("refresh token %d: %w", id, ErrNotFound)
	}
	return nil
}

// RevokeUserRefreshTokens revokes every live token of a user and reports how
// many were revoked.
func (s *CredentialStore) RevokeUserRefreshTokens(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE refresh_tokens SET revoked = TRUE WHERE user_id = $1 AND NOT revoked;`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to revoke refresh tokens: %w", err)
	}
	return n, nil
}
