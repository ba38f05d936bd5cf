package models

import "time"

// Domain is a registered website whose events are tracked.
type Domain struct {
	ID         int64      `json:"id"`
	Domain     string     `json:"domain"`
	IsActive   bool       `json:"is_active"`
	OwnerID    *int64     `json:"owner_id"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}

type CreateDomainRequest struct {
	Domain string `json:"domain" binding:"required,hostname_rfc1123"`
}

// DomainRequest names a domain in an auth request body.
type DomainRequest struct {
	Domain string `json:"domain" binding:"required"`
}

// APIKey is a hashed, revocable credential that lets a domain post events.
type APIKey struct {
	ID         int64      `json:"id"`
	DomainID   int64      `json:"domain_id"`
	Domain     string     `json:"domain"`
	KeyHash    string     `json:"-"`
	Revoked    bool       `json:"revoked"`
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at"`
}
