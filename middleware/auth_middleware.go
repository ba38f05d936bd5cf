package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cloudboard/api/models"
	"cloudboard/api/store"
	"cloudboard/api/utils"
)

const principalKey = "principal"

// APIKeyLookup resolves a hashed API key to its live record.
type APIKeyLookup interface {
	UseAPIKey(ctx context.Context, keyHash string) (*models.APIKey, error)
}

// DomainLookup resolves domains referenced by credentials.
type DomainLookup interface {
	GetDomainByID(ctx context.Context, id int64) (*models.Domain, error)
	TouchDomain(ctx context.Context, id int64) error
}

// Authenticator turns request credentials into a models.Principal.
type Authenticator struct {
	tokens  *utils.TokenManager
	keys    APIKeyLookup
	domains DomainLookup
	log     *zap.Logger
}

func NewAuthenticator(tokens *utils.TokenManager, keys APIKeyLookup, domains DomainLookup, log *zap.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, keys: keys, domains: domains, log: log}
}

func unauthorized(c *gin.Context, message string) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "message": message})
}

// AuthRequired accepts an API key (X-API-KEY header or a cKey_ bearer) or a
// user/domain JWT bearer token.
func (a *Authenticator) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		credential := c.GetHeader("X-API-KEY")
		if credential == "" {
			credential = utils.BearerToken(c.GetHeader("Authorization"))
		}
		if credential == "" {
			unauthorized(c, "no token provided")
			return
		}

		var (
			principal models.Principal
			err       error
		)
		if utils.IsAPIKey(credential) {
			principal, err = a.fromAPIKey(c.Request.Context(), credential)
		} else {
			principal, err = a.fromJWT(c.Request.Context(), credential)
		}
		if err != nil {
			a.log.Debug("Authentication failed", zap.Error(err), zap.String("path", c.FullPath()))
			if errors.Is(err, store.ErrNotFound) || errors.Is(err, errInvalidCredential) {
				unauthorized(c, "invalid or expired credentials")
				return
			}
			a.log.Error("Credential lookup failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "could not validate credentials"})
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

var errInvalidCredential = errors.New("invalid credential")

func (a *Authenticator) fromAPIKey(ctx context.Context, raw string) (models.Principal, error) {
	key, err := a.keys.UseAPIKey(ctx, utils.HashSecret(raw))
	if err != nil {
		return nil, err
	}

	domain, err := a.activeDomain(ctx, key.DomainID)
	if err != nil {
		return nil, err
	}

	return models.APIKeyPrincipal{
		KeyID:    key.ID,
		DomainID: domain.ID,
		OwnerID:  ownerOf(domain),
		Domain:   domain.Domain,
	}, nil
}

func (a *Authenticator) fromJWT(ctx context.Context, raw string) (models.Principal, error) {
	claims, err := a.tokens.Validate(raw)
	if err != nil {
		return nil, errors.Join(errInvalidCredential, err)
	}
	id, err := claims.SubjectID()
	if err != nil {
		return nil, errors.Join(errInvalidCredential, err)
	}

	switch claims.Kind {
	case utils.KindUser:
		return models.UserPrincipal{UserID: id}, nil
	case utils.KindDomain:
		domain, err := a.activeDomain(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := a.domains.TouchDomain(ctx, domain.ID); err != nil {
			a.log.Warn("Failed to record domain use", zap.Error(err))
		}
		return models.DomainPrincipal{
			DomainID: domain.ID,
			OwnerID:  ownerOf(domain),
			Domain:   domain.Domain,
		}, nil
	default:
		return nil, errInvalidCredential
	}
}

func (a *Authenticator) activeDomain(ctx context.Context, id int64) (*models.Domain, error) {
	domain, err := a.domains.GetDomainByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.IsActive {
		return nil, errors.Join(errInvalidCredential, errors.New("domain is inactive"))
	}
	return domain, nil
}

func ownerOf(d *models.Domain) int64 {
	if d.OwnerID == nil {
		return 0
	}
	return *d.OwnerID
}

// RequireUser lets only user principals through. It must run after
// AuthRequired.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentUser(c); !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "message": "a user token is required"})
			return
		}
		c.Next()
	}
}

// CurrentPrincipal returns the principal stored by AuthRequired.
func CurrentPrincipal(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}

// CurrentUser returns the caller when it is a user principal.
func CurrentUser(c *gin.Context) (models.UserPrincipal, bool) {
	p, ok := CurrentPrincipal(c)
	if !ok {
		return models.UserPrincipal{}, false
	}
	u, ok := p.(models.UserPrincipal)
	return u, ok
}

// SetPrincipal stores p on the context; handlers under test use it in place
// of AuthRequired.
func SetPrincipal(c *gin.Context, p models.Principal) {
	c.Set(principalKey, p)
}
