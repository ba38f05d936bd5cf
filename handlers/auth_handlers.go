// api/handlers/auth_handlers.go
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"cloudboard/api/middleware"
	"cloudboard/api/models"
	"cloudboard/api/store"
	"cloudboard/api/utils"
)

const (
	refreshCookieName = "refresh_token"
	refreshCookiePath = "/auth"
)

// AuthConfig carries the settings AuthHandlers needs from config.Config.
type AuthConfig struct {
	RefreshTTL    time.Duration
	SecureCookies bool
}

type AuthHandlers struct {
	users   UserRepository
	domains DomainRepository
	creds   CredentialRepository
	tokens  *utils.TokenManager
	cfg     AuthConfig
	log     *zap.Logger
	now     func() time.Time
}

func NewAuthHandlers(users UserRepository, domains DomainRepository, creds CredentialRepository, tokens *utils.TokenManager, cfg AuthConfig, log *zap.Logger) *AuthHandlers {
	return &AuthHandlers{
		users:   users,
		domains: domains,
		creds:   creds,
		tokens:  tokens,
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// Register creates a user and returns a user token straight away.
func (h *AuthHandlers) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		internalError(c, err, "failed to process password")
		return
	}

	user, err := h.users.CreateUser(c.Request.Context(), req.Email, hashed)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			respondError(c, http.StatusConflict, "conflict", "a user with this email already exists")
			return
		}
		internalError(c, err, "failed to register user")
		return
	}

	token, err := h.tokens.GenerateUserToken(user)
	if err != nil {
		internalError(c, err, "failed to issue token")
		return
	}

	h.log.Info("User registered", zap.Int64("user_id", user.ID))
	c.JSON(http.StatusCreated, gin.H{
		"user_token": token,
		"user":       user,
		"token_type": string(utils.KindUser),
	})
}

// Login checks credentials, returns an access token and sets a fresh
// refresh token cookie.
func (h *AuthHandlers) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	user, err := h.users.GetUserByEmail(c.Request.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			internalError(c, err, "failed to log in")
			return
		}
		// Equalise timing with the known-email path.
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(req.Password))
		respondError(c, http.StatusForbidden, "invalid_credentials", "invalid email or password")
		return
	}

	if err := bcrypt.CompareHashAndPassword(user.HashedPassword, []byte(req.Password)); err != nil {
		h.log.Debug("Login failed: password mismatch", zap.Int64("user_id", user.ID))
		respondError(c, http.StatusForbidden, "invalid_credentials", "invalid email or password")
		return
	}

	token, ok := h.issuePair(c, user)
	if !ok {
		return
	}

	h.log.Info("User logged in", zap.Int64("user_id", user.ID))
	c.JSON(http.StatusOK, gin.H{"token": token})
}

var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("not-a-real-password"), bcrypt.DefaultCost)

// Refresh rotates the refresh token cookie and returns a new access token.
func (h *AuthHandlers) Refresh(c *gin.Context) {
	raw, err := c.Cookie(refreshCookieName)
	if err != nil || raw == "" {
		respondError(c, http.StatusUnauthorized, "unauthorized", "no refresh token")
		return
	}

	ctx := c.Request.Context()
	stored, err := h.creds.GetActiveRefreshToken(ctx, utils.HashSecret(raw), h.now())
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			h.clearRefreshCookie(c)
			respondError(c, http.StatusUnauthorized, "unauthorized", "refresh token is invalid or expired")
			return
		}
		internalError(c, err, "failed to refresh token")
		return
	}

	if err := h.creds.RevokeRefreshToken(ctx, stored.ID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Revoked by a concurrent refresh.
			respondError(c, http.StatusUnauthorized, "unauthorized", "refresh token is invalid or expired")
			return
		}
		internalError(c, err, "failed to refresh token")
		return
	}

	user, err := h.users.GetUserByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			respondError(c, http.StatusUnauthorized, "unauthorized", "user no longer exists")
			return
		}
		internalError(c, err, "failed to refresh token")
		return
	}

	token, ok := h.issuePair(c, user)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Logout revokes the refresh token carried by the request, if any.
func (h *AuthHandlers) Logout(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	if raw, err := c.Cookie(refreshCookieName); err == nil && raw != "" {
		ctx := c.Request.Context()
		stored, err := h.creds.GetActiveRefreshToken(ctx, utils.HashSecret(raw), h.now())
		switch {
		case err == nil && stored.UserID == user.UserID:
			if err := h.creds.RevokeRefreshToken(ctx, stored.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
				internalError(c, err, "failed to log out")
				return
			}
		case err != nil && !errors.Is(err, store.ErrNotFound):
			internalError(c, err, "failed to log out")
			return
		}
	}

	h.clearRefreshCookie(c)
	h.log.Info("User logged out", zap.Int64("user_id", user.UserID))
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// LogoutAll revokes every refresh token of the current user.
func (h *AuthHandlers) LogoutAll(c *gin.Context) {
	user, _ := middleware.CurrentUser(c)

	n, err := h.creds.RevokeUserRefreshTokens(c.Request.Context(), user.UserID)
	if err != nil {
		internalError(c, err, "failed to log out")
		return
	}

	h.clearRefreshCookie(c)
	h.log.Info("User logged out everywhere", zap.Int64("user_id", user.UserID), zap.Int64("revoked", n))
	c.JSON(http.StatusOK, gin.H{"message": "logged out everywhere", "revoked": n})
}

// IssueAPIKey creates an API key for a domain the caller owns. The raw key is
// returned once and never stored.
func (h *AuthHandlers) IssueAPIKey(c *gin.Context) {
	domain, ok := h.ownedDomain(c)
	if !ok {
		return
	}

	raw, err := utils.GenerateAPIKey(domain.Domain)
	if err != nil {
		internalError(c, err, "failed to generate api key")
		return
	}

	key, err := h.creds.CreateAPIKey(c.Request.Context(), domain.ID, domain.Domain, utils.HashSecret(raw))
	if err != nil {
		internalError(c, err, "failed to store api key")
		return
	}

	h.log.Info("API key issued", zap.Int64("domain_id", domain.ID), zap.Int64("key_id", key.ID))
	c.JSON(http.StatusCreated, gin.H{
		"api_key":    raw,
		"key_id":     key.ID,
		"domain":     domain.Domain,
		"created_at": key.CreatedAt,
	})
}

// IssueDomainToken returns a domain-scoped JWT for a domain the caller owns.
// It lives for DOMAIN_TOKEN_TTL and cannot be refreshed; long-lived trackers
// should use an API key instead.
func (h *AuthHandlers) IssueDomainToken(c *gin.Context) {
	domain, ok := h.ownedDomain(c)
	if !ok {
		return
	}

	token, err := h.tokens.GenerateDomainToken(domain)
	if err != nil {
		internalError(c, err, "failed to issue token")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"domain_token": token,
		"domain":       domain.Domain,
		"token_type":   string(utils.KindDomain),
	})
}

func (h *AuthHandlers) ownedDomain(c *gin.Context) (*models.Domain, bool) {
	var req models.DomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return nil, false
	}

	user, _ := middleware.CurrentUser(c)
	domain, err := h.domains.GetDomainByName(c.Request.Context(), normalizeDomain(req.Domain))
	if err != nil {
		storeError(c, err, "domain not found", "failed to look up domain")
		return nil, false
	}
	if !ownsDomain(user, domain) {
		respondError(c, http.StatusForbidden, "forbidden", "you do not own this domain")
		return nil, false
	}
	return domain, true
}

// issuePair stores a new refresh token, sets its cookie and returns a new
// access token. It writes the error response itself when it fails.
func (h *AuthHandlers) issuePair(c *gin.Context, user *models.User) (string, bool) {
	access, err := h.tokens.GenerateUserToken(user)
	if err != nil {
		internalError(c, err, "failed to issue token")
		return "", false
	}

	raw, err := utils.GenerateRefreshToken()
	if err != nil {
		internalError(c, err, "failed to issue token")
		return "", false
	}

	expiresAt := h.now().Add(h.cfg.RefreshTTL)
	if _, err := h.creds.CreateRefreshToken(c.Request.Context(), user.ID, utils.HashSecret(raw), expiresAt); err != nil {
		internalError(c, err, "failed to issue token")
		return "", false
	}

	c.SetSameSite(h.sameSite())
	c.SetCookie(refreshCookieName, raw, int(h.cfg.RefreshTTL/time.Second), refreshCookiePath, "", h.cfg.SecureCookies, true)
	return access, true
}

func (h *AuthHandlers) clearRefreshCookie(c *gin.Context) {
	c.SetSameSite(h.sameSite())
	c.SetCookie(refreshCookieName, "", -1, refreshCookiePath, "", h.cfg.SecureCookies, true)
}

// sameSite lets the dashboard, which may live on another site, send the
// refresh cookie. Browsers only accept SameSite=None on secure cookies.
func (h *AuthHandlers) sameSite() http.SameSite {
	if h.cfg.SecureCookies {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}
