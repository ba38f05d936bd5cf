package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"cloudboard/api/middleware"
	"cloudboard/api/models"
	"cloudboard/api/store"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: code, Message: message})
}

func validationError(c *gin.Context, err error) {
	respondError(c, http.StatusBadRequest, "validation_error", err.Error())
}

func notFound(c *gin.Context, message string) {
	respondError(c, http.StatusNotFound, "not_found", message)
}

func internalError(c *gin.Context, err error, message string) {
	_ = c.Error(err)
	respondError(c, http.StatusInternalServerError, "internal_error", message)
}

// storeError maps store sentinels onto HTTP responses.
func storeError(c *gin.Context, err error, notFoundMessage, fallback string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		notFound(c, notFoundMessage)
	case errors.Is(err, context.DeadlineExceeded):
		_ = c.Error(err)
		respondError(c, http.StatusGatewayTimeout, "timeout", fallback)
	default:
		internalError(c, err, fallback)
	}
}

func paramID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		validationError(c, errors.New(name+" must be a positive integer"))
		return 0, false
	}
	return id, true
}

// ownsDomain reports whether the principal may act on d.
func ownsDomain(p models.Principal, d *models.Domain) bool {
	switch p := p.(type) {
	case models.UserPrincipal:
		return d.OwnerID != nil && *d.OwnerID == p.UserID
	case models.DomainPrincipal:
		return p.DomainID == d.ID
	case models.APIKeyPrincipal:
		return p.DomainID == d.ID
	default:
		return false
	}
}

// scopedDomainIDs returns the domains whose events the principal can see.
func scopedDomainIDs(ctx context.Context, domains DomainRepository, p models.Principal) ([]int64, error) {
	switch p := p.(type) {
	case models.UserPrincipal:
		owned, err := domains.ListDomainsByOwner(ctx, p.UserID)
		if err != nil {
			return nil, err
		}
		ids := make([]int64, len(owned))
		for i, d := range owned {
			ids[i] = d.ID
		}
		return ids, nil
	case models.DomainPrincipal:
		return []int64{p.DomainID}, nil
	case models.APIKeyPrincipal:
		return []int64{p.DomainID}, nil
	default:
		return nil, errors.New("unsupported principal")
	}
}

func mustPrincipal(c *gin.Context) (models.Principal, bool) {
	p, ok := middleware.CurrentPrincipal(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "unauthorized", "no principal on request")
		return nil, false
	}
	return p, true
}

func normalizeDomain(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
