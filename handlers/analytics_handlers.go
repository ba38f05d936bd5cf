// api/handlers/analytics_handlers.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cloudboard/api/models"
	"cloudboard/api/sessions"
	"cloudboard/api/store"
)

type AnalyticsHandlers struct {
	sessions SessionService
	domains  DomainRepository
	timeout  time.Duration
	log      *zap.Logger
}

func NewAnalyticsHandlers(svc SessionService, domains DomainRepository, timeout time.Duration, log *zap.Logger) *AnalyticsHandlers {
	return &AnalyticsHandlers{
		sessions: svc,
		domains:  domains,
		timeout:  timeout,
		log:      log,
	}
}

// ReconstructSessions materializes the sessions of a domain for a time range,
// or returns the ones already materialized.
func (h *AnalyticsHandlers) ReconstructSessions(c *gin.Context) {
	h.serve(c, h.sessions.Reconstruct)
}

// ListSessions returns already materialized sessions without building any.
func (h *AnalyticsHandlers) ListSessions(c *gin.Context) {
	h.serve(c, h.sessions.Materialized)
}

type sessionQuery func(ctx context.Context, domain string, start, end time.Time) ([]models.Session, error)

func (h *AnalyticsHandlers) serve(c *gin.Context, query sessionQuery) {
	var q models.SessionRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		validationError(c, err)
		return
	}
	q.Domain = normalizeDomain(q.Domain)

	p, ok := mustPrincipal(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	if !h.authorize(ctx, c, p, q.Domain) {
		return
	}

	result, err := query(ctx, q.Domain, q.Start.UTC(), q.End.UTC())
	if err != nil {
		h.sessionError(c, err)
		return
	}
	if result == nil {
		result = []models.Session{}
	}
	c.JSON(http.StatusOK, result)
}

// authorize lets site credentials read only their own domain and users only
// domains they own.
func (h *AnalyticsHandlers) authorize(ctx context.Context, c *gin.Context, p models.Principal, name string) bool {
	switch p := p.(type) {
	case models.DomainPrincipal:
		if p.Domain != name {
			respondError(c, http.StatusForbidden, "forbidden", "token is not valid for domain "+name)
			return false
		}
		return true
	case models.APIKeyPrincipal:
		if p.Domain != name {
			respondError(c, http.StatusForbidden, "forbidden", "api key is not valid for domain "+name)
			return false
		}
		return true
	case models.UserPrincipal:
		domain, err := h.domains.GetDomainByName(ctx, name)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				notFound(c, "domain "+name+" is not registered")
				return false
			}
			internalError(c, err, "failed to look up domain")
			return false
		}
		if !ownsDomain(p, domain) {
			respondError(c, http.StatusForbidden, "forbidden", "you do not own domain "+name)
			return false
		}
		return true
	default:
		respondError(c, http.StatusForbidden, "forbidden", "unsupported principal")
		return false
	}
}

func (h *AnalyticsHandlers) sessionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sessions.ErrInvalidRange):
		validationError(c, err)
	case errors.Is(err, sessions.ErrDomainNotFound), errors.Is(err, sessions.ErrNoEvents):
		notFound(c, err.Error())
	case errors.Is(err, sessions.ErrConflict):
		respondError(c, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		_ = c.Error(err)
		respondError(c, http.StatusGatewayTimeout, "timeout", "session reconstruction timed out")
	default:
		h.log.Error("Session reconstruction failed", zap.Error(err))
		internalError(c, err, "failed to reconstruct sessions")
	}
}
