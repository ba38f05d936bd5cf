package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cloudboard/api/models"
	"cloudboard/api/sessions"
)

var (
	rangeStart = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	rangeEnd   = time.Date(2025, 1, 1, 11, 0, 0, 0, time.UTC)
)

func newAnalyticsRouter(p models.Principal) (*gin.Engine, *MockSessions, *MockDomains) {
	svc := new(MockSessions)
	domains := new(MockDomains)
	h := NewAnalyticsHandlers(svc, domains, 5*time.Second, zap.NewNop())

	r := gin.New()
	g := r.Group("/analytics", asPrincipal(p))
	g.GET("/session", h.ReconstructSessions)
	g.GET("/sessions", h.ListSessions)
	return r, svc, domains
}

func sessionURL(path, domain string, start, end time.Time) string {
	q := url.Values{}
	q.Set("domain", domain)
	q.Set("start", start.Format(time.RFC3339))
	q.Set("end", end.Format(time.RFC3339))
	return path + "?" + q.Encode()
}

func TestReconstructSessions_DomainPrincipal(t *testing.T) {
	r, svc, _ := newAnalyticsRouter(models.DomainPrincipal{DomainID: 3, Domain: "example.com"})
	svc.On("Reconstruct", mock.Anything, "example.com", rangeStart, rangeEnd).
		Return([]models.Session{
			{ID: 1, SessionID: "s1", Duration: 300, EventCount: 3, EntryPath: "/", ExitPath: "/contact"},
			{ID: 2, SessionID: "s2", Duration: 60, EventCount: 2, EntryPath: "/blog", ExitPath: "/blog/post"},
		}, nil)

	w := send(r, http.MethodGet, sessionURL("/analytics/session", "example.com", rangeStart, rangeEnd), nil)

	require.Equal(t, http.StatusOK, w.Code)
	var got []models.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 2)
	assert.Equal(t, 300.0, got[0].Duration)
	assert.Equal(t, "/blog/post", got[1].ExitPath)
	svc.AssertExpectations(t)
}

func TestReconstructSessions_OtherDomainForbidden(t *testing.T) {
	r, svc, _ := newAnalyticsRouter(models.APIKeyPrincipal{DomainID: 3, Domain: "example.com"})

	w := send(r, http.MethodGet, sessionURL("/analytics/session", "other.org", rangeStart, rangeEnd), nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	svc.AssertNotCalled(t, "Reconstruct", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconstructSessions_UserOwnership(t *testing.T) {
	r, svc, domains := newAnalyticsRouter(models.UserPrincipal{UserID: 7})
	domains.On("GetDomainByName", mock.Anything, "example.com").
		Return(&models.Domain{ID: 3, Domain: "example.com", OwnerID: int64Ptr(42)}, nil)

	w := send(r, http.MethodGet, sessionURL("/analytics/session", "example.com", rangeStart, rangeEnd), nil)

	assert.Equal(t, http.StatusForbidden, w.Code)
	svc.AssertNotCalled(t, "Reconstruct", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconstructSessions_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"invalid range", sessions.ErrInvalidRange, http.StatusBadRequest},
		{"unknown domain", fmt.Errorf("%w: example.com", sessions.ErrDomainNotFound), http.StatusNotFound},
		{"no events", fmt.Errorf("%w in example.com", sessions.ErrNoEvents), http.StatusNotFound},
		{"conflict", fmt.Errorf("%w: lost race", sessions.ErrConflict), http.StatusConflict},
		{"timeout", fmt.Errorf("failed to fetch events: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"other", fmt.Errorf("failed to fetch events: boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, svc, _ := newAnalyticsRouter(models.DomainPrincipal{DomainID: 3, Domain: "example.com"})
			svc.On("Reconstruct", mock.Anything, "example.com", mock.Anything, mock.Anything).Return(nil, tt.err)

			w := send(r, http.MethodGet, sessionURL("/analytics/session", "example.com", rangeStart, rangeEnd), nil)

			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestReconstructSessions_MissingParams(t *testing.T) {
	r, _, _ := newAnalyticsRouter(models.DomainPrincipal{DomainID: 3, Domain: "example.com"})

	w := send(r, http.MethodGet, "/analytics/session?domain=example.com", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListSessions_EmptyIsOK(t *testing.T) {
	r, svc, _ := newAnalyticsRouter(models.DomainPrincipal{DomainID: 3, Domain: "example.com"})
	svc.On("Materialized", mock.Anything, "example.com", rangeStart, rangeEnd).Return(nil, nil)

	w := send(r, http.MethodGet, sessionURL("/analytics/sessions", "example.com", rangeStart, rangeEnd), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
	svc.AssertNotCalled(t, "Reconstruct", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
