package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"

	"cloudboard/api/middleware"
	"cloudboard/api/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// asPrincipal stands in for AuthRequired in handler tests.
func asPrincipal(p models.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p != nil {
			middleware.SetPrincipal(c, p)
		}
		c.Next()
	}
}

func int64Ptr(v int64) *int64 { return &v }

type MockUsers struct{ mock.Mock }

func (m *MockUsers) CreateUser(ctx context.Context, email string, hashed []byte) (*models.User, error) {
	args := m.Called(ctx, email, hashed)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUsers) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUsers) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockUsers) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.User), args.Error(1)
}

type MockDomains struct{ mock.Mock }

func (m *MockDomains) CreateDomain(ctx context.Context, name string, ownerID int64) (*models.Domain, error) {
	args := m.Called(ctx, name, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Domain), args.Error(1)
}

func (m *MockDomains) GetDomainByName(ctx context.Context, name string) (*models.Domain, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Domain), args.Error(1)
}

func (m *MockDomains) GetDomainByID(ctx context.Context, id int64) (*models.Domain, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Domain), args.Error(1)
}

func (m *MockDomains) ListDomains(ctx context.Context, limit, offset int) ([]models.Domain, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.Domain), args.Error(1)
}

func (m *MockDomains) ListDomainsByOwner(ctx context.Context, ownerID int64) ([]models.Domain, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).([]models.Domain), args.Error(1)
}

type MockCredentials struct{ mock.Mock }

func (m *MockCredentials) CreateAPIKey(ctx context.Context, domainID int64, domain, keyHash string) (*models.APIKey, error) {
	args := m.Called(ctx, domainID, domain, keyHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.APIKey), args.Error(1)
}

func (m *MockCredentials) CreateRefreshToken(ctx context.Context, userID int64, tokenHash string, expiresAt time.Time) (*models.RefreshToken, error) {
	args := m.Called(ctx, userID, tokenHash, expiresAt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefreshToken), args.Error(1)
}

func (m *MockCredentials) GetActiveRefreshToken(ctx context.Context, tokenHash string, now time.Time) (*models.RefreshToken, error) {
	args := m.Called(ctx, tokenHash, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RefreshToken), args.Error(1)
}

func (m *MockCredentials) RevokeRefreshToken(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCredentials) RevokeUserRefreshTokens(ctx context.Context, userID int64) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

type MockEvents struct{ mock.Mock }

func (m *MockEvents) InsertEvents(ctx context.Context, events []models.RawEvent) error {
	return m.Called(ctx, events).Error(0)
}

func (m *MockEvents) ListEvents(ctx context.Context, domainIDs []int64, limit, offset int) ([]models.RawEvent, error) {
	args := m.Called(ctx, domainIDs, limit, offset)
	return args.Get(0).([]models.RawEvent), args.Error(1)
}

func (m *MockEvents) GetEvent(ctx context.Context, domainIDs []int64, id string) (*models.RawEvent, error) {
	args := m.Called(ctx, domainIDs, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RawEvent), args.Error(1)
}

func (m *MockEvents) LatestEvent(ctx context.Context, domainIDs []int64) (*models.RawEvent, error) {
	args := m.Called(ctx, domainIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RawEvent), args.Error(1)
}

func (m *MockEvents) DeleteEvent(ctx context.Context, domainIDs []int64, id string) error {
	return m.Called(ctx, domainIDs, id).Error(0)
}

type MockSessions struct{ mock.Mock }

func (m *MockSessions) Reconstruct(ctx context.Context, domain string, start, end time.Time) ([]models.Session, error) {
	args := m.Called(ctx, domain, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Session), args.Error(1)
}

func (m *MockSessions) Materialized(ctx context.Context, domain string, start, end time.Time) ([]models.Session, error) {
	args := m.Called(ctx, domain, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Session), args.Error(1)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }
