package models

// Principal identifies who is calling. The set of implementations is closed;
// switch over the concrete types below.
type Principal interface {
	principal()
}

// UserPrincipal is a person logged in with an access token.
type UserPrincipal struct {
	UserID int64
}

// DomainPrincipal is a site authenticated with a domain token.
type DomainPrincipal struct {
	DomainID int64
	OwnerID  int64
	Domain   string
}

// APIKeyPrincipal is a site authenticated with one of its API keys.
type APIKeyPrincipal struct {
	KeyID    int64
	DomainID int64
	OwnerID  int64
	Domain   string
}

func (UserPrincipal) principal()   {}
func (DomainPrincipal) principal() {}
func (APIKeyPrincipal) principal() {}

// PrincipalKind returns "user", "domain" or "api_key".
func PrincipalKind(p Principal) string {
	switch p.(type) {
	case UserPrincipal:
		return "user"
	case DomainPrincipal:
		return "domain"
	case APIKeyPrincipal:
		return "api_key"
	default:
		return "unknown"
	}
}
