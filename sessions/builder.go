package sessions

import (
	"cloudboard/api/models"
)

// DeviceInfo is what a user agent string reveals about the visitor.
type DeviceInfo struct {
	Device  string
	OS      string
	Browser string
}

// UserAgentParser turns a raw user agent into DeviceInfo. Implementations
// must be pure.
type UserAgentParser interface {
	Parse(userAgent string) DeviceInfo
}

// GeoLocator resolves an IP address to an ISO country code.
type GeoLocator interface {
	Country(ip string) (string, bool)
}

// Builder reduces one time-ordered bucket to a Session.
type Builder struct {
	ua  UserAgentParser
	geo GeoLocator
}

// NewBuilder returns a Builder. geo may be nil, in which case sessions carry
// no country.
func NewBuilder(ua UserAgentParser, geo GeoLocator) *Builder {
	return &Builder{ua: ua, geo: geo}
}

// Build expects events sorted ascending by timestamp (see SortByTime). The
// first event represents the whole session for device, OS, browser and
// attribution.
func (b *Builder) Build(ordered []models.RawEvent) (*models.Session, error) {
	if len(ordered) == 0 {
		return nil, ErrEmptyBucket
	}

	first := ordered[0]
	last := ordered[len(ordered)-1]
	info := b.ua.Parse(first.UserAgent)

	session := &models.Session{
		SessionID:  first.SessionID,
		UserID:     first.UserID,
		DomainID:   first.DomainID,
		Start:      first.Timestamp,
		End:        last.Timestamp,
		Duration:   last.Timestamp.Sub(first.Timestamp).Seconds(),
		EventCount: len(ordered),
		Device:     info.Device,
		OS:         info.OS,
		Browser:    info.Browser,
		Country:    b.country(ordered),
		EntryPath:  first.Pathname,
		ExitPath:   last.Pathname,
	}

	return session, nil
}

func (b *Builder) country(ordered []models.RawEvent) *string {
	if b.geo == nil {
		return nil
	}
	for _, event := range ordered {
		if event.IPAddress == "" {
			continue
		}
		if code, ok := b.geo.Country(event.IPAddress); ok {
			return &code
		}
		return nil
	}
	return nil
}
