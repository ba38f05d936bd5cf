package sessions

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// GeoIPLocator resolves countries from a MaxMind GeoIP2/GeoLite2 database.
type GeoIPLocator struct {
	db *geoip2.Reader
}

func OpenGeoIP(path string) (*GeoIPLocator, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database %s: %w", path, err)
	}
	return &GeoIPLocator{db: db}, nil
}

func (g *GeoIPLocator) Country(ip string) (string, bool) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return "", false
	}

	record, err := g.db.Country(parsed)
	if err != nil || record.Country.IsoCode == "" {
		return "", false
	}
	return record.Country.IsoCode, true
}

func (g *GeoIPLocator) Close() error {
	return g.db.Close()
}
