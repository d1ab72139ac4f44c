package geoip

import (
	"context"
	"errors"
	"net"
	"os"

	"creator-ledger/pkg/config"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("geoip", fx.Provide(ProvideLocator))

type Location struct {
	CountryCode string `json:"country_code,omitempty"`
	City        string `json:"city,omitempty"`
}

// Locator resolves an IP to a coarse location. Lookups that fail return nil.
type Locator interface {
	Lookup(ip string) *Location
}

type Reader struct {
	db *geoip2.Reader
}

type noop struct{}

func (noop) Lookup(string) *Location { return nil }

// ProvideLocator opens the MMDB at LEDGER.GEOIP_DATABASE. A missing path or
// file disables enrichment instead of failing startup.
func ProvideLocator(lc fx.Lifecycle, cfg *config.Config) (Locator, error) {
	path := cfg.Ledger.GeoIPDatabase
	if path == "" {
		zap.L().Info("[GeoIP] no database configured, enrichment disabled")
		return noop{}, nil
	}

	loc, err := Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			zap.L().Warn("[GeoIP] database not found, enrichment disabled", zap.String("path", path))
			return noop{}, nil
		}
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return loc.db.Close()
		},
	})

	return loc, nil
}

func Open(path string) (*Reader, error) {
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, err
	}
	return &Reader{db: db}, nil
}

func (r *Reader) Lookup(ipStr string) *Location {
	if r == nil || r.db == nil {
		return nil
	}

	host, _, err := net.SplitHostPort(ipStr)
	if err != nil {
		host = ipStr
	}

	ip := net.ParseIP(host)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() {
		return nil
	}

	record, err := r.db.City(ip)
	if err != nil {
		return nil
	}

	loc := &Location{
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
	}
	if loc.CountryCode == "" && loc.City == "" {
		return nil
	}
	return loc
}
