package tier

import (
	"fmt"

	"creator-ledger/pkg/config"

	"github.com/shopspring/decimal"
)

// Rate is one step of the rate table.
type Rate struct {
	Level       Level
	MinViews    uint64
	RatePerView decimal.Decimal
}

// RateTable is a versioned monotonic step function from lifetime views to a
// per-view rate. Levels are ordered lowest first.
type RateTable struct {
	Version string
	Levels  []Rate
}

func DefaultRateTable() RateTable {
	return RateTable{
		Version: "v1",
		Levels: []Rate{
			{Level: Bronze, MinViews: 0, RatePerView: decimal.RequireFromString("0.0008")},
			{Level: Silver, MinViews: 10_000, RatePerView: decimal.RequireFromString("0.005")},
			{Level: Gold, MinViews: 50_000, RatePerView: decimal.RequireFromString("0.01")},
			{Level: Platinum, MinViews: 200_000, RatePerView: decimal.RequireFromString("0.025")},
		},
	}
}

// NewRateTable validates that thresholds and rates strictly increase and the
// first level starts at zero views.
func NewRateTable(version string, levels []Rate) (RateTable, error) {
	if version == "" {
		return RateTable{}, fmt.Errorf("rate table version is required")
	}
	if len(levels) == 0 {
		return RateTable{}, fmt.Errorf("rate table %s has no levels", version)
	}
	if levels[0].MinViews != 0 {
		return RateTable{}, fmt.Errorf("rate table %s: first level must start at 0 views", version)
	}

	seen := make(map[Level]bool, len(levels))
	for i, l := range levels {
		if !l.Level.Valid() {
			return RateTable{}, fmt.Errorf("rate table %s: unknown level %q", version, l.Level)
		}
		if seen[l.Level] {
			return RateTable{}, fmt.Errorf("rate table %s: duplicate level %q", version, l.Level)
		}
		seen[l.Level] = true

		if !l.RatePerView.IsPositive() {
			return RateTable{}, fmt.Errorf("rate table %s: %s rate must be positive", version, l.Level)
		}
		if i == 0 {
			continue
		}
		prev := levels[i-1]
		if l.MinViews <= prev.MinViews {
			return RateTable{}, fmt.Errorf("rate table %s: %s threshold must exceed %s", version, l.Level, prev.Level)
		}
		if !l.RatePerView.GreaterThan(prev.RatePerView) {
			return RateTable{}, fmt.Errorf("rate table %s: %s rate must exceed %s", version, l.Level, prev.Level)
		}
	}

	return RateTable{Version: version, Levels: append([]Rate(nil), levels...)}, nil
}

// RateTableFromConfig reads LEDGER.RATES, falling back to the default table.
func RateTableFromConfig(cfg *config.Config) (RateTable, error) {
	def := DefaultRateTable()
	if cfg == nil {
		return def, nil
	}

	version := cfg.Ledger.RateVersion
	if version == "" {
		version = def.Version
	}
	if len(cfg.Ledger.Rates) == 0 {
		return NewRateTable(version, def.Levels)
	}

	levels := make([]Rate, 0, len(cfg.Ledger.Rates))
	for _, r := range cfg.Ledger.Rates {
		rate, err := decimal.NewFromString(r.RatePerView)
		if err != nil {
			return RateTable{}, fmt.Errorf("rate table %s: level %s: %w", version, r.Level, err)
		}
		levels = append(levels, Rate{Level: Level(r.Level), MinViews: r.MinViews, RatePerView: rate})
	}

	return NewRateTable(version, levels)
}

func (t RateTable) rank(level Level) int {
	for i, l := range t.Levels {
		if l.Level == level {
			return i
		}
	}
	return -1
}

func (t RateTable) Rate(level Level) (Rate, bool) {
	if i := t.rank(level); i >= 0 {
		return t.Levels[i], true
	}
	return Rate{}, false
}

// Next returns the level above level, if any.
func (t RateTable) Next(level Level) (Rate, bool) {
	i := t.rank(level)
	if i < 0 || i+1 >= len(t.Levels) {
		return Rate{}, false
	}
	return t.Levels[i+1], true
}

func (t RateTable) Lowest() Rate {
	return t.Levels[0]
}

// Higher reports whether a ranks strictly above b.
func (t RateTable) Higher(a, b Level) bool {
	return t.rank(a) > t.rank(b)
}
