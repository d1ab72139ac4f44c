package fraud

import (
	"context"
	"errors"
	"strings"
	"time"

	"creator-ledger/pkg/celengine"
	"creator-ledger/pkg/config"
	"creator-ledger/pkg/db/option"
	"creator-ledger/pkg/errutil"
	"creator-ledger/pkg/geoip"
	"creator-ledger/pkg/logger"
	"creator-ledger/pkg/metrics"
	"creator-ledger/pkg/middleware"
	"creator-ledger/pkg/repository"
	"creator-ledger/pkg/task"
	"creator-ledger/pkg/taskname"

	"github.com/bwmarrin/snowflake"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DefaultSuspiciousRule = "distinct_ips_24h > 5"
	auditWindow           = 24 * time.Hour
)

var ErrIPRequired = errutil.Sentinel(errutil.StatusValidationFailed, "IP_REQUIRED", "ip address is required")

// signalSample fixes the attribute shape rules are compiled against.
var signalSample = map[string]any{
	"distinct_ips_24h": int64(0),
	"country_changed":  false,
	"new_ip":           false,
	"action":           "",
}

// Auditor keeps the IP log. It is advisory and never gates an operation.
type Auditor struct {
	db       *gorm.DB
	node     *snowflake.Node
	locator  geoip.Locator
	enqueuer task.Enqueuer
	rule     *celengine.Rule
	now      func() time.Time

	logs repository.Repository[IPLog]
}

type AuditorParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Locator  geoip.Locator    `optional:"true"`
	Enqueuer task.Enqueuer    `optional:"true"`
	Config   *config.Config   `optional:"true"`
	Clock    func() time.Time `optional:"true"`
}

func NewAuditor(p AuditorParams) (*Auditor, error) {
	expr := DefaultSuspiciousRule
	if p.Config != nil && strings.TrimSpace(p.Config.Ledger.SuspiciousIPRule) != "" {
		expr = p.Config.Ledger.SuspiciousIPRule
	}
	rule, err := celengine.Compile(expr, signalSample)
	if err != nil {
		return nil, err
	}

	a := &Auditor{
		db:       p.DB,
		node:     p.Node,
		locator:  p.Locator,
		enqueuer: p.Enqueuer,
		rule:     rule,
		now:      p.Clock,

		logs: repository.ProvideStore[IPLog](p.DB),
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// RecordIP appends a log entry classified against the creator's last 24h.
func (a *Auditor) RecordIP(ctx context.Context, act middleware.Activity) (*IPLog, error) {
	creatorID := strings.TrimSpace(act.CreatorID)
	if creatorID == "" {
		return nil, ErrCreatorRequired
	}
	ip := strings.TrimSpace(act.IP)
	if ip == "" {
		return nil, ErrIPRequired
	}

	now := a.now().UTC()
	entry := &IPLog{
		ID:        a.node.Generate().String(),
		CreatorID: creatorID,
		IP:        ip,
		Action:    act.Action,
		UserAgent: act.UserAgent,
		CreatedAt: now,
	}
	if a.locator != nil {
		if loc := a.locator.Lookup(ip); loc != nil {
			entry.CountryCode = loc.CountryCode
			entry.City = loc.City
		}
	}

	recent, err := a.logs.Find(ctx, &IPLog{CreatorID: creatorID},
		option.ApplyOperator(option.Condition{Field: "created_at", Operator: option.GTE, Value: now.Add(-auditWindow)}),
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
	)
	if err != nil {
		return nil, errutil.Store("failed to read ip logs", err)
	}

	signals := classifySignals(entry, recent)
	suspicious, err := a.rule.Eval(signals)
	if err != nil {
		logger.Ctx(ctx).Warn("ip rule evaluation failed", zap.String("rule", a.rule.String()), zap.Error(err))
		suspicious = false
	}
	entry.IsSuspicious = suspicious
	entry.Signals = datatypes.JSONMap(signals)

	if err := a.logs.Create(ctx, entry); err != nil {
		return nil, errutil.Store("failed to record ip log", err)
	}

	if suspicious {
		metrics.SuspiciousIPs.Inc()
		logger.Ctx(ctx).Warn("suspicious creator activity",
			zap.String("creator_id", creatorID),
			zap.String("ip", ip),
			zap.String("action", act.Action),
			zap.Any("signals", signals),
		)
	}
	return entry, nil
}

// classifySignals builds rule attributes; recent is newest first.
func classifySignals(entry *IPLog, recent []*IPLog) map[string]any {
	ips := map[string]struct{}{entry.IP: {}}
	seen := false
	lastCountry := ""
	for _, r := range recent {
		ips[r.IP] = struct{}{}
		if r.IP == entry.IP {
			seen = true
		}
		if lastCountry == "" && r.CountryCode != "" {
			lastCountry = r.CountryCode
		}
	}
	return map[string]any{
		"distinct_ips_24h": int64(len(ips)),
		"country_changed":  lastCountry != "" && entry.CountryCode != "" && lastCountry != entry.CountryCode,
		"new_ip":           !seen,
		"action":           entry.Action,
	}
}

// RecordActivity queues the activity for the worker and records inline when
// the queue is unavailable. Failures are logged only.
func (a *Auditor) RecordActivity(ctx context.Context, act middleware.Activity) {
	err := task.Offload(ctx, a.enqueuer, taskname.FraudIPLog, func() (*asynq.Task, error) { return NewIPLogTask(act) })
	if err == nil {
		return
	}
	if !errors.Is(err, task.ErrNoEnqueuer) {
		logger.Ctx(ctx).Warn("ip log not queued, recording inline", zap.Error(err))
	}

	if _, err := a.RecordIP(ctx, act); err != nil {
		logger.Ctx(ctx).Warn("ip log dropped", zap.String("creator_id", act.CreatorID), zap.Error(err))
	}
}

type ListIPLogsParams struct {
	CreatorID      string
	Since          time.Time
	SuspiciousOnly bool
	Limit          int
}

// ListIPLogs returns logs newer than Since, newest first. A zero Since means
// the last 24 hours.
func (a *Auditor) ListIPLogs(ctx context.Context, p ListIPLogsParams) ([]*IPLog, error) {
	since := p.Since
	if since.IsZero() {
		since = a.now().UTC().Add(-auditWindow)
	}
	conds := []option.Condition{{Field: "created_at", Operator: option.GTE, Value: since}}
	if p.SuspiciousOnly {
		conds = append(conds, option.Condition{Field: "is_suspicious", Operator: option.EQ, Value: true})
	}

	logs, err := a.logs.Find(ctx, &IPLog{CreatorID: p.CreatorID},
		option.ApplyOperator(conds...),
		option.WithSortBy(option.QuerySortBy{OrderBy: "desc"}),
		option.WithLimit(p.Limit),
	)
	if err != nil {
		return nil, errutil.Store("failed to list ip logs", err)
	}
	return logs, nil
}
