package governance

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaicafe/modelgate/internal/gateway/providers"
	"github.com/chaicafe/modelgate/internal/shared/clock"
	"github.com/chaicafe/modelgate/internal/shared/models"
)

// Limit labels identify which ceiling denied a request.
const (
	LimitDailyTokens    = "daily_tokens"
	LimitDailyRequests  = "daily_requests"
	LimitMinuteTokens   = "minute_tokens"
	LimitMinuteRequests = "minute_requests"
	LimitMonthTokens    = "month_tokens"
)

// Decision is the outcome of an admission check. Reason is
// human-readable and meant to be shown to the end user; Limit is the
// machine label of the violated ceiling.
type Decision struct {
	Allowed bool
	Limit   string
	Reason  string
}

// Ledger evaluates tier ceilings against recorded consumption and
// records new consumption.
//
// A usage row is one cumulative counter per (user, model) whose
// last_updated moves on every increment. Window sums therefore count
// whole historical totals whose single timestamp falls inside the
// window; they are not rolling aggregates. That behavior is kept
// deliberately and pinned by tests.
type Ledger struct {
	store Store
	clk   clock.Clock
	log   zerolog.Logger
}

// NewLedger creates a ledger.
func NewLedger(store Store, clk clock.Clock, log zerolog.Logger) *Ledger {
	return &Ledger{
		store: store,
		clk:   clk,
		log:   log.With().Str("component", "ledger").Logger(),
	}
}

type windowTotals struct {
	tokens   int64
	requests int64
}

func sameDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func sameMinute(a, b time.Time) bool {
	return a.Truncate(time.Minute).Equal(b.Truncate(time.Minute))
}

func sameMonth(a, b time.Time) bool {
	y1, m1, _ := a.Date()
	y2, m2, _ := b.Date()
	return y1 == y2 && m1 == m2
}

// totalsWithin sums whole usage rows whose last_updated matches the
// window containing now.
func totalsWithin(records []models.UsageRecord, now time.Time, match func(a, b time.Time) bool) windowTotals {
	var t windowTotals
	for _, rec := range records {
		if match(rec.LastUpdated.In(now.Location()), now) {
			t.tokens += rec.TokensUsed
			t.requests += rec.RequestsMade
		}
	}
	return t
}

// Admit decides whether a call may proceed. Free-tier calls to the
// self-hosted family are always admitted without consulting usage.
// Otherwise ceilings are checked in order day, minute, month against
// every usage row of the user; the first violation wins.
func (l *Ledger) Admit(ctx context.Context, userID, tierName string, family providers.Family) (Decision, error) {
	if tierName == FreeTier && family == providers.FamilyLocal {
		return Decision{Allowed: true}, nil
	}

	tier, err := l.store.GetTier(ctx, tierName)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load tier limits: %w", err)
	}
	records, err := l.store.GetUserUsage(ctx, userID)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to load usage: %w", err)
	}

	now := l.clk.Now()

	day := totalsWithin(records, now, sameDay)
	if day.tokens >= tier.TPD {
		return l.deny(userID, LimitDailyTokens, fmt.Sprintf("Daily token limit exceeded (%d/%d).", day.tokens, tier.TPD)), nil
	}
	if day.requests >= tier.RPD {
		return l.deny(userID, LimitDailyRequests, fmt.Sprintf("Daily request limit exceeded (%d/%d).", day.requests, tier.RPD)), nil
	}

	minute := totalsWithin(records, now, sameMinute)
	if minute.tokens >= tier.TPM {
		return l.deny(userID, LimitMinuteTokens, fmt.Sprintf("Per-minute token limit exceeded (%d/%d).", minute.tokens, tier.TPM)), nil
	}
	if minute.requests >= tier.RPM {
		return l.deny(userID, LimitMinuteRequests, fmt.Sprintf("Per-minute request limit exceeded (%d/%d).", minute.requests, tier.RPM)), nil
	}

	month := totalsWithin(records, now, sameMonth)
	if month.tokens >= tier.TPMMonth {
		return l.deny(userID, LimitMonthTokens, fmt.Sprintf("Monthly token limit exceeded (%d/%d).", month.tokens, tier.TPMMonth)), nil
	}

	return Decision{Allowed: true}, nil
}

func (l *Ledger) deny(userID, limit, reason string) Decision {
	l.log.Info().Str("user_id", userID).Str("limit", limit).Msg("admission denied")
	return Decision{Limit: limit, Reason: reason}
}

// Record adds a completed call's consumption to the (user, model)
// counter. Completions without a usable token count are not recorded.
func (l *Ledger) Record(ctx context.Context, userID, model string, tokens int64) error {
	if tokens <= 0 {
		return nil
	}
	if err := l.store.RecordUsage(ctx, userID, model, tokens); err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}
