package governance

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chaicafe/modelgate/internal/gateway/metrics"
	"github.com/chaicafe/modelgate/internal/gateway/providers"
	"github.com/chaicafe/modelgate/internal/shared/models"
)

// ErrNotEntitled is returned when a user explicitly selects a model
// their tier may not use. It is only raised for explicit selection
// changes; chat turns degrade to a default instead.
var ErrNotEntitled = errors.New("tier is not entitled to model")

// LocalProbe reports whether the self-hosted server is reachable.
type LocalProbe interface {
	LocalAvailable(ctx context.Context) bool
}

// TurnRequest is one conversational turn to govern and dispatch.
// Model optionally overrides the stored selection for this turn; it
// is honored only when the user's tier is entitled to it.
type TurnRequest struct {
	UserID  string
	Model   string
	Prompt  string
	System  providers.SystemContext
	History []providers.Message
}

// TurnResult is the governed outcome. DeniedReason is set instead of
// Content when a quota ceiling rejected the call.
type TurnResult struct {
	Content      string
	Usage        models.Usage
	DeniedReason string
}

// Governor composes the guard, the ledger, the resolver and the
// dispatch adapters into the per-request control flow.
type Governor struct {
	store         Store
	guard         *Guard
	ledger        *Ledger
	resolver      *providers.Resolver
	dispatcher    *providers.Dispatcher
	probe         LocalProbe
	localModel    string
	hostedDefault string
	metrics       *metrics.Metrics
	log           zerolog.Logger
}

// NewGovernor wires the pipeline. metrics may be nil.
func NewGovernor(
	store Store,
	guard *Guard,
	ledger *Ledger,
	resolver *providers.Resolver,
	dispatcher *providers.Dispatcher,
	probe LocalProbe,
	localModel, hostedDefault string,
	m *metrics.Metrics,
	log zerolog.Logger,
) *Governor {
	return &Governor{
		store:         store,
		guard:         guard,
		ledger:        ledger,
		resolver:      resolver,
		dispatcher:    dispatcher,
		probe:         probe,
		localModel:    localModel,
		hostedDefault: hostedDefault,
		metrics:       m,
		log:           log.With().Str("component", "governor").Logger(),
	}
}

// Complete runs one turn through the pipeline: resolve tier and
// effective model, check admission, dispatch, record consumption.
//
// The admission read and the usage write are not atomic; two
// concurrent turns for the same user can both pass the check before
// either records. That slack is accepted, matching the check ordering
// the rest of the system expects.
func (g *Governor) Complete(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	res, err := g.guard.ResolveEffectiveModel(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	model := res.Model
	if req.Model != "" {
		approved, err := g.guard.Approve(ctx, res.Tier, req.Model)
		if err != nil {
			return nil, err
		}
		if approved != "" {
			model = approved
		}
	}
	if model == "" {
		model = DefaultModel(g.probe.LocalAvailable(ctx), g.localModel, g.hostedDefault)
	}

	family, err := g.resolver.Resolve(ctx, model)
	if err != nil {
		return nil, err
	}

	decision, err := g.ledger.Admit(ctx, req.UserID, res.Tier, family)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		if g.metrics != nil {
			g.metrics.Denials.WithLabelValues(res.Tier, decision.Limit).Inc()
		}
		return &TurnResult{DeniedReason: decision.Reason}, nil
	}
	if g.metrics != nil {
		g.metrics.Admissions.WithLabelValues(res.Tier).Inc()
	}

	out, err := g.dispatcher.Dispatch(ctx, family, providers.Request{
		Model:   model,
		Prompt:  req.Prompt,
		System:  req.System,
		History: req.History,
	})
	if err != nil {
		if g.metrics != nil {
			g.metrics.DispatchErrors.WithLabelValues(string(family)).Inc()
		}
		return nil, err
	}
	if g.metrics != nil {
		g.metrics.Dispatches.WithLabelValues(string(family)).Inc()
	}

	// Local calls by free users are unmetered.
	if !(res.Tier == FreeTier && family == providers.FamilyLocal) {
		if err := g.ledger.Record(ctx, req.UserID, model, int64(out.Usage.TotalTokens)); err != nil {
			// The reply already cost tokens; losing it over a
			// bookkeeping failure would be worse than the slack.
			g.log.Error().Err(err).
				Str("user_id", req.UserID).
				Str("model", model).
				Msg("failed to record usage")
		}
	}

	return &TurnResult{Content: out.Content, Usage: out.Usage}, nil
}

// SetUserModel stores an explicit model selection after verifying the
// user's tier entitlement.
func (g *Governor) SetUserModel(ctx context.Context, userID, model string) error {
	res, err := g.guard.ResolveEffectiveModel(ctx, userID)
	if err != nil {
		return err
	}
	approved, err := g.guard.Approve(ctx, res.Tier, model)
	if err != nil {
		return err
	}
	if approved == "" {
		return fmt.Errorf("%w: tier %q, model %q", ErrNotEntitled, res.Tier, model)
	}
	return g.store.SetSelectedModel(ctx, userID, approved)
}

// UserModel returns the user's effective tier and model resolution.
func (g *Governor) UserModel(ctx context.Context, userID string) (Resolution, error) {
	return g.guard.ResolveEffectiveModel(ctx, userID)
}

// TierModels lists the models a tier may explicitly select.
func (g *Governor) TierModels(ctx context.Context, tierName string) ([]models.Model, error) {
	return g.store.ListTierModels(ctx, tierName)
}
