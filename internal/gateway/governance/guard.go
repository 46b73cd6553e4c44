package governance

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// FreeTier is the tier assigned lazily on first contact. Free users
// never get an explicit model selection.
const FreeTier = "free"

// Resolution is the outcome of effective tier and model resolution.
// An empty Model signals the caller to substitute a default.
type Resolution struct {
	Tier  string
	Model string
}

// Guard resolves a user's subscription tier and validates the stored
// model selection against the tier's access list.
type Guard struct {
	store Store
	log   zerolog.Logger
}

// NewGuard creates a guard.
func NewGuard(store Store, log zerolog.Logger) *Guard {
	return &Guard{
		store: store,
		log:   log.With().Str("component", "guard").Logger(),
	}
}

// ResolveEffectiveModel looks up the user's tier (inserting a free
// row on first contact) and their stored selection. A selection the
// tier is no longer entitled to is cleared and treated as absent;
// entitlement never fails a chat turn.
func (g *Guard) ResolveEffectiveModel(ctx context.Context, userID string) (Resolution, error) {
	tier, err := g.store.GetUserTier(ctx, userID)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to look up user tier: %w", err)
	}
	if tier == "" {
		if err := g.store.InsertUserTier(ctx, userID, FreeTier); err != nil {
			return Resolution{}, fmt.Errorf("failed to create user tier: %w", err)
		}
		return Resolution{Tier: FreeTier}, nil
	}
	if tier == FreeTier {
		return Resolution{Tier: FreeTier}, nil
	}

	selected, err := g.store.GetSelectedModel(ctx, userID)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to look up selected model: %w", err)
	}
	if selected == "" {
		return Resolution{Tier: tier}, nil
	}

	ok, err := g.store.HasTierModelAccess(ctx, tier, selected)
	if err != nil {
		return Resolution{}, fmt.Errorf("failed to check model access: %w", err)
	}
	if !ok {
		if err := g.store.ClearSelectedModel(ctx, userID); err != nil {
			return Resolution{}, fmt.Errorf("failed to clear revoked selection: %w", err)
		}
		g.log.Info().
			Str("user_id", userID).
			Str("tier", tier).
			Str("model", selected).
			Msg("cleared selection no longer entitled")
		return Resolution{Tier: tier}, nil
	}

	return Resolution{Tier: tier, Model: selected}, nil
}

// Approve checks entitlement for an explicitly requested model and
// returns it when the tier may select it, or "" otherwise. No side
// effects.
func (g *Guard) Approve(ctx context.Context, tier, model string) (string, error) {
	if model == "" || tier == FreeTier {
		return "", nil
	}
	ok, err := g.store.HasTierModelAccess(ctx, tier, model)
	if err != nil {
		return "", fmt.Errorf("failed to check model access: %w", err)
	}
	if !ok {
		return "", nil
	}
	return model, nil
}

// DefaultModel picks the model substituted for an empty resolution: a
// reachable self-hosted backend wins, otherwise the fixed low-cost
// hosted default.
func DefaultModel(localUp bool, localModel, hostedDefault string) string {
	if localUp {
		return localModel
	}
	return hostedDefault
}
