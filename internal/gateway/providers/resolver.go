package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnroutableModel is returned when no provider family claims a
// model identifier. Callers must surface it, never pick a default.
var ErrUnroutableModel = errors.New("no provider family claims model")

// Catalog lists the aggregator-exposed model names used for exact
// routing matches.
type Catalog interface {
	ModelNames(ctx context.Context) []string
}

type keywordRule struct {
	family   Family
	keywords []string
}

// routingTable is evaluated top to bottom; ordering is load-bearing
// because keywords can overlap across families.
var routingTable = []keywordRule{
	{FamilyLocal, []string{"koboldcpp", "local"}},
	{FamilyGoogle, []string{"gemini"}},
	{FamilyOpenAI, []string{"gpt", "mistral", "deepseek"}},
}

// Resolver maps a model identifier to its owning provider family.
type Resolver struct {
	catalog Catalog
	table   []keywordRule
}

// NewResolver creates a resolver backed by the aggregator catalog.
func NewResolver(catalog Catalog) *Resolver {
	return &Resolver{catalog: catalog, table: routingTable}
}

// Resolve returns the family owning the model. Aggregator catalog
// entries match first, by exact case-insensitive name; otherwise the
// first keyword rule whose substring appears in the lowercased
// identifier wins.
func (r *Resolver) Resolve(ctx context.Context, model string) (Family, error) {
	lower := strings.ToLower(model)

	for _, name := range r.catalog.ModelNames(ctx) {
		if strings.ToLower(name) == lower {
			return FamilyOpenRouter, nil
		}
	}

	for _, rule := range r.table {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.family, nil
			}
		}
	}

	return "", fmt.Errorf("%w: %s", ErrUnroutableModel, model)
}
