package governance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaicafe/modelgate/internal/gateway/providers"
	"github.com/chaicafe/modelgate/internal/shared/clock"
	"github.com/chaicafe/modelgate/internal/shared/models"
)

type fakeProbe struct {
	up bool
}

func (p fakeProbe) LocalAvailable(ctx context.Context) bool {
	return p.up
}

type fakeCatalog struct {
	names []string
}

func (c fakeCatalog) ModelNames(ctx context.Context) []string {
	return c.names
}

type fakeBackend struct {
	family    providers.Family
	content   string
	usage     models.Usage
	err       error
	calls     int
	lastModel string
}

func (b *fakeBackend) Family() providers.Family {
	return b.family
}

func (b *fakeBackend) Complete(ctx context.Context, req providers.Request) (*providers.Result, error) {
	b.calls++
	b.lastModel = req.Model
	if b.err != nil {
		return nil, b.err
	}
	return &providers.Result{Content: b.content, Usage: b.usage}, nil
}

type governorFixture struct {
	governor *Governor
	store    *memStore
	clk      *clock.Fake
	local    *fakeBackend
	openai   *fakeBackend
}

func newGovernorFixture(t *testing.T, localUp bool) *governorFixture {
	t.Helper()
	clk := clock.NewFake(time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC))
	store := newMemStore(clk)
	store.addTier(models.Tier{Name: FreeTier, RPM: 2, RPD: 20, TPM: 2000, TPD: 20000, TPMMonth: 200000})
	store.addTier(goldTier)

	local := &fakeBackend{family: providers.FamilyLocal, content: "local reply", usage: models.Usage{InputTokens: 5, OutputTokens: 5, TotalTokens: 10}}
	openaiBackend := &fakeBackend{family: providers.FamilyOpenAI, content: "hosted reply", usage: models.Usage{InputTokens: 10, OutputTokens: 10, TotalTokens: 20}}

	guard := NewGuard(store, zerolog.Nop())
	ledger := NewLedger(store, clk, zerolog.Nop())
	resolver := providers.NewResolver(fakeCatalog{})
	dispatcher := providers.NewDispatcher(local, openaiBackend)

	governor := NewGovernor(
		store, guard, ledger, resolver, dispatcher, fakeProbe{up: localUp},
		"koboldcpp", "mistral-small-latest", nil, zerolog.Nop(),
	)
	return &governorFixture{governor: governor, store: store, clk: clk, local: local, openai: openaiBackend}
}

func TestComplete_FreeUserLocalDefaultUnmetered(t *testing.T) {
	f := newGovernorFixture(t, true)

	result, err := f.governor.Complete(context.Background(), TurnRequest{
		UserID: "user-1",
		Prompt: "hello",
	})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if result.Content != "local reply" {
		t.Errorf("Content = %q", result.Content)
	}
	if f.local.lastModel != "koboldcpp" {
		t.Errorf("dispatched model = %q, want the local default", f.local.lastModel)
	}

	// Free-tier local calls are never recorded.
	recs, _ := f.store.GetUserUsage(context.Background(), "user-1")
	if len(recs) != 0 {
		t.Errorf("got %d usage rows, want none", len(recs))
	}
}

func TestComplete_FreeUserFallsBackToHostedDefault(t *testing.T) {
	f := newGovernorFixture(t, false)

	result, err := f.governor.Complete(context.Background(), TurnRequest{
		UserID: "user-1",
		Prompt: "hello",
	})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if result.Content != "hosted reply" {
		t.Errorf("Content = %q", result.Content)
	}
	if f.openai.lastModel != "mistral-small-latest" {
		t.Errorf("dispatched model = %q, want the hosted default", f.openai.lastModel)
	}

	// Hosted calls are metered even for the free tier.
	recs, _ := f.store.GetUserUsage(context.Background(), "user-1")
	if len(recs) != 1 || recs[0].TokensUsed != 20 {
		t.Errorf("usage rows = %+v, want one row with 20 tokens", recs)
	}
}

func TestComplete_PaidSelectionDispatchedAndRecorded(t *testing.T) {
	f := newGovernorFixture(t, true)
	f.store.userTiers["user-1"] = "gold"
	f.store.selections["user-1"] = "mistral-medium-latest"
	f.store.grant("gold", "mistral-medium-latest")

	result, err := f.governor.Complete(context.Background(), TurnRequest{UserID: "user-1", Prompt: "hello"})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if result.Content != "hosted reply" || result.Usage.TotalTokens != 20 {
		t.Errorf("result = %+v", result)
	}
	if f.openai.lastModel != "mistral-medium-latest" {
		t.Errorf("dispatched model = %q", f.openai.lastModel)
	}

	// A second turn increments the same row.
	f.clk.Advance(time.Minute)
	if _, err := f.governor.Complete(context.Background(), TurnRequest{UserID: "user-1", Prompt: "again"}); err != nil {
		t.Fatalf("second Complete returned error: %v", err)
	}
	recs, _ := f.store.GetUserUsage(context.Background(), "user-1")
	if len(recs) != 1 || recs[0].TokensUsed != 40 || recs[0].RequestsMade != 2 {
		t.Errorf("usage rows = %+v, want one row with 40 tokens and 2 requests", recs)
	}
}

func TestComplete_TurnOverrideRequiresEntitlement(t *testing.T) {
	f := newGovernorFixture(t, true)
	f.store.userTiers["user-1"] = "gold"
	f.store.grant("gold", "gpt-4o-mini")

	// Entitled override is honored for this turn.
	if _, err := f.governor.Complete(context.Background(), TurnRequest{
		UserID: "user-1", Model: "gpt-4o-mini", Prompt: "hello",
	}); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if f.openai.lastModel != "gpt-4o-mini" {
		t.Errorf("dispatched model = %q, want the override", f.openai.lastModel)
	}

	// An unentitled override degrades to the default, never errors.
	if _, err := f.governor.Complete(context.Background(), TurnRequest{
		UserID: "user-1", Model: "gemini-2.5-pro", Prompt: "hello",
	}); err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if f.local.lastModel != "koboldcpp" {
		t.Errorf("dispatched model = %q, want the local default", f.local.lastModel)
	}
}

func TestComplete_QuotaDenialSkipsDispatch(t *testing.T) {
	f := newGovernorFixture(t, true)
	f.store.userTiers["user-1"] = "gold"
	f.store.selections["user-1"] = "mistral-medium-latest"
	f.store.grant("gold", "mistral-medium-latest")
	seedUsage(f.store, "user-1", "mistral-medium-latest", goldTier.TPD, 1, f.clk.Now().Add(-2*time.Hour))

	result, err := f.governor.Complete(context.Background(), TurnRequest{UserID: "user-1", Prompt: "hello"})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if result.DeniedReason == "" {
		t.Fatal("expected a denial reason")
	}
	if f.openai.calls != 0 {
		t.Errorf("backend called %d times despite denial", f.openai.calls)
	}
}

func TestComplete_UnroutableModelSurfaces(t *testing.T) {
	f := newGovernorFixture(t, true)
	f.store.userTiers["user-1"] = "gold"
	f.store.selections["user-1"] = "mystery-model"
	f.store.grant("gold", "mystery-model")

	_, err := f.governor.Complete(context.Background(), TurnRequest{UserID: "user-1", Prompt: "hello"})
	if !errors.Is(err, providers.ErrUnroutableModel) {
		t.Errorf("error = %v, want ErrUnroutableModel", err)
	}
}

func TestComplete_DispatchFailurePropagatesUnrecorded(t *testing.T) {
	f := newGovernorFixture(t, false)
	f.openai.err = errors.New("upstream exploded")

	_, err := f.governor.Complete(context.Background(), TurnRequest{UserID: "user-1", Prompt: "hello"})
	if !errors.Is(err, f.openai.err) {
		t.Fatalf("error = %v, want the dispatch failure", err)
	}

	recs, _ := f.store.GetUserUsage(context.Background(), "user-1")
	if len(recs) != 0 {
		t.Errorf("usage recorded for a failed dispatch: %+v", recs)
	}
}

func TestSetUserModel(t *testing.T) {
	f := newGovernorFixture(t, true)
	f.store.userTiers["user-1"] = "gold"
	f.store.grant("gold", "mistral-medium-latest")

	if err := f.governor.SetUserModel(context.Background(), "user-1", "mistral-medium-latest"); err != nil {
		t.Fatalf("SetUserModel returned error: %v", err)
	}
	if f.store.selections["user-1"] != "mistral-medium-latest" {
		t.Errorf("selection = %q", f.store.selections["user-1"])
	}

	err := f.governor.SetUserModel(context.Background(), "user-1", "gemini-2.5-pro")
	if !errors.Is(err, ErrNotEntitled) {
		t.Errorf("error = %v, want ErrNotEntitled", err)
	}

	// Free users cannot select at all.
	err = f.governor.SetUserModel(context.Background(), "user-2", "mistral-medium-latest")
	if !errors.Is(err, ErrNotEntitled) {
		t.Errorf("free-tier error = %v, want ErrNotEntitled", err)
	}
}
