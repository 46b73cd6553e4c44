package governance

import (
	"context"
	"fmt"
	"sync"

	"github.com/chaicafe/modelgate/internal/shared/clock"
	"github.com/chaicafe/modelgate/internal/shared/models"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu         sync.Mutex
	clk        clock.Clock
	tiers      map[string]models.Tier
	userTiers  map[string]string
	selections map[string]string
	access     map[string]bool                // tier + "|" + model
	usage      map[string]models.UsageRecord // user + "|" + model
}

func newMemStore(clk clock.Clock) *memStore {
	return &memStore{
		clk:        clk,
		tiers:      make(map[string]models.Tier),
		userTiers:  make(map[string]string),
		selections: make(map[string]string),
		access:     make(map[string]bool),
		usage:      make(map[string]models.UsageRecord),
	}
}

func (s *memStore) addTier(t models.Tier) {
	s.tiers[t.Name] = t
}

func (s *memStore) grant(tier, model string) {
	s.access[tier+"|"+model] = true
}

func (s *memStore) revoke(tier, model string) {
	delete(s.access, tier+"|"+model)
}

func (s *memStore) GetTier(ctx context.Context, name string) (*models.Tier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tiers[name]
	if !ok {
		return nil, fmt.Errorf("tier %q not found", name)
	}
	return &t, nil
}

func (s *memStore) GetUserTier(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userTiers[userID], nil
}

func (s *memStore) InsertUserTier(ctx context.Context, userID, tierName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.userTiers[userID]; !ok {
		s.userTiers[userID] = tierName
	}
	return nil
}

func (s *memStore) GetSelectedModel(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selections[userID], nil
}

func (s *memStore) SetSelectedModel(ctx context.Context, userID, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selections[userID] = model
	return nil
}

func (s *memStore) ClearSelectedModel(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.selections, userID)
	return nil
}

func (s *memStore) HasTierModelAccess(ctx context.Context, tierName, model string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.access[tierName+"|"+model], nil
}

func (s *memStore) ListTierModels(ctx context.Context, tierName string) ([]models.Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Model
	for key := range s.access {
		if len(key) > len(tierName) && key[:len(tierName)+1] == tierName+"|" {
			out = append(out, models.Model{Name: key[len(tierName)+1:]})
		}
	}
	return out, nil
}

func (s *memStore) GetUserUsage(ctx context.Context, userID string) ([]models.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.UsageRecord
	for _, rec := range s.usage {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *memStore) RecordUsage(ctx context.Context, userID, model string, tokens int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "|" + model
	rec, ok := s.usage[key]
	if !ok {
		rec = models.UsageRecord{UserID: userID, ModelName: model}
	}
	rec.TokensUsed += tokens
	rec.RequestsMade++
	rec.LastUpdated = s.clk.Now()
	s.usage[key] = rec
	return nil
}
