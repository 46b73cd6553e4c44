package models

import "time"

// Tier is a named subscription level with its quota ceilings.
// Rows are immutable reference data looked up by name.
type Tier struct {
	Name         string
	MonthlyPrice float64
	RPM          int64 // requests per minute
	RPD          int64 // requests per day
	TPM          int64 // tokens per minute
	TPD          int64 // tokens per day
	TPMMonth     int64 // tokens per month
}

// Model is a selectable completion model. Each model belongs to
// exactly one provider family.
type Model struct {
	Name           string  `json:"name"`
	DisplayName    string  `json:"display_name"`
	ProviderFamily string  `json:"provider_family"`
	InputCost      float64 `json:"input_cost"`
	OutputCost     float64 `json:"output_cost"`
}

// UsageRecord is the cumulative consumption counter for one
// (user, model) pair. TokensUsed and RequestsMade only ever grow;
// LastUpdated is overwritten on every increment.
type UsageRecord struct {
	UserID       string
	ModelName    string
	TokensUsed   int64
	RequestsMade int64
	LastUpdated  time.Time
}

// Usage is the normalized token accounting for a single completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}
