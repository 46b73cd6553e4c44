package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/chaicafe/modelgate/internal/shared/models"
)

type DB struct {
	conn *sql.DB
}

// New creates a new database connection
func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// GetTier retrieves a tier's quota ceilings by name.
func (db *DB) GetTier(ctx context.Context, name string) (*models.Tier, error) {
	query := `
		SELECT tier_name, monthly_price, rpm, rpd, tpm, tpd, tpm_month
		FROM tiers
		WHERE tier_name = $1
	`

	var tier models.Tier
	err := db.conn.QueryRowContext(ctx, query, name).Scan(
		&tier.Name,
		&tier.MonthlyPrice,
		&tier.RPM,
		&tier.RPD,
		&tier.TPM,
		&tier.TPD,
		&tier.TPMMonth,
	)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tier %q not found", name)
	}
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return &tier, nil
}

// GetUserTier returns the user's tier name, or "" if the user has no
// tier row yet.
func (db *DB) GetUserTier(ctx context.Context, userID string) (string, error) {
	query := `SELECT tier_name FROM user_tiers WHERE user_id = $1`

	var tierName string
	err := db.conn.QueryRowContext(ctx, query, userID).Scan(&tierName)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("database error: %w", err)
	}
	return tierName, nil
}

// InsertUserTier creates the user's tier row.
func (db *DB) InsertUserTier(ctx context.Context, userID, tierName string) error {
	query := `
		INSERT INTO user_tiers (user_id, tier_name)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := db.conn.ExecContext(ctx, query, userID, tierName)
	return err
}

// GetSelectedModel returns the user's explicitly chosen model, or ""
// if no selection is stored.
func (db *DB) GetSelectedModel(ctx context.Context, userID string) (string, error) {
	query := `SELECT selected_model FROM user_settings WHERE user_id = $1`

	var selected sql.NullString
	err := db.conn.QueryRowContext(ctx, query, userID).Scan(&selected)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("database error: %w", err)
	}
	if !selected.Valid {
		return "", nil
	}
	return selected.String, nil
}

// SetSelectedModel stores the user's explicit model choice.
func (db *DB) SetSelectedModel(ctx context.Context, userID, model string) error {
	query := `
		INSERT INTO user_settings (user_id, selected_model)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET selected_model = EXCLUDED.selected_model
	`
	_, err := db.conn.ExecContext(ctx, query, userID, model)
	return err
}

// ClearSelectedModel removes the user's stored selection without
// touching the rest of their settings row.
func (db *DB) ClearSelectedModel(ctx context.Context, userID string) error {
	query := `UPDATE user_settings SET selected_model = NULL WHERE user_id = $1`
	_, err := db.conn.ExecContext(ctx, query, userID)
	return err
}

// HasTierModelAccess reports whether the tier may explicitly select
// the model.
func (db *DB) HasTierModelAccess(ctx context.Context, tierName, model string) (bool, error) {
	query := `
		SELECT 1 FROM tier_model_access
		WHERE tier_name = $1 AND model_name = $2
	`

	var one int
	err := db.conn.QueryRowContext(ctx, query, tierName, model).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("database error: %w", err)
	}
	return true, nil
}

// ListTierModels returns the models a tier may explicitly select.
func (db *DB) ListTierModels(ctx context.Context, tierName string) ([]models.Model, error) {
	query := `
		SELECT m.model_name, m.display_name, m.provider_family, m.input_cost, m.output_cost
		FROM models m
		JOIN tier_model_access tma ON tma.model_name = m.model_name
		WHERE tma.tier_name = $1
		ORDER BY m.model_name
	`

	rows, err := db.conn.QueryContext(ctx, query, tierName)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	return scanModels(rows)
}

// ListModelsByFamily returns all models belonging to a provider family.
func (db *DB) ListModelsByFamily(ctx context.Context, family string) ([]models.Model, error) {
	query := `
		SELECT model_name, display_name, provider_family, input_cost, output_cost
		FROM models
		WHERE provider_family = $1
		ORDER BY model_name
	`

	rows, err := db.conn.QueryContext(ctx, query, family)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	return scanModels(rows)
}

func scanModels(rows *sql.Rows) ([]models.Model, error) {
	var out []models.Model
	for rows.Next() {
		var m models.Model
		if err := rows.Scan(&m.Name, &m.DisplayName, &m.ProviderFamily, &m.InputCost, &m.OutputCost); err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return out, nil
}

// GetUserUsage returns every cumulative usage row for the user.
func (db *DB) GetUserUsage(ctx context.Context, userID string) ([]models.UsageRecord, error) {
	query := `
		SELECT user_id, model_name, tokens_used, requests_made, last_updated
		FROM user_usage
		WHERE user_id = $1
	`

	rows, err := db.conn.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var out []models.UsageRecord
	for rows.Next() {
		var rec models.UsageRecord
		if err := rows.Scan(&rec.UserID, &rec.ModelName, &rec.TokensUsed, &rec.RequestsMade, &rec.LastUpdated); err != nil {
			return nil, fmt.Errorf("database error: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	return out, nil
}

// RecordUsage upserts the cumulative counter for (user, model): a
// fresh row on first use, otherwise tokens are added, the request
// count grows by one and last_updated moves to now.
func (db *DB) RecordUsage(ctx context.Context, userID, model string, tokens int64) error {
	query := `
		INSERT INTO user_usage (user_id, model_name, tokens_used, requests_made, last_updated)
		VALUES ($1, $2, $3, 1, NOW())
		ON CONFLICT (user_id, model_name)
		DO UPDATE SET
			tokens_used = user_usage.tokens_used + $3,
			requests_made = user_usage.requests_made + 1,
			last_updated = NOW()
	`
	_, err := db.conn.ExecContext(ctx, query, userID, model, tokens)
	return err
}
