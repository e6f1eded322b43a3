package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/openremoteio/remoteio/internal/types"
)

// SaveDevice inserts or updates a device instance configuration.
func (p *PostgresClient) SaveDevice(ctx context.Context, cfg types.InstanceConfig) (uuid.UUID, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal device config: %w", err)
	}

	var deviceID uuid.UUID
	err = p.pool.QueryRow(ctx, `
		INSERT INTO devices (device_name, config, enabled)
		VALUES ($1, $2, $3)
		ON CONFLICT (device_name)
		DO UPDATE SET
			config = EXCLUDED.config,
			enabled = EXCLUDED.enabled,
			updated_at = NOW()
		RETURNING id
	`, cfg.Name, cfgJSON, true).Scan(&deviceID)

	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to upsert device: %w", err)
	}

	return deviceID, nil
}

// LoadAllDevices loads every enabled device instance configuration.
func (p *PostgresClient) LoadAllDevices(ctx context.Context) ([]types.InstanceConfig, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT device_name, config
		FROM devices
		WHERE enabled = true
		ORDER BY device_name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	configs := make([]types.InstanceConfig, 0)

	for rows.Next() {
		var name string
		var cfgJSON []byte

		if err := rows.Scan(&name, &cfgJSON); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}

		var cfg types.InstanceConfig
		if err := json.Unmarshal(cfgJSON, &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal device config: %w", err)
		}
		cfg.Name = name

		configs = append(configs, cfg)
	}

	return configs, nil
}

// DeleteDevice removes a device from the database.
func (p *PostgresClient) DeleteDevice(ctx context.Context, name string) error {
	result, err := p.pool.Exec(ctx, `
		DELETE FROM devices
		WHERE device_name = $1
	`, name)

	if err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}

	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return nil
}
