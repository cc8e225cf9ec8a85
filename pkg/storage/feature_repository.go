package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// ServerFeatureRepository is the sqlx-backed domain.ServerFeatureRepository.
type ServerFeatureRepository struct {
	db *DB
}

func NewServerFeatureRepository(db *DB) *ServerFeatureRepository {
	return &ServerFeatureRepository{db: db}
}

type serverFeatureRow struct {
	ID          string `db:"id"`
	SpaceID     string `db:"space_id"`
	ServerID    string `db:"server_id"`
	Type        string `db:"type"`
	Name        string `db:"name"`
	DisplayName string `db:"display_name"`
	Description string `db:"description"`
	Raw         string `db:"raw"`
	IsAvailable bool   `db:"is_available"`
}

func (row serverFeatureRow) toDomain() domain.ServerFeature {
	return domain.ServerFeature{
		ID: row.ID, SpaceID: row.SpaceID, ServerID: row.ServerID,
		Type: domain.FeatureType(row.Type), Name: row.Name,
		DisplayName: row.DisplayName, Description: row.Description,
		Raw: json.RawMessage(row.Raw), IsAvailable: row.IsAvailable,
	}
}

func featureToRow(f domain.ServerFeature) serverFeatureRow {
	raw := f.Raw
	if raw == nil {
		raw = json.RawMessage("{}")
	}
	return serverFeatureRow{
		ID: f.ID, SpaceID: f.SpaceID, ServerID: f.ServerID,
		Type: string(f.Type), Name: f.Name, DisplayName: f.DisplayName,
		Description: f.Description, Raw: string(raw), IsAvailable: f.IsAvailable,
	}
}

// Upsert inserts or replaces the cache entry for one discovered feature,
// keyed by (space, server, type, name) per 
func (r *ServerFeatureRepository) Upsert(ctx context.Context, f domain.ServerFeature) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	const q = `INSERT INTO server_features (id, space_id, server_id, type, name, display_name, description, raw, is_available)
		VALUES (:id, :space_id, :server_id, :type, :name, :display_name, :description, :raw, :is_available)
		ON CONFLICT (space_id, server_id, type, name) DO UPDATE SET
		 display_name=excluded.display_name, description=excluded.description, raw=excluded.raw, is_available=excluded.is_available`
	if _, err := r.db.SQL.NamedExecContext(ctx, q, featureToRow(f)); err != nil {
		return fmt.Errorf("storage: upsert server feature: %w", err)
	}
	return nil
}

func (r *ServerFeatureRepository) ListForServer(ctx context.Context, key domain.Key) ([]domain.ServerFeature, error) {
	var rows []serverFeatureRow
	err := r.db.SQL.SelectContext(ctx, &rows,
		`SELECT * FROM server_features WHERE space_id = ? AND server_id = ? ORDER BY type, name`,
		key.SpaceID, key.ServerID)
	if err != nil {
		return nil, fmt.Errorf("storage: list server features: %w", err)
	}
	return toFeatureDomainSlice(rows), nil
}

func (r *ServerFeatureRepository) ListForSpace(ctx context.Context, spaceID string) ([]domain.ServerFeature, error) {
	var rows []serverFeatureRow
	err := r.db.SQL.SelectContext(ctx, &rows,
		`SELECT * FROM server_features WHERE space_id = ? ORDER BY server_id, type, name`, spaceID)
	if err != nil {
		return nil, fmt.Errorf("storage: list space features: %w", err)
	}
	return toFeatureDomainSlice(rows), nil
}

func toFeatureDomainSlice(rows []serverFeatureRow) []domain.ServerFeature {
	out := make([]domain.ServerFeature, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out
}

// MarkUnavailable flips every cached feature of a server to unavailable
// without deleting them, so they can be marked available again on
// reconnect. Routing treats an unavailable feature as not found.
func (r *ServerFeatureRepository) MarkUnavailable(ctx context.Context, key domain.Key) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`UPDATE server_features SET is_available = 0 WHERE space_id = ? AND server_id = ?`,
		key.SpaceID, key.ServerID)
	if err != nil {
		return fmt.Errorf("storage: mark features unavailable: %w", err)
	}
	return nil
}

func (r *ServerFeatureRepository) MarkAvailable(ctx context.Context, key domain.Key) error {
	_, err := r.db.SQL.ExecContext(ctx,
		`UPDATE server_features SET is_available = 1 WHERE space_id = ? AND server_id = ?`,
		key.SpaceID, key.ServerID)
	if err != nil {
		return fmt.Errorf("storage: mark features available: %w", err)
	}
	return nil
}

func (r *ServerFeatureRepository) DeleteForServer(ctx context.Context, key domain.Key) error {
	_, err := r.db.SQL.ExecContext(ctx, `DELETE FROM server_features WHERE space_id = ? AND server_id = ?`,
		key.SpaceID, key.ServerID)
	if err != nil {
		return fmt.Errorf("storage: delete server features: %w", err)
	}
	return nil
}

func (r *ServerFeatureRepository) FindByURI(ctx context.Context, spaceID, uri string) (domain.ServerFeature, bool, error) {
	var row serverFeatureRow
	err := r.db.SQL.GetContext(ctx, &row,
		`SELECT * FROM server_features WHERE space_id = ? AND type = 'resource' AND name = ?`, spaceID, uri)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ServerFeature{}, false, nil
	}
	if err != nil {
		return domain.ServerFeature{}, false, fmt.Errorf("storage: find feature by uri: %w", err)
	}
	return row.toDomain(), true, nil
}
