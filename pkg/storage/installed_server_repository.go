package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcpmux/mcpmux/pkg/apperr"
	"github.com/mcpmux/mcpmux/pkg/domain"
)

// InstalledServerRepository is the sqlx-backed domain.InstalledServerRepository.
type InstalledServerRepository struct {
	db *DB
}

func NewInstalledServerRepository(db *DB) *InstalledServerRepository {
	return &InstalledServerRepository{db: db}
}

type installedServerRow struct {
	ID               string    `db:"id"`
	SpaceID          string    `db:"space_id"`
	ServerID         string    `db:"server_id"`
	Enabled          bool      `db:"enabled"`
	OAuthConnected   bool      `db:"oauth_connected"`
	InputValues      string    `db:"input_values"`
	EnvOverrides     string    `db:"env_overrides"`
	ExtraArgv        string    `db:"extra_argv"`
	ExtraHeaders     string    `db:"extra_headers"`
	CachedDefinition string    `db:"cached_definition"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func installedServerToRow(s domain.InstalledServer) (installedServerRow, error) {
	inputValues, err := json.Marshal(orEmptyMap(s.InputValues))
	if err != nil {
		return installedServerRow{}, err
	}
	envOverrides, err := json.Marshal(orEmptyMap(s.EnvOverrides))
	if err != nil {
		return installedServerRow{}, err
	}
	extraArgv, err := json.Marshal(orEmptySlice(s.ExtraArgv))
	if err != nil {
		return installedServerRow{}, err
	}
	extraHeaders, err := json.Marshal(orEmptyMap(s.ExtraHeaders))
	if err != nil {
		return installedServerRow{}, err
	}
	cachedDefinition, err := json.Marshal(s.CachedDefinition)
	if err != nil {
		return installedServerRow{}, err
	}
	return installedServerRow{
		ID:               s.ID,
		SpaceID:          s.SpaceID,
		ServerID:         s.ServerID,
		Enabled:          s.Enabled,
		OAuthConnected:   s.OAuthConnected,
		InputValues:      string(inputValues),
		EnvOverrides:     string(envOverrides),
		ExtraArgv:        string(extraArgv),
		ExtraHeaders:     string(extraHeaders),
		CachedDefinition: string(cachedDefinition),
		CreatedAt:        s.CreatedAt,
		UpdatedAt:        s.UpdatedAt,
	}, nil
}

func (r installedServerRow) toDomain() (domain.InstalledServer, error) {
	s := domain.InstalledServer{
		ID: r.ID, SpaceID: r.SpaceID, ServerID: r.ServerID,
		Enabled: r.Enabled, OAuthConnected: r.OAuthConnected,
		CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
	}
	if err := json.Unmarshal([]byte(r.InputValues), &s.InputValues); err != nil {
		return s, fmt.Errorf("storage: decode input_values: %w", err)
	}
	if err := json.Unmarshal([]byte(r.EnvOverrides), &s.EnvOverrides); err != nil {
		return s, fmt.Errorf("storage: decode env_overrides: %w", err)
	}
	if err := json.Unmarshal([]byte(r.ExtraArgv), &s.ExtraArgv); err != nil {
		return s, fmt.Errorf("storage: decode extra_argv: %w", err)
	}
	if err := json.Unmarshal([]byte(r.ExtraHeaders), &s.ExtraHeaders); err != nil {
		return s, fmt.Errorf("storage: decode extra_headers: %w", err)
	}
	if err := json.Unmarshal([]byte(r.CachedDefinition), &s.CachedDefinition); err != nil {
		return s, fmt.Errorf("storage: decode cached_definition: %w", err)
	}
	return s, nil
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func orEmptySlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func (r *InstalledServerRepository) Create(ctx context.Context, s domain.InstalledServer) (domain.InstalledServer, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now

	row, err := installedServerToRow(s)
	if err != nil {
		return domain.InstalledServer{}, fmt.Errorf("storage: encode installed server: %w", err)
	}
	const q = `INSERT INTO installed_servers
		(id, space_id, server_id, enabled, oauth_connected, input_values, env_overrides, extra_argv, extra_headers, cached_definition, created_at, updated_at)
		VALUES (:id, :space_id, :server_id, :enabled, :oauth_connected, :input_values, :env_overrides, :extra_argv, :extra_headers, :cached_definition, :created_at, :updated_at)`
	if _, err := r.db.SQL.NamedExecContext(ctx, q, row); err != nil {
		return domain.InstalledServer{}, fmt.Errorf("storage: create installed server: %w", err)
	}
	return s, nil
}

func (r *InstalledServerRepository) Get(ctx context.Context, key domain.Key) (domain.InstalledServer, error) {
	var row installedServerRow
	err := r.db.SQL.GetContext(ctx, &row, `SELECT * FROM installed_servers WHERE space_id = ? AND server_id = ?`,
		key.SpaceID, key.ServerID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.InstalledServer{}, apperr.New(apperr.NotFound, "installed server not found", err)
	}
	if err != nil {
		return domain.InstalledServer{}, fmt.Errorf("storage: get installed server: %w", err)
	}
	return row.toDomain()
}

func (r *InstalledServerRepository) ListForSpace(ctx context.Context, spaceID string) ([]domain.InstalledServer, error) {
	var rows []installedServerRow
	if err := r.db.SQL.SelectContext(ctx, &rows, `SELECT * FROM installed_servers WHERE space_id = ? ORDER BY created_at`, spaceID); err != nil {
		return nil, fmt.Errorf("storage: list installed servers: %w", err)
	}
	out := make([]domain.InstalledServer, 0, len(rows))
	for _, row := range rows {
		s, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *InstalledServerRepository) Update(ctx context.Context, s domain.InstalledServer) error {
	s.UpdatedAt = time.Now().UTC()
	row, err := installedServerToRow(s)
	if err != nil {
		return fmt.Errorf("storage: encode installed server: %w", err)
	}
	const q = `UPDATE installed_servers SET enabled=:enabled, oauth_connected=:oauth_connected,
		input_values=:input_values, env_overrides=:env_overrides, extra_argv=:extra_argv,
		extra_headers=:extra_headers, cached_definition=:cached_definition, updated_at=:updated_at
		WHERE space_id=:space_id AND server_id=:server_id`
	res, err := r.db.SQL.NamedExecContext(ctx, q, row)
	if err != nil {
		return fmt.Errorf("storage: update installed server: %w", err)
	}
	return requireRowAffected(res, apperr.New(apperr.NotFound, "installed server not found", nil))
}

func (r *InstalledServerRepository) SetOAuthConnected(ctx context.Context, key domain.Key, connected bool) error {
	res, err := r.db.SQL.ExecContext(ctx,
		`UPDATE installed_servers SET oauth_connected = ?, updated_at = ? WHERE space_id = ? AND server_id = ?`,
		connected, time.Now().UTC(), key.SpaceID, key.ServerID)
	if err != nil {
		return fmt.Errorf("storage: set oauth_connected: %w", err)
	}
	return requireRowAffected(res, apperr.New(apperr.NotFound, "installed server not found", nil))
}

func (r *InstalledServerRepository) Delete(ctx context.Context, key domain.Key) error {
	res, err := r.db.SQL.ExecContext(ctx, `DELETE FROM installed_servers WHERE space_id = ? AND server_id = ?`,
		key.SpaceID, key.ServerID)
	if err != nil {
		return fmt.Errorf("storage: delete installed server: %w", err)
	}
	return requireRowAffected(res, apperr.New(apperr.NotFound, "installed server not found", nil))
}
