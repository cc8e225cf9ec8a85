package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcpmux/mcpmux/pkg/apperr"
	"github.com/mcpmux/mcpmux/pkg/domain"
)

// InboundClientRepository is the sqlx-backed domain.InboundClientRepository.
type InboundClientRepository struct {
	db *DB
}

func NewInboundClientRepository(db *DB) *InboundClientRepository {
	return &InboundClientRepository{db: db}
}

type inboundClientRow struct {
	ClientID                string     `db:"client_id"`
	RegistrationType        string     `db:"registration_type"`
	DisplayName             string     `db:"display_name"`
	Alias                   string     `db:"alias"`
	RedirectURIs            string     `db:"redirect_uris"`
	GrantTypes              string     `db:"grant_types"`
	ResponseTypes           string     `db:"response_types"`
	TokenEndpointAuthMethod string     `db:"token_endpoint_auth_method"`
	Scope                   string     `db:"scope"`
	Approved                bool       `db:"approved"`
	ClientMetadataURL       string     `db:"client_metadata_url"`
	ClientMetadataCache     string     `db:"client_metadata_cache"`
	ConnectionMode          string     `db:"connection_mode"`
	LockedSpaceID           string     `db:"locked_space_id"`
	CreatedAt               time.Time  `db:"created_at"`
	UpdatedAt               time.Time  `db:"updated_at"`
	LastSeenAt              *time.Time `db:"last_seen_at"`
}

func clientToRow(c domain.InboundClient) (inboundClientRow, error) {
	redirectURIs, err := json.Marshal(orEmptySlice(c.RedirectURIs))
	if err != nil {
		return inboundClientRow{}, err
	}
	grantTypes, err := json.Marshal(orEmptySlice(c.GrantTypes))
	if err != nil {
		return inboundClientRow{}, err
	}
	responseTypes, err := json.Marshal(orEmptySlice(c.ResponseTypes))
	if err != nil {
		return inboundClientRow{}, err
	}
	var lastSeen *time.Time
	if !c.LastSeenAt.IsZero() {
		lastSeen = &c.LastSeenAt
	}
	return inboundClientRow{
		ClientID: c.ClientID, RegistrationType: string(c.RegistrationType),
		DisplayName: c.DisplayName, Alias: c.Alias,
		RedirectURIs: string(redirectURIs), GrantTypes: string(grantTypes), ResponseTypes: string(responseTypes),
		TokenEndpointAuthMethod: c.TokenEndpointAuthMethod, Scope: c.Scope, Approved: c.Approved,
		ClientMetadataURL: c.ClientMetadataURL, ClientMetadataCache: c.ClientMetadataCache,
		ConnectionMode: string(c.ConnectionMode), LockedSpaceID: c.LockedSpaceID,
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt, LastSeenAt: lastSeen,
	}, nil
}

func (row inboundClientRow) toDomain() (domain.InboundClient, error) {
	c := domain.InboundClient{
		ClientID: row.ClientID, RegistrationType: domain.ClientRegistrationType(row.RegistrationType),
		DisplayName: row.DisplayName, Alias: row.Alias,
		TokenEndpointAuthMethod: row.TokenEndpointAuthMethod, Scope: row.Scope, Approved: row.Approved,
		ClientMetadataURL: row.ClientMetadataURL, ClientMetadataCache: row.ClientMetadataCache,
		ConnectionMode: domain.ConnectionMode(row.ConnectionMode), LockedSpaceID: row.LockedSpaceID,
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
	}
	if row.LastSeenAt != nil {
		c.LastSeenAt = *row.LastSeenAt
	}
	if err := json.Unmarshal([]byte(row.RedirectURIs), &c.RedirectURIs); err != nil {
		return c, fmt.Errorf("storage: decode redirect_uris: %w", err)
	}
	if err := json.Unmarshal([]byte(row.GrantTypes), &c.GrantTypes); err != nil {
		return c, fmt.Errorf("storage: decode grant_types: %w", err)
	}
	if err := json.Unmarshal([]byte(row.ResponseTypes), &c.ResponseTypes); err != nil {
		return c, fmt.Errorf("storage: decode response_types: %w", err)
	}
	return c, nil
}

func (r *InboundClientRepository) Create(ctx context.Context, c domain.InboundClient) (domain.InboundClient, error) {
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	row, err := clientToRow(c)
	if err != nil {
		return domain.InboundClient{}, fmt.Errorf("storage: encode inbound client: %w", err)
	}
	const q = `INSERT INTO inbound_clients
		(client_id, registration_type, display_name, alias, redirect_uris, grant_types, response_types,
		 token_endpoint_auth_method, scope, approved, client_metadata_url, client_metadata_cache,
		 connection_mode, locked_space_id, created_at, updated_at, last_seen_at)
		VALUES (:client_id, :registration_type, :display_name, :alias, :redirect_uris, :grant_types, :response_types,
		 :token_endpoint_auth_method, :scope, :approved, :client_metadata_url, :client_metadata_cache,
		 :connection_mode, :locked_space_id, :created_at, :updated_at, :last_seen_at)`
	if _, err := r.db.SQL.NamedExecContext(ctx, q, row); err != nil {
		return domain.InboundClient{}, fmt.Errorf("storage: create inbound client: %w", err)
	}
	return c, nil
}

func (r *InboundClientRepository) Get(ctx context.Context, clientID string) (domain.InboundClient, bool, error) {
	var row inboundClientRow
	err := r.db.SQL.GetContext(ctx, &row, `SELECT * FROM inbound_clients WHERE client_id = ?`, clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.InboundClient{}, false, nil
	}
	if err != nil {
		return domain.InboundClient{}, false, fmt.Errorf("storage: get inbound client: %w", err)
	}
	c, err := row.toDomain()
	return c, err == nil, err
}

func (r *InboundClientRepository) List(ctx context.Context) ([]domain.InboundClient, error) {
	var rows []inboundClientRow
	if err := r.db.SQL.SelectContext(ctx, &rows, `SELECT * FROM inbound_clients ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("storage: list inbound clients: %w", err)
	}
	out := make([]domain.InboundClient, 0, len(rows))
	for _, row := range rows {
		c, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *InboundClientRepository) Update(ctx context.Context, c domain.InboundClient) error {
	c.UpdatedAt = time.Now().UTC()
	row, err := clientToRow(c)
	if err != nil {
		return fmt.Errorf("storage: encode inbound client: %w", err)
	}
	const q = `UPDATE inbound_clients SET display_name=:display_name, alias=:alias, redirect_uris=:redirect_uris,
		grant_types=:grant_types, response_types=:response_types, token_endpoint_auth_method=:token_endpoint_auth_method,
		scope=:scope, approved=:approved, client_metadata_url=:client_metadata_url, client_metadata_cache=:client_metadata_cache,
		connection_mode=:connection_mode, locked_space_id=:locked_space_id, updated_at=:updated_at
		WHERE client_id=:client_id`
	res, err := r.db.SQL.NamedExecContext(ctx, q, row)
	if err != nil {
		return fmt.Errorf("storage: update inbound client: %w", err)
	}
	return requireRowAffected(res, apperr.New(apperr.NotFound, "inbound client not found", nil))
}

func (r *InboundClientRepository) Delete(ctx context.Context, clientID string) error {
	res, err := r.db.SQL.ExecContext(ctx, `DELETE FROM inbound_clients WHERE client_id = ?`, clientID)
	if err != nil {
		return fmt.Errorf("storage: delete inbound client: %w", err)
	}
	return requireRowAffected(res, apperr.New(apperr.NotFound, "inbound client not found", nil))
}

func (r *InboundClientRepository) Touch(ctx context.Context, clientID string, at time.Time) error {
	_, err := r.db.SQL.ExecContext(ctx, `UPDATE inbound_clients SET last_seen_at = ? WHERE client_id = ?`, at, clientID)
	if err != nil {
		return fmt.Errorf("storage: touch inbound client: %w", err)
	}
	return nil
}

func (r *InboundClientRepository) GrantsForClient(ctx context.Context, clientID, spaceID string) ([]string, error) {
	var ids []string
	err := r.db.SQL.SelectContext(ctx, &ids,
		`SELECT feature_set_id FROM grants WHERE client_id = ? AND space_id = ?`, clientID, spaceID)
	if err != nil {
		return nil, fmt.Errorf("storage: list grants: %w", err)
	}
	return ids, nil
}

// SetGrants replaces a client's full grant list for one space, since grants
// have no natural per-row identity worth diffing.
func (r *InboundClientRepository) SetGrants(ctx context.Context, clientID, spaceID string, featureSetIDs []string) error {
	tx, err := r.db.SQL.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin set-grants: %w", err)
	}
	defer txClose(tx, &err, r.db.log)

	if _, err = tx.ExecContext(ctx, `DELETE FROM grants WHERE client_id = ? AND space_id = ?`, clientID, spaceID); err != nil {
		return fmt.Errorf("storage: clear grants: %w", err)
	}
	for _, fsID := range featureSetIDs {
		if _, err = tx.ExecContext(ctx, `INSERT INTO grants (client_id, space_id, feature_set_id) VALUES (?, ?, ?)`,
			clientID, spaceID, fsID); err != nil {
			return fmt.Errorf("storage: insert grant: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit set-grants: %w", err)
	}
	return nil
}
