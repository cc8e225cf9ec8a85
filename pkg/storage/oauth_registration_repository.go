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

// OutboundOAuthRegistrationRepository is the sqlx-backed
// domain.OutboundOAuthRegistrationRepository.
type OutboundOAuthRegistrationRepository struct {
	db *DB
}

func NewOutboundOAuthRegistrationRepository(db *DB) *OutboundOAuthRegistrationRepository {
	return &OutboundOAuthRegistrationRepository{db: db}
}

type oauthRegistrationRow struct {
	ID             string  `db:"id"`
	SpaceID        string  `db:"space_id"`
	ServerID       string  `db:"server_id"`
	ServerURL      string  `db:"server_url"`
	ClientID       string  `db:"client_id"`
	RedirectURI    string  `db:"redirect_uri"`
	CachedMetadata *string `db:"cached_metadata"`
}

func (row oauthRegistrationRow) toDomain() (domain.OutboundOAuthRegistration, error) {
	reg := domain.OutboundOAuthRegistration{
		ID: row.ID, SpaceID: row.SpaceID, ServerID: row.ServerID,
		ServerURL: row.ServerURL, ClientID: row.ClientID, RedirectURI: row.RedirectURI,
	}
	if row.CachedMetadata != nil && *row.CachedMetadata != "" {
		var md domain.OAuthMetadata
		if err := json.Unmarshal([]byte(*row.CachedMetadata), &md); err != nil {
			return domain.OutboundOAuthRegistration{}, fmt.Errorf("storage: decode cached_metadata: %w", err)
		}
		reg.CachedMetadata = &md
	}
	return reg, nil
}

func (r *OutboundOAuthRegistrationRepository) Get(ctx context.Context, key domain.Key) (domain.OutboundOAuthRegistration, bool, error) {
	var row oauthRegistrationRow
	err := r.db.SQL.GetContext(ctx, &row, `SELECT * FROM outbound_oauth_registrations WHERE space_id = ? AND server_id = ?`,
		key.SpaceID, key.ServerID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.OutboundOAuthRegistration{}, false, nil
	}
	if err != nil {
		return domain.OutboundOAuthRegistration{}, false, fmt.Errorf("storage: get oauth registration: %w", err)
	}
	reg, err := row.toDomain()
	if err != nil {
		return domain.OutboundOAuthRegistration{}, false, err
	}
	return reg, true, nil
}

func (r *OutboundOAuthRegistrationRepository) Upsert(ctx context.Context, reg domain.OutboundOAuthRegistration) error {
	if reg.ID == "" {
		reg.ID = uuid.NewString()
	}
	var cachedMetadata *string
	if reg.CachedMetadata != nil {
		b, err := json.Marshal(reg.CachedMetadata)
		if err != nil {
			return fmt.Errorf("storage: encode cached_metadata: %w", err)
		}
		s := string(b)
		cachedMetadata = &s
	}

	const q = `INSERT INTO outbound_oauth_registrations (id, space_id, server_id, server_url, client_id, redirect_uri, cached_metadata)
		VALUES (:id, :space_id, :server_id, :server_url, :client_id, :redirect_uri, :cached_metadata)
		ON CONFLICT (space_id, server_id) DO UPDATE SET
		 server_url=excluded.server_url, client_id=excluded.client_id, redirect_uri=excluded.redirect_uri,
		 cached_metadata=excluded.cached_metadata`
	_, err := r.db.SQL.NamedExecContext(ctx, q, oauthRegistrationRow{
		ID: reg.ID, SpaceID: reg.SpaceID, ServerID: reg.ServerID, ServerURL: reg.ServerURL,
		ClientID: reg.ClientID, RedirectURI: reg.RedirectURI, CachedMetadata: cachedMetadata,
	})
	if err != nil {
		return fmt.Errorf("storage: upsert oauth registration: %w", err)
	}
	return nil
}

func (r *OutboundOAuthRegistrationRepository) Delete(ctx context.Context, key domain.Key) error {
	_, err := r.db.SQL.ExecContext(ctx, `DELETE FROM outbound_oauth_registrations WHERE space_id = ? AND server_id = ?`,
		key.SpaceID, key.ServerID)
	if err != nil {
		return fmt.Errorf("storage: delete oauth registration: %w", err)
	}
	return nil
}
