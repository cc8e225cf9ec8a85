package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mcpmux/mcpmux/pkg/apperr"
	"github.com/mcpmux/mcpmux/pkg/domain"
	"github.com/mcpmux/mcpmux/pkg/secretstore"
)

// CredentialRepository is the sqlx-backed domain.CredentialRepository.
// Every sensitive column is passed through a secretstore.FieldEncryptor
// before it reaches the database, and decrypted only on the way back out,
// so the persistence layer is the only place plaintext secrets and their
// encrypted form ever cross.
type CredentialRepository struct {
	db  *DB
	enc *secretstore.FieldEncryptor
}

func NewCredentialRepository(db *DB, enc *secretstore.FieldEncryptor) *CredentialRepository {
	return &CredentialRepository{db: db, enc: enc}
}

type credentialRow struct {
	SpaceID             string     `db:"space_id"`
	ServerID            string     `db:"server_id"`
	Kind                string     `db:"kind"`
	APIKeyEnc           string     `db:"api_key_enc"`
	BasicUsernameEnc    string     `db:"basic_username_enc"`
	BasicPasswordEnc    string     `db:"basic_password_enc"`
	OAuthAccessTokenEnc string     `db:"oauth_access_token_enc"`
	OAuthRefreshTokenEnc string    `db:"oauth_refresh_token_enc"`
	OAuthExpiresAt      *time.Time `db:"oauth_expires_at"`
	OAuthTokenType      string     `db:"oauth_token_type"`
	OAuthScope          string     `db:"oauth_scope"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at"`
}

func (r *CredentialRepository) toRow(c domain.Credential) (credentialRow, error) {
	row := credentialRow{
		SpaceID: c.SpaceID, ServerID: c.ServerID, Kind: string(c.Kind),
		OAuthTokenType: c.OAuth.TokenType, OAuthScope: c.OAuth.Scope,
		OAuthExpiresAt: c.OAuth.ExpiresAt,
		CreatedAt:      c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}
	var err error
	if c.APIKey != "" {
		if row.APIKeyEnc, err = r.enc.Encrypt(c.APIKey); err != nil {
			return row, err
		}
	}
	if c.BasicUsername != "" {
		if row.BasicUsernameEnc, err = r.enc.Encrypt(c.BasicUsername); err != nil {
			return row, err
		}
	}
	if c.BasicPassword != "" {
		if row.BasicPasswordEnc, err = r.enc.Encrypt(c.BasicPassword); err != nil {
			return row, err
		}
	}
	if c.OAuth.AccessToken != "" {
		if row.OAuthAccessTokenEnc, err = r.enc.Encrypt(c.OAuth.AccessToken); err != nil {
			return row, err
		}
	}
	if c.OAuth.RefreshToken != "" {
		if row.OAuthRefreshTokenEnc, err = r.enc.Encrypt(c.OAuth.RefreshToken); err != nil {
			return row, err
		}
	}
	return row, nil
}

func (r *CredentialRepository) toDomain(row credentialRow) (domain.Credential, error) {
	c := domain.Credential{
		SpaceID: row.SpaceID, ServerID: row.ServerID, Kind: domain.CredentialKind(row.Kind),
		CreatedAt: row.CreatedAt, UpdatedAt: row.UpdatedAt,
		OAuth: domain.OAuthCredential{TokenType: row.OAuthTokenType, Scope: row.OAuthScope, ExpiresAt: row.OAuthExpiresAt},
	}
	var err error
	if row.APIKeyEnc != "" {
		if c.APIKey, err = r.enc.Decrypt(row.APIKeyEnc); err != nil {
			return domain.Credential{}, err
		}
	}
	if row.BasicUsernameEnc != "" {
		if c.BasicUsername, err = r.enc.Decrypt(row.BasicUsernameEnc); err != nil {
			return domain.Credential{}, err
		}
	}
	if row.BasicPasswordEnc != "" {
		if c.BasicPassword, err = r.enc.Decrypt(row.BasicPasswordEnc); err != nil {
			return domain.Credential{}, err
		}
	}
	if row.OAuthAccessTokenEnc != "" {
		if c.OAuth.AccessToken, err = r.enc.Decrypt(row.OAuthAccessTokenEnc); err != nil {
			return domain.Credential{}, err
		}
	}
	if row.OAuthRefreshTokenEnc != "" {
		if c.OAuth.RefreshToken, err = r.enc.Decrypt(row.OAuthRefreshTokenEnc); err != nil {
			return domain.Credential{}, err
		}
	}
	return c, nil
}

func (r *CredentialRepository) Get(ctx context.Context, key domain.Key) (domain.Credential, bool, error) {
	var row credentialRow
	err := r.db.SQL.GetContext(ctx, &row, `SELECT * FROM credentials WHERE space_id = ? AND server_id = ?`,
		key.SpaceID, key.ServerID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Credential{}, false, nil
	}
	if err != nil {
		return domain.Credential{}, false, fmt.Errorf("storage: get credential: %w", err)
	}
	c, err := r.toDomain(row)
	if err != nil {
		return domain.Credential{}, false, apperr.New(apperr.DecryptionFailed, "credential decryption failed", err)
	}
	return c, true, nil
}

func (r *CredentialRepository) Set(ctx context.Context, cred domain.Credential) error {
	now := time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	row, err := r.toRow(cred)
	if err != nil {
		return apperr.New(apperr.DecryptionFailed, "credential encryption failed", err)
	}

	const q = `INSERT INTO credentials
		(space_id, server_id, kind, api_key_enc, basic_username_enc, basic_password_enc,
		 oauth_access_token_enc, oauth_refresh_token_enc, oauth_expires_at, oauth_token_type, oauth_scope, created_at, updated_at)
		VALUES (:space_id, :server_id, :kind, :api_key_enc, :basic_username_enc, :basic_password_enc,
		 :oauth_access_token_enc, :oauth_refresh_token_enc, :oauth_expires_at, :oauth_token_type, :oauth_scope, :created_at, :updated_at)
		ON CONFLICT (space_id, server_id) DO UPDATE SET
		 kind=excluded.kind, api_key_enc=excluded.api_key_enc, basic_username_enc=excluded.basic_username_enc,
		 basic_password_enc=excluded.basic_password_enc, oauth_access_token_enc=excluded.oauth_access_token_enc,
		 oauth_refresh_token_enc=excluded.oauth_refresh_token_enc, oauth_expires_at=excluded.oauth_expires_at,
		 oauth_token_type=excluded.oauth_token_type, oauth_scope=excluded.oauth_scope, updated_at=excluded.updated_at`
	if _, err := r.db.SQL.NamedExecContext(ctx, q, row); err != nil {
		return fmt.Errorf("storage: set credential: %w", err)
	}
	return nil
}

func (r *CredentialRepository) Clear(ctx context.Context, key domain.Key) error {
	return r.Delete(ctx, key)
}

func (r *CredentialRepository) Delete(ctx context.Context, key domain.Key) error {
	_, err := r.db.SQL.ExecContext(ctx, `DELETE FROM credentials WHERE space_id = ? AND server_id = ?`,
		key.SpaceID, key.ServerID)
	if err != nil {
		return fmt.Errorf("storage: delete credential: %w", err)
	}
	return nil
}
