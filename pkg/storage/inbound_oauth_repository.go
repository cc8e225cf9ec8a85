package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// InboundOAuthRepository is the sqlx-backed domain.InboundOAuthRepository.
type InboundOAuthRepository struct {
	db *DB
}

func NewInboundOAuthRepository(db *DB) *InboundOAuthRepository { return &InboundOAuthRepository{db: db} }

type inboundCodeRow struct {
	Code                string `db:"code"`
	ClientID            string `db:"client_id"`
	RedirectURI         string `db:"redirect_uri"`
	Scope               string `db:"scope"`
	CodeChallenge       string `db:"code_challenge"`
	CodeChallengeMethod string `db:"code_challenge_method"`
	SpaceID             string `db:"space_id"`
	ExpiresAt           string `db:"expires_at"`
	Used                bool   `db:"used"`
}

func (r *InboundOAuthRepository) CreateCode(ctx context.Context, code domain.InboundAuthorizationCode) error {
	const q = `INSERT INTO inbound_oauth_codes
		(code, client_id, redirect_uri, scope, code_challenge, code_challenge_method, space_id, expires_at, used)
		VALUES (:code, :client_id, :redirect_uri, :scope, :code_challenge, :code_challenge_method, :space_id, :expires_at, :used)`
	_, err := r.db.SQL.NamedExecContext(ctx, q, inboundCodeRow{
		Code: code.Code, ClientID: code.ClientID, RedirectURI: code.RedirectURI, Scope: code.Scope,
		CodeChallenge: code.CodeChallenge, CodeChallengeMethod: code.CodeChallengeMethod,
		SpaceID: code.SpaceID, ExpiresAt: code.ExpiresAt.Format(timeLayout), Used: code.Used,
	})
	if err != nil {
		return fmt.Errorf("storage: create inbound authorization code: %w", err)
	}
	return nil
}

// ConsumeCode atomically marks a code used and returns whether it was still
// valid (present and unused) at the time of the call, preventing a code
// from being redeemed twice under concurrent requests.
func (r *InboundOAuthRepository) ConsumeCode(ctx context.Context, code string) (domain.InboundAuthorizationCode, bool, error) {
	tx, err := r.db.SQL.BeginTxx(ctx, nil)
	if err != nil {
		return domain.InboundAuthorizationCode{}, false, fmt.Errorf("storage: begin consume-code: %w", err)
	}
	defer txClose(tx, &err, r.db.log)

	var row inboundCodeRow
	err = tx.GetContext(ctx, &row, `SELECT * FROM inbound_oauth_codes WHERE code = ?`, code)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return domain.InboundAuthorizationCode{}, false, nil
	}
	if err != nil {
		return domain.InboundAuthorizationCode{}, false, fmt.Errorf("storage: get inbound authorization code: %w", err)
	}
	if row.Used {
		err = nil
		return domain.InboundAuthorizationCode{}, false, nil
	}

	if _, err = tx.ExecContext(ctx, `UPDATE inbound_oauth_codes SET used = 1 WHERE code = ?`, code); err != nil {
		return domain.InboundAuthorizationCode{}, false, fmt.Errorf("storage: mark code used: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return domain.InboundAuthorizationCode{}, false, fmt.Errorf("storage: commit consume-code: %w", err)
	}

	expiresAt, parseErr := parseTimeLayout(row.ExpiresAt)
	if parseErr != nil {
		return domain.InboundAuthorizationCode{}, false, parseErr
	}
	return domain.InboundAuthorizationCode{
		Code: row.Code, ClientID: row.ClientID, RedirectURI: row.RedirectURI, Scope: row.Scope,
		CodeChallenge: row.CodeChallenge, CodeChallengeMethod: row.CodeChallengeMethod,
		SpaceID: row.SpaceID, ExpiresAt: expiresAt, Used: true,
	}, true, nil
}

type inboundTokenRow struct {
	Token     string `db:"token"`
	Kind      string `db:"kind"`
	ClientID  string `db:"client_id"`
	Scope     string `db:"scope"`
	ExpiresAt string `db:"expires_at"`
	Revoked   bool   `db:"revoked"`
}

func (r *InboundOAuthRepository) CreateToken(ctx context.Context, token domain.InboundToken) error {
	const q = `INSERT INTO inbound_oauth_tokens (token, kind, client_id, scope, expires_at, revoked)
		VALUES (:token, :kind, :client_id, :scope, :expires_at, :revoked)`
	_, err := r.db.SQL.NamedExecContext(ctx, q, inboundTokenRow{
		Token: token.Token, Kind: token.Kind, ClientID: token.ClientID, Scope: token.Scope,
		ExpiresAt: token.ExpiresAt.Format(timeLayout), Revoked: token.Revoked,
	})
	if err != nil {
		return fmt.Errorf("storage: create inbound token: %w", err)
	}
	return nil
}

func (r *InboundOAuthRepository) GetToken(ctx context.Context, token string) (domain.InboundToken, bool, error) {
	var row inboundTokenRow
	err := r.db.SQL.GetContext(ctx, &row, `SELECT * FROM inbound_oauth_tokens WHERE token = ?`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.InboundToken{}, false, nil
	}
	if err != nil {
		return domain.InboundToken{}, false, fmt.Errorf("storage: get inbound token: %w", err)
	}
	expiresAt, err := parseTimeLayout(row.ExpiresAt)
	if err != nil {
		return domain.InboundToken{}, false, err
	}
	return domain.InboundToken{
		Token: row.Token, Kind: row.Kind, ClientID: row.ClientID, Scope: row.Scope,
		ExpiresAt: expiresAt, Revoked: row.Revoked,
	}, true, nil
}

func (r *InboundOAuthRepository) RevokeToken(ctx context.Context, token string) error {
	_, err := r.db.SQL.ExecContext(ctx, `UPDATE inbound_oauth_tokens SET revoked = 1 WHERE token = ?`, token)
	if err != nil {
		return fmt.Errorf("storage: revoke inbound token: %w", err)
	}
	return nil
}
