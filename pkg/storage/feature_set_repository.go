package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcpmux/mcpmux/pkg/domain"
)

// FeatureSetRepository is the sqlx-backed domain.FeatureSetRepository.
type FeatureSetRepository struct {
	db *DB
}

func NewFeatureSetRepository(db *DB) *FeatureSetRepository { return &FeatureSetRepository{db: db} }

type featureSetRow struct {
	ID       string `db:"id"`
	SpaceID  string `db:"space_id"`
	Name     string `db:"name"`
	Type     string `db:"type"`
	ServerID string `db:"server_id"`
}

func (row featureSetRow) toDomain() domain.FeatureSet {
	return domain.FeatureSet{ID: row.ID, SpaceID: row.SpaceID, Name: row.Name, Type: domain.FeatureSetType(row.Type), ServerID: row.ServerID}
}

type featureSetMemberRow struct {
	ID              string `db:"id"`
	FeatureSetID    string `db:"feature_set_id"`
	Kind            string `db:"kind"`
	Exclude         bool   `db:"exclude"`
	ServerID        string `db:"server_id"`
	FeatureServerID string `db:"feature_server_id"`
	FeatureType     string `db:"feature_type"`
	FeatureName     string `db:"feature_name"`
}

func (row featureSetMemberRow) toDomain() domain.FeatureSetMember {
	return domain.FeatureSetMember{
		ID: row.ID, FeatureSetID: row.FeatureSetID, Kind: domain.MemberKind(row.Kind), Exclude: row.Exclude,
		ServerID: row.ServerID, FeatureServerID: row.FeatureServerID,
		FeatureType: domain.FeatureType(row.FeatureType), FeatureName: row.FeatureName,
	}
}

func memberToRow(m domain.FeatureSetMember) featureSetMemberRow {
	return featureSetMemberRow{
		ID: m.ID, FeatureSetID: m.FeatureSetID, Kind: string(m.Kind), Exclude: m.Exclude,
		ServerID: m.ServerID, FeatureServerID: m.FeatureServerID,
		FeatureType: string(m.FeatureType), FeatureName: m.FeatureName,
	}
}

func (r *FeatureSetRepository) Create(ctx context.Context, set domain.FeatureSet) (domain.FeatureSet, error) {
	if set.ID == "" {
		set.ID = uuid.NewString()
	}
	const q = `INSERT INTO feature_sets (id, space_id, name, type, server_id) VALUES (:id, :space_id, :name, :type, :server_id)`
	_, err := r.db.SQL.NamedExecContext(ctx, q, featureSetRow{ID: set.ID, SpaceID: set.SpaceID, Name: set.Name, Type: string(set.Type), ServerID: set.ServerID})
	if err != nil {
		return domain.FeatureSet{}, fmt.Errorf("storage: create feature set: %w", err)
	}
	return set, nil
}

func (r *FeatureSetRepository) Get(ctx context.Context, id string) (domain.FeatureSet, bool, error) {
	var row featureSetRow
	err := r.db.SQL.GetContext(ctx, &row, `SELECT * FROM feature_sets WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.FeatureSet{}, false, nil
	}
	if err != nil {
		return domain.FeatureSet{}, false, fmt.Errorf("storage: get feature set: %w", err)
	}
	return row.toDomain(), true, nil
}

func (r *FeatureSetRepository) ListForSpace(ctx context.Context, spaceID string) ([]domain.FeatureSet, error) {
	var rows []featureSetRow
	if err := r.db.SQL.SelectContext(ctx, &rows, `SELECT * FROM feature_sets WHERE space_id = ? ORDER BY type, name`, spaceID); err != nil {
		return nil, fmt.Errorf("storage: list feature sets: %w", err)
	}
	out := make([]domain.FeatureSet, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// EnsureBuiltins creates the space's "all" and "default" feature sets if
// they don't already exist, idempotently. Every space gets exactly one of
// each.
func (r *FeatureSetRepository) EnsureBuiltins(ctx context.Context, spaceID string) error {
	for _, t := range []domain.FeatureSetType{domain.FeatureSetAll, domain.FeatureSetDefault} {
		var count int
		if err := r.db.SQL.GetContext(ctx, &count, `SELECT COUNT(*) FROM feature_sets WHERE space_id = ? AND type = ?`, spaceID, string(t)); err != nil {
			return fmt.Errorf("storage: check builtin feature set: %w", err)
		}
		if count > 0 {
			continue
		}
		name := "All tools"
		if t == domain.FeatureSetDefault {
			name = "Default"
		}
		if _, err := r.Create(ctx, domain.FeatureSet{SpaceID: spaceID, Name: name, Type: t}); err != nil {
			return err
		}
	}
	return nil
}

// EnsureServerAll returns the space's server_all feature set tracking
// serverID's complete feature list, creating it on first use.
func (r *FeatureSetRepository) EnsureServerAll(ctx context.Context, spaceID, serverID string) (domain.FeatureSet, error) {
	var row featureSetRow
	err := r.db.SQL.GetContext(ctx, &row,
		`SELECT * FROM feature_sets WHERE space_id = ? AND server_id = ? AND type = 'server_all'`, spaceID, serverID)
	if err == nil {
		return row.toDomain(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.FeatureSet{}, fmt.Errorf("storage: get server_all feature set: %w", err)
	}
	return r.Create(ctx, domain.FeatureSet{SpaceID: spaceID, Name: serverID, Type: domain.FeatureSetServerAll, ServerID: serverID})
}

func (r *FeatureSetRepository) Members(ctx context.Context, featureSetID string) ([]domain.FeatureSetMember, error) {
	var rows []featureSetMemberRow
	if err := r.db.SQL.SelectContext(ctx, &rows, `SELECT * FROM feature_set_members WHERE feature_set_id = ?`, featureSetID); err != nil {
		return nil, fmt.Errorf("storage: list feature set members: %w", err)
	}
	out := make([]domain.FeatureSetMember, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// SetMembers replaces the full membership list of a feature set
// transactionally, since members have no natural stable key to diff
// against.
func (r *FeatureSetRepository) SetMembers(ctx context.Context, featureSetID string, members []domain.FeatureSetMember) error {
	tx, err := r.db.SQL.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin set-members: %w", err)
	}
	defer txClose(tx, &err, r.db.log)

	if _, err = tx.ExecContext(ctx, `DELETE FROM feature_set_members WHERE feature_set_id = ?`, featureSetID); err != nil {
		return fmt.Errorf("storage: clear feature set members: %w", err)
	}
	const q = `INSERT INTO feature_set_members (id, feature_set_id, kind, exclude, server_id, feature_server_id, feature_type, feature_name)
		VALUES (:id, :feature_set_id, :kind, :exclude, :server_id, :feature_server_id, :feature_type, :feature_name)`
	for _, m := range members {
		m.FeatureSetID = featureSetID
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if _, err = tx.NamedExecContext(ctx, q, memberToRow(m)); err != nil {
			return fmt.Errorf("storage: insert feature set member: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit set-members: %w", err)
	}
	return nil
}

func (r *FeatureSetRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.SQL.ExecContext(ctx, `DELETE FROM feature_sets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete feature set: %w", err)
	}
	return nil
}
