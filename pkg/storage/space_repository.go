package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mcpmux/mcpmux/pkg/apperr"
	"github.com/mcpmux/mcpmux/pkg/domain"
)

// SpaceRepository is the sqlx-backed domain.SpaceRepository.
type SpaceRepository struct {
	db *DB
}

func NewSpaceRepository(db *DB) *SpaceRepository { return &SpaceRepository{db: db} }

type spaceRow struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Icon        string    `db:"icon"`
	Description string    `db:"description"`
	IsDefault   bool      `db:"is_default"`
	SortOrder   int       `db:"sort_order"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func (r spaceRow) toDomain() domain.Space {
	return domain.Space{
		ID:          r.ID,
		Name:        r.Name,
		Icon:        r.Icon,
		Description: r.Description,
		IsDefault:   r.IsDefault,
		SortOrder:   r.SortOrder,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

func (r *SpaceRepository) Create(ctx context.Context, s domain.Space) (domain.Space, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	s.CreatedAt, s.UpdatedAt = now, now

	const q = `INSERT INTO spaces (id, name, icon, description, is_default, sort_order, created_at, updated_at)
		VALUES (:id, :name, :icon, :description, :is_default, :sort_order, :created_at, :updated_at)`
	_, err := r.db.SQL.NamedExecContext(ctx, q, spaceRow{
		ID: s.ID, Name: s.Name, Icon: s.Icon, Description: s.Description,
		IsDefault: s.IsDefault, SortOrder: s.SortOrder, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
	})
	if err != nil {
		return domain.Space{}, fmt.Errorf("storage: create space: %w", err)
	}
	return s, nil
}

func (r *SpaceRepository) Get(ctx context.Context, id string) (domain.Space, error) {
	var row spaceRow
	err := r.db.SQL.GetContext(ctx, &row, `SELECT * FROM spaces WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Space{}, apperr.New(apperr.NotFound, "space not found", err)
	}
	if err != nil {
		return domain.Space{}, fmt.Errorf("storage: get space: %w", err)
	}
	return row.toDomain(), nil
}

func (r *SpaceRepository) GetDefault(ctx context.Context) (domain.Space, error) {
	var row spaceRow
	err := r.db.SQL.GetContext(ctx, &row, `SELECT * FROM spaces WHERE is_default = 1 LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Space{}, apperr.New(apperr.NotFound, "no default space configured", err)
	}
	if err != nil {
		return domain.Space{}, fmt.Errorf("storage: get default space: %w", err)
	}
	return row.toDomain(), nil
}

func (r *SpaceRepository) List(ctx context.Context) ([]domain.Space, error) {
	var rows []spaceRow
	if err := r.db.SQL.SelectContext(ctx, &rows, `SELECT * FROM spaces ORDER BY sort_order, created_at`); err != nil {
		return nil, fmt.Errorf("storage: list spaces: %w", err)
	}
	out := make([]domain.Space, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (r *SpaceRepository) Update(ctx context.Context, s domain.Space) error {
	s.UpdatedAt = time.Now().UTC()
	const q = `UPDATE spaces SET name=:name, icon=:icon, description=:description,
		sort_order=:sort_order, updated_at=:updated_at WHERE id=:id`
	res, err := r.db.SQL.NamedExecContext(ctx, q, spaceRow{
		ID: s.ID, Name: s.Name, Icon: s.Icon, Description: s.Description,
		SortOrder: s.SortOrder, UpdatedAt: s.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("storage: update space: %w", err)
	}
	return requireRowAffected(res, apperr.New(apperr.NotFound, "space not found", nil))
}

// SetDefault atomically clears the previous default and marks id as the
// new one, so the unique partial index on is_default is never violated.
func (r *SpaceRepository) SetDefault(ctx context.Context, id string) error {
	tx, err := r.db.SQL.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin set-default: %w", err)
	}
	defer txClose(tx, &err, r.db.log)

	if _, err = tx.ExecContext(ctx, `UPDATE spaces SET is_default = 0 WHERE is_default = 1`); err != nil {
		return fmt.Errorf("storage: clear previous default space: %w", err)
	}
	res, execErr := tx.ExecContext(ctx, `UPDATE spaces SET is_default = 1 WHERE id = ?`, id)
	if execErr != nil {
		err = execErr
		return fmt.Errorf("storage: set default space: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = apperr.New(apperr.NotFound, "space not found", nil)
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit set-default: %w", err)
	}
	return nil
}

func (r *SpaceRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.SQL.ExecContext(ctx, `DELETE FROM spaces WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("storage: delete space: %w", err)
	}
	return requireRowAffected(res, apperr.New(apperr.NotFound, "space not found", nil))
}

func requireRowAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: read rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
