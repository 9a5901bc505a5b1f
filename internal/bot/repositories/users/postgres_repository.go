package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/packsmith/internal/bot/models"
	"github.com/dmitrijs2005/packsmith/internal/common"
	"github.com/dmitrijs2005/packsmith/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*models.User, error) {
	query :=
		`SELECT user_id, is_paid, is_admin, free_pack_uses, paid_pack_uses,
		        COALESCE(adaptive_pack_name, ''), created_at
		 FROM users
		 WHERE user_id = $1
		 `

	user := &models.User{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID, &user.IsPaid, &user.IsAdmin, &user.FreePackUses,
		&user.PaidPackUses, &user.AdaptivePackName, &user.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return user, nil
}

func (r *PostgresRepository) Create(ctx context.Context, id int64) (*models.User, error) {
	query :=
		`INSERT INTO users (user_id)
		 VALUES ($1)
		 ON CONFLICT (user_id) DO NOTHING
		 `

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return r.Get(ctx, id)
}

func (r *PostgresRepository) SetPaid(ctx context.Context, id int64, paid bool) error {
	return r.setField(ctx, id, "is_paid", paid)
}

func (r *PostgresRepository) SetAdmin(ctx context.Context, id int64, admin bool) error {
	return r.setField(ctx, id, "is_admin", admin)
}

func (r *PostgresRepository) SetFreePackUses(ctx context.Context, id int64, uses int) error {
	return r.setField(ctx, id, "free_pack_uses", uses)
}

func (r *PostgresRepository) SetAdaptivePackName(ctx context.Context, id int64, name string) error {
	return r.setField(ctx, id, "adaptive_pack_name", name)
}

func (r *PostgresRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return ids, nil
}

// setField updates a single whitelisted column; the column name is never
// taken from user input.
func (r *PostgresRepository) setField(ctx context.Context, id int64, column string, value any) error {
	query := fmt.Sprintf(`UPDATE users SET %s = $1 WHERE user_id = $2`, column)

	res, err := r.db.ExecContext(ctx, query, value, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.ErrorNotFound
	}

	return nil
}
