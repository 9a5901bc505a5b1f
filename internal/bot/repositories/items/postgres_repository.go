package items

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

func (r *PostgresRepository) Create(ctx context.Context, item *models.Item) error {
	query :=
		`INSERT INTO pack_items (pack_id, file_id, emoji, kind)
		 VALUES ($1, $2, NULLIF($3, ''), $4)
		 `

	_, err := r.db.ExecContext(ctx, query, item.PackID, item.FileID, item.Emoji, item.Kind)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Item, error) {
	query :=
		`SELECT item_id, pack_id, file_id, COALESCE(emoji, ''), kind, added_at
		 FROM pack_items
		 WHERE item_id = $1
		 `

	return r.get(ctx, query, id)
}

func (r *PostgresRepository) GetByPackAndFile(ctx context.Context, packID int64, fileID string) (*models.Item, error) {
	query :=
		`SELECT item_id, pack_id, file_id, COALESCE(emoji, ''), kind, added_at
		 FROM pack_items
		 WHERE pack_id = $1 AND file_id = $2
		 ORDER BY item_id
		 LIMIT 1
		 `

	return r.get(ctx, query, packID, fileID)
}

func (r *PostgresRepository) get(ctx context.Context, query string, args ...any) (*models.Item, error) {
	item := &models.Item{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&item.ID, &item.PackID, &item.FileID, &item.Emoji, &item.Kind, &item.AddedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return item, nil
}

func (r *PostgresRepository) CountByPack(ctx context.Context, packID int64) (int, error) {
	query := `SELECT COUNT(*) FROM pack_items WHERE pack_id = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, packID).Scan(&count); err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}

	return count, nil
}

func (r *PostgresRepository) ExistsByPackAndFile(ctx context.Context, packID int64, fileID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM pack_items WHERE pack_id = $1 AND file_id = $2)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, packID, fileID).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return exists, nil
}

func (r *PostgresRepository) DeleteByPackAndFile(ctx context.Context, packID int64, fileID string) (bool, error) {
	query := `DELETE FROM pack_items WHERE pack_id = $1 AND file_id = $2`

	res, err := r.db.ExecContext(ctx, query, packID, fileID)
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	deleted, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}

	return deleted > 0, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Item, error) {
	query :=
		`SELECT i.item_id, i.pack_id, i.file_id, COALESCE(i.emoji, ''), i.kind, i.added_at
		 FROM pack_items i
		 JOIN packs p ON p.pack_id = i.pack_id
		 WHERE p.user_id = $1
		 ORDER BY i.item_id
		 `

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Item
	for rows.Next() {
		item := &models.Item{}
		if err := rows.Scan(&item.ID, &item.PackID, &item.FileID, &item.Emoji, &item.Kind, &item.AddedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
