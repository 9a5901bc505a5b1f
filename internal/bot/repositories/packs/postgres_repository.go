package packs

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

func (r *PostgresRepository) Create(ctx context.Context, pack *models.Pack) (*models.Pack, error) {
	query :=
		`INSERT INTO packs (user_id, name, title, kind, is_paid_pack, pack_link)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING pack_id
		 `

	err := r.db.QueryRowContext(ctx, query,
		pack.UserID, pack.Name, pack.Title, pack.Kind, pack.IsPaidPack, pack.Link).Scan(&pack.ID)

	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return pack, nil
}

func (r *PostgresRepository) CreateIgnoreConflict(ctx context.Context, pack *models.Pack) error {
	query :=
		`INSERT INTO packs (user_id, name, title, kind, is_paid_pack, pack_link)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (name) DO NOTHING
		 `

	_, err := r.db.ExecContext(ctx, query,
		pack.UserID, pack.Name, pack.Title, pack.Kind, pack.IsPaidPack, pack.Link)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Pack, error) {
	query :=
		`SELECT pack_id, user_id, name, title, kind, is_paid_pack, pack_link, created_at
		 FROM packs
		 WHERE pack_id = $1
		 `

	pack := &models.Pack{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&pack.ID, &pack.UserID, &pack.Name, &pack.Title, &pack.Kind,
		&pack.IsPaidPack, &pack.Link, &pack.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return pack, nil
}

func (r *PostgresRepository) GetByName(ctx context.Context, name string) (*models.Pack, error) {
	query :=
		`SELECT pack_id, user_id, name, title, kind, is_paid_pack, pack_link, created_at
		 FROM packs
		 WHERE name = $1
		 `

	pack := &models.Pack{}
	err := r.db.QueryRowContext(ctx, query, name).Scan(
		&pack.ID, &pack.UserID, &pack.Name, &pack.Title, &pack.Kind,
		&pack.IsPaidPack, &pack.Link, &pack.CreatedAt)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	return pack, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64) ([]*models.Pack, error) {
	query :=
		`SELECT pack_id, user_id, name, title, kind, is_paid_pack, pack_link, created_at
		 FROM packs
		 WHERE user_id = $1
		 ORDER BY pack_id DESC
		 `

	return r.list(ctx, query, userID)
}

func (r *PostgresRepository) ListByUserAndKind(ctx context.Context, userID int64, kind models.PackKind) ([]*models.Pack, error) {
	query :=
		`SELECT pack_id, user_id, name, title, kind, is_paid_pack, pack_link, created_at
		 FROM packs
		 WHERE user_id = $1 AND kind = $2
		 ORDER BY pack_id DESC
		 `

	return r.list(ctx, query, userID, kind)
}

func (r *PostgresRepository) list(ctx context.Context, query string, args ...any) ([]*models.Pack, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.Pack
	for rows.Next() {
		pack := &models.Pack{}
		if err := rows.Scan(
			&pack.ID, &pack.UserID, &pack.Name, &pack.Title, &pack.Kind,
			&pack.IsPaidPack, &pack.Link, &pack.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, pack)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return result, nil
}
