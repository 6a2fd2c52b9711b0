package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/placeman/internal/model"
)

// PostgresPendingUploadRepo はPostgreSQLを使用したpending_uploadsリポジトリ。
type PostgresPendingUploadRepo struct {
	db *sql.DB
}

// NewPostgresPendingUploadRepo はPostgresPendingUploadRepoを生成する。
func NewPostgresPendingUploadRepo(db *sql.DB) *PostgresPendingUploadRepo {
	return &PostgresPendingUploadRepo{db: db}
}

// Create はpending_uploadsレコードを作成する。
func (r *PostgresPendingUploadRepo) Create(ctx context.Context, pending *model.PendingUpload) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO pending_uploads (id, blob_url, namespace, created_at)
		 VALUES ($1, $2, $3, $4)`,
		pending.ID, pending.BlobURL, pending.Namespace, pending.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert pending upload: %w", err)
	}
	return nil
}

// ListStale は指定時刻より前に作成されたレコードを古い順に取得する。
func (r *PostgresPendingUploadRepo) ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*model.PendingUpload, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, blob_url, namespace, created_at
		 FROM pending_uploads
		 WHERE created_at < $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		olderThan, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale pending uploads: %w", err)
	}
	defer rows.Close()

	var pendings []*model.PendingUpload
	for rows.Next() {
		pending := &model.PendingUpload{}
		if err := rows.Scan(&pending.ID, &pending.BlobURL, &pending.Namespace, &pending.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan pending upload: %w", err)
		}
		pendings = append(pendings, pending)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pending uploads: %w", err)
	}

	return pendings, nil
}

// DeleteByID は指定IDのレコードを削除する。
func (r *PostgresPendingUploadRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_uploads WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete pending upload: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PendingUploadRepository = (*PostgresPendingUploadRepo)(nil)
