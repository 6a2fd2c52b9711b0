package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/placeman/internal/model"
)

// PostgresPlaceRepo はPostgreSQLを使用した場所リポジトリ。
// places本体と作成者の参照リスト（user_places）の整合性を
// トランザクションで保証する。
type PostgresPlaceRepo struct {
	db *sql.DB
}

// NewPostgresPlaceRepo はPostgresPlaceRepoを生成する。
func NewPostgresPlaceRepo(db *sql.DB) *PostgresPlaceRepo {
	return &PostgresPlaceRepo{db: db}
}

// FindByID は指定IDの場所を取得する。見つからない場合はnilを返す。
func (r *PostgresPlaceRepo) FindByID(ctx context.Context, id string) (*model.Place, error) {
	place := &model.Place{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, title, description, address, latitude, longitude, image_url, creator_id, created_at, updated_at
		 FROM places WHERE id = $1`,
		id,
	).Scan(&place.ID, &place.Title, &place.Description, &place.Address,
		&place.Location.Lat, &place.Location.Lng, &place.ImageURL, &place.CreatorID,
		&place.CreatedAt, &place.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find place by ID: %w", err)
	}

	return place, nil
}

// ListByCreator は指定ユーザーの場所一覧を参照リストの順序で返す。
// 場所が存在しない場合は空スライスを返す。
func (r *PostgresPlaceRepo) ListByCreator(ctx context.Context, userID string) ([]*model.Place, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.title, p.description, p.address, p.latitude, p.longitude, p.image_url, p.creator_id, p.created_at, p.updated_at
		 FROM places p
		 JOIN user_places up ON up.place_id = p.id
		 WHERE up.user_id = $1
		 ORDER BY up.position ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list places by creator: %w", err)
	}
	defer rows.Close()

	places := []*model.Place{}
	for rows.Next() {
		place := &model.Place{}
		if err := rows.Scan(&place.ID, &place.Title, &place.Description, &place.Address,
			&place.Location.Lat, &place.Location.Lng, &place.ImageURL, &place.CreatorID,
			&place.CreatedAt, &place.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan place: %w", err)
		}
		places = append(places, place)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate places: %w", err)
	}

	return places, nil
}

// CreateWithOwnerRef は場所の作成と作成者の参照リストへの追加を
// 同一トランザクションで行う。どちらかが失敗した場合は両方ロールバックされる。
func (r *PostgresPlaceRepo) CreateWithOwnerRef(ctx context.Context, place *model.Place) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 場所を作成
	_, err = tx.ExecContext(ctx,
		`INSERT INTO places (id, title, description, address, latitude, longitude, image_url, creator_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		place.ID, place.Title, place.Description, place.Address,
		place.Location.Lat, place.Location.Lng, place.ImageURL, place.CreatorID,
		place.CreatedAt, place.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert place: %w", err)
	}

	// 作成者の参照リスト末尾に追加
	_, err = tx.ExecContext(ctx,
		`INSERT INTO user_places (user_id, place_id, position)
		 VALUES ($1, $2, (SELECT COALESCE(MAX(position) + 1, 0) FROM user_places WHERE user_id = $1))`,
		place.CreatorID, place.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to insert owner reference: %w", err)
	}

	// 画像が参照されたのでサガレコードを消費
	if place.ImageURL != "" {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM pending_uploads WHERE blob_url = $1`,
			place.ImageURL,
		)
		if err != nil {
			return fmt.Errorf("failed to consume pending upload: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Update は場所のタイトルと説明を更新する。
func (r *PostgresPlaceRepo) Update(ctx context.Context, place *model.Place) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE places SET title = $1, description = $2, updated_at = $3 WHERE id = $4`,
		place.Title, place.Description, place.UpdatedAt, place.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update place: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("place not found: %s", place.ID)
	}
	return nil
}

// DeleteWithOwnerRef は場所の削除と作成者の参照リストからの除去を
// 同一トランザクションで行う。
func (r *PostgresPlaceRepo) DeleteWithOwnerRef(ctx context.Context, place *model.Place) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// 参照リストから除去（外部キー制約のため先に削除）
	_, err = tx.ExecContext(ctx,
		`DELETE FROM user_places WHERE user_id = $1 AND place_id = $2`,
		place.CreatorID, place.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete owner reference: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM places WHERE id = $1`,
		place.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete place: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("place not found: %s", place.ID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// compile-time interface check
var _ PlaceRepository = (*PostgresPlaceRepo)(nil)
