// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/placeman/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。
	// ImageURLが設定されている場合、対応するpending_uploadsレコードを
	// 同一トランザクション内で消費する。
	Create(ctx context.Context, user *model.User) error

	// List は全ユーザーを作成日時昇順で返す。
	List(ctx context.Context) ([]*model.User, error)
}

// PlaceRepository は場所データの永続化インターフェース。
// 場所とユーザー参照リスト（user_places）の二重書き込みは
// 必ず同一トランザクション内で行う。
type PlaceRepository interface {
	// FindByID は指定IDの場所を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Place, error)

	// ListByCreator は指定ユーザーの場所一覧を参照リストの順序で返す。
	ListByCreator(ctx context.Context, userID string) ([]*model.Place, error)

	// CreateWithOwnerRef は場所の作成と作成者の参照リストへの追加を
	// 同一トランザクションで行う。ImageURLが設定されている場合、
	// 対応するpending_uploadsレコードも同一トランザクション内で消費する。
	CreateWithOwnerRef(ctx context.Context, place *model.Place) error

	// Update は場所のタイトルと説明を更新する。
	// 住所、座標、画像、作成者は作成後に変更されない。
	Update(ctx context.Context, place *model.Place) error

	// DeleteWithOwnerRef は場所の削除と作成者の参照リストからの除去を
	// 同一トランザクションで行う。
	DeleteWithOwnerRef(ctx context.Context, place *model.Place) error
}

// PendingUploadRepository はコミット済み未参照Blobレコードの永続化インターフェース。
type PendingUploadRepository interface {
	// Create はpending_uploadsレコードを作成する。
	Create(ctx context.Context, pending *model.PendingUpload) error

	// ListStale は指定時刻より前に作成されたレコードを取得する。
	ListStale(ctx context.Context, olderThan time.Time, limit int) ([]*model.PendingUpload, error)

	// DeleteByID は指定IDのレコードを削除する。
	DeleteByID(ctx context.Context, id string) error
}
