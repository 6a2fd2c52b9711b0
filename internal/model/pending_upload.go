// Package model はドメインモデルを定義する。
package model

import "time"

// PendingUpload はリモートBlobストアにコミット済みだが、
// まだエンティティから参照されていないBlobのレコード。
// エンティティ作成トランザクションの成功時に同一トランザクション内で消費され、
// 消費されないまま猶予期間を過ぎたものは掃除ワーカーが削除する。
type PendingUpload struct {
	ID        string
	BlobURL   string
	Namespace string
	CreatedAt time.Time
}
