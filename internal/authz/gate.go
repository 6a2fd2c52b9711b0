// Package authz は場所に対する所有権チェックを提供する。
// 判定は純粋関数であり、副作用を持たない。
package authz

import "github.com/hitoshi/placeman/internal/model"

// Decision は所有権チェックの結果を表す。
type Decision int

const (
	// Denied はプリンシパルが場所の作成者でないことを示す。
	Denied Decision = iota
	// Allowed はプリンシパルが場所の作成者であることを示す。
	Allowed
)

// Authorize はプリンシパルが場所の作成者である場合のみAllowedを返す。
// すべての変更・削除操作の前に呼び出す。placeがnilの場合はDeniedを返す。
func Authorize(principalID string, place *model.Place) Decision {
	if place == nil || principalID == "" {
		return Denied
	}
	if principalID != place.CreatorID {
		return Denied
	}
	return Allowed
}
