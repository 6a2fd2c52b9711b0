// Package model はドメインモデルを定義する。
package model

import "time"

// Location は住所から逆ジオコーディングで得た座標を表す。
// 作成時に1回だけ取得し、以降は不変。
type Location struct {
	Lat float64
	Lng float64
}

// Place はユーザーが公開する場所を表す。
// CreatorIDとLocationは作成後に変更されない。
// 所有関係の変更（user_placesとcreator_id）はEntity Graph Coordinator
// （place.Service + repository.PostgresPlaceRepo）のみが行う。
type Place struct {
	ID          string
	Title       string
	Description string
	Address     string
	Location    Location
	ImageURL    string
	CreatorID   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
