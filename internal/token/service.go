// Package token は署名付き・期限付きのアイデンティティトークンの発行と検証を提供する。
// トークンはユーザーIDとメールアドレスを紐付け、すべての変更系リクエストのゲートとなる。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hitoshi/placeman/internal/model"
)

// Principal は検証済みトークンから得られた認証済みアイデンティティを表す。
type Principal struct {
	UserID string
	Email  string
}

// claims はトークンに埋め込むクレーム。
type claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Service はHMAC署名のJWTを発行・検証する。
// 状態を持たず、任意の数のリクエストから並行に呼び出して安全。
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time // テスト用に差し替え可能
}

// NewService はServiceを生成する。
// ttlが0以下の場合はデフォルトの1時間を使用する。
func NewService(secret string, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue はユーザーIDとメールアドレスを埋め込んだ署名付きトークンを発行する。
// 有効期限は発行時刻 + 固定TTL。
func (s *Service) Issue(userID, email string) (string, error) {
	now := s.now()
	c := claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := t.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("トークンの署名に失敗しました: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証し、埋め込まれたPrincipalを返す。
// 未提示はAUTH_TOKEN_MISSING、期限切れはAUTH_TOKEN_EXPIRED、
// 署名や構造の不正はAUTH_TOKEN_MALFORMEDのmodel.APIErrorを返す。
func (s *Service) Verify(tokenString string) (*Principal, error) {
	if tokenString == "" {
		return nil, model.NewTokenMissingError()
	}

	c := &claims{}
	t, err := jwt.ParseWithClaims(tokenString, c, func(t *jwt.Token) (interface{}, error) {
		// HS256以外のアルゴリズムによる署名すり替えを拒否する
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return s.now() }))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, model.NewTokenExpiredError()
		}
		return nil, model.NewTokenMalformedError()
	}

	if !t.Valid || c.UserID == "" {
		return nil, model.NewTokenMalformedError()
	}

	return &Principal{UserID: c.UserID, Email: c.Email}, nil
}
