// Package user はユーザー登録・認証のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/placeman/internal/model"
	"github.com/hitoshi/placeman/internal/repository"
)

// DefaultHashCost はbcryptのコストパラメータ。
const DefaultHashCost = 12

// TokenIssuer は認証トークン発行のインターフェース。
type TokenIssuer interface {
	Issue(userID, email string) (string, error)
}

// TextSanitizer はユーザー入力テキストの無害化インターフェース。
type TextSanitizer interface {
	Sanitize(input string) string
}

// AuthResult は登録・ログイン成功時に返す認証情報。
type AuthResult struct {
	UserID string
	Email  string
	Token  string
}

// Service はユーザー管理のサービス層。
// 登録、ログイン、一覧取得のビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	issuer    TokenIssuer
	sanitizer TextSanitizer
	logger    *slog.Logger
	hashCost  int
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	issuer TokenIssuer,
	sanitizer TextSanitizer,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepo:  userRepo,
		issuer:    issuer,
		sanitizer: sanitizer,
		logger:    logger,
		hashCost:  DefaultHashCost,
	}
}

// Signup は新規ユーザーを登録し、認証トークンを発行する。
// メールアドレスが既に登録されている場合はEMAIL_TAKENを返す。
func (s *Service) Signup(ctx context.Context, name, email, password, imageURL string) (*AuthResult, error) {
	name = s.sanitizer.Sanitize(name)
	email = strings.ToLower(strings.TrimSpace(email))

	if name == "" {
		return nil, model.NewValidationError("名前は必須です")
	}
	if !strings.Contains(email, "@") {
		return nil, model.NewValidationError("メールアドレスの形式が不正です")
	}
	if len(password) < 6 {
		return nil, model.NewValidationError("パスワードは6文字以上必要です")
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("パスワードのハッシュ化に失敗しました: %w", err)
	}

	now := time.Now()
	newUser := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		ImageURL:     imageURL,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.userRepo.Create(ctx, newUser); err != nil {
		s.logger.Error("user creation failed", "email", email, "error", err)
		return nil, model.NewTransactionFailedError("ユーザーの登録")
	}

	token, err := s.issuer.Issue(newUser.ID, newUser.Email)
	if err != nil {
		return nil, fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}

	return &AuthResult{UserID: newUser.ID, Email: newUser.Email, Token: token}, nil
}

// Login はメールアドレスとパスワードで認証し、トークンを発行する。
// ユーザー不在とパスワード不一致はどちらもINVALID_CREDENTIALSを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	found, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの検索に失敗しました: %w", err)
	}
	if found == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	token, err := s.issuer.Issue(found.ID, found.Email)
	if err != nil {
		return nil, fmt.Errorf("トークンの発行に失敗しました: %w", err)
	}

	return &AuthResult{UserID: found.ID, Email: found.Email, Token: token}, nil
}

// List は全ユーザーを返す。パスワードハッシュのシリアライズはハンドラ層で除外される。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	return users, nil
}
