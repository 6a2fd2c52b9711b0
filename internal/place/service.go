// Package place は場所公開のドメインロジックを提供する。
// 場所と作成者の参照リストの整合性、および画像Blobの後始末を調停する。
package place

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/placeman/internal/authz"
	"github.com/hitoshi/placeman/internal/geocode"
	"github.com/hitoshi/placeman/internal/model"
	"github.com/hitoshi/placeman/internal/repository"
)

// BlobDestroyer はリモートBlobのベストエフォート削除インターフェース。
// 削除失敗はログと計数のみで、呼び出し元にエラーを返さない。
type BlobDestroyer interface {
	DestroyRemote(ctx context.Context, remoteURL string)
}

// TextSanitizer はユーザー入力テキストの無害化インターフェース。
type TextSanitizer interface {
	Sanitize(input string) string
}

// MetricsRecorder はサービス層の失敗計数インターフェース。
type MetricsRecorder interface {
	RecordTxFailure(operation string)
	RecordGeocodeFailure()
}

// Service は場所管理のサービス層。
// 作成・削除では場所本体と作成者の参照リストを単一トランザクションで
// 二重書き込みし、削除コミット後にのみ画像Blobの削除を発火する。
type Service struct {
	placeRepo repository.PlaceRepository
	userRepo  repository.UserRepository
	geocoder  geocode.Geocoder
	destroyer BlobDestroyer
	sanitizer TextSanitizer
	logger    *slog.Logger
	metrics   MetricsRecorder
}

// NewService はServiceの新しいインスタンスを生成する。
// metricsはnil可。
func NewService(
	placeRepo repository.PlaceRepository,
	userRepo repository.UserRepository,
	geocoder geocode.Geocoder,
	destroyer BlobDestroyer,
	sanitizer TextSanitizer,
	logger *slog.Logger,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		placeRepo: placeRepo,
		userRepo:  userRepo,
		geocoder:  geocoder,
		destroyer: destroyer,
		sanitizer: sanitizer,
		logger:    logger,
		metrics:   metrics,
	}
}

// GetPlace は指定IDの場所を返す。
func (s *Service) GetPlace(ctx context.Context, placeID string) (*model.Place, error) {
	place, err := s.placeRepo.FindByID(ctx, placeID)
	if err != nil {
		return nil, fmt.Errorf("場所の取得に失敗しました: %w", err)
	}
	if place == nil {
		return nil, model.NewPlaceNotFoundError(placeID)
	}
	return place, nil
}

// ListByUser は指定ユーザーの場所一覧を作成順で返す。
// ユーザーが存在しない場合はエラー、場所が無い場合は空リストを返す。
func (s *Service) ListByUser(ctx context.Context, userID string) ([]*model.Place, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	places, err := s.placeRepo.ListByCreator(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("場所一覧の取得に失敗しました: %w", err)
	}
	return places, nil
}

// CreatePlace は場所を作成し、作成者の参照リストに追加する。
// 住所はジオコーディングで座標に変換される。
// 場所本体と参照リストの書き込みは単一トランザクションで行われ、
// 失敗時はどちらも残らない（アップロード済み画像の後始末は掃除ワーカーが行う）。
func (s *Service) CreatePlace(ctx context.Context, creatorID, title, description, address, imageURL string) (*model.Place, error) {
	title = s.sanitizer.Sanitize(title)
	description = s.sanitizer.Sanitize(description)
	address = s.sanitizer.Sanitize(address)

	if err := validatePlaceFields(title, description, address); err != nil {
		return nil, err
	}

	location, err := s.geocoder.Lookup(ctx, address)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordGeocodeFailure()
		}
		return nil, err
	}

	creator, err := s.userRepo.FindByID(ctx, creatorID)
	if err != nil {
		return nil, fmt.Errorf("作成者の取得に失敗しました: %w", err)
	}
	if creator == nil {
		return nil, model.NewUserNotFoundError()
	}

	now := time.Now()
	place := &model.Place{
		ID:          uuid.New().String(),
		Title:       title,
		Description: description,
		Address:     address,
		Location:    location,
		ImageURL:    imageURL,
		CreatorID:   creatorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.placeRepo.CreateWithOwnerRef(ctx, place); err != nil {
		s.logger.Error("place creation transaction failed",
			"place_id", place.ID,
			"creator_id", creatorID,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.RecordTxFailure("place_create")
		}
		return nil, model.NewTransactionFailedError("場所の作成")
	}

	return place, nil
}

// UpdatePlace は場所のタイトルと説明を更新する。
// 所有者以外による更新は拒否される。
func (s *Service) UpdatePlace(ctx context.Context, placeID, requesterID, title, description string) (*model.Place, error) {
	place, err := s.placeRepo.FindByID(ctx, placeID)
	if err != nil {
		return nil, fmt.Errorf("場所の取得に失敗しました: %w", err)
	}
	if place == nil {
		return nil, model.NewPlaceNotFoundError(placeID)
	}

	if authz.Authorize(requesterID, place) != authz.Allowed {
		return nil, model.NewNotPlaceOwnerError()
	}

	title = s.sanitizer.Sanitize(title)
	description = s.sanitizer.Sanitize(description)
	if err := validatePlaceFields(title, description, place.Address); err != nil {
		return nil, err
	}

	place.Title = title
	place.Description = description
	place.UpdatedAt = time.Now()

	if err := s.placeRepo.Update(ctx, place); err != nil {
		s.logger.Error("place update failed", "place_id", placeID, "error", err)
		if s.metrics != nil {
			s.metrics.RecordTxFailure("place_update")
		}
		return nil, model.NewTransactionFailedError("場所の更新")
	}

	return place, nil
}

// DeletePlace は場所を削除し、作成者の参照リストから除去する。
// 所有者以外による削除は拒否される。
// 画像Blobの削除はコミット成功後にのみ発火し、レスポンスを遅延も失敗もさせない。
func (s *Service) DeletePlace(ctx context.Context, placeID, requesterID string) error {
	place, err := s.placeRepo.FindByID(ctx, placeID)
	if err != nil {
		return fmt.Errorf("場所の取得に失敗しました: %w", err)
	}
	if place == nil {
		return model.NewPlaceNotFoundError(placeID)
	}

	if authz.Authorize(requesterID, place) != authz.Allowed {
		return model.NewNotPlaceOwnerError()
	}

	if err := s.placeRepo.DeleteWithOwnerRef(ctx, place); err != nil {
		s.logger.Error("place deletion transaction failed", "place_id", placeID, "error", err)
		if s.metrics != nil {
			s.metrics.RecordTxFailure("place_delete")
		}
		return model.NewTransactionFailedError("場所の削除")
	}

	// コミット成功後にのみ画像Blobの削除を発火する
	if place.ImageURL != "" {
		imageURL := place.ImageURL
		go s.destroyer.DestroyRemote(context.Background(), imageURL)
	}

	return nil
}

// validatePlaceFields は無害化済みの場所フィールドを検証する。
func validatePlaceFields(title, description, address string) error {
	if title == "" {
		return model.NewValidationError("タイトルは必須です")
	}
	if len([]rune(description)) < 5 {
		return model.NewValidationError("説明は5文字以上必要です")
	}
	if address == "" {
		return model.NewValidationError("住所は必須です")
	}
	return nil
}
