// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/placeman/internal/middleware"
	"github.com/hitoshi/placeman/internal/model"
)

// PlaceServiceInterface は場所ハンドラーが必要とするサービスインターフェース。
type PlaceServiceInterface interface {
	// GetPlace は場所を取得する。
	GetPlace(ctx context.Context, placeID string) (*model.Place, error)
	// ListByUser はユーザーの場所一覧を作成順で取得する。
	ListByUser(ctx context.Context, userID string) ([]*model.Place, error)
	// CreatePlace は場所を作成し、作成者の参照リストに追加する。
	CreatePlace(ctx context.Context, creatorID, title, description, address, imageURL string) (*model.Place, error)
	// UpdatePlace は場所のタイトルと説明を更新する。
	UpdatePlace(ctx context.Context, placeID, requesterID, title, description string) (*model.Place, error)
	// DeletePlace は場所を削除し、作成者の参照リストから除去する。
	DeletePlace(ctx context.Context, placeID, requesterID string) error
}

// PlaceHandler は場所管理のHTTPハンドラー。
type PlaceHandler struct {
	service PlaceServiceInterface
}

// NewPlaceHandler はPlaceHandlerを生成する。
func NewPlaceHandler(service PlaceServiceInterface) *PlaceHandler {
	return &PlaceHandler{service: service}
}

// updatePlaceRequest は場所更新リクエストのボディ。
type updatePlaceRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// locationResponse は座標のAPIレスポンス。
type locationResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// placeResponse は場所情報のAPIレスポンス。
type placeResponse struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Address     string           `json:"address"`
	Location    locationResponse `json:"location"`
	ImageURL    string           `json:"image_url"`
	CreatorID   string           `json:"creator_id"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// GetPlace は場所詳細を取得する。
// GET /api/places/:id
func (h *PlaceHandler) GetPlace(w http.ResponseWriter, r *http.Request) {
	placeID := chi.URLParam(r, "id")

	place, err := h.service.GetPlace(r.Context(), placeID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]placeResponse{"place": toPlaceResponse(place)})
}

// ListByUser はユーザーの場所一覧を取得する。
// GET /api/places/user/:userId
func (h *PlaceHandler) ListByUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	places, err := h.service.ListByUser(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]placeResponse, len(places))
	for i, place := range places {
		responses[i] = toPlaceResponse(place)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]placeResponse{"places": responses})
}

// CreatePlace は場所を作成する。
// POST /api/places
// 画像アップロードミドルウェアを通過済みで、コミット済み画像URLが
// リクエストコンテキストに入っている。
func (h *PlaceHandler) CreatePlace(w http.ResponseWriter, r *http.Request) {
	requesterID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewTokenMissingError())
		return
	}

	imageURL, err := middleware.ImageURLFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewValidationError("画像がアップロードされていません"))
		return
	}

	place, err := h.service.CreatePlace(r.Context(), requesterID,
		r.FormValue("title"), r.FormValue("description"), r.FormValue("address"), imageURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]placeResponse{"place": toPlaceResponse(place)})
}

// UpdatePlace は場所のタイトルと説明を更新する。
// PATCH /api/places/:id
func (h *PlaceHandler) UpdatePlace(w http.ResponseWriter, r *http.Request) {
	requesterID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewTokenMissingError())
		return
	}

	placeID := chi.URLParam(r, "id")

	var req updatePlaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	place, err := h.service.UpdatePlace(r.Context(), placeID, requesterID, req.Title, req.Description)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]placeResponse{"place": toPlaceResponse(place)})
}

// DeletePlace は場所を削除する。
// DELETE /api/places/:id
func (h *PlaceHandler) DeletePlace(w http.ResponseWriter, r *http.Request) {
	requesterID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewTokenMissingError())
		return
	}

	placeID := chi.URLParam(r, "id")

	if err := h.service.DeletePlace(r.Context(), placeID, requesterID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "場所を削除しました。"})
}

// --- ヘルパー関数 ---

// toPlaceResponse はmodel.PlaceからAPIレスポンスに変換する。
func toPlaceResponse(place *model.Place) placeResponse {
	return placeResponse{
		ID:          place.ID,
		Title:       place.Title,
		Description: place.Description,
		Address:     place.Address,
		Location: locationResponse{
			Lat: place.Location.Lat,
			Lng: place.Location.Lng,
		},
		ImageURL:  place.ImageURL,
		CreatorID: place.CreatorID,
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidationFailed, model.ErrCodeGeocodeNotFound,
		model.ErrCodeUploadSizeExceeded, model.ErrCodeUploadUnsupported,
		model.ErrCodeEmailTaken:
		return http.StatusUnprocessableEntity
	case model.ErrCodeTokenMissing, model.ErrCodeTokenExpired,
		model.ErrCodeTokenMalformed, model.ErrCodeNotPlaceOwner:
		return http.StatusUnauthorized
	case model.ErrCodePlaceNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeUploadStageFailed:
		return http.StatusRequestTimeout
	case model.ErrCodeUploadRemoteFailed:
		return http.StatusServiceUnavailable
	case model.ErrCodeInvalidCredentials:
		return http.StatusForbidden
	case model.ErrCodeTransactionFailed:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
