package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/placeman/internal/middleware"
	"github.com/hitoshi/placeman/internal/model"
	"github.com/hitoshi/placeman/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Signup は新規ユーザーを登録し、認証トークンを発行する。
	Signup(ctx context.Context, name, email, password, imageURL string) (*user.AuthResult, error)
	// Login はメールアドレスとパスワードで認証し、トークンを発行する。
	Login(ctx context.Context, email, password string) (*user.AuthResult, error)
	// List は全ユーザーを返す。
	List(ctx context.Context) ([]*model.User, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse は登録・ログイン成功時のレスポンス。
type authResponse struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Token  string `json:"token"`
}

// userResponse はユーザー情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}

// Signup はユーザー登録を処理する。
// POST /api/users/signup
// 画像アップロードミドルウェアを通過済みで、コミット済み画像URLが
// リクエストコンテキストに入っている。
func (h *UserHandler) Signup(w http.ResponseWriter, r *http.Request) {
	imageURL, err := middleware.ImageURLFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity,
			model.NewValidationError("画像がアップロードされていません"))
		return
	}

	result, err := h.service.Signup(r.Context(),
		r.FormValue("name"), r.FormValue("email"), r.FormValue("password"), imageURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(authResponse{
		UserID: result.UserID,
		Email:  result.Email,
		Token:  result.Token,
	})
}

// Login はログインを処理する。
// POST /api/users/login
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "リクエストボディの解析に失敗しました。",
			Category: "validation",
			Action:   "正しいJSON形式でリクエストしてください。",
		})
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(authResponse{
		UserID: result.UserID,
		Email:  result.Email,
		Token:  result.Token,
	})
}

// ListUsers はユーザー一覧を取得する。
// GET /api/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]userResponse, len(users))
	for i, u := range users {
		responses[i] = userResponse{
			ID:       u.ID,
			Email:    u.Email,
			Name:     u.Name,
			ImageURL: u.ImageURL,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]userResponse{"users": responses})
}
