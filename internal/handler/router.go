package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/placeman/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	ImageStager       middleware.ImageStager
	PendingRecorder   middleware.PendingUploadRecorder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	HTTPMetrics       middleware.HTTPMetricsRecorder

	// サービス
	PlaceService PlaceServiceInterface
	UserService  UserServiceInterface

	// 運用エンドポイント
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORS → SecurityHeaders → Recovery → Logging
//
// 認証が必要なルートはさらに Auth → RateLimit(General) を通る。
// multipartを受けるルートは画像アップロードミドルウェアを通る。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.HTTPMetrics))

	placeHandler := NewPlaceHandler(deps.PlaceService)
	userHandler := NewUserHandler(deps.UserService)
	uploadMiddleware := middleware.NewImageUploadMiddleware(deps.ImageStager, deps.PendingRecorder, deps.Logger)

	// --- 認証不要のルート ---

	r.Get("/api/places/user/{userId}", placeHandler.ListByUser)
	r.Get("/api/places/{id}", placeHandler.GetPlace)

	r.Get("/api/users", userHandler.ListUsers)
	r.With(uploadMiddleware).Post("/api/users/signup", userHandler.Signup)
	r.Post("/api/users/login", userHandler.Login)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// POST /api/places - 場所作成（作成専用レート制限と画像アップロードを追加）
		r.With(deps.RateLimiter.PlaceCreationMiddleware(), uploadMiddleware).Post("/api/places", placeHandler.CreatePlace)

		r.Patch("/api/places/{id}", placeHandler.UpdatePlace)
		r.Delete("/api/places/{id}", placeHandler.DeletePlace)
	})

	// --- 運用エンドポイント ---

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	return r
}
