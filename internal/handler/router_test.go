package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/placeman/internal/middleware"
	"github.com/hitoshi/placeman/internal/model"
	"github.com/hitoshi/placeman/internal/token"
	"github.com/hitoshi/placeman/internal/upload"
)

type routerVerifier struct{}

func (routerVerifier) Verify(tokenString string) (*token.Principal, error) {
	if tokenString == "valid-token" {
		return &token.Principal{UserID: "u1", Email: "u1@example.com"}, nil
	}
	return nil, model.NewTokenMissingError()
}

type routerStager struct{}

func (routerStager) Stage(r io.Reader, declaredMIME string, size int64) (*upload.StagedFile, error) {
	return &upload.StagedFile{Path: "/tmp/x.png", MIMEType: declaredMIME, Ext: "png"}, nil
}
func (routerStager) Commit(ctx context.Context, staged *upload.StagedFile, namespaceTag string) (string, error) {
	return "https://cdn.example.com/placeman/x.png", nil
}
func (routerStager) Namespace() string { return "placeman" }

type routerRecorder struct{}

func (routerRecorder) Create(ctx context.Context, pending *model.PendingUpload) error { return nil }

func newTestRouter(t *testing.T, placeService PlaceServiceInterface, userService UserServiceInterface) http.Handler {
	t.Helper()
	rl := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		GeneralRate:      rate.Limit(100),
		GeneralBurst:     100,
		PlaceCreateRate:  rate.Limit(100),
		PlaceCreateBurst: 100,
		CleanupInterval:  time.Hour,
	})
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		TokenVerifier:     routerVerifier{},
		ImageStager:       routerStager{},
		PendingRecorder:   routerRecorder{},
		CORSAllowedOrigin: "https://app.example.com",
		RateLimiter:       rl,
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		PlaceService:      placeService,
		UserService:       userService,
	})
}

// 認証不要ルートがトークンなしで到達できることを検証
func TestRouter_PublicRoutes(t *testing.T) {
	placeService := &mockPlaceService{
		getPlaceFn: func(ctx context.Context, placeID string) (*model.Place, error) {
			return testPlace(), nil
		},
		listByUserFn: func(ctx context.Context, userID string) ([]*model.Place, error) {
			return []*model.Place{testPlace()}, nil
		},
	}
	userService := &mockUserService{
		listFn: func(ctx context.Context) ([]*model.User, error) {
			return []*model.User{}, nil
		},
	}
	router := newTestRouter(t, placeService, userService)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/api/places/p1", http.StatusOK},
		{http.MethodGet, "/api/places/user/u1", http.StatusOK},
		{http.MethodGet, "/api/users", http.StatusOK},
		{http.MethodGet, "/healthz", http.StatusOK},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		if w.Code != tt.want {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, w.Code, tt.want)
		}
	}
}

// 認証必須ルートがトークンなしで401になることを検証
func TestRouter_AuthRequired(t *testing.T) {
	router := newTestRouter(t, &mockPlaceService{}, &mockUserService{})

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/places"},
		{http.MethodPatch, "/api/places/p1"},
		{http.MethodDelete, "/api/places/p1"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: status = %d, want %d", tt.method, tt.path, w.Code, http.StatusUnauthorized)
		}
	}
}

// 有効なトークンで認証必須ルートに到達できることを検証
func TestRouter_AuthorizedDelete(t *testing.T) {
	placeService := &mockPlaceService{
		deletePlaceFn: func(ctx context.Context, placeID, requesterID string) error {
			if requesterID != "u1" {
				t.Errorf("requesterID = %q, want %q", requesterID, "u1")
			}
			return nil
		},
	}
	router := newTestRouter(t, placeService, &mockUserService{})

	req := httptest.NewRequest(http.MethodDelete, "/api/places/p1", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d, body: %s", w.Code, http.StatusOK, w.Body.String())
	}
}

// セキュリティヘッダーが全レスポンスに付与されることを検証
func TestRouter_SecurityHeaders(t *testing.T) {
	router := newTestRouter(t, &mockPlaceService{}, &mockUserService{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}
