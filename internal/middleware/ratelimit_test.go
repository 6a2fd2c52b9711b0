package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:      rate.Limit(2),
		GeneralBurst:     3,
		PlaceCreateRate:  rate.Limit(1),
		PlaceCreateBurst: 2,
		CleanupInterval:  time.Hour,
	}
}

func authedRequest(userID string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/api/places/p1", nil)
	return req.WithContext(ContextWithUserID(req.Context(), userID))
}

// バースト分を超えたリクエストが429になることを検証
func TestRateLimiter_GeneralBurstExhaustion(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, authedRequest("u1"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("u1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header")
	}
}

// ユーザーごとに独立したリミッターが使われることを検証
func TestRateLimiter_PerUserIsolation(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	// u1のバーストを使い切る
	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), authedRequest("u1"))
	}

	// u2には影響しない
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, authedRequest("u2"))
	if w.Code != http.StatusOK {
		t.Errorf("u2 status = %d, want %d", w.Code, http.StatusOK)
	}

	if count := rl.GeneralLimiterCount(); count != 2 {
		t.Errorf("limiter count = %d, want 2", count)
	}
}

// 場所作成リミッターがAPI全般リミッターと独立に動作することを検証
func TestRateLimiter_PlaceCreationIndependent(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	general := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	create := rl.PlaceCreationMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	// 場所作成のバースト(2)を使い切る
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		create.ServeHTTP(w, authedRequest("u1"))
		if w.Code != http.StatusCreated {
			t.Fatalf("create %d: status = %d", i, w.Code)
		}
	}
	w := httptest.NewRecorder()
	create.ServeHTTP(w, authedRequest("u1"))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("create status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}

	// API全般はまだ許可される
	w = httptest.NewRecorder()
	general.ServeHTTP(w, authedRequest("u1"))
	if w.Code != http.StatusOK {
		t.Errorf("general status = %d, want %d", w.Code, http.StatusOK)
	}
}

// 未認証コンテキストは401になることを検証
func TestRateLimiter_Unauthenticated(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/places/p1", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

// クリーンアップが期限切れエントリのみ削除することを検証
func TestRateLimiter_Cleanup(t *testing.T) {
	config := testRateLimiterConfig()
	config.CleanupInterval = 10 * time.Millisecond
	rl := NewRateLimiter(config)
	defer rl.Stop()

	rl.getOrCreateGeneralLimiter("u1")
	rl.generalMu.Lock()
	rl.generalLimiters["u1"].lastAccess = time.Now().Add(-time.Hour)
	rl.generalMu.Unlock()
	rl.getOrCreateGeneralLimiter("u2")

	rl.cleanup()

	if count := rl.GeneralLimiterCount(); count != 1 {
		t.Errorf("limiter count = %d, want 1", count)
	}
}
