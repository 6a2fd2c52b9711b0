package blob

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TestClient_Upload はアップロード成功時に公開URLが返ることを検証する。
func TestClient_Upload(t *testing.T) {
	var gotMethod, gotPath, gotAuth, gotContentType string
	var gotBody []byte

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"url": "https://cdn.example.com/placeman/img.png"}`))
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), testLogger(), ts.URL, "api-key-1")

	gotURL, err := c.Upload(context.Background(), "placeman/img.png", "image/png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	if gotURL != "https://cdn.example.com/placeman/img.png" {
		t.Errorf("URL = %q, want %q", gotURL, "https://cdn.example.com/placeman/img.png")
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %q, want PUT", gotMethod)
	}
	if gotPath != "/placeman/img.png" {
		t.Errorf("path = %q, want %q", gotPath, "/placeman/img.png")
	}
	if gotAuth != "Bearer api-key-1" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer api-key-1")
	}
	if gotContentType != "image/png" {
		t.Errorf("Content-Type = %q, want %q", gotContentType, "image/png")
	}
	if string(gotBody) != "png-bytes" {
		t.Errorf("body = %q, want %q", string(gotBody), "png-bytes")
	}
}

// TestClient_Upload_ServerError はサーバーエラー時にエラーが返ることを検証する。
func TestClient_Upload_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), testLogger(), ts.URL, "key")

	_, err := c.Upload(context.Background(), "placeman/img.png", "image/png", strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// TestClient_Upload_MissingURL はレスポンスにURLが無い場合にエラーになることを検証する。
func TestClient_Upload_MissingURL(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), testLogger(), ts.URL, "key")

	_, err := c.Upload(context.Background(), "placeman/img.png", "image/png", strings.NewReader("x"))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// TestClient_Delete は削除リクエストがDELETEメソッドで送信されることを検証する。
func TestClient_Delete(t *testing.T) {
	var gotMethod, gotPath string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), testLogger(), ts.URL, "key")

	if err := c.Delete(context.Background(), "placeman/img.png"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %q, want DELETE", gotMethod)
	}
	if gotPath != "/placeman/img.png" {
		t.Errorf("path = %q, want %q", gotPath, "/placeman/img.png")
	}
}

// TestClient_Delete_NotFoundIsSuccess は404削除が冪等な成功として扱われることを検証する。
func TestClient_Delete_NotFoundIsSuccess(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	c := NewClient(ts.Client(), testLogger(), ts.URL, "key")

	if err := c.Delete(context.Background(), "placeman/gone.png"); err != nil {
		t.Errorf("Delete returned error for 404: %v", err)
	}
}

// TestKeyFromURL は公開URLからストレージキーが導出されることを検証する。
func TestKeyFromURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		want    string
		wantErr bool
	}{
		{"simple", "https://cdn.example.com/placeman/a.png", "placeman/a.png", false},
		{"nested prefix", "https://cdn.example.com/bucket1/placeman/2024.jpeg", "placeman/2024.jpeg", false},
		{"no namespace", "https://cdn.example.com/other/a.png", "", true},
		{"empty object name", "https://cdn.example.com/placeman/", "", true},
		{"invalid url", "://x", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := KeyFromURL(tt.url, "placeman")
			if tt.wantErr {
				if err == nil {
					t.Errorf("KeyFromURL(%q) = %q, want error", tt.url, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("KeyFromURL(%q) returned error: %v", tt.url, err)
			}
			if got != tt.want {
				t.Errorf("KeyFromURL(%q) = %q, want %q", tt.url, got, tt.want)
			}
		})
	}
}
