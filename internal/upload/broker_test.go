package upload

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hitoshi/placeman/internal/model"
)

// --- モック ---

type mockStore struct {
	uploadFn func(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	deleteFn func(ctx context.Context, key string) error
}

func (m *mockStore) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, key, contentType, body)
	}
	return "https://cdn.example.com/placeman/obj.png", nil
}

func (m *mockStore) Delete(ctx context.Context, key string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

type mockValidator struct {
	err error
}

func (m *mockValidator) ValidateURL(rawURL string) error { return m.err }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestBroker(t *testing.T, store *mockStore) *Broker {
	t.Helper()
	return NewBroker(store, &mockValidator{}, testLogger(), nil, t.TempDir(), "placeman", DefaultMaxBytes)
}

// stagedFileCount はステージングディレクトリ内のファイル数を返す。
func stagedFileCount(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read staging dir: %v", err)
	}
	return len(entries)
}

// --- Stage ---

// TestBroker_Stage は正常なステージングでファイルが書き込まれることを検証する。
func TestBroker_Stage(t *testing.T) {
	b := newTestBroker(t, &mockStore{})

	staged, err := b.Stage(strings.NewReader("png-bytes"), "image/png", 9)
	if err != nil {
		t.Fatalf("Stage returned error: %v", err)
	}
	if filepath.Ext(staged.Path) != ".png" {
		t.Errorf("staged path = %q, want .png extension", staged.Path)
	}

	data, err := os.ReadFile(staged.Path)
	if err != nil {
		t.Fatalf("staged file not readable: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("staged content = %q, want %q", string(data), "png-bytes")
	}
}

// TestBroker_Stage_SizeExceeded はサイズ超過が拒否され、ファイルが書き込まれないことを検証する。
func TestBroker_Stage_SizeExceeded(t *testing.T) {
	store := &mockStore{}
	dir := t.TempDir()
	b := NewBroker(store, &mockValidator{}, testLogger(), nil, dir, "placeman", DefaultMaxBytes)

	// 600,000バイトの申告は上限500,000バイトを超える
	_, err := b.Stage(bytes.NewReader(make([]byte, 600000)), "image/png", 600000)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !isAPIErrorCode(err, "UPLOAD_SIZE_EXCEEDED") {
		t.Errorf("error = %v, want UPLOAD_SIZE_EXCEEDED", err)
	}
	if n := stagedFileCount(t, dir); n != 0 {
		t.Errorf("staging dir has %d files, want 0", n)
	}
}

// TestBroker_Stage_UndeclaredOversize は申告サイズが小さくても実バイト数超過で拒否されることを検証する。
func TestBroker_Stage_UndeclaredOversize(t *testing.T) {
	dir := t.TempDir()
	b := NewBroker(&mockStore{}, &mockValidator{}, testLogger(), nil, dir, "placeman", DefaultMaxBytes)

	_, err := b.Stage(bytes.NewReader(make([]byte, 600000)), "image/png", 100)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !isAPIErrorCode(err, "UPLOAD_SIZE_EXCEEDED") {
		t.Errorf("error = %v, want UPLOAD_SIZE_EXCEEDED", err)
	}
	if n := stagedFileCount(t, dir); n != 0 {
		t.Errorf("staging dir has %d files, want 0", n)
	}
}

// TestBroker_Stage_UnsupportedType は許可リスト外のMIMEタイプが拒否されることを検証する。
func TestBroker_Stage_UnsupportedType(t *testing.T) {
	dir := t.TempDir()
	b := NewBroker(&mockStore{}, &mockValidator{}, testLogger(), nil, dir, "placeman", DefaultMaxBytes)

	for _, mime := range []string{"image/gif", "application/pdf", "text/html", ""} {
		_, err := b.Stage(strings.NewReader("x"), mime, 1)
		if !isAPIErrorCode(err, "UPLOAD_UNSUPPORTED_TYPE") {
			t.Errorf("Stage(%q) error = %v, want UPLOAD_UNSUPPORTED_TYPE", mime, err)
		}
	}
	if n := stagedFileCount(t, dir); n != 0 {
		t.Errorf("staging dir has %d files, want 0", n)
	}
}

// --- Commit ---

// TestBroker_Commit_Success はコミット成功後にステージ済みファイルが残らないことを検証する。
func TestBroker_Commit_Success(t *testing.T) {
	var gotKey, gotContentType string
	store := &mockStore{
		uploadFn: func(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
			gotKey = key
			gotContentType = contentType
			data, _ := io.ReadAll(body)
			if string(data) != "png-bytes" {
				t.Errorf("uploaded content = %q, want %q", string(data), "png-bytes")
			}
			return "https://cdn.example.com/placeman/obj.png", nil
		},
	}
	dir := t.TempDir()
	b := NewBroker(store, &mockValidator{}, testLogger(), nil, dir, "placeman", DefaultMaxBytes)

	staged, err := b.Stage(strings.NewReader("png-bytes"), "image/png", 9)
	if err != nil {
		t.Fatalf("Stage returned error: %v", err)
	}

	url, err := b.Commit(context.Background(), staged, "placeman")
	if err != nil {
		t.Fatalf("Commit returned error: %v", err)
	}
	if url != "https://cdn.example.com/placeman/obj.png" {
		t.Errorf("url = %q", url)
	}
	if !strings.HasPrefix(gotKey, "placeman/") || !strings.HasSuffix(gotKey, ".png") {
		t.Errorf("key = %q, want placeman/<timestamp>.png", gotKey)
	}
	if gotContentType != "image/png" {
		t.Errorf("contentType = %q, want image/png", gotContentType)
	}
	if _, err := os.Stat(staged.Path); !os.IsNotExist(err) {
		t.Errorf("staged file still exists after successful Commit: %v", err)
	}
}

// TestBroker_Commit_RemoteFailure はリモート失敗時もステージ済みファイルが残らないことを検証する。
func TestBroker_Commit_RemoteFailure(t *testing.T) {
	store := &mockStore{
		uploadFn: func(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
			return "", errors.New("remote store unavailable")
		},
	}
	dir := t.TempDir()
	b := NewBroker(store, &mockValidator{}, testLogger(), nil, dir, "placeman", DefaultMaxBytes)

	staged, err := b.Stage(strings.NewReader("png-bytes"), "image/png", 9)
	if err != nil {
		t.Fatalf("Stage returned error: %v", err)
	}

	_, err = b.Commit(context.Background(), staged, "placeman")
	if !isAPIErrorCode(err, "UPLOAD_REMOTE_FAILED") {
		t.Errorf("error = %v, want UPLOAD_REMOTE_FAILED", err)
	}
	if _, err := os.Stat(staged.Path); !os.IsNotExist(err) {
		t.Errorf("staged file still exists after failed Commit: %v", err)
	}
}

// --- DestroyRemote ---

// TestBroker_DestroyRemote は保存URLからキーを導出して削除が発行されることを検証する。
func TestBroker_DestroyRemote(t *testing.T) {
	var gotKey string
	store := &mockStore{
		deleteFn: func(ctx context.Context, key string) error {
			gotKey = key
			return nil
		},
	}
	b := newTestBroker(t, store)

	b.DestroyRemote(context.Background(), "https://cdn.example.com/placeman/img1.png")

	if gotKey != "placeman/img1.png" {
		t.Errorf("deleted key = %q, want %q", gotKey, "placeman/img1.png")
	}
}

// TestBroker_DestroyRemote_FailureIsSwallowed はリモート削除失敗が呼び出し側に伝播しないことを検証する。
func TestBroker_DestroyRemote_FailureIsSwallowed(t *testing.T) {
	store := &mockStore{
		deleteFn: func(ctx context.Context, key string) error {
			return errors.New("remote store unavailable")
		},
	}
	b := newTestBroker(t, store)

	// パニックもエラーも発生しないこと
	b.DestroyRemote(context.Background(), "https://cdn.example.com/placeman/img1.png")
}

// TestBroker_DestroyRemote_BlockedURL は検証に失敗したURLの削除が発行されないことを検証する。
func TestBroker_DestroyRemote_BlockedURL(t *testing.T) {
	deleteCalled := false
	store := &mockStore{
		deleteFn: func(ctx context.Context, key string) error {
			deleteCalled = true
			return nil
		},
	}
	b := NewBroker(store, &mockValidator{err: errors.New("blocked host")}, testLogger(), nil, t.TempDir(), "placeman", DefaultMaxBytes)

	b.DestroyRemote(context.Background(), "https://127.0.0.1/placeman/img1.png")

	if deleteCalled {
		t.Error("expected Delete not to be called for blocked URL")
	}
}

// isAPIErrorCode はエラーが指定コードのmodel.APIErrorかを判定する。
func isAPIErrorCode(err error, code string) bool {
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == code
}
