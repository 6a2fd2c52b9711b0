// Package blob はリモートBlobストアのHTTPクライアントを提供する。
// Blobストアはエンティティストアのトランザクション境界の外にある
// 外部サービスであり、アップロード済みオブジェクトはURLで参照される。
package blob

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// Store はBlobストア操作のインターフェース。
// Upload Brokerと孤児Blob回収ジョブから利用する。
type Store interface {
	// Upload はオブジェクトを指定キーで保存し、公開URLを返す。
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	// Delete は指定キーのオブジェクトを削除する。
	Delete(ctx context.Context, key string) error
}

// Client はBlobストアAPIのクライアント。
// オブジェクトは PUT {endpoint}/{key}、削除は DELETE {endpoint}/{key} で操作する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	apiKey     string
}

// NewClient はClientの新しいインスタンスを生成する。
// httpClientにはSSRF防止付きクライアント（security.SSRFGuardService.NewSafeClient）を
// 渡すことを想定している。テストでは任意のクライアントを注入できる。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
	}
}

// uploadResponse はアップロードAPIのレスポンスボディ。
type uploadResponse struct {
	URL string `json:"url"`
}

// Upload はオブジェクトをBlobストアに保存し、公開URLを返す。
func (c *Client) Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	reqURL := c.endpoint + "/" + key

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, reqURL, body)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("BlobストアAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("key", key),
		)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.Error("BlobストアAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("key", key),
		)
		return "", fmt.Errorf("BlobストアAPIがステータス %d を返しました", resp.StatusCode)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result uploadResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}
	if result.URL == "" {
		return "", fmt.Errorf("BlobストアAPIのレスポンスにURLが含まれていません")
	}

	return result.URL, nil
}

// Delete は指定キーのオブジェクトをBlobストアから削除する。
// 存在しないキーの削除（404）は冪等な成功として扱う。
func (c *Client) Delete(ctx context.Context, key string) error {
	reqURL := c.endpoint + "/" + key

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, reqURL, nil)
	if err != nil {
		return fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Blobストアの削除呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("key", key),
		)
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("BlobストアAPIがステータス %d を返しました", resp.StatusCode)
	}

	return nil
}

// KeyFromURL は公開URLからストレージキーを導出する。
// キーはパス中のnamespaceセグメント以降の部分
// （例: "https://cdn.example.com/x/placeman/2024.png" → "placeman/2024.png"）。
// namespaceセグメントが見つからない場合はエラーを返す。
func KeyFromURL(rawURL, namespace string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid blob URL: %w", err)
	}

	marker := namespace + "/"
	idx := strings.Index(parsed.Path, marker)
	if idx < 0 {
		return "", fmt.Errorf("namespace %q not found in blob URL path: %s", namespace, parsed.Path)
	}

	key := parsed.Path[idx:]
	if key == marker {
		return "", fmt.Errorf("empty object name in blob URL: %s", rawURL)
	}
	return key, nil
}

// compile-time interface check
var _ Store = (*Client)(nil)
