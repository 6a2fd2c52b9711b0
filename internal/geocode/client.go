// Package geocode は住所から座標を得る逆ジオコーディングのクライアントを提供する。
// ルックアップは場所の作成時に1回だけ行われ、得られた座標は以降不変となる。
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/placeman/internal/model"
)

// Geocoder は住所→座標変換のインターフェース。
// 呼び出し側からは不透明な関数として扱い、実装詳細に依存しない。
type Geocoder interface {
	// Lookup は住所に対応する座標を返す。
	// 結果が得られない住所にはGEOCODE_NOT_FOUNDのmodel.APIErrorを返す。
	Lookup(ctx context.Context, address string) (model.Location, error)
}

// Client はジオコーディングAPIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
	apiKey     string
}

// NewClient はClientの新しいインスタンスを生成する。
// httpClientにはSSRF防止付きクライアントを渡すことを想定している。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
		apiKey:     apiKey,
	}
}

// geocodeResponse はジオコーディングAPIのレスポンスボディ。
type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Lookup は住所に対応する座標を取得する。
// 結果が空（ZERO_RESULTS）の場合はGEOCODE_NOT_FOUNDエラーを返す。
func (c *Client) Lookup(ctx context.Context, address string) (model.Location, error) {
	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return model.Location{}, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}

	q := reqURL.Query()
	q.Set("address", address)
	q.Set("key", c.apiKey)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return model.Location{}, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("ジオコーディングAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return model.Location{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("ジオコーディングAPIがエラーステータスを返しました",
			slog.Int("http_status", resp.StatusCode),
		)
		return model.Location{}, fmt.Errorf("ジオコーディングAPIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Location{}, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result geocodeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return model.Location{}, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	if result.Status == "ZERO_RESULTS" || len(result.Results) == 0 {
		return model.Location{}, model.NewGeocodeNotFoundError(address)
	}

	loc := result.Results[0].Geometry.Location
	return model.Location{Lat: loc.Lat, Lng: loc.Lng}, nil
}

// compile-time interface check
var _ Geocoder = (*Client)(nil)
