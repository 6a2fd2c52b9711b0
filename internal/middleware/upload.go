package middleware

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/placeman/internal/model"
	"github.com/hitoshi/placeman/internal/upload"
)

// maxMultipartBody はmultipartボディ全体の上限。
// 画像本体の上限はブローカーが検査するため、ここではフォーム全体の
// メモリ消費を抑えるだけでよい。
const maxMultipartBody = 10 << 20

// imageURLContextKey はリクエストコンテキストにコミット済み画像URLを格納するためのキー。
var imageURLContextKey = contextKey("image_url")

// ImageStager は画像のステージングとリモートコミットのインターフェース。
// upload.Brokerの部分集合として定義する。
type ImageStager interface {
	Stage(r io.Reader, declaredMIME string, size int64) (*upload.StagedFile, error)
	Commit(ctx context.Context, staged *upload.StagedFile, namespaceTag string) (string, error)
	Namespace() string
}

// PendingUploadRecorder はコミット済みBlobのサガレコード作成インターフェース。
type PendingUploadRecorder interface {
	Create(ctx context.Context, pending *model.PendingUpload) error
}

// NewImageUploadMiddleware はmultipartフォームのimageフィールドを
// ステージ→リモートコミットし、コミット済みURLをリクエストコンテキストに
// 注入するミドルウェアを返す。
// コミット後・エンティティ書き込み前のBlobはpending_uploadsに記録され、
// 後続のトランザクションが失敗しても掃除ワーカーが回収できる。
func NewImageUploadMiddleware(stager ImageStager, recorder PendingUploadRecorder, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxMultipartBody)

			file, header, err := r.FormFile("image")
			if err != nil {
				WriteErrorResponse(w, http.StatusUnprocessableEntity,
					model.NewValidationError("画像ファイルは必須です"))
				return
			}
			defer file.Close()

			staged, err := stager.Stage(file, header.Header.Get("Content-Type"), header.Size)
			if err != nil {
				writeUploadError(w, err)
				return
			}

			remoteURL, err := stager.Commit(r.Context(), staged, stager.Namespace())
			if err != nil {
				writeUploadError(w, err)
				return
			}

			// エンティティ書き込み前にサガレコードを残す。
			// 記録に失敗してもコミット済み画像は利用可能なのでリクエストは通す。
			pending := &model.PendingUpload{
				ID:        uuid.New().String(),
				BlobURL:   remoteURL,
				Namespace: stager.Namespace(),
				CreatedAt: time.Now(),
			}
			if err := recorder.Create(r.Context(), pending); err != nil {
				logger.Warn("failed to record pending upload",
					"blob_url", remoteURL,
					"error", err,
				)
			}

			ctx := context.WithValue(r.Context(), imageURLContextKey, remoteURL)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeUploadError はアップロード系APIErrorを対応するHTTPステータスで書き込む。
func writeUploadError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*model.APIError)
	if !ok {
		WriteInternalServerError(w)
		return
	}

	status := http.StatusUnprocessableEntity
	switch apiErr.Code {
	case model.ErrCodeUploadStageFailed:
		status = http.StatusRequestTimeout
	case model.ErrCodeUploadRemoteFailed:
		status = http.StatusServiceUnavailable
	}
	WriteErrorResponse(w, status, apiErr)
}

// ImageURLFromContext はリクエストコンテキストからコミット済み画像URLを取得する。
// 画像アップロードミドルウェアを通過したリクエストでのみ有効。
func ImageURLFromContext(ctx context.Context) (string, error) {
	imageURL, ok := ctx.Value(imageURLContextKey).(string)
	if !ok || imageURL == "" {
		return "", fmt.Errorf("image URL not found in context")
	}
	return imageURL, nil
}

// ContextWithImageURL はコンテキストに画像URLを注入する。テスト用。
func ContextWithImageURL(ctx context.Context, imageURL string) context.Context {
	return context.WithValue(ctx, imageURLContextKey, imageURL)
}
