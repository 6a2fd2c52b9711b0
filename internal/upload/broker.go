// Package upload はアップロード画像のステージングとリモートコミットを提供する。
// ステージ済みファイルはコミット試行の結果にかかわらず必ず削除され、
// ローカルディスクにファイルが残ることはない。
package upload

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/placeman/internal/blob"
	"github.com/hitoshi/placeman/internal/model"
)

// DefaultMaxBytes はアップロード画像のデフォルトサイズ上限（バイト）。
const DefaultMaxBytes = 500000

// mimeExtensions は許可されるMIMEタイプと拡張子の対応表。
// ここに無いMIMEタイプはステージング前に拒否される。
var mimeExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpeg",
	"image/jpg":  "jpg",
}

// StagedFile はリモートコミット待ちのローカル一時ファイルへのハンドル。
type StagedFile struct {
	Path     string
	MIMEType string
	Ext      string
}

// URLValidator はリモート削除前のURL検証インターフェース。
// security.SSRFGuardServiceの部分集合として定義する。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// MetricsRecorder はアップロード関連メトリクスの記録インターフェース。
// nilの場合は記録しない。
type MetricsRecorder interface {
	RecordUploadCommitted()
	RecordUploadFailed(reason string)
	RecordBlobCleanupFailure()
}

// Broker はアップロードの受け付け、ローカルステージング、リモートコミット、
// およびベストエフォートのリモート削除を担う。
type Broker struct {
	store      blob.Store
	validator  URLValidator
	logger     *slog.Logger
	metrics    MetricsRecorder
	stagingDir string
	namespace  string
	maxBytes   int64
	now        func() time.Time // キーの一意性トークン生成用。テストで差し替え可能。
}

// NewBroker はBrokerの新しいインスタンスを生成する。
// maxBytesが0以下の場合はDefaultMaxBytesを使用する。
func NewBroker(
	store blob.Store,
	validator URLValidator,
	logger *slog.Logger,
	metrics MetricsRecorder,
	stagingDir, namespace string,
	maxBytes int64,
) *Broker {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Broker{
		store:      store,
		validator:  validator,
		logger:     logger,
		metrics:    metrics,
		stagingDir: stagingDir,
		namespace:  namespace,
		maxBytes:   maxBytes,
	}
}

// Stage は受信ファイルを検証し、ステージング領域に書き込む。
// sizeが上限を超える場合はUPLOAD_SIZE_EXCEEDED（ファイルは一切書き込まれない）、
// MIMEタイプが許可リスト外の場合はUPLOAD_UNSUPPORTED_TYPEを返す。
// ステージ名は衝突しない生成名（uuid + 許可リスト由来の拡張子）。
func (b *Broker) Stage(r io.Reader, declaredMIME string, size int64) (*StagedFile, error) {
	if size > b.maxBytes {
		b.recordFailure("size_exceeded")
		return nil, model.NewUploadSizeExceededError(size, b.maxBytes)
	}

	ext, ok := mimeExtensions[declaredMIME]
	if !ok {
		b.recordFailure("unsupported_type")
		return nil, model.NewUploadUnsupportedTypeError(declaredMIME)
	}

	path := filepath.Join(b.stagingDir, uuid.New().String()+"."+ext)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		b.logger.Error("ステージングファイルの作成に失敗しました",
			slog.String("error", err.Error()),
			slog.String("path", path),
		)
		b.recordFailure("stage_failed")
		return nil, model.NewUploadStageFailedError()
	}

	// 申告サイズを信用せず、実際のバイト数も上限で打ち切って検証する
	written, err := io.Copy(f, io.LimitReader(r, b.maxBytes+1))
	closeErr := f.Close()
	if err != nil || closeErr != nil {
		os.Remove(path)
		b.logger.Error("ステージングファイルの書き込みに失敗しました",
			slog.String("path", path),
		)
		b.recordFailure("stage_failed")
		return nil, model.NewUploadStageFailedError()
	}
	if written > b.maxBytes {
		os.Remove(path)
		b.recordFailure("size_exceeded")
		return nil, model.NewUploadSizeExceededError(written, b.maxBytes)
	}

	return &StagedFile{Path: path, MIMEType: declaredMIME, Ext: ext}, nil
}

// Commit はステージ済みファイルをリモートBlobストアにアップロードし、公開URLを返す。
// キーは「namespaceTag/一意タイムスタンプ.拡張子」。
// ステージ済みファイルは成功・失敗にかかわらずCommitの終了時に必ず削除される。
func (b *Broker) Commit(ctx context.Context, staged *StagedFile, namespaceTag string) (string, error) {
	// 成功・失敗のどちらの経路でもステージ済みファイルを残さない
	defer func() {
		if err := os.Remove(staged.Path); err != nil && !os.IsNotExist(err) {
			b.logger.Error("ステージングファイルの削除に失敗しました",
				slog.String("error", err.Error()),
				slog.String("path", staged.Path),
			)
		}
	}()

	f, err := os.Open(staged.Path)
	if err != nil {
		b.recordFailure("stage_failed")
		return "", model.NewUploadStageFailedError()
	}
	defer f.Close()

	key := fmt.Sprintf("%s/%s.%s", namespaceTag, b.timestamp(), staged.Ext)

	remoteURL, err := b.store.Upload(ctx, key, staged.MIMEType, f)
	if err != nil {
		b.logger.Error("リモートBlobストアへのアップロードに失敗しました",
			slog.String("error", err.Error()),
			slog.String("key", key),
		)
		b.recordFailure("remote_failed")
		return "", model.NewUploadRemoteFailedError()
	}

	if b.metrics != nil {
		b.metrics.RecordUploadCommitted()
	}
	return remoteURL, nil
}

// DestroyRemote はコミット済みリモートオブジェクトをベストエフォートで削除する。
// 失敗はログとメトリクスに記録するのみで、呼び出し側には決して返さない。
// 呼び出し側はこの削除の同期的な成功に依存してはならない。
func (b *Broker) DestroyRemote(ctx context.Context, remoteURL string) {
	if remoteURL == "" {
		return
	}

	if b.validator != nil {
		if err := b.validator.ValidateURL(remoteURL); err != nil {
			b.logger.Error("リモート削除対象URLの検証に失敗しました",
				slog.String("error", err.Error()),
				slog.String("url", remoteURL),
			)
			b.recordCleanupFailure()
			return
		}
	}

	key, err := blob.KeyFromURL(remoteURL, b.namespace)
	if err != nil {
		b.logger.Error("リモート削除対象キーの導出に失敗しました",
			slog.String("error", err.Error()),
			slog.String("url", remoteURL),
		)
		b.recordCleanupFailure()
		return
	}

	if err := b.store.Delete(ctx, key); err != nil {
		b.logger.Error("リモートBlobの削除に失敗しました",
			slog.String("error", err.Error()),
			slog.String("key", key),
		)
		b.recordCleanupFailure()
		return
	}

	b.logger.Info("リモートBlobを削除しました", slog.String("key", key))
}

// Namespace はこのBrokerが使用するBlobストアのnamespaceタグを返す。
func (b *Broker) Namespace() string {
	return b.namespace
}

// timestamp はキーの一意性トークンを生成する。
func (b *Broker) timestamp() string {
	now := time.Now
	if b.now != nil {
		now = b.now
	}
	return now().UTC().Format(time.RFC3339Nano)
}

func (b *Broker) recordFailure(reason string) {
	if b.metrics != nil {
		b.metrics.RecordUploadFailed(reason)
	}
}

func (b *Broker) recordCleanupFailure() {
	if b.metrics != nil {
		b.metrics.RecordBlobCleanupFailure()
	}
}
