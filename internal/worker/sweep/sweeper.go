// Package sweep は孤児Blobの回収ジョブを提供する。
// リモートストアにコミットされたがエンティティから参照されないまま
// 猶予期間を過ぎた画像を削除し、pending_uploadsレコードを消す。
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/placeman/internal/repository"
)

// BlobDestroyer はリモートBlobのベストエフォート削除インターフェース。
// upload.Brokerの部分集合として定義する。
type BlobDestroyer interface {
	DestroyRemote(ctx context.Context, remoteURL string)
}

// MetricsRecorder は回収ジョブの計数インターフェース。
type MetricsRecorder interface {
	RecordOrphanSwept()
}

// Sweeper は孤児Blobの定期回収ジョブ。
// エンティティトランザクションに消費されなかったpending_uploadsレコードを
// 猶予期間経過後に処理する。猶予期間はアップロード完了からエンティティ
// コミットまでの正常な遅延を誤回収しないための余裕。
type Sweeper struct {
	pendingRepo repository.PendingUploadRepository
	destroyer   BlobDestroyer
	logger      *slog.Logger
	metrics     MetricsRecorder

	Grace     time.Duration // 回収までの猶予期間（デフォルト: 1時間）
	BatchSize int           // 1サイクルで処理する最大件数（デフォルト: 100）
}

// NewSweeper はSweeperの新しいインスタンスを生成する。metricsはnil可。
func NewSweeper(
	pendingRepo repository.PendingUploadRepository,
	destroyer BlobDestroyer,
	logger *slog.Logger,
	metrics MetricsRecorder,
) *Sweeper {
	return &Sweeper{
		pendingRepo: pendingRepo,
		destroyer:   destroyer,
		logger:      logger,
		metrics:     metrics,
		Grace:       time.Hour,
		BatchSize:   100,
	}
}

// Start は指定間隔のティッカーで回収ジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("孤児Blob回収ジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("grace", s.Grace),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("回収サイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("孤児Blob回収ジョブを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("回収サイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は猶予期間を過ぎたレコードを1回分回収する。
// リモート削除はベストエフォートで、失敗してもレコードは消す。
// 削除失敗はブローカー側でログと計数がされ、レコードを残しても
// 再試行の成否は変わらないため。冪等: 回収対象がない場合もエラーにならない。
func (s *Sweeper) RunOnce(ctx context.Context) error {
	start := time.Now()
	olderThan := start.Add(-s.Grace)

	pendings, err := s.pendingRepo.ListStale(ctx, olderThan, s.BatchSize)
	if err != nil {
		return err
	}

	if len(pendings) == 0 {
		return nil
	}

	s.logger.Info("回収サイクルを開始します",
		slog.Int("orphan_count", len(pendings)),
	)

	swept := 0
	for _, pending := range pendings {
		s.destroyer.DestroyRemote(ctx, pending.BlobURL)

		if err := s.pendingRepo.DeleteByID(ctx, pending.ID); err != nil {
			s.logger.Error("回収レコードの削除に失敗しました",
				slog.String("pending_id", pending.ID),
				slog.String("blob_url", pending.BlobURL),
				slog.String("error", err.Error()),
			)
			continue
		}

		swept++
		if s.metrics != nil {
			s.metrics.RecordOrphanSwept()
		}
	}

	duration := time.Since(start)
	s.logger.Info("回収サイクルが完了しました",
		slog.Int("swept_count", swept),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
