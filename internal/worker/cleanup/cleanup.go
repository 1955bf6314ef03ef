// Package cleanup は登録＋接続フローが途中で止まった際に残る孤児メンティーの削除ジョブを提供する。
// 失敗または停止したまま保持期間を超えた実行について、接続を持たないメンティーを削除し、
// 進行記録を compensated に更新する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/mentwork/internal/connection"
	"github.com/hitoshi/mentwork/internal/metrics"
	"github.com/hitoshi/mentwork/internal/model"
)

// DefaultRetention は孤児とみなすまでの既定の猶予期間。
const DefaultRetention = 24 * time.Hour

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// compensateQuery は孤児メンティーの削除と進行記録の更新を1文で行う。
// 同じ文の中で評価するため、削除と更新の対象は常に一致する。
const compensateQuery = `
WITH orphans AS (
    SELECT r.id AS run_id, r.mentee_id
    FROM saga_runs r
    WHERE r.flow = $2
      AND r.status IN ($3, $4)
      AND r.mentee_id IS NOT NULL
      AND r.updated_at < NOW() - $1::interval
      AND NOT EXISTS (
          SELECT 1 FROM mentor_mentee_connections c WHERE c.mentee_id = r.mentee_id
      )
),
deleted AS (
    DELETE FROM mentees m
    USING orphans o
    WHERE m.id = o.mentee_id
    RETURNING m.id
)
UPDATE saga_runs r
SET status = $5, updated_at = NOW()
FROM orphans o
WHERE r.id = o.run_id`

// CleanupJob は孤児メンティーの補償ジョブ。
// 何度実行しても同じ結果になる。
type CleanupJob struct {
	db        Executor
	logger    *slog.Logger
	metrics   metrics.MetricsCollector
	Retention time.Duration // 猶予期間（デフォルト: 24時間）
}

// NewCleanupJob は新しいCleanupJobを生成する。mがnilの場合はメトリクスを記録しない。
func NewCleanupJob(db Executor, logger *slog.Logger, m metrics.MetricsCollector) *CleanupJob {
	if m == nil {
		m = metrics.Nop{}
	}
	return &CleanupJob{
		db:        db,
		logger:    logger,
		metrics:   m,
		Retention: DefaultRetention,
	}
}

// Run は猶予期間を超えた孤児メンティーを削除し、補償した実行数をログに残す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d seconds", int64(j.Retention/time.Second))

	result, err := j.db.ExecContext(ctx, compensateQuery,
		interval,
		connection.FlowRegisterAndConnect,
		string(model.SagaStatusFailed),
		string(model.SagaStatusMenteeCreated),
		string(model.SagaStatusCompensated),
	)
	if err != nil {
		j.logger.Error("孤児メンティーのクリーンアップに失敗しました",
			slog.String("error", err.Error()),
			slog.String("retention", j.Retention.String()),
		)
		return fmt.Errorf("孤児メンティーのクリーンアップに失敗: %w", err)
	}

	compensated, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("補償件数の取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("補償件数の取得に失敗: %w", err)
	}

	j.metrics.RecordOrphansCompensated(int(compensated))

	duration := time.Since(start)
	j.logger.Info("孤児メンティーのクリーンアップが完了しました",
		slog.Int64("compensated_count", compensated),
		slog.String("retention", j.Retention.String()),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
