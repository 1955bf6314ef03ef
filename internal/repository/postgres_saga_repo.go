package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/mentwork/internal/model"
)

// PostgresSagaRepo はPostgreSQLを使用したサーガ進行記録リポジトリ。
type PostgresSagaRepo struct {
	db *sql.DB
}

// NewPostgresSagaRepo はPostgresSagaRepoを生成する。
func NewPostgresSagaRepo(db *sql.DB) *PostgresSagaRepo {
	return &PostgresSagaRepo{db: db}
}

var _ SagaRepository = (*PostgresSagaRepo)(nil)

// Create は進行記録を作成する。mentee_idは外部キーを持たない。
func (r *PostgresSagaRepo) Create(ctx context.Context, run *model.SagaRun) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO saga_runs (id, flow, mentor_id, mentee_id, status, error, created_at, updated_at)
		 VALUES ($1, $2, $3, NULLIF($4, '')::uuid, $5, NULLIF($6, ''), $7, $8)`,
		run.ID, run.Flow, run.MentorID, run.MenteeID, string(run.Status), run.Error, run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert saga run: %w", err)
	}
	return nil
}

// UpdateStatus は進行状態を更新する。menteeIDとerrMsgが空の場合は既存値を維持する。
func (r *PostgresSagaRepo) UpdateStatus(ctx context.Context, id string, status model.SagaStatus, menteeID, errMsg string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE saga_runs
		 SET status = $2,
		     mentee_id = COALESCE(NULLIF($3, '')::uuid, mentee_id),
		     error = COALESCE(NULLIF($4, ''), error),
		     updated_at = NOW()
		 WHERE id = $1`,
		id, string(status), menteeID, errMsg,
	)
	if err != nil {
		return fmt.Errorf("failed to update saga run: %w", err)
	}
	return nil
}
