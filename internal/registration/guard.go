// Package registration は重複登録の事前チェックを提供する。
//
// チェックはリモートのマッチング呼び出し前に早期に409を返すための最適化であり、
// 正しさはmentees.emailの一意制約が保証する。
package registration

import (
	"context"

	"github.com/hitoshi/mentwork/internal/metrics"
	"github.com/hitoshi/mentwork/internal/model"
	"github.com/hitoshi/mentwork/internal/repository"
)

// Guard はメンティーの重複登録を検出する。
type Guard struct {
	mentees repository.MenteeRepository
	metrics metrics.MetricsCollector
}

// NewGuard はGuardを生成する。mがnilの場合はメトリクスを記録しない。
func NewGuard(mentees repository.MenteeRepository, m metrics.MetricsCollector) *Guard {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Guard{mentees: mentees, metrics: m}
}

// CheckMenteeNotRegistered はemailのメンティーが未登録であればnilを返す。
// 登録済みの場合はConflict、検索自体の失敗はInternalエラーを返し、
// 検索失敗を「未登録」として扱うことはない。
func (g *Guard) CheckMenteeNotRegistered(ctx context.Context, email string) error {
	existing, err := g.mentees.FindByEmail(ctx, email)
	if err != nil {
		return model.NewInternalError(model.MsgInternalServerError, err)
	}
	if existing != nil {
		g.metrics.RecordGuardRejection("mentee")
		return model.NewConflictError(model.MsgMenteeAlreadyExists)
	}
	return nil
}
