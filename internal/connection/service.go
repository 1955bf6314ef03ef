// Package connection はメンターとメンティーの接続を扱う。
//
// Service は事前チェック付きの直接接続と一覧・削除を、Saga はリモート経由の接続と
// 「メンティー登録→接続」の2段階フローを提供する。
package connection

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/mentwork/internal/model"
	"github.com/hitoshi/mentwork/internal/repository"
	"github.com/hitoshi/mentwork/internal/webhook"
)

// Notifier は接続イベントの通知先。
type Notifier interface {
	Notify(ctx context.Context, kind webhook.Kind, payload any)
}

// Notification はnew-connection通知のペイロード。
type Notification struct {
	Connection *model.Connection `json:"connection"`
	Mentor     *model.Mentor     `json:"mentor"`
	Mentee     *model.Mentee     `json:"mentee"`
}

// Service は接続管理のサービス層。
type Service struct {
	mentors     repository.MentorRepository
	mentees     repository.MenteeRepository
	connections repository.ConnectionRepository
	notifier    Notifier
	logger      *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	mentors repository.MentorRepository,
	mentees repository.MenteeRepository,
	connections repository.ConnectionRepository,
	notifier Notifier,
	logger *slog.Logger,
) *Service {
	return &Service{
		mentors:     mentors,
		mentees:     mentees,
		connections: connections,
		notifier:    notifier,
		logger:      logger,
	}
}

// Create はメンターとメンティーの存在と重複を確認してから接続を作成し、
// new-connectionを通知する。
//
// 事前チェックと挿入の間に競合した場合も、一意制約違反は既存IDつきのConflictに、
// 外部キー違反はNotFoundに変換されるため、結果は事前チェックで弾いた場合と同じになる。
func (s *Service) Create(ctx context.Context, mentorID, menteeID string) (*model.Connection, error) {
	if mentorID == "" || menteeID == "" {
		return nil, model.NewValidationError(model.MsgConnectionIDsRequired)
	}

	mentor, err := s.mentors.FindByID(ctx, mentorID)
	if err != nil {
		return nil, fmt.Errorf("メンターの取得に失敗しました: %w", err)
	}
	if mentor == nil {
		return nil, model.NewNotFoundError(model.MsgMentorNotFound)
	}

	mentee, err := s.mentees.FindByID(ctx, menteeID)
	if err != nil {
		return nil, fmt.Errorf("メンティーの取得に失敗しました: %w", err)
	}
	if mentee == nil {
		return nil, model.NewNotFoundError(model.MsgMenteeNotFound)
	}

	existing, err := s.connections.FindByPair(ctx, mentor.ID, mentee.ID)
	if err != nil {
		return nil, fmt.Errorf("接続の確認に失敗しました: %w", err)
	}
	if existing != nil {
		return nil, model.NewDuplicateConnectionError(existing.ID)
	}

	conn := &model.Connection{
		ID:        uuid.NewString(),
		MentorID:  mentor.ID,
		MenteeID:  mentee.ID,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.connections.Create(ctx, conn); err != nil {
		return nil, s.translateCreateError(ctx, err, mentor.ID, mentee.ID)
	}

	s.notifier.Notify(ctx, webhook.KindNewConnection, Notification{
		Connection: conn,
		Mentor:     mentor,
		Mentee:     mentee,
	})
	return conn, nil
}

// translateCreateError は挿入時の制約違反を事前チェックと同じ結果に変換する。
func (s *Service) translateCreateError(ctx context.Context, err error, mentorID, menteeID string) error {
	switch {
	case repository.IsDuplicateKey(err, repository.ConstraintConnectionPair):
		existing, findErr := s.connections.FindByPair(ctx, mentorID, menteeID)
		if findErr != nil || existing == nil {
			s.logger.Warn("競合した既存接続を取得できませんでした",
				slog.String("mentor_id", mentorID),
				slog.String("mentee_id", menteeID),
			)
			return model.NewDuplicateConnectionError("")
		}
		return model.NewDuplicateConnectionError(existing.ID)
	case repository.IsForeignKey(err, repository.ConstraintConnectionMentorFK):
		return model.NewNotFoundError(model.MsgMentorNotFound)
	case repository.IsForeignKey(err, repository.ConstraintConnectionMenteeFK):
		return model.NewNotFoundError(model.MsgMenteeNotFound)
	}
	return fmt.Errorf("接続の作成に失敗しました: %w", err)
}

// ListByMentor はメンターの接続一覧を返す。
func (s *Service) ListByMentor(ctx context.Context, mentorID string) ([]model.ConnectionWithMentee, error) {
	rows, err := s.connections.ListByMentor(ctx, mentorID)
	if err != nil {
		return nil, fmt.Errorf("接続一覧の取得に失敗しました: %w", err)
	}
	return rows, nil
}

// ListByMentee はメンティーの接続一覧を返す。
func (s *Service) ListByMentee(ctx context.Context, menteeID string) ([]model.ConnectionWithMentor, error) {
	rows, err := s.connections.ListByMentee(ctx, menteeID)
	if err != nil {
		return nil, fmt.Errorf("接続一覧の取得に失敗しました: %w", err)
	}
	return rows, nil
}

// Delete は接続を削除し、削除したレコードを返す。
func (s *Service) Delete(ctx context.Context, id string) (*model.Connection, error) {
	conn, err := s.connections.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("接続の削除に失敗しました: %w", err)
	}
	if conn == nil {
		return nil, model.NewNotFoundError(model.MsgConnectionNotFound)
	}
	return conn, nil
}
