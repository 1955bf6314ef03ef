// Package program はメンターが提供するプログラムのドメインロジックを提供する。
package program

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/mentwork/internal/email"
	"github.com/hitoshi/mentwork/internal/model"
	"github.com/hitoshi/mentwork/internal/patch"
	"github.com/hitoshi/mentwork/internal/repository"
	"github.com/hitoshi/mentwork/internal/security"
	"github.com/hitoshi/mentwork/internal/webhook"
)

// Notifier は登録イベントの通知先。
type Notifier interface {
	Notify(ctx context.Context, kind webhook.Kind, payload any)
}

// CreateInput はプログラム作成の入力。
type CreateInput struct {
	MentorEmail string
	Title       string
	Description *string
	SessionType *string
	Price       *float64
	Duration    *int
	SessionDate string
}

// Service はプログラム管理のサービス層。
type Service struct {
	repo       repository.ProgramRepository
	mentorRepo repository.MentorRepository
	notifier   Notifier
	sanitizer  *security.TextSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.ProgramRepository,
	mentorRepo repository.MentorRepository,
	notifier Notifier,
	sanitizer *security.TextSanitizer,
) *Service {
	return &Service{
		repo:       repo,
		mentorRepo: mentorRepo,
		notifier:   notifier,
		sanitizer:  sanitizer,
	}
}

// Create はプログラムを作成し、メンター名付きでnew-programを通知する。
// メンターが存在しない場合はNotFoundを返す。
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Program, error) {
	title := s.sanitizer.Sanitize(in.Title)
	sessionDate := strings.TrimSpace(in.SessionDate)
	if in.MentorEmail == "" || title == "" || sessionDate == "" {
		return nil, model.NewValidationError(model.MsgProgramFieldsRequired)
	}

	date, err := patch.ParseTimestamp(sessionDate)
	if err != nil {
		return nil, model.NewValidationError(model.MsgInvalidSessionDate)
	}

	addr, err := email.Normalize(in.MentorEmail)
	if err != nil {
		return nil, model.NewNotFoundError(model.MsgMentorNotFound)
	}

	mentor, err := s.mentorRepo.FindByEmail(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("メンターの取得に失敗しました: %w", err)
	}
	if mentor == nil {
		return nil, model.NewNotFoundError(model.MsgMentorNotFound)
	}

	now := time.Now().UTC()
	p := &model.Program{
		ID:          uuid.NewString(),
		MentorEmail: addr,
		Title:       title,
		Description: s.sanitizer.SanitizePtr(in.Description),
		SessionType: s.sanitizer.SanitizePtr(in.SessionType),
		Price:       in.Price,
		Duration:    in.Duration,
		SessionDate: date,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		// 事前チェック後にメンターが削除された場合
		if repository.IsForeignKey(err, repository.ConstraintProgramMentorFK) {
			return nil, model.NewNotFoundError(model.MsgMentorNotFound)
		}
		return nil, fmt.Errorf("プログラムの作成に失敗しました: %w", err)
	}

	name := mentor.Name
	p.MentorName = &name
	s.notifier.Notify(ctx, webhook.KindNewProgram, p)
	return p, nil
}

// ListAll は全プログラムを返す。
func (s *Service) ListAll(ctx context.Context) ([]*model.Program, error) {
	programs, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("プログラム一覧の取得に失敗しました: %w", err)
	}
	return programs, nil
}

// ListByMentorEmail は指定メンターのプログラムを返す。
// 不正なemailは該当なしとして空の一覧を返す。
func (s *Service) ListByMentorEmail(ctx context.Context, rawEmail string) ([]*model.Program, error) {
	addr, err := email.Normalize(rawEmail)
	if err != nil {
		return []*model.Program{}, nil
	}

	programs, err := s.repo.ListByMentorEmail(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("プログラム一覧の取得に失敗しました: %w", err)
	}
	return programs, nil
}

// Update はプログラムを部分更新する。
func (s *Service) Update(ctx context.Context, id string, values map[string]any) (*model.Program, error) {
	s.sanitizer.SanitizeValues(values, "title", "description", "session_type")

	p, err := s.repo.Update(ctx, id, values)
	if err != nil {
		return nil, fmt.Errorf("プログラムの更新に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewNotFoundError(model.MsgProgramNotFound)
	}
	return p, nil
}

// Delete はプログラムを削除し、削除したレコードを返す。
func (s *Service) Delete(ctx context.Context, id string) (*model.Program, error) {
	p, err := s.repo.Delete(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("プログラムの削除に失敗しました: %w", err)
	}
	if p == nil {
		return nil, model.NewNotFoundError(model.MsgProgramNotFound)
	}
	return p, nil
}
