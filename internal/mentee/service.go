// Package mentee はメンティー登録と参照のドメインロジックを提供する。
package mentee

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/mentwork/internal/email"
	"github.com/hitoshi/mentwork/internal/model"
	"github.com/hitoshi/mentwork/internal/repository"
	"github.com/hitoshi/mentwork/internal/security"
	"github.com/hitoshi/mentwork/internal/webhook"
)

// Notifier は登録イベントの通知先。
type Notifier interface {
	Notify(ctx context.Context, kind webhook.Kind, payload any)
}

// RegisterInput はメンティー登録の入力。
type RegisterInput struct {
	Name  string
	Email string
	Goals *string
}

// Service はメンティー管理のサービス層。
type Service struct {
	repo      repository.MenteeRepository
	notifier  Notifier
	sanitizer *security.TextSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.MenteeRepository, notifier Notifier, sanitizer *security.TextSanitizer) *Service {
	return &Service{
		repo:      repo,
		notifier:  notifier,
		sanitizer: sanitizer,
	}
}

// Register はメンティーを登録し、new-menteeを通知する。
// emailが登録済みの場合はConflictを返す。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Mentee, error) {
	name := s.sanitizer.Sanitize(in.Name)
	if name == "" || in.Email == "" {
		return nil, model.NewValidationError(model.MsgNameAndEmailRequired)
	}
	addr, err := email.Normalize(in.Email)
	if err != nil {
		return nil, model.NewValidationError(model.MsgInvalidEmail)
	}

	now := time.Now().UTC()
	m := &model.Mentee{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     addr,
		Goals:     s.sanitizer.SanitizePtr(in.Goals),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.repo.Create(ctx, m); err != nil {
		if repository.IsDuplicateKey(err, repository.ConstraintMenteesEmail) {
			return nil, model.NewConflictError(model.MsgMenteeEmailTaken)
		}
		return nil, fmt.Errorf("メンティーの作成に失敗しました: %w", err)
	}

	s.notifier.Notify(ctx, webhook.KindNewMentee, m)
	return m, nil
}

// List は全メンティーを返す。
func (s *Service) List(ctx context.Context) ([]*model.Mentee, error) {
	mentees, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("メンティー一覧の取得に失敗しました: %w", err)
	}
	return mentees, nil
}

// FindByEmail はemailでメンティーを取得する。見つからない場合はNotFoundを返す。
func (s *Service) FindByEmail(ctx context.Context, rawEmail string) (*model.Mentee, error) {
	addr, err := email.Normalize(rawEmail)
	if err != nil {
		return nil, model.NewNotFoundError(model.MsgMenteeNotFound)
	}

	m, err := s.repo.FindByEmail(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("メンティーの取得に失敗しました: %w", err)
	}
	if m == nil {
		return nil, model.NewNotFoundError(model.MsgMenteeNotFound)
	}
	return m, nil
}

// Update はname, goalsを部分更新する。
func (s *Service) Update(ctx context.Context, id string, values map[string]any) (*model.Mentee, error) {
	s.sanitizer.SanitizeValues(values, "name", "goals")

	m, err := s.repo.Update(ctx, id, values)
	if err != nil {
		return nil, fmt.Errorf("メンティーの更新に失敗しました: %w", err)
	}
	if m == nil {
		return nil, model.NewNotFoundError(model.MsgMenteeNotFound)
	}
	return m, nil
}
