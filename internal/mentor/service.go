// Package mentor はメンター登録と参照のドメインロジックを提供する。
package mentor

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

// RegisterInput はメンター登録の入力。name, email以外は任意。
type RegisterInput struct {
	Name              string
	Email             string
	Bio               *string
	Expertise         *string
	ExperienceYears   *int
	ProfilePictureURL *string
}

// Service はメンター管理のサービス層。
type Service struct {
	repo      repository.MentorRepository
	notifier  Notifier
	sanitizer *security.TextSanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(repo repository.MentorRepository, notifier Notifier, sanitizer *security.TextSanitizer) *Service {
	return &Service{
		repo:      repo,
		notifier:  notifier,
		sanitizer: sanitizer,
	}
}

// Register はメンターを登録し、new-mentorを通知する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*model.Mentor, error) {
	name := s.sanitizer.Sanitize(in.Name)
	if name == "" || in.Email == "" {
		return nil, model.NewValidationError(model.MsgNameAndEmailRequired)
	}
	addr, err := email.Normalize(in.Email)
	if err != nil {
		return nil, model.NewValidationError(model.MsgInvalidEmail)
	}

	now := time.Now().UTC()
	m := &model.Mentor{
		ID:                uuid.NewString(),
		Name:              name,
		Email:             addr,
		Bio:               s.sanitizer.SanitizePtr(in.Bio),
		Expertise:         s.sanitizer.SanitizePtr(in.Expertise),
		ExperienceYears:   in.ExperienceYears,
		ProfilePictureURL: in.ProfilePictureURL,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.repo.Create(ctx, m); err != nil {
		if repository.IsDuplicateKey(err, repository.ConstraintMentorsEmail) {
			return nil, model.NewConflictError(model.MsgMentorEmailTaken)
		}
		return nil, fmt.Errorf("メンターの作成に失敗しました: %w", err)
	}

	s.notifier.Notify(ctx, webhook.KindNewMentor, m)
	return m, nil
}

// List は全メンターを返す。
func (s *Service) List(ctx context.Context) ([]*model.Mentor, error) {
	mentors, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("メンター一覧の取得に失敗しました: %w", err)
	}
	return mentors, nil
}

// FindByID はIDでメンターを取得する。
func (s *Service) FindByID(ctx context.Context, id string) (*model.Mentor, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("メンターの取得に失敗しました: %w", err)
	}
	if m == nil {
		return nil, model.NewNotFoundError(model.MsgMentorNotFound)
	}
	return m, nil
}

// FindByEmail はemailでメンターを取得する。
func (s *Service) FindByEmail(ctx context.Context, rawEmail string) (*model.Mentor, error) {
	addr, err := email.Normalize(rawEmail)
	if err != nil {
		return nil, model.NewNotFoundError(model.MsgMentorNotFound)
	}

	m, err := s.repo.FindByEmail(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("メンターの取得に失敗しました: %w", err)
	}
	if m == nil {
		return nil, model.NewNotFoundError(model.MsgMentorNotFound)
	}
	return m, nil
}

// Update はプロフィール項目を部分更新する。emailは変更できない。
func (s *Service) Update(ctx context.Context, id string, values map[string]any) (*model.Mentor, error) {
	s.sanitizer.SanitizeValues(values, "name", "bio", "expertise")

	m, err := s.repo.Update(ctx, id, values)
	if err != nil {
		return nil, fmt.Errorf("メンターの更新に失敗しました: %w", err)
	}
	if m == nil {
		return nil, model.NewNotFoundError(model.MsgMentorNotFound)
	}
	return m, nil
}
