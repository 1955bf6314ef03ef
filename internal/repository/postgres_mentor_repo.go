package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/mentwork/internal/model"
	"github.com/hitoshi/mentwork/internal/patch"
)

const mentorColumns = `id, name, email, bio, expertise, experience_years, profile_picture_url, created_at, updated_at`

// mentorPatchFields はPUT /mentors/{id} で更新可能なカラム。emailは更新不可。
var mentorPatchFields = []patch.Field{
	{Column: "name", Kind: patch.KindText, Policy: patch.PolicyNonEmpty},
	{Column: "bio", Kind: patch.KindText, Policy: patch.PolicyPresent},
	{Column: "expertise", Kind: patch.KindText, Policy: patch.PolicyPresent},
	{Column: "experience_years", Kind: patch.KindInteger, Policy: patch.PolicyPresent},
	{Column: "profile_picture_url", Kind: patch.KindText, Policy: patch.PolicyPresent},
}

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// PostgresMentorRepo はPostgreSQLを使用したメンターリポジトリ。
type PostgresMentorRepo struct {
	db *sql.DB
}

// NewPostgresMentorRepo はPostgresMentorRepoを生成する。
func NewPostgresMentorRepo(db *sql.DB) *PostgresMentorRepo {
	return &PostgresMentorRepo{db: db}
}

var _ MentorRepository = (*PostgresMentorRepo)(nil)

func scanMentor(s rowScanner) (*model.Mentor, error) {
	m := &model.Mentor{}
	err := s.Scan(&m.ID, &m.Name, &m.Email, &m.Bio, &m.Expertise,
		&m.ExperienceYears, &m.ProfilePictureURL, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Create はメンターを作成する。
func (r *PostgresMentorRepo) Create(ctx context.Context, m *model.Mentor) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mentors (id, name, email, bio, expertise, experience_years, profile_picture_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.Name, m.Email, m.Bio, m.Expertise, m.ExperienceYears, m.ProfilePictureURL, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert mentor: %w", translateError(err))
	}
	return nil
}

// FindByID は指定IDのメンターを取得する。見つからない場合はnilを返す。
func (r *PostgresMentorRepo) FindByID(ctx context.Context, id string) (*model.Mentor, error) {
	if !validID(id) {
		return nil, nil
	}

	m, err := scanMentor(r.db.QueryRowContext(ctx,
		`SELECT `+mentorColumns+` FROM mentors WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find mentor by ID: %w", err)
	}
	return m, nil
}

// FindByEmail はemailでメンターを検索する。見つからない場合はnilを返す。
func (r *PostgresMentorRepo) FindByEmail(ctx context.Context, email string) (*model.Mentor, error) {
	m, err := scanMentor(r.db.QueryRowContext(ctx,
		`SELECT `+mentorColumns+` FROM mentors WHERE email = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find mentor by email: %w", err)
	}
	return m, nil
}

// List は全メンターを名前順で返す。
func (r *PostgresMentorRepo) List(ctx context.Context) ([]*model.Mentor, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+mentorColumns+` FROM mentors ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentors: %w", err)
	}
	defer rows.Close()

	mentors := []*model.Mentor{}
	for rows.Next() {
		m, err := scanMentor(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mentor: %w", err)
		}
		mentors = append(mentors, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mentors: %w", err)
	}
	return mentors, nil
}

// Update はホワイトリストのカラムのみを部分更新する。
func (r *PostgresMentorRepo) Update(ctx context.Context, id string, values map[string]any) (*model.Mentor, error) {
	stmt, err := patch.Build("mentors", mentorPatchFields, values, id, mentorColumns)
	if err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, nil
	}

	m, err := scanMentor(r.db.QueryRowContext(ctx, stmt.SQL, stmt.Args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update mentor: %w", translateError(err))
	}
	return m, nil
}
