package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/mentwork/internal/model"
	"github.com/hitoshi/mentwork/internal/patch"
)

const menteeColumns = `id, name, email, goals, created_at, updated_at`

var menteePatchFields = []patch.Field{
	{Column: "name", Kind: patch.KindText, Policy: patch.PolicyNonEmpty},
	{Column: "goals", Kind: patch.KindText, Policy: patch.PolicyPresent},
}

// PostgresMenteeRepo はPostgreSQLを使用したメンティーリポジトリ。
type PostgresMenteeRepo struct {
	db *sql.DB
}

// NewPostgresMenteeRepo はPostgresMenteeRepoを生成する。
func NewPostgresMenteeRepo(db *sql.DB) *PostgresMenteeRepo {
	return &PostgresMenteeRepo{db: db}
}

var _ MenteeRepository = (*PostgresMenteeRepo)(nil)

func scanMentee(s rowScanner) (*model.Mentee, error) {
	m := &model.Mentee{}
	if err := s.Scan(&m.ID, &m.Name, &m.Email, &m.Goals, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return m, nil
}

// Create はメンティーを作成する。
func (r *PostgresMenteeRepo) Create(ctx context.Context, m *model.Mentee) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mentees (id, name, email, goals, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.Name, m.Email, m.Goals, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert mentee: %w", translateError(err))
	}
	return nil
}

// FindByID は指定IDのメンティーを取得する。見つからない場合はnilを返す。
func (r *PostgresMenteeRepo) FindByID(ctx context.Context, id string) (*model.Mentee, error) {
	if !validID(id) {
		return nil, nil
	}

	m, err := scanMentee(r.db.QueryRowContext(ctx,
		`SELECT `+menteeColumns+` FROM mentees WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find mentee by ID: %w", err)
	}
	return m, nil
}

// FindByEmail はemailでメンティーを検索する。見つからない場合はnilを返す。
func (r *PostgresMenteeRepo) FindByEmail(ctx context.Context, email string) (*model.Mentee, error) {
	m, err := scanMentee(r.db.QueryRowContext(ctx,
		`SELECT `+menteeColumns+` FROM mentees WHERE email = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find mentee by email: %w", err)
	}
	return m, nil
}

// List は全メンティーを名前順で返す。
func (r *PostgresMenteeRepo) List(ctx context.Context) ([]*model.Mentee, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+menteeColumns+` FROM mentees ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentees: %w", err)
	}
	defer rows.Close()

	mentees := []*model.Mentee{}
	for rows.Next() {
		m, err := scanMentee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan mentee: %w", err)
		}
		mentees = append(mentees, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate mentees: %w", err)
	}
	return mentees, nil
}

// Update はホワイトリストのカラムのみを部分更新する。
func (r *PostgresMenteeRepo) Update(ctx context.Context, id string, values map[string]any) (*model.Mentee, error) {
	stmt, err := patch.Build("mentees", menteePatchFields, values, id, menteeColumns)
	if err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, nil
	}

	m, err := scanMentee(r.db.QueryRowContext(ctx, stmt.SQL, stmt.Args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update mentee: %w", translateError(err))
	}
	return m, nil
}
