package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/mentwork/internal/model"
	"github.com/hitoshi/mentwork/internal/patch"
)

const programColumns = `id, mentor_email, title, description, session_type, price, duration, session_date, created_at, updated_at`

var programPatchFields = []patch.Field{
	{Column: "title", Kind: patch.KindText, Policy: patch.PolicyNonEmpty},
	{Column: "description", Kind: patch.KindText, Policy: patch.PolicyPresent},
	{Column: "session_type", Kind: patch.KindText, Policy: patch.PolicyPresent},
	{Column: "price", Kind: patch.KindNumber, Policy: patch.PolicyPresent},
	{Column: "duration", Kind: patch.KindInteger, Policy: patch.PolicyPresent},
	{Column: "session_date", Kind: patch.KindTimestamp, Policy: patch.PolicyNonEmpty},
}

// PostgresProgramRepo はPostgreSQLを使用したプログラムリポジトリ。
type PostgresProgramRepo struct {
	db *sql.DB
}

// NewPostgresProgramRepo はPostgresProgramRepoを生成する。
func NewPostgresProgramRepo(db *sql.DB) *PostgresProgramRepo {
	return &PostgresProgramRepo{db: db}
}

var _ ProgramRepository = (*PostgresProgramRepo)(nil)

func scanProgram(s rowScanner, extra ...any) (*model.Program, error) {
	p := &model.Program{}
	dest := []any{&p.ID, &p.MentorEmail, &p.Title, &p.Description, &p.SessionType,
		&p.Price, &p.Duration, &p.SessionDate, &p.CreatedAt, &p.UpdatedAt}
	if err := s.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	return p, nil
}

// Create はプログラムを作成する。
func (r *PostgresProgramRepo) Create(ctx context.Context, p *model.Program) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO programs (id, mentor_email, title, description, session_type, price, duration, session_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.MentorEmail, p.Title, p.Description, p.SessionType, p.Price, p.Duration, p.SessionDate, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert program: %w", translateError(err))
	}
	return nil
}

// ListAll は全プログラムをメンター名付きでsession_date降順に返す。
func (r *PostgresProgramRepo) ListAll(ctx context.Context) ([]*model.Program, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.mentor_email, p.title, p.description, p.session_type, p.price, p.duration,
		        p.session_date, p.created_at, p.updated_at, m.name
		 FROM programs p
		 LEFT JOIN mentors m ON m.email = p.mentor_email
		 ORDER BY p.session_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	defer rows.Close()

	programs := []*model.Program{}
	for rows.Next() {
		var mentorName sql.NullString
		p, err := scanProgram(rows, &mentorName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan program: %w", err)
		}
		if mentorName.Valid {
			p.MentorName = &mentorName.String
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate programs: %w", err)
	}
	return programs, nil
}

// ListByMentorEmail は指定メンターのプログラムをsession_date降順に返す。
func (r *PostgresProgramRepo) ListByMentorEmail(ctx context.Context, mentorEmail string) ([]*model.Program, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+programColumns+` FROM programs WHERE mentor_email = $1 ORDER BY session_date DESC`,
		mentorEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to list programs by mentor: %w", err)
	}
	defer rows.Close()

	programs := []*model.Program{}
	for rows.Next() {
		p, err := scanProgram(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan program: %w", err)
		}
		programs = append(programs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate programs: %w", err)
	}
	return programs, nil
}

// Update はホワイトリストのカラムのみを部分更新する。
func (r *PostgresProgramRepo) Update(ctx context.Context, id string, values map[string]any) (*model.Program, error) {
	stmt, err := patch.Build("programs", programPatchFields, values, id, programColumns)
	if err != nil {
		return nil, err
	}
	if !validID(id) {
		return nil, nil
	}

	p, err := scanProgram(r.db.QueryRowContext(ctx, stmt.SQL, stmt.Args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update program: %w", translateError(err))
	}
	return p, nil
}

// Delete は指定IDのプログラムを削除し、削除したレコードを返す。
func (r *PostgresProgramRepo) Delete(ctx context.Context, id string) (*model.Program, error) {
	if !validID(id) {
		return nil, nil
	}

	p, err := scanProgram(r.db.QueryRowContext(ctx,
		`DELETE FROM programs WHERE id = $1 RETURNING `+programColumns, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete program: %w", err)
	}
	return p, nil
}
