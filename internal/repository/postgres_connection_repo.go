package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/mentwork/internal/model"
)

// PostgresConnectionRepo はPostgreSQLを使用した接続リポジトリ。
type PostgresConnectionRepo struct {
	db *sql.DB
}

// NewPostgresConnectionRepo はPostgresConnectionRepoを生成する。
func NewPostgresConnectionRepo(db *sql.DB) *PostgresConnectionRepo {
	return &PostgresConnectionRepo{db: db}
}

var _ ConnectionRepository = (*PostgresConnectionRepo)(nil)

// Create は接続を作成する。
// 同一ペアの一意制約と両テーブルへの外部キーが競合時の最終防衛線になる。
func (r *PostgresConnectionRepo) Create(ctx context.Context, c *model.Connection) error {
	if !validID(c.MentorID) {
		return &ForeignKeyError{Constraint: ConstraintConnectionMentorFK}
	}
	if !validID(c.MenteeID) {
		return &ForeignKeyError{Constraint: ConstraintConnectionMenteeFK}
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO mentor_mentee_connections (id, mentor_id, mentee_id, created_at)
		 VALUES ($1, $2, $3, $4)`,
		c.ID, c.MentorID, c.MenteeID, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert connection: %w", translateError(err))
	}
	return nil
}

// FindByPair はメンターIDとメンティーIDで接続を検索する。見つからない場合はnilを返す。
func (r *PostgresConnectionRepo) FindByPair(ctx context.Context, mentorID, menteeID string) (*model.Connection, error) {
	if !validID(mentorID) || !validID(menteeID) {
		return nil, nil
	}

	c := &model.Connection{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, mentor_id, mentee_id, created_at
		 FROM mentor_mentee_connections
		 WHERE mentor_id = $1 AND mentee_id = $2`,
		mentorID, menteeID,
	).Scan(&c.ID, &c.MentorID, &c.MenteeID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find connection by pair: %w", err)
	}
	return c, nil
}

// ListByMentor はメンターの接続一覧をメンティー情報付きで新しい順に返す。
func (r *PostgresConnectionRepo) ListByMentor(ctx context.Context, mentorID string) ([]model.ConnectionWithMentee, error) {
	result := []model.ConnectionWithMentee{}
	if !validID(mentorID) {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.mentor_id, c.mentee_id, c.created_at, me.name, me.email, me.goals
		 FROM mentor_mentee_connections c
		 JOIN mentees me ON me.id = c.mentee_id
		 WHERE c.mentor_id = $1
		 ORDER BY c.created_at DESC`,
		mentorID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections by mentor: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.ConnectionWithMentee
		if err := rows.Scan(&c.ID, &c.MentorID, &c.MenteeID, &c.CreatedAt,
			&c.MenteeName, &c.MenteeEmail, &c.MenteeGoals); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate connections: %w", err)
	}
	return result, nil
}

// ListByMentee はメンティーの接続一覧をメンター情報付きで新しい順に返す。
func (r *PostgresConnectionRepo) ListByMentee(ctx context.Context, menteeID string) ([]model.ConnectionWithMentor, error) {
	result := []model.ConnectionWithMentor{}
	if !validID(menteeID) {
		return result, nil
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.mentor_id, c.mentee_id, c.created_at,
		        m.name, m.email, m.expertise, m.experience_years, m.profile_picture_url
		 FROM mentor_mentee_connections c
		 JOIN mentors m ON m.id = c.mentor_id
		 WHERE c.mentee_id = $1
		 ORDER BY c.created_at DESC`,
		menteeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list connections by mentee: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.ConnectionWithMentor
		if err := rows.Scan(&c.ID, &c.MentorID, &c.MenteeID, &c.CreatedAt,
			&c.MentorName, &c.MentorEmail, &c.Expertise, &c.ExperienceYears, &c.ProfilePictureURL); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate connections: %w", err)
	}
	return result, nil
}

// Delete は指定IDの接続を削除し、削除したレコードを返す。
func (r *PostgresConnectionRepo) Delete(ctx context.Context, id string) (*model.Connection, error) {
	if !validID(id) {
		return nil, nil
	}

	c := &model.Connection{}
	err := r.db.QueryRowContext(ctx,
		`DELETE FROM mentor_mentee_connections WHERE id = $1
		 RETURNING id, mentor_id, mentee_id, created_at`,
		id,
	).Scan(&c.ID, &c.MentorID, &c.MenteeID, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete connection: %w", err)
	}
	return c, nil
}
