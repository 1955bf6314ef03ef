package repository

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgreSQLのエラーコード
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// 制約名。マイグレーションで明示的に命名している。
const (
	ConstraintMentorsEmail       = "mentors_email_key"
	ConstraintMenteesEmail       = "mentees_email_key"
	ConstraintConnectionPair     = "mentor_mentee_connections_pair_key"
	ConstraintConnectionMentorFK = "mentor_mentee_connections_mentor_id_fkey"
	ConstraintConnectionMenteeFK = "mentor_mentee_connections_mentee_id_fkey"
	ConstraintProgramMentorFK    = "programs_mentor_email_fkey"
)

// DuplicateKeyError は一意制約違反を表す。
type DuplicateKeyError struct {
	Constraint string
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate key violates unique constraint %q", e.Constraint)
}

// Unwrap は元のドライバエラーを返す。
func (e *DuplicateKeyError) Unwrap() error {
	return e.Err
}

// ForeignKeyError は外部キー制約違反を表す。
type ForeignKeyError struct {
	Constraint string
	Err        error
}

// Error はerrorインターフェースを実装する。
func (e *ForeignKeyError) Error() string {
	return fmt.Sprintf("insert or update violates foreign key constraint %q", e.Constraint)
}

// Unwrap は元のドライバエラーを返す。
func (e *ForeignKeyError) Unwrap() error {
	return e.Err
}

// IsDuplicateKey はerrが指定制約の一意制約違反かを判定する。
// constraintが空の場合は制約名を問わない。
func IsDuplicateKey(err error, constraint string) bool {
	var dup *DuplicateKeyError
	if !errors.As(err, &dup) {
		return false
	}
	return constraint == "" || dup.Constraint == constraint
}

// IsForeignKey はerrが指定制約の外部キー違反かを判定する。
func IsForeignKey(err error, constraint string) bool {
	var fk *ForeignKeyError
	if !errors.As(err, &fk) {
		return false
	}
	return constraint == "" || fk.Constraint == constraint
}

// translateError はlib/pqのエラーを制約違反の型付きエラーに変換する。
// それ以外のエラーはそのまま返す。
func translateError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch string(pqErr.Code) {
	case pgUniqueViolation:
		return &DuplicateKeyError{Constraint: pqErr.Constraint, Err: err}
	case pgForeignKeyViolation:
		return &ForeignKeyError{Constraint: pqErr.Constraint, Err: err}
	}
	return err
}

// validID はidがUUIDとして解釈できるかを返す。
// 不正なIDはPostgreSQLの型エラーにせず「見つからない」として扱う。
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
