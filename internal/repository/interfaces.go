// Package repository はデータ永続化のインターフェースを定義する。
//
// Find系メソッドは見つからない場合に (nil, nil) を返す。
// 一意制約違反は *DuplicateKeyError、外部キー違反は *ForeignKeyError として返し、
// 呼び出し元は制約名からエンティティ固有のConflict/NotFoundに変換する。
package repository

import (
	"context"

	"github.com/hitoshi/mentwork/internal/model"
)

// MentorRepository はメンターデータの永続化インターフェース。
type MentorRepository interface {
	// Create はメンターを作成する。emailが重複する場合は *DuplicateKeyError を返す。
	Create(ctx context.Context, mentor *model.Mentor) error

	// FindByID は指定IDのメンターを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Mentor, error)

	// FindByEmail はemailでメンターを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Mentor, error)

	// List は全メンターを名前順で返す。
	List(ctx context.Context) ([]*model.Mentor, error)

	// Update はホワイトリストのカラムのみを部分更新する。
	// 対象が存在しない場合はnilを返す。更新カラムが無い場合は patch.ErrNoFields を返す。
	Update(ctx context.Context, id string, values map[string]any) (*model.Mentor, error)
}

// MenteeRepository はメンティーデータの永続化インターフェース。
type MenteeRepository interface {
	// Create はメンティーを作成する。emailが重複する場合は *DuplicateKeyError を返す。
	Create(ctx context.Context, mentee *model.Mentee) error

	// FindByID は指定IDのメンティーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Mentee, error)

	// FindByEmail はemailでメンティーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Mentee, error)

	// List は全メンティーを名前順で返す。
	List(ctx context.Context) ([]*model.Mentee, error)

	// Update はホワイトリストのカラムのみを部分更新する。対象が存在しない場合はnilを返す。
	Update(ctx context.Context, id string, values map[string]any) (*model.Mentee, error)
}

// ProgramRepository はプログラムデータの永続化インターフェース。
type ProgramRepository interface {
	// Create はプログラムを作成する。mentor_emailに対応するメンターが無い場合は *ForeignKeyError を返す。
	Create(ctx context.Context, program *model.Program) error

	// ListAll は全プログラムをメンター名付きでsession_date降順に返す。
	ListAll(ctx context.Context) ([]*model.Program, error)

	// ListByMentorEmail は指定メンターのプログラムをsession_date降順に返す。
	ListByMentorEmail(ctx context.Context, mentorEmail string) ([]*model.Program, error)

	// Update はホワイトリストのカラムのみを部分更新する。対象が存在しない場合はnilを返す。
	Update(ctx context.Context, id string, values map[string]any) (*model.Program, error)

	// Delete は指定IDのプログラムを削除し、削除したレコードを返す。対象が存在しない場合はnilを返す。
	Delete(ctx context.Context, id string) (*model.Program, error)
}

// ConnectionRepository はメンター・メンティー接続の永続化インターフェース。
type ConnectionRepository interface {
	// Create は接続を作成する。同一ペアが存在する場合は *DuplicateKeyError、
	// メンターまたはメンティーが存在しない場合は *ForeignKeyError を返す。
	Create(ctx context.Context, conn *model.Connection) error

	// FindByPair はメンターIDとメンティーIDで接続を検索する。見つからない場合はnilを返す。
	FindByPair(ctx context.Context, mentorID, menteeID string) (*model.Connection, error)

	// ListByMentor はメンターの接続一覧をメンティー情報付きで新しい順に返す。
	ListByMentor(ctx context.Context, mentorID string) ([]model.ConnectionWithMentee, error)

	// ListByMentee はメンティーの接続一覧をメンター情報付きで新しい順に返す。
	ListByMentee(ctx context.Context, menteeID string) ([]model.ConnectionWithMentor, error)

	// Delete は指定IDの接続を削除し、削除したレコードを返す。対象が存在しない場合はnilを返す。
	Delete(ctx context.Context, id string) (*model.Connection, error)
}

// SagaRepository はサーガ進行記録の永続化インターフェース。
type SagaRepository interface {
	// Create は進行記録を作成する。
	Create(ctx context.Context, run *model.SagaRun) error

	// UpdateStatus は進行状態を更新する。menteeIDが空の場合は既存値を維持する。
	UpdateStatus(ctx context.Context, id string, status model.SagaStatus, menteeID, errMsg string) error
}
