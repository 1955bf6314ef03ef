package model

import "time"

// Connection はメンターとメンティーの接続を表す。
// (mentor_id, mentee_id) の組は一意。
type Connection struct {
	ID        string    `json:"id"`
	MentorID  string    `json:"mentor_id"`
	MenteeID  string    `json:"mentee_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ConnectionWithMentee はメンター視点の接続一覧の行。
type ConnectionWithMentee struct {
	Connection
	MenteeName  string  `json:"mentee_name"`
	MenteeEmail string  `json:"mentee_email"`
	MenteeGoals *string `json:"mentee_goals"`
}

// ConnectionWithMentor はメンティー視点の接続一覧の行。
type ConnectionWithMentor struct {
	Connection
	MentorName        string  `json:"mentor_name"`
	MentorEmail       string  `json:"mentor_email"`
	Expertise         *string `json:"expertise"`
	ExperienceYears   *int    `json:"experience_years"`
	ProfilePictureURL *string `json:"profile_picture_url"`
}

// SagaStatus は登録＋接続サーガの進行状態。
type SagaStatus string

const (
	SagaStatusStarted       SagaStatus = "started"
	SagaStatusMenteeCreated SagaStatus = "mentee_created"
	SagaStatusCompleted     SagaStatus = "completed"
	SagaStatusFailed        SagaStatus = "failed"
	SagaStatusCompensated   SagaStatus = "compensated"
)

// SagaRun はサーガ1回分の進行記録。
// 途中で失敗した実行の孤児メンティーをクリーンアップジョブが特定するために使う。
type SagaRun struct {
	ID        string
	Flow      string
	MentorID  string
	MenteeID  string // mentee作成前は空
	Status    SagaStatus
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}
