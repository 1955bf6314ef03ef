// Package model はドメインモデルを定義する。
package model

import "time"

// Mentor はメンターを表す。emailは一意。
type Mentor struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Email             string    `json:"email"`
	Bio               *string   `json:"bio"`
	Expertise         *string   `json:"expertise"`
	ExperienceYears   *int      `json:"experience_years"`
	ProfilePictureURL *string   `json:"profile_picture_url"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Mentee はメンティーを表す。emailは一意。
type Mentee struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Goals     *string   `json:"goals"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Program はメンターが提供するセッションプログラムを表す。
// メンターはIDではなくemailで参照する。
type Program struct {
	ID          string    `json:"id"`
	MentorEmail string    `json:"mentor_email"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	SessionType *string   `json:"session_type"`
	Price       *float64  `json:"price"`
	Duration    *int      `json:"duration"`
	SessionDate time.Time `json:"session_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// MentorName は一覧取得時にmentorsとJOINした場合のみ設定される。
	MentorName *string `json:"mentor_name,omitempty"`
}
