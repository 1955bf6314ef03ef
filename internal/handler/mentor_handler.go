package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/mentwork/internal/mentor"
	"github.com/hitoshi/mentwork/internal/middleware"
	"github.com/hitoshi/mentwork/internal/model"
)

// MentorServiceInterface はメンターハンドラーが必要とするサービスインターフェース。
type MentorServiceInterface interface {
	Register(ctx context.Context, in mentor.RegisterInput) (*model.Mentor, error)
	List(ctx context.Context) ([]*model.Mentor, error)
	FindByID(ctx context.Context, id string) (*model.Mentor, error)
	FindByEmail(ctx context.Context, email string) (*model.Mentor, error)
	Update(ctx context.Context, id string, values map[string]any) (*model.Mentor, error)
}

// MentorHandler はメンター管理のHTTPハンドラー。
type MentorHandler struct {
	service  MentorServiceInterface
	validate *validator.Validate
}

// NewMentorHandler はMentorHandlerを生成する。
func NewMentorHandler(service MentorServiceInterface) *MentorHandler {
	return &MentorHandler{
		service:  service,
		validate: newValidator(),
	}
}

// registerMentorRequest はメンター登録リクエストのボディ。
type registerMentorRequest struct {
	Name              string  `json:"name" validate:"required"`
	Email             string  `json:"email" validate:"required"`
	Bio               *string `json:"bio"`
	Expertise         *string `json:"expertise"`
	ExperienceYears   *int    `json:"experience_years" validate:"omitempty,gte=0"`
	ProfilePictureURL *string `json:"profile_picture_url" validate:"omitempty,url"`
}

// Register はメンターを登録する。
// POST /mentors/register
func (h *MentorHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerMentorRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.MsgInvalidRequestBody)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, validationMessage(err, model.MsgNameAndEmailRequired))
		return
	}

	m, err := h.service.Register(r.Context(), mentor.RegisterInput{
		Name:              req.Name,
		Email:             req.Email,
		Bio:               req.Bio,
		Expertise:         req.Expertise,
		ExperienceYears:   req.ExperienceYears,
		ProfilePictureURL: req.ProfilePictureURL,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "mentor", m)
}

// List は全メンターを返す。
// GET /mentors
func (h *MentorHandler) List(w http.ResponseWriter, r *http.Request) {
	mentors, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "mentors", mentors)
}

// GetByEmail はemailでメンターを取得する。
// GET /mentors/email/{email}
func (h *MentorHandler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.FindByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "mentor", m)
}

// GetByID はIDでメンターを取得する。
// GET /mentors/id/{id}
func (h *MentorHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.FindByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "mentor", m)
}

// Update はメンターを部分更新する。
// PUT /mentors/{id}
func (h *MentorHandler) Update(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if err := decodeJSON(r, &values); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.MsgInvalidRequestBody)
		return
	}

	m, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), values)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "mentor", m)
}
