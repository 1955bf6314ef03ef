package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/mentwork/internal/mentee"
	"github.com/hitoshi/mentwork/internal/middleware"
	"github.com/hitoshi/mentwork/internal/model"
)

// MenteeServiceInterface はメンティーハンドラーが必要とするサービスインターフェース。
type MenteeServiceInterface interface {
	Register(ctx context.Context, in mentee.RegisterInput) (*model.Mentee, error)
	List(ctx context.Context) ([]*model.Mentee, error)
	FindByEmail(ctx context.Context, email string) (*model.Mentee, error)
	Update(ctx context.Context, id string, values map[string]any) (*model.Mentee, error)
}

// MenteeHandler はメンティー管理のHTTPハンドラー。
type MenteeHandler struct {
	service  MenteeServiceInterface
	validate *validator.Validate
}

// NewMenteeHandler はMenteeHandlerを生成する。
func NewMenteeHandler(service MenteeServiceInterface) *MenteeHandler {
	return &MenteeHandler{
		service:  service,
		validate: newValidator(),
	}
}

// registerMenteeRequest はメンティー登録リクエストのボディ。
type registerMenteeRequest struct {
	Name  string  `json:"name" validate:"required"`
	Email string  `json:"email" validate:"required"`
	Goals *string `json:"goals"`
}

// Register はメンティーを登録する。
// POST /mentees/register
func (h *MenteeHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerMenteeRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.MsgInvalidRequestBody)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, validationMessage(err, model.MsgNameAndEmailRequired))
		return
	}

	m, err := h.service.Register(r.Context(), mentee.RegisterInput{
		Name:  req.Name,
		Email: req.Email,
		Goals: req.Goals,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "mentee", m)
}

// List は全メンティーを返す。
// GET /mentees
func (h *MenteeHandler) List(w http.ResponseWriter, r *http.Request) {
	mentees, err := h.service.List(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "mentees", mentees)
}

// GetByEmail はemailでメンティーを取得する。
// GET /mentees/email/{email}
func (h *MenteeHandler) GetByEmail(w http.ResponseWriter, r *http.Request) {
	m, err := h.service.FindByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "mentee", m)
}

// Update はメンティーを部分更新する。
// PUT /mentees/{id}
func (h *MenteeHandler) Update(w http.ResponseWriter, r *http.Request) {
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

	writeSuccess(w, http.StatusOK, "mentee", m)
}
