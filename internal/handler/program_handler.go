package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/mentwork/internal/middleware"
	"github.com/hitoshi/mentwork/internal/model"
	"github.com/hitoshi/mentwork/internal/program"
)

// ProgramServiceInterface はプログラムハンドラーが必要とするサービスインターフェース。
type ProgramServiceInterface interface {
	Create(ctx context.Context, in program.CreateInput) (*model.Program, error)
	ListAll(ctx context.Context) ([]*model.Program, error)
	ListByMentorEmail(ctx context.Context, email string) ([]*model.Program, error)
	Update(ctx context.Context, id string, values map[string]any) (*model.Program, error)
	Delete(ctx context.Context, id string) (*model.Program, error)
}

// ProgramHandler はプログラム管理のHTTPハンドラー。
type ProgramHandler struct {
	service  ProgramServiceInterface
	validate *validator.Validate
}

// NewProgramHandler はProgramHandlerを生成する。
func NewProgramHandler(service ProgramServiceInterface) *ProgramHandler {
	return &ProgramHandler{
		service:  service,
		validate: newValidator(),
	}
}

// createProgramRequest はプログラム作成リクエストのボディ。
type createProgramRequest struct {
	MentorEmail string   `json:"mentor_email" validate:"required"`
	Title       string   `json:"title" validate:"required"`
	Description *string  `json:"description"`
	SessionType *string  `json:"session_type"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Duration    *int     `json:"duration" validate:"omitempty,gt=0"`
	SessionDate string   `json:"session_date" validate:"required"`
}

// Create はプログラムを作成する。
// POST /programs
func (h *ProgramHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createProgramRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.MsgInvalidRequestBody)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, validationMessage(err, model.MsgProgramFieldsRequired))
		return
	}

	p, err := h.service.Create(r.Context(), program.CreateInput{
		MentorEmail: req.MentorEmail,
		Title:       req.Title,
		Description: req.Description,
		SessionType: req.SessionType,
		Price:       req.Price,
		Duration:    req.Duration,
		SessionDate: req.SessionDate,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "program", p)
}

// ListAll は全プログラムを返す。
// GET /programs
func (h *ProgramHandler) ListAll(w http.ResponseWriter, r *http.Request) {
	programs, err := h.service.ListAll(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "programs", programs)
}

// ListByMentor は指定メンターのプログラムを返す。
// GET /programs/mentor/{email}
func (h *ProgramHandler) ListByMentor(w http.ResponseWriter, r *http.Request) {
	programs, err := h.service.ListByMentorEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "programs", programs)
}

// Update はプログラムを部分更新する。
// PUT /programs/{id}
func (h *ProgramHandler) Update(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if err := decodeJSON(r, &values); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.MsgInvalidRequestBody)
		return
	}

	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), values)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "program", p)
}

// Delete はプログラムを削除する。
// DELETE /programs/{id}
func (h *ProgramHandler) Delete(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"message": model.MsgProgramDeleted,
		"program": p,
	})
}
