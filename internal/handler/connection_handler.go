package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/mentwork/internal/middleware"
	"github.com/hitoshi/mentwork/internal/model"
)

// ConnectionServiceInterface は接続ハンドラーが必要とするサービスインターフェース。
type ConnectionServiceInterface interface {
	Create(ctx context.Context, mentorID, menteeID string) (*model.Connection, error)
	ListByMentor(ctx context.Context, mentorID string) ([]model.ConnectionWithMentee, error)
	ListByMentee(ctx context.Context, menteeID string) ([]model.ConnectionWithMentor, error)
	Delete(ctx context.Context, id string) (*model.Connection, error)
}

// ConnectionHandler はメンター・メンティー接続のHTTPハンドラー。
type ConnectionHandler struct {
	service  ConnectionServiceInterface
	validate *validator.Validate
}

// NewConnectionHandler はConnectionHandlerを生成する。
func NewConnectionHandler(service ConnectionServiceInterface) *ConnectionHandler {
	return &ConnectionHandler{
		service:  service,
		validate: newValidator(),
	}
}

// createConnectionRequest は接続作成リクエストのボディ。
type createConnectionRequest struct {
	MentorID flexibleID `json:"mentor_id" validate:"required"`
	MenteeID flexibleID `json:"mentee_id" validate:"required"`
}

// Create は接続を直接作成する。
// POST /connections
func (h *ConnectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createConnectionRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.MsgInvalidRequestBody)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.MsgConnectionIDsRequired)
		return
	}

	conn, err := h.service.Create(r.Context(), string(req.MentorID), string(req.MenteeID))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "connection", conn)
}

// ListByMentor はメンターの接続一覧を返す。
// GET /connections/mentor/{mentorId}
func (h *ConnectionHandler) ListByMentor(w http.ResponseWriter, r *http.Request) {
	conns, err := h.service.ListByMentor(r.Context(), chi.URLParam(r, "mentorId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "connections", conns)
}

// ListByMentee はメンティーの接続一覧を返す。
// GET /connections/mentee/{menteeId}
func (h *ConnectionHandler) ListByMentee(w http.ResponseWriter, r *http.Request) {
	conns, err := h.service.ListByMentee(r.Context(), chi.URLParam(r, "menteeId"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "connections", conns)
}

// Delete は接続を削除する。
// DELETE /connections/{id}
func (h *ConnectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	conn, err := h.service.Delete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"success":    true,
		"message":    model.MsgConnectionDeleted,
		"connection": conn,
	})
}
