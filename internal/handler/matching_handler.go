package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/mentwork/internal/connection"
	"github.com/hitoshi/mentwork/internal/matching"
	"github.com/hitoshi/mentwork/internal/middleware"
	"github.com/hitoshi/mentwork/internal/model"
)

// MatchingServiceInterface はマッチング検索のインターフェース。
type MatchingServiceInterface interface {
	FindMatches(ctx context.Context, req matching.Request) matching.Outcome
}

// SagaServiceInterface はワークフロー経由の接続作成のインターフェース。
type SagaServiceInterface interface {
	ConnectViaRemote(ctx context.Context, mentorID, menteeID string) (json.RawMessage, error)
	RegisterAndConnect(ctx context.Context, in connection.RegisterAndConnectInput) (*connection.RegisterAndConnectResult, error)
}

// MatchingHandler はマッチングと接続ワークフローのHTTPハンドラー。
type MatchingHandler struct {
	matcher  MatchingServiceInterface
	saga     SagaServiceInterface
	validate *validator.Validate
}

// NewMatchingHandler はMatchingHandlerを生成する。
func NewMatchingHandler(matcher MatchingServiceInterface, saga SagaServiceInterface) *MatchingHandler {
	return &MatchingHandler{
		matcher:  matcher,
		saga:     saga,
		validate: newValidator(),
	}
}

// FindMatches は未登録のメンティー候補に合うメンターを検索する。
// POST /matching/find-matches
func (h *MatchingHandler) FindMatches(w http.ResponseWriter, r *http.Request) {
	var req matching.Request
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.MsgInvalidRequestBody)
		return
	}

	out := h.matcher.FindMatches(r.Context(), req)
	if !out.Success {
		middleware.WriteErrorResponse(w, out.Status, out.Error)
		return
	}

	matches := out.Matches
	if matches == nil {
		matches = []json.RawMessage{}
	}
	writeJSON(w, out.Status, envelope{
		"success": true,
		"message": out.Message,
		"matches": matches,
	})
}

// connectRequest はワークフロー経由の接続作成リクエスト。
type connectRequest struct {
	MentorID flexibleID `json:"mentor_id" validate:"required"`
	MenteeID flexibleID `json:"mentee_id" validate:"required"`
}

// CreateConnection はワークフローエンジン経由で接続を作成する。
// ボディはオブジェクトまたはその配列を受け付け、配列の場合は先頭要素を使う。
// POST /matching/create-connection
func (h *MatchingHandler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeJSON(r, &raw); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.MsgInvalidRequestBody)
		return
	}

	req, ok := decodeConnectRequest(raw)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.MsgInvalidRequestBody)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.MsgConnectionIDsRequired)
		return
	}

	record, err := h.saga.ConnectViaRemote(r.Context(), string(req.MentorID), string(req.MenteeID))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "connection", record)
}

// decodeConnectRequest はオブジェクトまたは配列の先頭要素をconnectRequestに展開する。
func decodeConnectRequest(raw json.RawMessage) (connectRequest, bool) {
	var req connectRequest
	body := bytes.TrimSpace(raw)
	if len(body) > 0 && body[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(body, &items); err != nil || len(items) == 0 {
			return req, false
		}
		body = items[0]
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, false
	}
	return req, true
}

// registerAndConnectRequest はメンティー登録と接続作成をまとめたリクエスト。
type registerAndConnectRequest struct {
	MenteeName       string     `json:"mentee_name" validate:"required"`
	MenteeEmail      string     `json:"mentee_email" validate:"required"`
	MenteeGoals      *string    `json:"mentee_goals"`
	SelectedMentorID flexibleID `json:"selected_mentor_id" validate:"required"`
}

// RegisterAndConnect はメンティーを登録し、選択されたメンターと接続する。
// POST /matching/register-and-connect
func (h *MatchingHandler) RegisterAndConnect(w http.ResponseWriter, r *http.Request) {
	var req registerAndConnectRequest
	if err := decodeJSON(r, &req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.MsgInvalidRequestBody)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.MsgRegisterAndConnectInvalid)
		return
	}

	res, err := h.saga.RegisterAndConnect(r.Context(), connection.RegisterAndConnectInput{
		MenteeName:       req.MenteeName,
		MenteeEmail:      req.MenteeEmail,
		MenteeGoals:      req.MenteeGoals,
		SelectedMentorID: string(req.SelectedMentorID),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, envelope{
		"success":    true,
		"message":    model.MsgRegisteredAndConnected,
		"mentee":     res.Mentee,
		"connection": res.Connection,
	})
}
