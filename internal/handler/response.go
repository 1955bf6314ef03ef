package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/mentwork/internal/middleware"
	"github.com/hitoshi/mentwork/internal/model"
	"github.com/hitoshi/mentwork/internal/patch"
)

// maxRequestBodySize はリクエストボディの上限（1MB）。
const maxRequestBodySize = 1 << 20

// envelope はレスポンスの共通形式 {success, ...}。
type envelope map[string]any

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeSuccess は {success: true, key: value} を書き込む。
func writeSuccess(w http.ResponseWriter, statusCode int, key string, value any) {
	writeJSON(w, statusCode, envelope{"success": true, key: value})
}

// decodeJSON はリクエストボディをvに展開する。
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodySize))
	dec.UseNumber()
	return dec.Decode(v)
}

// newValidator はJSONのフィールド名でエラーを報告するvalidatorを生成する。
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationMessage は検証エラーをクライアント向けのメッセージに変換する。
// 必須項目の不足はエンドポイントごとのrequiredメッセージ、それ以外はフィールド名つきのメッセージになる。
func validationMessage(err error, required string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Tag() != "required" {
				return fmt.Sprintf("Invalid value for %s", fe.Field())
			}
		}
	}
	return required
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, patch.ErrNoFields) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.MsgNoFieldsToUpdate)
		return
	}

	var fieldErr *patch.FieldError
	if errors.As(err, &fieldErr) {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, fieldErr.Error())
		return
	}

	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		if statusCode == http.StatusInternalServerError && apiErr.Err != nil {
			slog.Error("internal server error",
				slog.String("message", apiErr.Message),
				slog.String("error", apiErr.Err.Error()),
			)
		}
		if apiErr.ConnectionID != "" {
			writeJSON(w, statusCode, envelope{
				"success":       false,
				"error":         apiErr.Message,
				"connection_id": apiErr.ConnectionID,
			})
			return
		}
		middleware.WriteErrorResponse(w, statusCode, apiErr.Message)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeConflict:
		return http.StatusConflict
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeRemote:
		return model.ClampStatus(apiErr.Status)
	default:
		return http.StatusInternalServerError
	}
}

// flexibleID は文字列と数値のどちらでも受け付けるID。
// 数値は10進表記の文字列として保持する。
type flexibleID string

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (id *flexibleID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*id = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = flexibleID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*id = flexibleID(n.String())
		return nil
	}

	return fmt.Errorf("id must be a string or a number: %s", b)
}
