package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/mentwork/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット {success:false, error}。
// ハンドラー層のエラー変換とミドルウェアの両方がこの形式で書き込む。
type ErrorResponseBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{Error: message})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.MsgInternalServerError)
}
