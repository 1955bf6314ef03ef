// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// ハンドラーはCodeからHTTPステータスを決定する。
type APIError struct {
	Code    string // エラーコード
	Message string // クライアントに返すメッセージ

	// Status はリモートが宣言したステータス。ErrCodeRemote の場合のみ使用する。
	Status int

	// ConnectionID は重複接続エラー時の既存接続ID。
	ConnectionID string

	// Err は原因となったエラー。ログ出力用でクライアントには返さない。
	Err error
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeConflict   = "CONFLICT"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeInternal   = "INTERNAL_ERROR"
	ErrCodeRemote     = "REMOTE_ERROR"
)

// NewValidationError は必須項目不足などの検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

// NewConflictError は重複登録エラーを生成する。
func NewConflictError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeConflict,
		Message: message,
	}
}

// NewDuplicateConnectionError は同一の接続が既に存在する場合のエラーを生成する。
func NewDuplicateConnectionError(connectionID string) *APIError {
	return &APIError{
		Code:         ErrCodeConflict,
		Message:      "Connection already exists",
		ConnectionID: connectionID,
	}
}

// NewNotFoundError は対象レコード未検出エラーを生成する。
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeNotFound,
		Message: message,
	}
}

// NewInternalError はインフラ障害など業務的な意味を持たない失敗を表すエラーを生成する。
// causeはログにのみ出力される。
func NewInternalError(message string, cause error) *APIError {
	return &APIError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     cause,
	}
}

// NewRemoteDeclaredError は外部サービスが自身のステータス付きで返したエラーを生成する。
func NewRemoteDeclaredError(status int, message string) *APIError {
	return &APIError{
		Code:    ErrCodeRemote,
		Message: message,
		Status:  status,
	}
}

// よく使うメッセージ
const (
	MsgMentorNotFound       = "Mentor not found"
	MsgMenteeNotFound       = "Mentee not found"
	MsgProgramNotFound      = "Program not found"
	MsgConnectionNotFound   = "Connection not found"
	MsgMentorEmailTaken     = "A mentor with this email already exists"
	MsgMenteeEmailTaken     = "A mentee with this email already exists"
	MsgMenteeAlreadyExists  = "mentee already exists"
	MsgNoFieldsToUpdate     = "No fields to update"
	MsgInternalServerError  = "Internal server error"
	MsgNoMatchingMentors    = "No matching mentors found"
	MsgMatchingMentorsFound = "Matching mentors found"

	MsgNameAndEmailRequired      = "Name and email are required"
	MsgInvalidEmail              = "Invalid email address"
	MsgMatchingFieldsRequired    = "Name, email, and goals are required"
	MsgConnectionIDsRequired     = "Mentor ID and Mentee ID are required"
	MsgRegisterAndConnectInvalid = "Mentee details and selected mentor are required"
	MsgRegisterAndConnectFailed  = "Failed to create mentee and connection"
	MsgCreateConnectionFailed    = "Failed to create connection"
	MsgProgramFieldsRequired     = "Mentor email, title, and session date are required"
	MsgInvalidSessionDate        = "Invalid session date"
	MsgRegisteredAndConnected    = "Mentee created and connected with mentor successfully"
	MsgConnectionDeleted         = "Connection deleted successfully"
	MsgProgramDeleted            = "Program deleted successfully"
	MsgInvalidRequestBody        = "Invalid request body"
	MsgTooManyRequests           = "Too many requests. Please try again later."
)

// errorStatuses は失敗時にクライアントへ返すことのあるHTTPステータス。
var errorStatuses = map[int]bool{
	400: true, 404: true, 409: true, 500: true,
}

// ClampStatus はリモートが宣言したエラーのステータスを返却可能なエラーステータスに丸める。
// 集合外のステータスは2xxを含めて500になる。
func ClampStatus(status int) int {
	if errorStatuses[status] {
		return status
	}
	return 500
}
