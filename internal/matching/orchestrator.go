// Package matching はメンターマッチングの要求を外部のマッチングエンジンへ中継する。
//
// 既に登録済みのメンティーはリモートを呼ばずに409で弾き、リモートの応答は
// 成功・宣言エラー・送信失敗のいずれであってもクライアント向けのOutcomeに正規化する。
// 送信失敗は「マッチなし」に縮退させ、未処理のエラーとして返すことはない。
package matching

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/mentwork/internal/email"
	"github.com/hitoshi/mentwork/internal/metrics"
	"github.com/hitoshi/mentwork/internal/model"
	"github.com/hitoshi/mentwork/internal/webhook"
)

// メトリクスの結果ラベル
const (
	outcomeMatches     = "matches"
	outcomeNoMatches   = "no_matches"
	outcomeDegraded    = "degraded"
	outcomeConflict    = "conflict"
	outcomeRemoteError = "remote_error"
	outcomeInvalid     = "invalid"
	outcomeGuardFailed = "guard_failed"
)

// Guard は重複登録の事前チェック。
type Guard interface {
	CheckMenteeNotRegistered(ctx context.Context, email string) error
}

// Matcher はマッチングエンジンの呼び出し。
type Matcher interface {
	Call(ctx context.Context, kind webhook.Kind, payload any) (*webhook.Result, error)
}

// Request はマッチング要求。
type Request struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Goals string `json:"goals"`
}

// Outcome はマッチング要求の結果。Statusはそのままレスポンスのステータスになる。
type Outcome struct {
	Status  int
	Success bool
	Message string
	Error   string
	Matches []json.RawMessage
}

// Orchestrator はマッチングフローを実行する。
type Orchestrator struct {
	guard   Guard
	matcher Matcher
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// NewOrchestrator はOrchestratorを生成する。
func NewOrchestrator(guard Guard, matcher Matcher, m metrics.MetricsCollector, logger *slog.Logger) *Orchestrator {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Orchestrator{
		guard:   guard,
		matcher: matcher,
		metrics: m,
		logger:  logger,
	}
}

// FindMatches は入力を検証し、重複登録を確認してからマッチングエンジンを呼び出す。
func (o *Orchestrator) FindMatches(ctx context.Context, req Request) Outcome {
	name := strings.TrimSpace(req.Name)
	goals := strings.TrimSpace(req.Goals)
	if name == "" || strings.TrimSpace(req.Email) == "" || goals == "" {
		return o.fail(outcomeInvalid, http.StatusBadRequest, model.MsgMatchingFieldsRequired)
	}

	addr, err := email.Normalize(req.Email)
	if err != nil {
		return o.fail(outcomeInvalid, http.StatusBadRequest, model.MsgInvalidEmail)
	}

	if err := o.guard.CheckMenteeNotRegistered(ctx, addr); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeConflict {
			return o.fail(outcomeConflict, http.StatusConflict, apiErr.Message)
		}
		o.logger.Error("重複登録チェックに失敗しました", slog.String("error", err.Error()))
		return o.fail(outcomeGuardFailed, http.StatusInternalServerError, model.MsgInternalServerError)
	}

	result, err := o.matcher.Call(ctx, webhook.KindMatching, Request{Name: name, Email: addr, Goals: goals})
	if err != nil {
		return o.fromError(err)
	}
	return o.fromResult(result)
}

// fromError はWebhookのエラーをOutcomeに変換する。
func (o *Orchestrator) fromError(err error) Outcome {
	var remoteErr *webhook.RemoteError
	if errors.As(err, &remoteErr) {
		if isDuplicateKeyMessage(remoteErr.Message) {
			return o.fail(outcomeConflict, http.StatusConflict, model.MsgMenteeAlreadyExists)
		}
		return o.fail(outcomeRemoteError, model.ClampStatus(remoteErr.StatusCode), remoteErr.Message)
	}

	o.logger.Warn("マッチングエンジンに到達できないためマッチなしとして応答します",
		slog.String("error", err.Error()),
	)
	o.metrics.RecordMatching(outcomeDegraded)
	return noMatches()
}

// fromResult は成功応答からマッチ一覧を取り出す。
func (o *Orchestrator) fromResult(result *webhook.Result) Outcome {
	matches, message := extractMatches(result.Body)
	if len(matches) == 0 {
		o.metrics.RecordMatching(outcomeNoMatches)
		return noMatches()
	}

	if message == "" {
		message = model.MsgMatchingMentorsFound
	}
	o.metrics.RecordMatching(outcomeMatches)
	return Outcome{
		Status:  http.StatusOK,
		Success: true,
		Message: message,
		Matches: matches,
	}
}

func (o *Orchestrator) fail(outcome string, status int, message string) Outcome {
	o.metrics.RecordMatching(outcome)
	return Outcome{Status: status, Error: message}
}

func noMatches() Outcome {
	return Outcome{
		Status:  http.StatusOK,
		Success: true,
		Message: model.MsgNoMatchingMentors,
		Matches: []json.RawMessage{},
	}
}

// extractMatches は {matches: [...], message?} またはマッチの配列そのものを受け付ける。
// 解釈できないボディはマッチなしとして扱う。
func extractMatches(body json.RawMessage) ([]json.RawMessage, string) {
	if len(body) == 0 {
		return nil, ""
	}

	switch body[0] {
	case '[':
		var matches []json.RawMessage
		if err := json.Unmarshal(body, &matches); err != nil {
			return nil, ""
		}
		return matches, ""
	case '{':
		var wrapped struct {
			Matches []json.RawMessage `json:"matches"`
			Message string            `json:"message"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, ""
		}
		return wrapped.Matches, wrapped.Message
	}
	return nil, ""
}

// duplicateKeyMarkers はリモートがDBの一意制約違反をそのまま返したときの文言。
var duplicateKeyMarkers = []string{
	"duplicate key",
	"already exists",
	"23505",
}

func isDuplicateKeyMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, marker := range duplicateKeyMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
