package connection

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/mentwork/internal/mentee"
	"github.com/hitoshi/mentwork/internal/metrics"
	"github.com/hitoshi/mentwork/internal/model"
	"github.com/hitoshi/mentwork/internal/repository"
	"github.com/hitoshi/mentwork/internal/webhook"
)

// フロー名。saga_runs.flowとメトリクスのラベルに使う。
const (
	FlowRemoteConnect      = "remote_connect"
	FlowRegisterAndConnect = "register_and_connect"
)

// メトリクスの結果ラベル
const (
	sagaCompleted   = "completed"
	sagaRejected    = "rejected"
	sagaFailed      = "failed"
	sagaRemoteError = "remote_error"
)

// RemoteCaller は結果を待つWebhook呼び出し。
type RemoteCaller interface {
	Call(ctx context.Context, kind webhook.Kind, payload any) (*webhook.Result, error)
}

// MenteeRegistrar はメンティー登録を行う。
type MenteeRegistrar interface {
	Register(ctx context.Context, in mentee.RegisterInput) (*model.Mentee, error)
}

// Connector は事前チェック付きの直接接続を行う。
type Connector interface {
	Create(ctx context.Context, mentorID, menteeID string) (*model.Connection, error)
}

// RegisterAndConnectInput は登録＋接続フローの入力。
type RegisterAndConnectInput struct {
	MenteeName       string
	MenteeEmail      string
	MenteeGoals      *string
	SelectedMentorID string
}

// RegisterAndConnectResult は登録＋接続フローの結果。
type RegisterAndConnectResult struct {
	Mentee     *model.Mentee
	Connection *model.Connection
}

// Saga は複数ステップにまたがる接続フローを実行する。
// 各ステップは順番に1回だけ実行し、リトライも同期的な補償も行わない。
type Saga struct {
	remote    RemoteCaller
	mentees   MenteeRegistrar
	connector Connector
	journal   repository.SagaRepository
	metrics   metrics.MetricsCollector
	logger    *slog.Logger
}

// NewSaga はSagaを生成する。journalがnilの場合は進行を記録しない。
func NewSaga(
	remote RemoteCaller,
	mentees MenteeRegistrar,
	connector Connector,
	journal repository.SagaRepository,
	m metrics.MetricsCollector,
	logger *slog.Logger,
) *Saga {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Saga{
		remote:    remote,
		mentees:   mentees,
		connector: connector,
		journal:   journal,
		metrics:   m,
		logger:    logger,
	}
}

type remoteConnectPayload struct {
	MentorID string `json:"mentor_id"`
	MenteeID string `json:"mentee_id"`
}

// ConnectViaRemote は既存メンティーとメンターの接続をリモートに依頼し、
// 返された接続レコードをそのまま返す。
// リモートが宣言したエラーはそのステータスのまま、送信失敗はInternalエラーとして返す。
func (s *Saga) ConnectViaRemote(ctx context.Context, mentorID, menteeID string) (json.RawMessage, error) {
	if mentorID == "" || menteeID == "" {
		s.metrics.RecordSaga(FlowRemoteConnect, sagaRejected)
		return nil, model.NewValidationError(model.MsgConnectionIDsRequired)
	}

	result, err := s.remote.Call(ctx, webhook.KindNewConnection, remoteConnectPayload{
		MentorID: mentorID,
		MenteeID: menteeID,
	})
	if err != nil {
		var remoteErr *webhook.RemoteError
		if errors.As(err, &remoteErr) {
			s.metrics.RecordSaga(FlowRemoteConnect, sagaRemoteError)
			return nil, model.NewRemoteDeclaredError(model.ClampStatus(remoteErr.StatusCode), remoteErr.Message)
		}
		s.metrics.RecordSaga(FlowRemoteConnect, sagaFailed)
		return nil, model.NewInternalError(model.MsgCreateConnectionFailed, err)
	}

	s.metrics.RecordSaga(FlowRemoteConnect, sagaCompleted)
	return connectionRecord(result.Body), nil
}

// connectionRecord は {connection: {...}} 形式なら中身を、それ以外はボディ全体を返す。
func connectionRecord(body json.RawMessage) json.RawMessage {
	if len(body) == 0 {
		return json.RawMessage("null")
	}
	if body[0] == '{' {
		var wrapped struct {
			Connection json.RawMessage `json:"connection"`
		}
		if err := json.Unmarshal(body, &wrapped); err == nil &&
			len(wrapped.Connection) > 0 && string(wrapped.Connection) != "null" {
			return wrapped.Connection
		}
	}
	return body
}

// RegisterAndConnect はメンティーを登録し、続けて選択されたメンターと接続する。
//
// ステップ1の重複emailはConflictを返す。ステップ2が失敗した場合は登録済みの
// メンティーを残したまま500を返し、進行記録をfailedにする。残ったメンティーは
// クリーンアップジョブが保持期間後に削除する。
func (s *Saga) RegisterAndConnect(ctx context.Context, in RegisterAndConnectInput) (*RegisterAndConnectResult, error) {
	if in.MenteeName == "" || in.MenteeEmail == "" || in.SelectedMentorID == "" {
		s.metrics.RecordSaga(FlowRegisterAndConnect, sagaRejected)
		return nil, model.NewValidationError(model.MsgRegisterAndConnectInvalid)
	}

	runID := s.begin(ctx, FlowRegisterAndConnect, in.SelectedMentorID)

	goals := in.MenteeGoals
	if goals == nil {
		empty := ""
		goals = &empty
	}

	// ステップ1: メンティー登録
	m, err := s.mentees.Register(ctx, mentee.RegisterInput{
		Name:  in.MenteeName,
		Email: in.MenteeEmail,
		Goals: goals,
	})
	if err != nil {
		s.advance(ctx, runID, model.SagaStatusFailed, "", err)
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == model.ErrCodeConflict || apiErr.Code == model.ErrCodeValidation) {
			s.metrics.RecordSaga(FlowRegisterAndConnect, sagaRejected)
			return nil, apiErr
		}
		s.metrics.RecordSaga(FlowRegisterAndConnect, sagaFailed)
		return nil, model.NewInternalError(model.MsgRegisterAndConnectFailed, err)
	}
	s.advance(ctx, runID, model.SagaStatusMenteeCreated, m.ID, nil)

	// ステップ2: 接続作成
	conn, err := s.connector.Create(ctx, in.SelectedMentorID, m.ID)
	if err != nil {
		s.advance(ctx, runID, model.SagaStatusFailed, "", err)
		s.metrics.RecordSaga(FlowRegisterAndConnect, sagaFailed)
		s.logger.Warn("接続作成に失敗しました（メンティーは登録済みのまま残ります）",
			slog.String("saga_run_id", runID),
			slog.String("mentee_id", m.ID),
			slog.String("mentor_id", in.SelectedMentorID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewInternalError(model.MsgRegisterAndConnectFailed, err)
	}
	s.advance(ctx, runID, model.SagaStatusCompleted, "", nil)

	s.metrics.RecordSaga(FlowRegisterAndConnect, sagaCompleted)
	return &RegisterAndConnectResult{Mentee: m, Connection: conn}, nil
}

// begin は進行記録を作成し、そのIDを返す。記録に失敗した場合は空文字を返し、
// 以降の記録は行わない。フロー自体は継続する。
func (s *Saga) begin(ctx context.Context, flow, mentorID string) string {
	if s.journal == nil {
		return ""
	}

	now := time.Now().UTC()
	run := &model.SagaRun{
		ID:        uuid.NewString(),
		Flow:      flow,
		MentorID:  mentorID,
		Status:    model.SagaStatusStarted,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.journal.Create(context.WithoutCancel(ctx), run); err != nil {
		s.logger.Warn("サーガ進行記録の作成に失敗しました",
			slog.String("flow", flow),
			slog.String("error", err.Error()),
		)
		return ""
	}
	return run.ID
}

// advance は進行記録を更新する。クライアントが切断しても記録は残す。
func (s *Saga) advance(ctx context.Context, runID string, status model.SagaStatus, menteeID string, cause error) {
	if s.journal == nil || runID == "" {
		return
	}

	var errMsg string
	if cause != nil {
		errMsg = cause.Error()
	}
	if err := s.journal.UpdateStatus(context.WithoutCancel(ctx), runID, status, menteeID, errMsg); err != nil {
		s.logger.Warn("サーガ進行記録の更新に失敗しました",
			slog.String("saga_run_id", runID),
			slog.String("status", string(status)),
			slog.String("error", err.Error()),
		)
	}
}
