// Package webhook は外部ワークフローエンジンへのイベント送信を提供する。
//
// 通知系の種別（new-mentor, new-mentee, new-program）はバックグラウンドで送信し、
// 失敗はログに残すだけで呼び出し元には返さない。結果を待つ種別（matching, new-connection）は応答を
// 成功結果・*RemoteError・*DeliveryError のいずれか1つに正規化して返す。
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hitoshi/mentwork/internal/metrics"
)

// Kind はWebhookイベントの種別。
type Kind string

const (
	KindNewMentor     Kind = "new-mentor"
	KindNewMentee     Kind = "new-mentee"
	KindNewProgram    Kind = "new-program"
	KindNewConnection Kind = "new-connection"
	KindMatching      Kind = "matching"
)

// FireAndForget は種別の既定の配信モードが通知（結果を待たない）かを返す。
func (k Kind) FireAndForget() bool {
	switch k {
	case KindNewMentor, KindNewMentee, KindNewProgram:
		return true
	}
	return false
}

// defaultMaxResponseSize はレスポンスボディの既定上限（1MB）。
const defaultMaxResponseSize int64 = 1 << 20

var (
	// ErrNoEndpoint は種別に対応する送信先が設定されていないことを表す。
	ErrNoEndpoint = errors.New("webhook endpoint is not configured")
	// ErrResponseTooLarge はレスポンスボディが上限を超えたことを表す。
	ErrResponseTooLarge = errors.New("webhook response exceeds size limit")
)

// Mirror は通知を別経路にも配信する先。NATSパブリッシャーが実装する。
type Mirror interface {
	Publish(ctx context.Context, kind string, data []byte) error
}

// Result は2xx応答の正規化結果。
// 1要素の配列で包まれたオブジェクトは展開済み。
type Result struct {
	StatusCode int
	Body       json.RawMessage
}

// Decode はボディをvに展開する。ボディが空の場合は何もしない。
func (r *Result) Decode(v any) error {
	if r == nil || len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// RemoteError は送信先が明示的にエラーを返したことを表す。
// 非2xx応答、または2xx応答の {error, status} ボディから生成される。
type RemoteError struct {
	Kind       Kind
	StatusCode int
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *RemoteError) Error() string {
	return fmt.Sprintf("webhook %s returned error (status %d): %s", e.Kind, e.StatusCode, e.Message)
}

// DeliveryError は送信自体が失敗したことを表す（接続失敗、タイムアウト、不正な応答）。
type DeliveryError struct {
	Kind Kind
	Err  error
}

// Error はerrorインターフェースを実装する。
func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook %s delivery failed: %v", e.Kind, e.Err)
}

// Unwrap は原因のエラーを返す。
func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// Option はDispatcherの任意設定。
type Option func(*Dispatcher)

// WithMaxResponseSize はレスポンスボディの上限を設定する。
func WithMaxResponseSize(n int64) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxResponseSize = n
		}
	}
}

// WithMetrics はメトリクス収集先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithMirror は通知のミラー配信先を設定する。
func WithMirror(m Mirror) Option {
	return func(d *Dispatcher) {
		d.mirror = m
	}
}

// Dispatcher はWebhookの送信を行う。
type Dispatcher struct {
	httpClient      *http.Client
	endpoints       Endpoints
	maxResponseSize int64
	logger          *slog.Logger
	metrics         metrics.MetricsCollector
	mirror          Mirror

	inflight sync.WaitGroup
}

// NewDispatcher はDispatcherを生成する。
func NewDispatcher(httpClient *http.Client, endpoints Endpoints, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		httpClient:      httpClient,
		endpoints:       endpoints,
		maxResponseSize: defaultMaxResponseSize,
		logger:          logger,
		metrics:         metrics.Nop{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch は種別の既定モードで送信する。
// 通知種別では常に (nil, nil) を返す。
func (d *Dispatcher) Dispatch(ctx context.Context, kind Kind, payload any) (*Result, error) {
	if kind.FireAndForget() {
		d.Notify(ctx, kind, payload)
		return nil, nil
	}
	return d.Call(ctx, kind, payload)
}

// Notify は通知をバックグラウンドで送信し、すぐに戻る。失敗はログに残すだけで返さない。
// 呼び出し元のリクエストが切断されても送信は継続する。
func (d *Dispatcher) Notify(ctx context.Context, kind Kind, payload any) {
	ctx = context.WithoutCancel(ctx)

	data, err := json.Marshal(payload)
	if err != nil {
		d.logger.Error("Webhookペイロードのエンコードに失敗しました",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return
	}

	d.inflight.Go(func() {
		d.deliver(ctx, kind, data)
	})
}

// Wait は送信中の通知がすべて終わるまで待つ。
// ctxが先に終了した場合はctx.Err()を返す。
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) deliver(ctx context.Context, kind Kind, data []byte) {
	if d.mirror != nil {
		if err := d.mirror.Publish(ctx, string(kind), data); err != nil {
			d.logger.Warn("通知のミラー配信に失敗しました",
				slog.String("kind", string(kind)),
				slog.String("error", err.Error()),
			)
		}
	}

	if _, err := d.send(ctx, kind, data); err != nil {
		d.logger.Warn("Webhook通知に失敗しました（処理は継続します）",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return
	}

	d.logger.Info("Webhook通知を送信しました", slog.String("kind", string(kind)))
}

// Call は応答を待つ送信を行い、応答を正規化して返す。
// エラーは *RemoteError または *DeliveryError のいずれか。
func (d *Dispatcher) Call(ctx context.Context, kind Kind, payload any) (*Result, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, &DeliveryError{Kind: kind, Err: fmt.Errorf("failed to encode payload: %w", err)}
	}

	result, err := d.send(ctx, kind, data)
	if err != nil {
		d.logger.Error("Webhook呼び出しに失敗しました",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return result, nil
}

// send はHTTP POSTを1回だけ実行する。リトライはしない。
func (d *Dispatcher) send(ctx context.Context, kind Kind, data []byte) (*Result, error) {
	start := time.Now()
	result, err := d.post(ctx, kind, data)

	outcome := metrics.OutcomeSuccess
	var remote *RemoteError
	switch {
	case errors.As(err, &remote):
		outcome = metrics.OutcomeRemoteError
	case err != nil:
		outcome = metrics.OutcomeDeliveryError
	}
	d.metrics.RecordWebhook(string(kind), outcome, time.Since(start))

	return result, err
}

func (d *Dispatcher) post(ctx context.Context, kind Kind, data []byte) (*Result, error) {
	endpoint := d.endpoints.URL(kind)
	if endpoint == "" {
		return nil, &DeliveryError{Kind: kind, Err: ErrNoEndpoint}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, &DeliveryError{Kind: kind, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "mentwork/1.0")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, &DeliveryError{Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, d.maxResponseSize+1))
	if err != nil {
		return nil, &DeliveryError{Kind: kind, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if int64(len(body)) > d.maxResponseSize {
		return nil, &DeliveryError{Kind: kind, Err: ErrResponseTooLarge}
	}

	body = unwrapSingle(bytes.TrimSpace(body))
	declared, hasDeclared := declaredError(body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		re := &RemoteError{Kind: kind, StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		if hasDeclared {
			re.Message = declared.Error
			if declared.Status != 0 {
				re.StatusCode = errorStatus(declared.Status)
			}
		}
		return nil, re
	}

	if hasDeclared {
		return nil, &RemoteError{Kind: kind, StatusCode: errorStatus(declared.Status), Message: declared.Error}
	}

	if len(body) > 0 && !json.Valid(body) {
		return nil, &DeliveryError{Kind: kind, Err: errors.New("response is not valid JSON")}
	}

	return &Result{StatusCode: resp.StatusCode, Body: body}, nil
}

// errorBody は送信先が返すエラー形式 {error, status}。
// statusは数値と数値文字列の両方を受け付ける。
type errorBody struct {
	Error  string
	Status int
}

// declaredError はボディが {error: "..."} 形式ならその内容を返す。
func declaredError(body []byte) (errorBody, bool) {
	if len(body) == 0 || body[0] != '{' {
		return errorBody{}, false
	}
	var raw struct {
		Error  string          `json:"error"`
		Status json.RawMessage `json:"status"`
	}
	if err := json.Unmarshal(body, &raw); err != nil || raw.Error == "" {
		return errorBody{}, false
	}
	return errorBody{Error: raw.Error, Status: parseStatus(raw.Status)}, true
}

// errorStatus はエラーボディが宣言したステータスを返す。
// 未指定やエラーを表さない値（2xxなど）は500とする。
func errorStatus(declared int) int {
	if declared < 400 || declared > 599 {
		return http.StatusInternalServerError
	}
	return declared
}

func parseStatus(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
	}
	return 0
}

// unwrapSingle は [ {...} ] の形の応答を {...} に展開する。
// ワークフローエンジンは単一アイテムでも配列で返すことがある。
func unwrapSingle(body []byte) []byte {
	if len(body) == 0 || body[0] != '[' {
		return body
	}
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil || len(items) != 1 {
		return body
	}
	item := bytes.TrimSpace(items[0])
	if len(item) == 0 || item[0] != '{' {
		return body
	}
	return item
}
