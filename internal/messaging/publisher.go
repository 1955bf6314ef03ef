// Package messaging はWebhook通知のNATSミラー配信を提供する。
package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/nats-io/nats.go"
)

// Publisher は通知ペイロードを "<prefix>.<kind>" のサブジェクトへ配信する。
type Publisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewPublisher はNATSに接続してPublisherを生成する。
func NewPublisher(serverURL, prefix string, logger *slog.Logger) (*Publisher, error) {
	nc, err := nats.Connect(serverURL, nats.Name("mentwork"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", MaskURL(serverURL), err)
	}

	logger.Info("NATSパブリッシャーを初期化しました",
		slog.String("url", MaskURL(serverURL)),
		slog.String("subject_prefix", prefix),
	)

	return &Publisher{conn: nc, prefix: prefix, logger: logger}, nil
}

// MaskURL はNATSのURLに含まれる認証情報（user:pass や token）を伏せる。
// カンマ区切りの複数サーバー指定にも対応する。解釈できない要素は全体を伏せる。
func MaskURL(raw string) string {
	servers := strings.Split(raw, ",")
	for i, s := range servers {
		s = strings.TrimSpace(s)
		u, err := url.Parse(s)
		if err != nil {
			servers[i] = "***"
			continue
		}
		if u.User == nil {
			servers[i] = u.String()
			continue
		}
		u.User = nil
		servers[i] = strings.Replace(u.String(), "://", "://***@", 1)
	}
	return strings.Join(servers, ",")
}

// Subject はイベント種別に対応するサブジェクト名を返す。
func Subject(prefix, kind string) string {
	kind = strings.ReplaceAll(kind, "-", "_")
	if prefix == "" {
		return kind
	}
	return prefix + "." + kind
}

// Publish はJSONエンコード済みのペイロードを配信する。
// NATSのPublishはバッファリングされるため、ctxはキャンセル判定にのみ使う。
func (p *Publisher) Publish(ctx context.Context, kind string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	subject := Subject(p.prefix, kind)
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Error("NATSへの配信に失敗しました",
			slog.String("subject", subject),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}

	p.logger.Debug("NATSへ配信しました", slog.String("subject", subject))
	return nil
}

// Close は未送信メッセージをフラッシュして接続を閉じる。
func (p *Publisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}
