package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプロフィールやプログラム説明などの自由記述テキストから
// HTMLタグを除去する。値はWebhook経由で外部ワークフローにも渡るため、
// 保存前に無害化しておく。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はタグを一切許可しないポリシーでTextSanitizerを生成する。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{policy: bluemonday.StrictPolicy()}
}

// maxSanitizePasses は実体参照の多重エンコードを剥がす最大回数。
const maxSanitizePasses = 8

// Sanitize はタグを除去し、前後の空白を取り除いたテキストを返す。
// 実体参照で書かれたタグ（&lt;script&gt; など）も除去対象とするため、
// タグ除去と実体参照の復元を値が変化しなくなるまで繰り返す。
// 収束しない場合はbluemondayのエスケープ済み出力を返す。
func (s *TextSanitizer) Sanitize(text string) string {
	if text == "" {
		return ""
	}

	current := text
	for range maxSanitizePasses {
		escaped := s.policy.Sanitize(current)
		next := html.UnescapeString(escaped)
		if next == current {
			return strings.TrimSpace(next)
		}
		current = next
	}
	return strings.TrimSpace(s.policy.Sanitize(current))
}

// SanitizePtr はnilを保持したままSanitizeを適用する。
func (s *TextSanitizer) SanitizePtr(text *string) *string {
	if text == nil {
		return nil
	}
	v := s.Sanitize(*text)
	return &v
}

// SanitizeValues は部分更新の値マップのうちkeysに該当する文字列値を無害化する。
// 文字列以外の値（nullや型違い）はそのまま残す。
func (s *TextSanitizer) SanitizeValues(values map[string]any, keys ...string) {
	for _, k := range keys {
		if v, ok := values[k].(string); ok {
			values[k] = s.Sanitize(v)
		}
	}
}
