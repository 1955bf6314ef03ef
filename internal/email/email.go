// Package email はメールアドレスの正規化を提供する。
// 一意制約とRegistration Guardの検索が同じ表記を前提にできるよう、
// 保存前と検索前の両方で同じ正規化を適用する。
package email

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

// ErrInvalid はメールアドレスとして解釈できない入力を表す。
var ErrInvalid = errors.New("invalid email address")

// Normalize は前後の空白を除去し、小文字化し、ドメイン部をIDNAのASCII表現に変換する。
func Normalize(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))

	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return "", fmt.Errorf("%w: %q", ErrInvalid, raw)
	}

	local, domain := s[:at], s[at+1:]
	asciiDomain, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	return local + "@" + asciiDomain, nil
}
