package webhook

import (
	"fmt"
	"strings"
)

// developmentBaseURL はローカルで起動したワークフローエンジンのWebhookベースURL。
const developmentBaseURL = "http://localhost:5678/webhook/"

// Endpoints は種別ごとの送信先URL。
type Endpoints struct {
	NewMentor     string
	NewMentee     string
	NewProgram    string
	NewConnection string
	Matching      string
}

// DevelopmentEndpoints は開発環境の既定送信先を返す。
// 本番環境ではこの既定値は使わず、すべて明示的に設定する。
func DevelopmentEndpoints() Endpoints {
	return Endpoints{
		NewMentor:     developmentBaseURL + "new-mentor",
		NewMentee:     developmentBaseURL + "new-mentee",
		NewProgram:    developmentBaseURL + "new-program",
		NewConnection: developmentBaseURL + "mentee-registration",
		Matching:      developmentBaseURL + "mentee-matching",
	}
}

// URL は種別に対応する送信先を返す。未設定の場合は空文字。
func (e Endpoints) URL(kind Kind) string {
	switch kind {
	case KindNewMentor:
		return e.NewMentor
	case KindNewMentee:
		return e.NewMentee
	case KindNewProgram:
		return e.NewProgram
	case KindNewConnection:
		return e.NewConnection
	case KindMatching:
		return e.Matching
	}
	return ""
}

// WithDefaults は未設定の送信先をdefaultsで補完した値を返す。
func (e Endpoints) WithDefaults(defaults Endpoints) Endpoints {
	pick := func(v, d string) string {
		if strings.TrimSpace(v) == "" {
			return d
		}
		return v
	}
	return Endpoints{
		NewMentor:     pick(e.NewMentor, defaults.NewMentor),
		NewMentee:     pick(e.NewMentee, defaults.NewMentee),
		NewProgram:    pick(e.NewProgram, defaults.NewProgram),
		NewConnection: pick(e.NewConnection, defaults.NewConnection),
		Matching:      pick(e.Matching, defaults.Matching),
	}
}

// Kinds は全種別を固定順で返す。
func Kinds() []Kind {
	return []Kind{KindNewMentor, KindNewMentee, KindNewProgram, KindNewConnection, KindMatching}
}

// All は設定済みの送信先URLを種別順に返す。
func (e Endpoints) All() []string {
	var urls []string
	for _, k := range Kinds() {
		if u := e.URL(k); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// Validate はすべての種別に送信先が設定され、checkを通過することを検証する。
// checkがnilの場合は未設定のみを検証する。
func (e Endpoints) Validate(check func(string) error) error {
	for _, k := range Kinds() {
		u := e.URL(k)
		if u == "" {
			return fmt.Errorf("webhook endpoint for %s is not configured", k)
		}
		if check != nil {
			if err := check(u); err != nil {
				return fmt.Errorf("webhook endpoint for %s is invalid: %w", k, err)
			}
		}
	}
	return nil
}
