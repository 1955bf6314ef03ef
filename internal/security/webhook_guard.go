// Package security はWebhook送信先の検証と自由記述テキストの無害化を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// allowedSchemes はWebhook送信先として許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は保護モードで拒否するネットワーク範囲。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"127.0.0.0/8",
		// クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// WebhookGuard はWebhook送信先URLの検証とHTTPクライアントの生成を行う。
// protectがfalseの場合はローカルのワークフローエンジン（localhost:5678等）への送信を許可する。
type WebhookGuard struct {
	protect bool
}

// NewWebhookGuard はWebhookGuardを生成する。
func NewWebhookGuard(protect bool) *WebhookGuard {
	return &WebhookGuard{protect: protect}
}

// Protected は保護モードが有効かを返す。
func (g *WebhookGuard) Protected() bool {
	return g.protect
}

// NewClient はWebhook送信用のHTTPクライアントを生成する。
// 保護モードではsafeurlによりDNS解決後のIPアドレスも検証され、
// プライベートIP・ループバック・メタデータIPへの接続がブロックされる。
// portsには送信先として設定されたエンドポイントのポートを渡す。
func (g *WebhookGuard) NewClient(timeout time.Duration, ports ...int) *http.Client {
	if !g.protect {
		return &http.Client{Timeout: timeout}
	}

	if len(ports) == 0 {
		ports = []int{80, 443}
	}
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(ports...).
		Build()

	return safeurl.Client(config).Client
}

// ValidateEndpoint はWebhook送信先URLを静的に検証する。
// スキームとホストは常に検証し、保護モードではプライベートアドレスとlocalhostも拒否する。
func (g *WebhookGuard) ValidateEndpoint(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if !g.protect {
		return nil
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

// EndpointPorts はURL群から接続先ポートを重複なく抽出する。
// ポート省略時はスキームの既定ポートを使う。解析できないURLは無視する。
func EndpointPorts(rawURLs ...string) []int {
	seen := make(map[int]bool)
	var ports []int
	for _, raw := range rawURLs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		port := 443
		if p := u.Port(); p != "" {
			n, err := strconv.Atoi(p)
			if err != nil {
				continue
			}
			port = n
		} else if strings.EqualFold(u.Scheme, "http") {
			port = 80
		}
		if !seen[port] {
			seen[port] = true
			ports = append(ports, port)
		}
	}
	return ports
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
