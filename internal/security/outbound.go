// Package security は外部サイトへのメタデータ取得で使う
// SSRF防止機能付きHTTPクライアントを提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

var allowedSchemes = []string{"http", "https"}

// NewOutboundClient はSSRF防止機能付きのHTTPクライアントを生成する。
// safeurlにより、プライベートIP・ループバック・リンクローカル・
// メタデータIPへのリクエストがブロックされる。DNS解決後のIPアドレスも
// Dialerレベルで検証されるため、DNS再バインディング攻撃にも対応する。
func NewOutboundClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// ValidateOutboundURL は外部取得先URLの静的検証を行う。
// スキームと明示的に危険なホストのみを弾く。DNS解決を伴う検証は
// NewOutboundClientが生成するクライアント側で行われる。
func ValidateOutboundURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("取得先URLが空です")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("取得先URLが不正です: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	ok := false
	for _, allowed := range allowedSchemes {
		if scheme == allowed {
			ok = true
			break
		}
	}
	if !ok {
		return fmt.Errorf("許可されていないスキームです: %s", scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("取得先URLにホストがありません: %s", rawURL)
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("ブロック対象のホストです: %s", host)
	}
	if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast()) {
		return fmt.Errorf("ブロック対象のIPアドレスです: %s", ip)
	}

	return nil
}
