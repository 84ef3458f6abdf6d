package security

import (
	"testing"
	"time"
)

func TestValidateOutboundURL(t *testing.T) {
	valid := []string{
		"https://www.reddit.com/r/golang/about.json",
		"http://example.com/path",
	}
	for _, url := range valid {
		if err := ValidateOutboundURL(url); err != nil {
			t.Errorf("正当なURLが拒否されました (%s): %v", url, err)
		}
	}

	invalid := []struct {
		name string
		url  string
	}{
		{"空URL", ""},
		{"スキーム外", "ftp://example.com/file"},
		{"localhost", "http://localhost:8080/"},
		{"ループバックIP", "http://127.0.0.1/"},
		{"プライベートIP", "http://10.0.0.1/"},
		{"リンクローカルIP", "http://169.254.169.254/latest/meta-data/"},
		{"ホストなし", "https:///path"},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			if err := ValidateOutboundURL(tc.url); err == nil {
				t.Errorf("拒否されるべきURLが通過しました: %s", tc.url)
			}
		})
	}
}

func TestNewOutboundClient(t *testing.T) {
	c := NewOutboundClient(5 * time.Second)
	if c == nil {
		t.Fatal("クライアントが生成されていません")
	}
	if c.Transport == nil {
		t.Error("検証付きトランスポートが設定されていません")
	}
}
