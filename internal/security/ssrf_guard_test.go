package security

import (
	"strings"
	"testing"
	"time"
)

// TestValidateURL は静的URL検証を検証する。
func TestValidateURL(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"httpsの外部URL", "https://travel.state.gov/advisories.rss", false},
		{"httpの外部URL", "http://example.com/feed", false},
		{"空URL", "", true},
		{"不正なスキーム: file", "file:///etc/passwd", true},
		{"不正なスキーム: gopher", "gopher://example.com", true},
		{"ホストなし", "https://", true},
		{"localhost", "http://localhost/feed", true},
		{"localhost大文字", "http://LOCALHOST/feed", true},
		{"ループバックIP", "http://127.0.0.1/feed", true},
		{"プライベートIP 10系", "http://10.0.0.5/feed", true},
		{"プライベートIP 172系", "http://172.16.0.1/feed", true},
		{"プライベートIP 192系", "http://192.168.1.1/feed", true},
		{"リンクローカル（メタデータIP）", "http://169.254.169.254/latest/meta-data/", true},
		{"カレントネットワーク", "http://0.0.0.0/feed", true},
		{"IPv6ループバック", "http://[::1]/feed", true},
		{"IPv6リンクローカル", "http://[fe80::1]/feed", true},
		{"パブリックIP", "http://93.184.216.34/feed", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

// TestValidateFeedTemplate はフィードURLテンプレートの検証を検証する。
func TestValidateFeedTemplate(t *testing.T) {
	guard := NewSSRFGuard()

	tests := []struct {
		name     string
		template string
		wantErr  bool
	}{
		{"正常なテンプレート", "https://travel.state.gov/%s/advisories.rss", false},
		{"プレースホルダなし", "https://travel.state.gov/advisories.rss", true},
		{"プレースホルダ2つ", "https://example.com/%s/%s.rss", true},
		{"危険なホストのテンプレート", "http://169.254.169.254/%s", true},
		{"不正なスキームのテンプレート", "file:///%s", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.ValidateFeedTemplate(tt.template)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateFeedTemplate(%q) error = %v, wantErr %v", tt.template, err, tt.wantErr)
			}
		})
	}
}

// TestValidateURL_ErrorMessage はエラーメッセージに原因が含まれることを検証する。
func TestValidateURL_ErrorMessage(t *testing.T) {
	guard := NewSSRFGuard()

	err := guard.ValidateURL("http://169.254.169.254/")
	if err == nil {
		t.Fatal("ValidateURL() error = nil, want error")
	}
	if !strings.Contains(err.Error(), "169.254.169.254") {
		t.Errorf("エラーメッセージにIPが含まれていません: %v", err)
	}
}

// TestNewSafeClient はクライアント生成の基本設定を検証する。
func TestNewSafeClient(t *testing.T) {
	guard := NewSSRFGuard()

	client := guard.NewSafeClient(10*time.Second, 1<<20)
	if client == nil {
		t.Fatal("NewSafeClient() = nil")
	}
	if client.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", client.Timeout)
	}
}
