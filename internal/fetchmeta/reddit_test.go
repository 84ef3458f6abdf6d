package fetchmeta

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestFetchAbout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/golang/about.json" {
			t.Errorf("リクエストパスが一致しません: %s", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != browserUserAgent {
			t.Errorf("User-Agentが一致しません: %s", ua)
		}
		w.Write([]byte(`{"data": {
			"public_description": "Go言語のコミュニティ",
			"banner_background_image": "https://example.com/banner.png?width=1280",
			"community_icon": "https://example.com/icon.png?v=2"
		}}`))
	}))
	defer srv.Close()

	c := NewRedditClientWithHTTP(srv.Client(), srv.URL, testLogger())
	about := c.FetchAbout(context.Background(), "golang")

	if about.PublicDescription != "Go言語のコミュニティ" {
		t.Errorf("説明文が一致しません: %s", about.PublicDescription)
	}
	if about.Banner() != "https://example.com/banner.png" {
		t.Errorf("バナーURLのクエリが除去されていません: %s", about.Banner())
	}
	if about.Avatar() != "https://example.com/icon.png" {
		t.Errorf("アイコンURLのクエリが除去されていません: %s", about.Avatar())
	}
}

func TestFetchAboutRetriesThenGivesUp(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewRedditClientWithHTTP(srv.Client(), srv.URL, testLogger())
	about := c.FetchAbout(context.Background(), "golang")

	if calls != fetchAttempts {
		t.Errorf("試行回数が一致しません: got %d, want %d", calls, fetchAttempts)
	}
	if about == nil || about.PublicDescription != "" {
		t.Errorf("失敗時はゼロ値を返すべきです: %+v", about)
	}
}

func TestFetchAboutFallbackFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {
			"banner_img": "https://example.com/banner2.png",
			"icon_img": "https://example.com/icon2.png"
		}}`))
	}))
	defer srv.Close()

	c := NewRedditClientWithHTTP(srv.Client(), srv.URL, testLogger())
	about := c.FetchAbout(context.Background(), "golang")

	if about.Banner() != "https://example.com/banner2.png" {
		t.Errorf("バナーのフォールバックが効いていません: %s", about.Banner())
	}
	if about.Avatar() != "https://example.com/icon2.png" {
		t.Errorf("アイコンのフォールバックが効いていません: %s", about.Avatar())
	}
}

func TestFetchAboutValidatesEndpoint(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	// 検証を有効にすると、ループバック宛の取得はリクエスト前に拒否される
	c := &RedditClient{
		httpClient: srv.Client(),
		endpoint:   srv.URL,
		validate:   true,
		logger:     testLogger(),
	}
	about := c.FetchAbout(context.Background(), "golang")

	if calls != 0 {
		t.Errorf("検証に失敗したURLへリクエストが送られています: %d", calls)
	}
	if about == nil || about.PublicDescription != "" {
		t.Errorf("検証失敗時はゼロ値を返すべきです: %+v", about)
	}
}
