package download

import (
	"testing"

	"github.com/kanzoderg/MyTimeline/internal/model"
)

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"スキームなし", "x.com/alice", "https://x.com/alice"},
		{"http強制https", "http://x.com/alice", "https://x.com/alice"},
		{"末尾スラッシュ除去", "https://x.com/alice/", "https://x.com/alice"},
		{"mediaサフィックス除去", "https://x.com/alice/media", "https://x.com/alice"},
		{"twitterドメイン置換", "https://twitter.com/alice", "https://x.com/alice"},
		{"photoパス除去", "https://x.com/alice/status/123/photo/1", "https://x.com/alice/status/123"},
		{"videoパス除去", "https://x.com/alice/status/123/video/2", "https://x.com/alice/status/123"},
		{"bskyハンドル展開", "alice.bsky.social", "https://bsky.app/profile/alice.bsky.social"},
		{"reddit", "https://reddit.com/r/golang", "https://reddit.com/r/golang"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, apiErr := NormalizeURL(tc.in)
			if apiErr != nil {
				t.Fatalf("正規化がエラーを返しました: %v", apiErr)
			}
			if got != tc.want {
				t.Errorf("正規化結果が一致しません: got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNormalizeURLRejections(t *testing.T) {
	cases := []struct {
		name     string
		in       string
		wantCode string
	}{
		{"空URL", "  ", model.ErrCodeEmptyURL},
		{"対応外ドメイン", "https://example.com/foo", model.ErrCodeUnsupportedURL},
		{"bsky内部ID", "https://bsky.app/profile/did:plc:xyz", model.ErrCodeBareDID},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, apiErr := NormalizeURL(tc.in)
			if apiErr == nil {
				t.Fatal("拒否されるべきURLが受理されました")
			}
			if apiErr.Code != tc.wantCode {
				t.Errorf("エラーコードが一致しません: got %s, want %s", apiErr.Code, tc.wantCode)
			}
		})
	}
}

func TestQueueFIFO(t *testing.T) {
	q := NewQueue()

	j1 := model.NewDownloadJob("https://x.com/alice", false, false)
	j2 := model.NewDownloadJob("https://x.com/bob", false, false)
	if !q.Enqueue(j1) || !q.Enqueue(j2) {
		t.Fatal("ジョブの投入に失敗しました")
	}

	got, ok := q.Pop()
	if !ok || got.URL != "https://x.com/alice" {
		t.Errorf("先頭のジョブが取り出されていません: %+v", got)
	}

	current, ok := q.Current()
	if !ok || current.URL != "https://x.com/alice" {
		t.Errorf("実行中ジョブが記録されていません: %+v", current)
	}

	q.ClearCurrent()
	if _, ok := q.Current(); ok {
		t.Error("完了後も実行中ジョブが残っています")
	}
}

func TestQueueDuplicateGuard(t *testing.T) {
	q := NewQueue()

	j1 := model.NewDownloadJob("https://x.com/alice", false, true)
	j2 := model.NewDownloadJob("https://x.com/alice", false, true)
	j3 := model.NewDownloadJob("https://x.com/alice", true, true)

	if !q.Enqueue(j1) {
		t.Fatal("最初のジョブが投入できません")
	}
	if q.Enqueue(j2) {
		t.Error("同一内容のジョブが重複投入されています")
	}
	// フラグが異なれば別ジョブ
	if !q.Enqueue(j3) {
		t.Error("フラグ違いのジョブが拒否されています")
	}
	if q.Len() != 2 {
		t.Errorf("キュー長が一致しません: %d", q.Len())
	}
}

func TestQueuePopEmpty(t *testing.T) {
	q := NewQueue()
	if _, ok := q.Pop(); ok {
		t.Error("空キューからジョブが取り出されました")
	}
}
