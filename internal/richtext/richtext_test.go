package richtext

import (
	"strings"
	"testing"

	"github.com/kanzoderg/MyTimeline/internal/model"
)

func TestLinkifyURL(t *testing.T) {
	got := Linkify(model.SourceX, "読んでみて https://example.com/article")

	if !strings.Contains(got, `href='https://example.com/article'`) {
		t.Errorf("URLがリンク化されていません: %s", got)
	}
	if strings.Contains(got, ">https://") {
		t.Errorf("表示テキストにスキームが残っています: %s", got)
	}
}

func TestLinkifyTruncatesDisplayText(t *testing.T) {
	longURL := "example.com/very/long/path/that/keeps/going/and/going/forever"
	got := Linkify(model.SourceX, "link: "+longURL)

	if !strings.Contains(got, "...</a>") {
		t.Errorf("長いURLの表示テキストが省略されていません: %s", got)
	}
	if !strings.Contains(got, `href='https://`+longURL+`'`) {
		t.Errorf("href側は完全なURLを保持すべきです: %s", got)
	}
}

func TestLinkifySkipsMediaFileNames(t *testing.T) {
	got := Linkify(model.SourceX, "保存した photo_001.jpg です")

	if strings.Contains(got, "<a") {
		t.Errorf("ファイル名がリンク化されています: %s", got)
	}
}

func TestLinkifyMentionPerSource(t *testing.T) {
	xGot := Linkify(model.SourceX, "cc @alice")
	if !strings.Contains(xGot, `href='https://x.com/alice'`) {
		t.Errorf("xのメンションリンク先が一致しません: %s", xGot)
	}

	bskyGot := Linkify(model.SourceBsky, "cc @alice.bsky.social ほか")
	if !strings.Contains(bskyGot, `href='https://bsky.app/profile/alice.bsky.social'`) {
		t.Errorf("bskyのメンションリンク先が一致しません: %s", bskyGot)
	}
}

func TestLinkifyHashtag(t *testing.T) {
	got := Linkify(model.SourceX, "today #golang day")

	if !strings.Contains(got, `href='https://x.com/hashtag/golang'`) {
		t.Errorf("ハッシュタグがリンク化されていません: %s", got)
	}
}

func TestLinkifyNewlines(t *testing.T) {
	got := Linkify(model.SourceReddit, "1行目\n2行目")

	if got != "1行目<br>2行目" {
		t.Errorf("改行が<br>に置換されていません: %s", got)
	}
}

func TestLinkifyEmpty(t *testing.T) {
	if got := Linkify(model.SourceX, ""); got != "" {
		t.Errorf("空文字列の結果が空ではありません: %s", got)
	}
}

func TestRewriteFADescription(t *testing.T) {
	html := `<a href="/user/somefox/"><img src="//a.furaffinity.net/20200101/somefox.gif"></a>`

	got, err := RewriteFADescription("http://localhost:8088", html)
	if err != nil {
		t.Fatalf("FA説明文の書き換えに失敗しました: %v", err)
	}

	if !strings.Contains(got, `href="http://localhost:8088/user/fa/somefox/"`) {
		t.Errorf("ユーザーリンクが書き換えられていません: %s", got)
	}
	if !strings.Contains(got, `src="http://localhost:8088/cache_proxy/a.furaffinity.net/20200101/somefox.gif"`) {
		t.Errorf("CDN参照がプロキシ経由になっていません: %s", got)
	}
}

func TestRewriteFADescriptionCollapsesBreaks(t *testing.T) {
	got, err := RewriteFADescription("http://localhost:8088", "a<br/><br/><br/><br/>b")
	if err != nil {
		t.Fatalf("FA説明文の書き換えに失敗しました: %v", err)
	}

	if strings.Count(got, "<br/>") != 1 {
		t.Errorf("連続する<br>が潰されていません: %s", got)
	}
}

func TestSanitizeRemovesScript(t *testing.T) {
	got := Sanitize(`安全な<b>本文</b><script>alert(1)</script>`)

	if strings.Contains(got, "script") {
		t.Errorf("scriptタグが残っています: %s", got)
	}
	if !strings.Contains(got, "<b>本文</b>") {
		t.Errorf("安全なマークアップまで除去されています: %s", got)
	}
}
