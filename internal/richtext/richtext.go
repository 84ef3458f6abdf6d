// Package richtext は投稿本文のハイパーリンク化とHTML整形を提供する。
//
// x/bsky/redditの本文はプレーンテキストとして受け取り、URL・メンション・
// ハッシュタグをアンカーに変換する。FAの本文はHTMLとして受け取り、
// サニタイズとリンク書き換えのみを行う。
package richtext

import (
	"regexp"
	"strings"

	"github.com/kanzoderg/MyTimeline/internal/model"
)

var (
	mentionPattern = regexp.MustCompile(`(^| |\n|[^\x00-\x7F]|:)@([a-zA-Z0-9\-_.]+)`)
	hashtagPattern = regexp.MustCompile(`(^| |\n|[^\x00-\x7F]|:)#([\w\-_+]+)`)
	urlPattern     = regexp.MustCompile(`(^| |\n|[^\x00-\x7F]|:)([\w\-_.?=&#:]+\.[\w\-_./@?=&#:+%]+)`)
)

// リンク化しないトップレベル「ドメイン」。ファイル名の拡張子がドメインに
// 見えてしまう誤検出を避ける。
var mediaExtDomains = map[string]bool{
	"jpg": true, "jpeg": true, "png": true, "gif": true, "bmp": true,
	"tiff": true, "webp": true, "mp4": true, "mov": true, "avi": true,
	"mkv": true, "webm": true, "m4v": true, "mp3": true, "wav": true,
	"flac": true, "aac": true,
}

// maxLinkDisplayLength はアンカー表示テキストの最大長。超過分は省略する。
const maxLinkDisplayLength = 40

// Linkify はプレーンテキスト本文のURL・メンション・ハッシュタグを
// アンカーに変換し、改行を<br>に置換する。FA本文には使用しない。
func Linkify(st model.SourceType, text string) string {
	if text == "" {
		return ""
	}

	text = strings.ReplaceAll(text, "http://", "")
	text = strings.ReplaceAll(text, "https://", "")

	for _, url := range extractCandidates(urlPattern, text) {
		if len(url) < 7 {
			continue
		}
		if strings.Contains(url, "..") {
			continue
		}
		parts := strings.Split(url, ".")
		if mediaExtDomains[strings.ToLower(parts[len(parts)-1])] {
			continue
		}

		href := strings.TrimSuffix("https://"+url, ".")
		display := strings.TrimPrefix(href, "https://")
		if len(display) > maxLinkDisplayLength {
			display = display[:maxLinkDisplayLength] + "..."
		}
		text = strings.ReplaceAll(text, url,
			`<a class='hyperlink' href='`+href+`' target="_blank">`+display+`</a>`)
	}

	userURLPrefix := "https://bsky.app/profile/"
	hashtagURLPrefix := "https://bsky.app/hashtag/"
	if st == model.SourceX {
		userURLPrefix = "https://x.com/"
		hashtagURLPrefix = "https://x.com/hashtag/"
	}

	for _, mention := range extractCandidates(mentionPattern, text) {
		mention = strings.TrimSuffix(mention, ".")
		text = strings.ReplaceAll(text, "@"+mention,
			`<a class='hyperlink' href='`+userURLPrefix+mention+`' target="_blank">@`+mention+`</a>`)
	}
	for _, hashtag := range extractCandidates(hashtagPattern, text) {
		text = strings.ReplaceAll(text, "#"+hashtag,
			`<a class='hyperlink' href='`+hashtagURLPrefix+hashtag+`' target="_blank">#`+hashtag+`</a>`)
	}

	return strings.ReplaceAll(text, "\n", "<br>")
}

// extractCandidates は境界付きパターンの2番目のグループを初出順・重複なしで集める。
func extractCandidates(pattern *regexp.Regexp, text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range pattern.FindAllStringSubmatch(text, -1) {
		c := m[2]
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
