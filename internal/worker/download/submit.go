package download

import (
	"regexp"
	"strings"

	"github.com/kanzoderg/MyTimeline/internal/model"
)

var (
	bareBskyHandlePattern = regexp.MustCompile(`^\w+\.bsky\.social`)
	photoSuffixPattern    = regexp.MustCompile(`photo/\d+`)
	videoSuffixPattern    = regexp.MustCompile(`video/\d+`)
)

// NormalizeURL は投入されたURLを正規形に整える。
// 対応外のドメインとbskyの内部ID (did:) は拒否する。
func NormalizeURL(rawURL string) (string, *model.APIError) {
	url := strings.TrimSpace(rawURL)
	if url == "" {
		return "", model.NewEmptyURLError()
	}

	if !strings.Contains(url, "bsky") &&
		!strings.Contains(url, "x.com") &&
		!strings.Contains(url, "twitter") &&
		!strings.Contains(url, "reddit") &&
		!strings.Contains(url, "furaffinity") {
		return "", model.NewUnsupportedURLError(url)
	}
	if strings.Contains(url, "did:") {
		return "", model.NewBareDIDError(url)
	}

	// "xxx.bsky.social" のようなハンドル単体はプロフィールURLに展開する
	if bareBskyHandlePattern.MatchString(url) {
		url = "https://bsky.app/profile/" + strings.TrimSpace(filterASCII(url))
	}

	if !strings.HasPrefix(url, "http") {
		url = "https://" + url
	}
	url = strings.ReplaceAll(url, "http://", "https://")
	url = strings.Trim(url, "/")
	url = strings.TrimSuffix(url, "/media")
	url = strings.ReplaceAll(url, "twitter.com", "x.com")
	if strings.Contains(url, "/photo/") {
		url = photoSuffixPattern.ReplaceAllString(url, "")
	}
	if strings.Contains(url, "/video/") {
		url = videoSuffixPattern.ReplaceAllString(url, "")
	}
	url = strings.TrimRight(url, "/")

	return url, nil
}

// filterASCII は非ASCII文字を取り除く。コピー&ペーストで混入する
// 不可視文字やスマート引用符への対策。
func filterASCII(text string) string {
	var b strings.Builder
	for _, r := range text {
		if r < 128 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
