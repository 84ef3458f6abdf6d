package richtext

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const faAssetHost = "//a.furaffinity.net/"

// 3連以上の改行タグは1つに潰す。FAの説明文は空行の連打が多い。
var brRunPattern = regexp.MustCompile(`(?:<br\s*/?>|</br>){3,}`)

// RewriteFADescription はFAの説明文HTMLを自己ホスト表示用に書き換える。
// アバター画像などのFA CDN参照はキャッシュプロキシ経由に、サイト内の
// ユーザーページへのリンクはアーカイブ内のユーザーページに差し替える。
func RewriteFADescription(urlBase, html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("FA説明文のパースに失敗しました: %w", err)
	}

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok {
			return
		}
		if strings.HasPrefix(src, faAssetHost) {
			sel.SetAttr("src", urlBase+"/cache_proxy/a.furaffinity.net/"+strings.TrimPrefix(src, faAssetHost))
		}
	})

	doc.Find("a").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		if strings.HasPrefix(href, "/user/") {
			sel.SetAttr("href", urlBase+"/user/fa/"+strings.TrimPrefix(href, "/user/"))
		}
	})

	out, err := doc.Find("body").Html()
	if err != nil {
		return "", fmt.Errorf("FA説明文のシリアライズに失敗しました: %w", err)
	}

	out = strings.ReplaceAll(out, "\n", "")
	out = brRunPattern.ReplaceAllString(out, "<br/>")
	return out, nil
}
