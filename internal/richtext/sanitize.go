package richtext

import "github.com/microcosm-cc/bluemonday"

// sanitizePolicy は取り込んだHTML本文に適用するサニタイズポリシー。
// UGC向けの基本ポリシーに、表示に必要なクラス属性とリンクの
// 別タブ指定を加えたもの。
var sanitizePolicy = newSanitizePolicy()

func newSanitizePolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "target").OnElements("a")
	p.AllowAttrs("class").OnElements("img", "span", "div")
	return p
}

// Sanitize は外部ソース由来のHTML本文からスクリプト等の危険な要素を除去する。
// 保存前に必ず通すこと。
func Sanitize(html string) string {
	return sanitizePolicy.Sanitize(html)
}
