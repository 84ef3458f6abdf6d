// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"regexp"
	"strings"
)

// SourceType は対応プラットフォームの種別を表す。
type SourceType string

const (
	// SourceX はX (旧Twitter)。
	SourceX SourceType = "x"
	// SourceBsky はBluesky。
	SourceBsky SourceType = "bsky"
	// SourceReddit はReddit (subreddit単位)。
	SourceReddit SourceType = "reddit"
	// SourceFA はFurAffinity。
	SourceFA SourceType = "fa"
)

// AllSources は対応する全ソース種別。走査やコマンド構築の列挙に使用する。
var AllSources = []SourceType{SourceX, SourceBsky, SourceReddit, SourceFA}

// sourceInfo はソース種別ごとの差分をまとめたディスパッチテーブルの1エントリ。
// URL構築・サイドカーのファイル名パターン・ID抽出パターンを一箇所に集約し、
// ノーマライザ・スキャナ・コマンド構築の3箇所から共有する。
type sourceInfo struct {
	userURL string // %s = user_name
	postURL string // %s = user_name, %s = post_id

	// postFilePatterns は投稿サイドカーのファイル名パターン。
	postFilePatterns []*regexp.Regexp
	// postIDPattern はファイル名から投稿IDを抽出するパターン（グループ1がID）。
	postIDPattern *regexp.Regexp
	// urlNamePattern はダウンロードURLからアカウント名を抽出するパターン。
	urlNamePattern *regexp.Regexp
}

var sourceTable = map[SourceType]sourceInfo{
	SourceX: {
		userURL:          "https://x.com/%s",
		postURL:          "https://x.com/%s/status/%s",
		postFilePatterns: []*regexp.Regexp{regexp.MustCompile(`^\d+.+json$`)},
		postIDPattern:    regexp.MustCompile(`^(\d+)`),
		urlNamePattern:   regexp.MustCompile(`(?:x|twitter)\.com/([a-zA-Z0-9\-_\.]+)`),
	},
	SourceBsky: {
		userURL:          "https://bsky.app/profile/%s",
		postURL:          "https://bsky.app/profile/%s/post/%s",
		postFilePatterns: []*regexp.Regexp{regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}.+\.json$`)},
		postIDPattern:    regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}-\d{2}-\d{2}_([^_]+)`),
		urlNamePattern:   regexp.MustCompile(`profile/([a-zA-Z0-9\-_\.]+)`),
	},
	SourceReddit: {
		userURL:          "https://reddit.com/r/%s",
		postURL:          "https://reddit.com/r/%s/comments/%s",
		postFilePatterns: []*regexp.Regexp{regexp.MustCompile(`.+json$`)},
		postIDPattern:    regexp.MustCompile(`^([a-zA-Z0-9]+)`),
		urlNamePattern:   regexp.MustCompile(`reddit\.com/r/([a-zA-Z0-9\-_\.]+)`),
	},
	SourceFA: {
		userURL:          "https://www.furaffinity.net/user/%s",
		postURL:          "https://www.furaffinity.net/view/%s/",
		postFilePatterns: []*regexp.Regexp{regexp.MustCompile(`^\d+`)},
		postIDPattern:    regexp.MustCompile(`^(\d+)`),
		urlNamePattern:   regexp.MustCompile(`furaffinity\.net/(?:user|gallery|scraps|journals)/([\w\d_\-\.~]+)`),
	},
}

// ParseSourceType は文字列をSourceTypeに変換する。未対応の場合はfalseを返す。
func ParseSourceType(s string) (SourceType, bool) {
	st := SourceType(strings.ToLower(s))
	if _, ok := sourceTable[st]; !ok {
		return "", false
	}
	return st, true
}

// DetectSourceFromURL はURLの部分文字列からソース種別を判定する。
// 最初に一致したものを採用し、どれにも一致しない場合はfalseを返す。
func DetectSourceFromURL(url string) (SourceType, bool) {
	switch {
	case strings.Contains(url, "bsky"):
		return SourceBsky, true
	case strings.Contains(url, "x.com") || strings.Contains(url, "twitter.com"):
		return SourceX, true
	case strings.Contains(url, "reddit.com"):
		return SourceReddit, true
	case strings.Contains(url, "furaffinity"):
		return SourceFA, true
	default:
		return "", false
	}
}

// ExtractAccountName はダウンロードURLからアカウント名を抽出して小文字化する。
// 抽出できない場合はfalseを返す。
func ExtractAccountName(st SourceType, url string) (string, bool) {
	info, ok := sourceTable[st]
	if !ok {
		return "", false
	}
	m := info.urlNamePattern.FindStringSubmatch(url)
	if m == nil {
		return "", false
	}
	return strings.ToLower(m[1]), true
}

// UserURL はソース種別ごとの正規のユーザーページURLを返す。
func UserURL(st SourceType, userName string) string {
	info, ok := sourceTable[st]
	if !ok {
		return ""
	}
	return fmt.Sprintf(info.userURL, userName)
}

// PostURL はソース種別ごとの正規の投稿URLを返す。
// FurAffinityのジャーナルはJournalURLを使用すること。
func PostURL(st SourceType, userName, postID string) string {
	info, ok := sourceTable[st]
	if !ok {
		return ""
	}
	if st == SourceFA {
		return fmt.Sprintf(info.postURL, postID)
	}
	return fmt.Sprintf(info.postURL, userName, postID)
}

// JournalURL はFurAffinityのジャーナルURLを返す。
// ジャーナルはギャラリー投稿とURL形式が異なる。
func JournalURL(postID string) string {
	return fmt.Sprintf("https://www.furaffinity.net/journal/%s/", postID)
}

// PostFilePatterns は投稿サイドカーのファイル名パターンを返す。
func PostFilePatterns(st SourceType) []*regexp.Regexp {
	return sourceTable[st].postFilePatterns
}

// ExtractPostID はサイドカーまたはメディアのファイル名から投稿IDを抽出する。
// 抽出できない場合はfalseを返す。
func ExtractPostID(st SourceType, fileName string) (string, bool) {
	m := sourceTable[st].postIDPattern.FindStringSubmatch(fileName)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// UID はユーザーの複合キー "user_name@type" を生成する。
func UID(userName string, st SourceType) string {
	return userName + "@" + string(st)
}

// SplitUID は複合キーをuser_nameとソース種別に分解する。
// "@"を含まない場合はuser_nameのみを返し、種別は空になる。
func SplitUID(uid string) (userName string, st SourceType) {
	idx := strings.LastIndex(uid, "@")
	if idx < 0 {
		return uid, ""
	}
	return uid[:idx], SourceType(uid[idx+1:])
}
