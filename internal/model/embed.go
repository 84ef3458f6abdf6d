package model

import (
	"regexp"
	"strings"
)

// Embed は引用参照から解決した読み取り専用の合成ビュー。
// 参照先の投稿・所有ユーザー・メディア一覧を結合したもので、単体では永続化されない。
type Embed struct {
	PostID      string
	UDID        string
	UserName    string
	Nick        string
	Type        SourceType
	URL         string
	TextContent string
	Time        string
	Medias      []*Media
	// External は参照先がアーカイブ内に存在しない場合にtrue。
	// その場合はURLのみで外部リンクとして表示される。
	External bool
}

// bskyEmbedURIPattern はAT-protocolの投稿URIから参照先を抽出する。
var bskyEmbedURIPattern = regexp.MustCompile(`^at://([^/]+)/app\.bsky\.feed\.post/([^/]+)$`)

// ParseEmbedRef は投稿のembed参照文字列から参照先の(udid, post_id)を取り出す。
// Xは ".../status/<id>" 形式のURL、Blueskyは "at://<did>/app.bsky.feed.post/<id>" 形式。
// 解釈できない場合はfalseを返す。
func ParseEmbedRef(st SourceType, ref string) (udid, postID string, ok bool) {
	if ref == "" {
		return "", "", false
	}
	switch st {
	case SourceBsky:
		if m := bskyEmbedURIPattern.FindStringSubmatch(ref); m != nil {
			return m[1], m[2], true
		}
		// 保存済みURL形式の参照も許容する
		parts := strings.Split(strings.TrimSuffix(ref, "/"), "/")
		if len(parts) >= 3 {
			return parts[len(parts)-3], parts[len(parts)-1], true
		}
	case SourceX:
		// ".../<user>/status/<id>" 形式のみを受け付ける
		parts := strings.Split(strings.TrimSuffix(ref, "/"), "/")
		if len(parts) >= 3 && parts[len(parts)-2] == "status" {
			return parts[len(parts)-3], parts[len(parts)-1], true
		}
	}
	return "", "", false
}

// NewEmbed は参照先のURLを構築した空のEmbedを生成する。
// External状態で初期化され、データベース解決後にfalseへ落とされる。
func NewEmbed(postID, udid string, st SourceType) *Embed {
	e := &Embed{
		PostID:   postID,
		UDID:     udid,
		Type:     st,
		External: true,
	}
	switch st {
	case SourceX:
		e.URL = "https://x.com/" + udid + "/status/" + postID
	case SourceBsky:
		e.URL = "https://bsky.app/profile/" + udid + "/post/" + postID
	}
	return e
}
