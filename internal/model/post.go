package model

import "strings"

// Post はアーカイブされた投稿を表す。
// 主キーはソース固有の投稿ID。IDはソース内でのみ一意で、
// ソースをまたいだ衝突は許容される（グローバルな名前空間は持たない）。
type Post struct {
	PostID      string
	TextContent string
	UID         string // 所有ユーザーの複合キー
	Nick        string
	Time        string // ソース由来の時刻文字列。自然順ソートで新しい順を近似する
	Type        SourceType
	URL         string
	Likes       int
	Reposts     int
	Comments    int
	Embed       string // 引用先を符号化した参照文字列。空なら引用なし
	IsReply     bool
	ReplyTo     string // "reply_post_id@reply_user_name" 形式。参照先は存在しなくてよい
	RealUser    string // 投稿アカウントと実際の投稿者が異なるソース（Redditの削除済み投稿者等）での上書き
}

// NewPost は所有ユーザーを設定した新しいPostを生成する。
// Redditは投稿者が削除されている場合があるため、real_userの初期値を"[deleted]"にする。
func NewPost(postID, userName string, st SourceType) *Post {
	p := &Post{
		PostID: postID,
		Type:   st,
	}
	if userName != "" && st != "" {
		p.UID = UID(userName, st)
	}
	if st == SourceReddit {
		p.RealUser = "[deleted]"
	}
	return p
}

// UserName は複合キーから所有ユーザー名を取り出す。
func (p *Post) UserName() string {
	name, _ := SplitUID(p.UID)
	return name
}

// CanonicalURL は投稿の正規URLを組み立てて返す。
func (p *Post) CanonicalURL() string {
	return PostURL(p.Type, p.UserName(), p.PostID)
}

// ReplyRef は返信参照 "post_id@user_name" を組み立てる。
func ReplyRef(postID, userName string) string {
	return postID + "@" + userName
}

// SplitReplyRef は返信参照を投稿IDとユーザー名に分解する。
func SplitReplyRef(ref string) (postID, userName string, ok bool) {
	idx := strings.Index(ref, "@")
	if idx < 0 {
		return "", "", false
	}
	return ref[:idx], ref[idx+1:], true
}
