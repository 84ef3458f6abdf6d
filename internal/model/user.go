package model

import (
	"strings"
	"time"
)

// User はアーカイブ対象のアカウントを表す。
// 主キーは user_name と種別を連結した複合キー（"name@type"形式のuid）。
type User struct {
	UID         string
	UserName    string
	UDID        string // ソース固有の永続ID。Blueskyのdidのようにリネーム耐性のあるIDを持つソースでのみuser_nameと異なる
	Nick        string
	Avatar      string
	Banner      string
	Description string
	Type        SourceType
	UpdateTime  int64 // エポック秒
	Flagged     bool
}

// NewUser は複合キーを設定した新しいUserを生成する。
// user_nameは小文字に正規化される。
func NewUser(userName string, st SourceType) *User {
	name := strings.ToLower(userName)
	u := &User{
		UserName: name,
		UDID:     name,
		Type:     st,
	}
	if name != "" && st != "" {
		u.UID = UID(name, st)
	}
	return u
}

// URL はユーザーページの正規URLを返す。
func (u *User) URL() string {
	return UserURL(u.Type, u.UserName)
}

// DisplayNick は表示用のニックネームを返す。未設定の場合はuser_nameを返す。
func (u *User) DisplayNick() string {
	if u.Nick == "" {
		return u.UserName
	}
	return u.Nick
}

// UpdateTimeString は最終更新時刻を "2006-01-02 15:04" 形式で返す。
func (u *User) UpdateTimeString() string {
	return time.Unix(u.UpdateTime, 0).Format("2006-01-02 15:04")
}
