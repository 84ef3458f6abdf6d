package model

import "strings"

// メディア種別判定に使う拡張子の固定セット。
var (
	videoExtensions      = map[string]bool{"mp4": true, "webm": true, "m4v": true}
	audioExtensions      = map[string]bool{"mp3": true, "wav": true, "ogg": true}
	imageExtensions      = map[string]bool{"jpg": true, "jpeg": true, "png": true, "gif": true}
	flashExtensions      = map[string]bool{"swf": true}
	attachmentExtensions = map[string]bool{"pdf": true, "epub": true, "txt": true, "doc": true, "docx": true}
)

// VideoExtensions は動画拡張子の一覧を返す。検索のフィルタ条件構築に使用する。
func VideoExtensions() []string {
	return []string{"mp4", "webm", "m4v"}
}

// IsMediaFile はファイル名が既知のメディア拡張子を持つかを判定する。
func IsMediaFile(fileName string) bool {
	ext := fileExt(fileName)
	return videoExtensions[ext] || audioExtensions[ext] || imageExtensions[ext] ||
		flashExtensions[ext] || attachmentExtensions[ext]
}

// fileExt はファイル名の最後のドット以降を小文字で返す。
func fileExt(fileName string) string {
	idx := strings.LastIndex(fileName, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(fileName[idx+1:])
}

// Media はアーカイブされたメディアファイルを表す。
// 主キーはソース固有のメディアID。file_nameが空の行は不正であり、
// 「見つからない」として扱う。
type Media struct {
	MediaID  string
	PostID   string
	FileName string
	UID      string // 所有ユーザーの複合キー
	Type     SourceType
	Time     string
}

// NewMedia は所有関係を設定した新しいMediaを生成する。
func NewMedia(mediaID, postID, userName string, st SourceType, t string) *Media {
	m := &Media{
		MediaID: mediaID,
		PostID:  postID,
		Type:    st,
		Time:    t,
	}
	if userName != "" && st != "" {
		m.UID = UID(userName, st)
	}
	return m
}

// IsVideo はファイル拡張子が動画種別かを返す。
func (m *Media) IsVideo() bool { return videoExtensions[fileExt(m.FileName)] }

// IsAudio はファイル拡張子が音声種別かを返す。
func (m *Media) IsAudio() bool { return audioExtensions[fileExt(m.FileName)] }

// IsImage はファイル拡張子が画像種別かを返す。
func (m *Media) IsImage() bool { return imageExtensions[fileExt(m.FileName)] }

// IsFlash はファイル拡張子がFlash種別かを返す。
func (m *Media) IsFlash() bool { return flashExtensions[fileExt(m.FileName)] }

// IsAttachment はファイル拡張子が添付文書種別かを返す。
func (m *Media) IsAttachment() bool { return attachmentExtensions[fileExt(m.FileName)] }
