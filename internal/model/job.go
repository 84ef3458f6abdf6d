package model

import "github.com/google/uuid"

// DownloadJob はキューに積まれたダウンロード要求を表す。
// メモリ上のキューにのみ保持され、ワーカーが1回だけ消費した後は
// 成否によらず破棄される（失敗はログとフラグで通知され、再投入はしない）。
type DownloadJob struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Full      bool   `json:"full"`
	MediaOnly bool   `json:"media_only"`
}

// NewDownloadJob はIDを採番した新しいDownloadJobを生成する。
func NewDownloadJob(url string, full, mediaOnly bool) DownloadJob {
	return DownloadJob{
		ID:        uuid.New().String(),
		URL:       url,
		Full:      full,
		MediaOnly: mediaOnly,
	}
}

// SameRequest は(url, full, media_only)の3つ組が同一かを判定する。
// 重複投入ガードに使用する。IDは比較しない。
func (j DownloadJob) SameRequest(other DownloadJob) bool {
	return j.URL == other.URL && j.Full == other.Full && j.MediaOnly == other.MediaOnly
}
