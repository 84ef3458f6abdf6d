package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, job, favorite, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnsupportedURL = "UNSUPPORTED_URL"
	ErrCodeBareDID        = "BARE_DID"
	ErrCodeEmptyURL       = "EMPTY_URL"
	ErrCodePostNotFound   = "POST_NOT_FOUND"
	ErrCodeInvalidSort    = "INVALID_SORT"
)

// NewUnsupportedURLError は対応外ドメインのURLエラーを生成する。
func NewUnsupportedURLError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeUnsupportedURL,
		Message:  fmt.Sprintf("対応していないURLです: %s", url),
		Category: "validation",
		Action:   "X・Bluesky・Reddit・FurAffinityのいずれかのURLを入力してください。",
	}
}

// NewBareDIDError はハンドルに解決できないBluesky内部IDのエラーを生成する。
func NewBareDIDError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeBareDID,
		Message:  fmt.Sprintf("did: 形式のIDは使用できません: %s", url),
		Category: "validation",
		Action:   "'xxx.bsky.social' のような実際のハンドルを入力してください。",
	}
}

// NewEmptyURLError はURL未入力のエラーを生成する。
func NewEmptyURLError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyURL,
		Message:  "URLが入力されていません。",
		Category: "validation",
		Action:   "ダウンロードしたいアカウントのURLを入力してください。",
	}
}

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", postID),
		Category: "favorite",
		Action:   "投稿IDを確認してください。",
	}
}

// NewInvalidSortError は無効なソート種別エラーを生成する。
func NewInvalidSortError(sort string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidSort,
		Message:  fmt.Sprintf("無効なソート種別です: %s", sort),
		Category: "validation",
		Action:   "ソートには new、top、random のいずれかを指定してください。",
	}
}
