package model

// Favorite はお気に入り登録を表す。
// 再取り込み可能なアーカイブ本体と分離するため、専用のデータベースに保存される。
type Favorite struct {
	PostID  string
	FavTime string
}
