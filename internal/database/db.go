package database

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Open はSQLiteデータベースファイルを開く。
// アーカイブ本体とお気に入りの2ファイルをそれぞれこの関数で開く。
// 読み書きはストア側のハンドル単位の排他区間で直列化されるため、
// コネクションプールは1本に制限する。
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	return db, nil
}
