// Package store はアーカイブ本体とお気に入りの2つのSQLiteデータベースを
// 束ねた統合ストアを提供する。
//
// 各ハンドルへの読み書きはハンドル単位のミューテックスで直列化される。
// 行単位・テーブル単位の細粒度ロックは持たない。書き込み直後の読み取りを
// 保証する必要がある呼び出し（お気に入り判定・取り込み直後の参照）は
// キャッシュをバイパスすること。
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
)

// maxCachedQueries はクエリ結果キャッシュのエントリ数上限。
// 超過時はLRUではなくキャッシュ全体を破棄する。読み取り偏重かつ
// 単一書き込みのワークロードでは、この粗い方針で十分正しく安価である。
const maxCachedQueries = 5000

// Store は2つのデータベースハンドルとクエリ結果キャッシュを保持する統合ストア。
type Store struct {
	db     *sql.DB // アーカイブ本体 (users/posts/media)
	favDB  *sql.DB // お気に入り (fav)
	logger *slog.Logger

	mu    sync.Mutex // dbハンドルの直列化
	favMu sync.Mutex // favDBハンドルの直列化

	cacheMu sync.Mutex
	cache   map[string]any

	postSearch  *searchCache
	mediaSearch *searchCache
}

// New はStoreを生成する。
func New(db, favDB *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		db:          db,
		favDB:       favDB,
		logger:      logger,
		cache:       make(map[string]any),
		postSearch:  newSearchCache(),
		mediaSearch: newSearchCache(),
	}
}

// ClearCache はクエリ結果キャッシュ全体を破棄する。
// 取り込みパスの完了後など、以降の読み取りに書き込みを反映させる
// 必要がある箇所から明示的に呼び出される。
func (s *Store) ClearCache() {
	s.cacheMu.Lock()
	s.cache = make(map[string]any)
	s.cacheMu.Unlock()
}

// Commit は両データベースをフラッシュする。
// database/sqlはステートメント単位で自動コミットするため、ここでは
// WALチェックポイントによるファイルへの書き出しのみを行う。
func (s *Store) Commit(ctx context.Context) error {
	s.mu.Lock()
	_, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("アーカイブDBのフラッシュに失敗しました: %w", err)
	}

	s.favMu.Lock()
	_, err = s.favDB.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)")
	s.favMu.Unlock()
	if err != nil {
		return fmt.Errorf("お気に入りDBのフラッシュに失敗しました: %w", err)
	}

	return nil
}

// cacheGet はキャッシュからクエリ結果を取り出す。
func (s *Store) cacheGet(key string) (any, bool) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	v, ok := s.cache[key]
	return v, ok
}

// cachePut はクエリ結果をキャッシュに格納する。
// エントリ数が上限を超えた場合はキャッシュ全体を破棄してから格納する。
func (s *Store) cachePut(key string, v any) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if len(s.cache) > maxCachedQueries {
		s.logger.Info("クエリキャッシュをクリアします", slog.Int("entries", len(s.cache)))
		s.cache = make(map[string]any)
	}
	s.cache[key] = v
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}
