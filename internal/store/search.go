package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/facette/natsort"
)

// searchCacheTTL は検索結果キャッシュの有効期限。
// 期限切れを検出したら該当キャッシュ全体を破棄する。
const searchCacheTTL = 1200 * time.Second

// searchCache は検索形状（投稿・メディア）ごとの結果キャッシュ。
// クエリキャッシュとは独立に、最終クリア時刻ベースのTTLで管理する。
type searchCache struct {
	mu        sync.Mutex
	clearedAt time.Time
	entries   map[string][]PostIndexEntry
}

func newSearchCache() *searchCache {
	return &searchCache{
		clearedAt: time.Now(),
		entries:   make(map[string][]PostIndexEntry),
	}
}

func (c *searchCache) get(key string) ([]PostIndexEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if time.Since(c.clearedAt) > searchCacheTTL {
		c.entries = make(map[string][]PostIndexEntry)
		c.clearedAt = time.Now()
		return nil, false
	}
	v, ok := c.entries[key]
	return v, ok
}

func (c *searchCache) put(key string, v []PostIndexEntry) {
	c.mu.Lock()
	c.entries[key] = v
	c.mu.Unlock()
}

// searchTokens は検索文字列を空白で分割してトークン集合を作る。
// redditのユーザー名貼り付けで混入する先頭の "u/" は取り除く。
func searchTokens(text string) []string {
	seen := make(map[string]struct{})
	var tokens []string
	for _, w := range strings.Fields(text) {
		w = strings.TrimPrefix(w, "u/")
		if w == "" {
			continue
		}
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		tokens = append(tokens, w)
	}
	sort.Strings(tokens)
	return tokens
}

// searchMatchClause は1トークン分のWHERE句断片を返す。
// 本文・表示名・元ユーザー名を連結した文字列への部分一致で判定する。
const searchMatchClause = "(IFNULL(text_content, '') || ' ' || IFNULL(nick, '') || IFNULL(real_user, '')) LIKE ?"

// SearchPosts は全トークンに部分一致する投稿を時刻の自然順降順で検索する。
// 空の検索文字列は結果なしを返す。
func (s *Store) SearchPosts(ctx context.Context, text string) ([]PostIndexEntry, error) {
	tokens := searchTokens(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	key := strings.Join(tokens, "\x00")
	if v, ok := s.postSearch.get(key); ok {
		return v, nil
	}

	query := "SELECT post_id, time, likes FROM posts WHERE " + tokenClauses(len(tokens))
	entries, err := s.queryIndexEntries(ctx, query, tokenArgs(tokens))
	if err != nil {
		return nil, fmt.Errorf("投稿の検索に失敗しました: %w", err)
	}

	sortIndexEntriesByTimeDesc(entries)
	s.postSearch.put(key, entries)
	return entries, nil
}

// SearchMedia は全トークンに部分一致する投稿の動画メディアを検索する。
// 返り値のPostIDフィールドにはメディアIDが入る。結果は時刻の自然順降順。
func (s *Store) SearchMedia(ctx context.Context, text string) ([]PostIndexEntry, error) {
	tokens := searchTokens(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	key := strings.Join(tokens, "\x00")
	if v, ok := s.mediaSearch.get(key); ok {
		return v, nil
	}

	query := "SELECT media_id, time, 0 FROM media WHERE " + videoExtClause() +
		" AND post_id IN (SELECT post_id FROM posts WHERE " + tokenClauses(len(tokens)) + ")"
	entries, err := s.queryIndexEntries(ctx, query, tokenArgs(tokens))
	if err != nil {
		return nil, fmt.Errorf("メディアの検索に失敗しました: %w", err)
	}

	sortIndexEntriesByTimeDesc(entries)
	s.mediaSearch.put(key, entries)
	return entries, nil
}

func tokenClauses(n int) string {
	clauses := make([]string, n)
	for i := range clauses {
		clauses[i] = searchMatchClause
	}
	return strings.Join(clauses, " AND ")
}

func tokenArgs(tokens []string) []any {
	args := make([]any, len(tokens))
	for i, t := range tokens {
		args[i] = "%" + t + "%"
	}
	return args
}

func (s *Store) queryIndexEntries(ctx context.Context, query string, args []any) ([]PostIndexEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []PostIndexEntry
	for rows.Next() {
		var e PostIndexEntry
		if err := rows.Scan(&e.PostID, &e.Time, &e.Likes); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func sortIndexEntriesByTimeDesc(entries []PostIndexEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return natsort.Compare(entries[j].Time, entries[i].Time)
	})
}
