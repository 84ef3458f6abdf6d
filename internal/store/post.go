package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/facette/natsort"

	"github.com/kanzoderg/MyTimeline/internal/model"
)

const postColumns = "post_id, text_content, uid, nick, time, type, url, likes, reposts, comments, embed, isreply, reply_to, real_user"

// PostIndexEntry はキャッシュビルダーと検索が使う投稿の軽量インデックス行。
type PostIndexEntry struct {
	PostID string
	Time   string
	Likes  int
}

// UpsertPost は投稿を挿入または置換する。
func (s *Store) UpsertPost(ctx context.Context, p *model.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO posts (`+postColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.PostID, nullString(p.TextContent), p.UID, nullString(p.Nick),
		p.Time, string(p.Type), nullString(p.URL),
		p.Likes, p.Reposts, p.Comments,
		nullString(p.Embed), boolToInt(p.IsReply), nullString(p.ReplyTo),
		nullString(p.RealUser),
	)
	if err != nil {
		return fmt.Errorf("投稿の保存に失敗しました (post_id=%s): %w", p.PostID, err)
	}
	return nil
}

// PostByID は投稿IDで投稿を1件取得する。見つからない場合はnilを返す。
func (s *Store) PostByID(ctx context.Context, postID string, bypassCache bool) (*model.Post, error) {
	key := "post/id/" + postID
	if !bypassCache {
		if v, ok := s.cacheGet(key); ok {
			return v.(*model.Post), nil
		}
	}

	s.mu.Lock()
	row := s.db.QueryRowContext(ctx,
		"SELECT "+postColumns+" FROM posts WHERE post_id = ?", postID)
	p, err := scanPost(row)
	s.mu.Unlock()
	if err == sql.ErrNoRows {
		p = nil
	} else if err != nil {
		return nil, err
	}

	if !bypassCache {
		s.cachePut(key, p)
	}
	return p, nil
}

// PostsByUID は指定ユーザーの全投稿を時刻の自然順降順で取得する。
func (s *Store) PostsByUID(ctx context.Context, uid string) ([]*model.Post, error) {
	key := "post/uid/" + uid
	if v, ok := s.cacheGet(key); ok {
		return v.([]*model.Post), nil
	}

	s.mu.Lock()
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+postColumns+" FROM posts WHERE uid = ?", uid)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("投稿一覧の取得に失敗しました (uid=%s): %w", uid, err)
	}

	var posts []*model.Post
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			rows.Close()
			s.mu.Unlock()
			return nil, err
		}
		posts = append(posts, p)
	}
	err = rows.Err()
	rows.Close()
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("投稿一覧の読み取りに失敗しました (uid=%s): %w", uid, err)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		return natsort.Compare(posts[j].Time, posts[i].Time)
	})

	s.cachePut(key, posts)
	return posts, nil
}

// PostIndex は全投稿の軽量インデックスを取得する。
// キャッシュビルダーのビュー再構築専用で、クエリキャッシュは使わない。
func (s *Store) PostIndex(ctx context.Context) ([]PostIndexEntry, error) {
	s.mu.Lock()
	rows, err := s.db.QueryContext(ctx, "SELECT post_id, time, likes FROM posts")
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("投稿インデックスの取得に失敗しました: %w", err)
	}

	var entries []PostIndexEntry
	for rows.Next() {
		var (
			e     PostIndexEntry
			likes sql.NullInt64
		)
		if err := rows.Scan(&e.PostID, &e.Time, &likes); err != nil {
			rows.Close()
			s.mu.Unlock()
			return nil, fmt.Errorf("投稿インデックス行の読み取りに失敗しました: %w", err)
		}
		e.Likes = int(likes.Int64)
		entries = append(entries, e)
	}
	err = rows.Err()
	rows.Close()
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("投稿インデックスの読み取りに失敗しました: %w", err)
	}
	return entries, nil
}

func scanPost(row rowScanner) (*model.Post, error) {
	var (
		p                                   model.Post
		textContent, nick, url              sql.NullString
		embed, replyTo, realUser            sql.NullString
		typ                                 string
		likes, reposts, comments, isReply   sql.NullInt64
	)
	err := row.Scan(&p.PostID, &textContent, &p.UID, &nick, &p.Time, &typ,
		&url, &likes, &reposts, &comments, &embed, &isReply, &replyTo, &realUser)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("投稿行の読み取りに失敗しました: %w", err)
	}

	p.TextContent = nullStringValue(textContent)
	p.Nick = nullStringValue(nick)
	p.Type = model.SourceType(typ)
	p.URL = nullStringValue(url)
	p.Likes = int(likes.Int64)
	p.Reposts = int(reposts.Int64)
	p.Comments = int(comments.Int64)
	p.Embed = nullStringValue(embed)
	p.IsReply = isReply.Valid && isReply.Int64 != 0
	p.ReplyTo = nullStringValue(replyTo)
	p.RealUser = nullStringValue(realUser)
	return &p, nil
}
