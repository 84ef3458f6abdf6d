package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/facette/natsort"

	"github.com/kanzoderg/MyTimeline/internal/model"
)

const mediaColumns = "media_id, post_id, file_name, uid, type, time"

// UpsertMedia はメディアを挿入または置換する。
func (s *Store) UpsertMedia(ctx context.Context, m *model.Media) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO media (`+mediaColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.MediaID, m.PostID, m.FileName, m.UID, string(m.Type), m.Time,
	)
	if err != nil {
		return fmt.Errorf("メディアの保存に失敗しました (media_id=%s): %w", m.MediaID, err)
	}
	return nil
}

// MediaByID はメディアIDでメディアを1件取得する。見つからない場合はnilを返す。
// file_nameが空の行は不正なため、存在しても「見つからない」として扱う。
func (s *Store) MediaByID(ctx context.Context, mediaID string, bypassCache bool) (*model.Media, error) {
	key := "media/id/" + mediaID
	if !bypassCache {
		if v, ok := s.cacheGet(key); ok {
			return v.(*model.Media), nil
		}
	}

	s.mu.Lock()
	row := s.db.QueryRowContext(ctx,
		"SELECT "+mediaColumns+" FROM media WHERE media_id = ?", mediaID)
	m, err := scanMedia(row)
	s.mu.Unlock()
	if err == sql.ErrNoRows {
		m = nil
	} else if err != nil {
		return nil, err
	}
	if m != nil && m.FileName == "" {
		m = nil
	}

	if !bypassCache {
		s.cachePut(key, m)
	}
	return m, nil
}

// MediaByPost は指定投稿に紐づく全メディアをファイル名の自然順昇順で取得する。
// 複数枚投稿の表示順をダウンローダの採番順に合わせるため自然順を使う。
func (s *Store) MediaByPost(ctx context.Context, postID string) ([]*model.Media, error) {
	key := "media/post/" + postID
	if v, ok := s.cacheGet(key); ok {
		return v.([]*model.Media), nil
	}

	s.mu.Lock()
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+mediaColumns+" FROM media WHERE post_id = ?", postID)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("メディア一覧の取得に失敗しました (post_id=%s): %w", postID, err)
	}

	var medias []*model.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			rows.Close()
			s.mu.Unlock()
			return nil, err
		}
		medias = append(medias, m)
	}
	err = rows.Err()
	rows.Close()
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("メディア一覧の読み取りに失敗しました (post_id=%s): %w", postID, err)
	}

	sort.SliceStable(medias, func(i, j int) bool {
		return natsort.Compare(medias[i].FileName, medias[j].FileName)
	})

	s.cachePut(key, medias)
	return medias, nil
}

// VideoMediaIDs は動画拡張子を持つ全メディアのIDを取得する。
// キャッシュビルダーの動画プール再構築専用。
func (s *Store) VideoMediaIDs(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	rows, err := s.db.QueryContext(ctx,
		"SELECT media_id FROM media WHERE "+videoExtClause())
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("動画メディアの取得に失敗しました: %w", err)
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			s.mu.Unlock()
			return nil, fmt.Errorf("動画メディア行の読み取りに失敗しました: %w", err)
		}
		ids = append(ids, id)
	}
	err = rows.Err()
	rows.Close()
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("動画メディアの読み取りに失敗しました: %w", err)
	}
	return ids, nil
}

// videoExtClause は動画拡張子で絞り込むWHERE句の断片を返す。
// 拡張子はモデル側の固定リスト由来で、ユーザー入力は含まれない。
func videoExtClause() string {
	clause := "("
	for i, ext := range model.VideoExtensions() {
		if i > 0 {
			clause += " OR "
		}
		clause += "file_name LIKE '%." + ext + "'"
	}
	return clause + ")"
}

func scanMedia(row rowScanner) (*model.Media, error) {
	var (
		m   model.Media
		typ string
	)
	err := row.Scan(&m.MediaID, &m.PostID, &m.FileName, &m.UID, &typ, &m.Time)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("メディア行の読み取りに失敗しました: %w", err)
	}
	m.Type = model.SourceType(typ)
	return &m, nil
}
