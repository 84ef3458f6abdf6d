package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kanzoderg/MyTimeline/internal/model"
)

// AddFavorite は投稿をお気に入りに追加する。
// アーカイブに存在しない投稿IDは拒否する。既に登録済みの場合は上書きする。
func (s *Store) AddFavorite(ctx context.Context, postID string) error {
	p, err := s.PostByID(ctx, postID, true)
	if err != nil {
		return err
	}
	if p == nil {
		return model.NewPostNotFoundError(postID)
	}

	s.favMu.Lock()
	defer s.favMu.Unlock()

	favTime := strconv.FormatInt(time.Now().Unix(), 10)
	_, err = s.favDB.ExecContext(ctx,
		"INSERT OR REPLACE INTO fav (post_id, fav_time) VALUES (?, ?)",
		postID, favTime)
	if err != nil {
		return fmt.Errorf("お気に入りの追加に失敗しました (post_id=%s): %w", postID, err)
	}
	return nil
}

// RemoveFavorite は投稿をお気に入りから削除する。
// 未登録の投稿IDに対しては何もしない。
func (s *Store) RemoveFavorite(ctx context.Context, postID string) error {
	s.favMu.Lock()
	defer s.favMu.Unlock()

	_, err := s.favDB.ExecContext(ctx,
		"DELETE FROM fav WHERE post_id = ?", postID)
	if err != nil {
		return fmt.Errorf("お気に入りの削除に失敗しました (post_id=%s): %w", postID, err)
	}
	return nil
}

// IsFavorite は投稿がお気に入りに登録されているかを返す。
// トグル直後の表示に直前の書き込みを反映させるため、常にキャッシュを使わない。
func (s *Store) IsFavorite(ctx context.Context, postID string) (bool, error) {
	s.favMu.Lock()
	defer s.favMu.Unlock()

	var count int
	err := s.favDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM fav WHERE post_id = ?", postID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("お気に入り判定に失敗しました (post_id=%s): %w", postID, err)
	}
	return count > 0, nil
}

// ListFavorites は全お気に入りを登録日時の降順で取得する。
func (s *Store) ListFavorites(ctx context.Context) ([]*model.Favorite, error) {
	s.favMu.Lock()
	rows, err := s.favDB.QueryContext(ctx,
		"SELECT post_id, fav_time FROM fav ORDER BY fav_time DESC")
	if err != nil {
		s.favMu.Unlock()
		return nil, fmt.Errorf("お気に入り一覧の取得に失敗しました: %w", err)
	}

	var favs []*model.Favorite
	for rows.Next() {
		var f model.Favorite
		if err := rows.Scan(&f.PostID, &f.FavTime); err != nil {
			rows.Close()
			s.favMu.Unlock()
			return nil, fmt.Errorf("お気に入り行の読み取りに失敗しました: %w", err)
		}
		favs = append(favs, &f)
	}
	err = rows.Err()
	rows.Close()
	s.favMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("お気に入り一覧の読み取りに失敗しました: %w", err)
	}
	return favs, nil
}
