package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/kanzoderg/MyTimeline/internal/model"
)

const userColumns = "uid, user_name, udid, nick, avatar, banner, description, type, update_time, flagged"

// UpsertUser はユーザーを挿入または置換する。
func (s *Store) UpsertUser(ctx context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.UID, u.UserName, u.UDID,
		nullString(u.Nick), nullString(u.Avatar), nullString(u.Banner),
		nullString(u.Description), string(u.Type), u.UpdateTime, boolToInt(u.Flagged),
	)
	if err != nil {
		return fmt.Errorf("ユーザーの保存に失敗しました (uid=%s): %w", u.UID, err)
	}
	return nil
}

// UserByUID はUIDでユーザーを1件取得する。見つからない場合はnilを返す。
func (s *Store) UserByUID(ctx context.Context, uid string, bypassCache bool) (*model.User, error) {
	key := "user/uid/" + uid
	if !bypassCache {
		if v, ok := s.cacheGet(key); ok {
			return v.(*model.User), nil
		}
	}

	u, err := s.queryUser(ctx, "SELECT "+userColumns+" FROM users WHERE uid = ?", uid)
	if err != nil {
		return nil, err
	}
	if !bypassCache {
		s.cachePut(key, u)
	}
	return u, nil
}

// UserByName はユーザー名でユーザーを1件取得する。見つからない場合はnilを返す。
func (s *Store) UserByName(ctx context.Context, userName string, st model.SourceType, bypassCache bool) (*model.User, error) {
	return s.UserByUID(ctx, model.UID(userName, st), bypassCache)
}

// UserByUDID はソース固有IDでユーザーを1件取得する。見つからない場合はnilを返す。
func (s *Store) UserByUDID(ctx context.Context, udid string, st model.SourceType, bypassCache bool) (*model.User, error) {
	key := "user/udid/" + udid + "@" + string(st)
	if !bypassCache {
		if v, ok := s.cacheGet(key); ok {
			return v.(*model.User), nil
		}
	}

	u, err := s.queryUser(ctx, "SELECT "+userColumns+" FROM users WHERE udid = ? AND type = ?", udid, string(st))
	if err != nil {
		return nil, err
	}
	if !bypassCache {
		s.cachePut(key, u)
	}
	return u, nil
}

// AllUsers は全ユーザーを更新日時の降順で取得する。
func (s *Store) AllUsers(ctx context.Context) ([]*model.User, error) {
	key := "user/all"
	if v, ok := s.cacheGet(key); ok {
		return v.([]*model.User), nil
	}

	s.mu.Lock()
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users")
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			rows.Close()
			s.mu.Unlock()
			return nil, err
		}
		users = append(users, u)
	}
	err = rows.Err()
	rows.Close()
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の読み取りに失敗しました: %w", err)
	}

	sort.SliceStable(users, func(i, j int) bool {
		return users[i].UpdateTime > users[j].UpdateTime
	})

	s.cachePut(key, users)
	return users, nil
}

// FlagUser はユーザーの取得不能フラグを立てる。
// 対象ユーザーが存在しない場合は何もしない。
func (s *Store) FlagUser(ctx context.Context, userName string, st model.SourceType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"UPDATE users SET flagged = 1 WHERE uid = ?", model.UID(userName, st))
	if err != nil {
		return fmt.Errorf("ユーザーのフラグ設定に失敗しました (user=%s): %w", userName, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) queryUser(ctx context.Context, query string, args ...any) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRowContext(ctx, query, args...)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                                  model.User
		nick, avatar, banner, description  sql.NullString
		typ                                string
		updateTime                         sql.NullFloat64
		flagged                            sql.NullInt64
	)
	err := row.Scan(&u.UID, &u.UserName, &u.UDID,
		&nick, &avatar, &banner, &description, &typ, &updateTime, &flagged)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザー行の読み取りに失敗しました: %w", err)
	}

	u.Nick = nullStringValue(nick)
	u.Avatar = nullStringValue(avatar)
	u.Banner = nullStringValue(banner)
	u.Description = nullStringValue(description)
	u.Type = model.SourceType(typ)
	if updateTime.Valid {
		u.UpdateTime = int64(updateTime.Float64)
	}
	u.Flagged = flagged.Valid && flagged.Int64 != 0
	return &u, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
