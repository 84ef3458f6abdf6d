package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/facette/natsort"

	"github.com/kanzoderg/MyTimeline/internal/model"
)

// ScanUsers はユーザーパスを実行する。
// ディレクトリ名をアカウント名とみなし、未登録のユーザーを
// サイドカーから取り込む。forcedな単一走査では登録済みでも再取り込みする。
func (s *Scanner) ScanUsers(ctx context.Context, st model.SourceType, userName string) error {
	names, forced, err := s.listTargets(st, userName)
	if err != nil {
		return err
	}

	root := s.cfg.SourceRoot(st)
	scanned := 0
	for _, name := range names {
		if !s.validateAccountDir(root, name) {
			continue
		}

		u := model.NewUser(name, st)
		existing, err := s.store.UserByUID(ctx, u.UID, true)
		if err != nil {
			s.logger.Error("ユーザーの取得に失敗しました", slog.String("user", name), slog.String("error", err.Error()))
			continue
		}
		if existing != nil && !forced {
			continue
		}

		if err := s.ingestUser(ctx, u, root, name, forced); err != nil {
			s.logger.Error("ユーザーの取り込みに失敗しました", slog.String("user", name), slog.String("error", err.Error()))
			continue
		}
		scanned++
	}

	if err := s.store.Commit(ctx); err != nil {
		return err
	}
	s.store.ClearCache()
	if s.metrics != nil {
		s.metrics.RecordScannedUsers(string(st), scanned)
	}
	return nil
}

func (s *Scanner) ingestUser(ctx context.Context, u *model.User, root, name string, forced bool) error {
	sidecar := findUserSidecar(u.Type, filepath.Join(root, name))
	if sidecar == "" {
		// サイドカーなし。最低限の行だけ作る
		u.Nick = u.UserName
		u.UpdateTime = time.Now().Unix()
		return s.store.UpsertUser(ctx, u)
	}

	raw, err := os.ReadFile(filepath.Join(root, name, sidecar))
	if err != nil {
		return err
	}

	// 全体走査ではディレクトリの更新時刻を、強制再取り込みでは現在時刻を使う
	updateTime := time.Now().Unix()
	if !forced {
		if info, err := os.Stat(filepath.Join(root, name)); err == nil {
			updateTime = info.ModTime().Unix()
		}
	}

	return s.norm.PopulateUser(ctx, u, raw, updateTime)
}

// findUserSidecar はユーザー情報の取れるサイドカーのファイル名を返す。
// FAは固定のuser.json、それ以外は自然順で最新のJSONを選ぶ。
// 見つからない場合は空文字列を返す。
func findUserSidecar(st model.SourceType, dir string) string {
	if st == model.SourceFA {
		if _, err := os.Stat(filepath.Join(dir, "user.json")); err == nil {
			return "user.json"
		}
		return ""
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}
	var jsonFiles []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			jsonFiles = append(jsonFiles, e.Name())
		}
	}
	if len(jsonFiles) == 0 {
		return ""
	}
	sort.SliceStable(jsonFiles, func(i, j int) bool {
		return natsort.Compare(jsonFiles[j], jsonFiles[i])
	})
	return jsonFiles[0]
}
