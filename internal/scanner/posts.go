package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/kanzoderg/MyTimeline/internal/model"
)

// maxPlaceholderSynthesis は1パスで合成する返信先プレースホルダの上限。
// 循環参照や極端に深い返信チェーンでも必ず停止させる。
const maxPlaceholderSynthesis = 100

// ScanPosts は投稿パスを実行する。
// 投稿サイドカーを取り込み、未取得の返信先にはプレースホルダを合成する。
func (s *Scanner) ScanPosts(ctx context.Context, st model.SourceType, userName string) error {
	names, forced, err := s.listTargets(st, userName)
	if err != nil {
		return err
	}

	root := s.cfg.SourceRoot(st)
	scanned := 0

	// 返信先の合成対象。取り込み中に発見した未解決参照を積む
	var frontier []string

	for i, name := range names {
		if !s.validateAccountDir(root, name) {
			continue
		}
		s.logger.Info("投稿を走査しています",
			slog.Int("current", i+1), slog.Int("total", len(names)), slog.String("user", name))

		entries, err := os.ReadDir(filepath.Join(root, name))
		if err != nil {
			s.logger.Error("アカウントディレクトリを読めません", slog.String("user", name), slog.String("error", err.Error()))
			continue
		}

		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			if !matchesPostFile(st, e.Name()) {
				continue
			}
			postID, ok := model.ExtractPostID(st, e.Name())
			if !ok {
				continue
			}

			existing, err := s.store.PostByID(ctx, postID, false)
			if err != nil {
				s.logger.Error("投稿の取得に失敗しました", slog.String("post_id", postID), slog.String("error", err.Error()))
				continue
			}
			if existing != nil && !forced {
				continue
			}

			raw, err := os.ReadFile(filepath.Join(root, name, e.Name()))
			if err != nil {
				s.logger.Error("サイドカーを読めません", slog.String("file", e.Name()), slog.String("error", err.Error()))
				continue
			}

			p := model.NewPost(postID, name, st)
			if err := s.norm.PopulatePost(ctx, p, raw); err != nil {
				s.logger.Error("投稿の取り込みに失敗しました",
					slog.String("file", filepath.Join(root, name, e.Name())),
					slog.String("error", err.Error()))
				continue
			}
			scanned++

			if p.ReplyTo != "" {
				frontier = append(frontier, p.ReplyTo)
			}
		}
	}

	if err := s.synthesizeReplyTargets(ctx, st, frontier); err != nil {
		return err
	}

	if err := s.store.Commit(ctx); err != nil {
		return err
	}
	s.store.ClearCache()
	if s.metrics != nil {
		s.metrics.RecordScannedPosts(string(st), scanned)
	}
	return nil
}

// synthesizeReplyTargets は未解決の返信先参照にプレースホルダ投稿を合成する。
// 参照はソフトであり、参照先が後から取り込まれればプレースホルダは
// INSERT OR REPLACEで上書きされる。visited集合と合成上限で必ず停止する。
func (s *Scanner) synthesizeReplyTargets(ctx context.Context, st model.SourceType, frontier []string) error {
	visited := make(map[string]struct{})
	synthesized := 0

	for len(frontier) > 0 && synthesized < maxPlaceholderSynthesis {
		ref := frontier[0]
		frontier = frontier[1:]

		if _, ok := visited[ref]; ok {
			continue
		}
		visited[ref] = struct{}{}

		postID, replyUser, ok := model.SplitReplyRef(ref)
		if !ok {
			continue
		}

		existing, err := s.store.PostByID(ctx, postID, true)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		p := model.NewPost(postID, replyUser, st)
		p.URL = model.PostURL(st, replyUser, postID)
		if err := s.store.UpsertPost(ctx, p); err != nil {
			return err
		}
		synthesized++
		s.logger.Info("返信先のプレースホルダを合成しました",
			slog.String("post_id", postID), slog.String("user", replyUser))
	}
	return nil
}

func matchesPostFile(st model.SourceType, fileName string) bool {
	for _, pat := range model.PostFilePatterns(st) {
		if pat.MatchString(fileName) {
			return true
		}
	}
	return false
}
