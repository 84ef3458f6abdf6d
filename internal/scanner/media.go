package scanner

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kanzoderg/MyTimeline/internal/model"
)

var (
	// 外部ホスト経由のメディアはファイル名がホスト名で始まり投稿IDを持たない
	externalMediaHosts = map[string]bool{
		"redgifs": true, "tumblr": true, "imgur": true, "gfycat": true,
	}

	epochPattern         = regexp.MustCompile(`\d{10}`)
	redditMediaIDPattern = regexp.MustCompile(`^[a-zA-Z0-9]{6,8}_\d`)
)

// ScanMedia はメディアパスを実行する。
// メディアファイルを対応する投稿に紐付け、対応する投稿が存在しない
// 孤立メディアにはプレースホルダ投稿を合成する。
func (s *Scanner) ScanMedia(ctx context.Context, st model.SourceType, userName string) error {
	names, _, err := s.listTargets(st, userName)
	if err != nil {
		return err
	}

	root := s.cfg.SourceRoot(st)
	scanned := 0

	for i, name := range names {
		if !s.validateAccountDir(root, name) {
			continue
		}
		s.logger.Info("メディアを走査しています",
			slog.Int("current", i+1), slog.Int("total", len(names)), slog.String("user", name))

		entries, err := os.ReadDir(filepath.Join(root, name))
		if err != nil {
			s.logger.Error("アカウントディレクトリを読めません", slog.String("user", name), slog.String("error", err.Error()))
			continue
		}

		for _, e := range entries {
			if e.IsDir() || !model.IsMediaFile(e.Name()) {
				continue
			}
			if err := s.ingestMediaFile(ctx, st, root, name, e.Name()); err != nil {
				s.logger.Error("メディアの取り込みに失敗しました",
					slog.String("file", e.Name()), slog.String("error", err.Error()))
				continue
			}
			scanned++
		}
	}

	if err := s.store.Commit(ctx); err != nil {
		return err
	}
	s.store.ClearCache()
	if s.metrics != nil {
		s.metrics.RecordScannedMedia(string(st), scanned)
	}
	return nil
}

func (s *Scanner) ingestMediaFile(ctx context.Context, st model.SourceType, root, userName, fileName string) error {
	mediaID, relatedPostID := s.resolveMediaIDs(st, root, userName, fileName)

	post, err := s.store.PostByID(ctx, relatedPostID, false)
	if err != nil {
		return err
	}
	if post == nil {
		post, err = s.synthesizeMediaPost(ctx, st, root, userName, fileName, mediaID, relatedPostID)
		if err != nil {
			return err
		}
	}

	existing, err := s.store.MediaByID(ctx, mediaID, false)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	m := model.NewMedia(mediaID, relatedPostID, userName, st, post.Time)
	m.FileName = fileName
	return s.store.UpsertMedia(ctx, m)
}

// resolveMediaIDs はメディアファイル名からメディアIDと対応する投稿IDを導出する。
func (s *Scanner) resolveMediaIDs(st model.SourceType, root, userName, fileName string) (mediaID, relatedPostID string) {
	if st == model.SourceFA {
		// FAはサイドカーから投稿IDを取る。ファイル名全体がメディアID
		mediaID = fileName
		sidecarPath := filepath.Join(root, userName, fileName+".json")
		raw, err := os.ReadFile(sidecarPath)
		if err != nil {
			s.logger.Warn("メディアのサイドカーがありません", slog.String("file", fileName))
			return mediaID, "0" + fileName
		}
		var sc struct {
			ID json.Number `json:"id"`
		}
		if err := json.Unmarshal(raw, &sc); err != nil || sc.ID.String() == "" {
			s.logger.Error("メディアのサイドカーが読めません", slog.String("file", sidecarPath))
			return mediaID, "0" + fileName
		}
		return mediaID, sc.ID.String()
	}

	mediaID = fileName
	if idx := strings.Index(fileName, "."); idx >= 0 {
		mediaID = fileName[:idx]
	}

	id, ok := model.ExtractPostID(st, fileName)
	if !ok {
		s.logger.Warn("ファイル名から投稿IDを抽出できません", slog.String("file", fileName))
		return mediaID, "0" + fileName
	}
	if externalMediaHosts[id] {
		// 外部ホスト由来のファイルは投稿IDを持たないため、アカウント内で
		// 衝突しない合成IDに付け替える
		return mediaID, "-1" + userName + "_" + id
	}
	return mediaID, id
}

// synthesizeMediaPost は孤立メディアのためのプレースホルダ投稿を合成する。
// 時刻はメディアIDに埋まった10桁のUNIX秒を優先し、なければファイルの
// 更新時刻を使う。
func (s *Scanner) synthesizeMediaPost(ctx context.Context, st model.SourceType, root, userName, fileName, mediaID, relatedPostID string) (*model.Post, error) {
	s.logger.Warn("メディアに対応する投稿がありません",
		slog.String("media_id", mediaID), slog.String("post_id", relatedPostID))

	p := model.NewPost(relatedPostID, userName, st)
	p.TextContent = fileName
	p.Time = guessMediaTime(root, userName, fileName, mediaID)

	if st == model.SourceReddit && redditMediaIDPattern.MatchString(mediaID) {
		baseID := strings.SplitN(mediaID, "_", 2)[0]
		p.URL = model.PostURL(model.SourceReddit, userName, baseID)
	}

	if err := s.store.UpsertPost(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func guessMediaTime(root, userName, fileName, mediaID string) string {
	const layout = "2006-01-02 15:04:05"

	if m := epochPattern.FindString(mediaID); m != "" {
		if epoch, err := strconv.ParseInt(m, 10, 64); err == nil {
			ts := time.Unix(epoch, 0).UTC()
			if ts.Before(time.Now().UTC()) {
				return ts.Format(layout)
			}
		}
	}

	info, err := os.Stat(filepath.Join(root, userName, fileName))
	if err != nil {
		return time.Now().UTC().Format(layout)
	}
	return info.ModTime().UTC().Format(layout)
}
