package scanner

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kanzoderg/MyTimeline/internal/config"
	"github.com/kanzoderg/MyTimeline/internal/database"
	"github.com/kanzoderg/MyTimeline/internal/model"
	"github.com/kanzoderg/MyTimeline/internal/normalize"
	"github.com/kanzoderg/MyTimeline/internal/store"
)

func newTestScanner(t *testing.T) (*Scanner, *store.Store, *config.Config) {
	t.Helper()

	dir := t.TempDir()
	mainPath := filepath.Join(dir, "data.db")
	favPath := filepath.Join(dir, "fav.db")
	if err := database.RunMigrations(mainPath, favPath); err != nil {
		t.Fatalf("マイグレーションに失敗しました: %v", err)
	}
	db, err := database.Open(mainPath)
	if err != nil {
		t.Fatalf("アーカイブDBのオープンに失敗しました: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	favDB, err := database.Open(favPath)
	if err != nil {
		t.Fatalf("お気に入りDBのオープンに失敗しました: %v", err)
	}
	t.Cleanup(func() { favDB.Close() })

	cfg := &config.Config{
		XRoot:      filepath.Join(dir, "twitter"),
		BskyRoot:   filepath.Join(dir, "bluesky"),
		RedditRoot: filepath.Join(dir, "reddit"),
		FARoot:     filepath.Join(dir, "furaffinity"),
	}
	for _, st := range model.AllSources {
		if err := os.MkdirAll(cfg.SourceRoot(st), 0o755); err != nil {
			t.Fatalf("ソースディレクトリの作成に失敗しました: %v", err)
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s := store.New(db, favDB, logger)
	norm := normalize.New(s, nil, false, logger)
	return New(cfg, s, norm, nil, logger), s, cfg
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("ディレクトリの作成に失敗しました: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("ファイルの書き込みに失敗しました: %v", err)
	}
}

func TestScanUsersWithoutSidecar(t *testing.T) {
	sc, s, cfg := newTestScanner(t)
	ctx := context.Background()

	if err := os.MkdirAll(filepath.Join(cfg.XRoot, "alice"), 0o755); err != nil {
		t.Fatalf("アカウントディレクトリの作成に失敗しました: %v", err)
	}

	if err := sc.ScanUsers(ctx, model.SourceX, ""); err != nil {
		t.Fatalf("ユーザーパスに失敗しました: %v", err)
	}

	u, err := s.UserByUID(ctx, "alice@x", true)
	if err != nil || u == nil {
		t.Fatalf("サイドカーなしユーザーが取り込まれていません: %v", err)
	}
	if u.Nick != "alice" {
		t.Errorf("表示名の既定値が一致しません: %s", u.Nick)
	}
	if u.UpdateTime == 0 {
		t.Error("更新時刻が設定されていません")
	}
}

func TestScanUsersSkipsDotDirs(t *testing.T) {
	sc, s, cfg := newTestScanner(t)
	ctx := context.Background()

	if err := os.MkdirAll(filepath.Join(cfg.XRoot, ".stfolder"), 0o755); err != nil {
		t.Fatalf("ディレクトリの作成に失敗しました: %v", err)
	}

	if err := sc.ScanUsers(ctx, model.SourceX, ""); err != nil {
		t.Fatalf("ユーザーパスに失敗しました: %v", err)
	}

	users, err := s.AllUsers(ctx)
	if err != nil {
		t.Fatalf("ユーザー一覧の取得に失敗しました: %v", err)
	}
	if len(users) != 0 {
		t.Errorf("ドット始まりのディレクトリが取り込まれています: %+v", users)
	}
}

func TestScanUsersIngestsSidecar(t *testing.T) {
	sc, s, cfg := newTestScanner(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(cfg.XRoot, "alice", "1234_post.json"), `{
		"author": {"nick": "ありす", "profile_image": "https://example.com/a.jpg",
			"profile_banner": "https://example.com/b.jpg", "description": "テスト"}
	}`)

	if err := sc.ScanUsers(ctx, model.SourceX, ""); err != nil {
		t.Fatalf("ユーザーパスに失敗しました: %v", err)
	}

	u, err := s.UserByUID(ctx, "alice@x", true)
	if err != nil || u == nil {
		t.Fatalf("ユーザーが取り込まれていません: %v", err)
	}
	if u.Nick != "ありす" {
		t.Errorf("表示名が一致しません: %s", u.Nick)
	}
}

func TestScanPostsIngestsSidecar(t *testing.T) {
	sc, s, cfg := newTestScanner(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(cfg.XRoot, "alice", "1234567890_text.json"), `{
		"tweet_id": 1234567890,
		"content": "本文",
		"author": {"name": "alice", "nick": "ありす"},
		"date": "2024-01-15 12:00:00",
		"favorite_count": 1, "retweet_count": 0, "reply_count": 0
	}`)

	if err := sc.ScanPosts(ctx, model.SourceX, ""); err != nil {
		t.Fatalf("投稿パスに失敗しました: %v", err)
	}

	p, err := s.PostByID(ctx, "1234567890", true)
	if err != nil || p == nil {
		t.Fatalf("投稿が取り込まれていません: %v", err)
	}
	if p.TextContent != "本文" {
		t.Errorf("本文が一致しません: %s", p.TextContent)
	}
}

func TestScanPostsIdempotent(t *testing.T) {
	sc, s, cfg := newTestScanner(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(cfg.XRoot, "alice", "111_text.json"), `{
		"tweet_id": 111, "content": "v1",
		"author": {"name": "alice", "nick": "ありす"},
		"date": "2024-01-15 12:00:00",
		"favorite_count": 0, "retweet_count": 0, "reply_count": 0
	}`)

	if err := sc.ScanPosts(ctx, model.SourceX, ""); err != nil {
		t.Fatalf("投稿パスに失敗しました: %v", err)
	}

	// サイドカーを書き換えても、全体走査では既存投稿を読み飛ばす
	writeFile(t, filepath.Join(cfg.XRoot, "alice", "111_text.json"), `{
		"tweet_id": 111, "content": "v2",
		"author": {"name": "alice", "nick": "ありす"},
		"date": "2024-01-15 12:00:00",
		"favorite_count": 0, "retweet_count": 0, "reply_count": 0
	}`)
	if err := sc.ScanPosts(ctx, model.SourceX, ""); err != nil {
		t.Fatalf("再走査に失敗しました: %v", err)
	}
	p, _ := s.PostByID(ctx, "111", true)
	if p.TextContent != "v1" {
		t.Errorf("全体走査が既存投稿を上書きしています: %s", p.TextContent)
	}

	// 単一アカウント走査は再取り込みを強制する
	if err := sc.ScanPosts(ctx, model.SourceX, "alice"); err != nil {
		t.Fatalf("単一走査に失敗しました: %v", err)
	}
	p, _ = s.PostByID(ctx, "111", true)
	if p.TextContent != "v2" {
		t.Errorf("単一走査が再取り込みしていません: %s", p.TextContent)
	}
}

func TestScanPostsSynthesizesReplyTarget(t *testing.T) {
	sc, s, cfg := newTestScanner(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(cfg.XRoot, "alice", "222_text.json"), `{
		"tweet_id": 222, "content": "返信です",
		"author": {"name": "alice", "nick": "ありす"},
		"date": "2024-01-15 12:00:00",
		"favorite_count": 0, "retweet_count": 0, "reply_count": 0,
		"reply_to": "bob", "reply_id": 221
	}`)

	if err := sc.ScanPosts(ctx, model.SourceX, ""); err != nil {
		t.Fatalf("投稿パスに失敗しました: %v", err)
	}

	placeholder, err := s.PostByID(ctx, "221", true)
	if err != nil || placeholder == nil {
		t.Fatalf("返信先のプレースホルダが合成されていません: %v", err)
	}
	if placeholder.UID != "bob@x" {
		t.Errorf("プレースホルダの所有者が一致しません: %s", placeholder.UID)
	}
}

func TestScanMediaLinksToPost(t *testing.T) {
	sc, s, cfg := newTestScanner(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(cfg.XRoot, "alice", "333_text.json"), `{
		"tweet_id": 333, "content": "画像つき",
		"author": {"name": "alice", "nick": "ありす"},
		"date": "2024-01-15 12:00:00",
		"favorite_count": 0, "retweet_count": 0, "reply_count": 0
	}`)
	writeFile(t, filepath.Join(cfg.XRoot, "alice", "333_photo1.jpg"), "fake")

	if err := sc.ScanPosts(ctx, model.SourceX, ""); err != nil {
		t.Fatalf("投稿パスに失敗しました: %v", err)
	}
	if err := sc.ScanMedia(ctx, model.SourceX, ""); err != nil {
		t.Fatalf("メディアパスに失敗しました: %v", err)
	}

	medias, err := s.MediaByPost(ctx, "333")
	if err != nil {
		t.Fatalf("メディア一覧の取得に失敗しました: %v", err)
	}
	if len(medias) != 1 {
		t.Fatalf("メディアが紐付いていません: %d件", len(medias))
	}
	if medias[0].FileName != "333_photo1.jpg" {
		t.Errorf("ファイル名が一致しません: %s", medias[0].FileName)
	}
	if medias[0].Time != "2024-01-15 12:00:00" {
		t.Errorf("メディアの時刻が投稿と一致しません: %s", medias[0].Time)
	}
}

func TestScanMediaOrphanSynthesizesPost(t *testing.T) {
	sc, s, cfg := newTestScanner(t)
	ctx := context.Background()

	// 対応する投稿サイドカーのないメディア。IDに10桁のUNIX秒を含む
	writeFile(t, filepath.Join(cfg.XRoot, "alice", "1700000000_photo.jpg"), "fake")

	if err := sc.ScanMedia(ctx, model.SourceX, ""); err != nil {
		t.Fatalf("メディアパスに失敗しました: %v", err)
	}

	p, err := s.PostByID(ctx, "1700000000", true)
	if err != nil || p == nil {
		t.Fatalf("孤立メディアのプレースホルダ投稿が合成されていません: %v", err)
	}
	if p.TextContent != "1700000000_photo.jpg" {
		t.Errorf("プレースホルダの本文がファイル名ではありません: %s", p.TextContent)
	}
	if !strings.HasPrefix(p.Time, "2023-11-14") {
		t.Errorf("埋め込みUNIX秒から時刻が推定されていません: %s", p.Time)
	}
}

func TestScanMediaRedditBaseIDURL(t *testing.T) {
	sc, s, cfg := newTestScanner(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(cfg.RedditRoot, "golang", "abc123_1.jpg"), "fake")

	if err := sc.ScanMedia(ctx, model.SourceReddit, ""); err != nil {
		t.Fatalf("メディアパスに失敗しました: %v", err)
	}

	p, err := s.PostByID(ctx, "abc123", true)
	if err != nil || p == nil {
		t.Fatalf("プレースホルダ投稿が合成されていません: %v", err)
	}
	if p.URL != "https://reddit.com/r/golang/comments/abc123" {
		t.Errorf("ベースIDからのURLが一致しません: %s", p.URL)
	}
}

func TestScanMediaExternalHostID(t *testing.T) {
	sc, s, cfg := newTestScanner(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(cfg.RedditRoot, "golang", "redgifs_clip.mp4"), "fake")

	if err := sc.ScanMedia(ctx, model.SourceReddit, ""); err != nil {
		t.Fatalf("メディアパスに失敗しました: %v", err)
	}

	p, err := s.PostByID(ctx, "-1golang_redgifs", true)
	if err != nil || p == nil {
		t.Fatalf("外部ホストの合成IDで投稿が作られていません: %v", err)
	}

	m, err := s.MediaByID(ctx, "redgifs_clip", true)
	if err != nil || m == nil {
		t.Fatalf("メディアが取り込まれていません: %v", err)
	}
	if m.PostID != "-1golang_redgifs" {
		t.Errorf("メディアの紐付け先が一致しません: %s", m.PostID)
	}
}

func TestScanMediaFASidecarID(t *testing.T) {
	sc, s, cfg := newTestScanner(t)
	ctx := context.Background()

	writeFile(t, filepath.Join(cfg.FARoot, "somefox", "artwork.png"), "fake")
	writeFile(t, filepath.Join(cfg.FARoot, "somefox", "artwork.png.json"), `{"id": 555}`)

	if err := sc.ScanMedia(ctx, model.SourceFA, ""); err != nil {
		t.Fatalf("メディアパスに失敗しました: %v", err)
	}

	m, err := s.MediaByID(ctx, "artwork.png", true)
	if err != nil || m == nil {
		t.Fatalf("FAメディアが取り込まれていません: %v", err)
	}
	if m.PostID != "555" {
		t.Errorf("サイドカーの投稿IDに紐付いていません: %s", m.PostID)
	}
}
