package normalize

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kanzoderg/MyTimeline/internal/database"
	"github.com/kanzoderg/MyTimeline/internal/model"
	"github.com/kanzoderg/MyTimeline/internal/store"
)

func newTestNormalizer(t *testing.T) (*Normalizer, *store.Store) {
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

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s := store.New(db, favDB, logger)
	return New(s, nil, false, logger), s
}

func TestPopulateXPost(t *testing.T) {
	n, s := newTestNormalizer(t)
	ctx := context.Background()

	raw := []byte(`{
		"tweet_id": 1234567890,
		"content": "テスト投稿です",
		"author": {"name": "Alice", "nick": "ありす"},
		"date": "2024-01-15 12:00:00",
		"favorite_count": 10,
		"retweet_count": 2,
		"reply_count": 1,
		"reply_to": "Bob",
		"reply_id": 987654321
	}`)

	p := model.NewPost("", "", model.SourceX)
	if err := n.PopulatePost(ctx, p, raw); err != nil {
		t.Fatalf("x投稿の正規化に失敗しました: %v", err)
	}

	if p.PostID != "1234567890" {
		t.Errorf("投稿IDが一致しません: %s", p.PostID)
	}
	if p.UID != "alice@x" {
		t.Errorf("UIDが一致しません: %s", p.UID)
	}
	if p.URL != "https://x.com/alice/status/1234567890" {
		t.Errorf("URLが一致しません: %s", p.URL)
	}
	if !p.IsReply {
		t.Error("返信フラグが立っていません")
	}
	if p.ReplyTo != "987654321@bob" {
		t.Errorf("返信参照が一致しません: %s", p.ReplyTo)
	}

	got, err := s.PostByID(ctx, "1234567890", true)
	if err != nil || got == nil {
		t.Fatalf("正規化後の投稿が保存されていません: %v", err)
	}
}

func TestPopulateBskyPostWithFacets(t *testing.T) {
	n, _ := newTestNormalizer(t)

	raw := []byte(`{
		"post_id": "3kabc",
		"text": "リンク example.com/long/pa...",
		"facets": [{
			"index": {"byteStart": 10, "byteEnd": 32},
			"features": [{"$type": "app.bsky.richtext.facet#link", "uri": "https://example.com/long/path/here"}]
		}],
		"author": {"handle": "Alice.bsky.social", "displayName": "ありす"},
		"date": "2024-01-15T12:00:00",
		"likeCount": 5,
		"repostCount": 1,
		"replyCount": 0,
		"embed": {"record": {"uri": "at://did:plc:xyz/app.bsky.feed.post/3kdef"}},
		"reply": {"parent": {"uri": "at://did:plc:abc/app.bsky.feed.post/3kparent"}}
	}`)

	p := model.NewPost("", "", model.SourceBsky)
	if err := n.PopulatePost(context.Background(), p, raw); err != nil {
		t.Fatalf("bsky投稿の正規化に失敗しました: %v", err)
	}

	if !strings.Contains(p.TextContent, "example.com/long/path/here") {
		t.Errorf("省略リンクが復元されていません: %s", p.TextContent)
	}
	if p.UID != "alice.bsky.social@bsky" {
		t.Errorf("UIDが一致しません: %s", p.UID)
	}
	if p.Embed != "at://did:plc:xyz/app.bsky.feed.post/3kdef" {
		t.Errorf("引用参照が一致しません: %s", p.Embed)
	}
	if p.ReplyTo != "3kparent@did:plc:abc" {
		t.Errorf("返信参照が一致しません: %s", p.ReplyTo)
	}
}

func TestPopulateRedditPost(t *testing.T) {
	n, _ := newTestNormalizer(t)

	raw := []byte(`{
		"id": "abc123",
		"title": "タイトル",
		"selftext": "本文",
		"subreddit": "Golang",
		"created_utc": 1700000000,
		"score": 42,
		"num_comments": 7,
		"author": "someone"
	}`)

	p := model.NewPost("", "", model.SourceReddit)
	if err := n.PopulatePost(context.Background(), p, raw); err != nil {
		t.Fatalf("reddit投稿の正規化に失敗しました: %v", err)
	}

	if p.UID != "golang@reddit" {
		t.Errorf("UIDが一致しません: %s", p.UID)
	}
	if !strings.Contains(p.TextContent, "<span class='rdt_title'>タイトル</span>") {
		t.Errorf("タイトルが本文に埋め込まれていません: %s", p.TextContent)
	}
	if p.RealUser != "someone" {
		t.Errorf("実投稿者が一致しません: %s", p.RealUser)
	}
	if p.URL != "https://reddit.com/r/golang/comments/abc123" {
		t.Errorf("URLが一致しません: %s", p.URL)
	}
}

func TestPopulateRedditPostDeletedAuthor(t *testing.T) {
	n, _ := newTestNormalizer(t)

	raw := []byte(`{"id": "abc124", "title": "t", "selftext": "", "subreddit": "golang",
		"created_utc": 1700000000, "score": 0, "num_comments": 0}`)

	p := model.NewPost("", "", model.SourceReddit)
	if err := n.PopulatePost(context.Background(), p, raw); err != nil {
		t.Fatalf("reddit投稿の正規化に失敗しました: %v", err)
	}
	if p.RealUser != "[deleted]" {
		t.Errorf("削除済み投稿者の既定値が一致しません: %s", p.RealUser)
	}
}

func TestPopulateFAJournalURL(t *testing.T) {
	n, _ := newTestNormalizer(t)

	raw := []byte(`{
		"id": 555, "title": "日記", "description": "本文",
		"user": "SomeFox", "artist": "somefox",
		"date": "2024-01-15", "category": "journals",
		"favorites": 3, "comments": 1
	}`)

	p := model.NewPost("", "", model.SourceFA)
	if err := n.PopulatePost(context.Background(), p, raw); err != nil {
		t.Fatalf("FA投稿の正規化に失敗しました: %v", err)
	}

	if p.URL != "https://www.furaffinity.net/journal/555/" {
		t.Errorf("ジャーナルURLが一致しません: %s", p.URL)
	}
}

func TestPopulateFAViewURL(t *testing.T) {
	n, _ := newTestNormalizer(t)

	raw := []byte(`{
		"id": 556, "title": "絵", "description": "本文",
		"user": "somefox", "date": "2024-01-15",
		"subcategory": "general", "favorites": 3, "comments": 1
	}`)

	p := model.NewPost("", "", model.SourceFA)
	if err := n.PopulatePost(context.Background(), p, raw); err != nil {
		t.Fatalf("FA投稿の正規化に失敗しました: %v", err)
	}

	if p.URL != "https://www.furaffinity.net/view/556/" {
		t.Errorf("ギャラリーURLが一致しません: %s", p.URL)
	}
}

func TestPopulateXUser(t *testing.T) {
	n, s := newTestNormalizer(t)
	ctx := context.Background()

	raw := []byte(`{"author": {
		"nick": "ありす",
		"profile_image": "https://example.com/avatar.jpg",
		"profile_banner": "https://example.com/banner.jpg",
		"description": "自己紹介"
	}}`)

	u := model.NewUser("Alice", model.SourceX)
	if err := n.PopulateUser(ctx, u, raw, 1700000000); err != nil {
		t.Fatalf("xユーザーの正規化に失敗しました: %v", err)
	}

	got, err := s.UserByUID(ctx, "alice@x", true)
	if err != nil || got == nil {
		t.Fatalf("正規化後のユーザーが保存されていません: %v", err)
	}
	if got.Nick != "ありす" {
		t.Errorf("表示名が一致しません: %s", got.Nick)
	}
	if got.UpdateTime != 1700000000 {
		t.Errorf("更新時刻が一致しません: %d", got.UpdateTime)
	}
}

func TestPopulateBskyUserUDID(t *testing.T) {
	n, s := newTestNormalizer(t)
	ctx := context.Background()

	raw := []byte(`{
		"author": {"displayName": "ありす", "did": "did:plc:xyz", "avatar": "https://example.com/a.jpg"},
		"user": {"banner": "https://example.com/b.jpg", "description": "自己紹介"}
	}`)

	u := model.NewUser("alice.bsky.social", model.SourceBsky)
	if err := n.PopulateUser(ctx, u, raw, 1700000000); err != nil {
		t.Fatalf("bskyユーザーの正規化に失敗しました: %v", err)
	}

	got, err := s.UserByUDID(ctx, "did:plc:xyz", model.SourceBsky, true)
	if err != nil {
		t.Fatalf("DIDでの取得に失敗しました: %v", err)
	}
	if got == nil || got.UserName != "alice.bsky.social" {
		t.Errorf("DIDでユーザーを引けません: %+v", got)
	}
}

func TestPopulateUserStrictMode(t *testing.T) {
	n, s := newTestNormalizer(t)
	strict := New(s, nil, true, n.logger)

	// bannerとdescriptionを欠いたxサイドカー
	raw := []byte(`{"author": {"nick": "ありす", "profile_image": "https://example.com/a.jpg"}}`)

	u := model.NewUser("alice", model.SourceX)
	if err := strict.PopulateUser(context.Background(), u, raw, 1700000000); err == nil {
		t.Error("strictモードで欠落フィールドがエラーになりません")
	}
}

func TestResolveEmbed(t *testing.T) {
	n, s := newTestNormalizer(t)
	ctx := context.Background()

	u := model.NewUser("alice.bsky.social", model.SourceBsky)
	u.UDID = "did:plc:xyz"
	u.Nick = "ありす"
	if err := s.UpsertUser(ctx, u); err != nil {
		t.Fatalf("ユーザーの保存に失敗しました: %v", err)
	}
	p := model.NewPost("3kdef", "alice.bsky.social", model.SourceBsky)
	p.TextContent = "引用先の本文"
	p.Time = "2024-01-15T12:00:00"
	if err := s.UpsertPost(ctx, p); err != nil {
		t.Fatalf("投稿の保存に失敗しました: %v", err)
	}

	embed, err := n.ResolveEmbed(ctx, model.SourceBsky, "at://did:plc:xyz/app.bsky.feed.post/3kdef")
	if err != nil {
		t.Fatalf("引用の解決に失敗しました: %v", err)
	}
	if embed == nil {
		t.Fatal("引用が解決されませんでした")
	}
	if embed.External {
		t.Error("アーカイブ内の引用がExternal扱いです")
	}
	if embed.UserName != "alice.bsky.social" {
		t.Errorf("引用先ユーザーが一致しません: %s", embed.UserName)
	}
	if !strings.Contains(embed.TextContent, "引用先の本文") {
		t.Errorf("引用本文が一致しません: %s", embed.TextContent)
	}
}

func TestResolveEmbedExternal(t *testing.T) {
	n, _ := newTestNormalizer(t)

	embed, err := n.ResolveEmbed(context.Background(), model.SourceX, "https://x.com/unknown/status/111")
	if err != nil {
		t.Fatalf("引用の解決に失敗しました: %v", err)
	}
	if embed == nil {
		t.Fatal("引用が解決されませんでした")
	}
	if !embed.External {
		t.Error("アーカイブ外の引用がExternal扱いになっていません")
	}
	if embed.URL != "https://x.com/unknown/status/111" {
		t.Errorf("外部引用のURLが一致しません: %s", embed.URL)
	}
}
