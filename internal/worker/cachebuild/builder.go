// Package cachebuild は投稿の並び替え済みビューと動画プールを定期的に再構築する。
package cachebuild

import (
	"context"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/facette/natsort"

	"github.com/kanzoderg/MyTimeline/internal/metrics"
	"github.com/kanzoderg/MyTimeline/internal/store"
)

// Builder は3つのグローバルビュー (新着順・人気順・ランダム) と
// 動画メディアIDのプールを保持し、dirtyフラグが立ったときだけ再構築する。
// 再構築中はbusyフラグが立ち、配信側は重いクエリを避ける。
type Builder struct {
	store    *store.Store
	interval time.Duration
	metrics  metrics.MetricsCollector
	logger   *slog.Logger

	dirty atomic.Bool
	busy  atomic.Bool

	mu       sync.RWMutex
	newest   []string
	top      []string
	random   []string
	videoIDs []string
}

// NewBuilder はBuilderを生成する。初回は必ず再構築が走るようdirtyを立てる。
func NewBuilder(s *store.Store, interval time.Duration, collector metrics.MetricsCollector, logger *slog.Logger) *Builder {
	b := &Builder{
		store:    s,
		interval: interval,
		metrics:  collector,
		logger:   logger,
	}
	b.dirty.Store(true)
	return b
}

// MarkDirty は新着コンテンツの到着を記録する。次の周期で再構築が走る。
func (b *Builder) MarkDirty() {
	b.dirty.Store(true)
}

// Busy は再構築中かどうかを返す。
func (b *Builder) Busy() bool {
	return b.busy.Load()
}

// Start は再構築ループを実行する。コンテキストのキャンセルで停止する。
func (b *Builder) Start(ctx context.Context) {
	b.logger.Info("キャッシュビルダーを開始します", slog.Duration("interval", b.interval))

	// 起動直後に初回構築を行う
	if err := b.RunOnce(ctx); err != nil {
		b.logger.Error("キャッシュの初回構築に失敗しました", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("キャッシュビルダーを停止します")
			return
		case <-ticker.C:
			if !b.dirty.Load() {
				continue
			}
			if err := b.RunOnce(ctx); err != nil {
				b.logger.Error("キャッシュの再構築に失敗しました", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce はビューと動画プールを1回再構築する。
// どの経路で抜けてもbusyフラグは必ず解除される。
func (b *Builder) RunOnce(ctx context.Context) error {
	b.busy.Store(true)
	defer b.busy.Store(false)
	start := time.Now()

	entries, err := b.store.PostIndex(ctx)
	if err != nil {
		return err
	}
	videoIDs, err := b.store.VideoMediaIDs(ctx)
	if err != nil {
		return err
	}

	newest := make([]store.PostIndexEntry, len(entries))
	copy(newest, entries)
	sort.SliceStable(newest, func(i, j int) bool {
		return natsort.Compare(newest[j].Time, newest[i].Time)
	})

	top := make([]store.PostIndexEntry, len(entries))
	copy(top, entries)
	sort.SliceStable(top, func(i, j int) bool {
		return top[i].Likes > top[j].Likes
	})

	newestIDs := entryIDs(newest)
	topIDs := entryIDs(top)
	randomIDs := entryIDs(entries)
	rand.Shuffle(len(randomIDs), func(i, j int) {
		randomIDs[i], randomIDs[j] = randomIDs[j], randomIDs[i]
	})
	rand.Shuffle(len(videoIDs), func(i, j int) {
		videoIDs[i], videoIDs[j] = videoIDs[j], videoIDs[i]
	})

	b.mu.Lock()
	b.newest = newestIDs
	b.top = topIDs
	b.random = randomIDs
	b.videoIDs = videoIDs
	b.mu.Unlock()

	b.dirty.Store(false)
	b.store.ClearCache()

	elapsed := time.Since(start)
	if b.metrics != nil {
		b.metrics.RecordCacheRebuildDuration(elapsed)
	}
	b.logger.Info("キャッシュを再構築しました",
		slog.Int("posts", len(newestIDs)),
		slog.Int("videos", len(videoIDs)),
		slog.Duration("elapsed", elapsed))
	return nil
}

// Newest は新着順ビューのコピーを返す。
func (b *Builder) Newest() []string {
	return b.snapshot(&b.newest)
}

// Top は人気順ビューのコピーを返す。
func (b *Builder) Top() []string {
	return b.snapshot(&b.top)
}

// Random はランダム順ビューのコピーを返す。
func (b *Builder) Random() []string {
	return b.snapshot(&b.random)
}

// VideoPool はシャッフル済み動画メディアIDのコピーを返す。
func (b *Builder) VideoPool() []string {
	return b.snapshot(&b.videoIDs)
}

// Page は指定ビューの1ページ分の投稿IDを返す。pageは0始まり。
func (b *Builder) Page(view []string, page, perPage int) []string {
	if page < 0 || perPage <= 0 {
		return nil
	}
	start := page * perPage
	if start >= len(view) {
		return nil
	}
	end := start + perPage
	if end > len(view) {
		end = len(view)
	}
	return view[start:end]
}

func (b *Builder) snapshot(view *[]string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, len(*view))
	copy(out, *view)
	return out
}

func entryIDs(entries []store.PostIndexEntry) []string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.PostID
	}
	return ids
}
