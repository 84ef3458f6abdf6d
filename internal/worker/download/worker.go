package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kanzoderg/MyTimeline/internal/config"
	"github.com/kanzoderg/MyTimeline/internal/metrics"
	"github.com/kanzoderg/MyTimeline/internal/model"
	"github.com/kanzoderg/MyTimeline/internal/runner"
	"github.com/kanzoderg/MyTimeline/internal/scanner"
	"github.com/kanzoderg/MyTimeline/internal/store"
)

// pollInterval はキューが空のときの待ち時間。
const pollInterval = 1 * time.Second

// incrementalStopKeywords は差分ダウンロード時の停止キーワード。
// ダウンローダは取得済みファイルに "#" 付きの行を出力する。
var incrementalStopKeywords = []string{"#"}

// DirtyNotifier は新着コンテンツの通知先。キャッシュビルダーが実装する。
type DirtyNotifier interface {
	MarkDirty()
}

// Worker はキューからジョブを1つずつ取り出して実行するダウンロードワーカー。
type Worker struct {
	cfg      *config.Config
	queue    *Queue
	store    *store.Store
	scanner  *scanner.Scanner
	runner   *runner.Runner
	notifier DirtyNotifier
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewWorker はWorkerを生成する。notifierとcollectorはnilでもよい。
func NewWorker(cfg *config.Config, queue *Queue, s *store.Store, sc *scanner.Scanner, r *runner.Runner, notifier DirtyNotifier, collector metrics.MetricsCollector, logger *slog.Logger) *Worker {
	return &Worker{
		cfg:      cfg,
		queue:    queue,
		store:    s,
		scanner:  sc,
		runner:   r,
		notifier: notifier,
		metrics:  collector,
		logger:   logger,
	}
}

// Run はワーカーループを実行する。コンテキストのキャンセルで停止する。
// 個々のジョブの失敗はログに残してループを続ける。
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("ダウンロードワーカーを開始します")
	for {
		job, ok := w.queue.Pop()
		if !ok {
			select {
			case <-ctx.Done():
				w.logger.Info("ダウンロードワーカーを停止します")
				return
			case <-time.After(pollInterval):
			}
			continue
		}

		if err := w.process(ctx, job); err != nil {
			w.logger.Error("ジョブの処理に失敗しました",
				slog.String("job_id", job.ID),
				slog.String("url", job.URL),
				slog.String("error", err.Error()))
		}
		w.queue.ClearCurrent()

		if ctx.Err() != nil {
			w.logger.Info("ダウンロードワーカーを停止します")
			return
		}
	}
}

// Interrupt は実行中のダウンロードコマンドを中断する。
func (w *Worker) Interrupt() {
	w.runner.Interrupt()
}

func (w *Worker) process(ctx context.Context, job model.DownloadJob) error {
	st, ok := model.DetectSourceFromURL(job.URL)
	if !ok {
		return fmt.Errorf("対応していないURLです: %s", job.URL)
	}

	name, ok := w.resolveAccountName(st, job.URL)
	if !ok {
		return fmt.Errorf("URLからアカウント名を特定できません: %s", job.URL)
	}

	w.logger.Info("ダウンロードを開始します",
		slog.String("job_id", job.ID),
		slog.String("url", job.URL),
		slog.String("source", string(st)),
		slog.String("user", name))

	cmdName, args := w.buildCommand(st, name, job)

	flagAccount := func() {
		if err := w.store.FlagUser(ctx, name, st); err != nil {
			w.logger.Error("ユーザーのフラグ設定に失敗しました", slog.String("user", name), slog.String("error", err.Error()))
		}
	}

	var stopKeywords []string
	if !job.Full {
		stopKeywords = incrementalStopKeywords
	}

	err := w.runner.Run(ctx, cmdName, args, runner.Options{
		StopKeywords: stopKeywords,
		Triggers: []runner.Trigger{
			{Keyword: "NotFoundError", Callback: func() {
				if w.metrics != nil {
					w.metrics.RecordTriggerActivation("NotFoundError")
				}
				flagAccount()
			}},
			{Keyword: "AuthorizationError", Callback: func() {
				if w.metrics != nil {
					w.metrics.RecordTriggerActivation("AuthorizationError")
				}
				flagAccount()
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("ダウンロードコマンドに失敗しました: %w", err)
	}

	if err := w.scanner.ScanAccount(ctx, st, name); err != nil {
		return fmt.Errorf("取り込みに失敗しました (user=%s): %w", name, err)
	}
	if err := w.store.Commit(ctx); err != nil {
		return err
	}
	w.store.ClearCache()

	if w.notifier != nil {
		w.notifier.MarkDirty()
	}
	if w.metrics != nil {
		w.metrics.RecordJobProcessed()
	}
	w.logger.Info("ダウンロードが完了しました", slog.String("user", name))
	return nil
}

// resolveAccountName はURLからアカウント名を特定する。
// FAのジャーナル一覧などアカウント名を含まないURLは、最後に更新された
// 既存アカウントのダウンロード継続とみなす。
func (w *Worker) resolveAccountName(st model.SourceType, url string) (string, bool) {
	if name, ok := model.ExtractAccountName(st, url); ok {
		return name, true
	}
	if st != model.SourceFA {
		return "", false
	}

	entries, err := os.ReadDir(w.cfg.FARoot)
	if err != nil || len(entries) == 0 {
		return "", false
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := os.Stat(filepath.Join(w.cfg.FARoot, e.Name()))
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = e.Name()
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return "", false
	}
	w.logger.Info("アカウント名を最終更新ディレクトリから推定します", slog.String("user", newest))
	return newest, true
}

// buildCommand はソース種別ごとの外部ダウンローダコマンドを組み立てる。
func (w *Worker) buildCommand(st model.SourceType, name string, job model.DownloadJob) (string, []string) {
	if st == model.SourceFA {
		// FAは専用スクレイパに委譲する
		return w.cfg.FadlPath, []string{"-o", w.cfg.FARoot + "/", job.URL}
	}

	configFile := w.cfg.GalleryDLConfig
	if job.MediaOnly {
		configFile = w.cfg.GalleryDLMediaOnlyConfig
	}

	var args []string
	switch st {
	case model.SourceX:
		if w.cfg.CookiesX != "" {
			args = []string{"-c", configFile, "-C", w.cfg.CookiesX, job.URL, "-D", w.cfg.XRoot + "/" + name + "/"}
		} else {
			args = []string{"-c", w.cfg.GalleryDLConfig, job.URL, "-D", w.cfg.XRoot + "/" + name + "/"}
		}
	case model.SourceBsky:
		args = []string{"-c", configFile, job.URL, "-D", w.cfg.BskyRoot + "/" + name + "/"}
	case model.SourceReddit:
		args = []string{"-c", w.cfg.GalleryDLConfig, job.URL, "-D", w.cfg.RedditRoot + "/" + name + "/"}
	}
	return w.cfg.GalleryDLPath, args
}
