// Package scanner はダウンローダが書き込んだディレクトリ木を走査し、
// ユーザー・投稿・メディアの3パスでデータベースへ取り込む。
//
// 各パスは再実行可能で冪等。既にデータベースにある対象は読み飛ばすが、
// 単一アカウントに絞った走査では再取り込みを強制する（ダウンロード直後の
// 反映に使う）。途中で異常なファイルに当たってもパス全体は止めない。
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/kanzoderg/MyTimeline/internal/config"
	"github.com/kanzoderg/MyTimeline/internal/metrics"
	"github.com/kanzoderg/MyTimeline/internal/model"
	"github.com/kanzoderg/MyTimeline/internal/normalize"
	"github.com/kanzoderg/MyTimeline/internal/store"
)

// Scanner はソース別ディレクトリの走査と取り込みを行う。
type Scanner struct {
	cfg     *config.Config
	store   *store.Store
	norm    *normalize.Normalizer
	metrics metrics.MetricsCollector
	logger  *slog.Logger
}

// New はScannerを生成する。collectorはnilでもよい。
func New(cfg *config.Config, s *store.Store, norm *normalize.Normalizer, collector metrics.MetricsCollector, logger *slog.Logger) *Scanner {
	return &Scanner{
		cfg:     cfg,
		store:   s,
		norm:    norm,
		metrics: collector,
		logger:  logger,
	}
}

// ScanAccount は単一アカウントを3パスで取り込む。
// ダウンロードジョブの完了直後に呼ばれ、既存行も再取り込みする。
func (s *Scanner) ScanAccount(ctx context.Context, st model.SourceType, userName string) error {
	if err := s.ScanUsers(ctx, st, userName); err != nil {
		return err
	}
	if err := s.ScanPosts(ctx, st, userName); err != nil {
		return err
	}
	if err := s.ScanMedia(ctx, st, userName); err != nil {
		return err
	}
	return nil
}

// ScanAll は全ソースを走査する。ユーザーパスは常に実行し、
// 投稿・メディアパスはincludeContentがtrueの場合のみ実行する。
func (s *Scanner) ScanAll(ctx context.Context, includeContent bool) error {
	for _, st := range model.AllSources {
		start := time.Now()
		if err := s.ScanUsers(ctx, st, ""); err != nil {
			return fmt.Errorf("ユーザーパスに失敗しました (source=%s): %w", st, err)
		}
		if includeContent {
			if err := s.ScanPosts(ctx, st, ""); err != nil {
				return fmt.Errorf("投稿パスに失敗しました (source=%s): %w", st, err)
			}
			if err := s.ScanMedia(ctx, st, ""); err != nil {
				return fmt.Errorf("メディアパスに失敗しました (source=%s): %w", st, err)
			}
		}
		if s.metrics != nil {
			s.metrics.RecordScanDuration(string(st), time.Since(start))
		}
	}
	return nil
}

// listTargets は走査対象のアカウント名一覧を返す。
// userNameが指定されていればそれだけを対象とし、forcedがtrueになる。
func (s *Scanner) listTargets(st model.SourceType, userName string) (names []string, forced bool, err error) {
	if userName != "" {
		return []string{userName}, true, nil
	}

	root := s.cfg.SourceRoot(st)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("ソースディレクトリがありません", slog.String("root", root))
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("ソースディレクトリを読めません (root=%s): %w", root, err)
	}

	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, false, nil
}

// validateAccountDir はアカウントディレクトリとして走査すべきかを判定する。
func (s *Scanner) validateAccountDir(root, name string) bool {
	if len(name) > 0 && name[0] == '.' {
		return false
	}
	info, err := os.Stat(root + "/" + name)
	if err != nil {
		s.logger.Warn("アカウントディレクトリがありません", slog.String("name", name))
		return false
	}
	if !info.IsDir() {
		s.logger.Warn("アカウントパスがディレクトリではありません", slog.String("name", name))
		return false
	}
	return true
}
