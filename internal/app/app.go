// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kanzoderg/MyTimeline/internal/config"
	"github.com/kanzoderg/MyTimeline/internal/database"
	"github.com/kanzoderg/MyTimeline/internal/fetchmeta"
	"github.com/kanzoderg/MyTimeline/internal/handler"
	"github.com/kanzoderg/MyTimeline/internal/logger"
	"github.com/kanzoderg/MyTimeline/internal/metrics"
	"github.com/kanzoderg/MyTimeline/internal/middleware"
	"github.com/kanzoderg/MyTimeline/internal/normalize"
	"github.com/kanzoderg/MyTimeline/internal/runner"
	"github.com/kanzoderg/MyTimeline/internal/scanner"
	"github.com/kanzoderg/MyTimeline/internal/store"
	"github.com/kanzoderg/MyTimeline/internal/worker/cachebuild"
	"github.com/kanzoderg/MyTimeline/internal/worker/download"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8088"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandScan:
		return runScan(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openStore はマイグレーションを適用し、両データベースを開いてStoreを組み立てる。
// 返されるクローズ関数は両方のハンドルを閉じる。
func openStore(cfg *config.Config) (*store.Store, func(), error) {
	if err := database.RunMigrations(cfg.DBPath, cfg.FavDBPath); err != nil {
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive database: %w", err)
	}
	favDB, err := database.Open(cfg.FavDBPath)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to open favorites database: %w", err)
	}

	closeFn := func() {
		favDB.Close()
		db.Close()
	}
	return store.New(db, favDB, slog.Default()), closeFn, nil
}

// runServe はAPIサーバーモードで起動する。
// データベースを開き、取り込み・ダウンロード・キャッシュ再構築の
// 各ワーカーを起動してHTTPサーバーを立ち上げる。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	s, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	slog.Info("database connection established")

	// メトリクスの初期化
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 取り込み系サービスのワイヤリング
	redditClient := fetchmeta.NewRedditClient(slog.Default())
	norm := normalize.New(s, redditClient, cfg.StrictIngest, slog.Default())
	sc := scanner.New(cfg, s, norm, collector, slog.Default())

	// ワーカーのワイヤリング
	queue := download.NewQueue()
	run := runner.New(slog.Default())
	builder := cachebuild.NewBuilder(s, cfg.CacheRebuildInterval, collector, slog.Default())
	worker := download.NewWorker(cfg, queue, s, sc, run, builder, collector, slog.Default())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 起動時取り込み。ユーザーは常に、投稿とメディアはSKIP_SCANが
	// 無効な場合のみ走査する。
	if err := sc.ScanAll(ctx, !cfg.SkipScan); err != nil {
		return fmt.Errorf("startup scan failed: %w", err)
	}

	go builder.Start(ctx)
	go worker.Run(ctx)
	if cfg.UpdateDaemon {
		daemon := download.NewUpdateDaemon(s, queue, cfg.UpdateDaemonInterval, slog.Default())
		go daemon.Run(ctx)
	}

	// ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Store:             s,
		Normalizer:        norm,
		Queue:             queue,
		Builder:           builder,
		URLBase:           cfg.URLBase,
		ItemsPerPage:      cfg.ItemsPerPage,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Gatherer:          reg,
		Logger:            slog.Default(),
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down API server...")

	// 実行中の外部ダウンローダを先に止める
	worker.Interrupt()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runScan は全ソースの取り込みを1回実行して終了する。
// データベースの再構築やリストア後の手動取り込み用。
func runScan(cfg *config.Config) error {
	s, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	redditClient := fetchmeta.NewRedditClient(slog.Default())
	norm := normalize.New(s, redditClient, cfg.StrictIngest, slog.Default())
	sc := scanner.New(cfg, s, norm, nil, slog.Default())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := sc.ScanAll(ctx, true); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	slog.Info("scan completed")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("db_path", cfg.DBPath),
		slog.String("fav_db_path", cfg.FavDBPath),
	)

	if err := database.RunMigrations(cfg.DBPath, cfg.FavDBPath); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
