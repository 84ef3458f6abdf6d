// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kanzoderg/MyTimeline/internal/model"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DBPath    string
	FavDBPath string

	// Source roots（外部ダウンローダが書き込むソース別ディレクトリ）
	XRoot      string
	BskyRoot   string
	RedditRoot string
	FARoot     string

	// Downloader
	GalleryDLPath            string
	GalleryDLConfig          string
	GalleryDLMediaOnlyConfig string
	FadlPath                 string
	CookiesX                 string

	// Workers
	CacheRebuildInterval time.Duration
	UpdateDaemon         bool
	UpdateDaemonInterval time.Duration

	// Ingestion
	StrictIngest bool
	SkipScan     bool

	// Serving
	ServerPort        string
	URLBase           string // FA本文内リンクの書き換え先。リバースプロキシ配下ではそのプレフィックス
	ItemsPerPage      int
	CORSAllowedOrigin string
	RateLimitGeneral  int // req/min
}

// Load は環境変数からConfigを読み込む。
// すべての項目にデフォルト値があるため、未設定でもエラーにはならない。
func Load() (*Config, error) {
	cfg := &Config{}

	dataDir := getEnvString("DATA_DIR", "./data")

	cfg.DBPath = getEnvString("DB_PATH", filepath.Join(dataDir, "data.db"))
	cfg.FavDBPath = getEnvString("FAV_DB_PATH", filepath.Join(dataDir, "fav.db"))

	cfg.XRoot = getEnvString("X_ROOT", filepath.Join(dataDir, "twitter"))
	cfg.BskyRoot = getEnvString("BSKY_ROOT", filepath.Join(dataDir, "bluesky"))
	cfg.RedditRoot = getEnvString("REDDIT_ROOT", filepath.Join(dataDir, "reddit"))
	cfg.FARoot = getEnvString("FA_ROOT", filepath.Join(dataDir, "furaffinity"))

	cfg.GalleryDLPath = getEnvString("GALLERY_DL_PATH", "gallery-dl")
	cfg.GalleryDLConfig = getEnvString("GALLERY_DL_CONFIG", "gallery-dl-config.json")
	cfg.GalleryDLMediaOnlyConfig = getEnvString("GALLERY_DL_MEDIA_ONLY_CONFIG", "gallery-dl-config-media-only.json")
	cfg.FadlPath = getEnvString("FADL_PATH", "fadl")
	cfg.CookiesX = getEnvString("COOKIES_X", "")

	cfg.CacheRebuildInterval = getEnvDuration("CACHE_REBUILD_INTERVAL", 30*time.Minute)
	cfg.UpdateDaemon = getEnvBool("UPDATE_DAEMON", false)
	cfg.UpdateDaemonInterval = getEnvDuration("UPDATE_DAEMON_INTERVAL", 10*time.Second)

	cfg.StrictIngest = getEnvBool("STRICT_INGEST", false)
	cfg.SkipScan = getEnvBool("SKIP_SCAN", false)

	cfg.ServerPort = getEnvString("SERVER_PORT", "8088")
	cfg.URLBase = getEnvString("URL_BASE", "")
	cfg.ItemsPerPage = getEnvInt("ITEMS_PER_PAGE", 30)
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 300)

	return cfg, nil
}

// SourceRoot はソース種別ごとのダウンロード先ディレクトリを返す。
func (c *Config) SourceRoot(st model.SourceType) string {
	switch st {
	case model.SourceX:
		return c.XRoot
	case model.SourceBsky:
		return c.BskyRoot
	case model.SourceReddit:
		return c.RedditRoot
	case model.SourceFA:
		return c.FARoot
	default:
		return ""
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
