// Package fetchmeta は外部サイトからのユーザーメタデータ補完を提供する。
//
// 取り込みはローカルファイルだけで完結するのが原則だが、redditの
// サブレディットはサイドカーにプロフィール情報を含まないため、
// about.jsonを取得して補う。取得失敗は取り込みを止めない。
package fetchmeta

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kanzoderg/MyTimeline/internal/security"
)

// ブラウザ由来のUAを名乗らないとredditが429を返しやすい。
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/58.0.3029.110 Safari/537.3"

const (
	defaultRedditEndpoint = "https://www.reddit.com"
	fetchAttempts         = 3
	fetchRetryWait        = 2 * time.Second
)

// SubredditAbout はabout.jsonから取り出すサブレディットのプロフィール情報。
type SubredditAbout struct {
	PublicDescription     string `json:"public_description"`
	BannerBackgroundImage string `json:"banner_background_image"`
	BannerImg             string `json:"banner_img"`
	CommunityIcon         string `json:"community_icon"`
	IconImg               string `json:"icon_img"`
}

// Banner はバナー画像URLを返す。クエリ文字列付きのCDN URLは素のURLに落とす。
func (a *SubredditAbout) Banner() string {
	if a.BannerBackgroundImage != "" {
		return stripQuery(a.BannerBackgroundImage)
	}
	return stripQuery(a.BannerImg)
}

// Avatar はアイコン画像URLを返す。
func (a *SubredditAbout) Avatar() string {
	if a.CommunityIcon != "" {
		return stripQuery(a.CommunityIcon)
	}
	return stripQuery(a.IconImg)
}

func stripQuery(url string) string {
	if idx := strings.Index(url, "?"); idx >= 0 {
		return url[:idx]
	}
	return url
}

// RedditClient はサブレディットのabout.jsonを取得するクライアント。
type RedditClient struct {
	httpClient *http.Client
	endpoint   string
	validate   bool
	logger     *slog.Logger
}

// NewRedditClient はSSRF防止機能付きのRedditClientを生成する。
// リクエスト前の静的URL検証と、DNS解決後のIP検証の両方が有効になる。
func NewRedditClient(logger *slog.Logger) *RedditClient {
	return &RedditClient{
		httpClient: security.NewOutboundClient(15 * time.Second),
		endpoint:   defaultRedditEndpoint,
		validate:   true,
		logger:     logger,
	}
}

// NewRedditClientWithHTTP はHTTPクライアントと接続先を差し替えた
// RedditClientを生成する。ループバックに立てたサーバーへ接続するため、
// URL検証は行わない。テスト用。
func NewRedditClientWithHTTP(httpClient *http.Client, endpoint string, logger *slog.Logger) *RedditClient {
	return &RedditClient{
		httpClient: httpClient,
		endpoint:   endpoint,
		logger:     logger,
	}
}

// FetchAbout はサブレディットのプロフィール情報を取得する。
// 全試行が失敗した場合はゼロ値を返す。取得失敗は呼び出し側の処理を
// 止めるべきではないため、エラーは返さずログに記録する。
func (c *RedditClient) FetchAbout(ctx context.Context, subreddit string) *SubredditAbout {
	url := fmt.Sprintf("%s/r/%s/about.json", c.endpoint, subreddit)

	if c.validate {
		if err := security.ValidateOutboundURL(url); err != nil {
			c.logger.Warn("取得先URLの検証に失敗しました",
				slog.String("subreddit", subreddit),
				slog.String("error", err.Error()))
			return &SubredditAbout{}
		}
	}

	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return &SubredditAbout{}
			case <-time.After(fetchRetryWait):
			}
		}

		about, err := c.fetchOnce(ctx, url)
		if err == nil {
			return about
		}
		lastErr = err
	}

	c.logger.Warn("サブレディット情報の取得に失敗しました",
		slog.String("subreddit", subreddit),
		slog.String("error", lastErr.Error()))
	return &SubredditAbout{}
}

func (c *RedditClient) fetchOnce(ctx context.Context, url string) (*SubredditAbout, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエストの生成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("about.jsonの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("about.jsonの取得に失敗しました: status=%d", resp.StatusCode)
	}

	var body struct {
		Data SubredditAbout `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("about.jsonのパースに失敗しました: %w", err)
	}
	return &body.Data, nil
}
