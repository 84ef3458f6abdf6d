package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kanzoderg/MyTimeline/internal/metrics"
	"github.com/kanzoderg/MyTimeline/internal/middleware"
	"github.com/kanzoderg/MyTimeline/internal/normalize"
	"github.com/kanzoderg/MyTimeline/internal/store"
	"github.com/kanzoderg/MyTimeline/internal/worker/cachebuild"
	"github.com/kanzoderg/MyTimeline/internal/worker/download"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Store      *store.Store
	Normalizer *normalize.Normalizer
	Queue      *download.Queue
	Builder    *cachebuild.Builder

	URLBase           string
	ItemsPerPage      int
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Gatherer          prometheus.Gatherer

	Logger *slog.Logger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → RateLimit
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	h := NewHandler(deps.Store, deps.Normalizer, deps.URLBase, deps.ItemsPerPage, deps.Logger)
	jobHandler := NewJobHandler(deps.Queue, deps.Logger)
	timelineHandler := NewTimelineHandler(h, deps.Builder)

	// 死活監視とメトリクスはレート制限の外に置く
	r.Get("/health", h.Health)
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.Middleware())
		}

		r.Route("/api", func(r chi.Router) {
			// ダウンロードジョブ
			r.Route("/jobs", func(r chi.Router) {
				r.Post("/", jobHandler.SubmitJob)
				r.Get("/", jobHandler.ListJobs)
			})

			// タイムライン閲覧
			r.Get("/timeline", timelineHandler.Timeline)
			r.Get("/videos", timelineHandler.VideoPool)

			// お気に入り
			r.Post("/posts/{id}/fav", h.ToggleFavorite)
			r.Get("/favorites", h.ListFavorites)

			// 検索とユーザー一覧
			r.Get("/search", h.Search)
			r.Get("/users", h.ListUsers)
		})
	})

	return r
}
