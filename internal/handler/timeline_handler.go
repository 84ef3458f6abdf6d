package handler

import (
	"net/http"
	"strconv"

	"github.com/kanzoderg/MyTimeline/internal/middleware"
	"github.com/kanzoderg/MyTimeline/internal/model"
	"github.com/kanzoderg/MyTimeline/internal/worker/cachebuild"
)

// timelineResponse はタイムライン1ページのレスポンス。
type timelineResponse struct {
	Posts   []postResponse `json:"posts"`
	Page    int            `json:"page"`
	HasMore bool           `json:"has_more"`
}

// busyResponse はキャッシュ再構築中のレスポンス。
type busyResponse struct {
	Busy bool   `json:"busy"`
	Msg  string `json:"msg"`
}

// TimelineHandler はタイムライン閲覧のHTTPハンドラー。
type TimelineHandler struct {
	*Handler
	builder *cachebuild.Builder
}

// NewTimelineHandler はTimelineHandlerを生成する。
func NewTimelineHandler(h *Handler, builder *cachebuild.Builder) *TimelineHandler {
	return &TimelineHandler{Handler: h, builder: builder}
}

// Timeline はGET /api/timelineを処理する。
// sortはnew・top・randomのいずれか。キャッシュ再構築中は503を返す。
func (h *TimelineHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	if h.builder.Busy() {
		writeJSON(w, http.StatusServiceUnavailable, busyResponse{
			Busy: true,
			Msg:  "キャッシュを再構築しています。しばらくお待ちください。",
		})
		return
	}

	sortKey := r.URL.Query().Get("sort")
	if sortKey == "" {
		sortKey = "new"
	}

	var view []string
	switch sortKey {
	case "new":
		view = h.builder.Newest()
	case "top":
		view = h.builder.Top()
	case "random":
		view = h.builder.Random()
	default:
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidSortError(sortKey))
		return
	}

	page := 0
	if raw := r.URL.Query().Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			page = n
		}
	}

	ids := h.builder.Page(view, page, h.itemsPerPage)
	posts, err := h.hydratePosts(r.Context(), ids)
	if err != nil {
		h.logger.Error("タイムラインの構築に失敗しました", "error", err.Error())
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, timelineResponse{
		Posts:   posts,
		Page:    page,
		HasMore: (page+1)*h.itemsPerPage < len(view),
	})
}

// VideoPool はGET /api/videosを処理する。シャッフル済み動画メディアIDを返す。
func (h *TimelineHandler) VideoPool(w http.ResponseWriter, r *http.Request) {
	if h.builder.Busy() {
		writeJSON(w, http.StatusServiceUnavailable, busyResponse{
			Busy: true,
			Msg:  "キャッシュを再構築しています。しばらくお待ちください。",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"media_ids": h.builder.VideoPool()})
}
