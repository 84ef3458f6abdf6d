package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kanzoderg/MyTimeline/internal/middleware"
	"github.com/kanzoderg/MyTimeline/internal/model"
)

// favoriteResponse はお気に入り切り替えのレスポンス。
type favoriteResponse struct {
	PostID    string `json:"post_id"`
	Favorited bool   `json:"favorited"`
}

// ToggleFavorite はPOST /api/posts/{id}/favを処理する。
// 既にお気に入りなら解除、未登録なら登録する。
func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "id")
	ctx := r.Context()

	fav, err := h.store.IsFavorite(ctx, postID)
	if err != nil {
		h.logger.Error("お気に入り状態の取得に失敗しました", "post_id", postID, "error", err.Error())
		middleware.WriteInternalServerError(w)
		return
	}

	if fav {
		if err := h.store.RemoveFavorite(ctx, postID); err != nil {
			h.logger.Error("お気に入りの解除に失敗しました", "post_id", postID, "error", err.Error())
			middleware.WriteInternalServerError(w)
			return
		}
		writeJSON(w, http.StatusOK, favoriteResponse{PostID: postID, Favorited: false})
		return
	}

	if err := h.store.AddFavorite(ctx, postID); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			middleware.WriteErrorResponse(w, http.StatusNotFound, apiErr)
			return
		}
		h.logger.Error("お気に入りの登録に失敗しました", "post_id", postID, "error", err.Error())
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, favoriteResponse{PostID: postID, Favorited: true})
}

// ListFavorites はGET /api/favoritesを処理する。お気に入り投稿を新しい順に返す。
func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	favs, err := h.store.ListFavorites(ctx)
	if err != nil {
		h.logger.Error("お気に入り一覧の取得に失敗しました", "error", err.Error())
		middleware.WriteInternalServerError(w)
		return
	}

	ids := make([]string, 0, len(favs))
	for _, f := range favs {
		ids = append(ids, f.PostID)
	}
	posts, err := h.hydratePosts(ctx, ids)
	if err != nil {
		h.logger.Error("お気に入り一覧の構築に失敗しました", "error", err.Error())
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]postResponse{"posts": posts})
}
