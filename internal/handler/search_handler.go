package handler

import (
	"net/http"

	"github.com/kanzoderg/MyTimeline/internal/middleware"
)

// searchMediaEntry はメディア検索結果の1件。
type searchMediaEntry struct {
	MediaID  string `json:"media_id"`
	FileName string `json:"file_name"`
	PostID   string `json:"post_id"`
	Time     string `json:"time"`
}

// Search はGET /api/searchを処理する。
// tab=postsで投稿の全文検索、tab=mediaで動画メディアの検索を行う。
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query().Get("q")
	tab := r.URL.Query().Get("tab")
	if tab == "" {
		tab = "posts"
	}

	if tab == "media" {
		entries, err := h.store.SearchMedia(ctx, query)
		if err != nil {
			h.logger.Error("メディア検索に失敗しました", "query", query, "error", err.Error())
			middleware.WriteInternalServerError(w)
			return
		}

		results := make([]searchMediaEntry, 0, len(entries))
		for _, e := range entries {
			// PostIDフィールドにはメディアIDが入っている
			m, err := h.store.MediaByID(ctx, e.PostID, false)
			if err != nil {
				h.logger.Error("メディアの取得に失敗しました", "media_id", e.PostID, "error", err.Error())
				middleware.WriteInternalServerError(w)
				return
			}
			if m == nil {
				continue
			}
			results = append(results, searchMediaEntry{
				MediaID:  m.MediaID,
				FileName: m.FileName,
				PostID:   m.PostID,
				Time:     e.Time,
			})
		}
		writeJSON(w, http.StatusOK, map[string][]searchMediaEntry{"medias": results})
		return
	}

	entries, err := h.store.SearchPosts(ctx, query)
	if err != nil {
		h.logger.Error("投稿検索に失敗しました", "query", query, "error", err.Error())
		middleware.WriteInternalServerError(w)
		return
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.PostID)
	}
	posts, err := h.hydratePosts(ctx, ids)
	if err != nil {
		h.logger.Error("検索結果の構築に失敗しました", "query", query, "error", err.Error())
		middleware.WriteInternalServerError(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]postResponse{"posts": posts})
}
