package handler

import (
	"net/http"

	"github.com/kanzoderg/MyTimeline/internal/middleware"
)

// ListUsers はGET /api/usersを処理する。
// アーカイブ済みの全アカウントを最終更新の新しい順に返す。
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.AllUsers(r.Context())
	if err != nil {
		h.logger.Error("ユーザー一覧の取得に失敗しました", "error", err.Error())
		middleware.WriteInternalServerError(w)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, userResponse{
			UID:         u.UID,
			UserName:    u.UserName,
			Nick:        u.DisplayNick(),
			Avatar:      u.Avatar,
			Banner:      u.Banner,
			Description: h.renderText(u.Type, u.Description),
			Type:        string(u.Type),
			URL:         u.URL(),
			UpdateTime:  u.UpdateTimeString(),
			Flagged:     u.Flagged,
		})
	}
	writeJSON(w, http.StatusOK, map[string][]userResponse{"users": out})
}

// Health はGET /healthを処理する。死活監視用。
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
