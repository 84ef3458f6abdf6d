// Package handler はアーカイブのJSON APIハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kanzoderg/MyTimeline/internal/model"
	"github.com/kanzoderg/MyTimeline/internal/normalize"
	"github.com/kanzoderg/MyTimeline/internal/richtext"
	"github.com/kanzoderg/MyTimeline/internal/store"
)

// defaultItemsPerPage はタイムラインの1ページあたりの投稿数（デフォルト）。
const defaultItemsPerPage = 20

// mediaResponse はメディア1件のレスポンス。
type mediaResponse struct {
	MediaID  string `json:"media_id"`
	FileName string `json:"file_name"`
	Kind     string `json:"kind"`
}

// embedResponse は引用の解決結果のレスポンス。
type embedResponse struct {
	PostID   string          `json:"post_id"`
	UserName string          `json:"user_name"`
	Nick     string          `json:"nick"`
	URL      string          `json:"url"`
	Text     string          `json:"text"`
	Time     string          `json:"time"`
	External bool            `json:"external"`
	Medias   []mediaResponse `json:"medias"`
}

// postResponse はタイムライン・検索結果の投稿1件のレスポンス。
type postResponse struct {
	PostID    string          `json:"post_id"`
	Text      string          `json:"text"`
	Time      string          `json:"time"`
	Type      string          `json:"type"`
	URL       string          `json:"url"`
	Likes     int             `json:"likes"`
	Reposts   int             `json:"reposts"`
	Comments  int             `json:"comments"`
	IsReply   bool            `json:"is_reply"`
	ReplyTo   string          `json:"reply_to,omitempty"`
	UserName  string          `json:"user_name"`
	Nick      string          `json:"nick"`
	Avatar    string          `json:"avatar,omitempty"`
	Favorited bool            `json:"favorited"`
	Medias    []mediaResponse `json:"medias"`
	Embed     *embedResponse  `json:"embed,omitempty"`
}

// userResponse はユーザー一覧のレスポンス。
type userResponse struct {
	UID         string `json:"uid"`
	UserName    string `json:"user_name"`
	Nick        string `json:"nick"`
	Avatar      string `json:"avatar,omitempty"`
	Banner      string `json:"banner,omitempty"`
	Description string `json:"description"`
	Type        string `json:"type"`
	URL         string `json:"url"`
	UpdateTime  string `json:"update_time"`
	Flagged     bool   `json:"flagged"`
}

// Handler はAPIエンドポイントの共有依存をまとめたHTTPハンドラー群。
type Handler struct {
	store        *store.Store
	norm         *normalize.Normalizer
	urlBase      string
	itemsPerPage int
	logger       *slog.Logger
}

// NewHandler はHandlerを生成する。itemsPerPageが0以下の場合はデフォルト値を使う。
func NewHandler(s *store.Store, norm *normalize.Normalizer, urlBase string, itemsPerPage int, logger *slog.Logger) *Handler {
	if itemsPerPage <= 0 {
		itemsPerPage = defaultItemsPerPage
	}
	return &Handler{
		store:        s,
		norm:         norm,
		urlBase:      urlBase,
		itemsPerPage: itemsPerPage,
		logger:       logger,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// renderText は表示用に投稿本文を整形する。FAはHTML書き換え、
// それ以外はリンク化を行う。
func (h *Handler) renderText(st model.SourceType, text string) string {
	if st == model.SourceFA {
		rewritten, err := richtext.RewriteFADescription(h.urlBase, text)
		if err != nil {
			h.logger.Warn("FA本文の書き換えに失敗しました", slog.String("error", err.Error()))
			return text
		}
		return rewritten
	}
	return richtext.Linkify(st, text)
}

// mediaKind はメディアの表示種別を返す。
func mediaKind(m *model.Media) string {
	switch {
	case m.IsVideo():
		return "video"
	case m.IsAudio():
		return "audio"
	case m.IsImage():
		return "image"
	case m.IsFlash():
		return "flash"
	case m.IsAttachment():
		return "attachment"
	}
	return "unknown"
}

func toMediaResponses(medias []*model.Media) []mediaResponse {
	out := make([]mediaResponse, 0, len(medias))
	for _, m := range medias {
		if m.FileName == "" {
			continue
		}
		out = append(out, mediaResponse{
			MediaID:  m.MediaID,
			FileName: m.FileName,
			Kind:     mediaKind(m),
		})
	}
	return out
}

// hydratePost は投稿IDから表示に必要な情報を揃えたレスポンスを組み立てる。
// 投稿が存在しない場合は(nil, nil)を返す。
func (h *Handler) hydratePost(ctx context.Context, postID string) (*postResponse, error) {
	p, err := h.store.PostByID(ctx, postID, false)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}

	resp := &postResponse{
		PostID:   p.PostID,
		Text:     h.renderText(p.Type, p.TextContent),
		Time:     p.Time,
		Type:     string(p.Type),
		URL:      p.URL,
		Likes:    p.Likes,
		Reposts:  p.Reposts,
		Comments: p.Comments,
		IsReply:  p.IsReply,
		ReplyTo:  p.ReplyTo,
		UserName: p.UserName(),
		Nick:     p.Nick,
	}

	if u, err := h.store.UserByUID(ctx, p.UID, false); err == nil && u != nil {
		resp.Avatar = u.Avatar
		if resp.Nick == "" {
			resp.Nick = u.DisplayNick()
		}
	}

	medias, err := h.store.MediaByPost(ctx, p.PostID)
	if err != nil {
		return nil, err
	}
	resp.Medias = toMediaResponses(medias)

	if fav, err := h.store.IsFavorite(ctx, p.PostID); err == nil {
		resp.Favorited = fav
	}

	if p.Embed != "" {
		e, err := h.norm.ResolveEmbed(ctx, p.Type, p.Embed)
		if err != nil {
			h.logger.Warn("引用の解決に失敗しました",
				slog.String("post_id", p.PostID), slog.String("error", err.Error()))
		} else if e != nil {
			resp.Embed = &embedResponse{
				PostID:   e.PostID,
				UserName: e.UserName,
				Nick:     e.Nick,
				URL:      e.URL,
				Text:     e.TextContent,
				Time:     e.Time,
				External: e.External,
				Medias:   toMediaResponses(e.Medias),
			}
		}
	}

	return resp, nil
}

// hydratePosts は投稿IDのリストをまとめて解決する。存在しないIDは読み飛ばす。
func (h *Handler) hydratePosts(ctx context.Context, postIDs []string) ([]postResponse, error) {
	out := make([]postResponse, 0, len(postIDs))
	for _, id := range postIDs {
		resp, err := h.hydratePost(ctx, id)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			continue
		}
		out = append(out, *resp)
	}
	return out, nil
}
