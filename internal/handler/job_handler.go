package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kanzoderg/MyTimeline/internal/middleware"
	"github.com/kanzoderg/MyTimeline/internal/model"
	"github.com/kanzoderg/MyTimeline/internal/worker/download"
)

// jobSubmitRequest はジョブ投入リクエストのボディ。
type jobSubmitRequest struct {
	URL       string `json:"url"`
	Full      bool   `json:"full"`
	MediaOnly bool   `json:"media_only"`
}

// jobStateResponse はキューの状態レスポンス。
type jobStateResponse struct {
	Msg     string              `json:"msg,omitempty"`
	Current *model.DownloadJob  `json:"current"`
	Queue   []model.DownloadJob `json:"queue"`
}

// JobHandler はダウンロードジョブのHTTPハンドラー。
type JobHandler struct {
	queue  *download.Queue
	logger *slog.Logger
}

// NewJobHandler はJobHandlerを生成する。
func NewJobHandler(queue *download.Queue, logger *slog.Logger) *JobHandler {
	return &JobHandler{queue: queue, logger: logger}
}

// queueState は現在のキュー状態を組み立てる。
func (h *JobHandler) queueState(msg string) jobStateResponse {
	resp := jobStateResponse{
		Msg:   msg,
		Queue: h.queue.Snapshot(),
	}
	if current, ok := h.queue.Current(); ok {
		resp.Current = &current
	}
	return resp
}

// SubmitJob はPOST /api/jobsを処理する。URLを正規形に整えてキューに積む。
// 不正なURLはHTTPエラーにせず、拒否理由のメッセージと現在のキュー状態を
// 200で返す。投稿フォームはレスポンスをそのまま状態表示に使う。
func (h *JobHandler) SubmitJob(w http.ResponseWriter, r *http.Request) {
	var req jobSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewEmptyURLError())
		return
	}

	url, apiErr := download.NormalizeURL(req.URL)
	if apiErr != nil {
		writeJSON(w, http.StatusOK, h.queueState(apiErr.Message))
		return
	}

	job := model.NewDownloadJob(url, req.Full, req.MediaOnly)
	if !h.queue.Enqueue(job) {
		writeJSON(w, http.StatusOK, h.queueState("同じ内容のジョブが既にキューにあります。"))
		return
	}

	h.logger.Info("ジョブを受け付けました",
		slog.String("job_id", job.ID),
		slog.String("url", job.URL),
		slog.Bool("full", job.Full),
		slog.Bool("media_only", job.MediaOnly))
	writeJSON(w, http.StatusAccepted, h.queueState("ジョブをキューに追加しました。"))
}

// ListJobs はGET /api/jobsを処理する。実行中ジョブと待機列を返す。
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.queueState(""))
}
