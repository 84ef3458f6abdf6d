// Package download はダウンロードジョブのキュー管理と実行ワーカーを提供する。
package download

import (
	"sync"

	"github.com/kanzoderg/MyTimeline/internal/model"
)

// Queue はダウンロードジョブのFIFOキュー。
// 単一のロックで守られ、同一の (url, full, media_only) の重複投入を拒否する。
type Queue struct {
	mu         sync.Mutex
	jobs       []model.DownloadJob
	current    model.DownloadJob
	hasCurrent bool
}

// NewQueue は空のQueueを生成する。
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue はジョブを末尾に追加する。
// 同一内容のジョブが既に並んでいる場合はfalseを返して追加しない。
func (q *Queue) Enqueue(job model.DownloadJob) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, queued := range q.jobs {
		if queued.SameRequest(job) {
			return false
		}
	}
	q.jobs = append(q.jobs, job)
	return true
}

// Pop は先頭のジョブを取り出し、実行中ジョブとして記録する。
// キューが空の場合はfalseを返す。
func (q *Queue) Pop() (model.DownloadJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.jobs) == 0 {
		return model.DownloadJob{}, false
	}
	job := q.jobs[0]
	q.jobs = q.jobs[1:]
	q.current = job
	q.hasCurrent = true
	return job, true
}

// ClearCurrent は実行中ジョブの記録を消す。ジョブ完了時に呼ぶ。
func (q *Queue) ClearCurrent() {
	q.mu.Lock()
	q.current = model.DownloadJob{}
	q.hasCurrent = false
	q.mu.Unlock()
}

// Current は実行中のジョブを返す。実行中でなければfalseを返す。
func (q *Queue) Current() (model.DownloadJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current, q.hasCurrent
}

// Snapshot は現在並んでいるジョブのコピーを返す。キュー状態の表示用。
func (q *Queue) Snapshot() []model.DownloadJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]model.DownloadJob, len(q.jobs))
	copy(out, q.jobs)
	return out
}

// Len は並んでいるジョブ数を返す。
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}
