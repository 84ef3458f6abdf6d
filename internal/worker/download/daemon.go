package download

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/kanzoderg/MyTimeline/internal/model"
	"github.com/kanzoderg/MyTimeline/internal/store"
)

// walkCooldown は全ユーザーの巡回を終えてから次の巡回までの待ち時間。
const walkCooldown = 10 * time.Minute

// UpdateDaemon は既知のアカウントを定期的に差分取得するデーモン。
// フラグの立っていないxとbskyのユーザーを更新が古い順に巡回し、
// メディアのみの差分ジョブを投入する。
type UpdateDaemon struct {
	store   *store.Store
	queue   *Queue
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewUpdateDaemon はUpdateDaemonを生成する。
// intervalはジョブ投入の最小間隔で、キュー輻輳を避けるためのペーシングに使う。
func NewUpdateDaemon(s *store.Store, queue *Queue, interval time.Duration, logger *slog.Logger) *UpdateDaemon {
	return &UpdateDaemon{
		store:   s,
		queue:   queue,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger,
	}
}

// Run はデーモンループを実行する。コンテキストのキャンセルで停止する。
func (d *UpdateDaemon) Run(ctx context.Context) {
	d.logger.Info("更新デーモンを開始します")
	for {
		if err := d.walk(ctx); err != nil {
			d.logger.Error("更新デーモンの巡回に失敗しました", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			d.logger.Info("更新デーモンを停止します")
			return
		case <-time.After(walkCooldown):
		}
	}
}

func (d *UpdateDaemon) walk(ctx context.Context) error {
	users, err := d.store.AllUsers(ctx)
	if err != nil {
		return err
	}

	// AllUsersは更新日時の降順なので、末尾からが古い順になる
	for i := len(users) - 1; i >= 0; i-- {
		u := users[i]
		if u.Flagged {
			continue
		}
		if u.Type != model.SourceX && u.Type != model.SourceBsky {
			continue
		}

		if err := d.limiter.Wait(ctx); err != nil {
			return err
		}

		job := model.NewDownloadJob(u.URL(), false, true)
		if d.queue.Enqueue(job) {
			d.logger.Info("差分ジョブを投入しました", slog.String("user", u.UserName), slog.String("url", job.URL))
		}
	}
	return nil
}
