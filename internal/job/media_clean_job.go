package job

import (
	"Keepsake/internal/pkg/consts"
	"Keepsake/internal/pkg/redis"
	"Keepsake/internal/service"
	"context"
	log "log/slog"
	"time"

	"github.com/google/uuid"
)

// MediaCleanupJob 删除签名后长时间未确认入库的对象
type MediaCleanupJob struct {
	mediaSvc service.MediaService
}

func NewMediaCleanupJob(mediaSvc service.MediaService) *MediaCleanupJob {
	return &MediaCleanupJob{mediaSvc: mediaSvc}
}

func (s *MediaCleanupJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// 多实例部署时只有一个实例执行
	lockValue := uuid.NewString()
	ok, err := redis.TryLock(ctx, consts.MediaCleanupLock, lockValue, 10*time.Minute, 1)
	if err != nil || !ok {
		return
	}
	defer redis.UnLock(ctx, consts.MediaCleanupLock, lockValue)

	log.Info("start media cleanup job")
	count, err := s.mediaSvc.CleanupPending(ctx)
	if err != nil {
		log.Error("media cleanup job failed", "cleaned_count", count, "err", err)
		return
	}
	if count > 0 {
		log.Info("media cleanup job finished", "cleaned_count", count)
	}
}
