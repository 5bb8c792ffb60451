package cron

import (
	"context"
	log "log/slog"
)

// Run 注册任务并启动引擎，ctx 结束后等待正在执行的任务完成再返回
func Run(ctx context.Context, mgr *Manager) error {
	if err := mgr.RegisterJobs(); err != nil {
		return err
	}
	mgr.Start()
	log.Info("cron jobs scheduled", "jobs", len(mgr.engine.Entries()))

	<-ctx.Done()
	mgr.Stop()
	return nil
}
