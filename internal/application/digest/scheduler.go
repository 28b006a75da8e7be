package digest

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/ygai/gateway/internal/infrastructure/config"
)

// Scheduler 摘要任务调度器，robfig/cron 按配置时区触发。
// 每个任务经过 panic 恢复包装，单次失败不影响后续触发。
type Scheduler struct {
	cron   *cron.Cron
	digest *Digest
	logger *zap.Logger
}

// NewScheduler 创建调度器并注册全部摘要任务
func NewScheduler(cfg config.SchedulerConfig, digest *Digest, logger *zap.Logger) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load scheduler timezone %q: %w", cfg.Timezone, err)
	}

	s := &Scheduler{
		cron:   cron.New(cron.WithLocation(loc)),
		digest: digest,
		logger: logger.With(zap.String("component", "scheduler")),
	}

	jobs := []struct {
		name string
		spec string
		fn   func()
	}{
		{"weekly_report", cfg.WeeklyReportSpec, digest.WeeklyReport},
		{"daily_top_tasks", cfg.DailyTopSpec, digest.DailyTopTasks},
		{"last_week_summary", cfg.LastWeekSummarySpec, digest.LastWeekSummary},
		{"due_date_check", cfg.DueCheckSpec, digest.DueDateCheck},
	}
	for _, job := range jobs {
		if err := s.register(job.name, job.spec, job.fn); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Scheduler) register(name, spec string, fn func()) error {
	_, err := s.cron.AddFunc(spec, func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("定时任务崩溃",
					zap.String("job", name),
					zap.Any("panic", r),
					zap.Stack("stack"))
			}
		}()
		fn()
	})
	if err != nil {
		return fmt.Errorf("register job %s (%q): %w", name, spec, err)
	}
	return nil
}

// Start 启动调度器
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("定时任务调度器已启动", zap.Int("jobs", len(s.cron.Entries())))
}

// Stop 停止调度，等待在途任务跑完
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("定时任务调度器已停止")
}
