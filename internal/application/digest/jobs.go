package digest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ygai/gateway/internal/domain/entity"
	"github.com/ygai/gateway/internal/domain/service"
)

const jobTimeout = 5 * time.Minute

const (
	weeklyPromptTpl = `你是一个项目管理助手。以下是当前所有未完成的任务列表：
%s

请从中提炼出本周最核心的 5 个事项，按优先级排序，用简洁的中文列表输出，每项不超过 30 字。最后用一句话总结本周工作重点。`

	dailyPromptTpl = `你是一个项目管理助手。以下是当前所有未完成的任务列表：
%s

请从中选出今天最重要的 2 个事项，用简洁的中文说明为什么它们最重要以及建议如何推进，每项不超过 50 字。`

	duePromptTpl = `当前时间: %s
你是一个项目管理助手。以下任务即将到期或已过期：
%s

请针对每个任务给出简短的处理建议（如：立即处理、申请延期、委派他人等），每项不超过 30 字。`

	lastWeekPromptTpl = `你是一个项目管理助手。以下是用户在上周完成的工作任务列表：
%s

请帮用户写一份简洁专业的工作总结（适合用于周报）。
要求：
1. 按任务类型或重要程度分类汇总
2. 突出核心产出和价值
3. 总字数控制在 200-300 字以内`
)

// Digest 定时摘要任务集：周报、每日要事、到期提醒、上周总结。
// 每个任务都是「查任务库 → 让 Oracle 总结 → 推送通知」三段式；
// Oracle 失败时退回原始任务列表，查询失败只记日志静默跳过本轮。
type Digest struct {
	store      service.ProductivityStore
	summarizer service.Summarizer
	sink       service.NotificationSink
	logger     *zap.Logger
	now        func() time.Time
}

// NewDigest 创建摘要任务集
func NewDigest(
	store service.ProductivityStore,
	summarizer service.Summarizer,
	sink service.NotificationSink,
	logger *zap.Logger,
) *Digest {
	return &Digest{
		store:      store,
		summarizer: summarizer,
		sink:       sink,
		logger:     logger.With(zap.String("component", "digest")),
		now:        time.Now,
	}
}

// formatTaskList 任务列表的纯文本形态，Oracle 输入与降级输出共用
func formatTaskList(tasks []entity.RemoteTask) string {
	lines := make([]string, 0, len(tasks))
	for _, t := range tasks {
		due := "无截止"
		if t.DueDate != nil {
			due = t.DueDate.Format("01/02")
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s（%s，截止: %s）", t.PriorityName, t.Title, t.Status, due))
	}
	return strings.Join(lines, "\n")
}

func (d *Digest) notify(ctx context.Context, content string) {
	if err := d.sink.Notify(ctx, "", content); err != nil {
		d.logger.Error("发送摘要通知失败", zap.Error(err))
		return
	}
	d.logger.Info("摘要通知已发送")
}

// WeeklyReport 每周一 9:00 — 本周工作摘要
func (d *Digest) WeeklyReport() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	d.logger.Info("执行周报任务")

	tasks, err := d.store.QueryIncomplete(ctx)
	if err != nil {
		d.logger.Error("查询未完成任务失败", zap.Error(err))
		return
	}
	if len(tasks) == 0 {
		d.notify(ctx, "📋 周报：当前没有未完成任务，本周可以轻松一些！")
		return
	}

	summary := d.summarizer.Summarize(ctx, fmt.Sprintf(weeklyPromptTpl, formatTaskList(tasks)))
	if summary == "" {
		summary = formatTaskList(tasks)
	}
	d.notify(ctx, "📋 每周工作摘要\n\n"+summary)
}

// DailyTopTasks 工作日 9:00 — 今日要事。周一由周报覆盖，本任务跳过
func (d *Digest) DailyTopTasks() {
	if d.now().Weekday() == time.Monday {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	d.logger.Info("执行每日要事任务")

	tasks, err := d.store.QueryIncomplete(ctx)
	if err != nil {
		d.logger.Error("查询未完成任务失败", zap.Error(err))
		return
	}
	if len(tasks) == 0 {
		return
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].Priority < tasks[j].Priority
	})

	summary := d.summarizer.Summarize(ctx, fmt.Sprintf(dailyPromptTpl, formatTaskList(tasks)))
	if summary == "" {
		top := tasks
		if len(top) > 2 {
			top = top[:2]
		}
		summary = formatTaskList(top)
	}
	d.notify(ctx, "🌅 今日要事\n\n"+summary)
}

// DueDateCheck 每天 18:00 — 检查 24 小时内到期与已过期任务
func (d *Digest) DueDateCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	d.logger.Info("执行到期检查任务")

	tasks, err := d.store.QueryIncomplete(ctx)
	if err != nil {
		d.logger.Error("查询未完成任务失败", zap.Error(err))
		return
	}

	now := d.now()
	deadline := now.Add(24 * time.Hour)

	var overdue, upcoming []entity.RemoteTask
	for _, t := range tasks {
		if t.DueDate == nil || t.DueDate.After(deadline) {
			continue
		}
		if t.DueDate.After(now) {
			upcoming = append(upcoming, t)
		} else {
			overdue = append(overdue, t)
		}
	}
	if len(overdue) == 0 && len(upcoming) == 0 {
		return
	}

	var parts []string
	if len(overdue) > 0 {
		parts = append(parts, fmt.Sprintf("⚠️ 已过期 (%d):\n%s", len(overdue), formatTaskList(overdue)))
	}
	if len(upcoming) > 0 {
		parts = append(parts, fmt.Sprintf("⏰ 24h 内到期 (%d):\n%s", len(upcoming), formatTaskList(upcoming)))
	}
	taskText := strings.Join(parts, "\n\n")

	dueTasks := append(append([]entity.RemoteTask{}, overdue...), upcoming...)
	advice := d.summarizer.Summarize(ctx, fmt.Sprintf(duePromptTpl,
		now.Format("2006-01-02 15:04"), formatTaskList(dueTasks)))

	if advice != "" {
		d.notify(ctx, fmt.Sprintf("🔔 到期提醒\n\n%s\n\n💡 建议:\n%s", taskText, advice))
	} else {
		d.notify(ctx, "🔔 到期提醒\n\n"+taskText)
	}
}

// LastWeekSummary 每周一 17:00 — 上周完成任务总结
func (d *Digest) LastWeekSummary() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	d.logger.Info("执行上周工作总结任务")

	tasks, err := d.store.QueryLastWeekCompleted(ctx)
	if err != nil {
		d.logger.Error("查询上周完成任务失败", zap.Error(err))
		return
	}
	if len(tasks) == 0 {
		d.notify(ctx, "📝 上周工作总结：上周暂无记录的已完成任务。")
		return
	}

	summary := d.summarizer.Summarize(ctx, fmt.Sprintf(lastWeekPromptTpl, formatTaskList(tasks)))
	if summary == "" {
		summary = formatTaskList(tasks)
	}
	d.notify(ctx, fmt.Sprintf("📝 上周工作总结 (共完成 %d 项)\n\n%s", len(tasks), summary))
}
