package persistence

import (
	"context"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ygai/gateway/internal/domain/entity"
	domainErrors "github.com/ygai/gateway/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := autoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestGormTaskRepository_AfterSaveHook(t *testing.T) {
	repo := NewGormTaskRepository(newTestDB(t))

	var hooked []uint
	repo.SetAfterSaveHook(func(taskID uint) {
		hooked = append(hooked, taskID)
	})

	task := &entity.Task{
		Title:    "修复登录超时",
		Priority: entity.PriorityUrgent,
		Status:   entity.StatusPending,
		Source:   entity.PlatformDingTalk,
	}
	if err := repo.Create(context.Background(), task); err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.ID == 0 {
		t.Fatal("id should be backfilled")
	}
	if len(hooked) != 1 || hooked[0] != task.ID {
		t.Fatalf("hook should fire once on create, got %v", hooked)
	}

	task.Status = entity.StatusInProgress
	if err := repo.Update(context.Background(), task); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(hooked) != 2 {
		t.Fatalf("hook should fire on update, got %v", hooked)
	}

	// 回填外部页面ID不得再次触发钩子
	if err := repo.SetNotionPageID(context.Background(), task.ID, "page-1"); err != nil {
		t.Fatalf("set notion page id: %v", err)
	}
	if len(hooked) != 2 {
		t.Fatalf("SetNotionPageID must bypass the hook, got %v", hooked)
	}

	got, err := repo.FindByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if got.NotionPageID != "page-1" {
		t.Fatalf("unexpected notion page id: %q", got.NotionPageID)
	}
	if got.Status != entity.StatusInProgress {
		t.Fatalf("unexpected status: %s", got.Status)
	}
}

func TestGormTaskRepository_SetNotionPageIDMissingTask(t *testing.T) {
	repo := NewGormTaskRepository(newTestDB(t))

	err := repo.SetNotionPageID(context.Background(), 999, "page-x")
	if !domainErrors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestGormTaskRepository_ListPending(t *testing.T) {
	repo := NewGormTaskRepository(newTestDB(t))

	for _, task := range []*entity.Task{
		{Title: "低优未完成", Priority: entity.PriorityNormal, Status: entity.StatusPending},
		{Title: "已完成", Priority: entity.PriorityUrgent, Status: entity.StatusDone},
		{Title: "高优未完成", Priority: entity.PriorityUrgent, Status: entity.StatusPending},
	} {
		if err := repo.Create(context.Background(), task); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	got, err := repo.ListPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 pending tasks, got %d", len(got))
	}
	if got[0].Title != "高优未完成" {
		t.Fatalf("pending list should be priority ordered: %q first", got[0].Title)
	}
}

func TestGormChannelUserRepository_GetOrCreate(t *testing.T) {
	repo := NewGormChannelUserRepository(newTestDB(t))

	first, err := repo.GetOrCreate(context.Background(), entity.PlatformDingTalk, "staff-1", "张三")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	second, err := repo.GetOrCreate(context.Background(), entity.PlatformDingTalk, "staff-1", "张三")
	if err != nil {
		t.Fatalf("get or create again: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("same natural key must map to one row: %d vs %d", first.ID, second.ID)
	}

	other, err := repo.GetOrCreate(context.Background(), entity.PlatformWeChat, "staff-1", "张三")
	if err != nil {
		t.Fatalf("get or create other platform: %v", err)
	}
	if other.ID == first.ID {
		t.Fatal("same user id on another platform must be a distinct row")
	}
}

func TestGormMessageRepository_MarkProcessed(t *testing.T) {
	db := newTestDB(t)
	users := NewGormChannelUserRepository(db)
	messages := NewGormMessageRepository(db)

	user, err := users.GetOrCreate(context.Background(), entity.PlatformDingTalk, "staff-1", "张三")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}

	msg := &entity.Message{
		ChannelUserID: user.ID,
		Platform:      entity.PlatformDingTalk,
		Content:       "明天开会",
		MessageType:   entity.MessageTypeText,
		Direction:     entity.DirectionInbound,
	}
	if err := messages.Create(context.Background(), msg); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := messages.MarkProcessed(context.Background(), msg.ID, entity.ClassImportant); err != nil {
		t.Fatalf("mark processed: %v", err)
	}

	got, err := messages.FindByID(context.Background(), msg.ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !got.Processed || got.AIClassification != entity.ClassImportant {
		t.Fatalf("unexpected message state: %+v", got)
	}

	list, err := messages.ListByUser(context.Background(), user.ID, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 message, got %d", len(list))
	}
}
