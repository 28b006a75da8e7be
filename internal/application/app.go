package application

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/ygai/gateway/internal/application/digest"
	"github.com/ygai/gateway/internal/application/usecase"
	"github.com/ygai/gateway/internal/domain/repository"
	"github.com/ygai/gateway/internal/domain/service"
	"github.com/ygai/gateway/internal/infrastructure/config"
	"github.com/ygai/gateway/internal/infrastructure/fetcher"
	"github.com/ygai/gateway/internal/infrastructure/knowledge"
	"github.com/ygai/gateway/internal/infrastructure/notify"
	"github.com/ygai/gateway/internal/infrastructure/notion"
	"github.com/ygai/gateway/internal/infrastructure/oracle"
	"github.com/ygai/gateway/internal/infrastructure/persistence"
	"github.com/ygai/gateway/internal/infrastructure/productivity"
	"github.com/ygai/gateway/internal/interfaces/dingtalk"
	httpServer "github.com/ygai/gateway/internal/interfaces/http"
	"github.com/ygai/gateway/internal/interfaces/http/handlers"
	"github.com/ygai/gateway/internal/interfaces/telegram"
	"github.com/ygai/gateway/internal/interfaces/wechat"
	"github.com/ygai/gateway/pkg/safego"
)

// App 应用程序（依赖注入容器）
type App struct {
	config *config.Config
	logger *zap.Logger
	db     *gorm.DB

	// 仓储层
	userRepo repository.ChannelUserRepository
	msgRepo  repository.MessageRepository
	taskRepo *persistence.GormTaskRepository

	// 领域服务
	linkResolver *service.LinkResolver

	// Oracle 客户端
	oracleClient *oracle.Client
	classifier   *oracle.Classifier
	extractor    *oracle.Extractor
	recognizer   *oracle.Recognizer
	responder    *oracle.Responder
	summarizer   *oracle.Summarizer

	// 外部存储
	knowledgeStore    *knowledge.Store
	productivityStore *productivity.Store
	syncWorker        *productivity.SyncWorker

	// 渠道与出口
	dingtalkClient   *notify.DingTalkClient
	dingtalkListener *dingtalk.Listener
	telegramAdapter  *telegram.Adapter
	httpServer       *httpServer.Server
	scheduler        *digest.Scheduler

	cancel context.CancelFunc
}

// NewApp 创建应用程序
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := &App{
		config: cfg,
		logger: logger,
	}

	if err := app.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}
	if err := app.initInfrastructure(); err != nil {
		return nil, fmt.Errorf("failed to init infrastructure: %w", err)
	}
	if err := app.initInterfaces(); err != nil {
		return nil, fmt.Errorf("failed to init interfaces: %w", err)
	}
	return app, nil
}

func (app *App) initRepositories() error {
	db, err := persistence.NewDBConnection(&app.config.Database)
	if err != nil {
		return err
	}
	app.db = db

	app.userRepo = persistence.NewGormChannelUserRepository(db)
	app.msgRepo = persistence.NewGormMessageRepository(db)
	app.taskRepo = persistence.NewGormTaskRepository(db)
	return nil
}

func (app *App) initInfrastructure() error {
	cfg := app.config

	// Oracle 客户端族
	app.oracleClient = oracle.NewClient(oracle.Config{
		APIKey:      cfg.Oracle.APIKey,
		BaseURL:     cfg.Oracle.BaseURL,
		TextModel:   cfg.Oracle.TextModel,
		StrongModel: cfg.Oracle.StrongModel,
		VisionModel: cfg.Oracle.VisionModel,
		Timeout:     cfg.Oracle.Timeout,
	}, app.logger)
	app.classifier = oracle.NewClassifier(app.oracleClient, app.logger)
	app.extractor = oracle.NewExtractor(app.oracleClient, app.logger)
	app.recognizer = oracle.NewRecognizer(app.oracleClient, app.logger)
	app.responder = oracle.NewResponder(app.oracleClient, app.logger)
	app.summarizer = oracle.NewSummarizer(app.oracleClient, app.logger)

	// Notion 知识库与任务库
	notionClient := notion.NewClient(cfg.Notion.APIKey, cfg.Notion.Timeout)
	app.knowledgeStore = knowledge.NewStore(notionClient, cfg.Notion.KBDatabaseID, app.logger)
	app.productivityStore = productivity.NewStore(notionClient, cfg.Notion.DatabaseID, app.logger)

	// 任务保存钩子 → 后台同步
	app.syncWorker = productivity.NewSyncWorker(app.productivityStore, app.taskRepo, app.msgRepo, app.logger)
	app.taskRepo.SetAfterSaveHook(app.syncWorker.Enqueue)

	// 钉钉出站客户端（通知 + 图片凭据解析）
	app.dingtalkClient = notify.NewDingTalkClient(notify.DingTalkConfig{
		AppKey:       cfg.DingTalk.AppKey,
		AppSecret:    cfg.DingTalk.AppSecret,
		RobotCode:    cfg.DingTalk.RobotCode,
		NotifyUserID: cfg.DingTalk.NotifyUserID,
	}, app.logger)

	// 链接处理链
	app.linkResolver = service.NewLinkResolver(
		app.knowledgeStore,
		fetcher.NewFetcher(app.logger),
		app.classifier,
		app.logger,
	)
	return nil
}

// newProcessor 组装一条消息处理管线，图片凭据解析按渠道注入
func (app *App) newProcessor(imageResolver service.ImageResolver) *usecase.ProcessMessageUseCase {
	return usecase.NewProcessMessageUseCase(
		app.linkResolver,
		app.userRepo,
		app.msgRepo,
		app.taskRepo,
		app.classifier,
		app.extractor,
		app.recognizer,
		app.responder,
		imageResolver,
		app.logger,
	)
}

func (app *App) initInterfaces() error {
	cfg := app.config

	// 钉钉 Stream 监听
	if cfg.DingTalk.AppKey != "" && cfg.DingTalk.AppSecret != "" {
		app.dingtalkListener = dingtalk.NewListener(
			cfg.DingTalk.AppKey,
			cfg.DingTalk.AppSecret,
			app.newProcessor(app.dingtalkClient),
			app.logger,
		)
	} else {
		app.logger.Warn("钉钉凭据未配置，Stream 监听不启动")
	}

	// Telegram 适配器
	if cfg.Telegram.BotToken != "" {
		adapter, err := telegram.NewAdapter(&telegram.Config{
			BotToken: cfg.Telegram.BotToken,
			Debug:    cfg.Telegram.Debug,
		}, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create telegram adapter: %w", err)
		}
		adapter.SetProcessor(app.newProcessor(telegram.NewFileResolver(adapter.Bot())))
		app.telegramAdapter = adapter
	}

	// 企业微信回调
	var wechatHandler *wechat.Handler
	if cfg.WeChat.CorpID != "" && cfg.WeChat.Token != "" && cfg.WeChat.EncodingAESKey != "" {
		crypt, err := wechat.NewMsgCrypt(cfg.WeChat.Token, cfg.WeChat.EncodingAESKey, cfg.WeChat.CorpID)
		if err != nil {
			return fmt.Errorf("failed to create wechat crypt: %w", err)
		}
		wechatHandler = wechat.NewHandler(crypt, cfg.WeChat.CorpID, app.linkResolver, app.userRepo, app.msgRepo, app.logger)
	}

	// HTTP 服务
	recordsHandler := handlers.NewRecordsHandler(app.msgRepo, app.taskRepo, app.userRepo, app.logger)
	app.httpServer = httpServer.NewServer(httpServer.Config{
		Host: cfg.Gateway.Host,
		Port: cfg.Gateway.Port,
		Mode: cfg.Gateway.Mode,
	}, recordsHandler, wechatHandler, app.logger)

	// 摘要定时任务
	if cfg.Scheduler.Enabled {
		d := digest.NewDigest(app.productivityStore, app.summarizer, app.dingtalkClient, app.logger)
		scheduler, err := digest.NewScheduler(cfg.Scheduler, d, app.logger)
		if err != nil {
			return fmt.Errorf("failed to create scheduler: %w", err)
		}
		app.scheduler = scheduler
	}
	return nil
}

// Start 启动应用程序
func (app *App) Start(ctx context.Context) error {
	app.logger.Info("Starting application")

	ctx, app.cancel = context.WithCancel(ctx)

	if err := app.httpServer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if app.dingtalkListener != nil {
		safego.Go(app.logger, "dingtalk-listener", func() {
			if err := app.dingtalkListener.Run(ctx); err != nil && ctx.Err() == nil {
				app.logger.Error("钉钉 Stream 监听退出", zap.Error(err))
			}
		})
	}

	if app.telegramAdapter != nil {
		safego.Go(app.logger, "telegram-adapter", func() {
			if err := app.telegramAdapter.Run(ctx); err != nil && ctx.Err() == nil {
				app.logger.Error("Telegram 适配器退出", zap.Error(err))
			}
		})
	}

	if app.scheduler != nil {
		app.scheduler.Start()
	}

	app.logger.Info("Application started successfully")
	return nil
}

// Stop 停止应用程序
func (app *App) Stop(ctx context.Context) error {
	app.logger.Info("Stopping application")

	if app.cancel != nil {
		app.cancel()
	}
	if app.scheduler != nil {
		app.scheduler.Stop()
	}
	if err := app.httpServer.Stop(ctx); err != nil {
		app.logger.Error("Failed to stop HTTP server", zap.Error(err))
	}

	if app.db != nil {
		sqlDB, err := app.db.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				app.logger.Error("Failed to close database connection", zap.Error(err))
			}
		}
	}

	app.logger.Info("Application stopped successfully")
	return nil
}

// Logger 返回应用日志器
func (app *App) Logger() *zap.Logger {
	return app.logger
}

// AppConfig 返回应用配置
func (app *App) AppConfig() *config.Config {
	return app.config
}
