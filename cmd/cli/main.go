package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ygai/gateway/internal/application"
	"github.com/ygai/gateway/internal/infrastructure/config"
	"github.com/ygai/gateway/internal/infrastructure/logger"
)

const (
	cliVersion = "0.1.0"
	cliName    = "ygai"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   cliName,
		Short: "YGAI — 个人消息网关",
		Long:  "YGAI Gateway — 多渠道消息接入、AI 分类提取、Notion 任务与知识库同步",
		RunE:  runServe,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "启动完整网关服务 (HTTP + 钉钉 Stream + Telegram + 定时摘要)",
		RunE:  runServe,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "显示版本",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", cliName, cliVersion)
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "doctor",
		Short: "环境诊断",
		RunE:  runDoctor,
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputPath: "stdout",
	})
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer log.Sync()

	log.Info("Starting YGAI Gateway", zap.String("version", cliVersion))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := application.NewApp(cfg, log)
	if err != nil {
		log.Fatal("Failed to initialize application", zap.Error(err))
	}

	if err := app.Start(ctx); err != nil {
		log.Fatal("Failed to start application", zap.Error(err))
	}

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
		os.Exit(1)
	}
	return nil
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Printf("◇ YGAI Doctor v%s\n\n", cliVersion)

	checks := []struct {
		name  string
		check func() (string, bool)
	}{
		{"配置文件", checkConfig},
		{"Oracle 凭据", checkOracle},
		{"Notion 凭据", checkNotion},
		{"钉钉凭据", checkDingTalk},
	}

	allOK := true
	for _, c := range checks {
		val, ok := c.check()
		icon := "\033[92m✓\033[0m"
		if !ok {
			icon = "\033[91m✗\033[0m"
			allOK = false
		}
		fmt.Printf("  %s %s: %s\n", icon, c.name, val)
	}

	fmt.Println()
	if allOK {
		fmt.Println("所有检查通过 ✓")
	} else {
		fmt.Println("存在问题, 请检查上方标记")
	}

	// 打印脱敏后的生效配置
	if cfg, err := config.Load(); err == nil {
		redacted := *cfg
		redacted.Oracle.APIKey = redact(cfg.Oracle.APIKey)
		redacted.Notion.APIKey = redact(cfg.Notion.APIKey)
		redacted.DingTalk.AppSecret = redact(cfg.DingTalk.AppSecret)
		redacted.WeChat.EncodingAESKey = redact(cfg.WeChat.EncodingAESKey)
		redacted.Telegram.BotToken = redact(cfg.Telegram.BotToken)
		if out, err := yaml.Marshal(&redacted); err == nil {
			fmt.Printf("\n生效配置:\n%s", out)
		}
	}
	return nil
}

func checkConfig() (string, bool) {
	path := filepath.Join(os.Getenv("HOME"), ".ygai", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return path, true
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "./config.yaml", true
	}
	return "未找到 (将使用默认值与环境变量)", true
}

func checkOracle() (string, bool) {
	cfg, err := config.Load()
	if err != nil {
		return err.Error(), false
	}
	if cfg.Oracle.APIKey == "" {
		return "未配置 (AI 功能将使用默认值降级)", false
	}
	return cfg.Oracle.TextModel + " / " + cfg.Oracle.StrongModel + " / " + cfg.Oracle.VisionModel, true
}

func checkNotion() (string, bool) {
	cfg, err := config.Load()
	if err != nil {
		return err.Error(), false
	}
	if cfg.Notion.APIKey == "" {
		return "未配置 (任务与链接不会同步)", false
	}
	return "已配置", true
}

func checkDingTalk() (string, bool) {
	cfg, err := config.Load()
	if err != nil {
		return err.Error(), false
	}
	if cfg.DingTalk.AppKey == "" || cfg.DingTalk.AppSecret == "" {
		return "未配置 (Stream 监听不启动)", false
	}
	return "已配置", true
}

func redact(s string) string {
	if len(s) <= 6 {
		if s == "" {
			return ""
		}
		return "***"
	}
	return s[:3] + "***" + s[len(s)-3:]
}
