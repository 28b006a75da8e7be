package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Gateway   GatewayConfig   `mapstructure:"gateway"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Log       LogConfig       `mapstructure:"log"`
	DingTalk  DingTalkConfig  `mapstructure:"dingtalk"`
	WeChat    WeChatConfig    `mapstructure:"wechat"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Oracle    OracleConfig    `mapstructure:"oracle"`
	Notion    NotionConfig    `mapstructure:"notion"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// GatewayConfig HTTP 网关配置
type GatewayConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // local, production
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // sqlite, postgres
	DSN  string `mapstructure:"dsn"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DingTalkConfig 钉钉机器人配置
type DingTalkConfig struct {
	AppKey       string `mapstructure:"app_key"`
	AppSecret    string `mapstructure:"app_secret"`
	RobotCode    string `mapstructure:"robot_code"` // 留空时复用 AppKey
	NotifyUserID string `mapstructure:"notify_user_id"`
}

// WeChatConfig 企业微信回调配置
type WeChatConfig struct {
	CorpID         string `mapstructure:"corp_id"`
	Token          string `mapstructure:"token"`
	EncodingAESKey string `mapstructure:"encoding_aes_key"`
}

// TelegramConfig Telegram 配置
type TelegramConfig struct {
	BotToken string  `mapstructure:"bot_token"`
	AllowIDs []int64 `mapstructure:"allow_ids"`
	Debug    bool    `mapstructure:"debug"`
}

// OracleConfig 大模型服务配置（DashScope / OpenAI 兼容接口）
type OracleConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	TextModel   string        `mapstructure:"text_model"`   // 分类/回复，如 qwen-plus
	StrongModel string        `mapstructure:"strong_model"` // 任务提取/摘要，如 qwen-max
	VisionModel string        `mapstructure:"vision_model"` // 图片识别，如 qwen-vl-max
	Timeout     time.Duration `mapstructure:"timeout"`
}

// NotionConfig Notion 任务库与知识库配置
type NotionConfig struct {
	APIKey       string        `mapstructure:"api_key"`
	DatabaseID   string        `mapstructure:"database_id"`    // 任务库
	KBDatabaseID string        `mapstructure:"kb_database_id"` // 链接知识库
	Timeout      time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig 摘要定时任务配置
type SchedulerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Timezone string `mapstructure:"timezone"`
	// cron 表达式可逐项覆盖，默认值见 setDefaults
	WeeklyReportSpec    string `mapstructure:"weekly_report_spec"`
	DailyTopSpec        string `mapstructure:"daily_top_spec"`
	LastWeekSummarySpec string `mapstructure:"last_week_summary_spec"`
	DueCheckSpec        string `mapstructure:"due_check_spec"`
}

// Load 加载配置
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// ─── 分层配置加载 ───
	// 优先级 (低 → 高): 默认值 → 全局 ~/.ygai/ → 项目本地 → 环境变量
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	globalDir := filepath.Join(os.Getenv("HOME"), ".ygai")
	v.AddConfigPath(globalDir)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read global config: %w", err)
		}
	}

	// 项目本地配置用 MergeInConfig 叠加，只取第一个找到的
	for _, localDir := range []string{"./config", "."} {
		localPath := filepath.Join(localDir, "config.yaml")
		if _, err := os.Stat(localPath); err == nil {
			v2 := viper.New()
			v2.SetConfigFile(localPath)
			if err := v2.ReadInConfig(); err == nil {
				_ = v.MergeConfigMap(v2.AllSettings())
			}
			break
		}
	}

	v.SetEnvPrefix("YGAI")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults 设置默认配置
func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 18790)
	v.SetDefault("gateway.mode", "local")

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "ygai.db")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("oracle.base_url", "https://dashscope.aliyuncs.com/compatible-mode/v1")
	v.SetDefault("oracle.text_model", "qwen-plus")
	v.SetDefault("oracle.strong_model", "qwen-max")
	v.SetDefault("oracle.vision_model", "qwen-vl-max")
	v.SetDefault("oracle.timeout", "30s")

	v.SetDefault("notion.timeout", "30s")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.timezone", "Asia/Shanghai")
	v.SetDefault("scheduler.weekly_report_spec", "0 9 * * 1")
	v.SetDefault("scheduler.daily_top_spec", "0 9 * * 1-5")
	v.SetDefault("scheduler.last_week_summary_spec", "0 17 * * 1")
	v.SetDefault("scheduler.due_check_spec", "0 18 * * *")
}
