package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// Config 保存从环境变量加载的全部配置。
type Config struct {
	// DatabaseURL 是 PostgreSQL 连接串，REST 网关和通知监听器共用。
	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	// Port 是 HTTP/WebSocket 监听端口。
	Port string `envconfig:"PORT" default:"3001"`
	// LogLevel 是 logrus 日志级别 (debug/info/warn/error)。
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// AppEnv 是应用环境 (development/production)。
	AppEnv string `envconfig:"APP_ENV" default:"development"`
	// NotifyChannel 是数据库通知频道名。
	NotifyChannel string `envconfig:"NOTIFY_CHANNEL" default:"game_events"`
	// GatewayTimeout 是单次存储过程调用的超时时间。
	GatewayTimeout time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"5s"`
	// DBMaxConns 是连接池上限，同时也是并发调用的上界。
	DBMaxConns int32 `envconfig:"DB_MAX_CONNS" default:"10"`
	// CORSAllowedOrigin 是允许的跨域来源。
	CORSAllowedOrigin string `envconfig:"CORS_ALLOWED_ORIGIN" default:"*"`
}

// Load 从环境变量加载配置。
// 优先加载 .env 文件（如果存在），忽略其错误，允许只使用环境变量。
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	// 验证日志级别，非法值回退到 info
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return &cfg, nil
}
