package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/s0ra0000/sushi-go-backend/internal/config"
	"github.com/s0ra0000/sushi-go-backend/internal/gateway"
	httpHandler "github.com/s0ra0000/sushi-go-backend/internal/handler/http"
	wsHandler "github.com/s0ra0000/sushi-go-backend/internal/handler/websocket"
	"github.com/s0ra0000/sushi-go-backend/internal/hub"
	"github.com/s0ra0000/sushi-go-backend/internal/infra/setup"
	"github.com/s0ra0000/sushi-go-backend/internal/middleware"
	"github.com/s0ra0000/sushi-go-backend/internal/relay"
	"github.com/s0ra0000/sushi-go-backend/internal/service"
)

// App 持有应用的全部组件和配置。
type App struct {
	Config     *config.Config
	Log        *logrus.Logger
	Pool       *pgxpool.Pool
	Hub        *hub.Hub
	Listener   *relay.Listener
	HttpServer *http.Server

	// stopListener 取消通知监听循环
	stopListener context.CancelFunc
}

// NewApp 创建并初始化应用的全部组件。
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := logrus.StandardLogger()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel) // cfg.LogLevel 已被 Load 验证
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Infof("Logger initialized (Level: %s)", logLevel.String())

	// 3. 初始化数据库连接池
	pool, err := setup.InitPool(context.Background(), cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return nil, fmt.Errorf("failed to init database pool: %w", err)
	}

	// 4. 初始化网关和服务
	gw := gateway.New(pool, cfg.GatewayTimeout)
	game := service.NewGame(gw)
	log.Info("Gateway and game service initialized")

	// 5. 初始化 Hub 和通知中继
	hubInstance := hub.New()
	router := relay.NewRouter(hubInstance)
	listener := relay.NewListener(cfg.DatabaseURL, cfg.NotifyChannel, router)
	log.WithField("channel", cfg.NotifyChannel).Info("Hub and notification relay initialized")

	// 6. 初始化 Handlers
	authHandler := httpHandler.NewAuthHandler(game)
	sessionHandler := httpHandler.NewSessionHandler(game, hubInstance)
	cardHandler := httpHandler.NewCardHandler(game)
	wsConnHandler := wsHandler.NewHandler(hubInstance, game)
	log.Info("Handlers initialized")

	// 7. 初始化 Gin Engine 和路由
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(LoggerMiddleware(log))
	engine.Use(corsMiddleware(cfg.CORSAllowedOrigin))
	engine.Use(middleware.Token())

	api := engine.Group("/api")
	{
		api.POST("/register", authHandler.Register)
		api.POST("/login", authHandler.Login)
		api.POST("/reset-password", authHandler.ResetPassword)

		// 鉴权可选：令牌缺失时以 NULL 传给存储过程
		api.POST("/is-player-belongs", sessionHandler.IsPlayerBelongs)
		api.POST("/leave-session", sessionHandler.Leave)

		// 令牌取自请求体，由存储过程校验
		api.POST("/place-card", cardHandler.PlaceCard)
		api.POST("/get-player-cards", cardHandler.PlayerCards)
		api.POST("/get-player-table-cards", cardHandler.PlayerTableCards)
		api.POST("/get-table-cards", cardHandler.TableCards)
	}
	authed := api.Group("").Use(middleware.Auth())
	{
		authed.GET("/sessions", sessionHandler.List)
		authed.POST("/sessions", sessionHandler.Create)
		authed.DELETE("/sessions/:id", sessionHandler.Delete)
		authed.GET("/sessions/:id", sessionHandler.Get)
		authed.POST("/join-session", sessionHandler.Join)
	}
	engine.GET("/ws", wsConnHandler.HandleConnection)
	engine.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	log.Info("Router setup complete")

	// 8. 初始化 HTTP Server
	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: engine,
	}

	return &App{
		Config:     cfg,
		Log:        log,
		Pool:       pool,
		Hub:        hubInstance,
		Listener:   listener,
		HttpServer: httpServer,
	}, nil
}

// Start 启动通知监听器和 HTTP 服务器。
func (a *App) Start() {
	listenerCtx, cancel := context.WithCancel(context.Background())
	a.stopListener = cancel
	go a.Listener.Run(listenerCtx)
	a.Log.Info("Notification listener routine started")

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening")
	}()
}

// Shutdown 优雅地关闭应用。
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 停止通知监听
	if a.stopListener != nil {
		a.stopListener()
	}

	// 2. 优雅关闭 HTTP 服务器
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully")
	}

	// 3. 关闭连接池
	if a.Pool != nil {
		a.Pool.Close()
		a.Log.Info("Database pool closed")
	}

	a.Log.Info("Application shutdown complete")
}

// corsMiddleware 设置跨域响应头，并直接应答预检请求。
func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggerMiddleware 创建一个记录请求日志的 Gin 中间件。
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()
		if errorMessage != "" {
			entry.Error(errorMessage)
		} else if statusCode >= 500 {
			entry.Error("Server error")
		} else if statusCode >= 400 {
			entry.Warn("Client error")
		} else {
			entry.Info("Request handled")
		}
	}
}
