// Package main 是后端服务的入口点。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hanna-chat-go/internal/config"
	"hanna-chat-go/internal/handler"
	"hanna-chat-go/internal/middleware"
	"hanna-chat-go/internal/repository"
	"hanna-chat-go/internal/service"
	"hanna-chat-go/pkg/database"
	"hanna-chat-go/pkg/kafka"
	"hanna-chat-go/pkg/llm"
	"hanna-chat-go/pkg/log"
	"hanna-chat-go/pkg/storage"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "path to config.yaml")
	flag.Parse()

	// 0. 读取 .env（可选），其中的变量不会覆盖已存在的环境变量
	_ = godotenv.Load()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Infof("OpenAI API Key configured: %t", cfg.LLM.APIKey != "")

	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	// 3. 可选依赖：Redis 统计、Kafka 事件、MinIO 导出
	var statsService service.StatsService
	if cfg.Database.Redis.Addr != "" {
		database.InitRedis(cfg.Database.Redis)
		statsService = service.NewStatsService(repository.NewStatsRepository(database.RDB))
	}

	var recorder service.ExchangeRecorder
	if statsService != nil {
		recorder = statsService
	}
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka)
		defer func() {
			if err := producer.Close(); err != nil {
				log.Warnf("关闭 Kafka 生产者失败: %v", err)
			}
		}()
		recorder = producer
		if statsService != nil {
			// 事件经 Kafka 异步汇总到 Redis
			go kafka.StartConsumer(bgCtx, cfg.Kafka, statsService, database.RDB)
		}
	}

	var uploader service.TranscriptUploader
	if cfg.MinIO.Enabled {
		store, err := storage.NewTranscriptStore(bgCtx, cfg.MinIO)
		if err != nil {
			log.Fatal("初始化 MinIO 失败", err)
		}
		uploader = store
	}

	// 4. 初始化 Service (依赖注入)
	llmClient := llm.NewClient(cfg.LLM)
	chatService := service.NewChatService(cfg.LLM, llmClient, recorder)
	exportService := service.NewExportService(uploader)

	// 5. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.BodyLimit(cfg.Server.MaxBodyBytes), middleware.RequestLogger(), gin.Recovery())

	chatHandler := handler.NewChatHandler(chatService)
	api := r.Group("/api")
	{
		api.POST("/chat", chatHandler.Chat)
		api.GET("/chat/ws", chatHandler.HandleWS)
		api.POST("/export", handler.NewExportHandler(exportService).Export)
		api.GET("/stats", handler.NewStatsHandler(statsService).Stats)
	}
	r.GET("/health", handler.Health)

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务监听失败: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	cancelBg()
	log.Info("服务已优雅关闭")
}
