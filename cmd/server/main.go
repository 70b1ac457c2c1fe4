// Package main 是应用程序的入口点。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"study-with-speech/internal/config"
	"study-with-speech/internal/model"
	"study-with-speech/internal/repository"
	"study-with-speech/internal/router"
	"study-with-speech/internal/service"
	"study-with-speech/pkg/database"
	"study-with-speech/pkg/kafka"
	"study-with-speech/pkg/llm"
	"study-with-speech/pkg/log"
	"study-with-speech/pkg/storage"
	"study-with-speech/pkg/token"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. 初始化配置
	config.Init(*configPath)
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	if cfg.JWT.Secret == "" {
		log.Fatalf("jwt.secret 未配置（可通过 JWT_SECRET 环境变量设置）")
	}
	if cfg.LLM.APIKey == "" {
		log.Warnf("未配置 LLM API key，发送消息将失败")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 初始化数据库和 Redis
	database.InitDB(cfg.Database.Driver, cfg.Database.DSN)
	if err := database.DB.AutoMigrate(model.AllModels()...); err != nil {
		log.Fatal("数据库迁移失败", err)
	}
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)

	// 4. 初始化外部依赖：对象存储与事件发布
	images := storage.NewPassthroughStore(cfg.MinIO.MaxImageBytes)
	if cfg.MinIO.Endpoint != "" {
		minioStore, err := storage.NewMinioStore(ctx, cfg.MinIO)
		if err != nil {
			log.Fatal("初始化 MinIO 失败", err)
		}
		images = minioStore
	}
	events := kafka.NewPublisher(cfg.Kafka)

	// 5. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	messageRepo := repository.NewMessageRepository(database.DB)
	savedRepo := repository.NewSavedMessageRepository(database.DB)
	suggestionRepo := repository.NewSuggestionRepository(database.DB)
	tokenRepo := repository.NewTokenRepository(database.RDB)

	// 6. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	llmClient := llm.NewClient(cfg.LLM)
	services := router.Services{
		User:         service.NewUserService(userRepo, tokenRepo, jwtManager, images),
		Chat:         service.NewChatService(messageRepo, llmClient, service.NewPromptBuilder(cfg.Prompt), cfg.LLM.Generation, events),
		Feedback:     service.NewFeedbackService(messageRepo, events),
		SavedMessage: service.NewSavedMessageService(savedRepo, messageRepo, events),
		Suggestion:   service.NewSuggestionService(suggestionRepo, events),
	}

	// 7. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router.New(services, cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP 服务监听失败: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// 等待中断信号或监听失败
		<-gctx.Done()
		log.Info("接收到停机信号，正在关闭服务...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("HTTP 服务器关闭失败: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("服务异常退出", err)
	}

	if err := events.Close(); err != nil {
		log.Error("关闭 Kafka 生产者失败", err)
	}
	if database.RDB != nil {
		_ = database.RDB.Close()
	}
	if sqlDB, err := database.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info("服务已优雅关闭")
}
