package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"go.uber.org/zap"

	"social-go/internal/auth"
	"social-go/internal/config"
	"social-go/internal/handlers/apiserver"
	appKafka "social-go/internal/kafka"
	"social-go/internal/logger"
	"social-go/internal/media"
	"social-go/internal/middleware"
	appRedis "social-go/internal/redis"
	"social-go/internal/services"
	"social-go/internal/storage"
)

func main() {
	// 1. 加载配置
	cfg, err := config.LoadConfig("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法加载配置: %v\n", err)
		os.Exit(1)
	}

	if _, err := logger.InitLogger(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "无法初始化日志: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("API 服务器配置加载成功", zap.String("app", cfg.AppName), zap.String("version", cfg.AppVersion))

	// 2. 初始化数据库连接
	db, err := storage.InitDB(cfg.Database)
	if err != nil {
		logger.Fatal("无法初始化数据库", zap.Error(err))
	}
	if err := storage.AutoMigrateTables(db); err != nil {
		logger.Fatal("数据库表迁移失败", zap.Error(err))
	}
	logger.Info("数据库连接成功", zap.String("type", cfg.Database.Type))

	// 3. 初始化 Redis 与 Token 黑名单
	var blacklist auth.TokenBlacklist
	redisClient, err := appRedis.NewClient(context.Background(), cfg.Redis)
	if err != nil {
		logger.Warn("无法连接到 Redis，使用进程内黑名单", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		blacklist = auth.NewMemoryBlacklist()
	} else {
		defer redisClient.Close()
		blacklist = appRedis.NewRedisTokenBlacklist(redisClient)
		logger.Info("成功连接到 Redis", zap.String("addr", cfg.Redis.Addr))
	}

	// 4. 初始化 Kafka Producer
	producer, err := appKafka.NewProducer(cfg.Kafka)
	if err != nil {
		logger.Fatal("无法创建 Kafka 生产者", zap.Error(err))
	}
	defer producer.Close()
	publisher := appKafka.NewEventPublisher(producer, cfg.Kafka)

	// 5. 初始化存储与媒体扫描
	store, err := storage.NewLocalStorageService(cfg.Storage)
	if err != nil {
		logger.Fatal("无法初始化本地存储服务", zap.Error(err))
	}
	scanner := media.NewScanner(store.BaseDir(), string(storage.UploadKindUploads), string(storage.UploadKindMedia))

	// 6. 初始化 Services
	userRepo := storage.NewGormUserRepository(db)
	friendshipRepo := storage.NewGormFriendshipRepository(db)

	authService := services.NewAuthService(userRepo, blacklist, cfg.Auth)
	friendshipService := services.NewFriendshipService(userRepo, friendshipRepo, publisher)
	contentService := services.NewContentService(db, scanner, store)
	userService := services.NewUserService(db, friendshipService, contentService, store, scanner, store)
	deletionService := services.NewDeletionService(db, scanner, store, cfg.Auth, publisher)

	// 7. 设置 HTTP 路由
	router := apiserver.NewRouter(apiserver.Handlers{
		Auth:       apiserver.NewAuthHandler(authService),
		User:       apiserver.NewUserHandler(userService, deletionService, cfg.Storage),
		Content:    apiserver.NewContentHandler(contentService),
		Friendship: apiserver.NewFriendshipHandler(friendshipService),
		Upload:     apiserver.NewUploadHandler(store, cfg.Storage),
		Admin:      apiserver.NewAdminHandler(userService, deletionService),
	}, middleware.AuthMiddleware(cfg.Auth, blacklist), store.BaseDir())

	// 8. 启动 HTTP 服务器并实现优雅关闭
	serverAddr := fmt.Sprintf("%s:%s", cfg.APIServer.Host, cfg.APIServer.Port)

	corsOptions := []handlers.CORSOption{
		handlers.AllowedOrigins(cfg.APIServer.CORS.AllowedOrigins),
		handlers.AllowedMethods(cfg.APIServer.CORS.AllowedMethods),
		handlers.AllowedHeaders(cfg.APIServer.CORS.AllowedHeaders),
		handlers.ExposedHeaders(cfg.APIServer.CORS.ExposedHeaders),
		handlers.MaxAge(cfg.APIServer.CORS.MaxAge),
	}
	if cfg.APIServer.CORS.AllowCredentials {
		corsOptions = append(corsOptions, handlers.AllowCredentials())
	}

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      handlers.CORS(corsOptions...)(logger.RequestLogger(router)),
		ReadTimeout:  cfg.APIServer.ReadTimeout,
		WriteTimeout: cfg.APIServer.WriteTimeout,
		IdleTimeout:  time.Second * 60,
	}

	go func() {
		logger.Info("API 服务器启动", zap.String("addr", serverAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("API 服务器启动失败", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("收到关闭信号，正在关闭 API 服务器...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.Error("API 服务器强制关闭", zap.Error(err))
	}

	logger.Info("API 服务器已成功关闭")
}
