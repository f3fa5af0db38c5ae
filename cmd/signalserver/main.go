package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"social-go/internal/auth"
	"social-go/internal/config"
	"social-go/internal/handlers/signalserver"
	appKafka "social-go/internal/kafka"
	kafkahandlers "social-go/internal/kafka/handlers"
	"social-go/internal/logger"
	appRedis "social-go/internal/redis"
	"social-go/internal/websocket"
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

	// 2. Token 黑名单 (可选)
	var blacklist auth.TokenBlacklist
	redisClient, err := appRedis.NewClient(context.Background(), cfg.Redis)
	if err != nil {
		logger.Warn("无法连接到 Redis，跳过令牌撤销检查", zap.Error(err))
	} else {
		defer redisClient.Close()
		blacklist = appRedis.NewRedisTokenBlacklist(redisClient)
	}

	// 3. 初始化 Hub 与直播登记表
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := websocket.NewLiveRegistry()
	hub := websocket.NewHub(registry)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	// 4. 账号删除事件：断开被删除用户的会话
	if cfg.Kafka.Enabled {
		consumer, err := appKafka.NewConfluentKafkaConsumer(cfg.Kafka)
		if err != nil {
			logger.Fatal("无法创建 Kafka 消费者", zap.Error(err))
		}
		defer consumer.Close()

		logic := kafkahandlers.NewIdentityDeletedConsumerLogic(hub)
		wg.Add(1)
		go func() {
			defer wg.Done()
			topics := []string{cfg.Kafka.IdentityDeletedTopic}
			logger.Info("Kafka 消费者启动", zap.Strings("topics", topics), zap.String("group", cfg.Kafka.ConsumerGroup))
			if err := consumer.Consume(ctx, topics, cfg.Kafka.ConsumerGroup, logic.HandleIdentityDeleted); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Kafka 消费者错误", zap.Error(err))
			}
		}()
	}

	// 5. 路由
	wsHandler := signalserver.NewWebSocketHandler(hub, blacklist, cfg)
	mux := http.NewServeMux()
	mux.HandleFunc(cfg.SignalServer.WebSocketPath, wsHandler.ServeWS)
	mux.HandleFunc("/live", wsHandler.ListLiveHandler)

	serverAddr := fmt.Sprintf("%s:%s", cfg.SignalServer.Host, cfg.SignalServer.Port)
	httpServer := &http.Server{Addr: serverAddr, Handler: logger.RequestLogger(mux)}

	go func() {
		logger.Info("信令服务器启动", zap.String("addr", serverAddr), zap.String("path", cfg.SignalServer.WebSocketPath))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("信令服务器启动失败", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("信令服务器准备关闭...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		logger.Error("信令服务器关闭失败", zap.Error(err))
	}

	cancel()
	wg.Wait()
	logger.Info("信令服务器已优雅关闭。")
}
