package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imgcache/configs"
	"imgcache/internal/app/handlers"
	"imgcache/internal/app/server"
	"imgcache/internal/app/tasks"
	"imgcache/internal/domain/services"
	"imgcache/internal/infrastructure/embedding"
	"imgcache/internal/infrastructure/objectstore"
	"imgcache/internal/infrastructure/stores"
	"imgcache/internal/origin"
	"imgcache/pkg/logger"
)

// main 主函数 - 应用程序入口点
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 创建早期logger（使用默认配置）
	earlyLogger := logger.Default()

	if err := initializeApplication(ctx, earlyLogger); err != nil {
		earlyLogger.ErrorContext(ctx, "应用程序初始化失败", "error", err)
		os.Exit(1)
	}
}

// initializeApplication 初始化应用程序
func initializeApplication(ctx context.Context, earlyLogger logger.Logger) error {

	// 1. 加载配置
	config, err := configs.Load(ctx)
	if err != nil {
		return fmt.Errorf("配置加载失败: %w", err)
	}

	earlyLogger.InfoContext(ctx, "配置加载成功",
		"server_port", config.Server.Port,
		"object_store", config.ObjectStore.Type,
		"vector_index", config.VectorIndex.Type,
		"semantic_enabled", config.Semantic.Enabled)

	// 2. 初始化日志服务
	appLogger, err := initializeLogger(config.Logging)
	if err != nil {
		return fmt.Errorf("日志服务初始化失败: %w", err)
	}

	appLogger.InfoContext(ctx, "日志服务初始化完成")

	// 3. 初始化存储层
	objectRepo, err := objectstore.NewObjectRepository(ctx, &config.ObjectStore, appLogger.SlogLogger())
	if err != nil {
		return fmt.Errorf("对象存储初始化失败: %w", err)
	}
	defer objectRepo.Close()

	vectorRepo, err := stores.NewVectorRepository(ctx, &config.VectorIndex, appLogger.SlogLogger())
	if err != nil {
		return fmt.Errorf("向量索引初始化失败: %w", err)
	}
	defer vectorRepo.Close()

	appLogger.InfoContext(ctx, "存储层初始化完成")

	// 4. 初始化嵌入服务
	embedder, err := embedding.NewEmbedder(ctx, &config.Embedding)
	if err != nil {
		return fmt.Errorf("Embedder 初始化失败: %w", err)
	}
	embedService := embedding.NewService(embedder, config.Embedding.Timeout, appLogger)
	appLogger.InfoContext(ctx, "嵌入服务初始化完成", "model", config.Embedding.Model)

	// 5. 初始化源站客户端
	originCli, err := origin.NewFetcher(&config.Origin, appLogger.SlogLogger())
	if err != nil {
		return fmt.Errorf("源站客户端初始化失败: %w", err)
	}

	// 6. 初始化写回任务执行器
	runner := tasks.NewRunner(&config.Tasks, appLogger.SlogLogger())

	// 7. 组装领域服务
	semanticService := services.NewSemanticService(embedService, vectorRepo, objectRepo, &config.Semantic, appLogger)
	cacheService := services.NewHybridCacheService(objectRepo, semanticService, originCli, runner, config, appLogger)

	// 8. 初始化应用层
	proxyHandler := handlers.NewProxyHandler(cacheService, &config.Cache, appLogger)
	adminHandler := handlers.NewAdminHandler(cacheService, appLogger)
	httpServer := server.NewServer(&config.Server, proxyHandler, adminHandler, appLogger)

	// 9. 启动服务并等待停止信号
	return runApplication(ctx, httpServer, runner, appLogger)
}

// initializeLogger 初始化日志服务
func initializeLogger(config configs.LoggingConfig) (logger.Logger, error) {
	var level slog.Level
	switch config.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	loggerConfig := logger.Config{
		Level:  level,
		Output: config.Output,
		Format: config.Format,
	}

	if config.Output == "file" {
		loggerConfig.FilePath = config.FilePath
	}

	return logger.New(loggerConfig), nil
}

// runApplication 运行应用程序，监听停止信号
// 此函数会阻塞直到收到停止信号或上下文取消
func runApplication(ctx context.Context, httpServer *server.Server, runner *tasks.Runner, log logger.Logger) error {
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)

	// 启动HTTP服务器（非阻塞）
	if err := httpServer.Start(ctx); err != nil {
		return fmt.Errorf("HTTP服务器启动失败: %w", err)
	}

	select {
	case sig := <-signalChan:
		log.InfoContext(ctx, "收到停止信号，开始优雅关闭", "signal", sig.String())
		return gracefulShutdown(ctx, httpServer, runner, log)

	case <-ctx.Done():
		log.InfoContext(ctx, "上下文取消，开始优雅关闭")
		return gracefulShutdown(ctx, httpServer, runner, log)
	}
}

// gracefulShutdown 执行优雅关闭
// 先停止接收新请求，再排空写回队列，保证已入队的缓存写入全部落盘
func gracefulShutdown(ctx context.Context, httpServer *server.Server, runner *tasks.Runner, log logger.Logger) error {
	log.InfoContext(ctx, "开始执行优雅关闭流程")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(ctx, "HTTP服务器关闭失败", "error", err)
		return fmt.Errorf("HTTP服务器关闭失败: %w", err)
	}

	if err := runner.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(ctx, "写回队列排空失败", "error", err)
		return fmt.Errorf("写回队列排空失败: %w", err)
	}

	log.InfoContext(ctx, "优雅关闭完成")
	return nil
}
