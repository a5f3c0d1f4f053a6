package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"imgcache/configs"
	"imgcache/internal/app/handlers"
	"imgcache/pkg/logger"
)

// Server HTTP服务器结构体
// 负责整个服务器的生命周期管理，包括初始化、启动、运行和优雅关闭
type Server struct {
	config       *configs.ServerConfig
	httpServer   *http.Server
	engine       *gin.Engine
	proxyHandler *handlers.ProxyHandler
	adminHandler *handlers.AdminHandler
	logger       logger.Logger
}

// NewServer 创建新的HTTP服务器实例
func NewServer(config *configs.ServerConfig, proxyHandler *handlers.ProxyHandler, adminHandler *handlers.AdminHandler, log logger.Logger) *Server {
	// 根据配置设置Gin模式
	if config.Host == "0.0.0.0" || config.Host == "" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()

	return &Server{
		config:       config,
		engine:       engine,
		proxyHandler: proxyHandler,
		adminHandler: adminHandler,
		logger:       log,
	}
}

// Start 启动HTTP服务器（非阻塞）
func (s *Server) Start(ctx context.Context) error {
	SetupRoutes(s.engine, s.proxyHandler, s.adminHandler, s.logger)

	s.httpServer = &http.Server{
		Addr:         s.config.GetAddr(),
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.InfoContext(ctx, "HTTP服务器初始化完成",
		"addr", s.httpServer.Addr,
		"read_timeout", s.config.ReadTimeout,
		"write_timeout", s.config.WriteTimeout,
		"idle_timeout", s.config.IdleTimeout)

	go func() {
		s.logger.InfoContext(ctx, "HTTP服务器开始监听", "addr", s.httpServer.Addr)

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.ErrorContext(ctx, "HTTP服务器启动失败", "error", err.Error())
		}
	}()

	return nil
}

// Shutdown 优雅关闭服务器
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.InfoContext(ctx, "开始执行HTTP服务器优雅关闭")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.GracefulShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.ErrorContext(ctx, "HTTP服务器优雅关闭失败，强制关闭", "error", err.Error())
		return fmt.Errorf("HTTP服务器关闭失败: %w", err)
	}

	s.logger.InfoContext(ctx, "HTTP服务器优雅关闭完成")
	return nil
}
