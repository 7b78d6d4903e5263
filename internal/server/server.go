package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"finfill/internal/api"
	"finfill/internal/config"
	"finfill/internal/service/fill"
	"finfill/internal/store"
)

// Server HTTP服务器
type Server struct {
	router *gin.Engine
	store  *store.Store
	api    *api.Handler
	http   *http.Server
	log    zerolog.Logger

	closeOnce sync.Once
}

// NewServer 创建服务器
func NewServer(cfg *config.AppConfig, log zerolog.Logger) (*Server, error) {
	devMode := cfg.Server.DevMode
	if !devMode {
		gin.SetMode(gin.ReleaseMode)
	}

	// 初始化 SQLite Store
	dataDir, err := config.EnsureDataDir(cfg)
	if err != nil {
		return nil, fmt.Errorf("prepare data dir: %w", err)
	}
	sqliteStore, err := store.New(filepath.Join(dataDir, "finfill.db"))
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	aliases, err := fill.AliasesFromConfig(cfg)
	if err != nil {
		_ = sqliteStore.Close()
		return nil, err
	}
	defaults, err := fill.OptionsFromConfig(cfg)
	if err != nil {
		_ = sqliteStore.Close()
		return nil, err
	}
	fills := fill.NewService(aliases, defaults, sqliteStore, log)

	router := gin.New()
	if devMode {
		router.Use(gin.Logger())
	} else {
		router.Use(requestLogger(log))
	}
	router.Use(gin.Recovery())

	s := &Server{
		router: router,
		store:  sqliteStore,
		api:    api.NewHandler(fills, sqliteStore, dataDir, log),
		log:    log,
	}
	s.setupRoutes()
	// 在 Run 之前创建，Shutdown 可以与 Run 并发调用
	s.http = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s, nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes() {
	// CORS
	s.router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	apiGroup := s.router.Group("/api")
	{
		s.api.RegisterRoutes(apiGroup)
	}

	s.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, api.Response{Code: 1004, Message: "not found"})
	})
}

// requestLogger 非开发模式下用 zerolog 记录请求
func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}

// Handler 路由（用于测试）
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run 启动服务器，阻塞直到 Shutdown
// Shutdown 先于 Run 调用时，Run 立即返回 nil
func (s *Server) Run(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ln)
}

// Serve 在给定监听器上提供服务，返回时监听器已关闭
func (s *Server) Serve(ln net.Listener) error {
	if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown 停止接收请求并关闭存储，可重复调用
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.http.Shutdown(ctx)
	s.closeOnce.Do(func() {
		if cerr := s.store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}

// GetStore 获取存储（用于测试）
func (s *Server) GetStore() *store.Store {
	return s.store
}
