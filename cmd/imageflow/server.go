package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/BaSui01/imageflow/api/handlers"
	"github.com/BaSui01/imageflow/config"
	"github.com/BaSui01/imageflow/dispatcher"
	"github.com/BaSui01/imageflow/internal/cache"
	"github.com/BaSui01/imageflow/internal/metrics"
	"github.com/BaSui01/imageflow/internal/server"
	"github.com/BaSui01/imageflow/internal/telemetry"
	"github.com/BaSui01/imageflow/provider"
	"github.com/BaSui01/imageflow/registry"
	"github.com/BaSui01/imageflow/rehost"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// =============================================================================
// 🖥️ 服务器结构
// =============================================================================

// Server ImageFlow 服务器
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	metricsNamespace string

	otel       *telemetry.Providers
	collector  *metrics.Collector
	cache      *cache.Manager
	dispatcher *dispatcher.Dispatcher

	healthHandler     *handlers.HealthHandler
	generationHandler *handlers.GenerationHandler
	catalogHandler    *handlers.CatalogHandler

	httpManager    *server.Manager
	metricsManager *server.Manager

	rateLimiterCancel context.CancelFunc
}

// NewServer 创建服务器
func NewServer(cfg *config.Config, logger *zap.Logger, otel *telemetry.Providers) *Server {
	return &Server{
		cfg:              cfg,
		logger:           logger,
		metricsNamespace: "imageflow",
		otel:             otel,
	}
}

// =============================================================================
// 🚀 启动服务器
// =============================================================================

// Start 初始化依赖并启动 HTTP 与 Metrics 监听
func (s *Server) Start() error {
	if err := s.init(); err != nil {
		return err
	}

	handler := s.buildHandler()

	s.httpManager = server.NewManager(handler, server.Config{
		Name:            "http",
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * time.Minute,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	if s.cfg.Server.MetricsPort != 0 {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())

		s.metricsManager = server.NewManager(mux, server.Config{
			Name:            "metrics",
			Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     time.Minute,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
		}, s.logger)
		if err := s.metricsManager.Start(); err != nil {
			_ = s.httpManager.Shutdown(context.Background())
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	s.logger.Info("ImageFlow started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
	)
	return nil
}

// init 构建调度器及其协作者
func (s *Server) init() error {
	reg, err := s.loadRegistry()
	if err != nil {
		return err
	}

	s.collector = metrics.NewCollector(s.metricsNamespace, s.logger)
	s.healthHandler = handlers.NewHealthHandler(s.logger)

	if s.cfg.Rehost.CacheEnabled {
		mgr, err := cache.NewManager(cache.Config{
			Addr:                s.cfg.Redis.Addr,
			Password:            s.cfg.Redis.Password,
			DB:                  s.cfg.Redis.DB,
			KeyPrefix:           s.cfg.Redis.KeyPrefix,
			DefaultTTL:          s.cfg.Rehost.CacheTTL,
			PoolSize:            s.cfg.Redis.PoolSize,
			MaxRetries:          3,
			HealthCheckInterval: 30 * time.Second,
		}, s.logger)
		if err != nil {
			// 缓存不可用时继续服务，只是不复用转存结果
			s.logger.Warn("rehost cache unavailable", zap.Error(err))
		} else {
			s.cache = mgr
			s.healthHandler.RegisterCheck(handlers.NewRedisHealthCheck(mgr))
		}
	}

	authenticator := dispatcher.ContextAuthenticator()
	if s.cfg.Auth.AllowAnonymous {
		authenticator = dispatcher.AllowAll()
	}

	opts := []dispatcher.Option{
		dispatcher.WithLogger(s.logger),
		dispatcher.WithAuthenticator(authenticator),
		dispatcher.WithUploader(s.newUploader()),
		dispatcher.WithRecorder(s.recorder()),
		dispatcher.WithOpenAIConfig(openAIConfig(s.cfg.Providers.OpenAI)),
		dispatcher.WithDoubaoConfig(doubaoConfig(s.cfg.Providers.Doubao)),
		dispatcher.WithTracerProvider(s.otel.TracerProvider()),
	}

	s.dispatcher, err = dispatcher.New(reg, opts...)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	s.healthHandler.RegisterCheck(handlers.NewCatalogCheck(reg))

	creds := handlers.NewCredentialResolver(defaultCredentials(s.cfg.Providers))
	s.generationHandler = handlers.NewGenerationHandler(s.dispatcher, creds, s.logger)
	s.catalogHandler = handlers.NewCatalogHandler(s.dispatcher, s.logger)
	return nil
}

// recorder 组合 Prometheus 与 OTel 指标
func (s *Server) recorder() dispatcher.Recorder {
	otelRecorder, err := telemetry.NewRecorder(s.otel.MeterProvider())
	if err != nil {
		s.logger.Warn("otel metrics unavailable", zap.Error(err))
		return s.collector
	}
	return dispatcher.MultiRecorder(s.collector, otelRecorder)
}

func (s *Server) loadRegistry() (*registry.Registry, error) {
	if s.cfg.Catalog.Path == "" {
		return registry.Default()
	}
	reg, err := registry.LoadFile(s.cfg.Catalog.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog %s: %w", s.cfg.Catalog.Path, err)
	}
	s.logger.Info("catalog loaded", zap.String("path", s.cfg.Catalog.Path), zap.Int("models", len(reg.Models())))
	return reg, nil
}

func (s *Server) newUploader() rehost.Uploader {
	rc := s.cfg.Rehost
	if !rc.Enabled {
		return rehost.NopUploader{}
	}
	var up rehost.Uploader = rehost.NewHTTPUploader(rehost.HTTPConfig{
		Endpoint:  rc.Endpoint,
		APIKey:    rc.APIKey,
		FieldName: rc.FieldName,
		MaxBytes:  rc.MaxBytes,
		Timeout:   rc.Timeout,
	}, nil, s.logger)
	if s.cache != nil {
		up = rehost.NewCachedUploader(up, s.cache, rc.CacheTTL, s.logger)
	}
	return up
}

// =============================================================================
// 🔗 路由与中间件
// =============================================================================

func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// 图像生成
	mux.HandleFunc("POST /api/v1/images/generations", s.generationHandler.HandleGenerate)
	mux.HandleFunc("POST /api/v1/images/generations/stream", s.generationHandler.HandleStream)
	mux.HandleFunc("POST /api/v1/images/generations/multi", s.generationHandler.HandleMulti)

	// 目录与准入状态
	mux.HandleFunc("GET /api/v1/models", s.catalogHandler.HandleModels)
	mux.HandleFunc("GET /api/v1/admission", s.catalogHandler.HandleAdmission)

	ctx, cancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = cancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector, mux),
		OTelTracing(s.otel.TracerProvider()),
		CORS(s.cfg.Server.CORSAllowedOrigins),
	}
	if s.cfg.Auth.JWTSecret != "" {
		middlewares = append(middlewares, JWTAuth(s.cfg.Auth.JWTSecret, s.cfg.Auth.Issuer, skipAuthPaths, s.logger))
	} else {
		s.logger.Warn("JWT secret not configured, generation requires allow_anonymous")
	}
	// 限流放在认证之后，按用户计数
	middlewares = append(middlewares, RateLimiter(ctx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))

	return Chain(mux, middlewares...)
}

// =============================================================================
// 🛑 关闭
// =============================================================================

// Run 阻塞直到收到信号、ctx 取消或监听出错，然后优雅关闭
func (s *Server) Run(ctx context.Context) error {
	managers := []*server.Manager{s.httpManager}
	if s.metricsManager != nil {
		managers = append(managers, s.metricsManager)
	}
	err := server.Wait(ctx, s.logger, managers...)
	return errors.Join(err, s.Shutdown())
}

// Shutdown 释放服务器持有的资源
func (s *Server) Shutdown() error {
	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	var errs []error
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
	}
	if s.otel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.otel.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// 🔧 配置转换
// =============================================================================

func openAIConfig(c config.OpenAIConfig) provider.OpenAIConfig {
	out := provider.DefaultOpenAIConfig()
	if c.BaseURL != "" {
		out.BaseURL = c.BaseURL
	}
	if c.Size != "" {
		out.Size = c.Size
	}
	if c.Timeout > 0 {
		out.Timeout = c.Timeout
	}
	return out
}

func doubaoConfig(c config.DoubaoConfig) provider.DoubaoConfig {
	out := provider.DefaultDoubaoConfig()
	if c.BaseURL != "" {
		out.BaseURL = c.BaseURL
	}
	if c.Size != "" {
		out.Size = c.Size
	}
	if c.Timeout > 0 {
		out.Timeout = c.Timeout
	}
	out.Watermark = c.Watermark
	return out
}

// defaultCredentials 服务端默认凭证，请求头未提供时使用
func defaultCredentials(c config.ProvidersConfig) map[registry.Group]provider.Credentials {
	out := make(map[registry.Group]provider.Credentials, 2)
	if c.OpenAI.APIKey != "" {
		out[registry.GroupOpenAI] = provider.Credentials{APIKey: c.OpenAI.APIKey}
	}
	if c.Doubao.APIKey != "" || c.Doubao.APISecret != "" {
		out[registry.GroupDoubao] = provider.Credentials{
			APIKey:    c.Doubao.APIKey,
			APISecret: c.Doubao.APISecret,
			ExtraKey:  c.Doubao.EndpointID,
		}
	}
	return out
}
