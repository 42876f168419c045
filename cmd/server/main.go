// ClinicShift 门诊排班引擎服务
// 主程序入口

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/internal/config"
	"github.com/clinicshift/clinicshift/internal/constraints"
	"github.com/clinicshift/clinicshift/internal/database"
	"github.com/clinicshift/clinicshift/internal/handler"
	"github.com/clinicshift/clinicshift/internal/metrics"
	"github.com/clinicshift/clinicshift/internal/middleware"
	"github.com/clinicshift/clinicshift/internal/repository"
	"github.com/clinicshift/clinicshift/internal/security"
	"github.com/clinicshift/clinicshift/internal/tenant"
	"github.com/clinicshift/clinicshift/pkg/logger"
	"github.com/clinicshift/clinicshift/pkg/scheduler"
)

// 构建信息（通过 ldflags 注入）
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(logger.Config{
		Level:  cfg.App.LogLevel,
		Format: "console",
	})

	// 打印版本信息
	fmt.Printf("ClinicShift 门诊排班引擎 v%s\n", Version)
	fmt.Printf("Build: %s (%s)\n", BuildTime, GitCommit)
	fmt.Println()

	// 创建排班引擎
	engine := scheduler.NewEngine(cfg.Solver.ToSolverConfig())

	// 创建处理器
	scheduleHandler := handler.NewScheduleHandler(engine)
	statsHandler := handler.NewStatsHandler()

	mux := http.NewServeMux()

	// ========================================
	// 系统端点
	// ========================================

	// 健康检查端点
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"clinicshift"}`))
	})

	// 版本信息端点
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"version":"%s","build_time":"%s","git_commit":"%s"}`, Version, BuildTime, GitCommit)
	})

	// ========================================
	// API v1 端点
	// ========================================

	// API 根路由
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{
			"message": "ClinicShift 门诊排班引擎 API v1",
			"endpoints": {
				"solve": {
					"solve": "POST /api/v1/solve",
					"solve_multi": "POST /api/v1/solve-multi",
					"solve_incremental": "POST /api/v1/solve-incremental",
					"validate": "POST /api/v1/validate",
					"unsat_core": "POST /api/v1/unsat-core",
					"apply": "POST /api/v1/apply"
				},
				"rules": {
					"library": "GET /api/v1/rules/library"
				},
				"stats": {
					"fairness": "POST /api/v1/stats/fairness",
					"coverage": "POST /api/v1/stats/coverage",
					"workload": "POST /api/v1/stats/workload",
					"compare": "POST /api/v1/stats/compare"
				}
			}
		}`))
	})

	// 求解 API（无状态，快照随请求给出）
	mux.HandleFunc("/api/v1/solve", scheduleHandler.Solve)
	mux.HandleFunc("/api/v1/solve-multi", scheduleHandler.SolveMulti)
	mux.HandleFunc("/api/v1/solve-incremental", scheduleHandler.SolveIncremental)
	mux.HandleFunc("/api/v1/validate", scheduleHandler.Validate)
	mux.HandleFunc("/api/v1/unsat-core", scheduleHandler.UnsatCore)
	mux.HandleFunc("/api/v1/apply", scheduleHandler.Apply)

	// 规则模板目录 API
	mux.HandleFunc("/api/v1/rules/library", handleRuleLibrary)

	// ========================================
	// 统计分析 API
	// ========================================

	mux.HandleFunc("/api/v1/stats/fairness", statsHandler.Fairness)
	mux.HandleFunc("/api/v1/stats/coverage", statsHandler.Coverage)
	mux.HandleFunc("/api/v1/stats/workload", statsHandler.Workload)
	mux.HandleFunc("/api/v1/stats/compare", statsHandler.Compare)

	// ========================================
	// 持久化 API（需要数据库）
	// ========================================

	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Warn().Err(err).Msg("数据库不可用，持久化端点未注册")
	} else {
		defer db.Close()
		if err := db.Migrate(context.Background()); err != nil {
			logger.Error().Err(err).Msg("数据库表结构初始化失败")
			os.Exit(1)
		}
		gridHandler := handler.NewGridHandler(
			engine,
			repository.NewSnapshotRepository(db),
			repository.NewScheduleRepository(db),
		)
		mux.HandleFunc("/api/v1/schedules/", func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.Method == http.MethodGet:
				gridHandler.GetAssignments(w, r)
			case hasSuffixSegment(r.URL.Path, "solve"):
				gridHandler.SolveStored(w, r)
			case hasSuffixSegment(r.URL.Path, "validate"):
				gridHandler.ValidateStored(w, r)
			case hasSuffixSegment(r.URL.Path, "lock"):
				gridHandler.LockCell(w, r)
			default:
				http.NotFound(w, r)
			}
		})
		logger.Info().Msg("持久化端点已注册")
	}

	// ========================================
	// 监控端点
	// ========================================

	// Prometheus 指标端点
	mux.Handle(cfg.Metrics.Path, metrics.Handler())

	// ========================================
	// 中间件
	// ========================================

	// 中间件执行顺序：recovery -> requestID -> rateLimit -> cors -> [auth] -> logging -> handler
	var rootHandler http.Handler = loggingMiddleware(mux)
	if cfg.Auth.Enabled {
		rootHandler = buildAuth(cfg)(rootHandler)
		logger.Info().Str("tenant", cfg.Auth.TenantCode).Msg("API密钥认证已启用")
	}
	rootHandler = middleware.Recovery(requestIDMiddleware(rateLimitMiddleware(corsMiddleware(rootHandler))))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      rootHandler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 启动服务器（非阻塞）
	go func() {
		logger.Info().
			Int("port", cfg.App.Port).
			Str("version", Version).
			Str("url", fmt.Sprintf("http://localhost:%d", cfg.App.Port)).
			Str("api_docs", fmt.Sprintf("http://localhost:%d/api/v1/", cfg.App.Port)).
			Msg("服务器启动")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("服务器启动失败")
			os.Exit(1)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("正在关闭服务器...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
		os.Exit(1)
	}

	logger.Info().Msg("服务器已关闭")
}

// buildAuth 按配置装配认证中间件：登记默认租户与引导密钥
func buildAuth(cfg *config.Config) func(http.Handler) http.Handler {
	tenants := tenant.NewManager()
	clinic := tenant.DefaultTenant()
	clinic.Code = cfg.Auth.TenantCode
	clinic.Name = cfg.Auth.TenantName
	tenants.Register(clinic)

	keys := security.NewAPIKeyManager()
	keys.Register(&security.APIKey{
		Key:      cfg.Auth.BootstrapKey,
		TenantID: clinic.Code,
		Name:     "bootstrap",
		Scopes:   []string{security.ScopeAll},
		Enabled:  true,
	})

	return middleware.Auth(&middleware.AuthConfig{
		Keys:    keys,
		Tenants: tenants,
		Limiter: security.NewRateLimiter(clinic.Limits.SolvesPerHour, time.Hour),
		SkipPaths: []string{
			"/health",
			"/version",
			cfg.Metrics.Path,
		},
	})
}

// hasSuffixSegment 检查路径最后一段是否为指定操作名
func hasSuffixSegment(path, segment string) bool {
	trimmed := path
	for len(trimmed) > 0 && trimmed[len(trimmed)-1] == '/' {
		trimmed = trimmed[:len(trimmed)-1]
	}
	idx := len(trimmed) - len(segment)
	return idx > 0 && trimmed[idx:] == segment && trimmed[idx-1] == '/'
}

// handleRuleLibrary 返回引擎支持的全部规则模板定义
func handleRuleLibrary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	response := constraints.LibraryResponse{Library: constraints.GetLibrary()}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// requestIDMiddleware 请求ID追踪中间件
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// 尝试从请求头获取 Request ID，没有则生成新的
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}

		// 设置响应头
		w.Header().Set("X-Request-ID", requestID)

		// 将 Request ID 存储到 context 中
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type requestIDKey struct{}

// loggingMiddleware 日志中间件
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// 获取 Request ID
		requestID, _ := r.Context().Value(requestIDKey{}).(string)

		// 包装ResponseWriter以捕获状态码
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)

		logger.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rw.statusCode).
			Dur("duration", duration).
			Msg("请求处理")

		// 记录Prometheus指标
		metrics.RecordRequestMetrics(r.Method, r.URL.Path, rw.statusCode, duration)
	})
}

// responseWriter 包装ResponseWriter以捕获状态码
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RateLimiter 简单的令牌桶限流器
type RateLimiter struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // 每秒添加的令牌数
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter 创建限流器
func NewRateLimiter(requestsPerSecond float64) *RateLimiter {
	return &RateLimiter{
		tokens:     requestsPerSecond,
		maxTokens:  requestsPerSecond * 2, // 允许突发流量
		refillRate: requestsPerSecond,
		lastRefill: time.Now(),
	}
}

// Allow 检查是否允许请求
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}

var globalRateLimiter = NewRateLimiter(100) // 默认 100 QPS

// rateLimitMiddleware 限流中间件
func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !globalRateLimiter.Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error":   true,
				"code":    "RATE_LIMITED",
				"message": "请求过于频繁，请稍后重试",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware CORS中间件
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
