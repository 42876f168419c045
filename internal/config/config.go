// Package config 提供配置管理
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/clinicshift/clinicshift/pkg/scheduler/cmodel"
	"github.com/clinicshift/clinicshift/pkg/scheduler/solver"
)

// Config 应用配置
type Config struct {
	App      AppConfig      `yaml:"app"`
	Database DatabaseConfig `yaml:"database"`
	API      APIConfig      `yaml:"api"`
	Auth     AuthConfig     `yaml:"auth"`
	Solver   SolverConfig   `yaml:"solver"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name     string `yaml:"name"`
	Env      string `yaml:"env"`
	Port     int    `yaml:"port"`
	LogLevel string `yaml:"log_level"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Name            string        `yaml:"name"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// APIConfig API配置
type APIConfig struct {
	RateLimit int           `yaml:"rate_limit"`
	Timeout   time.Duration `yaml:"timeout"`
	CORS      CORSConfig    `yaml:"cors"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	Enabled bool     `yaml:"enabled"`
	Origins []string `yaml:"origins"`
}

// AuthConfig 认证配置
// 关闭时服务不设防（单诊所内网部署的默认形态）；
// 开启时需要至少一把引导密钥，归属默认租户
type AuthConfig struct {
	Enabled      bool   `yaml:"enabled"`
	BootstrapKey string `yaml:"bootstrap_key"` // 启动时登记的初始密钥
	TenantCode   string `yaml:"tenant_code"`
	TenantName   string `yaml:"tenant_name"`
}

// SolverConfig 求解引擎配置
type SolverConfig struct {
	Budget            time.Duration `yaml:"budget"`             // 完整求解时间预算
	IncrementalBudget time.Duration `yaml:"incremental_budget"` // 增量重排时间预算
	ProbeBudget       time.Duration `yaml:"probe_budget"`       // 冲突核探测单次预算
	MaxIterations     int           `yaml:"max_iterations"`
	NeighborhoodSize  int           `yaml:"neighborhood_size"`
	Workers           int           `yaml:"workers"`
	Islands           int           `yaml:"islands"`
	DisruptionWeight  int           `yaml:"disruption_weight"`
	DefaultPreset     string        `yaml:"default_preset"`
}

// ToSolverConfig 转换为求解器运行配置
func (c *SolverConfig) ToSolverConfig() *solver.Config {
	cfg := solver.DefaultConfig()
	if c.Budget > 0 {
		cfg.Budget = c.Budget
	}
	if c.IncrementalBudget > 0 {
		cfg.IncrementalBudget = c.IncrementalBudget
	}
	if c.MaxIterations > 0 {
		cfg.MaxIterations = c.MaxIterations
	}
	if c.NeighborhoodSize > 0 {
		cfg.NeighborhoodSize = c.NeighborhoodSize
	}
	if c.Workers > 0 {
		cfg.Workers = c.Workers
	}
	if c.Islands > 0 {
		cfg.Islands = c.Islands
	}
	if c.DisruptionWeight > 0 {
		cfg.DisruptionWeight = c.DisruptionWeight
	}
	return cfg
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load 从环境变量加载配置（存在 .env 文件时先行载入）
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "clinicshift"),
			Env:      getEnv("APP_ENV", "development"),
			Port:     getEnvInt("APP_PORT", 7012),
			LogLevel: getEnv("APP_LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnv("DB_NAME", "clinicshift"),
			User:            getEnv("DB_USER", "clinicshift"),
			Password:        getEnv("DB_PASSWORD", "clinicshift123"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		API: APIConfig{
			RateLimit: getEnvInt("API_RATE_LIMIT", 100),
			Timeout:   getEnvDuration("API_TIMEOUT", 60*time.Second),
			CORS: CORSConfig{
				Enabled: getEnvBool("API_CORS_ENABLED", true),
				Origins: []string{"*"},
			},
		},
		Auth: AuthConfig{
			Enabled:      getEnvBool("AUTH_ENABLED", false),
			BootstrapKey: getEnv("AUTH_BOOTSTRAP_KEY", ""),
			TenantCode:   getEnv("AUTH_TENANT_CODE", "default"),
			TenantName:   getEnv("AUTH_TENANT_NAME", "默认诊所"),
		},
		Solver: SolverConfig{
			Budget:            getEnvDuration("SOLVER_BUDGET", 30*time.Second),
			IncrementalBudget: getEnvDuration("SOLVER_INCREMENTAL_BUDGET", 10*time.Second),
			ProbeBudget:       getEnvDuration("SOLVER_PROBE_BUDGET", 2*time.Second),
			MaxIterations:     getEnvInt("SOLVER_MAX_ITERATIONS", 2000),
			NeighborhoodSize:  getEnvInt("SOLVER_NEIGHBORHOOD_SIZE", 20),
			Workers:           getEnvInt("SOLVER_WORKERS", 4),
			Islands:           getEnvInt("SOLVER_ISLANDS", 0),
			DisruptionWeight:  getEnvInt("SOLVER_DISRUPTION_WEIGHT", 50),
			DefaultPreset:     getEnv("SOLVER_DEFAULT_PRESET", cmodel.PresetBalanced),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnv("METRICS_PATH", "/metrics"),
		},
	}

	if _, err := cmodel.PresetByID(cfg.Solver.DefaultPreset); err != nil {
		return nil, fmt.Errorf("无效的默认预设: %w", err)
	}
	if cfg.Auth.Enabled && cfg.Auth.BootstrapKey == "" {
		return nil, fmt.Errorf("启用认证时必须配置 AUTH_BOOTSTRAP_KEY")
	}

	return cfg, nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// IsTest 检查是否为测试环境
func (c *Config) IsTest() bool {
	return c.App.Env == "test"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
