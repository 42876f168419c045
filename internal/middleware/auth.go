// Package middleware 提供认证与访问控制中间件
package middleware

import (
	"net/http"
	"strings"

	"github.com/clinicshift/clinicshift/internal/security"
	"github.com/clinicshift/clinicshift/internal/tenant"
	"github.com/clinicshift/clinicshift/pkg/logger"
)

// AuthConfig 认证配置
type AuthConfig struct {
	Keys      *security.APIKeyManager
	Tenants   *tenant.Manager
	Limiter   *security.RateLimiter
	SkipPaths []string // 跳过认证的路径前缀（健康检查、指标）
}

// Auth API密钥认证中间件
// 验证密钥 → 解析租户 → 频率限制 → 租户写入上下文
func Auth(cfg *AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range cfg.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			rawKey := security.ExtractAPIKey(r)
			if rawKey == "" {
				unauthorized(w, "missing_api_key", "API密钥未提供")
				return
			}

			key, err := cfg.Keys.Validate(rawKey)
			if err != nil {
				logger.Warn().Err(err).Str("path", r.URL.Path).Msg("API密钥验证失败")
				unauthorized(w, "invalid_api_key", "无效的API密钥")
				return
			}

			t, err := cfg.Tenants.Get(key.TenantID)
			if err != nil {
				logger.Warn().Err(err).Str("tenant", key.TenantID).Msg("租户不可用")
				forbidden(w, "tenant_unavailable", "租户不可用")
				return
			}

			if cfg.Limiter != nil && !cfg.Limiter.Allow(t.Code) {
				w.Header().Set("Retry-After", "60")
				respond(w, http.StatusTooManyRequests, "rate_limited", "请求频率超限")
				return
			}

			w.Header().Set("X-Tenant-ID", t.ID.String())
			next.ServeHTTP(w, r.WithContext(tenant.WithTenant(r.Context(), t)))
		})
	}
}

// RequireScope 权限范围检查中间件，包在单个端点外
func RequireScope(scope string, keys *security.APIKeyManager) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			rawKey := security.ExtractAPIKey(r)
			if rawKey == "" {
				// 认证关闭时不设防
				next(w, r)
				return
			}

			key, err := keys.Validate(rawKey)
			if err != nil {
				unauthorized(w, "invalid_api_key", "无效的API密钥")
				return
			}
			if !key.HasScope(scope) {
				forbidden(w, "insufficient_scope", "密钥权限不足: 需要 "+scope)
				return
			}
			next(w, r)
		}
	}
}

// Recovery panic恢复中间件
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error().
					Interface("panic", err).
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Msg("请求处理panic")
				respond(w, http.StatusInternalServerError, "internal_error", "服务器内部错误")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter, code, message string) {
	respond(w, http.StatusUnauthorized, code, message)
}

func forbidden(w http.ResponseWriter, code, message string) {
	respond(w, http.StatusForbidden, code, message)
}

func respond(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":true,"code":"` + code + `","message":"` + message + `"}`))
}
