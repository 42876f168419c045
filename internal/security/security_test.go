package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestAPIKeyIsValid(t *testing.T) {
	future := time.Now().Add(24 * time.Hour)
	past := time.Now().Add(-24 * time.Hour)

	tests := []struct {
		name     string
		key      *APIKey
		expected bool
	}{
		{"有效密钥", &APIKey{Enabled: true}, true},
		{"禁用密钥", &APIKey{Enabled: false}, false},
		{"未过期密钥", &APIKey{Enabled: true, ExpiresAt: &future}, true},
		{"已过期密钥", &APIKey{Enabled: true, ExpiresAt: &past}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.key.IsValid(); result != tt.expected {
				t.Errorf("IsValid() = %v，期望 %v", result, tt.expected)
			}
		})
	}
}

func TestAPIKeyHasScope(t *testing.T) {
	key := &APIKey{Scopes: []string{ScopeSolve, ScopeStats}}

	if !key.HasScope(ScopeSolve) {
		t.Error("应有求解权限")
	}
	if !key.HasScope(ScopeStats) {
		t.Error("应有统计权限")
	}
	if key.HasScope(ScopeAdmin) {
		t.Error("不应有管理权限")
	}

	admin := &APIKey{Scopes: []string{ScopeAll}}
	if !admin.HasScope(ScopeApply) {
		t.Error("通配符应覆盖所有权限")
	}
}

func TestGenerateKey(t *testing.T) {
	manager := NewAPIKeyManager()

	key, err := manager.GenerateKey("clinic-a", "调度终端", []string{ScopeSolve}, nil)
	if err != nil {
		t.Fatalf("签发密钥失败: %v", err)
	}

	if !strings.HasPrefix(key.Key, "cs_") {
		t.Errorf("密钥应带 cs_ 前缀，得到 %s", key.Key)
	}
	if key.TenantID != "clinic-a" {
		t.Errorf("期望租户 clinic-a，得到 %s", key.TenantID)
	}
	if !key.Enabled {
		t.Error("新密钥应处于启用状态")
	}
}

func TestValidateKey(t *testing.T) {
	manager := NewAPIKeyManager()
	key, _ := manager.GenerateKey("clinic-a", "调度终端", []string{ScopeSolve}, nil)

	valid, err := manager.Validate(key.Key)
	if err != nil {
		t.Errorf("验证失败: %v", err)
	}
	if valid.Key != key.Key {
		t.Error("返回了错误的密钥")
	}

	if _, err := manager.Validate("cs_nonexistent"); err != ErrInvalidAPIKey {
		t.Errorf("期望 ErrInvalidAPIKey，得到 %v", err)
	}
}

func TestRegisterConfiguredKey(t *testing.T) {
	manager := NewAPIKeyManager()
	manager.Register(&APIKey{
		Key:      "cs_bootstrap",
		TenantID: "clinic-a",
		Scopes:   []string{ScopeAll},
		Enabled:  true,
	})

	key, err := manager.Validate("cs_bootstrap")
	if err != nil {
		t.Fatalf("配置注入的密钥应可验证: %v", err)
	}
	if key.CreatedAt.IsZero() {
		t.Error("登记时应补齐创建时间")
	}
}

func TestRevokeKey(t *testing.T) {
	manager := NewAPIKeyManager()
	key, _ := manager.GenerateKey("clinic-a", "调度终端", []string{ScopeSolve}, nil)
	manager.Revoke(key.Key)

	if _, err := manager.Validate(key.Key); err != ErrExpiredAPIKey {
		t.Errorf("撤销后期望 ErrExpiredAPIKey，得到 %v", err)
	}
}

func TestRateLimiterWindow(t *testing.T) {
	limiter := NewRateLimiter(5, time.Second)

	for i := 0; i < 5; i++ {
		if !limiter.Allow("clinic-a") {
			t.Errorf("第 %d 次请求应被允许", i+1)
		}
	}
	if limiter.Allow("clinic-a") {
		t.Error("超出窗口限额的请求应被拒绝")
	}
	if !limiter.Allow("clinic-b") {
		t.Error("其他租户不受影响")
	}
}

func TestExtractAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *http.Request)
		expected string
	}{
		{
			name: "从Bearer提取",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer cs_token")
			},
			expected: "cs_token",
		},
		{
			name: "从X-API-Key提取",
			setup: func(r *http.Request) {
				r.Header.Set("X-API-Key", "cs_header")
			},
			expected: "cs_header",
		},
		{
			name: "从query参数提取",
			setup: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("api_key", "cs_query")
				r.URL.RawQuery = q.Encode()
			},
			expected: "cs_query",
		},
		{
			name:     "无密钥",
			setup:    func(r *http.Request) {},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/v1/solve", nil)
			tt.setup(req)
			if result := ExtractAPIKey(req); result != tt.expected {
				t.Errorf("ExtractAPIKey() = %q，期望 %q", result, tt.expected)
			}
		})
	}
}
