// Package tenant 提供多诊所租户支持
package tenant

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrTenantNotFound = errors.New("租户不存在")
	ErrInvalidTenant  = errors.New("无效的租户")
	ErrTenantDisabled = errors.New("租户已禁用")
	ErrQuotaExceeded  = errors.New("超出租户配额")
)

// Tenant 一家诊所（或诊所集团）租户
type Tenant struct {
	ID        uuid.UUID  `json:"id"`
	Code      string     `json:"code"`   // 租户编码，密钥通过它关联租户
	Name      string     `json:"name"`   // 诊所名称
	Plan      string     `json:"plan"`   // clinic/group
	Status    string     `json:"status"` // active/suspended/expired
	Limits    Limits     `json:"limits"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiredAt *time.Time `json:"expired_at,omitempty"`
}

// Limits 租户配额与能力开关
type Limits struct {
	MaxStaff       int      `json:"max_staff"`       // 单次求解快照的职员上限
	MaxEvents      int      `json:"max_events"`      // 单月待排事件上限
	AllowedPresets []string `json:"allowed_presets"` // 允许的求解预设
	Features       []string `json:"features"`        // 启用的功能
	SolvesPerHour  int      `json:"solves_per_hour"` // 求解频率限制
}

// IsActive 检查租户当前是否可用
func (t *Tenant) IsActive() bool {
	if t.Status != "active" {
		return false
	}
	if t.ExpiredAt != nil && t.ExpiredAt.Before(time.Now()) {
		return false
	}
	return true
}

// HasFeature 检查租户是否启用某功能
func (t *Tenant) HasFeature(feature string) bool {
	for _, f := range t.Limits.Features {
		if f == feature || f == "*" {
			return true
		}
	}
	return false
}

// AllowsPreset 检查租户是否允许某求解预设（空预设表示默认，总是允许）
func (t *Tenant) AllowsPreset(presetID string) bool {
	if presetID == "" {
		return true
	}
	for _, p := range t.Limits.AllowedPresets {
		if p == presetID || p == "*" {
			return true
		}
	}
	return false
}

// CheckSnapshotQuota 对照配额检查求解输入规模
func (t *Tenant) CheckSnapshotQuota(staffCount, eventCount int) error {
	if t.Limits.MaxStaff > 0 && staffCount > t.Limits.MaxStaff {
		return ErrQuotaExceeded
	}
	if t.Limits.MaxEvents > 0 && eventCount > t.Limits.MaxEvents {
		return ErrQuotaExceeded
	}
	return nil
}

// Manager 租户登记表（内存态，启动时从配置装载）
type Manager struct {
	tenants map[string]*Tenant // code -> tenant
	mu      sync.RWMutex
}

// NewManager 创建租户管理器
func NewManager() *Manager {
	return &Manager{tenants: make(map[string]*Tenant)}
}

// Register 登记租户
func (m *Manager) Register(t *Tenant) error {
	if t == nil || t.Code == "" {
		return ErrInvalidTenant
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tenants[t.Code] = t
	return nil
}

// Get 按编码获取可用租户
func (m *Manager) Get(code string) (*Tenant, error) {
	m.mu.RLock()
	t, exists := m.tenants[code]
	m.mu.RUnlock()

	if !exists {
		return nil, ErrTenantNotFound
	}
	if !t.IsActive() {
		return nil, ErrTenantDisabled
	}
	return t, nil
}

// List 列出全部租户（含停用）
func (m *Manager) List() []*Tenant {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		result = append(result, t)
	}
	return result
}

// Remove 移除租户
func (m *Manager) Remove(code string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tenants, code)
}

type tenantContextKey struct{}

// WithTenant 将租户写入请求上下文
func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, t)
}

// FromContext 从请求上下文取出租户
func FromContext(ctx context.Context) (*Tenant, bool) {
	t, ok := ctx.Value(tenantContextKey{}).(*Tenant)
	return t, ok
}

// DefaultLimits 单诊所档位的默认配额
func DefaultLimits() Limits {
	return Limits{
		MaxStaff:       100,
		MaxEvents:      500,
		AllowedPresets: []string{"*"},
		Features:       []string{"solve", "validate", "incremental", "unsat_core", "stats"},
		SolvesPerHour:  60,
	}
}

// DefaultTenant 开发与单租户部署用的默认租户
func DefaultTenant() *Tenant {
	return &Tenant{
		ID:        uuid.New(),
		Code:      "default",
		Name:      "默认诊所",
		Plan:      "clinic",
		Status:    "active",
		Limits:    DefaultLimits(),
		CreatedAt: time.Now(),
	}
}
