package tenant

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTenantIsActive(t *testing.T) {
	now := time.Now()
	future := now.Add(24 * time.Hour)
	past := now.Add(-24 * time.Hour)

	tests := []struct {
		name     string
		tenant   *Tenant
		expected bool
	}{
		{"活跃租户", &Tenant{Status: "active"}, true},
		{"暂停租户", &Tenant{Status: "suspended"}, false},
		{"未过期租户", &Tenant{Status: "active", ExpiredAt: &future}, true},
		{"已过期租户", &Tenant{Status: "active", ExpiredAt: &past}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.tenant.IsActive(); result != tt.expected {
				t.Errorf("IsActive() = %v，期望 %v", result, tt.expected)
			}
		})
	}
}

func TestHasFeature(t *testing.T) {
	clinic := &Tenant{Limits: Limits{Features: []string{"solve", "validate"}}}

	if !clinic.HasFeature("solve") {
		t.Error("应启用 solve 功能")
	}
	if clinic.HasFeature("stats") {
		t.Error("不应启用 stats 功能")
	}

	group := &Tenant{Limits: Limits{Features: []string{"*"}}}
	if !group.HasFeature("unsat_core") {
		t.Error("通配符应覆盖所有功能")
	}
}

func TestAllowsPreset(t *testing.T) {
	clinic := &Tenant{Limits: Limits{AllowedPresets: []string{"balanced", "hard_first"}}}

	if !clinic.AllowsPreset("balanced") {
		t.Error("应允许 balanced 预设")
	}
	if clinic.AllowsPreset("soft_max") {
		t.Error("不应允许 soft_max 预设")
	}
	if !clinic.AllowsPreset("") {
		t.Error("空预设表示默认，应总是允许")
	}
}

func TestCheckSnapshotQuota(t *testing.T) {
	clinic := &Tenant{Limits: Limits{MaxStaff: 10, MaxEvents: 20}}

	if err := clinic.CheckSnapshotQuota(10, 20); err != nil {
		t.Errorf("配额内的快照应通过: %v", err)
	}
	if err := clinic.CheckSnapshotQuota(11, 0); err != ErrQuotaExceeded {
		t.Errorf("职员超额应返回 ErrQuotaExceeded，得到 %v", err)
	}
	if err := clinic.CheckSnapshotQuota(0, 21); err != ErrQuotaExceeded {
		t.Errorf("事件超额应返回 ErrQuotaExceeded，得到 %v", err)
	}

	unlimited := &Tenant{}
	if err := unlimited.CheckSnapshotQuota(1000, 1000); err != nil {
		t.Errorf("零值配额表示不限制: %v", err)
	}
}

func TestManagerRegisterAndGet(t *testing.T) {
	manager := NewManager()

	clinic := &Tenant{
		ID:     uuid.New(),
		Code:   "sakura",
		Name:   "樱花门诊",
		Status: "active",
	}
	if err := manager.Register(clinic); err != nil {
		t.Errorf("登记失败: %v", err)
	}

	got, err := manager.Get("sakura")
	if err != nil {
		t.Errorf("获取失败: %v", err)
	}
	if got.Code != "sakura" {
		t.Errorf("取到了错误的租户: %v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("登记时应补齐创建时间")
	}

	if _, err := manager.Get("nonexistent"); err != ErrTenantNotFound {
		t.Errorf("期望 ErrTenantNotFound，得到 %v", err)
	}
	if err := manager.Register(&Tenant{}); err != ErrInvalidTenant {
		t.Errorf("无编码租户应被拒绝，得到 %v", err)
	}
}

func TestManagerRejectsDisabledTenant(t *testing.T) {
	manager := NewManager()
	manager.Register(&Tenant{Code: "closed", Status: "suspended"})

	if _, err := manager.Get("closed"); err != ErrTenantDisabled {
		t.Errorf("期望 ErrTenantDisabled，得到 %v", err)
	}
}

func TestTenantContext(t *testing.T) {
	clinic := &Tenant{Code: "sakura"}
	ctx := WithTenant(context.Background(), clinic)

	got, ok := FromContext(ctx)
	if !ok || got.Code != "sakura" {
		t.Error("上下文中应能取出租户")
	}

	if _, ok := FromContext(context.Background()); ok {
		t.Error("空上下文不应有租户")
	}
}

func TestDefaultTenant(t *testing.T) {
	clinic := DefaultTenant()

	if clinic.Code != "default" || clinic.Status != "active" {
		t.Errorf("默认租户应为活跃的 default，得到 %s/%s", clinic.Code, clinic.Status)
	}
	if !clinic.AllowsPreset("balanced") {
		t.Error("默认租户应允许所有预设")
	}
	if clinic.Limits.MaxStaff != 100 {
		t.Errorf("期望默认职员配额 100，得到 %d", clinic.Limits.MaxStaff)
	}
}
