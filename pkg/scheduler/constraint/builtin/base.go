// Package builtin 提供门诊排班的内置约束实现
package builtin

import (
	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/scheduler/constraint"
)

// 硬性违反的严重度等级（数值越大越严重）
const (
	SeverityDuplicate     = 1000 // 同格位重复分配
	SeverityRequiredEvent = 950  // 必须事件未排入
	SeveritySkill         = 900  // 资质不足
	SeverityResource      = 850  // 资源容量超限
	SeverityTransport     = 800  // 出行能力不足（驾驶）
	SeverityMinStaff      = 700  // 在岗人数不足
	SeverityBicycle       = 500  // 自行车出行（软性提示）
	SeverityLongDay       = 400  // 单日连续工作块过多
)

// BaseConstraint 约束基类
type BaseConstraint struct {
	name     string
	typ      constraint.Type
	category constraint.Category
	weight   int
	ruleID   *uuid.UUID
}

// NewBaseConstraint 创建基础约束
func NewBaseConstraint(name string, typ constraint.Type, cat constraint.Category, weight int) *BaseConstraint {
	return &BaseConstraint{
		name:     name,
		typ:      typ,
		category: cat,
		weight:   weight,
	}
}

// WithRule 绑定来源规则 ID（规则派生约束在违反详情中回指规则）
func (c *BaseConstraint) WithRule(ruleID uuid.UUID) *BaseConstraint {
	c.ruleID = &ruleID
	return c
}

// Name 返回约束名称
func (c *BaseConstraint) Name() string { return c.name }

// Type 返回约束类型
func (c *BaseConstraint) Type() constraint.Type { return c.typ }

// Category 返回约束类别
func (c *BaseConstraint) Category() constraint.Category { return c.category }

// Weight 返回约束权重
func (c *BaseConstraint) Weight() int { return c.weight }

// RuleID 返回来源规则 ID（结构性约束为 nil）
func (c *BaseConstraint) RuleID() *uuid.UUID { return c.ruleID }

// violation 创建违反详情
func (c *BaseConstraint) violation(date string, block model.TimeBlock, staffIDs []uuid.UUID, message string, severity, penalty int) constraint.ViolationDetail {
	return constraint.ViolationDetail{
		ConstraintType: c.typ,
		ConstraintName: c.name,
		CheckType:      string(c.typ),
		StaffIDs:       staffIDs,
		Date:           date,
		Block:          block,
		Message:        message,
		Severity:       severity,
		Penalty:        penalty,
		RuleID:         c.ruleID,
	}
}

// Evaluate 默认评估实现（子类需覆盖）
func (c *BaseConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	return true, 0, nil
}

// EvaluateAssignment 默认分配评估实现（子类需覆盖）
func (c *BaseConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.Assignment) (bool, int) {
	return true, 0
}
