// Package builtin 提供门诊排班的内置约束实现
package builtin

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/rulecompiler"
	"github.com/clinicshift/clinicshift/pkg/scheduler/constraint"
)

// ruleConstraintName 规则派生约束的唯一名称
func ruleConstraintName(kind string, ruleID uuid.UUID) string {
	return fmt.Sprintf("%s[%s]", kind, ruleID.String()[:8])
}

// ruleCategory 规则类别转约束类别
func ruleCategory(meta rulecompiler.RuleMeta) constraint.Category {
	if meta.IsHard() {
		return constraint.CategoryHard
	}
	return constraint.CategorySoft
}

// HeadcountRuleConstraint 人数规则约束
// 规则适用的每个格位，任务在岗人数须落在 [min, max] 区间
type HeadcountRuleConstraint struct {
	*BaseConstraint
	spec *rulecompiler.HeadcountSpec
	meta rulecompiler.RuleMeta
}

// NewHeadcountRuleConstraint 从编译规则创建人数约束
func NewHeadcountRuleConstraint(rule *rulecompiler.CompiledRule) *HeadcountRuleConstraint {
	weight := rule.Meta.Weight
	if rule.Meta.IsHard() {
		weight = SeverityMinStaff
	}
	base := NewBaseConstraint(
		ruleConstraintName("人数规则", rule.Meta.RuleID),
		constraint.TypeHeadcount,
		ruleCategory(rule.Meta),
		weight,
	).WithRule(rule.Meta.RuleID)
	return &HeadcountRuleConstraint{BaseConstraint: base, spec: rule.Headcount, meta: rule.Meta}
}

// Evaluate 评估整个排班网格
func (c *HeadcountRuleConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	blocks := c.spec.Blocks
	if len(blocks) == 0 {
		blocks = model.WorkBlocks
	}

	for _, date := range ctx.Snapshot.Dates() {
		if c.meta.SuspendedOn(date) {
			continue
		}
		for _, block := range blocks {
			if !c.spec.AppliesTo(date, block) {
				continue
			}
			slot := model.Slot{Date: date, Block: block}
			count := ctx.TaskSlotCount(c.spec.TaskCode, slot)

			var msg string
			var shortfall int
			switch {
			case count < c.spec.MinStaff:
				shortfall = c.spec.MinStaff - count
				msg = fmt.Sprintf("%s %s 任务 '%s' 在岗 %d 人，少于要求 %d 人",
					date, block, c.spec.TaskCode, count, c.spec.MinStaff)
			case c.spec.MaxStaff > 0 && count > c.spec.MaxStaff:
				shortfall = count - c.spec.MaxStaff
				msg = fmt.Sprintf("%s %s 任务 '%s' 在岗 %d 人，超出上限 %d 人",
					date, block, c.spec.TaskCode, count, c.spec.MaxStaff)
			default:
				continue
			}

			penalty := c.Weight() * shortfall
			totalPenalty += penalty
			v := c.violation(date, block, nil, msg, c.Weight(), penalty)
			v.Suggestion = "调整该时段任务 '" + c.spec.TaskCode + "' 的人员安排"
			violations = append(violations, v)
		}
	}

	return len(violations) == 0, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配（仅上限侧可增量检查）
func (c *HeadcountRuleConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.Assignment) (bool, int) {
	if a.TaskTypeCode != c.spec.TaskCode || c.meta.SuspendedOn(a.Date) {
		return true, 0
	}
	if !c.spec.AppliesTo(a.Date, a.Block) {
		return true, 0
	}
	if c.spec.MaxStaff > 0 && ctx.TaskSlotCount(c.spec.TaskCode, a.Slot())+1 > c.spec.MaxStaff {
		if c.Category() == constraint.CategoryHard {
			return false, c.Weight()
		}
		return true, c.Weight()
	}
	return true, 0
}

// AvailabilityRuleConstraint 可用性限制规则约束
// 职员在限制覆盖的格位不得有工作分配
type AvailabilityRuleConstraint struct {
	*BaseConstraint
	spec *rulecompiler.AvailabilitySpec
	meta rulecompiler.RuleMeta
}

// NewAvailabilityRuleConstraint 从编译规则创建可用性约束
func NewAvailabilityRuleConstraint(rule *rulecompiler.CompiledRule) *AvailabilityRuleConstraint {
	base := NewBaseConstraint(
		ruleConstraintName("可用性限制", rule.Meta.RuleID),
		constraint.TypeAvailability,
		ruleCategory(rule.Meta),
		rule.Meta.Weight,
	).WithRule(rule.Meta.RuleID)
	return &AvailabilityRuleConstraint{BaseConstraint: base, spec: rule.Availability, meta: rule.Meta}
}

// Evaluate 评估整个排班网格
func (c *AvailabilityRuleConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for _, a := range ctx.GetStaffAssignments(c.spec.StaffID) {
		if !a.IsWork() || c.meta.SuspendedOn(a.Date) {
			continue
		}
		if !c.spec.Covers(a.Date, a.Block) {
			continue
		}

		staff := ctx.GetStaff(a.StaffID)
		name := a.StaffID.String()[:8]
		if staff != nil {
			name = staff.Name
		}
		totalPenalty += c.Weight()
		v := c.violation(a.Date, a.Block, []uuid.UUID{a.StaffID},
			fmt.Sprintf("职员 %s 在 %s %s 不可排班", name, a.Date, a.Block),
			c.Weight(), c.Weight())
		v.Suggestion = "改派其他职员"
		violations = append(violations, v)
	}

	valid := c.Category() != constraint.CategoryHard || len(violations) == 0
	return valid, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配
func (c *AvailabilityRuleConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.Assignment) (bool, int) {
	if a.StaffID != c.spec.StaffID || !a.IsWork() || c.meta.SuspendedOn(a.Date) {
		return true, 0
	}
	if c.spec.Covers(a.Date, a.Block) {
		if c.Category() == constraint.CategoryHard {
			return false, c.Weight()
		}
		return true, c.Weight()
	}
	return true, 0
}

// PreferenceRuleConstraint 偏好规则约束（软性）
// avoid=true 时覆盖格位上的工作分配计入惩罚；否则覆盖格位空置计入惩罚
type PreferenceRuleConstraint struct {
	*BaseConstraint
	spec *rulecompiler.PreferenceSpec
	meta rulecompiler.RuleMeta
}

// NewPreferenceRuleConstraint 从编译规则创建偏好约束
func NewPreferenceRuleConstraint(rule *rulecompiler.CompiledRule) *PreferenceRuleConstraint {
	base := NewBaseConstraint(
		ruleConstraintName("偏好规则", rule.Meta.RuleID),
		constraint.TypePreference,
		constraint.CategorySoft,
		rule.Meta.Weight,
	).WithRule(rule.Meta.RuleID)
	return &PreferenceRuleConstraint{BaseConstraint: base, spec: rule.Preference, meta: rule.Meta}
}

// matches 检查分配是否命中偏好范围
func (c *PreferenceRuleConstraint) matches(a *model.Assignment) bool {
	if a.StaffID != c.spec.StaffID || !a.IsWork() {
		return false
	}
	if c.spec.TaskCode != "" && a.TaskTypeCode != c.spec.TaskCode {
		return false
	}
	return c.spec.Covers(a.Date, a.Block)
}

// Evaluate 评估整个排班网格
func (c *PreferenceRuleConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	staff := ctx.GetStaff(c.spec.StaffID)
	name := c.spec.StaffID.String()[:8]
	if staff != nil {
		name = staff.Name
	}

	if c.spec.Avoid {
		// 希望避开：命中的分配逐条惩罚
		for _, a := range ctx.GetStaffAssignments(c.spec.StaffID) {
			if c.meta.SuspendedOn(a.Date) || !c.matches(a) {
				continue
			}
			totalPenalty += c.Weight()
			v := c.violation(a.Date, a.Block, []uuid.UUID{a.StaffID},
				fmt.Sprintf("职员 %s 希望避开 %s %s 的安排", name, a.Date, a.Block),
				c.Weight(), c.Weight())
			violations = append(violations, v)
		}
	} else {
		// 希望安排：覆盖日期内没有任何命中分配时惩罚一次
		hit := false
		for _, a := range ctx.GetStaffAssignments(c.spec.StaffID) {
			if !c.meta.SuspendedOn(a.Date) && c.matches(a) {
				hit = true
				break
			}
		}
		if !hit {
			totalPenalty += c.Weight()
			v := c.violation("", "", []uuid.UUID{c.spec.StaffID},
				fmt.Sprintf("职员 %s 的排班意愿未满足", name),
				c.Weight(), c.Weight())
			violations = append(violations, v)
		}
	}

	return true, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配
func (c *PreferenceRuleConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.Assignment) (bool, int) {
	if c.meta.SuspendedOn(a.Date) {
		return true, 0
	}
	if c.spec.Avoid && c.matches(a) {
		return true, c.Weight()
	}
	return true, 0
}

// RecurringRuleConstraint 周期规则约束
// 规则命中的每个日期，任务须在指定时段有足够人数开展
type RecurringRuleConstraint struct {
	*BaseConstraint
	spec *rulecompiler.RecurringSpec
	meta rulecompiler.RuleMeta
}

// NewRecurringRuleConstraint 从编译规则创建周期约束
func NewRecurringRuleConstraint(rule *rulecompiler.CompiledRule) *RecurringRuleConstraint {
	base := NewBaseConstraint(
		ruleConstraintName("周期规则", rule.Meta.RuleID),
		constraint.TypeRecurring,
		ruleCategory(rule.Meta),
		rule.Meta.Weight,
	).WithRule(rule.Meta.RuleID)
	return &RecurringRuleConstraint{BaseConstraint: base, spec: rule.Recurring, meta: rule.Meta}
}

// occurrenceBlocks 返回规则要求的时段（未指定时默认上午）
func (c *RecurringRuleConstraint) occurrenceBlocks() []model.TimeBlock {
	if len(c.spec.Blocks) > 0 {
		return c.spec.Blocks
	}
	return []model.TimeBlock{model.BlockAM}
}

// Evaluate 评估整个排班网格
func (c *RecurringRuleConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for _, date := range ctx.Snapshot.Dates() {
		if c.meta.SuspendedOn(date) || !c.spec.OccursOn(date) {
			continue
		}
		for _, block := range c.occurrenceBlocks() {
			slot := model.Slot{Date: date, Block: block}
			count := ctx.TaskSlotCount(c.spec.TaskCode, slot)
			if count >= c.spec.StaffCount {
				continue
			}

			shortfall := c.spec.StaffCount - count
			penalty := c.Weight() * shortfall
			totalPenalty += penalty
			v := c.violation(date, block, nil,
				fmt.Sprintf("%s %s 周期任务 '%s' 在岗 %d 人，要求 %d 人",
					date, block, c.spec.TaskCode, count, c.spec.StaffCount),
				c.Weight(), penalty)
			v.Suggestion = "为该时段补排任务 '" + c.spec.TaskCode + "'"
			violations = append(violations, v)
		}
	}

	valid := c.Category() != constraint.CategoryHard || len(violations) == 0
	return valid, totalPenalty, violations
}

// SpecificDateRuleConstraint 指定日期规则约束
type SpecificDateRuleConstraint struct {
	*BaseConstraint
	spec *rulecompiler.SpecificDateSpec
	meta rulecompiler.RuleMeta
}

// NewSpecificDateRuleConstraint 从编译规则创建指定日期约束
func NewSpecificDateRuleConstraint(rule *rulecompiler.CompiledRule) *SpecificDateRuleConstraint {
	base := NewBaseConstraint(
		ruleConstraintName("指定日期规则", rule.Meta.RuleID),
		constraint.TypeSpecificDate,
		ruleCategory(rule.Meta),
		rule.Meta.Weight,
	).WithRule(rule.Meta.RuleID)
	return &SpecificDateRuleConstraint{BaseConstraint: base, spec: rule.SpecificDate, meta: rule.Meta}
}

// Evaluate 评估整个排班网格
func (c *SpecificDateRuleConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	if c.meta.SuspendedOn(c.spec.Date) {
		return true, 0, nil
	}

	blocks := c.spec.Blocks
	if len(blocks) == 0 {
		blocks = []model.TimeBlock{model.BlockAM}
	}

	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for _, block := range blocks {
		slot := model.Slot{Date: c.spec.Date, Block: block}
		count := ctx.TaskSlotCount(c.spec.TaskCode, slot)
		if count >= c.spec.StaffCount {
			continue
		}

		shortfall := c.spec.StaffCount - count
		penalty := c.Weight() * shortfall
		totalPenalty += penalty
		v := c.violation(c.spec.Date, block, nil,
			fmt.Sprintf("%s %s 任务 '%s' 在岗 %d 人，要求 %d 人",
				c.spec.Date, block, c.spec.TaskCode, count, c.spec.StaffCount),
			c.Weight(), penalty)
		violations = append(violations, v)
	}

	valid := c.Category() != constraint.CategoryHard || len(violations) == 0
	return valid, totalPenalty, violations
}
