// Package builtin 提供门诊排班的内置约束实现
package builtin

import (
	"github.com/clinicshift/clinicshift/pkg/rulecompiler"
	"github.com/clinicshift/clinicshift/pkg/scheduler/constraint"
)

// BuildStructural 创建与规则无关的结构性约束
// eventScale 是预设给定的事件惩罚倍率
func BuildStructural(eventScale float64) []constraint.Constraint {
	return []constraint.Constraint{
		NewDoubleBookingConstraint(),
		NewQualificationConstraint(),
		NewPartTimeLateConstraint(),
		NewCarDriverConstraint(),
		NewBicycleConstraint(),
		NewResourceCapacityConstraint(),
		NewRequiredEventConstraint(),
		NewUnplacedEventConstraint(eventScale),
		NewLongDayConstraint(),
	}
}

// FromRules 将编译规则转换为约束实例
// skill_req 与 resource_req 不单独成约束：资质并入 QualificationConstraint 的
// 规则汇总，资源占用经 TaskType 进入 ResourceCapacityConstraint 的用量索引
func FromRules(rules []*rulecompiler.CompiledRule) []constraint.Constraint {
	var constraints []constraint.Constraint
	for _, r := range rules {
		switch {
		case r.Headcount != nil:
			constraints = append(constraints, NewHeadcountRuleConstraint(r))
		case r.Availability != nil:
			constraints = append(constraints, NewAvailabilityRuleConstraint(r))
		case r.Preference != nil:
			constraints = append(constraints, NewPreferenceRuleConstraint(r))
		case r.Recurring != nil:
			constraints = append(constraints, NewRecurringRuleConstraint(r))
		case r.SpecificDate != nil:
			constraints = append(constraints, NewSpecificDateRuleConstraint(r))
		}
	}
	return constraints
}

// BuildAll 组装完整约束集
// workloadWeight、shortfallWeight 与 eventScale 来自求解预设；
// disruptionWeight>0 时启用扰动约束（增量重排）
func BuildAll(rules []*rulecompiler.CompiledRule, workloadWeight, shortfallWeight int, eventScale float64, disruptionWeight int) []constraint.Constraint {
	constraints := BuildStructural(eventScale)
	constraints = append(constraints, FromRules(rules)...)
	if workloadWeight > 0 {
		constraints = append(constraints, NewWorkloadBalanceConstraint(workloadWeight))
	}
	if shortfallWeight > 0 {
		constraints = append(constraints, NewStaffingLevelConstraint(shortfallWeight))
	}
	if disruptionWeight > 0 {
		constraints = append(constraints, NewDisruptionConstraint(disruptionWeight))
	}
	return constraints
}
