// Package builtin 提供门诊排班的内置约束实现
package builtin

import (
	"fmt"

	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/scheduler/constraint"
)

// RequiredEventConstraint 必须事件约束
// 优先级 required 的可调度事件必须恰好排入一次；任何事件不可排入多次
type RequiredEventConstraint struct {
	*BaseConstraint
}

// NewRequiredEventConstraint 创建必须事件约束
func NewRequiredEventConstraint() *RequiredEventConstraint {
	return &RequiredEventConstraint{
		BaseConstraint: NewBaseConstraint(
			"必须事件排入",
			constraint.TypeRequiredEvent,
			constraint.CategoryHard,
			SeverityRequiredEvent,
		),
	}
}

// placementDates 返回事件排入的去重日期
func placementDates(placements []*model.Assignment) map[string]bool {
	dates := make(map[string]bool)
	for _, a := range placements {
		dates[a.Date] = true
	}
	return dates
}

// Evaluate 评估整个排班网格
func (c *RequiredEventConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for _, ev := range ctx.ScopedEvents() {
		placements := ctx.EventPlacements(ev.ID)
		dates := placementDates(placements)

		if len(dates) > 1 {
			totalPenalty += SeverityRequiredEvent
			eid := ev.ID
			v := c.violation("", "", nil,
				fmt.Sprintf("事件 '%s' 被排入 %d 个不同日期，至多一次", ev.Label(), len(dates)),
				SeverityRequiredEvent, SeverityRequiredEvent)
			v.EventID = &eid
			violations = append(violations, v)
			continue
		}

		if ev.IsRequired() && len(placements) == 0 {
			totalPenalty += SeverityRequiredEvent
			eid := ev.ID
			v := c.violation("", "", nil,
				fmt.Sprintf("必须事件 '%s' 未排入", ev.Label()),
				SeverityRequiredEvent, SeverityRequiredEvent)
			v.EventID = &eid
			v.Suggestion = "放宽事件时间约束或增加可用职员"
			violations = append(violations, v)
		}
	}

	return len(violations) == 0, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配
// 单分配视角只能检查重复排入（未排入是网格级性质）
func (c *RequiredEventConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.Assignment) (bool, int) {
	if a.EventID == nil {
		return true, 0
	}
	for _, existing := range ctx.EventPlacements(*a.EventID) {
		if existing.ID != a.ID && existing.Date != a.Date {
			return false, SeverityRequiredEvent
		}
	}
	return true, 0
}

// UnplacedEventConstraint 非必须事件未排入约束（软性）
// 未排入的 high/medium/low 事件按优先级档位计入软惩罚
type UnplacedEventConstraint struct {
	*BaseConstraint
	scale float64 // 预设的事件惩罚倍率
}

// NewUnplacedEventConstraint 创建非必须事件未排入约束
func NewUnplacedEventConstraint(scale float64) *UnplacedEventConstraint {
	if scale <= 0 {
		scale = 1.0
	}
	return &UnplacedEventConstraint{
		BaseConstraint: NewBaseConstraint(
			"事件未排入",
			constraint.TypeUnplacedEvent,
			constraint.CategorySoft,
			model.EventPriorityPenalty[model.PriorityHigh],
		),
		scale: scale,
	}
}

// Evaluate 评估整个排班网格
func (c *UnplacedEventConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for _, ev := range ctx.ScopedEvents() {
		if ev.IsRequired() {
			continue
		}
		if len(ctx.EventPlacements(ev.ID)) > 0 {
			continue
		}

		penalty := int(float64(ev.UnmetPenalty()) * c.scale)
		totalPenalty += penalty
		eid := ev.ID
		v := c.violation("", "", nil,
			fmt.Sprintf("事件 '%s' (优先级 %s) 未排入", ev.Label(), ev.Priority),
			penalty, penalty)
		v.EventID = &eid
		v.Suggestion = "扩大候选时段或降低同期任务密度"
		violations = append(violations, v)
	}

	return true, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配（排入事件降低未排惩罚，无单分配代价）
func (c *UnplacedEventConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.Assignment) (bool, int) {
	return true, 0
}
