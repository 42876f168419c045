// Package builtin 提供门诊排班的内置约束实现
package builtin

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/scheduler/constraint"
)

// DoubleBookingConstraint 同格位重复分配约束
// 一名职员在同一 (日期, 时间块) 至多出现一次
type DoubleBookingConstraint struct {
	*BaseConstraint
}

// NewDoubleBookingConstraint 创建重复分配约束
func NewDoubleBookingConstraint() *DoubleBookingConstraint {
	return &DoubleBookingConstraint{
		BaseConstraint: NewBaseConstraint(
			"重复分配",
			constraint.TypeDoubleBooking,
			constraint.CategoryHard,
			SeverityDuplicate,
		),
	}
}

// Evaluate 评估整个排班网格
func (c *DoubleBookingConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	seen := make(map[model.CellKey]bool)
	for _, a := range ctx.Assignments {
		cell := a.Cell()
		if seen[cell] {
			continue
		}
		seen[cell] = true

		dups := ctx.GetCellAssignments(cell)
		if len(dups) <= 1 {
			continue
		}

		staff := ctx.GetStaff(a.StaffID)
		name := a.StaffID.String()[:8]
		if staff != nil {
			name = staff.Name
		}
		penalty := SeverityDuplicate * (len(dups) - 1)
		totalPenalty += penalty
		v := c.violation(a.Date, a.Block, []uuid.UUID{a.StaffID},
			fmt.Sprintf("职员 %s 在 %s %s 被重复分配 %d 次", name, a.Date, a.Block, len(dups)),
			SeverityDuplicate, penalty)
		v.Suggestion = "移除该格位的多余分配"
		violations = append(violations, v)
	}

	return len(violations) == 0, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配
func (c *DoubleBookingConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.Assignment) (bool, int) {
	for _, existing := range ctx.GetCellAssignments(a.Cell()) {
		if existing.ID != a.ID {
			return false, SeverityDuplicate
		}
	}
	return true, 0
}

// QualificationConstraint 资质约束
// 任务类型与事件的必备资质必须被执行职员全部满足
type QualificationConstraint struct {
	*BaseConstraint
}

// NewQualificationConstraint 创建资质约束
func NewQualificationConstraint() *QualificationConstraint {
	return &QualificationConstraint{
		BaseConstraint: NewBaseConstraint(
			"资质要求",
			constraint.TypeQualification,
			constraint.CategoryHard,
			SeveritySkill,
		),
	}
}

// requiredQualsFor 汇总分配所需的全部资质（任务类型 + 事件 + skill_req 规则）
func (c *QualificationConstraint) requiredQualsFor(ctx *constraint.Context, a *model.Assignment) []string {
	var quals []string
	if tt := ctx.GetTaskType(a.TaskTypeCode); tt != nil {
		quals = append(quals, tt.RequiredQuals...)
	}
	if a.EventID != nil {
		if ev := ctx.GetEvent(*a.EventID); ev != nil {
			quals = append(quals, ev.RequiredQuals...)
		}
	}
	for _, r := range ctx.Rules {
		if r.Skill == nil || r.Skill.TaskCode != a.TaskTypeCode || !r.ActiveOn(a.Date) {
			continue
		}
		quals = append(quals, r.Skill.Qualifications...)
	}
	return quals
}

// Evaluate 评估整个排班网格
func (c *QualificationConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for _, a := range ctx.Assignments {
		if a.TaskTypeCode == "" || a.IsOff() {
			continue
		}
		staff := ctx.GetStaff(a.StaffID)
		if staff == nil {
			continue
		}

		missing := staff.MissingQualifications(c.requiredQualsFor(ctx, a))
		if len(missing) == 0 {
			continue
		}

		totalPenalty += SeveritySkill
		v := c.violation(a.Date, a.Block, []uuid.UUID{a.StaffID},
			fmt.Sprintf("职员 %s 缺少任务 '%s' 所需资质: %v", staff.Name, a.TaskTypeCode, missing),
			SeveritySkill, SeveritySkill)
		v.EventID = a.EventID
		v.Suggestion = "改派具备资质的职员"
		violations = append(violations, v)
	}

	return len(violations) == 0, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配
func (c *QualificationConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.Assignment) (bool, int) {
	if a.TaskTypeCode == "" || a.IsOff() {
		return true, 0
	}
	staff := ctx.GetStaff(a.StaffID)
	if staff == nil {
		return false, SeveritySkill
	}
	if !staff.HasAllQualifications(c.requiredQualsFor(ctx, a)) {
		return false, SeveritySkill
	}
	return true, 0
}

// PartTimeLateConstraint 兼职晚段约束
// 兼职职员不排午后晚段时间块
type PartTimeLateConstraint struct {
	*BaseConstraint
}

// NewPartTimeLateConstraint 创建兼职晚段约束
func NewPartTimeLateConstraint() *PartTimeLateConstraint {
	return &PartTimeLateConstraint{
		BaseConstraint: NewBaseConstraint(
			"兼职晚段限制",
			constraint.TypePartTimeLate,
			constraint.CategoryHard,
			SeverityMinStaff,
		),
	}
}

// Evaluate 评估整个排班网格
func (c *PartTimeLateConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for _, a := range ctx.Assignments {
		if !a.IsWork() {
			continue
		}
		staff := ctx.GetStaff(a.StaffID)
		if staff == nil || staff.CanWorkBlock(a.Block) {
			continue
		}

		totalPenalty += c.Weight()
		v := c.violation(a.Date, a.Block, []uuid.UUID{a.StaffID},
			fmt.Sprintf("兼职职员 %s 不可排晚段 %s", staff.Name, a.Block),
			c.Weight(), c.Weight())
		v.Suggestion = "改排全职职员或移至午前时段"
		violations = append(violations, v)
	}

	return len(violations) == 0, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配
func (c *PartTimeLateConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.Assignment) (bool, int) {
	if !a.IsWork() {
		return true, 0
	}
	staff := ctx.GetStaff(a.StaffID)
	if staff != nil && !staff.CanWorkBlock(a.Block) {
		return false, c.Weight()
	}
	return true, 0
}

// CarDriverConstraint 驾驶能力约束
// 需要车辆的任务只能由可驾驶职员执行
type CarDriverConstraint struct {
	*BaseConstraint
}

// NewCarDriverConstraint 创建驾驶能力约束
func NewCarDriverConstraint() *CarDriverConstraint {
	return &CarDriverConstraint{
		BaseConstraint: NewBaseConstraint(
			"驾驶能力",
			constraint.TypeCarDriver,
			constraint.CategoryHard,
			SeverityTransport,
		),
	}
}

// needsCar 检查分配是否需要车辆
func needsCar(ctx *constraint.Context, a *model.Assignment) bool {
	if tt := ctx.GetTaskType(a.TaskTypeCode); tt != nil && tt.NeedsResource(model.ResourceCar) {
		return true
	}
	if a.EventID != nil {
		if ev := ctx.GetEvent(*a.EventID); ev != nil {
			for _, r := range ev.RequiredResources {
				if r == model.ResourceCar {
					return true
				}
			}
		}
	}
	return false
}

// Evaluate 评估整个排班网格
func (c *CarDriverConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for _, a := range ctx.Assignments {
		if !a.IsWork() || !needsCar(ctx, a) {
			continue
		}
		staff := ctx.GetStaff(a.StaffID)
		if staff == nil || staff.CanDrive {
			continue
		}

		totalPenalty += SeverityTransport
		v := c.violation(a.Date, a.Block, []uuid.UUID{a.StaffID},
			fmt.Sprintf("职员 %s 不可驾驶，无法执行需车辆的任务 '%s'", staff.Name, a.TaskTypeCode),
			SeverityTransport, SeverityTransport)
		v.EventID = a.EventID
		v.Suggestion = "改派可驾驶职员"
		violations = append(violations, v)
	}

	return len(violations) == 0, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配
func (c *CarDriverConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.Assignment) (bool, int) {
	if !a.IsWork() || !needsCar(ctx, a) {
		return true, 0
	}
	staff := ctx.GetStaff(a.StaffID)
	if staff != nil && !staff.CanDrive {
		return false, SeverityTransport
	}
	return true, 0
}

// BicycleConstraint 自行车出行约束（软性）
// 需要自行车的任务由不会骑车的职员执行时给出软性提示
type BicycleConstraint struct {
	*BaseConstraint
}

// NewBicycleConstraint 创建自行车出行约束
func NewBicycleConstraint() *BicycleConstraint {
	return &BicycleConstraint{
		BaseConstraint: NewBaseConstraint(
			"自行车出行",
			constraint.TypeBicyclePreference,
			constraint.CategorySoft,
			SeverityBicycle,
		),
	}
}

// Evaluate 评估整个排班网格
func (c *BicycleConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for _, a := range ctx.Assignments {
		if !a.IsWork() {
			continue
		}
		tt := ctx.GetTaskType(a.TaskTypeCode)
		if tt == nil || !tt.NeedsResource(model.ResourceBicycle) {
			continue
		}
		staff := ctx.GetStaff(a.StaffID)
		if staff == nil || staff.CanBicycle {
			continue
		}

		totalPenalty += SeverityBicycle
		v := c.violation(a.Date, a.Block, []uuid.UUID{a.StaffID},
			fmt.Sprintf("职员 %s 不便骑行，任务 '%s' 建议改派", staff.Name, a.TaskTypeCode),
			SeverityBicycle, SeverityBicycle)
		violations = append(violations, v)
	}

	return true, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配
func (c *BicycleConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.Assignment) (bool, int) {
	if !a.IsWork() {
		return true, 0
	}
	tt := ctx.GetTaskType(a.TaskTypeCode)
	if tt == nil || !tt.NeedsResource(model.ResourceBicycle) {
		return true, 0
	}
	staff := ctx.GetStaff(a.StaffID)
	if staff != nil && !staff.CanBicycle {
		return true, SeverityBicycle
	}
	return true, 0
}

// ResourceCapacityConstraint 资源容量约束
// 每个 (日期, 时间块) 各类资源的并发占用不超过总容量
type ResourceCapacityConstraint struct {
	*BaseConstraint
}

// NewResourceCapacityConstraint 创建资源容量约束
func NewResourceCapacityConstraint() *ResourceCapacityConstraint {
	return &ResourceCapacityConstraint{
		BaseConstraint: NewBaseConstraint(
			"资源容量",
			constraint.TypeResourceCapacity,
			constraint.CategoryHard,
			SeverityResource,
		),
	}
}

// Evaluate 评估整个排班网格
func (c *ResourceCapacityConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	// 聚合每个格位各资源的占用并与容量比较
	type usageKey struct {
		resType string
		slot    model.Slot
	}
	checked := make(map[usageKey]bool)

	for _, a := range ctx.Assignments {
		for resType := range ctx.AssignmentResourceDemand(a) {
			key := usageKey{resType: resType, slot: a.Slot()}
			if checked[key] {
				continue
			}
			checked[key] = true

			used := ctx.ResourceUsage(resType, a.Slot())
			capacity := ctx.ResourceCapacity(resType)
			if used <= capacity {
				continue
			}

			over := used - capacity
			penalty := SeverityResource * over
			totalPenalty += penalty
			v := c.violation(a.Date, a.Block, nil,
				fmt.Sprintf("%s %s 资源 '%s' 需要 %d 份，容量仅 %d", a.Date, a.Block, resType, used, capacity),
				SeverityResource, penalty)
			v.Suggestion = "错开使用该资源的任务时段"
			violations = append(violations, v)
		}
	}

	return len(violations) == 0, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配
func (c *ResourceCapacityConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.Assignment) (bool, int) {
	for resType, count := range ctx.AssignmentResourceDemand(a) {
		if ctx.ResourceUsage(resType, a.Slot())+count > ctx.ResourceCapacity(resType) {
			return false, SeverityResource
		}
	}
	return true, 0
}

// LongDayConstraint 长时间工作日约束（软性）
// 单日工作块达到阈值的安排给予惩罚
type LongDayConstraint struct {
	*BaseConstraint
	maxWorkBlocks int
}

// NewLongDayConstraint 创建长时间工作日约束
func NewLongDayConstraint() *LongDayConstraint {
	return &LongDayConstraint{
		BaseConstraint: NewBaseConstraint(
			"长时间工作日",
			constraint.TypeLongDay,
			constraint.CategorySoft,
			SeverityLongDay,
		),
		maxWorkBlocks: 6,
	}
}

// Evaluate 评估整个排班网格
func (c *LongDayConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	type staffDay struct {
		staffID uuid.UUID
		date    string
	}
	checked := make(map[staffDay]bool)

	for _, a := range ctx.Assignments {
		key := staffDay{staffID: a.StaffID, date: a.Date}
		if checked[key] {
			continue
		}
		checked[key] = true

		blocks := ctx.WorkBlocksOnDay(a.StaffID, a.Date)
		if blocks < c.maxWorkBlocks {
			continue
		}

		staff := ctx.GetStaff(a.StaffID)
		name := a.StaffID.String()[:8]
		if staff != nil {
			name = staff.Name
		}
		totalPenalty += SeverityLongDay
		v := c.violation(a.Date, "", []uuid.UUID{a.StaffID},
			fmt.Sprintf("职员 %s 在 %s 连续工作 %d 块，建议安排休息", name, a.Date, blocks),
			SeverityLongDay, SeverityLongDay)
		v.Suggestion = "在当日安排一个空闲块"
		violations = append(violations, v)
	}

	return true, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配
func (c *LongDayConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.Assignment) (bool, int) {
	if !a.IsWork() {
		return true, 0
	}
	if ctx.WorkBlocksOnDay(a.StaffID, a.Date)+1 >= c.maxWorkBlocks {
		return true, SeverityLongDay
	}
	return true, 0
}
