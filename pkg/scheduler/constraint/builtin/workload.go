// Package builtin 提供门诊排班的内置约束实现
package builtin

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/scheduler/constraint"
)

// WorkloadBalanceConstraint 工作量均衡约束（软性，权重来自预设）
// 以职员工作块数偏离均值的绝对差计入惩罚
type WorkloadBalanceConstraint struct {
	*BaseConstraint
}

// NewWorkloadBalanceConstraint 创建工作量均衡约束
func NewWorkloadBalanceConstraint(weight int) *WorkloadBalanceConstraint {
	return &WorkloadBalanceConstraint{
		BaseConstraint: NewBaseConstraint(
			"工作量均衡",
			constraint.TypeWorkloadBalance,
			constraint.CategorySoft,
			weight,
		),
	}
}

// workBlockCounts 统计在职职员的工作块数
func workBlockCounts(ctx *constraint.Context) map[uuid.UUID]int {
	counts := make(map[uuid.UUID]int)
	for _, s := range ctx.Snapshot.ActiveStaffs() {
		counts[s.ID] = 0
	}
	for _, a := range ctx.Assignments {
		if a.IsWork() {
			if _, ok := counts[a.StaffID]; ok {
				counts[a.StaffID]++
			}
		}
	}
	return counts
}

// Evaluate 评估整个排班网格
func (c *WorkloadBalanceConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	counts := workBlockCounts(ctx)
	if len(counts) < 2 {
		return true, 0, nil
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	mean := float64(total) / float64(len(counts))

	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for staffID, n := range counts {
		dev := float64(n) - mean
		if dev < 0 {
			dev = -dev
		}
		// 偏差在一块以内视为均衡
		if dev <= 1.0 {
			continue
		}

		penalty := c.Weight() * int(dev)
		totalPenalty += penalty

		staff := ctx.GetStaff(staffID)
		name := staffID.String()[:8]
		if staff != nil {
			name = staff.Name
		}
		v := c.violation("", "", []uuid.UUID{staffID},
			fmt.Sprintf("职员 %s 工作量 %d 块，偏离均值 %.1f 块", name, n, mean),
			c.Weight(), penalty)
		violations = append(violations, v)
	}

	return true, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配（偏向负载低的职员）
func (c *WorkloadBalanceConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.Assignment) (bool, int) {
	if !a.IsWork() {
		return true, 0
	}
	counts := workBlockCounts(ctx)
	n, ok := counts[a.StaffID]
	if !ok || len(counts) < 2 {
		return true, 0
	}

	total := 0
	for _, v := range counts {
		total += v
	}
	mean := float64(total) / float64(len(counts))
	if float64(n)+1 > mean+1.0 {
		return true, c.Weight()
	}
	return true, 0
}

// DisruptionConstraint 变更扰动约束（增量重排专用，软性）
// 与既有方案不同的格位按块计入惩罚，抑制不必要的大范围改动
type DisruptionConstraint struct {
	*BaseConstraint
}

// NewDisruptionConstraint 创建变更扰动约束
func NewDisruptionConstraint(weight int) *DisruptionConstraint {
	return &DisruptionConstraint{
		BaseConstraint: NewBaseConstraint(
			"变更扰动",
			constraint.TypeDisruption,
			constraint.CategorySoft,
			weight,
		),
	}
}

// Evaluate 评估整个排班网格
func (c *DisruptionConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	if len(ctx.PriorCells) == 0 {
		return true, 0, nil
	}

	current := make(map[model.CellKey]string, len(ctx.Assignments))
	for _, a := range ctx.Assignments {
		current[a.Cell()] = a.TaskTypeCode
	}

	changed := 0
	for cell, prior := range ctx.PriorCells {
		if current[cell] != prior {
			changed++
		}
	}
	for cell := range current {
		if _, existed := ctx.PriorCells[cell]; !existed {
			changed++
		}
	}

	if changed == 0 {
		return true, 0, nil
	}

	penalty := c.Weight() * changed
	v := c.violation("", "", nil,
		fmt.Sprintf("与既有方案相比改动 %d 个格位", changed),
		c.Weight(), penalty)
	return true, penalty, []constraint.ViolationDetail{v}
}

// EvaluateAssignment 评估单个分配
func (c *DisruptionConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.Assignment) (bool, int) {
	if len(ctx.PriorCells) == 0 {
		return true, 0
	}
	if prior, ok := ctx.PriorCells[a.Cell()]; !ok || prior != a.TaskTypeCode {
		return true, c.Weight()
	}
	return true, 0
}

// StaffingLevelConstraint 基本人数充足约束（软性，权重来自预设的缺口权重）
// 工作日内任务主数据的 MinStaff 未满足时按缺口人数计入惩罚
type StaffingLevelConstraint struct {
	*BaseConstraint
}

// NewStaffingLevelConstraint 创建基本人数充足约束
func NewStaffingLevelConstraint(weight int) *StaffingLevelConstraint {
	return &StaffingLevelConstraint{
		BaseConstraint: NewBaseConstraint(
			"基本人数充足",
			constraint.TypeHeadcount,
			constraint.CategorySoft,
			weight,
		),
	}
}

// staffingBlocks 返回任务的巡检时间块（主数据未指定时按上午/下午）
func staffingBlocks(task *model.TaskType) []model.TimeBlock {
	if len(task.DefaultBlocks) > 0 {
		return task.DefaultBlocks
	}
	return []model.TimeBlock{model.BlockAM, model.BlockPM}
}

// Evaluate 评估整个排班网格
func (c *StaffingLevelConstraint) Evaluate(ctx *constraint.Context) (bool, int, []constraint.ViolationDetail) {
	var violations []constraint.ViolationDetail
	totalPenalty := 0

	for _, date := range ctx.Snapshot.Dates() {
		if model.IsWeekend(date) {
			continue
		}
		for code, task := range ctx.Snapshot.TaskTypes {
			if !task.IsActive || task.MinStaff <= 0 {
				continue
			}
			for _, block := range staffingBlocks(task) {
				count := ctx.TaskSlotCount(code, model.Slot{Date: date, Block: block})
				if count >= task.MinStaff {
					continue
				}
				missing := task.MinStaff - count
				penalty := c.Weight() * missing
				totalPenalty += penalty
				v := c.violation(date, block, nil,
					fmt.Sprintf("%s 的 %s 时段任务 '%s' 缺 %d 人", date, block, task.DisplayName, missing),
					c.Weight(), penalty)
				violations = append(violations, v)
			}
		}
	}

	return true, totalPenalty, violations
}

// EvaluateAssignment 评估单个分配（填补缺口的分配降低代价）
func (c *StaffingLevelConstraint) EvaluateAssignment(ctx *constraint.Context, a *model.Assignment) (bool, int) {
	return true, 0
}
