// Package validator 提供排班校验：只评估既有分配，不做任何搜索
package validator

import (
	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/rulecompiler"
	"github.com/clinicshift/clinicshift/pkg/scheduler/cmodel"
	"github.com/clinicshift/clinicshift/pkg/scheduler/constraint"
	"github.com/clinicshift/clinicshift/pkg/scheduler/constraint/builtin"
	"github.com/clinicshift/clinicshift/pkg/violation"
)

// Validator 排班校验器
// 约束集与求解器一致，校验结论与求解评估保持可比
type Validator struct {
	rules   []*rulecompiler.CompiledRule
	manager *constraint.Manager
}

// New 创建校验器
func New(rules []*rulecompiler.CompiledRule, preset cmodel.Preset) *Validator {
	manager := constraint.NewManager()
	manager.RegisterAll(builtin.BuildAll(rules,
		preset.WorkloadWeight, preset.ShortfallWeight, preset.EventScale, 0))
	return &Validator{rules: rules, manager: manager}
}

// Report 校验报告
type Report struct {
	Valid      bool              `json:"valid"` // 无硬性违反
	Objective  int               `json:"objective_value"`
	Violations []model.Violation `json:"violations"`
	// Restricted 为变更格位提示校验（违反已按相关性过滤）
	Restricted bool `json:"restricted,omitempty"`
}

// Validate 全量校验快照中的分配
// Valid 与报告的违反集合保持一致：锁定格位内的违反既不报告也不影响结论
func (v *Validator) Validate(snapshot *model.Snapshot) *Report {
	result, locked := v.evaluate(snapshot)
	violations := violation.Extract(result, locked)
	return &Report{
		Valid:      !hasHardViolation(violations),
		Objective:  result.TotalPenalty,
		Violations: violations,
	}
}

// ValidateCells 变更格位提示校验
// 约束仍在完整网格上评估（人数、资源等约束天然跨格位），
// 但输出只保留与变更格位相关的违反
func (v *Validator) ValidateCells(snapshot *model.Snapshot, changed []model.CellKey) *Report {
	if len(changed) == 0 {
		return v.Validate(snapshot)
	}

	result, locked := v.evaluate(snapshot)
	all := violation.Extract(result, locked)

	var filtered []model.Violation
	for i := range all {
		if touchesAny(&all[i], changed) {
			filtered = append(filtered, all[i])
		}
	}

	// Valid 看全网格（仅剔除锁定格位），不受相关性过滤影响
	return &Report{
		Valid:      !hasHardViolation(all),
		Objective:  result.TotalPenalty,
		Violations: filtered,
		Restricted: true,
	}
}

// hasHardViolation 检查违反集合中是否存在硬性违反
func hasHardViolation(violations []model.Violation) bool {
	for i := range violations {
		if violations[i].IsHard() {
			return true
		}
	}
	return false
}

func (v *Validator) evaluate(snapshot *model.Snapshot) (*constraint.Result, map[model.CellKey]bool) {
	cctx := constraint.NewContext(snapshot, v.rules)
	cctx.SetAssignments(snapshot.Assignments)

	locked := make(map[model.CellKey]bool)
	for _, a := range snapshot.LockedAssignments() {
		locked[a.Cell()] = true
	}
	return v.manager.Evaluate(cctx), locked
}

// touchesAny 检查违反是否与任一变更格位相关
// 相关性：同 (日期, 时间块)、同日同职员，或无定位信息但涉及该职员
func touchesAny(vio *model.Violation, changed []model.CellKey) bool {
	for _, cell := range changed {
		if vio.Date != "" && vio.Date != cell.Date {
			continue
		}
		if vio.Block != "" && vio.Date == cell.Date && vio.Block == cell.Block {
			return true
		}
		for _, staffID := range vio.StaffIDs {
			if staffID == cell.StaffID {
				return true
			}
		}
		if vio.Date == cell.Date && vio.Block == "" && len(vio.StaffIDs) == 0 {
			// 日级别的汇总违反（人数缺口等）
			return true
		}
	}
	return false
}
