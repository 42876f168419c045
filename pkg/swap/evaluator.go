// Package swap 提供格位换班评估与候补推荐
// 评估复用校验器的约束集，结论与求解评估保持可比
package swap

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/rulecompiler"
	"github.com/clinicshift/clinicshift/pkg/scheduler/cmodel"
	"github.com/clinicshift/clinicshift/pkg/validator"
)

// Evaluator 换班评估器
type Evaluator struct {
	rules     []*rulecompiler.CompiledRule
	validator *validator.Validator
}

// NewEvaluator 创建换班评估器
func NewEvaluator(rules []*rulecompiler.CompiledRule, preset cmodel.Preset) *Evaluator {
	return &Evaluator{
		rules:     rules,
		validator: validator.New(rules, preset),
	}
}

// Request 换班请求
type Request struct {
	Source      *model.Assignment `json:"source"`
	TargetStaff *model.Staff      `json:"target_staff"`
	// Counterpart 互换场景下目标职员让出的格位，为空时表示单向接替
	Counterpart *model.Assignment `json:"counterpart,omitempty"`
}

// Evaluation 换班评估结果
type Evaluation struct {
	Feasible       bool    `json:"feasible"`
	ObjectiveDelta int     `json:"objective_delta"` // 负数为改善
	Issues         []Issue `json:"issues"`
	Impact         *Impact `json:"impact"`
	Recommendation string  `json:"recommendation"`
}

// Issue 换班问题
type Issue struct {
	Type     string `json:"type"`
	Severity string `json:"severity"` // error/warning
	Message  string `json:"message"`
}

// Impact 换班对双方工时的影响
type Impact struct {
	SourceHoursChange int `json:"source_hours_change"`
	TargetHoursChange int `json:"target_hours_change"`
	NewHardViolations int `json:"new_hard_violations"`
}

// Evaluate 评估换班可行性
func (e *Evaluator) Evaluate(snapshot *model.Snapshot, req *Request) *Evaluation {
	result := &Evaluation{
		Feasible: true,
		Issues:   make([]Issue, 0),
		Impact:   &Impact{},
	}

	if snapshot == nil || req == nil || req.Source == nil || req.TargetStaff == nil {
		result.Feasible = false
		result.Issues = append(result.Issues, Issue{
			Type: "invalid_request", Severity: "error", Message: "无效的换班请求",
		})
		return result
	}

	source := req.Source
	target := req.TargetStaff

	if !target.IsActive {
		result.fail("staff_inactive", "目标职员已停用")
		return result
	}
	if source.StaffID == target.ID {
		result.fail("same_staff", "目标职员与原职员相同")
		return result
	}
	if source.Locked {
		result.fail("cell_locked", "锁定格位不可换班")
		return result
	}
	if req.Counterpart != nil && req.Counterpart.Locked {
		result.fail("cell_locked", "互换的对方格位已锁定")
		return result
	}

	// 兼职不排午后晚段
	if !target.CanWorkBlock(source.Block) {
		result.fail("block_restricted", fmt.Sprintf("职员 %s 不可排时间块 %s", target.Name, source.Block))
	}

	// 资质检查
	if task, ok := snapshot.TaskTypes[source.TaskTypeCode]; ok && task != nil {
		if missing := target.MissingQualifications(task.RequiredQuals); len(missing) > 0 {
			result.fail("qualification_missing", fmt.Sprintf("职员 %s 缺少资质: %v", target.Name, missing))
		}
	}

	// 目标格位占用检查
	targetCell := model.CellKey{StaffID: target.ID, Date: source.Date, Block: source.Block}
	for _, a := range snapshot.Assignments {
		if a.Cell() == targetCell && a.TaskTypeCode != "" {
			if req.Counterpart == nil || a.ID != req.Counterpart.ID {
				result.fail("cell_occupied", fmt.Sprintf("职员 %s 在该格位已有安排", target.Name))
			}
		}
	}

	if !result.Feasible {
		result.Recommendation = e.recommendation(result)
		return result
	}

	// 模拟换班后做全网格校验，与换班前对比
	baseline := e.validator.Validate(snapshot)
	simulated := e.simulate(snapshot, req)
	after := e.validator.Validate(simulated)

	result.ObjectiveDelta = after.Objective - baseline.Objective

	baseHard := hardCount(baseline.Violations)
	afterHard := hardCount(after.Violations)
	result.Impact.NewHardViolations = afterHard - baseHard
	if afterHard > baseHard {
		result.Feasible = false
		for i := range after.Violations {
			v := &after.Violations[i]
			if !v.IsHard() {
				continue
			}
			if touchesStaff(v, target.ID) || touchesStaff(v, source.StaffID) {
				result.Issues = append(result.Issues, Issue{
					Type: v.CheckType, Severity: "error", Message: v.Description,
				})
			}
		}
	} else if result.ObjectiveDelta > 0 {
		result.Issues = append(result.Issues, Issue{
			Type: "objective_regression", Severity: "warning",
			Message: fmt.Sprintf("换班后整体目标值上升 %d", result.ObjectiveDelta),
		})
	}

	e.calculateImpact(req, result)
	result.Recommendation = e.recommendation(result)
	return result
}

// CanSwap 快速检查是否可换班
func (e *Evaluator) CanSwap(snapshot *model.Snapshot, req *Request) (bool, string) {
	result := e.Evaluate(snapshot, req)
	if !result.Feasible {
		if len(result.Issues) > 0 {
			return false, result.Issues[0].Message
		}
		return false, "无法进行换班"
	}
	return true, ""
}

// simulate 构造换班后的快照副本
func (e *Evaluator) simulate(snapshot *model.Snapshot, req *Request) *model.Snapshot {
	sim := *snapshot
	sim.Assignments = make([]*model.Assignment, 0, len(snapshot.Assignments))
	for _, a := range snapshot.Assignments {
		switch {
		case a.ID == req.Source.ID:
			moved := a.Clone()
			moved.StaffID = req.TargetStaff.ID
			sim.Assignments = append(sim.Assignments, moved)
		case req.Counterpart != nil && a.ID == req.Counterpart.ID:
			// 互换：对方格位交给原职员
			moved := a.Clone()
			moved.StaffID = req.Source.StaffID
			sim.Assignments = append(sim.Assignments, moved)
		default:
			sim.Assignments = append(sim.Assignments, a)
		}
	}
	return &sim
}

// calculateImpact 计算双方工时变化
func (e *Evaluator) calculateImpact(req *Request, result *Evaluation) {
	hours := req.Source.Block.DurationHours()
	result.Impact.SourceHoursChange = -hours
	result.Impact.TargetHoursChange = hours
	if req.Counterpart != nil {
		back := req.Counterpart.Block.DurationHours()
		result.Impact.SourceHoursChange += back
		result.Impact.TargetHoursChange -= back
	}
}

// recommendation 生成换班建议
func (e *Evaluator) recommendation(result *Evaluation) string {
	if !result.Feasible {
		return "不建议进行此换班，存在硬性冲突"
	}
	switch {
	case result.ObjectiveDelta <= 0:
		return "推荐，换班后排班质量不降低"
	case result.ObjectiveDelta <= 100:
		return "可以进行，但存在少量软规则扣分"
	default:
		return "谨慎进行，会明显降低排班质量"
	}
}

func (r *Evaluation) fail(issueType, message string) {
	r.Feasible = false
	r.Issues = append(r.Issues, Issue{Type: issueType, Severity: "error", Message: message})
}

func hardCount(violations []model.Violation) int {
	n := 0
	for i := range violations {
		if violations[i].IsHard() {
			n++
		}
	}
	return n
}

func touchesStaff(v *model.Violation, staffID uuid.UUID) bool {
	for _, id := range v.StaffIDs {
		if id == staffID {
			return true
		}
	}
	return false
}
