package solver

import (
	"context"
	"time"

	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/rulecompiler"
	"github.com/clinicshift/clinicshift/pkg/scheduler/cmodel"
	"github.com/clinicshift/clinicshift/pkg/scheduler/constraint"
	"github.com/clinicshift/clinicshift/pkg/scheduler/constraint/builtin"
	"github.com/clinicshift/clinicshift/pkg/scheduler/optimizer"
)

// SolveIncremental 在既有方案基础上做局部重排
// 变更区域 = 含手工编辑的日期；区域外的格位全部冻结，
// 区域内锁定格位不动、其余可改，差异计入扰动惩罚，
// 预算比全量求解短，倾向小步修复而非推倒重排
func (s *Solver) SolveIncremental(ctx context.Context, snapshot *model.Snapshot, rules []*rulecompiler.CompiledRule, preset cmodel.Preset) (*model.Solution, error) {
	start := time.Now()

	m, err := cmodel.Build(snapshot, rules, preset)
	if err != nil {
		return nil, err
	}

	if ctx.Err() != nil {
		return s.emptySolution(m, start), ctx.Err()
	}
	if m.DefinitelyInfeasible() {
		return s.infeasibleSolution(m, start), nil
	}

	// 手工编辑所在的日期构成变更区域，其余日期整体冻结
	affected := make(map[string]bool)
	prior := make(map[model.CellKey]string, len(snapshot.Assignments))
	for _, a := range snapshot.Assignments {
		prior[a.Cell()] = a.TaskTypeCode
		if a.Source == model.SourceManual {
			affected[a.Date] = true
		}
	}
	m.LockOutsideDates(affected)

	manager := constraint.NewManager()
	manager.RegisterAll(builtin.BuildAll(rules,
		preset.WorkloadWeight, preset.ShortfallWeight, preset.EventScale, s.config.DisruptionWeight))
	eval := &managerEvaluator{snapshot: snapshot, rules: rules, manager: manager, priorCells: prior}

	// 既有方案整体作为初始解
	seed := model.CloneAssignments(snapshot.Assignments)
	initial := &optimizer.Solution{Assignments: seed}
	ev := eval.Evaluate(seed)
	initial.Objective = ev.Objective
	initial.HardViolations = ev.HardViolations

	s.notify(Progress{
		ScheduleID: snapshot.ScheduleID, Preset: preset.ID, Phase: "optimizing",
		Objective: initial.Objective, HardViolations: initial.HardViolations,
		Elapsed: time.Since(start),
	})

	best, stats := s.optimize(ctx, m, eval, initial, preset, s.config.IncrementalBudget-time.Since(start))

	sol := s.finish(m, eval, best, stats, start)
	s.log.IncrementalSolve(snapshot.ScheduleID.String(), len(m.LockedCells), changedCells(prior, sol.Assignments))
	return sol, nil
}

// changedCells 统计与既有方案不同的格位数
func changedCells(prior map[model.CellKey]string, assignments []*model.Assignment) int {
	current := make(map[model.CellKey]string, len(assignments))
	for _, a := range assignments {
		current[a.Cell()] = a.TaskTypeCode
	}

	changed := 0
	for cell, task := range prior {
		if current[cell] != task {
			changed++
		}
	}
	for cell := range current {
		if _, existed := prior[cell]; !existed {
			changed++
		}
	}
	return changed
}
