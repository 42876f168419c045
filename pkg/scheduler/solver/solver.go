// Package solver 提供排班求解器：贪心构造 + 局部搜索优化
package solver

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/logger"
	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/rulecompiler"
	"github.com/clinicshift/clinicshift/pkg/scheduler/cmodel"
	"github.com/clinicshift/clinicshift/pkg/scheduler/constraint"
	"github.com/clinicshift/clinicshift/pkg/scheduler/constraint/builtin"
	"github.com/clinicshift/clinicshift/pkg/scheduler/optimizer"
	"github.com/clinicshift/clinicshift/pkg/violation"
)

// Config 求解配置
type Config struct {
	Budget            time.Duration `json:"budget"`             // 全量求解时间预算
	IncrementalBudget time.Duration `json:"incremental_budget"` // 增量重排时间预算
	MaxIterations     int           `json:"max_iterations"`
	NeighborhoodSize  int           `json:"neighborhood_size"`
	Workers           int           `json:"workers"`
	Islands           int           `json:"islands"`           // >1 时启用岛屿并行搜索
	DisruptionWeight  int           `json:"disruption_weight"` // 增量重排的扰动惩罚权重
}

// DefaultConfig 默认求解配置
func DefaultConfig() *Config {
	return &Config{
		Budget:            30 * time.Second,
		IncrementalBudget: 10 * time.Second,
		MaxIterations:     2000,
		NeighborhoodSize:  20,
		Workers:           4,
		Islands:           0,
		DisruptionWeight:  50,
	}
}

// Progress 求解进度通知
type Progress struct {
	ScheduleID     uuid.UUID     `json:"schedule_id"`
	Preset         string        `json:"preset"`
	Phase          string        `json:"phase"` // constructing / optimizing / done
	Objective      float64       `json:"objective"`
	HardViolations int           `json:"hard_violations"`
	Elapsed        time.Duration `json:"elapsed"`
}

// Solver 排班求解器
type Solver struct {
	config   *Config
	log      *logger.SchedulerLogger
	progress chan<- Progress
}

// New 创建求解器
func New(config *Config) *Solver {
	if config == nil {
		config = DefaultConfig()
	}
	return &Solver{
		config: config,
		log:    logger.NewSchedulerLogger(),
	}
}

// SetProgressChannel 设置进度通知通道
// 通知为尽力而为：通道满时直接丢弃，不阻塞求解
func (s *Solver) SetProgressChannel(ch chan<- Progress) {
	s.progress = ch
}

func (s *Solver) notify(p Progress) {
	if s.progress == nil {
		return
	}
	select {
	case s.progress <- p:
	default:
	}
}

// Solve 对快照做完整求解
// 建模失败返回错误；不可行时返回 INFEASIBLE 方案（不含分配，只含诊断）
func (s *Solver) Solve(ctx context.Context, snapshot *model.Snapshot, rules []*rulecompiler.CompiledRule, preset cmodel.Preset) (*model.Solution, error) {
	start := time.Now()

	m, err := cmodel.Build(snapshot, rules, preset)
	if err != nil {
		return nil, err
	}

	s.log.StartSolve(snapshot.ScheduleID.String(), preset.ID, len(m.Staffs), len(m.Dates), len(m.Events))

	if ctx.Err() != nil {
		return s.emptySolution(m, start), ctx.Err()
	}

	if m.DefinitelyInfeasible() {
		return s.infeasibleSolution(m, start), nil
	}

	manager := constraint.NewManager()
	manager.RegisterAll(builtin.BuildAll(rules, preset.WorkloadWeight, preset.ShortfallWeight, preset.EventScale, 0))
	eval := &managerEvaluator{snapshot: snapshot, rules: rules, manager: manager}

	s.notify(Progress{ScheduleID: snapshot.ScheduleID, Preset: preset.ID, Phase: "constructing", Elapsed: time.Since(start)})

	seed := s.construct(ctx, m, manager)
	initial := &optimizer.Solution{Assignments: seed}
	ev := eval.Evaluate(seed)
	initial.Objective = ev.Objective
	initial.HardViolations = ev.HardViolations

	s.notify(Progress{
		ScheduleID: snapshot.ScheduleID, Preset: preset.ID, Phase: "optimizing",
		Objective: initial.Objective, HardViolations: initial.HardViolations,
		Elapsed: time.Since(start),
	})

	best, stats := s.optimize(ctx, m, eval, initial, preset, s.config.Budget-time.Since(start))

	return s.finish(m, eval, best, stats, start), nil
}

// optimize 在剩余预算内做局部搜索
func (s *Solver) optimize(ctx context.Context, m *cmodel.Model, eval *managerEvaluator, initial *optimizer.Solution, preset cmodel.Preset, remaining time.Duration) (*optimizer.Solution, *optimizer.SearchStats) {
	if initial.Objective == 0 || remaining <= 0 {
		return initial, &optimizer.SearchStats{TimeExhausted: remaining <= 0}
	}

	optCfg := &optimizer.OptimizationConfig{
		MaxIterations:    s.config.MaxIterations,
		MaxTime:          remaining,
		InitialTemp:      100.0,
		CoolingRate:      0.99,
		TabuSize:         50,
		NeighborhoodSize: s.config.NeighborhoodSize,
		ParallelWorkers:  s.config.Workers,
		StopOnPlateau:    true,
		PlateauThreshold: 200,
		Seed:             preset.Seed,
	}

	if s.config.Islands > 1 {
		island := optimizer.NewIslandOptimizer(optCfg, eval, m, s.config.Islands)
		best, err := island.OptimizeIslands(ctx, initial)
		if best == nil || err != nil && best.Objective > initial.Objective {
			best = initial
		}
		return best, &optimizer.SearchStats{}
	}

	ls := optimizer.NewLocalSearchOptimizer(optCfg, eval, m)
	best, stats, err := ls.Optimize(ctx, initial)
	if best == nil || (err != nil && best.Objective > initial.Objective) {
		best = initial
	}
	return best, stats
}

// finish 评估最终方案并确定求解状态
func (s *Solver) finish(m *cmodel.Model, eval *managerEvaluator, best *optimizer.Solution, stats *optimizer.SearchStats, start time.Time) *model.Solution {
	result := eval.FullResult(best.Assignments)
	violations := violation.Extract(result, lockedCellSet(m))

	sol := &model.Solution{
		ScheduleID:  m.Snapshot.ScheduleID,
		Preset:      m.Preset.ID,
		PresetLabel: m.Preset.Label,
		Assignments: best.Assignments,
		Objective:   result.TotalPenalty,
		Violations:  violations,
		Statistics:  s.statistics(m, best, stats, start),
	}

	switch {
	case result.TotalPenalty == 0:
		sol.Status = model.StatusOptimal
	case len(result.HardViolations) == 0:
		sol.Status = model.StatusFeasible
	default:
		// 硬约束未满足：方案不可交付，只保留诊断
		sol.Status = model.StatusInfeasible
		sol.Assignments = nil
	}

	s.notify(Progress{
		ScheduleID: sol.ScheduleID, Preset: sol.Preset, Phase: "done",
		Objective: float64(sol.Objective), HardViolations: len(result.HardViolations),
		Elapsed: time.Since(start),
	})
	s.log.SolveComplete(sol.ScheduleID.String(), string(sol.Status), time.Since(start),
		float64(sol.Objective), len(result.HardViolations))

	return sol
}

// statistics 汇总求解统计
func (s *Solver) statistics(m *cmodel.Model, best *optimizer.Solution, stats *optimizer.SearchStats, start time.Time) *model.SolveStatistics {
	placed := make(map[uuid.UUID]bool)
	for _, a := range best.Assignments {
		if a.EventID != nil {
			placed[*a.EventID] = true
		}
	}

	st := &model.SolveStatistics{
		WallTime:       time.Since(start),
		CellCount:      m.CellCount(),
		PlacementCount: len(best.Assignments),
		StaffCount:     len(m.Staffs),
		DateCount:      len(m.Dates),
		EventCount:     len(m.Events),
		EventsPlaced:   len(placed),
	}
	if stats != nil {
		st.Iterations = stats.Iterations
		st.NeighborsTried = stats.NeighborsTried
		st.BudgetExhausted = stats.TimeExhausted
	}
	return st
}

// infeasibleSolution 结构性不可行的诊断方案
func (s *Solver) infeasibleSolution(m *cmodel.Model, start time.Time) *model.Solution {
	sol := &model.Solution{
		ScheduleID:  m.Snapshot.ScheduleID,
		Preset:      m.Preset.ID,
		PresetLabel: m.Preset.Label,
		Status:      model.StatusInfeasible,
		Violations:  m.StructuralIssues,
		Statistics: &model.SolveStatistics{
			WallTime:   time.Since(start),
			CellCount:  m.CellCount(),
			StaffCount: len(m.Staffs),
			DateCount:  len(m.Dates),
			EventCount: len(m.Events),
		},
	}
	s.log.SolveComplete(sol.ScheduleID.String(), string(sol.Status), time.Since(start), 0,
		len(m.StructuralIssues))
	return sol
}

// emptySolution 取消时尚无任何解
func (s *Solver) emptySolution(m *cmodel.Model, start time.Time) *model.Solution {
	return &model.Solution{
		ScheduleID:  m.Snapshot.ScheduleID,
		Preset:      m.Preset.ID,
		PresetLabel: m.Preset.Label,
		Status:      model.StatusEmpty,
		Statistics:  &model.SolveStatistics{WallTime: time.Since(start)},
	}
}

// lockedCellSet 锁定格位集合
func lockedCellSet(m *cmodel.Model) map[model.CellKey]bool {
	set := make(map[model.CellKey]bool, len(m.LockedCells))
	for cell := range m.LockedCells {
		set[cell] = true
	}
	return set
}

// managerEvaluator 基于约束管理器的目标函数评估器
// 每次评估构建独立上下文，可安全用于并行评估
type managerEvaluator struct {
	snapshot   *model.Snapshot
	rules      []*rulecompiler.CompiledRule
	manager    *constraint.Manager
	priorCells map[model.CellKey]string
}

// Evaluate 计算一组分配的目标值
func (e *managerEvaluator) Evaluate(assignments []*model.Assignment) optimizer.Evaluation {
	result := e.FullResult(assignments)
	return optimizer.Evaluation{
		Objective:      float64(result.TotalPenalty),
		HardViolations: len(result.HardViolations),
	}
}

// FullResult 返回完整约束评估结果
func (e *managerEvaluator) FullResult(assignments []*model.Assignment) *constraint.Result {
	cctx := constraint.NewContext(e.snapshot, e.rules)
	cctx.PriorCells = e.priorCells
	cctx.SetAssignments(assignments)
	return e.manager.Evaluate(cctx)
}
