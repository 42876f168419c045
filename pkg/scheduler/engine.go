// Package scheduler 排班引擎门面：求解、校验、增量重排、冲突核分析与方案落盘
package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/errors"
	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/rulecompiler"
	"github.com/clinicshift/clinicshift/pkg/scheduler/cmodel"
	"github.com/clinicshift/clinicshift/pkg/scheduler/solver"
	"github.com/clinicshift/clinicshift/pkg/scheduler/unsat"
	"github.com/clinicshift/clinicshift/pkg/validator"
)

// Engine 排班引擎
// 同一排班表同时只允许一次求解类操作（准入锁，冲突即拒绝不排队）；
// 校验是只读操作，不受准入锁限制
type Engine struct {
	config      *solver.Config
	probeBudget time.Duration
	progress    chan<- solver.Progress

	mu   sync.Mutex
	busy map[uuid.UUID]bool
}

// NewEngine 创建排班引擎
func NewEngine(config *solver.Config) *Engine {
	if config == nil {
		config = solver.DefaultConfig()
	}
	return &Engine{
		config:      config,
		probeBudget: 2 * time.Second,
		busy:        make(map[uuid.UUID]bool),
	}
}

// SetProgressChannel 设置求解进度通知通道（非阻塞投递）
func (e *Engine) SetProgressChannel(ch chan<- solver.Progress) {
	e.progress = ch
}

// acquire 获取排班表的准入锁
func (e *Engine) acquire(scheduleID uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.busy[scheduleID] {
		return errors.ConcurrencyConflict(scheduleID.String())
	}
	e.busy[scheduleID] = true
	return nil
}

func (e *Engine) release(scheduleID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.busy, scheduleID)
}

// compile 编译快照中的规则
func compile(snapshot *model.Snapshot) ([]*rulecompiler.CompiledRule, error) {
	return rulecompiler.New(snapshot).Compile()
}

// resolvePreset 解析预设标识（空值取默认预设）
func resolvePreset(presetID string) (cmodel.Preset, error) {
	if presetID == "" {
		return cmodel.DefaultPreset(), nil
	}
	preset, err := cmodel.PresetByID(presetID)
	if err != nil {
		return cmodel.Preset{}, errors.InvalidInput("preset", err.Error())
	}
	return preset, nil
}

func (e *Engine) newSolver() *solver.Solver {
	s := solver.New(e.config)
	if e.progress != nil {
		s.SetProgressChannel(e.progress)
	}
	return s
}

// Solve 对快照做完整求解
func (e *Engine) Solve(ctx context.Context, snapshot *model.Snapshot, presetID string) (*model.Solution, error) {
	preset, err := resolvePreset(presetID)
	if err != nil {
		return nil, err
	}
	if err := e.acquire(snapshot.ScheduleID); err != nil {
		return nil, err
	}
	defer e.release(snapshot.ScheduleID)

	rules, err := compile(snapshot)
	if err != nil {
		return nil, err
	}
	return e.newSolver().Solve(ctx, snapshot, rules, preset)
}

// SolveAllPresets 按全部预设独立求解，结果按优劣排序（最优在前）
func (e *Engine) SolveAllPresets(ctx context.Context, snapshot *model.Snapshot) ([]*model.Solution, error) {
	if err := e.acquire(snapshot.ScheduleID); err != nil {
		return nil, err
	}
	defer e.release(snapshot.ScheduleID)

	rules, err := compile(snapshot)
	if err != nil {
		return nil, err
	}

	presets := cmodel.Presets()
	solutions := make([]*model.Solution, len(presets))
	errs := make([]error, len(presets))

	var wg sync.WaitGroup
	for i, preset := range presets {
		wg.Add(1)
		go func(i int, preset cmodel.Preset) {
			defer wg.Done()
			solutions[i], errs[i] = e.newSolver().Solve(ctx, snapshot, rules, preset)
		}(i, preset)
	}
	wg.Wait()

	var out []*model.Solution
	for i := range solutions {
		if errs[i] != nil && solutions[i] == nil {
			continue
		}
		out = append(out, solutions[i])
	}
	if len(out) == 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NoFeasibleSolution("所有预设求解均失败")
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Better(out[j])
	})
	return out, nil
}

// Validate 全量校验（只读，不受准入锁限制）
func (e *Engine) Validate(snapshot *model.Snapshot, presetID string) (*validator.Report, error) {
	preset, err := resolvePreset(presetID)
	if err != nil {
		return nil, err
	}
	rules, err := compile(snapshot)
	if err != nil {
		return nil, err
	}
	return validator.New(rules, preset).Validate(snapshot), nil
}

// ValidateCells 变更格位提示校验（只读）
func (e *Engine) ValidateCells(snapshot *model.Snapshot, presetID string, changed []model.CellKey) (*validator.Report, error) {
	preset, err := resolvePreset(presetID)
	if err != nil {
		return nil, err
	}
	rules, err := compile(snapshot)
	if err != nil {
		return nil, err
	}
	return validator.New(rules, preset).ValidateCells(snapshot, changed), nil
}

// SolveIncremental 增量重排
func (e *Engine) SolveIncremental(ctx context.Context, snapshot *model.Snapshot, presetID string) (*model.Solution, error) {
	preset, err := resolvePreset(presetID)
	if err != nil {
		return nil, err
	}
	if err := e.acquire(snapshot.ScheduleID); err != nil {
		return nil, err
	}
	defer e.release(snapshot.ScheduleID)

	rules, err := compile(snapshot)
	if err != nil {
		return nil, err
	}
	return e.newSolver().SolveIncremental(ctx, snapshot, rules, preset)
}

// FindUnsatCore 分析不可行快照的最小规则冲突核
func (e *Engine) FindUnsatCore(ctx context.Context, snapshot *model.Snapshot, presetID string) (*unsat.Core, error) {
	preset, err := resolvePreset(presetID)
	if err != nil {
		return nil, err
	}
	if err := e.acquire(snapshot.ScheduleID); err != nil {
		return nil, err
	}
	defer e.release(snapshot.ScheduleID)

	rules, err := compile(snapshot)
	if err != nil {
		return nil, err
	}
	return unsat.NewAnalyzer(e.probeBudget).FindCore(ctx, snapshot, rules, preset)
}

// ApplySolution 将求解方案落到排班网格
// 清空未锁定格位后写入方案分配；方案若试图改写锁定格位则整体拒绝。
// 返回新的完整分配列表（锁定分配 + 方案分配），由调用方持久化
func (e *Engine) ApplySolution(snapshot *model.Snapshot, solution *model.Solution) ([]*model.Assignment, error) {
	if solution == nil || !solution.IsFeasible() {
		return nil, errors.InvalidInput("solution", "只能应用 OPTIMAL/FEASIBLE 状态的方案")
	}
	if solution.ScheduleID != snapshot.ScheduleID {
		return nil, errors.InvalidInput("solution", "方案与排班表不匹配")
	}

	locked := make(map[model.CellKey]*model.Assignment)
	for _, a := range snapshot.LockedAssignments() {
		locked[a.Cell()] = a
	}

	result := make([]*model.Assignment, 0, len(locked)+len(solution.Assignments))
	for _, a := range locked {
		result = append(result, a)
	}

	for _, a := range solution.Assignments {
		if prior, ok := locked[a.Cell()]; ok {
			if prior.TaskTypeCode != a.TaskTypeCode {
				return nil, errors.LockedCell(a.StaffID.String(), a.Date, string(a.Block))
			}
			// 与锁定内容一致的格位保留锁定分配
			continue
		}
		result = append(result, a)
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		if result[i].Block != result[j].Block {
			return result[i].Block.Index() < result[j].Block.Index()
		}
		return result[i].StaffID.String() < result[j].StaffID.String()
	})
	return result, nil
}
