// Package unsat 定位不可行排班的最小规则冲突核
package unsat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/logger"
	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/rulecompiler"
	"github.com/clinicshift/clinicshift/pkg/scheduler/cmodel"
	"github.com/clinicshift/clinicshift/pkg/scheduler/solver"
)

// Core 最小冲突核：去掉其中任意一条规则后其余组合即可行
type Core struct {
	RuleIDs    []uuid.UUID       `json:"rule_ids"`
	Structural []model.Violation `json:"structural,omitempty"` // 与规则无关的结构性问题
	Hints      []string          `json:"hints"`
	Probes     int               `json:"probes"` // 探测求解次数
	Feasible   bool              `json:"feasible"`
}

// Analyzer 冲突核分析器
// 采用删除法：维护硬规则工作集，逐条暂除做短预算探测，
// 其余规则仍不可行时才将该条永久剔除
type Analyzer struct {
	probeBudget time.Duration
	log         *logger.SchedulerLogger
}

// NewAnalyzer 创建冲突核分析器
func NewAnalyzer(probeBudget time.Duration) *Analyzer {
	if probeBudget <= 0 {
		probeBudget = 2 * time.Second
	}
	return &Analyzer{
		probeBudget: probeBudget,
		log:         logger.NewSchedulerLogger(),
	}
}

// FindCore 分析快照不可行的最小规则组合
// 可行的快照返回 Feasible=true 的空核
func (a *Analyzer) FindCore(ctx context.Context, snapshot *model.Snapshot, rules []*rulecompiler.CompiledRule, preset cmodel.Preset) (*Core, error) {
	core := &Core{}

	m, err := cmodel.Build(snapshot, rules, preset)
	if err != nil {
		return nil, err
	}

	// 结构性问题无需规则探测即可定位
	if m.DefinitelyInfeasible() {
		core.Structural = m.StructuralIssues
		for i := range m.StructuralIssues {
			core.Hints = append(core.Hints, m.StructuralIssues[i].Suggestion)
		}
		a.logCore(snapshot.ScheduleID, core)
		return core, nil
	}

	// 软规则不参与可行性，核只在硬规则中找
	hard := hardRules(rules)

	feasible, err := a.probe(ctx, snapshot, rules, preset, core)
	if err != nil {
		return core, err
	}
	if feasible {
		core.Feasible = true
		a.logCore(snapshot.ScheduleID, core)
		return core, nil
	}

	// 删除法最小化：探测工作集减一后的剩余组合，
	// 剩余仍不可行则该条永久剔除；剩余转为可行说明该条在核内
	soft := softRules(rules)
	working := append([]*rulecompiler.CompiledRule(nil), hard...)
	for i := 0; i < len(working); {
		if ctx.Err() != nil {
			return core, ctx.Err()
		}

		trial := append(append([]*rulecompiler.CompiledRule(nil), soft...), withoutIndex(working, i)...)
		stillInfeasible, err := a.probeInfeasible(ctx, snapshot, trial, preset, core)
		if err != nil {
			return core, err
		}
		if stillInfeasible {
			working = append(working[:i], working[i+1:]...)
		} else {
			i++
		}
	}

	for _, r := range working {
		core.RuleIDs = append(core.RuleIDs, r.Meta.RuleID)
		core.Hints = append(core.Hints, ruleHint(r))
	}
	if len(working) == 0 {
		core.Hints = append(core.Hints, "不可行与规则无关，请检查事件与职员/资源的匹配")
	}

	a.logCore(snapshot.ScheduleID, core)
	return core, nil
}

// probe 短预算探测一次，返回是否可行
func (a *Analyzer) probe(ctx context.Context, snapshot *model.Snapshot, rules []*rulecompiler.CompiledRule, preset cmodel.Preset, core *Core) (bool, error) {
	core.Probes++

	cfg := solver.DefaultConfig()
	cfg.Budget = a.probeBudget
	cfg.MaxIterations = 300

	sol, err := solver.New(cfg).Solve(ctx, snapshot, rules, preset)
	if err != nil {
		return false, err
	}
	return sol.IsFeasible(), nil
}

func (a *Analyzer) probeInfeasible(ctx context.Context, snapshot *model.Snapshot, rules []*rulecompiler.CompiledRule, preset cmodel.Preset, core *Core) (bool, error) {
	feasible, err := a.probe(ctx, snapshot, rules, preset, core)
	return !feasible, err
}

func (a *Analyzer) logCore(scheduleID uuid.UUID, core *Core) {
	ids := make([]string, len(core.RuleIDs))
	for i, id := range core.RuleIDs {
		ids[i] = id.String()
	}
	a.log.UnsatCore(scheduleID.String(), ids, core.Probes)
}

// hardRules 过滤出硬规则
func hardRules(rules []*rulecompiler.CompiledRule) []*rulecompiler.CompiledRule {
	var out []*rulecompiler.CompiledRule
	for _, r := range rules {
		if r.Meta.IsHard() {
			out = append(out, r)
		}
	}
	return out
}

// softRules 过滤出软规则
func softRules(rules []*rulecompiler.CompiledRule) []*rulecompiler.CompiledRule {
	var out []*rulecompiler.CompiledRule
	for _, r := range rules {
		if !r.Meta.IsHard() {
			out = append(out, r)
		}
	}
	return out
}

// withoutIndex 返回去掉第 i 条后的规则集
func withoutIndex(rules []*rulecompiler.CompiledRule, i int) []*rulecompiler.CompiledRule {
	out := make([]*rulecompiler.CompiledRule, 0, len(rules)-1)
	out = append(out, rules[:i]...)
	return append(out, rules[i+1:]...)
}

// ruleHint 生成规则的修复提示
func ruleHint(r *rulecompiler.CompiledRule) string {
	if r.Meta.NaturalText != "" {
		return fmt.Sprintf("规则「%s」与其余硬规则冲突，考虑放宽或改为软规则", r.Meta.NaturalText)
	}
	return fmt.Sprintf("规则 %s（%s）与其余硬规则冲突，考虑放宽或改为软规则",
		r.Meta.RuleID.String()[:8], r.Meta.Template)
}
