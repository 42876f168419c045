package optimizer

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/scheduler/cmodel"
)

func newStaff(name string) *model.Staff {
	return &model.Staff{
		BaseModel:      model.NewBaseModel(),
		Name:           name,
		EmploymentType: model.EmploymentFullTime,
		IsActive:       true,
	}
}

func newModel(t *testing.T, staffs ...*model.Staff) *cmodel.Model {
	t.Helper()
	snap := &model.Snapshot{
		ScheduleID: uuid.New(),
		YearMonth:  "2026-03",
		Staffs:     staffs,
		TaskTypes: map[string]*model.TaskType{
			"outpatient": {Code: "outpatient", MinStaff: 1, IsActive: true},
		},
	}
	m, err := cmodel.Build(snap, nil, cmodel.DefaultPreset())
	if err != nil {
		t.Fatalf("构建模型失败: %v", err)
	}
	return m
}

// countEvaluator 目标值 = |分配数 - 目标数| × 100
type countEvaluator struct {
	target int
}

func (e *countEvaluator) Evaluate(assignments []*model.Assignment) Evaluation {
	diff := len(assignments) - e.target
	if diff < 0 {
		diff = -diff
	}
	return Evaluation{Objective: float64(diff * 100)}
}

func TestTabuList(t *testing.T) {
	tabu := NewTabuList(2)

	tabu.Add(1)
	tabu.Add(2)
	if !tabu.Contains(1) || !tabu.Contains(2) {
		t.Error("新增的键应在禁忌表中")
	}

	// 超出容量时最旧的被驱逐
	tabu.Add(3)
	if tabu.Contains(1) {
		t.Error("最旧的键应被驱逐")
	}
	if !tabu.Contains(2) || !tabu.Contains(3) {
		t.Error("新键应保留")
	}

	tabu.Clear()
	if tabu.Contains(2) || tabu.Contains(3) {
		t.Error("清空后不应包含任何键")
	}
}

func TestBoltzmannProbability(t *testing.T) {
	if p := boltzmannProbability(-5, 10); p != 1.0 {
		t.Errorf("更优解应必然接受，得到 %f", p)
	}
	if p := boltzmannProbability(5, 0); p != 0.0 {
		t.Errorf("温度为零时不应接受更差解，得到 %f", p)
	}
	high := boltzmannProbability(5, 100)
	low := boltzmannProbability(5, 1)
	if high <= low {
		t.Errorf("高温接受概率应更大: %f <= %f", high, low)
	}
	if math.Abs(boltzmannProbability(10, 10)-math.Exp(-1)) > 1e-9 {
		t.Error("接受概率应为 exp(-delta/T)")
	}
}

func TestHashAssignments(t *testing.T) {
	staff := newStaff("山田")
	a := &model.Assignment{StaffID: staff.ID, Date: "2026-03-02", Block: model.BlockAM, TaskTypeCode: "outpatient"}
	b := &model.Assignment{StaffID: staff.ID, Date: "2026-03-02", Block: model.BlockPM, TaskTypeCode: "outpatient"}

	h1 := hashAssignments([]*model.Assignment{a, b})
	h2 := hashAssignments([]*model.Assignment{a, b})
	if h1 != h2 {
		t.Error("相同分配集合的哈希应一致")
	}
	if h1 == hashAssignments([]*model.Assignment{a}) {
		t.Error("不同分配集合的哈希应不同")
	}
	if hashAssignments(nil) != 0 {
		t.Error("空集合哈希应为 0")
	}
}

func TestLocalSearchReachesTarget(t *testing.T) {
	m := newModel(t, newStaff("山田"), newStaff("鈴木"))
	eval := &countEvaluator{target: 2}

	cfg := DefaultOptConfig()
	cfg.MaxIterations = 500
	cfg.MaxTime = 5 * time.Second
	cfg.Seed = 42

	opt := NewLocalSearchOptimizer(cfg, eval, m)

	initial := &Solution{}
	ev := eval.Evaluate(initial.Assignments)
	initial.Objective = ev.Objective

	best, stats, err := opt.Optimize(context.Background(), initial)
	if err != nil {
		t.Fatalf("优化失败: %v", err)
	}
	if best.Objective > initial.Objective {
		t.Errorf("优化不应使目标值变差: %f > %f", best.Objective, initial.Objective)
	}
	if best.Objective != 0 {
		t.Errorf("简单目标应可归零，得到 %f", best.Objective)
	}
	if stats.Iterations == 0 {
		t.Error("统计应记录迭代次数")
	}
}

func TestLocalSearchHonorsCancellation(t *testing.T) {
	m := newModel(t, newStaff("山田"))
	cfg := DefaultOptConfig()
	cfg.MaxIterations = 1000000

	opt := NewLocalSearchOptimizer(cfg, &countEvaluator{target: 50}, m)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	best, _, err := opt.Optimize(ctx, &Solution{Objective: 5000})
	if err == nil {
		t.Error("取消后应返回错误")
	}
	if best == nil {
		t.Error("取消后仍应返回当前最优方案")
	}
}

func TestEventShiftMovePlacesEvent(t *testing.T) {
	staff := newStaff("山田")
	snap := &model.Snapshot{
		ScheduleID: uuid.New(),
		YearMonth:  "2026-03",
		Staffs:     []*model.Staff{staff},
		TaskTypes: map[string]*model.TaskType{
			"conference": {Code: "conference", IsActive: true},
		},
		Events: []*model.Event{{
			BaseModel:     model.NewBaseModel(),
			TypeCode:      "conference",
			DurationHours: 1,
			TimeConstraint: model.TimeConstraint{
				Type: model.TimeFixed, Date: "2026-03-02", StartHour: 9,
			},
			Priority: model.PriorityRequired,
			Status:   model.EventUnassigned,
		}},
	}
	m, err := cmodel.Build(snap, nil, cmodel.DefaultPreset())
	if err != nil {
		t.Fatalf("构建模型失败: %v", err)
	}

	gen := NewNeighborhoodGenerator(m, rand.New(rand.NewSource(1)))
	gen.SetMoveWeights(map[MoveType]float64{MoveEventShift: 1.0})

	neighbor := gen.GenerateNeighbor(&Solution{})
	if neighbor == nil {
		t.Fatal("事件移动应生成邻域解")
	}
	if len(neighbor.Assignments) != 1 {
		t.Fatalf("期望 1 个事件分配，得到 %d", len(neighbor.Assignments))
	}
	a := neighbor.Assignments[0]
	if a.EventID == nil || *a.EventID != snap.Events[0].ID {
		t.Error("分配应关联事件")
	}
	if a.Date != "2026-03-02" || a.Block != model.BlockAM {
		t.Errorf("放置格位不符: %s %s", a.Date, a.Block)
	}
}

func TestMovesSkipLockedAssignments(t *testing.T) {
	staff := newStaff("山田")
	m := newModel(t, staff)

	locked := &model.Assignment{
		BaseModel: model.NewBaseModel(),
		StaffID:   staff.ID, Date: "2026-03-02", Block: model.BlockAM,
		TaskTypeCode: "outpatient", Locked: true,
	}
	current := &Solution{Assignments: []*model.Assignment{locked}}

	gen := NewNeighborhoodGenerator(m, rand.New(rand.NewSource(1)))
	gen.SetMoveWeights(map[MoveType]float64{MoveRemove: 1.0})

	for i := 0; i < 20; i++ {
		if neighbor := gen.GenerateNeighbor(current); neighbor != nil {
			t.Fatal("锁定分配不应被移除")
		}
	}
}

func TestChainMoveKeepsCellsDistinct(t *testing.T) {
	yamada := newStaff("山田")
	suzuki := newStaff("鈴木")
	m := newModel(t, yamada, suzuki)

	// 山田 03-02 已占用：轮换把鈴木的同格位分配转给山田时必须放弃该移动
	mk := func(staffID uuid.UUID, date string, block model.TimeBlock) *model.Assignment {
		return &model.Assignment{
			BaseModel: model.NewBaseModel(),
			StaffID:   staffID, Date: date, Block: block,
			TaskTypeCode: "outpatient",
		}
	}
	current := &Solution{Assignments: []*model.Assignment{
		mk(yamada.ID, "2026-03-02", model.BlockAM),
		mk(suzuki.ID, "2026-03-02", model.BlockAM),
		mk(yamada.ID, "2026-03-03", model.BlockAM),
		mk(suzuki.ID, "2026-03-04", model.BlockAM),
	}}

	gen := NewNeighborhoodGenerator(m, rand.New(rand.NewSource(7)))
	gen.SetMoveWeights(map[MoveType]float64{MoveChain: 1.0})

	produced := 0
	for i := 0; i < 300; i++ {
		neighbor := gen.GenerateNeighbor(current)
		if neighbor == nil {
			continue
		}
		produced++
		seen := make(map[model.CellKey]bool)
		for _, a := range neighbor.Assignments {
			if seen[a.Cell()] {
				t.Fatalf("链式移动产生了重复格位 %s %s", a.Date, a.Block)
			}
			seen[a.Cell()] = true
		}
	}
	t.Logf("300 次尝试产生 %d 个合法邻域解", produced)
}

func TestParallelEvaluatorBatch(t *testing.T) {
	eval := &countEvaluator{target: 1}
	pe := NewParallelEvaluator(2, eval)

	sols := []*Solution{
		{},
		{Assignments: []*model.Assignment{{Date: "2026-03-02", Block: model.BlockAM}}},
		{Assignments: []*model.Assignment{
			{Date: "2026-03-02", Block: model.BlockAM},
			{Date: "2026-03-02", Block: model.BlockPM},
		}},
	}

	results := pe.EvaluateBatch(context.Background(), sols)
	if len(results) != 3 {
		t.Fatalf("期望 3 个评估结果，得到 %d", len(results))
	}

	best := pe.FindBest(results)
	if best == nil || best.Objective != 0 {
		t.Errorf("最优方案目标值应为 0: %+v", best)
	}
	if sols[0].Objective != 100 || sols[2].Objective != 100 {
		t.Error("目标值应写回方案")
	}
}
