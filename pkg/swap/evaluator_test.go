package swap

import (
	"testing"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/scheduler/cmodel"
)

func swapStaff(name string, employment model.EmploymentType, quals ...string) *model.Staff {
	return &model.Staff{
		BaseModel:      model.NewBaseModel(),
		Name:           name,
		EmploymentType: employment,
		Qualifications: quals,
		IsActive:       true,
	}
}

func swapSnapshot() (*model.Snapshot, *model.Staff, *model.Staff) {
	source := swapStaff("佐藤", model.EmploymentFullTime, "endoscope")
	target := swapStaff("铃木", model.EmploymentFullTime, "endoscope")
	snap := &model.Snapshot{
		ScheduleID: uuid.New(),
		YearMonth:  "2026-03",
		Staffs:     []*model.Staff{source, target},
		TaskTypes: map[string]*model.TaskType{
			"outpatient": {Code: "outpatient", IsActive: true},
			"endoscopy":  {Code: "endoscopy", RequiredQuals: []string{"endoscope"}, IsActive: true},
		},
	}
	return snap, source, target
}

func swapCell(staff *model.Staff, date string, block model.TimeBlock, task string) *model.Assignment {
	return &model.Assignment{
		BaseModel:    model.NewBaseModel(),
		StaffID:      staff.ID,
		Date:         date,
		Block:        block,
		TaskTypeCode: task,
		Source:       model.SourceSolver,
	}
}

func testEvaluator() *Evaluator {
	return NewEvaluator(nil, cmodel.DefaultPreset())
}

func TestSwapTakeOver(t *testing.T) {
	snap, source, target := swapSnapshot()
	cell := swapCell(source, "2026-03-03", model.BlockAM, "outpatient")
	snap.Assignments = []*model.Assignment{cell}

	ev := testEvaluator().Evaluate(snap, &Request{Source: cell, TargetStaff: target})
	if !ev.Feasible {
		t.Fatalf("空闲职员接替应可行: %+v", ev.Issues)
	}
	if ev.Impact.TargetHoursChange != model.BlockAM.DurationHours() {
		t.Errorf("目标职员工时应增加 %d 小时，得到 %d",
			model.BlockAM.DurationHours(), ev.Impact.TargetHoursChange)
	}
	if ev.Impact.SourceHoursChange != -model.BlockAM.DurationHours() {
		t.Errorf("原职员工时应减少，得到 %d", ev.Impact.SourceHoursChange)
	}
}

func TestSwapRejectsLockedCell(t *testing.T) {
	snap, source, target := swapSnapshot()
	cell := swapCell(source, "2026-03-03", model.BlockAM, "outpatient")
	cell.Locked = true
	snap.Assignments = []*model.Assignment{cell}

	ev := testEvaluator().Evaluate(snap, &Request{Source: cell, TargetStaff: target})
	if ev.Feasible {
		t.Fatal("锁定格位不应允许换班")
	}
	if ev.Issues[0].Type != "cell_locked" {
		t.Errorf("应报锁定格位问题，得到 %s", ev.Issues[0].Type)
	}
}

func TestSwapRejectsPartTimeLateBlock(t *testing.T) {
	snap, source, _ := swapSnapshot()
	partTime := swapStaff("高桥", model.EmploymentPartTime)
	snap.Staffs = append(snap.Staffs, partTime)

	cell := swapCell(source, "2026-03-03", model.Block17, "outpatient")
	snap.Assignments = []*model.Assignment{cell}

	ev := testEvaluator().Evaluate(snap, &Request{Source: cell, TargetStaff: partTime})
	if ev.Feasible {
		t.Fatal("兼职职员不应接替午后晚段")
	}
}

func TestSwapRejectsMissingQualification(t *testing.T) {
	snap, source, _ := swapSnapshot()
	unqualified := swapStaff("田中", model.EmploymentFullTime)
	snap.Staffs = append(snap.Staffs, unqualified)

	cell := swapCell(source, "2026-03-03", model.BlockAM, "endoscopy")
	snap.Assignments = []*model.Assignment{cell}

	ev := testEvaluator().Evaluate(snap, &Request{Source: cell, TargetStaff: unqualified})
	if ev.Feasible {
		t.Fatal("缺少资质的职员不应接替")
	}
	found := false
	for _, issue := range ev.Issues {
		if issue.Type == "qualification_missing" {
			found = true
		}
	}
	if !found {
		t.Errorf("应报资质缺失问题: %+v", ev.Issues)
	}
}

func TestSwapRejectsOccupiedTargetCell(t *testing.T) {
	snap, source, target := swapSnapshot()
	cell := swapCell(source, "2026-03-03", model.BlockAM, "outpatient")
	busy := swapCell(target, "2026-03-03", model.BlockAM, "endoscopy")
	snap.Assignments = []*model.Assignment{cell, busy}

	ev := testEvaluator().Evaluate(snap, &Request{Source: cell, TargetStaff: target})
	if ev.Feasible {
		t.Fatal("目标格位已被占用时不应可行")
	}
}

func TestSwapExchange(t *testing.T) {
	snap, source, target := swapSnapshot()
	cellA := swapCell(source, "2026-03-03", model.BlockAM, "outpatient")
	cellB := swapCell(target, "2026-03-04", model.BlockAM, "outpatient")
	snap.Assignments = []*model.Assignment{cellA, cellB}

	ev := testEvaluator().Evaluate(snap, &Request{
		Source:      cellA,
		TargetStaff: target,
		Counterpart: cellB,
	})
	if !ev.Feasible {
		t.Fatalf("同块互换应可行: %+v", ev.Issues)
	}
	if ev.Impact.SourceHoursChange != 0 || ev.Impact.TargetHoursChange != 0 {
		t.Errorf("同时长互换工时应不变，得到 %d / %d",
			ev.Impact.SourceHoursChange, ev.Impact.TargetHoursChange)
	}
}

func TestRecommendTargets(t *testing.T) {
	snap, source, target := swapSnapshot()
	partTime := swapStaff("高桥", model.EmploymentPartTime)
	snap.Staffs = append(snap.Staffs, partTime)

	cell := swapCell(source, "2026-03-03", model.Block17, "outpatient")
	snap.Assignments = []*model.Assignment{cell}

	recs := NewRecommender(nil, cmodel.DefaultPreset()).RecommendTargets(snap, cell, nil)
	if len(recs) == 0 {
		t.Fatal("应有可接替的候选")
	}
	for _, rec := range recs {
		if rec.TargetStaff.ID == source.ID {
			t.Error("原职员不应出现在候选中")
		}
		if rec.TargetStaff.ID == partTime.ID {
			t.Error("兼职职员不应成为晚段候选")
		}
	}
	if recs[0].Rank != 1 {
		t.Errorf("首位候选排名应为 1，得到 %d", recs[0].Rank)
	}
	_ = target
}

func TestFindCoverFor(t *testing.T) {
	snap, source, target := swapSnapshot()
	am := swapCell(source, "2026-03-03", model.BlockAM, "outpatient")
	pm := swapCell(source, "2026-03-03", model.BlockPM, "outpatient")
	snap.Assignments = []*model.Assignment{am, pm}

	covers := NewRecommender(nil, cmodel.DefaultPreset()).FindCoverFor(snap, source.ID, "2026-03-03")
	if len(covers) != 2 {
		t.Fatalf("请假职员的 2 个格位都应有接替，得到 %d", len(covers))
	}
	for _, c := range covers {
		if c.TargetStaff.ID != target.ID {
			t.Errorf("接替者应为铃木，得到 %s", c.TargetStaff.Name)
		}
	}
}
