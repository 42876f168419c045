package scenario

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
)

func visitEvent(scheduleID uuid.UUID, subject, date string, startHour int) *model.Event {
	return &model.Event{
		BaseModel:     model.NewBaseModel(),
		ScheduleID:    scheduleID,
		TypeCode:      "home_visit",
		SubjectName:   subject,
		LocationType:  model.LocationVisit,
		DurationHours: 2,
		TimeConstraint: model.TimeConstraint{
			Type: model.TimeFixed, Date: date, StartHour: startHour,
		},
		RequiredQuals:     []string{"nurse"},
		RequiredResources: []string{model.ResourceCar},
		Priority:          model.PriorityRequired,
		Status:            model.EventUnassigned,
	}
}

// visitSnapshot 上门诊疗场景：2名可开车的护士、1台出诊车
func visitSnapshot() *model.Snapshot {
	nurse1 := clinicStaff("渡边护士", model.EmploymentFullTime, "nurse")
	nurse1.CanDrive = true
	nurse2 := clinicStaff("小林护士", model.EmploymentFullTime, "nurse")
	nurse2.CanDrive = true

	return &model.Snapshot{
		ScheduleID: uuid.New(),
		YearMonth:  "2026-03",
		Staffs:     []*model.Staff{nurse1, nurse2},
		TaskTypes: map[string]*model.TaskType{
			"home_visit": {Code: "home_visit", DisplayName: "上门诊疗",
				LocationType: model.LocationVisit, RequiredQuals: []string{"nurse"},
				RequiredResources: []string{model.ResourceCar}, IsActive: true},
		},
		Resources: []*model.Resource{
			{BaseModel: model.NewBaseModel(), Type: model.ResourceCar,
				Name: "出诊车1号", Capacity: 1, IsActive: true},
		},
	}
}

// TestVisitEventsPlaced 测试上门事件排入
func TestVisitEventsPlaced(t *testing.T) {
	snap := visitSnapshot()
	snap.Events = []*model.Event{
		visitEvent(snap.ScheduleID, "斋藤宅", "2026-03-03", 9),
		visitEvent(snap.ScheduleID, "伊藤宅", "2026-03-05", 13),
	}

	sol, err := clinicEngine().Solve(context.Background(), snap, "")
	if err != nil {
		t.Fatalf("求解失败: %v", err)
	}
	if !sol.IsFeasible() {
		t.Fatalf("错开的上门事件应可排入，得到 %s", sol.Status)
	}
	if sol.Statistics.EventsPlaced != 2 {
		t.Errorf("应排入 2 个事件，得到 %d", sol.Statistics.EventsPlaced)
	}
}

// TestCarCapacityRespected 测试出诊车容量
func TestCarCapacityRespected(t *testing.T) {
	snap := visitSnapshot()
	// 两个事件抢同一时段的 1 台车
	snap.Events = []*model.Event{
		visitEvent(snap.ScheduleID, "斋藤宅", "2026-03-03", 9),
		visitEvent(snap.ScheduleID, "伊藤宅", "2026-03-03", 9),
	}

	sol, err := clinicEngine().Solve(context.Background(), snap, "")
	if err != nil {
		t.Fatalf("求解失败: %v", err)
	}

	// 无论状态如何，方案内不得出现超容量占用
	carUse := make(map[model.Slot]int)
	for _, a := range sol.Assignments {
		if a.TaskTypeCode == "home_visit" {
			carUse[a.Slot()]++
		}
	}
	for slot, n := range carUse {
		if n > 1 {
			t.Errorf("格位 %s %s 出诊车占用 %d 超过容量 1", slot.Date, slot.Block, n)
		}
	}
	if sol.IsFeasible() {
		t.Errorf("1 台车承载同时段 2 次上门不应可行，得到 %s", sol.Status)
	}
}

// TestCarCapacityConflictDiagnosis 测试资源冲突诊断
func TestCarCapacityConflictDiagnosis(t *testing.T) {
	snap := visitSnapshot()
	snap.Events = []*model.Event{
		visitEvent(snap.ScheduleID, "斋藤宅", "2026-03-03", 9),
		visitEvent(snap.ScheduleID, "伊藤宅", "2026-03-03", 9),
	}

	core, err := clinicEngine().FindUnsatCore(context.Background(), snap, "")
	if err != nil {
		t.Fatalf("冲突核分析失败: %v", err)
	}
	if core.Feasible {
		t.Fatal("超容量场景应判定不可行")
	}
	if len(core.Hints) == 0 {
		t.Error("诊断应给出修复提示")
	}
	t.Logf("诊断提示: %v", core.Hints)
}

// TestSecondCarResolvesConflict 测试增加车辆后冲突消除
func TestSecondCarResolvesConflict(t *testing.T) {
	snap := visitSnapshot()
	snap.Resources = append(snap.Resources, &model.Resource{
		BaseModel: model.NewBaseModel(), Type: model.ResourceCar,
		Name: "出诊车2号", Capacity: 1, IsActive: true,
	})
	snap.Events = []*model.Event{
		visitEvent(snap.ScheduleID, "斋藤宅", "2026-03-03", 9),
		visitEvent(snap.ScheduleID, "伊藤宅", "2026-03-03", 9),
	}

	sol, err := clinicEngine().Solve(context.Background(), snap, "")
	if err != nil {
		t.Fatalf("求解失败: %v", err)
	}
	if !sol.IsFeasible() {
		t.Errorf("2 台车应可承载同时段 2 次上门，得到 %s", sol.Status)
	}
	if sol.Statistics.EventsPlaced != 2 {
		t.Errorf("应排入 2 个事件，得到 %d", sol.Statistics.EventsPlaced)
	}
}
