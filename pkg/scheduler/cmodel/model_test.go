package cmodel

import (
	"testing"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
)

func newStaff(name string, canDrive bool, quals ...string) *model.Staff {
	return &model.Staff{
		BaseModel:      model.NewBaseModel(),
		Name:           name,
		EmploymentType: model.EmploymentFullTime,
		CanDrive:       canDrive,
		Qualifications: quals,
		IsActive:       true,
	}
}

func newSnapshot(staffs ...*model.Staff) *model.Snapshot {
	return &model.Snapshot{
		ScheduleID: uuid.New(),
		YearMonth:  "2026-03",
		Staffs:     staffs,
		TaskTypes: map[string]*model.TaskType{
			"outpatient": {Code: "outpatient", MinStaff: 1, IsActive: true},
			"visit": {
				Code: "visit", LocationType: model.LocationVisit,
				RequiredResources: []string{model.ResourceCar},
				RequiredQuals:     []string{"nurse"},
				MinStaff:          1, IsActive: true,
			},
		},
		Resources: []*model.Resource{
			{BaseModel: model.NewBaseModel(), Type: model.ResourceCar, Capacity: 1, IsActive: true},
		},
	}
}

func rangeEvent(priority model.EventPriority, weekdays []int, period string) *model.Event {
	return &model.Event{
		BaseModel:     model.NewBaseModel(),
		TypeCode:      "home_visit",
		DurationHours: 1,
		TimeConstraint: model.TimeConstraint{
			Type:     model.TimeRange,
			Weekdays: weekdays,
			Period:   period,
		},
		Priority: priority,
		Status:   model.EventUnassigned,
	}
}

func TestPresets(t *testing.T) {
	presets := Presets()
	if len(presets) != 3 {
		t.Fatalf("期望 3 个预设，得到 %d", len(presets))
	}
	seeds := make(map[int64]bool)
	for _, p := range presets {
		if seeds[p.Seed] {
			t.Errorf("预设种子重复: %d", p.Seed)
		}
		seeds[p.Seed] = true
	}

	hf, err := PresetByID(PresetHardFirst)
	if err != nil {
		t.Fatalf("查找预设失败: %v", err)
	}
	if hf.ShortfallWeight != 800 || hf.EventScale != 1.5 {
		t.Errorf("hard_first 权重不符: %+v", hf)
	}

	if _, err := PresetByID("unknown"); err == nil {
		t.Error("未知预设应返回错误")
	}
	if DefaultPreset().ID != PresetBalanced {
		t.Errorf("默认预设应为 %s", PresetBalanced)
	}
}

func TestBuildExpandsRangeEvent(t *testing.T) {
	staff := newStaff("山田", false)
	snap := newSnapshot(staff)
	// 2026-03 的周三: 03-04, 03-11, 03-18, 03-25
	ev := rangeEvent(model.PriorityHigh, []int{2}, "pm")
	snap.Events = []*model.Event{ev}

	m, err := Build(snap, nil, DefaultPreset())
	if err != nil {
		t.Fatalf("构建模型失败: %v", err)
	}

	// 4 个周三 × pm 时段 3 个起始块 × 1 名职员
	cands := m.EventCandidates[ev.ID]
	if len(cands) != 12 {
		t.Fatalf("期望 12 个候选放置，得到 %d", len(cands))
	}
	for _, c := range cands {
		if model.WeekdayOf(c.Start.Date) != 2 {
			t.Errorf("候选日期 %s 不是周三", c.Start.Date)
		}
		if c.Start.Block == model.BlockAM || c.Start.Block == model.Block17 {
			t.Errorf("pm 时段不应包含起始块 %s", c.Start.Block)
		}
	}
}

func TestBuildRangeEventDefaultsToWeekdays(t *testing.T) {
	staff := newStaff("山田", false)
	snap := newSnapshot(staff)
	ev := rangeEvent(model.PriorityLow, nil, "am")
	snap.Events = []*model.Event{ev}

	m, err := Build(snap, nil, DefaultPreset())
	if err != nil {
		t.Fatalf("构建模型失败: %v", err)
	}
	// 2026-03 有 22 个工作日，am 时段 1 个起始块
	if got := len(m.EventCandidates[ev.ID]); got != 22 {
		t.Errorf("期望 22 个候选放置，得到 %d", got)
	}
}

func TestBuildFixedEvent(t *testing.T) {
	staff := newStaff("山田", true, "nurse")
	snap := newSnapshot(staff)
	ev := &model.Event{
		BaseModel:     model.NewBaseModel(),
		TypeCode:      "conference",
		DurationHours: 2,
		TimeConstraint: model.TimeConstraint{
			Type: model.TimeFixed, Date: "2026-03-02", StartHour: 13,
		},
		Priority: model.PriorityRequired,
		Status:   model.EventUnassigned,
	}
	snap.Events = []*model.Event{ev}

	m, err := Build(snap, nil, DefaultPreset())
	if err != nil {
		t.Fatalf("构建模型失败: %v", err)
	}
	cands := m.EventCandidates[ev.ID]
	if len(cands) != 1 {
		t.Fatalf("期望 1 个候选放置，得到 %d", len(cands))
	}
	if cands[0].Start.Block != model.BlockPM {
		t.Errorf("起始块应为 pm，得到 %s", cands[0].Start.Block)
	}
	if len(cands[0].Blocks) != 1 {
		// pm 块时长 2 小时，正好覆盖
		t.Errorf("期望跨 1 块，得到 %v", cands[0].Blocks)
	}
}

func TestBuildSkipsOtherMonthEvent(t *testing.T) {
	staff := newStaff("山田", false)
	snap := newSnapshot(staff)
	ev := rangeEvent(model.PriorityHigh, nil, "")
	ev.TimeConstraint.Month = "2026-04"
	snap.Events = []*model.Event{ev}

	m, err := Build(snap, nil, DefaultPreset())
	if err != nil {
		t.Fatalf("构建模型失败: %v", err)
	}
	if len(m.Events) != 0 {
		t.Error("其他月份的事件不应参与求解")
	}
	if len(m.SkippedEvents) != 1 || m.SkippedEvents[0] != ev.ID {
		t.Errorf("事件应记入 SkippedEvents: %v", m.SkippedEvents)
	}
}

func TestBuildStructuralNoCandidates(t *testing.T) {
	staff := newStaff("山田", false) // 无护士资质
	snap := newSnapshot(staff)
	ev := rangeEvent(model.PriorityRequired, nil, "am")
	ev.RequiredQuals = []string{"nurse"}
	snap.Events = []*model.Event{ev}

	m, err := Build(snap, nil, DefaultPreset())
	if err != nil {
		t.Fatalf("构建模型失败: %v", err)
	}
	if !m.DefinitelyInfeasible() {
		t.Fatal("必须事件无候选时应判定结构性不可行")
	}
	found := false
	for _, v := range m.StructuralIssues {
		if v.CheckType == model.ViolationUnplacedEvent && v.EventID != nil && *v.EventID == ev.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("结构性诊断缺少未排事件记录: %+v", m.StructuralIssues)
	}
}

func TestBuildStructuralResourceExhaustion(t *testing.T) {
	staff := newStaff("山田", true, "nurse")
	snap := newSnapshot(staff)
	snap.Resources = nil // 无任何车辆
	ev := rangeEvent(model.PriorityRequired, nil, "am")
	ev.RequiredResources = []string{model.ResourceCar}
	snap.Events = []*model.Event{ev}

	m, err := Build(snap, nil, DefaultPreset())
	if err != nil {
		t.Fatalf("构建模型失败: %v", err)
	}
	if len(m.ExhaustedResources) != 1 || m.ExhaustedResources[0] != model.ResourceCar {
		t.Errorf("应诊断出车辆资源耗尽: %v", m.ExhaustedResources)
	}
}

func TestBuildLockedCellsExcludeCandidates(t *testing.T) {
	staff := newStaff("山田", true, "nurse")
	snap := newSnapshot(staff)
	ev := &model.Event{
		BaseModel:     model.NewBaseModel(),
		TypeCode:      "conference",
		DurationHours: 1,
		TimeConstraint: model.TimeConstraint{
			Type: model.TimeFixed, Date: "2026-03-02", StartHour: 9,
		},
		Priority: model.PriorityRequired,
		Status:   model.EventUnassigned,
	}
	snap.Events = []*model.Event{ev}
	snap.Assignments = []*model.Assignment{{
		BaseModel: model.NewBaseModel(),
		StaffID:   staff.ID, Date: "2026-03-02", Block: model.BlockAM,
		TaskTypeCode: "outpatient", Locked: true, Source: model.SourceManual,
	}}

	m, err := Build(snap, nil, DefaultPreset())
	if err != nil {
		t.Fatalf("构建模型失败: %v", err)
	}
	if len(m.EventCandidates[ev.ID]) != 0 {
		t.Error("锁定格位应排除候选放置")
	}
	if !m.DefinitelyInfeasible() {
		t.Error("唯一候选被锁定后应判定结构性不可行")
	}
}

func TestCellDomain(t *testing.T) {
	full := newStaff("山田", true, "nurse")
	part := newStaff("鈴木", false)
	part.EmploymentType = model.EmploymentPartTime
	snap := newSnapshot(full, part)

	m, err := Build(snap, nil, DefaultPreset())
	if err != nil {
		t.Fatalf("构建模型失败: %v", err)
	}

	if got := m.CellDomain(full, "2026-03-02", model.BlockAM); len(got) != 2 {
		t.Errorf("全职护士上午应可承担 2 种任务，得到 %v", got)
	}
	// 兼职无资质且不可驾车，仅剩门诊
	if got := m.CellDomain(part, "2026-03-02", model.BlockAM); len(got) != 1 || got[0] != "outpatient" {
		t.Errorf("兼职职员上午域应为 [outpatient]，得到 %v", got)
	}
	if got := m.CellDomain(part, "2026-03-02", model.Block16); got != nil {
		t.Errorf("兼职职员晚段域应为空，得到 %v", got)
	}
	if got := m.CellDomain(full, "2026-03-02", model.BlockLunch); got != nil {
		t.Errorf("午休块域应为空，得到 %v", got)
	}
}

func TestLockOutsideDatesFreezesCells(t *testing.T) {
	staff := newStaff("山田", false)
	snap := newSnapshot(staff)

	m, err := Build(snap, nil, DefaultPreset())
	if err != nil {
		t.Fatalf("构建模型失败: %v", err)
	}

	m.LockOutsideDates(map[string]bool{"2026-03-05": true})

	if m.CellFree(staff.ID, "2026-03-02", model.BlockAM) {
		t.Error("变更区域外的格位应被冻结")
	}
	if !m.CellFree(staff.ID, "2026-03-05", model.BlockAM) {
		t.Error("变更区域内的格位应保持可用")
	}
	if got := m.CellDomain(staff, "2026-03-02", model.BlockAM); got != nil {
		t.Errorf("冻结格位的任务域应为空，得到 %v", got)
	}
	// 冻结与用户锁定分开记录，违反提取只看后者
	if len(m.LockedCells) != 0 {
		t.Errorf("冻结不应混入用户锁定集合，得到 %d 条", len(m.LockedCells))
	}
}

func TestBuildRejectsInvalidMonth(t *testing.T) {
	snap := newSnapshot(newStaff("山田", false))
	snap.YearMonth = "bogus"
	if _, err := Build(snap, nil, DefaultPreset()); err == nil {
		t.Error("非法月份应返回错误")
	}
}
