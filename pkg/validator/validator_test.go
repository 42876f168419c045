package validator

import (
	"testing"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/rulecompiler"
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

func newSnapshot(staffs ...*model.Staff) *model.Snapshot {
	return &model.Snapshot{
		ScheduleID: uuid.New(),
		YearMonth:  "2026-03",
		Staffs:     staffs,
		TaskTypes: map[string]*model.TaskType{
			"outpatient": {Code: "outpatient", IsActive: true},
		},
	}
}

func assign(staffID uuid.UUID, date string, block model.TimeBlock, task string) *model.Assignment {
	return &model.Assignment{
		BaseModel:    model.NewBaseModel(),
		StaffID:      staffID,
		Date:         date,
		Block:        block,
		TaskTypeCode: task,
		Source:       model.SourceManual,
	}
}

func TestValidateCleanSchedule(t *testing.T) {
	staff := newStaff("山田")
	snap := newSnapshot(staff)
	snap.Assignments = []*model.Assignment{
		assign(staff.ID, "2026-03-02", model.BlockAM, "outpatient"),
	}

	report := New(nil, cmodel.DefaultPreset()).Validate(snap)
	if !report.Valid {
		t.Errorf("无冲突排班应通过校验: %+v", report.Violations)
	}
	if report.Objective != 0 {
		t.Errorf("目标值应为 0，得到 %d", report.Objective)
	}
}

func TestValidateDetectsDoubleBooking(t *testing.T) {
	staff := newStaff("山田")
	snap := newSnapshot(staff)
	snap.Assignments = []*model.Assignment{
		assign(staff.ID, "2026-03-02", model.BlockAM, "outpatient"),
		assign(staff.ID, "2026-03-02", model.BlockAM, "outpatient"),
	}

	report := New(nil, cmodel.DefaultPreset()).Validate(snap)
	if report.Valid {
		t.Fatal("同格位重复分配应校验失败")
	}
	found := false
	for _, v := range report.Violations {
		if v.CheckType == model.ViolationDoubleBooking && v.IsHard() {
			found = true
		}
	}
	if !found {
		t.Errorf("应报告重复分配违反: %+v", report.Violations)
	}
}

func TestValidateCellsFiltersByLocation(t *testing.T) {
	yamada := newStaff("山田")
	suzuki := newStaff("鈴木")
	snap := newSnapshot(yamada, suzuki)
	snap.Assignments = []*model.Assignment{
		// 两处独立的重复分配
		assign(yamada.ID, "2026-03-02", model.BlockAM, "outpatient"),
		assign(yamada.ID, "2026-03-02", model.BlockAM, "outpatient"),
		assign(suzuki.ID, "2026-03-10", model.BlockPM, "outpatient"),
		assign(suzuki.ID, "2026-03-10", model.BlockPM, "outpatient"),
	}

	v := New(nil, cmodel.DefaultPreset())

	full := v.Validate(snap)
	if len(full.Violations) != 2 {
		t.Fatalf("全量校验应报告 2 处违反，得到 %d", len(full.Violations))
	}

	report := v.ValidateCells(snap, []model.CellKey{
		{StaffID: yamada.ID, Date: "2026-03-02", Block: model.BlockAM},
	})
	if !report.Restricted {
		t.Error("变更格位校验应标记为受限报告")
	}
	if report.Valid {
		t.Error("存在硬性违反时 Valid 应为 false")
	}
	if len(report.Violations) != 1 {
		t.Fatalf("只应报告变更格位相关的违反，得到 %d", len(report.Violations))
	}
	if report.Violations[0].Date != "2026-03-02" {
		t.Errorf("保留的违反位置不符: %s", report.Violations[0].Date)
	}
}

func TestValidateCellsEmptyHintFallsBack(t *testing.T) {
	staff := newStaff("山田")
	snap := newSnapshot(staff)

	report := New(nil, cmodel.DefaultPreset()).ValidateCells(snap, nil)
	if report.Restricted {
		t.Error("无变更提示时应退化为全量校验")
	}
}

func TestValidateLockedCellConsistent(t *testing.T) {
	staff := newStaff("山田")
	snap := newSnapshot(staff)
	snap.TaskTypes["outpatient"].RequiredQuals = []string{"doctor"}

	// 锁定格位上的资质缺口既不报告也不影响结论
	locked := assign(staff.ID, "2026-03-02", model.BlockAM, "outpatient")
	locked.Locked = true
	snap.Assignments = []*model.Assignment{locked}

	report := New(nil, cmodel.DefaultPreset()).Validate(snap)
	if len(report.Violations) != 0 {
		t.Fatalf("锁定格位违反不应报告: %+v", report.Violations)
	}
	if !report.Valid {
		t.Error("违反集合为空时 Valid 应为 true")
	}

	// 同样的缺口出现在未锁定格位则正常报告
	open := assign(staff.ID, "2026-03-03", model.BlockAM, "outpatient")
	snap.Assignments = append(snap.Assignments, open)

	report = New(nil, cmodel.DefaultPreset()).Validate(snap)
	if report.Valid {
		t.Error("未锁定格位存在硬性违反时 Valid 应为 false")
	}
	if len(report.Violations) == 0 {
		t.Error("未锁定格位的违反应正常报告")
	}
}

// compileSoftHeadcount 构造一条未满足的软性人数规则并编译
func compileSoftHeadcount(t *testing.T, snap *model.Snapshot, weight int) []*rulecompiler.CompiledRule {
	t.Helper()
	snap.Rules = []*model.Rule{
		{
			BaseModel: model.NewBaseModel(),
			Template:  model.TemplateHeadcount,
			Category:  model.RuleSoft,
			Weight:    weight,
			Body: model.JSONMap{
				"task":   "outpatient",
				"min":    float64(1),
				"blocks": []interface{}{"am"},
			},
			IsActive: true,
		},
	}
	rules, err := rulecompiler.New(snap).Compile()
	if err != nil {
		t.Fatalf("Compile() 失败: %v", err)
	}
	return rules
}

func TestValidateIdempotent(t *testing.T) {
	staff := newStaff("山田")
	snap := newSnapshot(staff)
	rules := compileSoftHeadcount(t, snap, 200)

	v := New(rules, cmodel.DefaultPreset())
	first := v.Validate(snap)
	second := v.Validate(snap)

	if first.Valid != second.Valid {
		t.Errorf("两次校验 Valid 不一致: %v vs %v", first.Valid, second.Valid)
	}
	if first.Objective != second.Objective {
		t.Errorf("两次校验目标值不一致: %d vs %d", first.Objective, second.Objective)
	}
	if len(first.Violations) != len(second.Violations) {
		t.Errorf("两次校验违反数不一致: %d vs %d",
			len(first.Violations), len(second.Violations))
	}
}

func TestValidateSoftWeightScalesObjective(t *testing.T) {
	staff := newStaff("山田")

	light := newSnapshot(staff)
	lightRules := compileSoftHeadcount(t, light, 10)
	heavy := newSnapshot(staff)
	heavyRules := compileSoftHeadcount(t, heavy, 100)

	preset := cmodel.DefaultPreset()
	lightReport := New(lightRules, preset).Validate(light)
	heavyReport := New(heavyRules, preset).Validate(heavy)

	if lightReport.Objective <= 0 {
		t.Fatal("未满足的软规则应产生正的目标值")
	}
	// 同样的缺口模式下目标值应与规则权重成正比
	if heavyReport.Objective != lightReport.Objective*10 {
		t.Errorf("目标值未随权重等比增长: weight=10 时 %d, weight=100 时 %d",
			lightReport.Objective, heavyReport.Objective)
	}
}
