package unsat

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/rulecompiler"
	"github.com/clinicshift/clinicshift/pkg/scheduler/cmodel"
)

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

func newStaff(name string) *model.Staff {
	return &model.Staff{
		BaseModel:      model.NewBaseModel(),
		Name:           name,
		EmploymentType: model.EmploymentFullTime,
		IsActive:       true,
	}
}

func hardMeta(template model.RuleTemplate, text string) rulecompiler.RuleMeta {
	return rulecompiler.RuleMeta{
		RuleID:      uuid.New(),
		Template:    template,
		Category:    model.RuleHard,
		Weight:      model.HardSeverity,
		NaturalText: text,
	}
}

func TestFindCoreFeasible(t *testing.T) {
	snap := newSnapshot(newStaff("山田"))

	core, err := NewAnalyzer(time.Second).FindCore(context.Background(), snap, nil, cmodel.DefaultPreset())
	if err != nil {
		t.Fatalf("分析失败: %v", err)
	}
	if !core.Feasible {
		t.Error("无规则快照应可行")
	}
	if len(core.RuleIDs) != 0 {
		t.Errorf("可行快照不应有冲突核: %v", core.RuleIDs)
	}
	if core.Probes != 1 {
		t.Errorf("可行快照应只探测 1 次，得到 %d", core.Probes)
	}
}

func TestFindCoreStructural(t *testing.T) {
	snap := newSnapshot(newStaff("山田"))
	snap.Events = []*model.Event{{
		BaseModel:     model.NewBaseModel(),
		TypeCode:      "outpatient",
		DurationHours: 1,
		TimeConstraint: model.TimeConstraint{
			Type: model.TimeFixed, Date: "2026-03-02", StartHour: 9,
		},
		RequiredQuals: []string{"nurse"}, // 无人具备
		Priority:      model.PriorityRequired,
		Status:        model.EventUnassigned,
	}}

	core, err := NewAnalyzer(time.Second).FindCore(context.Background(), snap, nil, cmodel.DefaultPreset())
	if err != nil {
		t.Fatalf("分析失败: %v", err)
	}
	if core.Feasible {
		t.Fatal("结构性问题应判定不可行")
	}
	if len(core.Structural) == 0 {
		t.Error("应报告结构性问题")
	}
	if core.Probes != 0 {
		t.Errorf("结构性问题无需探测，得到 %d 次", core.Probes)
	}
}

func TestFindCoreConflictingRules(t *testing.T) {
	staff := newStaff("山田")
	snap := newSnapshot(staff)

	// 职员工作日全部不可排（仅周末可用），而周期任务要求周一开诊：两条硬规则互斥
	availability := &rulecompiler.CompiledRule{
		Meta: hardMeta(model.TemplateAvailability, "山田仅周末可用"),
		Availability: &rulecompiler.AvailabilitySpec{
			StaffID:  staff.ID,
			Weekdays: []int{0, 1, 2, 3, 4},
		},
	}
	recurring := &rulecompiler.CompiledRule{
		Meta: hardMeta(model.TemplateRecurring, "每周一上午开诊"),
		Recurring: &rulecompiler.RecurringSpec{
			TaskCode: "outpatient", Weekdays: []int{0}, StaffCount: 1,
		},
	}
	rules := []*rulecompiler.CompiledRule{availability, recurring}

	core, err := NewAnalyzer(time.Second).FindCore(context.Background(), snap, rules, cmodel.DefaultPreset())
	if err != nil {
		t.Fatalf("分析失败: %v", err)
	}
	if core.Feasible {
		t.Fatal("互斥硬规则应判定不可行")
	}
	if len(core.RuleIDs) != 2 {
		t.Fatalf("冲突核应包含两条规则，得到 %d", len(core.RuleIDs))
	}
	inCore := map[uuid.UUID]bool{core.RuleIDs[0]: true, core.RuleIDs[1]: true}
	if !inCore[availability.Meta.RuleID] || !inCore[recurring.Meta.RuleID] {
		t.Error("冲突核应正好是互斥的两条规则")
	}
	if len(core.Hints) != 2 {
		t.Errorf("每条核内规则应有修复提示，得到 %d", len(core.Hints))
	}
	// 初始探测 1 次 + 每条硬规则各 1 次
	if core.Probes != 3 {
		t.Errorf("期望 3 次探测，得到 %d", core.Probes)
	}
}

func TestFindCoreIsolatesOnePair(t *testing.T) {
	yamada := newStaff("山田")
	yamada.Qualifications = []string{"doctor"}
	suzuki := newStaff("鈴木")
	suzuki.Qualifications = []string{"clerk"}

	snap := newSnapshot(yamada, suzuki)
	snap.TaskTypes = map[string]*model.TaskType{
		"outpatient": {Code: "outpatient", RequiredQuals: []string{"doctor"}, IsActive: true},
		"reception":  {Code: "reception", RequiredQuals: []string{"clerk"}, IsActive: true},
	}

	// 两组互不相关的冲突：山田周一不可排 vs 周一门诊，鈴木周二不可排 vs 周二前台
	rules := []*rulecompiler.CompiledRule{
		{
			Meta: hardMeta(model.TemplateAvailability, "山田周一不可排"),
			Availability: &rulecompiler.AvailabilitySpec{
				StaffID: yamada.ID, Weekdays: []int{0},
			},
		},
		{
			Meta: hardMeta(model.TemplateRecurring, "每周一上午开诊"),
			Recurring: &rulecompiler.RecurringSpec{
				TaskCode: "outpatient", Weekdays: []int{0}, StaffCount: 1,
			},
		},
		{
			Meta: hardMeta(model.TemplateAvailability, "鈴木周二不可排"),
			Availability: &rulecompiler.AvailabilitySpec{
				StaffID: suzuki.ID, Weekdays: []int{1},
			},
		},
		{
			Meta: hardMeta(model.TemplateRecurring, "每周二上午开前台"),
			Recurring: &rulecompiler.RecurringSpec{
				TaskCode: "reception", Weekdays: []int{1}, StaffCount: 1,
			},
		},
	}

	core, err := NewAnalyzer(time.Second).FindCore(context.Background(), snap, rules, cmodel.DefaultPreset())
	if err != nil {
		t.Fatalf("分析失败: %v", err)
	}
	if core.Feasible {
		t.Fatal("存在冲突组合应判定不可行")
	}
	// 删除法应收敛到其中一组互斥对，而不是空核
	if len(core.RuleIDs) != 2 {
		t.Fatalf("冲突核应为一组互斥对（2 条规则），得到 %d", len(core.RuleIDs))
	}
	inCore := map[uuid.UUID]bool{core.RuleIDs[0]: true, core.RuleIDs[1]: true}
	pair1 := inCore[rules[0].Meta.RuleID] && inCore[rules[1].Meta.RuleID]
	pair2 := inCore[rules[2].Meta.RuleID] && inCore[rules[3].Meta.RuleID]
	if !pair1 && !pair2 {
		t.Errorf("冲突核应正好是某一组互斥对: %v", core.RuleIDs)
	}
}
