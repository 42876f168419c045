package rulecompiler

import (
	"testing"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/errors"
	"github.com/clinicshift/clinicshift/pkg/model"
)

func testSnapshot() *model.Snapshot {
	staff := &model.Staff{
		BaseModel:      model.NewBaseModel(),
		Name:           "山田",
		EmploymentType: model.EmploymentFullTime,
		IsActive:       true,
	}
	return &model.Snapshot{
		ScheduleID: uuid.New(),
		YearMonth:  "2026-03",
		Staffs:     []*model.Staff{staff},
		TaskTypes: map[string]*model.TaskType{
			"outpatient": {Code: "outpatient", DisplayName: "门诊", IsActive: true},
			"visit":      {Code: "visit", DisplayName: "外访", IsActive: true},
		},
		Resources: []*model.Resource{
			{BaseModel: model.NewBaseModel(), Type: model.ResourceCar, Name: "车辆A", Capacity: 2, IsActive: true},
		},
	}
}

func newRule(template model.RuleTemplate, category model.RuleCategory, body model.JSONMap) *model.Rule {
	return &model.Rule{
		BaseModel: model.NewBaseModel(),
		Template:  template,
		Category:  category,
		Weight:    200,
		Body:      body,
		IsActive:  true,
	}
}

func TestCompileHeadcount(t *testing.T) {
	snap := testSnapshot()
	snap.Rules = []*model.Rule{
		newRule(model.TemplateHeadcount, model.RuleHard, model.JSONMap{
			"task": "outpatient", "min": float64(2), "max": float64(4),
			"blocks":   []interface{}{"am", "pm"},
			"weekdays": []interface{}{float64(0), float64(2)},
		}),
	}

	compiled, err := New(snap).Compile()
	if err != nil {
		t.Fatalf("Compile() 失败: %v", err)
	}
	if len(compiled) != 1 {
		t.Fatalf("期望 1 条编译产物，得到 %d", len(compiled))
	}

	hc := compiled[0].Headcount
	if hc == nil {
		t.Fatal("期望 Headcount 变体非空")
	}
	if hc.TaskCode != "outpatient" || hc.MinStaff != 2 || hc.MaxStaff != 4 {
		t.Errorf("人数规则字段错误: %+v", hc)
	}
	if compiled[0].Meta.Weight != model.HardSeverity {
		t.Errorf("硬规则有效权重应为 %d，得到 %d", model.HardSeverity, compiled[0].Meta.Weight)
	}

	// 2026-03-02 周一 / 2026-03-03 周二
	if !hc.AppliesTo("2026-03-02", model.BlockAM) {
		t.Error("周一 am 应匹配")
	}
	if hc.AppliesTo("2026-03-03", model.BlockAM) {
		t.Error("周二不在 weekdays 列表，不应匹配")
	}
	if hc.AppliesTo("2026-03-02", model.Block15) {
		t.Error("15 块不在 blocks 列表，不应匹配")
	}
}

func TestCompileHeadcountDefaultsToWeekdays(t *testing.T) {
	snap := testSnapshot()
	snap.Rules = []*model.Rule{
		newRule(model.TemplateHeadcount, model.RuleHard, model.JSONMap{
			"task": "outpatient", "min": float64(1),
		}),
	}

	compiled, err := New(snap).Compile()
	if err != nil {
		t.Fatalf("Compile() 失败: %v", err)
	}

	hc := compiled[0].Headcount
	// 2026-03-07 周六：空 weekdays 退化为周一至周五
	if hc.AppliesTo("2026-03-07", model.BlockAM) {
		t.Error("周末不应匹配默认工作日规则")
	}
	if !hc.AppliesTo("2026-03-06", model.BlockAM) {
		t.Error("周五应匹配默认工作日规则")
	}
}

func TestCompileAvailabilityByStaffName(t *testing.T) {
	snap := testSnapshot()
	snap.Rules = []*model.Rule{
		newRule(model.TemplateAvailability, model.RuleHard, model.JSONMap{
			"staff_name": "山田",
			"weekdays":   []interface{}{float64(4)},
			"blocks":     []interface{}{"pm"},
		}),
	}

	compiled, err := New(snap).Compile()
	if err != nil {
		t.Fatalf("Compile() 失败: %v", err)
	}

	av := compiled[0].Availability
	if av == nil {
		t.Fatal("期望 Availability 变体非空")
	}
	if av.StaffID != snap.Staffs[0].ID {
		t.Error("staff_name 应解析为职员 ID")
	}
	// 2026-03-06 周五
	if !av.Covers("2026-03-06", model.BlockPM) {
		t.Error("周五 pm 应被覆盖")
	}
	if av.Covers("2026-03-06", model.BlockAM) {
		t.Error("am 不在 blocks 列表，不应覆盖")
	}
}

func TestCompileAvailabilityBySpecificDates(t *testing.T) {
	snap := testSnapshot()
	snap.Rules = []*model.Rule{
		newRule(model.TemplateAvailability, model.RuleHard, model.JSONMap{
			"staff_name": "山田",
			"dates":      []interface{}{"2026-03-10"},
		}),
	}

	compiled, err := New(snap).Compile()
	if err != nil {
		t.Fatalf("Compile() 失败: %v", err)
	}

	av := compiled[0].Availability
	if !av.Covers("2026-03-10", model.BlockAM) || !av.Covers("2026-03-10", model.Block17) {
		t.Error("指定日期应全天覆盖")
	}
	if av.Covers("2026-03-11", model.BlockAM) {
		t.Error("其它日期不应覆盖")
	}
}

func TestCompileResourceReq(t *testing.T) {
	snap := testSnapshot()
	snap.Rules = []*model.Rule{
		newRule(model.TemplateResourceReq, model.RuleHard, model.JSONMap{
			"task": "visit", "resource": "car",
		}),
	}

	compiled, err := New(snap).Compile()
	if err != nil {
		t.Fatalf("Compile() 失败: %v", err)
	}
	rr := compiled[0].Resource
	if rr == nil || rr.ResourceType != model.ResourceCar || rr.Count != 1 {
		t.Errorf("资源规则解析错误: %+v", rr)
	}
}

func TestCompileRecurringAndSpecificDate(t *testing.T) {
	snap := testSnapshot()
	snap.Rules = []*model.Rule{
		newRule(model.TemplateRecurring, model.RuleSoft, model.JSONMap{
			"task": "outpatient", "weekdays": []interface{}{float64(1)},
			"blocks": []interface{}{"am"}, "staff_count": float64(2),
		}),
		newRule(model.TemplateSpecificDate, model.RuleHard, model.JSONMap{
			"task": "visit", "date": "2026-03-18", "blocks": []interface{}{"pm"},
		}),
	}

	compiled, err := New(snap).Compile()
	if err != nil {
		t.Fatalf("Compile() 失败: %v", err)
	}
	if len(compiled) != 2 {
		t.Fatalf("期望 2 条编译产物，得到 %d", len(compiled))
	}

	rec := compiled[0].Recurring
	if rec == nil || rec.StaffCount != 2 {
		t.Fatalf("周期规则解析错误: %+v", rec)
	}
	// 2026-03-03 周二
	if !rec.OccursOn("2026-03-03") {
		t.Error("周二应开展周期任务")
	}
	if rec.OccursOn("2026-03-04") {
		t.Error("周三不应开展周期任务")
	}

	sd := compiled[1].SpecificDate
	if sd == nil || sd.Date != "2026-03-18" || sd.StaffCount != 1 {
		t.Errorf("指定日期规则解析错误: %+v", sd)
	}
}

func TestCompileExceptionsSuspendRule(t *testing.T) {
	snap := testSnapshot()
	rule := newRule(model.TemplateRecurring, model.RuleHard, model.JSONMap{
		"task": "outpatient", "weekdays": []interface{}{float64(1)}, "blocks": []interface{}{"am"},
	})
	rule.Exceptions = []string{"2026-03-10"}
	snap.Rules = []*model.Rule{rule}

	compiled, err := New(snap).Compile()
	if err != nil {
		t.Fatalf("Compile() 失败: %v", err)
	}

	cr := compiled[0]
	if cr.ActiveOn("2026-03-10") {
		t.Error("例外日期规则应暂停")
	}
	if !cr.ActiveOn("2026-03-03") {
		t.Error("非例外日期规则应生效")
	}
}

func TestCompileRejectsMalformedBodies(t *testing.T) {
	cases := []struct {
		name string
		rule *model.Rule
	}{
		{"缺少min", newRule(model.TemplateHeadcount, model.RuleHard, model.JSONMap{"task": "outpatient"})},
		{"未知任务", newRule(model.TemplateHeadcount, model.RuleHard, model.JSONMap{"task": "nope", "min": float64(1)})},
		{"未知职员", newRule(model.TemplateAvailability, model.RuleHard, model.JSONMap{"staff_name": "不存在"})},
		{"非法时间块", newRule(model.TemplateRecurring, model.RuleHard, model.JSONMap{"task": "outpatient", "blocks": []interface{}{"midnight"}})},
		{"非法日期", newRule(model.TemplateSpecificDate, model.RuleHard, model.JSONMap{"task": "visit", "date": "03/18"})},
		{"未知资源", newRule(model.TemplateResourceReq, model.RuleHard, model.JSONMap{"task": "visit", "resource": "boat"})},
		{"星期越界", newRule(model.TemplateHeadcount, model.RuleHard, model.JSONMap{"task": "outpatient", "min": float64(1), "weekdays": []interface{}{float64(7)}})},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			snap := testSnapshot()
			snap.Rules = []*model.Rule{tc.rule}
			_, err := New(snap).Compile()
			if err == nil {
				t.Fatal("期望编译失败")
			}
			if errors.GetCode(err) != errors.CodeValidationFail {
				t.Errorf("期望错误码 %s，得到 %s", errors.CodeValidationFail, errors.GetCode(err))
			}
		})
	}
}

func TestCompileSkipsInactiveRules(t *testing.T) {
	snap := testSnapshot()
	inactive := newRule(model.TemplateHeadcount, model.RuleHard, model.JSONMap{"broken": true})
	inactive.IsActive = false
	snap.Rules = []*model.Rule{inactive}

	compiled, err := New(snap).Compile()
	if err != nil {
		t.Fatalf("停用规则不应参与编译: %v", err)
	}
	if len(compiled) != 0 {
		t.Errorf("期望 0 条编译产物，得到 %d", len(compiled))
	}
}
