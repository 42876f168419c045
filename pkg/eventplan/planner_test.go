package eventplan

import (
	"testing"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
)

func visitSeries() *Series {
	return &Series{
		TypeCode:          "home_visit",
		SubjectName:       "斋藤宅",
		LocationType:      model.LocationVisit,
		DurationHours:     2,
		Weekdays:          []int{1}, // 周二
		Period:            "pm",
		TimesPerMonth:     2,
		RequiredQuals:     []string{"nurse"},
		RequiredResources: []string{model.ResourceCar},
		Priority:          model.PriorityRequired,
	}
}

func TestExpandSeries(t *testing.T) {
	scheduleID := uuid.New()
	events, err := NewPlanner().Expand(scheduleID, "2026-03", visitSeries())
	if err != nil {
		t.Fatalf("展开失败: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("每月 2 次应生成 2 个事件，得到 %d", len(events))
	}
	for _, ev := range events {
		if ev.ScheduleID != scheduleID {
			t.Error("事件应归属指定排班表")
		}
		if ev.Status != model.EventUnassigned {
			t.Errorf("新事件状态应为 unassigned，得到 %s", ev.Status)
		}
		if ev.TimeConstraint.Type != model.TimeRange {
			t.Errorf("展开事件应使用 range 时间约束，得到 %s", ev.TimeConstraint.Type)
		}
		if !ev.IsRequired() {
			t.Error("系列优先级应传递到事件")
		}
	}
}

func TestExpandCapsAtCandidateDays(t *testing.T) {
	series := visitSeries()
	series.TimesPerMonth = 10 // 2026-03 只有 5 个周二

	events, err := NewPlanner().Expand(uuid.New(), "2026-03", series)
	if err != nil {
		t.Fatalf("展开失败: %v", err)
	}
	if len(events) > 5 {
		t.Errorf("事件数不应超过候选日数，得到 %d", len(events))
	}
}

func TestExpandRejectsInvalidSeries(t *testing.T) {
	series := visitSeries()
	series.DurationHours = 0

	if _, err := NewPlanner().Expand(uuid.New(), "2026-03", series); err == nil {
		t.Error("时长为 0 的系列应被拒绝")
	}
}

func TestExpandRejectsBadMonth(t *testing.T) {
	if _, err := NewPlanner().Expand(uuid.New(), "202603", visitSeries()); err == nil {
		t.Error("月份格式错误应返回错误")
	}
}

func TestValidateSeries(t *testing.T) {
	p := NewPlanner()

	if problems := p.ValidateSeries(visitSeries()); len(problems) != 0 {
		t.Errorf("合法系列不应有问题: %v", problems)
	}

	bad := &Series{Period: "night", Weekdays: []int{9}}
	problems := p.ValidateSeries(bad)
	if len(problems) < 4 {
		t.Errorf("应报出全部定义问题，得到 %d 个: %v", len(problems), problems)
	}
}

func TestRecommendStaff(t *testing.T) {
	event := &model.Event{
		BaseModel:         model.NewBaseModel(),
		TypeCode:          "home_visit",
		LocationType:      model.LocationVisit,
		RequiredQuals:     []string{"nurse"},
		PreferredQuals:    []string{"psychologist"},
		RequiredResources: []string{model.ResourceCar},
	}

	driver := &model.Staff{
		BaseModel: model.NewBaseModel(), Name: "渡边",
		Qualifications: []string{"nurse", "psychologist"},
		CanDrive:       true, IsActive: true,
	}
	noLicense := &model.Staff{
		BaseModel: model.NewBaseModel(), Name: "小林",
		Qualifications: []string{"nurse"},
		IsActive:       true,
	}
	unqualified := &model.Staff{
		BaseModel: model.NewBaseModel(), Name: "加藤",
		JobCategory: "事务", IsActive: true,
	}

	recs := NewPlanner().RecommendStaff(event, []*model.Staff{driver, noLicense, unqualified})
	if len(recs) != 1 {
		t.Fatalf("只有持资质且能开车的职员可担当，得到 %d 个候选", len(recs))
	}
	if recs[0].Staff.Name != "渡边" {
		t.Errorf("候选应为渡边，得到 %s", recs[0].Staff.Name)
	}
	if !recs[0].Suitable {
		t.Error("资质齐备的候选应标记为合适")
	}
}
