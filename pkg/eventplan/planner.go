// Package eventplan 提供事件计划管理
// 把周期性的事件安排（定期健診、定期上門等）展开为具体月份的待排事件
package eventplan

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
)

// Series 事件系列：同一类事件的周期性安排定义
type Series struct {
	TypeCode          string              `json:"type_code"`
	SubjectName       string              `json:"subject_name,omitempty"`
	LocationType      model.LocationType  `json:"location_type"`
	DurationHours     int                 `json:"duration_hours"`
	Weekdays          []int               `json:"weekdays"` // 0=周一，空为全部工作日
	Period            string              `json:"period"`   // am/pm/空
	TimesPerMonth     int                 `json:"times_per_month"`
	RequiredQuals     []string            `json:"required_qualifications,omitempty"`
	RequiredResources []string            `json:"required_resources,omitempty"`
	Priority          model.EventPriority `json:"priority"`
}

// Planner 事件计划器
type Planner struct{}

// NewPlanner 创建事件计划器
func NewPlanner() *Planner {
	return &Planner{}
}

// ValidateSeries 验证事件系列定义
func (p *Planner) ValidateSeries(series *Series) []string {
	var problems []string

	if series.TypeCode == "" {
		problems = append(problems, "事件类型不能为空")
	}
	if series.DurationHours <= 0 {
		problems = append(problems, "事件时长必须大于0")
	}
	if series.TimesPerMonth <= 0 {
		problems = append(problems, "每月次数必须大于0")
	}
	for _, wd := range series.Weekdays {
		if wd < 0 || wd > 6 {
			problems = append(problems, fmt.Sprintf("星期 %d 无效", wd))
		}
	}
	if series.Period != "" && series.Period != "am" && series.Period != "pm" {
		problems = append(problems, fmt.Sprintf("时段 '%s' 无效，应为 am/pm 或留空", series.Period))
	}
	if series.Priority != "" {
		switch series.Priority {
		case model.PriorityRequired, model.PriorityHigh, model.PriorityMedium, model.PriorityLow:
		default:
			problems = append(problems, fmt.Sprintf("优先级 '%s' 无效", series.Priority))
		}
	}

	return problems
}

// Expand 将事件系列展开为指定月份的待排事件
// 事件均匀分布在月内符合星期约束的工作日上，格位选择留给求解器
func (p *Planner) Expand(scheduleID uuid.UUID, yearMonth string, series *Series) ([]*model.Event, error) {
	if problems := p.ValidateSeries(series); len(problems) > 0 {
		return nil, fmt.Errorf("事件系列定义无效: %s", problems[0])
	}

	year, month, err := model.ParseYearMonth(yearMonth)
	if err != nil {
		return nil, fmt.Errorf("月份 '%s' 格式错误: %w", yearMonth, err)
	}

	// 收集符合星期约束的候选日
	var candidates []string
	for _, date := range model.MonthDates(year, month) {
		wd := model.WeekdayOf(date)
		if wd > 4 {
			continue
		}
		if len(series.Weekdays) > 0 && !weekdayIn(series.Weekdays, wd) {
			continue
		}
		candidates = append(candidates, date)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("月份 %s 内没有符合星期约束的日期", yearMonth)
	}

	count := series.TimesPerMonth
	if count > len(candidates) {
		count = len(candidates)
	}

	priority := series.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}

	// 均匀取样候选日
	events := make([]*model.Event, 0, count)
	step := float64(len(candidates)) / float64(count)
	for i := 0; i < count; i++ {
		date := candidates[int(float64(i)*step)]
		events = append(events, &model.Event{
			BaseModel:     model.NewBaseModel(),
			ScheduleID:    scheduleID,
			TypeCode:      series.TypeCode,
			SubjectName:   series.SubjectName,
			LocationType:  series.LocationType,
			DurationHours: series.DurationHours,
			TimeConstraint: model.TimeConstraint{
				Type:     model.TimeRange,
				Weekdays: series.Weekdays,
				Period:   series.Period,
				Month:    yearMonth,
			},
			RequiredQuals:     series.RequiredQuals,
			RequiredResources: series.RequiredResources,
			Priority:          priority,
			Status:            model.EventUnassigned,
			Notes:             fmt.Sprintf("由事件系列展开，建议日期 %s", date),
		})
	}

	return events, nil
}

// ExpandAll 展开多个事件系列
func (p *Planner) ExpandAll(scheduleID uuid.UUID, yearMonth string, series []*Series) ([]*model.Event, error) {
	var all []*model.Event
	for _, s := range series {
		events, err := p.Expand(scheduleID, yearMonth, s)
		if err != nil {
			return nil, fmt.Errorf("展开事件系列 '%s' 失败: %w", s.TypeCode, err)
		}
		all = append(all, events...)
	}
	return all, nil
}

// StaffRecommendation 事件职员推荐
type StaffRecommendation struct {
	Staff        *model.Staff `json:"staff"`
	Score        int          `json:"score"`
	MatchedQuals []string     `json:"matched_qualifications"`
	Suitable     bool         `json:"suitable"`
}

// RecommendStaff 为事件推荐可担当的职员
// 必需资质缺一不可，优选资质与出行能力计入得分
func (p *Planner) RecommendStaff(event *model.Event, staffs []*model.Staff) []*StaffRecommendation {
	if event == nil || len(staffs) == 0 {
		return nil
	}

	var recommendations []*StaffRecommendation

	for _, staff := range staffs {
		if !staff.IsActive {
			continue
		}
		if !staff.HasAllQualifications(event.RequiredQuals) {
			continue
		}

		score := 50
		var matched []string
		for _, q := range event.RequiredQuals {
			matched = append(matched, q)
		}
		for _, q := range event.PreferredQuals {
			if staff.HasQualification(q) {
				matched = append(matched, q)
				score += 20
			}
		}

		// 外访事件优先能使用出行资源的职员
		usable := true
		if event.LocationType == model.LocationVisit {
			for _, res := range event.RequiredResources {
				if !staff.CanUseResource(res) {
					usable = false
					break
				}
			}
			if usable {
				score += 10
			}
		}
		if !usable {
			continue
		}

		recommendations = append(recommendations, &StaffRecommendation{
			Staff:        staff,
			Score:        score,
			MatchedQuals: matched,
			Suitable:     score >= 60,
		})
	}

	return recommendations
}

func weekdayIn(weekdays []int, wd int) bool {
	for _, d := range weekdays {
		if d == wd {
			return true
		}
	}
	return false
}
