// Package rulecompiler 将持久化的排班规则编译为强类型约束说明
// 规则 body 的 JSON 形状只在本包解析，引擎核心只消费编译产物
package rulecompiler

import (
	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
)

// RuleMeta 编译产物共享的规则元信息
type RuleMeta struct {
	RuleID      uuid.UUID          `json:"rule_id"`
	Template    model.RuleTemplate `json:"template_type"`
	Category    model.RuleCategory `json:"hard_or_soft"`
	Weight      int                `json:"weight"` // 有效权重（硬规则为固定基准值）
	NaturalText string             `json:"natural_text,omitempty"`
	exceptions  map[string]bool
}

// IsHard 检查是否为硬规则
func (m *RuleMeta) IsHard() bool {
	return m.Category == model.RuleHard
}

// SuspendedOn 检查规则在某日期是否被例外暂停
func (m *RuleMeta) SuspendedOn(date string) bool {
	return m.exceptions[date]
}

// HeadcountSpec 人数规则：某任务在指定时段需要的在岗人数范围
type HeadcountSpec struct {
	TaskCode string            `json:"task_code"`
	MinStaff int               `json:"min_staff"`
	MaxStaff int               `json:"max_staff"` // 0 表示不限
	Blocks   []model.TimeBlock `json:"blocks"`    // 空表示全部工作块
	Weekdays []int             `json:"weekdays"`  // 空表示周一至周五
}

// AppliesTo 检查人数规则是否适用于某格位
func (s *HeadcountSpec) AppliesTo(date string, block model.TimeBlock) bool {
	if !weekdayMatches(s.Weekdays, date) {
		return false
	}
	return blockMatches(s.Blocks, block)
}

// SkillRequirementSpec 资质要求规则：执行某任务必须具备的资质
type SkillRequirementSpec struct {
	TaskCode       string   `json:"task_code"`
	Qualifications []string `json:"qualifications"`
}

// ResourceRequirementSpec 资源要求规则：执行某任务占用的共享资源
type ResourceRequirementSpec struct {
	TaskCode     string `json:"task_code"`
	ResourceType string `json:"resource_type"`
	Count        int    `json:"count"` // 每次占用数量，默认 1
}

// AvailabilitySpec 可用性限制规则：职员在指定时段不可排班
type AvailabilitySpec struct {
	StaffID  uuid.UUID         `json:"staff_id"`
	Dates    []string          `json:"dates"`    // 指定日期，空表示按星期匹配
	Weekdays []int             `json:"weekdays"` // 空且 Dates 为空时表示全部日期
	Blocks   []model.TimeBlock `json:"blocks"`   // 空表示全天
}

// Covers 检查不可排限制是否覆盖某格位
func (s *AvailabilitySpec) Covers(date string, block model.TimeBlock) bool {
	if len(s.Dates) > 0 {
		found := false
		for _, d := range s.Dates {
			if d == date {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	} else if len(s.Weekdays) > 0 && !weekdayIn(s.Weekdays, model.WeekdayOf(date)) {
		return false
	}
	return blockMatches(s.Blocks, block)
}

// PreferenceSpec 偏好规则：职员对时段或任务的软性意愿
type PreferenceSpec struct {
	StaffID  uuid.UUID         `json:"staff_id"`
	TaskCode string            `json:"task_code,omitempty"` // 空表示仅时段偏好
	Weekdays []int             `json:"weekdays"`
	Blocks   []model.TimeBlock `json:"blocks"`
	Avoid    bool              `json:"avoid"` // true 表示希望避开
}

// Covers 检查偏好是否覆盖某格位
func (s *PreferenceSpec) Covers(date string, block model.TimeBlock) bool {
	if len(s.Weekdays) > 0 && !weekdayIn(s.Weekdays, model.WeekdayOf(date)) {
		return false
	}
	return blockMatches(s.Blocks, block)
}

// RecurringSpec 周期规则：某任务按星期规律必须开展
type RecurringSpec struct {
	TaskCode   string            `json:"task_code"`
	Weekdays   []int             `json:"weekdays"` // 空表示周一至周五
	Blocks     []model.TimeBlock `json:"blocks"`
	StaffCount int               `json:"staff_count"` // 每次开展需要的人数，默认 1
}

// OccursOn 检查周期规则在某日期是否应开展
func (s *RecurringSpec) OccursOn(date string) bool {
	return weekdayMatches(s.Weekdays, date)
}

// SpecificDateSpec 指定日期规则：某任务在特定日期必须开展
type SpecificDateSpec struct {
	TaskCode   string            `json:"task_code"`
	Date       string            `json:"date"`
	Blocks     []model.TimeBlock `json:"blocks"`
	StaffCount int               `json:"staff_count"`
}

// CompiledRule 单条规则的编译产物，仅一个变体字段非空
type CompiledRule struct {
	Meta RuleMeta `json:"meta"`

	Headcount    *HeadcountSpec           `json:"headcount,omitempty"`
	Skill        *SkillRequirementSpec    `json:"skill_req,omitempty"`
	Resource     *ResourceRequirementSpec `json:"resource_req,omitempty"`
	Availability *AvailabilitySpec        `json:"availability,omitempty"`
	Preference   *PreferenceSpec          `json:"preference,omitempty"`
	Recurring    *RecurringSpec           `json:"recurring,omitempty"`
	SpecificDate *SpecificDateSpec        `json:"specific_date,omitempty"`
}

// ActiveOn 检查规则在某日期是否生效（未被例外暂停）
func (r *CompiledRule) ActiveOn(date string) bool {
	return !r.Meta.SuspendedOn(date)
}

// weekdayMatches 星期列表匹配（空列表退化为周一至周五）
func weekdayMatches(weekdays []int, date string) bool {
	wd := model.WeekdayOf(date)
	if wd < 0 {
		return false
	}
	if len(weekdays) == 0 {
		return wd <= 4
	}
	return weekdayIn(weekdays, wd)
}

// weekdayIn 检查星期是否在列表中
func weekdayIn(weekdays []int, wd int) bool {
	for _, w := range weekdays {
		if w == wd {
			return true
		}
	}
	return false
}

// blockMatches 时间块列表匹配（空列表表示全部匹配）
func blockMatches(blocks []model.TimeBlock, block model.TimeBlock) bool {
	if len(blocks) == 0 {
		return true
	}
	for _, b := range blocks {
		if b == block {
			return true
		}
	}
	return false
}
