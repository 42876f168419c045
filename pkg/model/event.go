// Package model 定义门诊排班引擎的核心数据模型
package model

import (
	"strconv"

	"github.com/google/uuid"
)

// TimeConstraintType 事件时间约束模式
type TimeConstraintType string

const (
	TimeFixed      TimeConstraintType = "fixed"      // 固定格位
	TimeRange      TimeConstraintType = "range"      // 范围（星期/时段/月份）
	TimeCandidates TimeConstraintType = "candidates" // 候选格位列表
)

// EventPriority 事件优先级
type EventPriority string

const (
	PriorityRequired EventPriority = "required" // 必须排入
	PriorityHigh     EventPriority = "high"
	PriorityMedium   EventPriority = "medium"
	PriorityLow      EventPriority = "low"
)

// EventPriorityPenalty 非必须事件未排入时的软惩罚权重
var EventPriorityPenalty = map[EventPriority]int{
	PriorityHigh:   800,
	PriorityMedium: 400,
	PriorityLow:    100,
}

// EventStatus 事件状态
type EventStatus string

const (
	EventUnassigned EventStatus = "unassigned"
	EventAssigned   EventStatus = "assigned"
	EventHold       EventStatus = "hold"
	EventDone       EventStatus = "done"
)

// TimeConstraint 事件时间约束（按模式取不同字段）
type TimeConstraint struct {
	Type TimeConstraintType `json:"type"`

	// fixed 模式
	Date      string `json:"date,omitempty"` // YYYY-MM-DD
	StartHour int    `json:"start,omitempty"`

	// range 模式
	Weekdays []int  `json:"weekdays,omitempty"` // 0=周一 .. 6=周日，空表示工作日
	Period   string `json:"period,omitempty"`   // am/pm/空
	Month    string `json:"month,omitempty"`    // YYYY-MM 或月份数字

	// candidates 模式
	Slots []CandidateSlot `json:"slots,omitempty"`
}

// CandidateSlot 候选格位（日期+开始小时）
type CandidateSlot struct {
	Date      string `json:"date"`
	StartHour int    `json:"start"`
}

// Event 待排事件（单次可调度工作单元）
type Event struct {
	BaseModel
	ScheduleID        uuid.UUID      `json:"schedule_id" db:"schedule_id"`
	TypeCode          string         `json:"type_code,omitempty" db:"type_code"`
	SubjectName       string         `json:"subject_name,omitempty" db:"subject_name"`
	LocationType      LocationType   `json:"location_type" db:"location_type"`
	DurationHours     int            `json:"duration_hours" db:"duration_hours"`
	TimeConstraint    TimeConstraint `json:"time_constraint" db:"time_constraint"`
	RequiredQuals     []string       `json:"required_qualifications" db:"required_qualifications"`
	PreferredQuals    []string       `json:"preferred_qualifications" db:"preferred_qualifications"`
	RequiredResources []string       `json:"required_resources" db:"required_resources"`
	Priority          EventPriority  `json:"priority" db:"priority"`
	Status            EventStatus    `json:"status" db:"status"`
	Notes             string         `json:"notes,omitempty" db:"notes"`
}

// IsRequired 检查事件是否为必须排入
func (e *Event) IsRequired() bool {
	return e.Priority == PriorityRequired
}

// IsSchedulable 检查事件是否参与求解（hold/done 不参与）
func (e *Event) IsSchedulable() bool {
	return e.Status == EventUnassigned || e.Status == EventAssigned
}

// InMonthScope 检查事件是否属于指定月份的求解范围
// range 模式的月份限定指向其他月份时，该事件本月不参与
func (e *Event) InMonthScope(yearMonth string) bool {
	tc := e.TimeConstraint
	if tc.Type != TimeRange || tc.Month == "" {
		return true
	}
	if tc.Month == yearMonth {
		return true
	}
	_, month, err := ParseYearMonth(yearMonth)
	if err != nil {
		return false
	}
	if n, err := strconv.Atoi(tc.Month); err == nil {
		return n == month
	}
	return false
}

// UnmetPenalty 返回事件未排入时的软惩罚（必须事件不适用）
func (e *Event) UnmetPenalty() int {
	if p, ok := EventPriorityPenalty[e.Priority]; ok {
		return p
	}
	return 100
}

// Label 返回事件的展示标签
func (e *Event) Label() string {
	switch {
	case e.TypeCode != "" && e.SubjectName != "":
		return e.TypeCode + " / " + e.SubjectName
	case e.TypeCode != "":
		return e.TypeCode
	case e.SubjectName != "":
		return e.SubjectName
	default:
		return e.ID.String()[:8]
	}
}
