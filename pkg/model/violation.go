// Package model 定义门诊排班引擎的核心数据模型
package model

import "github.com/google/uuid"

// ViolationKind 违反类别
type ViolationKind string

const (
	ViolationHard ViolationKind = "hard"
	ViolationSoft ViolationKind = "soft"
)

// 违反类型标识（与校验器/约束实现保持一致）
const (
	ViolationDoubleBooking  = "double_booking"   // 同格位重复分配
	ViolationQualification  = "qualification"    // 资质不足
	ViolationTransport      = "transport"        // 出行能力不足
	ViolationHeadcount      = "headcount"        // 人数不符
	ViolationAvailability   = "availability"     // 不可用时段被排班
	ViolationPreference     = "preference"       // 偏好未满足
	ViolationRecurring      = "recurring"        // 周期规则未满足
	ViolationSpecificDate   = "specific_date"    // 指定日期规则未满足
	ViolationResourceOveruse = "resource_overuse" // 资源容量超限
	ViolationRequiredEvent  = "required_event"   // 必须事件未排入或重复排入
	ViolationUnplacedEvent  = "unplaced_event"   // 事件未排入
	ViolationLongDay        = "long_day"         // 单日连续工作块过多
	ViolationLockedCell     = "locked_cell"      // 锁定格位被改写
)

// Violation 规则违反记录（由违规提取器归一化生成）
type Violation struct {
	Kind        ViolationKind `json:"type"`
	CheckType   string        `json:"check_type"`
	Description string        `json:"description"`
	Date        string        `json:"affected_date,omitempty"`
	Block       TimeBlock     `json:"affected_time_block,omitempty"`
	StaffIDs    []uuid.UUID   `json:"affected_staff"`
	Severity    int           `json:"severity"`
	Suggestion  string        `json:"suggestion,omitempty"`
	RuleID      *uuid.UUID    `json:"rule_id,omitempty"`
	EventID     *uuid.UUID    `json:"event_id,omitempty"`
}

// IsHard 检查是否为硬性违反
func (v *Violation) IsHard() bool {
	return v.Kind == ViolationHard
}

// CountHard 统计硬性违反数量
func CountHard(violations []Violation) int {
	n := 0
	for i := range violations {
		if violations[i].IsHard() {
			n++
		}
	}
	return n
}

// SumSoftPenalty 统计软性违反的加权惩罚总和
func SumSoftPenalty(violations []Violation) int {
	total := 0
	for i := range violations {
		if !violations[i].IsHard() {
			total += violations[i].Severity
		}
	}
	return total
}
