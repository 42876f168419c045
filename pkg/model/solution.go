// Package model 定义门诊排班引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// SolveStatus 求解状态
type SolveStatus string

const (
	StatusOptimal    SolveStatus = "OPTIMAL"    // 已证明无更优解
	StatusFeasible   SolveStatus = "FEASIBLE"   // 找到可行解但预算耗尽
	StatusInfeasible SolveStatus = "INFEASIBLE" // 无满足全部硬约束的分配
	StatusEmpty      SolveStatus = "EMPTY"      // 取消时尚无任何解
)

// SolveStatistics 求解统计
type SolveStatistics struct {
	WallTime        time.Duration `json:"wall_time"`
	Iterations      int           `json:"iterations"`
	NeighborsTried  int           `json:"neighbors_tried"`
	CellCount       int           `json:"cell_count"`
	PlacementCount  int           `json:"placement_count"`
	StaffCount      int           `json:"staff_count"`
	DateCount       int           `json:"date_count"`
	EventCount      int           `json:"event_count"`
	EventsPlaced    int           `json:"events_placed"`
	BudgetExhausted bool          `json:"budget_exhausted"`
}

// Solution 一次求解产出的完整/部分排班方案
type Solution struct {
	ScheduleID  uuid.UUID        `json:"schedule_id"`
	Preset      string           `json:"preset"`
	PresetLabel string           `json:"preset_label,omitempty"`
	Status      SolveStatus      `json:"status"`
	Assignments []*Assignment    `json:"assignments"`
	Objective   int              `json:"objective_value"`
	Violations  []Violation      `json:"violations"`
	Statistics  *SolveStatistics `json:"statistics"`
}

// IsFeasible 检查方案是否可行（含已证最优）
func (s *Solution) IsFeasible() bool {
	return s.Status == StatusOptimal || s.Status == StatusFeasible
}

// HardViolationCount 返回方案的硬性违反数量
func (s *Solution) HardViolationCount() int {
	return CountHard(s.Violations)
}

// EventsPlaced 统计方案排入的事件数
func (s *Solution) EventsPlacedCount() int {
	placed := make(map[uuid.UUID]bool)
	for _, a := range s.Assignments {
		if a.EventID != nil {
			placed[*a.EventID] = true
		}
	}
	return len(placed)
}

// Better 按字典序比较两个方案优劣：
// 必须事件排入数多者优 → 硬性违反少者优 → 软惩罚目标值小者优 → 耗时短者优
func (s *Solution) Better(other *Solution) bool {
	if other == nil {
		return true
	}
	sp, op := s.EventsPlacedCount(), other.EventsPlacedCount()
	if sp != op {
		return sp > op
	}
	sh, oh := s.HardViolationCount(), other.HardViolationCount()
	if sh != oh {
		return sh < oh
	}
	if s.Objective != other.Objective {
		return s.Objective < other.Objective
	}
	if s.Statistics != nil && other.Statistics != nil {
		return s.Statistics.WallTime < other.Statistics.WallTime
	}
	return false
}

// Snapshot 某月排班的只读输入快照（由外部协作方装配，引擎求解期间不修改）
type Snapshot struct {
	ScheduleID  uuid.UUID            `json:"schedule_id"`
	YearMonth   string               `json:"year_month"` // YYYY-MM
	Staffs      []*Staff             `json:"staffs"`
	TaskTypes   map[string]*TaskType `json:"task_types"`
	Events      []*Event             `json:"events"`
	Rules       []*Rule              `json:"rules"`
	Resources   []*Resource          `json:"resources"`
	Assignments []*Assignment        `json:"assignments"`
}

// ActiveStaffs 返回在职职员
func (sn *Snapshot) ActiveStaffs() []*Staff {
	var result []*Staff
	for _, s := range sn.Staffs {
		if s.IsActive {
			result = append(result, s)
		}
	}
	return result
}

// SchedulableEvents 返回参与求解的事件
func (sn *Snapshot) SchedulableEvents() []*Event {
	var result []*Event
	for _, e := range sn.Events {
		if e.IsSchedulable() {
			result = append(result, e)
		}
	}
	return result
}

// LockedAssignments 返回锁定的分配
func (sn *Snapshot) LockedAssignments() []*Assignment {
	var result []*Assignment
	for _, a := range sn.Assignments {
		if a.Locked {
			result = append(result, a)
		}
	}
	return result
}

// Dates 返回快照月份的全部日期
func (sn *Snapshot) Dates() []string {
	year, month, err := ParseYearMonth(sn.YearMonth)
	if err != nil {
		return nil
	}
	return MonthDates(year, month)
}

// StaffByID 按 ID 查找职员
func (sn *Snapshot) StaffByID(id uuid.UUID) *Staff {
	for _, s := range sn.Staffs {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// StaffByName 按姓名查找职员
func (sn *Snapshot) StaffByName(name string) *Staff {
	for _, s := range sn.Staffs {
		if s.Name == name {
			return s
		}
	}
	return nil
}
