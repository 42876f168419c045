// Package model 定义门诊排班引擎的核心数据模型
package model

import "github.com/google/uuid"

// AssignmentSource 排班分配来源
type AssignmentSource string

const (
	SourceManual   AssignmentSource = "manual"   // 手工编辑
	SourceSolver   AssignmentSource = "solver"   // 求解器生成
	SourceImported AssignmentSource = "imported" // 外部导入
)

// Assignment 排班分配：一个 (职员, 日期, 时间块) 格位的绑定
// 同一排班表内 (staff, date, time_block) 唯一
type Assignment struct {
	BaseModel
	ScheduleID   uuid.UUID        `json:"schedule_id" db:"schedule_id"`
	StaffID      uuid.UUID        `json:"staff_id" db:"staff_id"`
	Date         string           `json:"date" db:"date"` // YYYY-MM-DD
	Block        TimeBlock        `json:"time_block" db:"time_block"`
	TaskTypeCode string           `json:"task_type_code,omitempty" db:"task_type_code"`
	EventID      *uuid.UUID       `json:"event_id,omitempty" db:"event_id"`
	DisplayText  string           `json:"display_text,omitempty" db:"display_text"`
	Locked       bool             `json:"is_locked" db:"is_locked"`
	Source       AssignmentSource `json:"source" db:"source"`
}

// CellKey 格位唯一键
type CellKey struct {
	StaffID uuid.UUID
	Date    string
	Block   TimeBlock
}

// Cell 返回分配所在格位的唯一键
func (a *Assignment) Cell() CellKey {
	return CellKey{StaffID: a.StaffID, Date: a.Date, Block: a.Block}
}

// Slot 返回分配所在的排班格位
func (a *Assignment) Slot() Slot {
	return Slot{Date: a.Date, Block: a.Block}
}

// IsOff 检查分配是否为休息占位
func (a *Assignment) IsOff() bool {
	return a.TaskTypeCode == TaskCodeOff
}

// IsWork 检查分配是否为实际工作（非空、非休息、非午休块）
func (a *Assignment) IsWork() bool {
	return a.TaskTypeCode != "" && !a.IsOff() && a.Block.IsWork()
}

// Clone 深拷贝分配
func (a *Assignment) Clone() *Assignment {
	c := *a
	if a.EventID != nil {
		eid := *a.EventID
		c.EventID = &eid
	}
	return &c
}

// CloneAssignments 深拷贝分配列表
func CloneAssignments(assignments []*Assignment) []*Assignment {
	result := make([]*Assignment, len(assignments))
	for i, a := range assignments {
		result[i] = a.Clone()
	}
	return result
}
