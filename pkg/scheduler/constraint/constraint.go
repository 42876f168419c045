// Package constraint 定义约束接口和管理器
package constraint

import (
	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/rulecompiler"
)

// Type 约束类型标识
type Type string

const (
	// 硬约束类型
	TypeDoubleBooking    Type = "double_booking"
	TypeQualification    Type = "qualification"
	TypeCarDriver        Type = "car_driver"
	TypePartTimeLate     Type = "part_time_late"
	TypeResourceCapacity Type = "resource_capacity"
	TypeRequiredEvent    Type = "required_event"
	TypeHeadcount        Type = "headcount"
	TypeAvailability     Type = "availability"
	TypeRecurring        Type = "recurring"
	TypeSpecificDate     Type = "specific_date"
	TypeLockedCell       Type = "locked_cell"

	// 软约束类型
	TypeBicyclePreference Type = "bicycle_preference"
	TypePreference        Type = "preference"
	TypeLongDay           Type = "long_day"
	TypeUnplacedEvent     Type = "unplaced_event"
	TypeWorkloadBalance   Type = "workload_balance"
	TypeDisruption        Type = "disruption"
)

// Category 约束类别
type Category string

const (
	CategoryHard Category = "hard" // 硬约束（必须满足）
	CategorySoft Category = "soft" // 软约束（尽量满足）
)

// Constraint 约束接口
type Constraint interface {
	// Name 返回约束名称（同类型多实例时含规则标识，保持唯一）
	Name() string

	// Type 返回约束类型
	Type() Type

	// Category 返回约束类别
	Category() Category

	// Weight 返回约束权重
	Weight() int

	// Evaluate 评估整个排班网格
	// 返回：是否满足、惩罚值、违反详情
	Evaluate(ctx *Context) (valid bool, penalty int, details []ViolationDetail)

	// EvaluateAssignment 评估单个分配（增量代价，用于搜索内循环）
	// 返回：是否满足、惩罚值
	EvaluateAssignment(ctx *Context, assignment *model.Assignment) (valid bool, penalty int)
}

// ViolationDetail 约束违反详情
type ViolationDetail struct {
	ConstraintType Type            `json:"constraint_type"`
	ConstraintName string          `json:"constraint_name"`
	CheckType      string          `json:"check_type"`
	StaffIDs       []uuid.UUID     `json:"staff_ids,omitempty"`
	Date           string          `json:"date,omitempty"`
	Block          model.TimeBlock `json:"time_block,omitempty"`
	Message        string          `json:"message"`
	Severity       int             `json:"severity"`
	Penalty        int             `json:"penalty"`
	Suggestion     string          `json:"suggestion,omitempty"`
	RuleID         *uuid.UUID      `json:"rule_id,omitempty"`
	EventID        *uuid.UUID      `json:"event_id,omitempty"`
}

// taskSlotKey (任务, 格位) 索引键
type taskSlotKey struct {
	TaskCode string
	Slot     model.Slot
}

// resourceSlotKey (资源类型, 格位) 索引键
type resourceSlotKey struct {
	ResourceType string
	Slot         model.Slot
}

// Context 求解上下文：只读快照 + 当前分配网格及其索引
type Context struct {
	Snapshot *model.Snapshot             `json:"-"`
	Rules    []*rulecompiler.CompiledRule `json:"-"`

	// 当前排班网格
	Assignments []*model.Assignment `json:"assignments"`

	// 索引缓存
	staffMap        map[uuid.UUID]*model.Staff
	eventMap        map[uuid.UUID]*model.Event
	byStaff         map[uuid.UUID][]*model.Assignment
	byCell          map[model.CellKey][]*model.Assignment
	bySlot          map[model.Slot][]*model.Assignment
	byTaskSlot      map[taskSlotKey][]*model.Assignment
	resourceUse     map[resourceSlotKey]int
	eventPlacements map[uuid.UUID][]*model.Assignment

	// 资源类型 → 总容量
	resourceCapacity map[string]int

	// 增量模式下的既有方案（差异惩罚的参照）
	PriorCells map[model.CellKey]string `json:"-"`

	// 求解器配置（预设权重等）
	Config map[string]interface{} `json:"config,omitempty"`
}

// NewContext 创建求解上下文
func NewContext(snapshot *model.Snapshot, rules []*rulecompiler.CompiledRule) *Context {
	ctx := &Context{
		Snapshot:         snapshot,
		Rules:            rules,
		staffMap:         make(map[uuid.UUID]*model.Staff),
		resourceCapacity: make(map[string]int),
		Config:           make(map[string]interface{}),
	}

	for _, s := range snapshot.Staffs {
		ctx.staffMap[s.ID] = s
	}
	ctx.eventMap = make(map[uuid.UUID]*model.Event, len(snapshot.Events))
	for _, e := range snapshot.Events {
		ctx.eventMap[e.ID] = e
	}
	for resType, group := range model.GroupResourcesByType(snapshot.Resources) {
		ctx.resourceCapacity[resType] = model.TotalCapacity(group)
	}
	ctx.SetAssignments(nil)
	return ctx
}

// SetAssignments 替换排班网格并重建索引
func (c *Context) SetAssignments(assignments []*model.Assignment) {
	c.Assignments = assignments
	c.rebuildIndexes()
}

// AddAssignment 添加分配并更新索引
func (c *Context) AddAssignment(a *model.Assignment) {
	c.Assignments = append(c.Assignments, a)
	c.indexAssignment(a)
}

// RemoveAssignmentAt 移除某格位的分配
func (c *Context) RemoveAssignmentAt(cell model.CellKey) {
	kept := c.Assignments[:0]
	removed := false
	for _, a := range c.Assignments {
		if !removed && a.Cell() == cell {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	c.Assignments = kept
	if removed {
		c.rebuildIndexes()
	}
}

// rebuildIndexes 重建全部索引
func (c *Context) rebuildIndexes() {
	c.byStaff = make(map[uuid.UUID][]*model.Assignment)
	c.byCell = make(map[model.CellKey][]*model.Assignment)
	c.bySlot = make(map[model.Slot][]*model.Assignment)
	c.byTaskSlot = make(map[taskSlotKey][]*model.Assignment)
	c.resourceUse = make(map[resourceSlotKey]int)
	c.eventPlacements = make(map[uuid.UUID][]*model.Assignment)
	for _, a := range c.Assignments {
		c.indexAssignment(a)
	}
}

// indexAssignment 将单个分配写入各索引
func (c *Context) indexAssignment(a *model.Assignment) {
	cell := a.Cell()
	slot := a.Slot()
	c.byStaff[a.StaffID] = append(c.byStaff[a.StaffID], a)
	c.byCell[cell] = append(c.byCell[cell], a)
	c.bySlot[slot] = append(c.bySlot[slot], a)
	if a.TaskTypeCode != "" {
		c.byTaskSlot[taskSlotKey{TaskCode: a.TaskTypeCode, Slot: slot}] =
			append(c.byTaskSlot[taskSlotKey{TaskCode: a.TaskTypeCode, Slot: slot}], a)
	}
	if a.EventID != nil {
		c.eventPlacements[*a.EventID] = append(c.eventPlacements[*a.EventID], a)
	}
	for res, count := range c.AssignmentResourceDemand(a) {
		c.resourceUse[resourceSlotKey{ResourceType: res, Slot: slot}] += count
	}
}

// AssignmentResourceDemand 汇总单个分配的资源需求
// 任务类型、resource_req 规则与事件要求取并集，同类资源按最大需求量计一次
func (c *Context) AssignmentResourceDemand(a *model.Assignment) map[string]int {
	demand := make(map[string]int)
	need := func(res string, count int) {
		if count > demand[res] {
			demand[res] = count
		}
	}
	if a.TaskTypeCode != "" {
		if tt := c.GetTaskType(a.TaskTypeCode); tt != nil {
			for _, res := range tt.RequiredResources {
				need(res, 1)
			}
		}
		for _, r := range c.Rules {
			if r.Resource != nil && r.Resource.TaskCode == a.TaskTypeCode && r.ActiveOn(a.Date) {
				need(r.Resource.ResourceType, r.Resource.Count)
			}
		}
	}
	if a.EventID != nil {
		if ev := c.eventMap[*a.EventID]; ev != nil {
			for _, res := range ev.RequiredResources {
				need(res, 1)
			}
		}
	}
	return demand
}

// GetStaff 按 ID 获取职员
func (c *Context) GetStaff(id uuid.UUID) *model.Staff {
	return c.staffMap[id]
}

// GetEvent 按 ID 获取事件
func (c *Context) GetEvent(id uuid.UUID) *model.Event {
	return c.eventMap[id]
}

// ScopedEvents 返回本月参与求解的事件
// 月份限定指向其他月份的 range 事件不在评估范围内
func (c *Context) ScopedEvents() []*model.Event {
	var events []*model.Event
	for _, e := range c.Snapshot.SchedulableEvents() {
		if e.InMonthScope(c.Snapshot.YearMonth) {
			events = append(events, e)
		}
	}
	return events
}

// GetTaskType 按编码获取任务类型
func (c *Context) GetTaskType(code string) *model.TaskType {
	return c.Snapshot.TaskTypes[code]
}

// GetStaffAssignments 获取职员的全部分配
func (c *Context) GetStaffAssignments(staffID uuid.UUID) []*model.Assignment {
	return c.byStaff[staffID]
}

// GetCellAssignments 获取某格位的全部分配（正常至多一条）
func (c *Context) GetCellAssignments(cell model.CellKey) []*model.Assignment {
	return c.byCell[cell]
}

// GetSlotAssignments 获取某 (日期, 时间块) 的全部分配
func (c *Context) GetSlotAssignments(slot model.Slot) []*model.Assignment {
	return c.bySlot[slot]
}

// GetTaskSlotAssignments 获取某任务在某格位的分配
func (c *Context) GetTaskSlotAssignments(taskCode string, slot model.Slot) []*model.Assignment {
	return c.byTaskSlot[taskSlotKey{TaskCode: taskCode, Slot: slot}]
}

// TaskSlotCount 统计某任务在某格位的在岗人数
func (c *Context) TaskSlotCount(taskCode string, slot model.Slot) int {
	return len(c.byTaskSlot[taskSlotKey{TaskCode: taskCode, Slot: slot}])
}

// ResourceUsage 统计某类资源在某格位的占用数
func (c *Context) ResourceUsage(resourceType string, slot model.Slot) int {
	return c.resourceUse[resourceSlotKey{ResourceType: resourceType, Slot: slot}]
}

// ResourceCapacity 返回某类资源的总容量
func (c *Context) ResourceCapacity(resourceType string) int {
	return c.resourceCapacity[resourceType]
}

// EventPlacements 获取某事件的排入分配
func (c *Context) EventPlacements(eventID uuid.UUID) []*model.Assignment {
	return c.eventPlacements[eventID]
}

// WorkBlocksOnDay 统计职员某天的工作块数（不含午休/休息占位）
func (c *Context) WorkBlocksOnDay(staffID uuid.UUID, date string) int {
	n := 0
	for _, a := range c.byStaff[staffID] {
		if a.Date == date && a.IsWork() {
			n++
		}
	}
	return n
}

// Result 约束评估结果
type Result struct {
	IsValid        bool              `json:"is_valid"`
	TotalPenalty   int               `json:"total_penalty"`
	HardViolations []ViolationDetail `json:"hard_violations"`
	SoftViolations []ViolationDetail `json:"soft_violations"`
}

// SoftPenalty 返回软性违反的惩罚总和
func (r *Result) SoftPenalty() int {
	total := 0
	for i := range r.SoftViolations {
		total += r.SoftViolations[i].Penalty
	}
	return total
}
