package cmodel

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/errors"
	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/rulecompiler"
)

// EventCandidate 事件的一个可行放置：职员 + 起始格位 + 完整跨块
type EventCandidate struct {
	StaffID uuid.UUID
	Start   model.Slot
	Blocks  []model.TimeBlock
}

// Model 约束模型：求解器读取的变量域、事件候选与结构性诊断
type Model struct {
	Snapshot *model.Snapshot
	Rules    []*rulecompiler.CompiledRule
	Preset   Preset

	Dates  []string
	Staffs []*model.Staff
	Events []*model.Event // 本月参与求解的事件

	// LockedCells 锁定格位（求解器不得改写）
	LockedCells map[model.CellKey]*model.Assignment

	// RegionLocked 增量重排冻结的变更区域外格位
	// 与用户锁定不同：冻结格位上的违反仍照常报告
	RegionLocked map[model.CellKey]bool

	// StaffTasks 各职员按资质/出行能力可承担的任务编码
	StaffTasks map[uuid.UUID][]string

	// EventCandidates 各事件的可行放置列表
	EventCandidates map[uuid.UUID][]EventCandidate

	// SkippedEvents 时间约束指向其他月份、本月不参与求解的事件
	SkippedEvents []uuid.UUID

	// StructuralIssues 建模期即可判定的硬性问题（必须事件无候选等）
	StructuralIssues []model.Violation

	// ExhaustedResources 容量为零却被必须事件需要的资源类型
	ExhaustedResources []string
}

// Build 从快照与编译规则构建约束模型
// 快照月份非法或无在职职员时返回错误；结构性不可行记入 StructuralIssues
func Build(snapshot *model.Snapshot, rules []*rulecompiler.CompiledRule, preset Preset) (*Model, error) {
	dates := snapshot.Dates()
	if len(dates) == 0 {
		return nil, errors.InvalidInput("year_month", fmt.Sprintf("排班月份 '%s' 非法", snapshot.YearMonth))
	}

	m := &Model{
		Snapshot:        snapshot,
		Rules:           rules,
		Preset:          preset,
		Dates:           dates,
		Staffs:          snapshot.ActiveStaffs(),
		LockedCells:     make(map[model.CellKey]*model.Assignment),
		RegionLocked:    make(map[model.CellKey]bool),
		StaffTasks:      make(map[uuid.UUID][]string),
		EventCandidates: make(map[uuid.UUID][]EventCandidate),
	}

	for _, a := range snapshot.LockedAssignments() {
		m.LockedCells[a.Cell()] = a
	}

	m.buildStaffTasks()
	m.buildEventCandidates()
	m.checkStructural()

	return m, nil
}

// buildStaffTasks 计算各职员可承担的任务编码
// 资质同时考虑任务主数据与 skill_req 规则；出行资源需求考虑驾驶/骑行能力
func (m *Model) buildStaffTasks() {
	for _, staff := range m.Staffs {
		var tasks []string
		for code, task := range m.Snapshot.TaskTypes {
			if !task.IsActive {
				continue
			}
			if !staff.HasAllQualifications(m.taskQuals(task)) {
				continue
			}
			usable := true
			for _, rt := range task.RequiredResources {
				if !staff.CanUseResource(rt) {
					usable = false
					break
				}
			}
			if usable {
				tasks = append(tasks, code)
			}
		}
		m.StaffTasks[staff.ID] = tasks
	}
}

// taskQuals 合并任务主数据与 skill_req 规则要求的资质
func (m *Model) taskQuals(task *model.TaskType) []string {
	quals := append([]string(nil), task.RequiredQuals...)
	for _, r := range m.Rules {
		if r.Skill != nil && r.Skill.TaskCode == task.Code {
			quals = append(quals, r.Skill.Qualifications...)
		}
	}
	return quals
}

// CanDo 检查职员能否承担某任务
func (m *Model) CanDo(staffID uuid.UUID, taskCode string) bool {
	for _, c := range m.StaffTasks[staffID] {
		if c == taskCode {
			return true
		}
	}
	return false
}

// CellFree 检查格位既未被用户锁定也未被区域冻结
func (m *Model) CellFree(staffID uuid.UUID, date string, block model.TimeBlock) bool {
	cell := model.CellKey{StaffID: staffID, Date: date, Block: block}
	if _, locked := m.LockedCells[cell]; locked {
		return false
	}
	return !m.RegionLocked[cell]
}

// LockOutsideDates 冻结 affected 之外所有日期的全部格位
// 增量重排用：变更区域外的分配既不得改写也不得新增
func (m *Model) LockOutsideDates(affected map[string]bool) {
	for _, date := range m.Dates {
		if affected[date] {
			continue
		}
		for _, staff := range m.Staffs {
			for _, b := range model.BlockOrder {
				m.RegionLocked[model.CellKey{StaffID: staff.ID, Date: date, Block: b}] = true
			}
		}
	}
}

// CellDomain 返回某格位可取的任务编码（不含事件放置）
func (m *Model) CellDomain(staff *model.Staff, date string, block model.TimeBlock) []string {
	if !block.IsWork() || !staff.CanWorkBlock(block) {
		return nil
	}
	if !m.CellFree(staff.ID, date, block) {
		return nil
	}
	var domain []string
	for _, code := range m.StaffTasks[staff.ID] {
		task := m.Snapshot.TaskTypes[code]
		if task == nil || !taskAllowsBlock(task, block) {
			continue
		}
		domain = append(domain, code)
	}
	return domain
}

func taskAllowsBlock(task *model.TaskType, block model.TimeBlock) bool {
	if len(task.DefaultBlocks) == 0 {
		return true
	}
	for _, b := range task.DefaultBlocks {
		if b == block {
			return true
		}
	}
	return false
}

// CellCount 返回网格格位总数
func (m *Model) CellCount() int {
	return len(m.Staffs) * len(m.Dates) * len(model.BlockOrder)
}

// buildEventCandidates 展开事件时间约束为候选放置
func (m *Model) buildEventCandidates() {
	for _, ev := range m.Snapshot.SchedulableEvents() {
		if m.monthMismatch(ev) {
			m.SkippedEvents = append(m.SkippedEvents, ev.ID)
			continue
		}
		m.Events = append(m.Events, ev)
		m.EventCandidates[ev.ID] = m.expandCandidates(ev)
	}
}

// monthMismatch 检查 range 模式事件是否指向其他月份
func (m *Model) monthMismatch(ev *model.Event) bool {
	return !ev.InMonthScope(m.Snapshot.YearMonth)
}

// expandCandidates 按时间约束模式展开候选格位，再与可承担职员做笛卡尔积
func (m *Model) expandCandidates(ev *model.Event) []EventCandidate {
	slots := m.candidateSlots(ev)
	staffs := m.eligibleStaff(ev)

	var result []EventCandidate
	for _, slot := range slots {
		span := model.SpanBlocks(slot.Block, ev.DurationHours)
		if len(span) == 0 {
			continue
		}
		for _, staff := range staffs {
			if !m.spanOpen(staff, slot.Date, span) {
				continue
			}
			result = append(result, EventCandidate{
				StaffID: staff.ID,
				Start:   slot,
				Blocks:  span,
			})
		}
	}
	return result
}

// candidateSlots 展开事件时间约束为起始格位列表
func (m *Model) candidateSlots(ev *model.Event) []model.Slot {
	tc := ev.TimeConstraint
	switch tc.Type {
	case model.TimeFixed:
		block, ok := model.BlockFromStartHour(tc.StartHour)
		if !ok || !m.dateInMonth(tc.Date) {
			return nil
		}
		return []model.Slot{{Date: tc.Date, Block: block}}

	case model.TimeCandidates:
		var slots []model.Slot
		for _, cs := range tc.Slots {
			block, ok := model.BlockFromStartHour(cs.StartHour)
			if !ok || !m.dateInMonth(cs.Date) {
				continue
			}
			slots = append(slots, model.Slot{Date: cs.Date, Block: block})
		}
		return slots

	case model.TimeRange:
		blocks := rangeBlocks(tc.Period)
		var slots []model.Slot
		for _, date := range m.Dates {
			if !weekdayAllowed(tc.Weekdays, model.WeekdayOf(date)) {
				continue
			}
			for _, b := range blocks {
				slots = append(slots, model.Slot{Date: date, Block: b})
			}
		}
		return slots
	}
	return nil
}

// rangeBlocks 返回 range 模式下某时段允许的起始块
func rangeBlocks(period string) []model.TimeBlock {
	switch period {
	case "am":
		return []model.TimeBlock{model.BlockAM}
	case "pm":
		return []model.TimeBlock{model.BlockPM, model.Block15, model.Block16}
	default:
		return []model.TimeBlock{model.BlockAM, model.BlockPM, model.Block15, model.Block16, model.Block17}
	}
}

// weekdayAllowed 空列表按工作日（周一至周五）处理
func weekdayAllowed(weekdays []int, wd int) bool {
	if len(weekdays) == 0 {
		return wd >= 0 && wd <= 4
	}
	for _, w := range weekdays {
		if w == wd {
			return true
		}
	}
	return false
}

// eligibleStaff 返回资质、出行能力与时间块都满足事件要求的职员
func (m *Model) eligibleStaff(ev *model.Event) []*model.Staff {
	var result []*model.Staff
	for _, staff := range m.Staffs {
		if !staff.HasAllQualifications(ev.RequiredQuals) {
			continue
		}
		ok := true
		for _, rt := range ev.RequiredResources {
			if !staff.CanUseResource(rt) {
				ok = false
				break
			}
		}
		if ok {
			result = append(result, staff)
		}
	}
	return result
}

// spanOpen 检查职员在某日的整个跨块范围内都可工作且无锁定冲突
func (m *Model) spanOpen(staff *model.Staff, date string, span []model.TimeBlock) bool {
	for _, b := range span {
		if b.IsWork() && !staff.CanWorkBlock(b) {
			return false
		}
		if !m.CellFree(staff.ID, date, b) {
			return false
		}
	}
	return true
}

func (m *Model) dateInMonth(date string) bool {
	for _, d := range m.Dates {
		if d == date {
			return true
		}
	}
	return false
}

// checkStructural 建模期诊断：必须事件无任何候选即可判定不可行
func (m *Model) checkStructural() {
	capacities := make(map[string]int)
	for rt, group := range model.GroupResourcesByType(m.Snapshot.Resources) {
		capacities[rt] = model.TotalCapacity(group)
	}

	exhausted := make(map[string]bool)
	for _, ev := range m.Events {
		if !ev.IsRequired() {
			continue
		}
		for _, rt := range ev.RequiredResources {
			if capacities[rt] == 0 && !exhausted[rt] {
				exhausted[rt] = true
				m.ExhaustedResources = append(m.ExhaustedResources, rt)
				eid := ev.ID
				m.StructuralIssues = append(m.StructuralIssues, model.Violation{
					Kind:        model.ViolationHard,
					CheckType:   model.ViolationResourceOveruse,
					Description: fmt.Sprintf("必须事件 '%s' 需要资源 '%s'，但该资源容量为零", ev.Label(), rt),
					Severity:    model.HardSeverity,
					Suggestion:  fmt.Sprintf("登记可用的 %s 资源，或调整事件的资源需求", rt),
					EventID:     &eid,
				})
			}
		}
		if len(m.EventCandidates[ev.ID]) == 0 {
			eid := ev.ID
			m.StructuralIssues = append(m.StructuralIssues, model.Violation{
				Kind:        model.ViolationHard,
				CheckType:   model.ViolationUnplacedEvent,
				Description: fmt.Sprintf("必须事件 '%s' 没有任何可行放置", ev.Label()),
				Severity:    model.HardSeverity,
				Suggestion:  "放宽事件的时间约束、资质或资源要求，或增加可承担的职员",
				EventID:     &eid,
			})
		}
	}
}

// DefinitelyInfeasible 检查模型是否在建模期已可判定不可行
func (m *Model) DefinitelyInfeasible() bool {
	return len(m.StructuralIssues) > 0
}
