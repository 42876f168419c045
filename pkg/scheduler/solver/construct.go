package solver

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/scheduler/cmodel"
	"github.com/clinicshift/clinicshift/pkg/scheduler/constraint"
)

// construct 贪心构造初始方案
// 顺序：锁定分配 → 必须事件（候选少者优先）→ 其余事件（惩罚高者优先）→ 人数需求填充
func (s *Solver) construct(ctx context.Context, m *cmodel.Model, manager *constraint.Manager) []*model.Assignment {
	cctx := constraint.NewContext(m.Snapshot, m.Rules)

	var result []*model.Assignment
	workload := make(map[uuid.UUID]int)

	for _, a := range m.Snapshot.LockedAssignments() {
		c := a.Clone()
		cctx.AddAssignment(c)
		result = append(result, c)
		if c.IsWork() {
			workload[c.StaffID]++
		}
	}

	events := append([]*model.Event(nil), m.Events...)
	sort.SliceStable(events, func(i, j int) bool {
		ei, ej := events[i], events[j]
		if ei.IsRequired() != ej.IsRequired() {
			return ei.IsRequired()
		}
		if ei.IsRequired() {
			// 候选放置少的事件先排，减少被挤占的风险
			return len(m.EventCandidates[ei.ID]) < len(m.EventCandidates[ej.ID])
		}
		return ei.UnmetPenalty() > ej.UnmetPenalty()
	})

	for _, ev := range events {
		if ctx.Err() != nil {
			return result
		}
		if !s.placeEvent(cctx, m, manager, ev, workload, &result) && ev.IsRequired() {
			s.log.ConstraintViolation("事件放置",
				fmt.Sprintf("必须事件 '%s' 贪心阶段未能放置", ev.Label()))
		}
	}

	s.fillDemand(ctx, cctx, m, manager, workload, &result)
	return result
}

// placeEvent 尝试放置一个事件（跨块原子放置）
// 候选按职员负载升序尝试，第一处全部通过硬约束门槛即采用
func (s *Solver) placeEvent(cctx *constraint.Context, m *cmodel.Model, manager *constraint.Manager, ev *model.Event, workload map[uuid.UUID]int, result *[]*model.Assignment) bool {
	candidates := append([]cmodel.EventCandidate(nil), m.EventCandidates[ev.ID]...)
	sort.SliceStable(candidates, func(i, j int) bool {
		if workload[candidates[i].StaffID] != workload[candidates[j].StaffID] {
			return workload[candidates[i].StaffID] < workload[candidates[j].StaffID]
		}
		return candidates[i].Start.Before(candidates[j].Start)
	})

	for _, cand := range candidates {
		span := s.buildSpan(m, ev, cand)
		if s.tryAddSpan(cctx, manager, span) {
			*result = append(*result, span...)
			for _, a := range span {
				if a.IsWork() {
					workload[a.StaffID]++
				}
			}
			return true
		}
	}
	return false
}

// buildSpan 为候选放置构建跨块分配
func (s *Solver) buildSpan(m *cmodel.Model, ev *model.Event, cand cmodel.EventCandidate) []*model.Assignment {
	eid := ev.ID
	span := make([]*model.Assignment, 0, len(cand.Blocks))
	for _, b := range cand.Blocks {
		span = append(span, &model.Assignment{
			BaseModel:    model.NewBaseModel(),
			ScheduleID:   m.Snapshot.ScheduleID,
			StaffID:      cand.StaffID,
			Date:         cand.Start.Date,
			Block:        b,
			TaskTypeCode: ev.TypeCode,
			EventID:      &eid,
			DisplayText:  ev.Label(),
			Source:       model.SourceSolver,
		})
	}
	return span
}

// tryAddSpan 按硬约束门槛整体加入一组分配，任何一格失败则整体回退
func (s *Solver) tryAddSpan(cctx *constraint.Context, manager *constraint.Manager, span []*model.Assignment) bool {
	var added []*model.Assignment
	for _, a := range span {
		if len(cctx.GetCellAssignments(a.Cell())) > 0 {
			s.rollback(cctx, added)
			return false
		}
		if ok, _ := manager.CanAssign(cctx, a); !ok {
			s.rollback(cctx, added)
			return false
		}
		cctx.AddAssignment(a)
		added = append(added, a)
	}
	return true
}

func (s *Solver) rollback(cctx *constraint.Context, added []*model.Assignment) {
	for _, a := range added {
		cctx.RemoveAssignmentAt(a.Cell())
	}
}

// demand 某 (任务, 格位) 的最低人数需求
type demand struct {
	taskCode string
	slot     model.Slot
	min      int
}

// collectDemands 汇总规则与任务主数据的最低人数需求
func collectDemands(m *cmodel.Model) []demand {
	var demands []demand

	for _, r := range m.Rules {
		switch {
		case r.Headcount != nil && r.Headcount.MinStaff > 0:
			blocks := r.Headcount.Blocks
			if len(blocks) == 0 {
				blocks = model.WorkBlocks
			}
			for _, date := range m.Dates {
				if !r.ActiveOn(date) {
					continue
				}
				for _, b := range blocks {
					if r.Headcount.AppliesTo(date, b) {
						demands = append(demands, demand{r.Headcount.TaskCode, model.Slot{Date: date, Block: b}, r.Headcount.MinStaff})
					}
				}
			}

		case r.Recurring != nil:
			for _, date := range m.Dates {
				if !r.ActiveOn(date) || !r.Recurring.OccursOn(date) {
					continue
				}
				for _, b := range recurringBlocks(r.Recurring.Blocks) {
					demands = append(demands, demand{r.Recurring.TaskCode, model.Slot{Date: date, Block: b}, r.Recurring.StaffCount})
				}
			}

		case r.SpecificDate != nil:
			if r.ActiveOn(r.SpecificDate.Date) {
				for _, b := range recurringBlocks(r.SpecificDate.Blocks) {
					demands = append(demands, demand{r.SpecificDate.TaskCode, model.Slot{Date: r.SpecificDate.Date, Block: b}, r.SpecificDate.StaffCount})
				}
			}
		}
	}

	// 任务主数据的 MinStaff：工作日内的基线在岗人数
	for code, task := range m.Snapshot.TaskTypes {
		if !task.IsActive || task.MinStaff <= 0 {
			continue
		}
		blocks := task.DefaultBlocks
		if len(blocks) == 0 {
			blocks = []model.TimeBlock{model.BlockAM, model.BlockPM}
		}
		for _, date := range m.Dates {
			if model.IsWeekend(date) {
				continue
			}
			for _, b := range blocks {
				demands = append(demands, demand{code, model.Slot{Date: date, Block: b}, task.MinStaff})
			}
		}
	}

	sort.SliceStable(demands, func(i, j int) bool {
		if demands[i].slot != demands[j].slot {
			return demands[i].slot.Before(demands[j].slot)
		}
		return demands[i].taskCode < demands[j].taskCode
	})
	return demands
}

func recurringBlocks(blocks []model.TimeBlock) []model.TimeBlock {
	if len(blocks) == 0 {
		return []model.TimeBlock{model.BlockAM}
	}
	return blocks
}

// fillDemand 按最低人数需求填充格位，候选职员负载低者优先
func (s *Solver) fillDemand(ctx context.Context, cctx *constraint.Context, m *cmodel.Model, manager *constraint.Manager, workload map[uuid.UUID]int, result *[]*model.Assignment) {
	for _, d := range collectDemands(m) {
		if ctx.Err() != nil {
			return
		}

		for cctx.TaskSlotCount(d.taskCode, d.slot) < d.min {
			a := s.assignDemand(cctx, m, manager, workload, d)
			if a == nil {
				// 全部候选都过不了硬约束门槛，留给局部搜索
				break
			}
			*result = append(*result, a)
			if a.IsWork() {
				workload[a.StaffID]++
			}
		}
	}
}

// assignDemand 按负载升序逐个尝试候选职员，第一个通过硬约束门槛者入选
func (s *Solver) assignDemand(cctx *constraint.Context, m *cmodel.Model, manager *constraint.Manager, workload map[uuid.UUID]int, d demand) *model.Assignment {
	for _, staff := range s.rankStaff(cctx, m, workload, d) {
		a := &model.Assignment{
			BaseModel:    model.NewBaseModel(),
			ScheduleID:   m.Snapshot.ScheduleID,
			StaffID:      staff.ID,
			Date:         d.slot.Date,
			Block:        d.slot.Block,
			TaskTypeCode: d.taskCode,
			Source:       model.SourceSolver,
		}
		if ok, _ := manager.CanAssign(cctx, a); !ok {
			continue
		}
		cctx.AddAssignment(a)
		return a
	}
	return nil
}

// rankStaff 可在该格位承担任务的职员，按负载升序
func (s *Solver) rankStaff(cctx *constraint.Context, m *cmodel.Model, workload map[uuid.UUID]int, d demand) []*model.Staff {
	var candidates []*model.Staff
	for _, staff := range m.Staffs {
		if !m.CanDo(staff.ID, d.taskCode) || !staff.CanWorkBlock(d.slot.Block) {
			continue
		}
		cell := model.CellKey{StaffID: staff.ID, Date: d.slot.Date, Block: d.slot.Block}
		if !m.CellFree(staff.ID, d.slot.Date, d.slot.Block) || len(cctx.GetCellAssignments(cell)) > 0 {
			continue
		}
		candidates = append(candidates, staff)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return workload[candidates[i].ID] < workload[candidates[j].ID]
	})
	return candidates
}
