// Package stats 提供排班方案的统计分析功能
package stats

import (
	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
)

// CoverageMetrics 覆盖率指标
type CoverageMetrics struct {
	TotalDemand     int     `json:"total_demand"`     // 需求格位总数
	SatisfiedDemand int     `json:"satisfied_demand"` // 已满足需求数
	OverallCoverage float64 `json:"overall_coverage"` // 整体覆盖率 (%)

	DailyCoverage map[string]DayCoverage `json:"daily_coverage"` // 每日覆盖情况
	TaskCoverage  map[string]float64     `json:"task_coverage"`  // 按任务类型覆盖率
	BlockCoverage map[string]float64     `json:"block_coverage"` // 按时段覆盖率

	EventsTotal    int         `json:"events_total"`    // 事件总数
	EventsPlaced   int         `json:"events_placed"`   // 已排入事件数
	UnplacedEvents []uuid.UUID `json:"unplaced_events"` // 未排入事件

	Understaffed []UnderstaffedSlot `json:"understaffed"` // 人手不足格位
}

// DayCoverage 每日覆盖情况
type DayCoverage struct {
	Date         string  `json:"date"`
	Demand       int     `json:"demand"`
	Satisfied    int     `json:"satisfied"`
	CoverageRate float64 `json:"coverage_rate"`
	StaffCount   int     `json:"staff_count"`
	TotalHours   int     `json:"total_hours"`
}

// UnderstaffedSlot 人手不足格位
type UnderstaffedSlot struct {
	Date     string          `json:"date"`
	Block    model.TimeBlock `json:"block"`
	TaskCode string          `json:"task_code"`
	Required int             `json:"required"`
	Assigned int             `json:"assigned"`
	Shortage int             `json:"shortage"`
}

// CoverageAnalyzer 覆盖率分析器
// 以任务类型的最低人数要求为需求基线，逐格位核对方案分配
type CoverageAnalyzer struct{}

// NewCoverageAnalyzer 创建覆盖率分析器
func NewCoverageAnalyzer() *CoverageAnalyzer {
	return &CoverageAnalyzer{}
}

type slotDemand struct {
	date     string
	block    model.TimeBlock
	taskCode string
}

// Analyze 对照快照需求分析方案覆盖率
func (c *CoverageAnalyzer) Analyze(snapshot *model.Snapshot, solution *model.Solution) *CoverageMetrics {
	metrics := &CoverageMetrics{
		DailyCoverage: make(map[string]DayCoverage),
		TaskCoverage:  make(map[string]float64),
		BlockCoverage: make(map[string]float64),
	}
	if snapshot == nil {
		metrics.OverallCoverage = 100
		return metrics
	}

	var assignments []*model.Assignment
	if solution != nil {
		assignments = solution.Assignments
	}

	// 逐格位分配计数
	slotCount := make(map[slotDemand]int)
	dayStaff := make(map[string]map[uuid.UUID]bool)
	dayHours := make(map[string]int)
	for _, a := range assignments {
		slotCount[slotDemand{a.Date, a.Block, a.TaskTypeCode}]++
		if dayStaff[a.Date] == nil {
			dayStaff[a.Date] = make(map[uuid.UUID]bool)
		}
		dayStaff[a.Date][a.StaffID] = true
		dayHours[a.Date] += a.Block.DurationHours()
	}

	// 任务最低人数需求：工作日 × 默认时段
	demands := c.collectDemands(snapshot)

	taskTotals := make(map[string]int)
	taskSatisfied := make(map[string]int)
	blockTotals := make(map[string]int)
	blockSatisfied := make(map[string]int)
	dayTotals := make(map[string]int)
	daySatisfied := make(map[string]int)

	for slot, required := range demands {
		assigned := slotCount[slot]
		satisfied := assigned
		if satisfied > required {
			satisfied = required
		}

		metrics.TotalDemand += required
		metrics.SatisfiedDemand += satisfied
		taskTotals[slot.taskCode] += required
		taskSatisfied[slot.taskCode] += satisfied
		blockTotals[string(slot.block)] += required
		blockSatisfied[string(slot.block)] += satisfied
		dayTotals[slot.date] += required
		daySatisfied[slot.date] += satisfied

		if assigned < required {
			metrics.Understaffed = append(metrics.Understaffed, UnderstaffedSlot{
				Date: slot.date, Block: slot.block, TaskCode: slot.taskCode,
				Required: required, Assigned: assigned, Shortage: required - assigned,
			})
		}
	}

	metrics.OverallCoverage = rate(metrics.SatisfiedDemand, metrics.TotalDemand)
	for code, total := range taskTotals {
		metrics.TaskCoverage[code] = rate(taskSatisfied[code], total)
	}
	for block, total := range blockTotals {
		metrics.BlockCoverage[block] = rate(blockSatisfied[block], total)
	}
	for date, total := range dayTotals {
		metrics.DailyCoverage[date] = DayCoverage{
			Date:         date,
			Demand:       total,
			Satisfied:    daySatisfied[date],
			CoverageRate: rate(daySatisfied[date], total),
			StaffCount:   len(dayStaff[date]),
			TotalHours:   dayHours[date],
		}
	}

	// 事件排入情况
	placed := make(map[uuid.UUID]bool)
	for _, a := range assignments {
		if a.EventID != nil {
			placed[*a.EventID] = true
		}
	}
	for _, ev := range snapshot.SchedulableEvents() {
		if !ev.InMonthScope(snapshot.YearMonth) {
			continue
		}
		metrics.EventsTotal++
		if placed[ev.ID] {
			metrics.EventsPlaced++
		} else {
			metrics.UnplacedEvents = append(metrics.UnplacedEvents, ev.ID)
		}
	}

	return metrics
}

// collectDemands 从任务类型的最低人数要求构建需求基线
func (c *CoverageAnalyzer) collectDemands(snapshot *model.Snapshot) map[slotDemand]int {
	demands := make(map[slotDemand]int)
	dates := snapshot.Dates()
	for _, tt := range snapshot.TaskTypes {
		if !tt.IsActive || tt.MinStaff <= 0 {
			continue
		}
		blocks := tt.DefaultBlocks
		if len(blocks) == 0 {
			blocks = []model.TimeBlock{model.BlockAM, model.BlockPM}
		}
		for _, date := range dates {
			if model.WeekdayOf(date) > 4 {
				continue
			}
			for _, b := range blocks {
				demands[slotDemand{date, b, tt.Code}] = tt.MinStaff
			}
		}
	}
	return demands
}

func rate(satisfied, total int) float64 {
	if total == 0 {
		return 100
	}
	return float64(satisfied) / float64(total) * 100
}
