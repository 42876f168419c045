package stats

import (
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
)

// FairnessMetrics 公平性指标
type FairnessMetrics struct {
	WorkloadGini     float64 `json:"workload_gini"`       // 工时基尼系数 (0=完全公平)
	WorkloadStdDev   float64 `json:"workload_std_dev"`    // 工时标准差
	AvgHoursPerStaff float64 `json:"avg_hours_per_staff"` // 人均工时
	MaxHours         float64 `json:"max_hours"`
	MinHours         float64 `json:"min_hours"`

	LateBlockGini float64 `json:"late_block_gini"` // 晚间时段分配基尼系数
	LongDayGini   float64 `json:"long_day_gini"`   // 长日（早+晚连排）分配基尼系数

	StaffStats []StaffStat `json:"staff_stats"`

	OverallFairnessScore float64 `json:"overall_fairness_score"` // 综合公平性评分 (0-100)
}

// StaffStat 员工统计
type StaffStat struct {
	StaffID    uuid.UUID `json:"staff_id"`
	StaffName  string    `json:"staff_name"`
	TotalHours float64   `json:"total_hours"`
	CellCount  int       `json:"cell_count"`
	LateBlocks int       `json:"late_blocks"`
	LongDays   int       `json:"long_days"`
	Deviation  float64   `json:"deviation"` // 与平均工时的偏差百分比
}

// FairnessAnalyzer 公平性分析器
type FairnessAnalyzer struct{}

// NewFairnessAnalyzer 创建公平性分析器
func NewFairnessAnalyzer() *FairnessAnalyzer {
	return &FairnessAnalyzer{}
}

// Analyze 分析方案的工时与晚间时段分配公平性
// 仅统计全职员工：兼职员工工时天然偏低，计入会扭曲基尼系数
func (f *FairnessAnalyzer) Analyze(snapshot *model.Snapshot, solution *model.Solution) *FairnessMetrics {
	metrics := &FairnessMetrics{OverallFairnessScore: 100}
	if snapshot == nil || solution == nil || len(solution.Assignments) == 0 {
		return metrics
	}

	fullTime := make(map[uuid.UUID]*model.Staff)
	for _, s := range snapshot.ActiveStaffs() {
		if s.EmploymentType == model.EmploymentFullTime {
			fullTime[s.ID] = s
		}
	}
	if len(fullTime) == 0 {
		return metrics
	}

	statMap := make(map[uuid.UUID]*StaffStat)
	for id, s := range fullTime {
		statMap[id] = &StaffStat{StaffID: id, StaffName: s.Name}
	}

	// 每人每日的时段集合，用于识别长日
	dayBlocks := make(map[uuid.UUID]map[string]map[model.TimeBlock]bool)

	for _, a := range solution.Assignments {
		stat, ok := statMap[a.StaffID]
		if !ok {
			continue
		}
		stat.TotalHours += float64(a.Block.DurationHours())
		stat.CellCount++
		if a.Block.IsLate() {
			stat.LateBlocks++
		}

		if dayBlocks[a.StaffID] == nil {
			dayBlocks[a.StaffID] = make(map[string]map[model.TimeBlock]bool)
		}
		if dayBlocks[a.StaffID][a.Date] == nil {
			dayBlocks[a.StaffID][a.Date] = make(map[model.TimeBlock]bool)
		}
		dayBlocks[a.StaffID][a.Date][a.Block] = true
	}

	for id, days := range dayBlocks {
		for _, blocks := range days {
			if blocks[model.BlockAM] && f.hasLateBlock(blocks) {
				statMap[id].LongDays++
			}
		}
	}

	stats := make([]StaffStat, 0, len(statMap))
	hours := make([]float64, 0, len(statMap))
	lates := make([]float64, 0, len(statMap))
	longs := make([]float64, 0, len(statMap))
	for _, stat := range statMap {
		stats = append(stats, *stat)
		hours = append(hours, stat.TotalHours)
		lates = append(lates, float64(stat.LateBlocks))
		longs = append(longs, float64(stat.LongDays))
	}

	avg := mean(hours)
	stdDev := math.Sqrt(variance(hours, avg))
	maxH, minH := extremes(hours)
	for i := range stats {
		if avg > 0 {
			stats[i].Deviation = (stats[i].TotalHours - avg) / avg * 100
		}
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].TotalHours != stats[j].TotalHours {
			return stats[i].TotalHours > stats[j].TotalHours
		}
		return stats[i].StaffName < stats[j].StaffName
	})

	metrics.WorkloadGini = gini(hours)
	metrics.WorkloadStdDev = stdDev
	metrics.AvgHoursPerStaff = avg
	metrics.MaxHours = maxH
	metrics.MinHours = minH
	metrics.LateBlockGini = gini(lates)
	metrics.LongDayGini = gini(longs)
	metrics.StaffStats = stats
	metrics.OverallFairnessScore = f.overallScore(metrics.WorkloadGini, metrics.LateBlockGini, metrics.LongDayGini, stdDev, avg)
	return metrics
}

func (f *FairnessAnalyzer) hasLateBlock(blocks map[model.TimeBlock]bool) bool {
	for b := range blocks {
		if b.IsLate() {
			return true
		}
	}
	return false
}

// overallScore 公平性加权评分
func (f *FairnessAnalyzer) overallScore(workloadGini, lateGini, longDayGini, stdDev, avg float64) float64 {
	const (
		workloadWeight = 0.45
		lateWeight     = 0.25
		longDayWeight  = 0.2
		stdDevWeight   = 0.1
	)

	cvScore := 100.0
	if avg > 0 {
		cvScore = math.Max(0, 100-stdDev/avg*200)
	}

	score := workloadWeight*(1-workloadGini)*100 +
		lateWeight*(1-lateGini)*100 +
		longDayWeight*(1-longDayGini)*100 +
		stdDevWeight*cvScore
	return math.Max(0, math.Min(100, score))
}

// CompareSolutions 比较两个方案的公平性
func (f *FairnessAnalyzer) CompareSolutions(snapshot *model.Snapshot, a, b *model.Solution) map[string]float64 {
	ma := f.Analyze(snapshot, a)
	mb := f.Analyze(snapshot, b)
	return map[string]float64{
		"workload_gini_diff": mb.WorkloadGini - ma.WorkloadGini,
		"late_gini_diff":     mb.LateBlockGini - ma.LateBlockGini,
		"score_a":            ma.OverallFairnessScore,
		"score_b":            mb.OverallFairnessScore,
		"score_diff":         mb.OverallFairnessScore - ma.OverallFairnessScore,
	}
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func variance(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sumSquares := 0.0
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}
	return sumSquares / float64(len(values))
}

func extremes(values []float64) (max, min float64) {
	if len(values) == 0 {
		return 0, 0
	}
	max, min = values[0], values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
		if v < min {
			min = v
		}
	}
	return
}

// gini 基尼系数，0 表示完全均等
func gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	if sum == 0 {
		return 0
	}

	g := 0.0
	for i, v := range sorted {
		g += (2*float64(i+1) - float64(n) - 1) * v
	}
	g = g / (float64(n) * sum)
	return math.Max(0, math.Min(1, g))
}
