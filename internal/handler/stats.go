package handler

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/clinicshift/clinicshift/internal/metrics"
	"github.com/clinicshift/clinicshift/pkg/errors"
	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/stats"
)

// StatsHandler 统计分析处理器
type StatsHandler struct {
	fairness *stats.FairnessAnalyzer
	coverage *stats.CoverageAnalyzer
}

// NewStatsHandler 创建统计分析处理器
func NewStatsHandler() *StatsHandler {
	return &StatsHandler{
		fairness: stats.NewFairnessAnalyzer(),
		coverage: stats.NewCoverageAnalyzer(),
	}
}

// StatsRequest 统计请求
type StatsRequest struct {
	Snapshot *model.Snapshot `json:"snapshot"`
	Solution *model.Solution `json:"solution"`
}

// decodeStatsRequest 解析统计请求
func decodeStatsRequest(w http.ResponseWriter, r *http.Request) (*StatsRequest, bool) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return nil, false
	}

	var req StatsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return nil, false
	}
	if req.Snapshot == nil {
		respondError(w, errors.New(errors.CodeInvalidInput, "快照不能为空"))
		return nil, false
	}
	return &req, true
}

// Fairness 公平性分析
func (h *StatsHandler) Fairness(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStatsRequest(w, r)
	if !ok {
		return
	}

	m := h.fairness.Analyze(req.Snapshot, req.Solution)

	scheduleID := req.Snapshot.ScheduleID.String()
	metrics.SetFairnessGini(scheduleID, "workload", m.WorkloadGini)
	metrics.SetFairnessGini(scheduleID, "late_block", m.LateBlockGini)
	metrics.SetFairnessGini(scheduleID, "long_day", m.LongDayGini)

	respondJSON(w, http.StatusOK, m)
}

// Coverage 覆盖率分析
func (h *StatsHandler) Coverage(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStatsRequest(w, r)
	if !ok {
		return
	}

	m := h.coverage.Analyze(req.Snapshot, req.Solution)
	metrics.SetCoverageRate(req.Snapshot.ScheduleID.String(), m.OverallCoverage)

	respondJSON(w, http.StatusOK, m)
}

// CompareRequest 方案对比请求
type CompareRequest struct {
	Snapshot *model.Snapshot `json:"snapshot"`
	Base     *model.Solution `json:"base"`
	Other    *model.Solution `json:"other"`
}

// Compare 对比两个方案的公平性指标
func (h *StatsHandler) Compare(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if req.Snapshot == nil || req.Base == nil || req.Other == nil {
		respondError(w, errors.New(errors.CodeInvalidInput, "快照与两个方案均不能为空"))
		return
	}

	diff := h.fairness.CompareSolutions(req.Snapshot, req.Base, req.Other)
	respondJSON(w, http.StatusOK, diff)
}

// WorkloadSummary 工时汇总
type WorkloadSummary struct {
	YearMonth    string                   `json:"year_month"`
	TotalHours   int                      `json:"total_hours"`
	TotalCells   int                      `json:"total_cells"`
	StaffCount   int                      `json:"staff_count"`
	AvgHours     float64                  `json:"avg_hours"`
	ByStaff      []StaffWorkload          `json:"by_staff"`
	ByDate       map[string]DailyWorkload `json:"by_date"`
	ByBlock      map[string]int           `json:"by_block"`
	ByTask       map[string]int           `json:"by_task"`
}

// StaffWorkload 单人工时
type StaffWorkload struct {
	StaffID    string `json:"staff_id"`
	StaffName  string `json:"staff_name"`
	TotalHours int    `json:"total_hours"`
	CellCount  int    `json:"cell_count"`
	LateBlocks int    `json:"late_blocks"`
}

// DailyWorkload 单日工时
type DailyWorkload struct {
	Date       string `json:"date"`
	TotalHours int    `json:"total_hours"`
	CellCount  int    `json:"cell_count"`
	StaffCount int    `json:"staff_count"`
}

// Workload 按员工、日期、时间块、任务维度汇总工时
func (h *StatsHandler) Workload(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeStatsRequest(w, r)
	if !ok {
		return
	}

	summary := calculateWorkload(req.Snapshot, req.Solution)
	respondJSON(w, http.StatusOK, summary)
}

// calculateWorkload 计算工时汇总
func calculateWorkload(snapshot *model.Snapshot, solution *model.Solution) *WorkloadSummary {
	summary := &WorkloadSummary{
		YearMonth: snapshot.YearMonth,
		ByDate:    make(map[string]DailyWorkload),
		ByBlock:   make(map[string]int),
		ByTask:    make(map[string]int),
	}

	var assignments []*model.Assignment
	if solution != nil {
		assignments = solution.Assignments
	} else {
		assignments = snapshot.Assignments
	}

	staffStats := make(map[string]*StaffWorkload)
	dailyStaff := make(map[string]map[string]bool)

	for _, a := range assignments {
		if !a.IsWork() {
			continue
		}
		hours := a.Block.DurationHours()
		summary.TotalHours += hours
		summary.TotalCells++

		id := a.StaffID.String()
		sw, exists := staffStats[id]
		if !exists {
			name := id
			if s := snapshot.StaffByID(a.StaffID); s != nil {
				name = s.Name
			}
			sw = &StaffWorkload{StaffID: id, StaffName: name}
			staffStats[id] = sw
		}
		sw.TotalHours += hours
		sw.CellCount++
		if a.Block.IsLate() {
			sw.LateBlocks++
		}

		daily := summary.ByDate[a.Date]
		daily.Date = a.Date
		daily.TotalHours += hours
		daily.CellCount++
		if dailyStaff[a.Date] == nil {
			dailyStaff[a.Date] = make(map[string]bool)
		}
		if !dailyStaff[a.Date][id] {
			dailyStaff[a.Date][id] = true
			daily.StaffCount++
		}
		summary.ByDate[a.Date] = daily

		summary.ByBlock[string(a.Block)] += hours
		summary.ByTask[a.TaskTypeCode] += hours
	}

	summary.StaffCount = len(staffStats)
	if summary.StaffCount > 0 {
		summary.AvgHours = float64(summary.TotalHours) / float64(summary.StaffCount)
	}

	for _, sw := range staffStats {
		summary.ByStaff = append(summary.ByStaff, *sw)
	}
	sort.Slice(summary.ByStaff, func(i, j int) bool {
		if summary.ByStaff[i].TotalHours != summary.ByStaff[j].TotalHours {
			return summary.ByStaff[i].TotalHours > summary.ByStaff[j].TotalHours
		}
		return summary.ByStaff[i].StaffName < summary.ByStaff[j].StaffName
	})

	return summary
}
