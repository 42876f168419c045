// Package handler 提供HTTP请求处理器
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/clinicshift/clinicshift/internal/metrics"
	"github.com/clinicshift/clinicshift/pkg/errors"
	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/scheduler"
	"github.com/clinicshift/clinicshift/pkg/validator"
)

// ScheduleHandler 排班处理器
type ScheduleHandler struct {
	engine *scheduler.Engine
}

// NewScheduleHandler 创建排班处理器
func NewScheduleHandler(engine *scheduler.Engine) *ScheduleHandler {
	return &ScheduleHandler{engine: engine}
}

// SolveRequest 求解请求
type SolveRequest struct {
	Snapshot *model.Snapshot `json:"snapshot"`
	Preset   string          `json:"preset,omitempty"`
}

// SolveResponse 求解响应
type SolveResponse struct {
	Solution *model.Solution `json:"solution"`
	Duration string          `json:"duration"`
}

// Solve 完整求解
func (h *ScheduleHandler) Solve(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSolveRequest(w, r)
	if !ok {
		return
	}

	metrics.SolveStarted()
	defer metrics.SolveFinished()

	start := time.Now()
	sol, err := h.engine.Solve(r.Context(), req.Snapshot, req.Preset)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	metrics.RecordSolve(sol.Preset, string(sol.Status), time.Since(start))
	metrics.SetSolutionQuality(sol.ScheduleID.String(), sol.Objective, sol.HardViolationCount())

	respondJSON(w, http.StatusOK, SolveResponse{
		Solution: sol,
		Duration: time.Since(start).String(),
	})
}

// SolveMultiResponse 多预设求解响应
type SolveMultiResponse struct {
	Solutions []*model.Solution `json:"solutions"` // 按优劣排序，最优在前
	Duration  string            `json:"duration"`
}

// SolveMulti 按全部预设求解并返回排序后的候选方案
func (h *ScheduleHandler) SolveMulti(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSolveRequest(w, r)
	if !ok {
		return
	}

	metrics.SolveStarted()
	defer metrics.SolveFinished()

	start := time.Now()
	sols, err := h.engine.SolveAllPresets(r.Context(), req.Snapshot)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	elapsed := time.Since(start)
	for _, sol := range sols {
		metrics.RecordSolve(sol.Preset, string(sol.Status), elapsed)
	}

	respondJSON(w, http.StatusOK, SolveMultiResponse{
		Solutions: sols,
		Duration:  elapsed.String(),
	})
}

// SolveIncremental 增量重排
func (h *ScheduleHandler) SolveIncremental(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSolveRequest(w, r)
	if !ok {
		return
	}

	metrics.SolveStarted()
	defer metrics.SolveFinished()

	start := time.Now()
	sol, err := h.engine.SolveIncremental(r.Context(), req.Snapshot, req.Preset)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	metrics.RecordSolve(sol.Preset, string(sol.Status), time.Since(start))

	respondJSON(w, http.StatusOK, SolveResponse{
		Solution: sol,
		Duration: time.Since(start).String(),
	})
}

// ValidateRequest 校验请求
type ValidateRequest struct {
	Snapshot     *model.Snapshot `json:"snapshot"`
	Preset       string          `json:"preset,omitempty"`
	ChangedCells []model.CellKey `json:"changed_cells,omitempty"`
}

// Validate 校验当前排班网格
func (h *ScheduleHandler) Validate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req ValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if req.Snapshot == nil {
		respondError(w, errors.New(errors.CodeInvalidInput, "快照不能为空"))
		return
	}

	var report *validator.Report
	var err error
	if len(req.ChangedCells) > 0 {
		report, err = h.engine.ValidateCells(req.Snapshot, req.Preset, req.ChangedCells)
	} else {
		report, err = h.engine.Validate(req.Snapshot, req.Preset)
	}
	if err != nil {
		respondEngineError(w, err)
		return
	}

	metrics.RecordValidation(report.Valid)
	respondJSON(w, http.StatusOK, report)
}

// UnsatCore 分析不可行排班的最小规则冲突核
func (h *ScheduleHandler) UnsatCore(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSolveRequest(w, r)
	if !ok {
		return
	}

	core, err := h.engine.FindUnsatCore(r.Context(), req.Snapshot, req.Preset)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	metrics.RecordUnsatProbes(core.Probes)
	respondJSON(w, http.StatusOK, core)
}

// ApplyRequest 方案应用请求
type ApplyRequest struct {
	Snapshot *model.Snapshot `json:"snapshot"`
	Solution *model.Solution `json:"solution"`
}

// ApplyResponse 方案应用响应
type ApplyResponse struct {
	Assignments []*model.Assignment `json:"assignments"`
	CellCount   int                 `json:"cell_count"`
}

// Apply 将求解方案落到排班网格
func (h *ScheduleHandler) Apply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	if req.Snapshot == nil || req.Solution == nil {
		respondError(w, errors.New(errors.CodeInvalidInput, "快照与方案均不能为空"))
		return
	}

	applied, err := h.engine.ApplySolution(req.Snapshot, req.Solution)
	if err != nil {
		respondEngineError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, ApplyResponse{
		Assignments: applied,
		CellCount:   len(applied),
	})
}

// decodeSolveRequest 解析求解类请求并校验快照
func decodeSolveRequest(w http.ResponseWriter, r *http.Request) (*SolveRequest, bool) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return nil, false
	}

	var req SolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return nil, false
	}
	if req.Snapshot == nil {
		respondError(w, errors.New(errors.CodeInvalidInput, "快照不能为空"))
		return nil, false
	}
	if req.Snapshot.YearMonth == "" {
		respondError(w, errors.New(errors.CodeInvalidInput, "快照缺少月份"))
		return nil, false
	}
	return &req, true
}

// respondEngineError 将引擎错误映射为HTTP响应
func respondEngineError(w http.ResponseWriter, err error) {
	if appErr, ok := err.(*errors.AppError); ok {
		respondError(w, appErr)
		return
	}
	respondError(w, errors.Wrap(err, errors.CodeInternal, "引擎执行失败"))
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
	})
}
