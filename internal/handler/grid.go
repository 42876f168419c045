package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/internal/metrics"
	"github.com/clinicshift/clinicshift/internal/repository"
	"github.com/clinicshift/clinicshift/pkg/errors"
	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/scheduler"
)

// GridHandler 排班网格持久化处理器
// 从数据库装载快照、求解并把结果落库，供有状态的部署使用
type GridHandler struct {
	engine    *scheduler.Engine
	snapshots *repository.SnapshotRepository
	schedules repository.ScheduleRepositoryInterface
}

// NewGridHandler 创建网格处理器
func NewGridHandler(engine *scheduler.Engine, snapshots *repository.SnapshotRepository, schedules repository.ScheduleRepositoryInterface) *GridHandler {
	return &GridHandler{
		engine:    engine,
		snapshots: snapshots,
		schedules: schedules,
	}
}

// parseScheduleID 从路径尾段解析排班表 ID
// 路径形如 /api/v1/schedules/{id}/solve
func parseScheduleID(path, prefix string) (uuid.UUID, *errors.AppError) {
	rest := strings.TrimPrefix(path, prefix)
	idStr := strings.SplitN(strings.Trim(rest, "/"), "/", 2)[0]
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, errors.InvalidInput("schedule_id", "无效的排班表ID")
	}
	return id, nil
}

// SolveStoredRequest 落库求解请求
type SolveStoredRequest struct {
	Preset string `json:"preset,omitempty"`
	Apply  bool   `json:"apply,omitempty"` // 求解成功后直接写回网格
}

// SolveStored 装载数据库快照求解，可选择直接落库
func (h *GridHandler) SolveStored(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	scheduleID, appErr := parseScheduleID(r.URL.Path, "/api/v1/schedules/")
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	var req SolveStoredRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
			return
		}
	}

	snapshot, err := h.snapshots.Load(r.Context(), scheduleID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "装载排班快照失败"))
		return
	}

	metrics.SolveStarted()
	defer metrics.SolveFinished()

	start := time.Now()
	sol, solveErr := h.engine.Solve(r.Context(), snapshot, req.Preset)
	if solveErr != nil {
		respondEngineError(w, solveErr)
		return
	}
	metrics.RecordSolve(sol.Preset, string(sol.Status), time.Since(start))
	metrics.SetSolutionQuality(sol.ScheduleID.String(), sol.Objective, sol.HardViolationCount())

	if err := h.schedules.RecordSolveResult(r.Context(), sol); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "记录求解结果失败"))
		return
	}

	if req.Apply {
		applied, applyErr := h.engine.ApplySolution(snapshot, sol)
		if applyErr != nil {
			respondEngineError(w, applyErr)
			return
		}
		if err := h.schedules.ReplaceAssignments(r.Context(), scheduleID, applied); err != nil {
			respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "写入排班网格失败"))
			return
		}
	}

	respondJSON(w, http.StatusOK, SolveResponse{
		Solution: sol,
		Duration: time.Since(start).String(),
	})
}

// ValidateStored 校验数据库中的当前网格
func (h *GridHandler) ValidateStored(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	scheduleID, appErr := parseScheduleID(r.URL.Path, "/api/v1/schedules/")
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	snapshot, err := h.snapshots.Load(r.Context(), scheduleID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "装载排班快照失败"))
		return
	}

	report, vErr := h.engine.Validate(snapshot, "")
	if vErr != nil {
		respondEngineError(w, vErr)
		return
	}

	metrics.RecordValidation(report.Valid)
	respondJSON(w, http.StatusOK, report)
}

// LockCellRequest 格位锁定请求
type LockCellRequest struct {
	StaffID string          `json:"staff_id"`
	Date    string          `json:"date"`
	Block   model.TimeBlock `json:"block"`
	Locked  bool            `json:"locked"`
}

// LockCell 锁定或解锁单个格位
func (h *GridHandler) LockCell(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持POST方法"))
		return
	}

	scheduleID, appErr := parseScheduleID(r.URL.Path, "/api/v1/schedules/")
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	var req LockCellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "解析请求失败"))
		return
	}
	staffID, err := uuid.Parse(req.StaffID)
	if err != nil {
		respondError(w, errors.InvalidInput("staff_id", "无效的职员ID"))
		return
	}
	if _, err := model.ParseDate(req.Date); err != nil {
		respondError(w, errors.InvalidInput("date", "日期格式应为 YYYY-MM-DD"))
		return
	}
	if !req.Block.Valid() {
		respondError(w, errors.InvalidInput("block", "未知时间块"))
		return
	}

	if err := h.schedules.SetCellLock(r.Context(), scheduleID, staffID, req.Date, req.Block, req.Locked); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "更新格位锁定失败"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"schedule_id": scheduleID,
		"staff_id":    staffID,
		"date":        req.Date,
		"block":       req.Block,
		"locked":      req.Locked,
	})
}

// GetAssignments 返回排班表的当前网格
func (h *GridHandler) GetAssignments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, errors.New(errors.CodeInvalidInput, "仅支持GET方法"))
		return
	}

	scheduleID, appErr := parseScheduleID(r.URL.Path, "/api/v1/schedules/")
	if appErr != nil {
		respondError(w, appErr)
		return
	}

	assignments, err := h.schedules.GetAssignments(r.Context(), scheduleID)
	if err != nil {
		respondError(w, errors.Wrap(err, errors.CodeDatabaseError, "读取排班网格失败"))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"schedule_id": scheduleID,
		"assignments": assignments,
		"cell_count":  len(assignments),
	})
}
