// Package integration 提供HTTP层集成测试
package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/internal/handler"
	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/scheduler"
	"github.com/clinicshift/clinicshift/pkg/scheduler/solver"
	"github.com/clinicshift/clinicshift/pkg/stats"
)

// newAPIMux 按服务入口的路由布局组装处理器
func newAPIMux() *http.ServeMux {
	cfg := solver.DefaultConfig()
	cfg.Budget = 5 * time.Second
	cfg.IncrementalBudget = 3 * time.Second
	cfg.MaxIterations = 300

	engine := scheduler.NewEngine(cfg)
	sched := handler.NewScheduleHandler(engine)
	st := handler.NewStatsHandler()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/solve", sched.Solve)
	mux.HandleFunc("/api/v1/solve-multi", sched.SolveMulti)
	mux.HandleFunc("/api/v1/validate", sched.Validate)
	mux.HandleFunc("/api/v1/apply", sched.Apply)
	mux.HandleFunc("/api/v1/stats/fairness", st.Fairness)
	mux.HandleFunc("/api/v1/stats/coverage", st.Coverage)
	mux.HandleFunc("/api/v1/stats/workload", st.Workload)
	return mux
}

// apiSnapshot 一家小型门诊与一条工作日门诊规则
func apiSnapshot() *model.Snapshot {
	staff := func(name string, quals ...string) *model.Staff {
		return &model.Staff{
			BaseModel:      model.NewBaseModel(),
			Name:           name,
			EmploymentType: model.EmploymentFullTime,
			Qualifications: quals,
			IsActive:       true,
		}
	}
	return &model.Snapshot{
		ScheduleID: uuid.New(),
		YearMonth:  "2026-03",
		Staffs: []*model.Staff{
			staff("山田医师", "doctor"),
			staff("佐藤医师", "doctor"),
			staff("铃木护士", "nurse"),
		},
		TaskTypes: map[string]*model.TaskType{
			"outpatient": {Code: "outpatient", DisplayName: "门诊",
				RequiredQuals: []string{"doctor"}, MinStaff: 1,
				DefaultBlocks: []model.TimeBlock{model.BlockAM}, IsActive: true},
		},
		Rules: []*model.Rule{
			{
				BaseModel:   model.NewBaseModel(),
				NaturalText: "每个工作日上午安排1名医师门诊",
				Template:    model.TemplateRecurring,
				Category:    model.RuleHard,
				Body: model.JSONMap{
					"task": "outpatient", "weekdays": []int{0, 1, 2, 3, 4},
					"blocks": []string{"am"}, "staff_count": 1,
				},
				IsActive: true,
			},
		},
	}
}

// postJSON 发送JSON请求并返回响应记录器
func postJSON(t *testing.T, mux *http.ServeMux, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("序列化请求失败: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("解析响应失败: %v", err)
	}
}

// TestSolveEndpoint 测试完整求解端点
func TestSolveEndpoint(t *testing.T) {
	mux := newAPIMux()

	rec := postJSON(t, mux, "/api/v1/solve", handler.SolveRequest{Snapshot: apiSnapshot()})
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200，得到 %d: %s", rec.Code, rec.Body.String())
	}

	var resp handler.SolveResponse
	decodeBody(t, rec, &resp)
	if resp.Solution == nil {
		t.Fatal("响应缺少方案")
	}
	if !resp.Solution.IsFeasible() {
		t.Errorf("方案应可行，得到 %s", resp.Solution.Status)
	}
	if len(resp.Solution.Assignments) == 0 {
		t.Error("方案应包含分配")
	}
	if resp.Duration == "" {
		t.Error("响应缺少耗时")
	}

	t.Logf("状态=%s 分配数=%d 耗时=%s",
		resp.Solution.Status, len(resp.Solution.Assignments), resp.Duration)
}

// TestSolveRejectsInvalidRequest 测试求解端点的入参校验
func TestSolveRejectsInvalidRequest(t *testing.T) {
	mux := newAPIMux()

	cases := []struct {
		name    string
		payload interface{}
	}{
		{"缺少快照", handler.SolveRequest{}},
		{"缺少月份", handler.SolveRequest{Snapshot: &model.Snapshot{ScheduleID: uuid.New()}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, mux, "/api/v1/solve", tc.payload)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("期望 400，得到 %d", rec.Code)
			}

			var errResp map[string]interface{}
			decodeBody(t, rec, &errResp)
			if errResp["error"] != true {
				t.Error("错误响应应携带 error=true")
			}
			if errResp["code"] == nil || errResp["code"] == "" {
				t.Error("错误响应应携带错误码")
			}
		})
	}

	// GET 方法同样拒绝
	req := httptest.NewRequest(http.MethodGet, "/api/v1/solve", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("GET 请求期望 400，得到 %d", rec.Code)
	}
}

// TestSolveMultiEndpoint 测试多预设求解端点按优劣排序
func TestSolveMultiEndpoint(t *testing.T) {
	mux := newAPIMux()

	rec := postJSON(t, mux, "/api/v1/solve-multi", handler.SolveRequest{Snapshot: apiSnapshot()})
	if rec.Code != http.StatusOK {
		t.Fatalf("期望 200，得到 %d: %s", rec.Code, rec.Body.String())
	}

	var resp handler.SolveMultiResponse
	decodeBody(t, rec, &resp)
	if len(resp.Solutions) < 2 {
		t.Fatalf("应返回多个预设方案，得到 %d 个", len(resp.Solutions))
	}

	presets := make(map[string]bool)
	for i, sol := range resp.Solutions {
		presets[sol.Preset] = true
		if i > 0 && resp.Solutions[i-1].HardViolationCount() > sol.HardViolationCount() {
			t.Errorf("方案未按优劣排序：第 %d 个硬违反数多于第 %d 个", i, i+1)
		}
		t.Logf("预设=%s 状态=%s 目标值=%d", sol.Preset, sol.Status, sol.Objective)
	}
	if len(presets) != len(resp.Solutions) {
		t.Error("各方案的预设不应重复")
	}
}

// TestValidateEndpoint 测试求解后校验通过
func TestValidateEndpoint(t *testing.T) {
	mux := newAPIMux()
	snap := apiSnapshot()

	rec := postJSON(t, mux, "/api/v1/solve", handler.SolveRequest{Snapshot: snap})
	if rec.Code != http.StatusOK {
		t.Fatalf("求解失败: %s", rec.Body.String())
	}
	var solveResp handler.SolveResponse
	decodeBody(t, rec, &solveResp)

	// 把方案落到快照后校验应通过
	snap.Assignments = solveResp.Solution.Assignments
	rec = postJSON(t, mux, "/api/v1/validate", handler.ValidateRequest{Snapshot: snap})
	if rec.Code != http.StatusOK {
		t.Fatalf("校验失败: %s", rec.Body.String())
	}

	var report struct {
		Valid      bool              `json:"valid"`
		Objective  int               `json:"objective_value"`
		Violations []model.Violation `json:"violations"`
	}
	decodeBody(t, rec, &report)
	if !report.Valid {
		t.Errorf("求解方案校验应通过，违规 %d 条", len(report.Violations))
		for _, v := range report.Violations {
			t.Logf("  [%d] %s", v.Severity, v.Description)
		}
	}
}

// TestApplyEndpoint 测试方案应用端点
func TestApplyEndpoint(t *testing.T) {
	mux := newAPIMux()
	snap := apiSnapshot()

	rec := postJSON(t, mux, "/api/v1/solve", handler.SolveRequest{Snapshot: snap})
	if rec.Code != http.StatusOK {
		t.Fatalf("求解失败: %s", rec.Body.String())
	}
	var solveResp handler.SolveResponse
	decodeBody(t, rec, &solveResp)

	rec = postJSON(t, mux, "/api/v1/apply", handler.ApplyRequest{
		Snapshot: snap,
		Solution: solveResp.Solution,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("应用失败: %s", rec.Body.String())
	}

	var applyResp handler.ApplyResponse
	decodeBody(t, rec, &applyResp)
	if applyResp.CellCount != len(applyResp.Assignments) {
		t.Errorf("格位数 %d 与分配数 %d 不一致", applyResp.CellCount, len(applyResp.Assignments))
	}
	if applyResp.CellCount == 0 {
		t.Error("应用后应有分配")
	}
	t.Logf("应用分配 %d 条", applyResp.CellCount)
}

// TestStatsEndpoints 测试统计端点基于同一方案的输出一致性
func TestStatsEndpoints(t *testing.T) {
	mux := newAPIMux()
	snap := apiSnapshot()

	rec := postJSON(t, mux, "/api/v1/solve", handler.SolveRequest{Snapshot: snap})
	if rec.Code != http.StatusOK {
		t.Fatalf("求解失败: %s", rec.Body.String())
	}
	var solveResp handler.SolveResponse
	decodeBody(t, rec, &solveResp)

	statsReq := handler.StatsRequest{Snapshot: snap, Solution: solveResp.Solution}

	rec = postJSON(t, mux, "/api/v1/stats/fairness", statsReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("公平性分析失败: %s", rec.Body.String())
	}
	var fairness stats.FairnessMetrics
	decodeBody(t, rec, &fairness)
	if fairness.WorkloadGini < 0 || fairness.WorkloadGini > 1 {
		t.Errorf("基尼系数应在 [0,1]，得到 %f", fairness.WorkloadGini)
	}

	rec = postJSON(t, mux, "/api/v1/stats/coverage", statsReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("覆盖率分析失败: %s", rec.Body.String())
	}
	var coverage stats.CoverageMetrics
	decodeBody(t, rec, &coverage)
	if coverage.TotalDemand == 0 {
		t.Error("任务含最低人数要求，需求总数不应为0")
	}
	if coverage.OverallCoverage < 100 {
		t.Errorf("可行方案覆盖率应为100%%，得到 %f", coverage.OverallCoverage)
	}

	rec = postJSON(t, mux, "/api/v1/stats/workload", statsReq)
	if rec.Code != http.StatusOK {
		t.Fatalf("工时汇总失败: %s", rec.Body.String())
	}
	var workload handler.WorkloadSummary
	decodeBody(t, rec, &workload)
	if workload.TotalCells != len(solveResp.Solution.Assignments) {
		t.Errorf("工时格位数 %d 与方案分配数 %d 不一致",
			workload.TotalCells, len(solveResp.Solution.Assignments))
	}
	for i := 1; i < len(workload.ByStaff); i++ {
		if workload.ByStaff[i-1].TotalHours < workload.ByStaff[i].TotalHours {
			t.Error("工时汇总应按工时降序排列")
			break
		}
	}

	t.Logf("基尼=%f 覆盖率=%f%% 总工时=%d",
		fairness.WorkloadGini, coverage.OverallCoverage, workload.TotalHours)
}
