package violation

import (
	"testing"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/scheduler/constraint"
)

func detail(name, checkType, date string, block model.TimeBlock, staffIDs []uuid.UUID, severity int) constraint.ViolationDetail {
	return constraint.ViolationDetail{
		ConstraintName: name,
		CheckType:      checkType,
		Date:           date,
		Block:          block,
		StaffIDs:       staffIDs,
		Message:        name + " 未满足",
		Severity:       severity,
		Penalty:        severity,
	}
}

func TestExtractDeduplicates(t *testing.T) {
	staff := uuid.New()
	result := &constraint.Result{
		HardViolations: []constraint.ViolationDetail{
			detail("同格位重复", model.ViolationDoubleBooking, "2026-03-02", model.BlockAM, []uuid.UUID{staff}, 1000),
			detail("同格位重复", model.ViolationDoubleBooking, "2026-03-02", model.BlockAM, []uuid.UUID{staff}, 1000),
			detail("同格位重复", model.ViolationDoubleBooking, "2026-03-03", model.BlockAM, []uuid.UUID{staff}, 1000),
		},
	}

	out := Extract(result, nil)
	if len(out) != 2 {
		t.Fatalf("同一规则同一位置应去重，期望 2 条，得到 %d", len(out))
	}
}

func TestExtractSeparatesRuleInstances(t *testing.T) {
	staff := uuid.New()
	rule1, rule2 := uuid.New(), uuid.New()

	d1 := detail("人数下限[a]", model.ViolationHeadcount, "2026-03-02", model.BlockAM, []uuid.UUID{staff}, 700)
	d1.RuleID = &rule1
	d2 := detail("人数下限[b]", model.ViolationHeadcount, "2026-03-02", model.BlockAM, []uuid.UUID{staff}, 700)
	d2.RuleID = &rule2

	out := Extract(&constraint.Result{HardViolations: []constraint.ViolationDetail{d1, d2}}, nil)
	if len(out) != 2 {
		t.Fatalf("不同规则实例不应互相去重，得到 %d 条", len(out))
	}
}

func TestExtractSkipsFullyLockedCells(t *testing.T) {
	locked := uuid.New()
	free := uuid.New()
	lockedCells := map[model.CellKey]bool{
		{StaffID: locked, Date: "2026-03-02", Block: model.BlockAM}: true,
	}

	result := &constraint.Result{
		HardViolations: []constraint.ViolationDetail{
			detail("出行能力", model.ViolationTransport, "2026-03-02", model.BlockAM, []uuid.UUID{locked}, 800),
			detail("出行能力", model.ViolationTransport, "2026-03-02", model.BlockAM, []uuid.UUID{free}, 800),
		},
	}

	out := Extract(result, lockedCells)
	if len(out) != 1 {
		t.Fatalf("锁定格位上的违反不应报告，得到 %d 条", len(out))
	}
	if out[0].StaffIDs[0] != free {
		t.Error("保留的违反应属于未锁定格位")
	}
}

func TestExtractOrdersHardFirst(t *testing.T) {
	staff := uuid.New()
	result := &constraint.Result{
		HardViolations: []constraint.ViolationDetail{
			detail("在岗人数", model.ViolationHeadcount, "2026-03-05", model.BlockAM, []uuid.UUID{staff}, 700),
			detail("同格位重复", model.ViolationDoubleBooking, "2026-03-09", model.BlockPM, []uuid.UUID{staff}, 1000),
		},
		SoftViolations: []constraint.ViolationDetail{
			detail("偏好", model.ViolationPreference, "2026-03-02", model.BlockAM, []uuid.UUID{staff}, 200),
		},
	}

	out := Extract(result, nil)
	if len(out) != 3 {
		t.Fatalf("期望 3 条，得到 %d", len(out))
	}
	if !out[0].IsHard() || out[0].Severity != 1000 {
		t.Errorf("第一条应为严重度最高的硬性违反: %+v", out[0])
	}
	if out[2].IsHard() {
		t.Error("软性违反应排在末尾")
	}
}

func TestExtractNilResult(t *testing.T) {
	if out := Extract(nil, nil); out != nil {
		t.Errorf("空结果应返回 nil，得到 %v", out)
	}
}
