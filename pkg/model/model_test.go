package model

import (
	"testing"

	"github.com/google/uuid"
)

func TestStaffQualifications(t *testing.T) {
	s := &Staff{
		BaseModel:      NewBaseModel(),
		Name:           "山田",
		Qualifications: []string{"nurse", "psw"},
	}

	if !s.HasQualification("nurse") {
		t.Error("Expected staff to have nurse qualification")
	}
	if s.HasAllQualifications([]string{"nurse", "doctor"}) {
		t.Error("Expected missing doctor qualification")
	}
	missing := s.MissingQualifications([]string{"nurse", "doctor"})
	if len(missing) != 1 || missing[0] != "doctor" {
		t.Errorf("Expected [doctor], got %v", missing)
	}
}

func TestStaffCanWorkBlock(t *testing.T) {
	partTime := &Staff{EmploymentType: EmploymentPartTime}
	fullTime := &Staff{EmploymentType: EmploymentFullTime}

	if partTime.CanWorkBlock(Block16) {
		t.Error("Part-time staff must not take late blocks")
	}
	if !partTime.CanWorkBlock(BlockAM) {
		t.Error("Part-time staff can take am block")
	}
	if !fullTime.CanWorkBlock(Block18Plus) {
		t.Error("Full-time staff can take any block")
	}
}

func TestStaffCanUseResource(t *testing.T) {
	s := &Staff{CanDrive: false, CanBicycle: true}
	if s.CanUseResource(ResourceCar) {
		t.Error("Staff without driving capability cannot use car")
	}
	if !s.CanUseResource(ResourceBicycle) {
		t.Error("Expected bicycle capability")
	}
	if !s.CanUseResource(ResourceRoom) {
		t.Error("Rooms need no personal capability")
	}
}

func TestEventUnmetPenalty(t *testing.T) {
	high := &Event{Priority: PriorityHigh}
	low := &Event{Priority: PriorityLow}
	if high.UnmetPenalty() != 800 || low.UnmetPenalty() != 100 {
		t.Errorf("Unexpected penalties: high=%d low=%d", high.UnmetPenalty(), low.UnmetPenalty())
	}
}

func TestRuleEffectiveWeight(t *testing.T) {
	hard := &Rule{Category: RuleHard, Weight: 300}
	soft := &Rule{Category: RuleSoft, Weight: 300}
	zero := &Rule{Category: RuleSoft}

	if hard.EffectiveWeight() != HardSeverity {
		t.Errorf("Hard rule weight must be fixed sentinel, got %d", hard.EffectiveWeight())
	}
	if soft.EffectiveWeight() != 300 {
		t.Errorf("Expected 300, got %d", soft.EffectiveWeight())
	}
	if zero.EffectiveWeight() != 100 {
		t.Errorf("Expected default 100, got %d", zero.EffectiveWeight())
	}
}

func TestRuleSuspendedOn(t *testing.T) {
	r := &Rule{Exceptions: []string{"2026-03-05"}}
	if !r.SuspendedOn("2026-03-05") {
		t.Error("Expected rule suspended on exception date")
	}
	if r.SuspendedOn("2026-03-06") {
		t.Error("Rule should apply on non-exception date")
	}
}

func TestSolutionBetter(t *testing.T) {
	eid := uuid.New()
	placed := &Solution{
		Status: StatusFeasible,
		Assignments: []*Assignment{
			{StaffID: uuid.New(), Date: "2026-03-02", Block: BlockAM, EventID: &eid},
		},
		Objective: 500,
	}
	unplaced := &Solution{Status: StatusFeasible, Objective: 100}

	// 排入必须事件优先于目标值
	if !placed.Better(unplaced) {
		t.Error("Solution with more placed events must win regardless of objective")
	}

	a := &Solution{Objective: 100, Violations: []Violation{{Kind: ViolationHard, Severity: HardSeverity}}}
	b := &Solution{Objective: 900}
	if a.Better(b) {
		t.Error("Fewer hard violations must win over lower objective")
	}
}

func TestSnapshotAccessors(t *testing.T) {
	active := &Staff{BaseModel: NewBaseModel(), Name: "佐藤", IsActive: true}
	inactive := &Staff{BaseModel: NewBaseModel(), Name: "退职", IsActive: false}
	sn := &Snapshot{
		YearMonth: "2026-03",
		Staffs:    []*Staff{active, inactive},
		Events: []*Event{
			{BaseModel: NewBaseModel(), Status: EventUnassigned},
			{BaseModel: NewBaseModel(), Status: EventHold},
		},
	}

	if len(sn.ActiveStaffs()) != 1 {
		t.Errorf("Expected 1 active staff, got %d", len(sn.ActiveStaffs()))
	}
	if len(sn.SchedulableEvents()) != 1 {
		t.Errorf("Expected 1 schedulable event, got %d", len(sn.SchedulableEvents()))
	}
	if len(sn.Dates()) != 31 {
		t.Errorf("Expected 31 dates for 2026-03, got %d", len(sn.Dates()))
	}
	if sn.StaffByName("佐藤") != active {
		t.Error("StaffByName lookup failed")
	}
	if sn.StaffByID(inactive.ID) != inactive {
		t.Error("StaffByID lookup failed")
	}
}
