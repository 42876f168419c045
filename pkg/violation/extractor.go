// Package violation 将约束评估的违反详情归一化为对外的违规记录
package violation

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/scheduler/constraint"
)

// Extract 归一化约束评估结果
// 同一规则实例在同一位置的重复详情只保留一条；完全落在锁定格位上的
// 违反不再报告（锁定内容由使用者确认，重排不会改动）
func Extract(result *constraint.Result, lockedCells map[model.CellKey]bool) []model.Violation {
	if result == nil {
		return nil
	}

	seen := make(map[string]bool)
	var out []model.Violation

	collect := func(details []constraint.ViolationDetail, kind model.ViolationKind) {
		for i := range details {
			d := &details[i]
			if allCellsLocked(d, lockedCells) {
				continue
			}
			key := dedupKey(d)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, toViolation(d, kind))
		}
	}

	collect(result.HardViolations, model.ViolationHard)
	collect(result.SoftViolations, model.ViolationSoft)

	sortViolations(out)
	return out
}

// dedupKey 规则实例 + 位置的去重键
func dedupKey(d *constraint.ViolationDetail) string {
	var b strings.Builder
	b.WriteString(d.ConstraintName)
	b.WriteByte('|')
	b.WriteString(d.Date)
	b.WriteByte('|')
	b.WriteString(string(d.Block))
	if d.RuleID != nil {
		b.WriteByte('|')
		b.WriteString(d.RuleID.String())
	}
	if d.EventID != nil {
		b.WriteByte('|')
		b.WriteString(d.EventID.String())
	}
	for _, id := range sortedStaffIDs(d.StaffIDs) {
		b.WriteByte('|')
		b.WriteString(id)
	}
	return b.String()
}

// sortedStaffIDs 返回排序后的职员 ID 字符串（去重键的稳定成分）
func sortedStaffIDs(ids []uuid.UUID) []string {
	strs := make([]string, len(ids))
	for i, id := range ids {
		strs[i] = id.String()
	}
	sort.Strings(strs)
	return strs
}

// allCellsLocked 检查违反涉及的全部格位是否均被锁定
func allCellsLocked(d *constraint.ViolationDetail, lockedCells map[model.CellKey]bool) bool {
	if len(lockedCells) == 0 || d.Date == "" || d.Block == "" || len(d.StaffIDs) == 0 {
		return false
	}
	for _, staffID := range d.StaffIDs {
		cell := model.CellKey{StaffID: staffID, Date: d.Date, Block: d.Block}
		if !lockedCells[cell] {
			return false
		}
	}
	return true
}

// toViolation 转换单条违反详情
func toViolation(d *constraint.ViolationDetail, kind model.ViolationKind) model.Violation {
	desc := d.Message
	if desc == "" {
		desc = fmt.Sprintf("约束 '%s' 未满足", d.ConstraintName)
	}
	return model.Violation{
		Kind:        kind,
		CheckType:   d.CheckType,
		Description: desc,
		Date:        d.Date,
		Block:       d.Block,
		StaffIDs:    d.StaffIDs,
		Severity:    d.Severity,
		Suggestion:  d.Suggestion,
		RuleID:      d.RuleID,
		EventID:     d.EventID,
	}
}

// sortViolations 稳定排序：硬性在前，严重度降序，再按位置
func sortViolations(vs []model.Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].IsHard() != vs[j].IsHard() {
			return vs[i].IsHard()
		}
		if vs[i].Severity != vs[j].Severity {
			return vs[i].Severity > vs[j].Severity
		}
		if vs[i].Date != vs[j].Date {
			return vs[i].Date < vs[j].Date
		}
		if vs[i].Block != vs[j].Block {
			return vs[i].Block.Index() < vs[j].Block.Index()
		}
		return vs[i].Description < vs[j].Description
	})
}
