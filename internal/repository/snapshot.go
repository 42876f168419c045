// Package repository 提供数据访问层
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
)

// SnapshotRepository 快照仓储：装配求解引擎的只读月度输入
type SnapshotRepository struct {
	db       DB
	staffs   *StaffRepository
	schedule *ScheduleRepository
}

// NewSnapshotRepository 创建快照仓储
func NewSnapshotRepository(db DB) *SnapshotRepository {
	return &SnapshotRepository{
		db:       db,
		staffs:   NewStaffRepository(db),
		schedule: NewScheduleRepository(db),
	}
}

// Load 按排班表ID装配完整快照
func (r *SnapshotRepository) Load(ctx context.Context, scheduleID uuid.UUID) (*model.Snapshot, error) {
	schedule, err := r.schedule.GetByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if schedule == nil {
		return nil, fmt.Errorf("排班表不存在: %s", scheduleID)
	}

	snapshot := &model.Snapshot{
		ScheduleID: scheduleID,
		YearMonth:  schedule.YearMonth,
	}

	if snapshot.Staffs, err = r.staffs.ListActive(ctx); err != nil {
		return nil, err
	}
	if snapshot.TaskTypes, err = r.loadTaskTypes(ctx); err != nil {
		return nil, err
	}
	if snapshot.Events, err = r.loadEvents(ctx, scheduleID); err != nil {
		return nil, err
	}
	if snapshot.Rules, err = r.loadRules(ctx); err != nil {
		return nil, err
	}
	if snapshot.Resources, err = r.loadResources(ctx); err != nil {
		return nil, err
	}
	if snapshot.Assignments, err = r.schedule.GetAssignments(ctx, scheduleID); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// loadTaskTypes 读取启用的任务类型
func (r *SnapshotRepository) loadTaskTypes(ctx context.Context) (map[string]*model.TaskType, error) {
	query := `
		SELECT code, display_name, default_blocks, required_qualifications,
			preferred_qualifications, required_resources, min_staff, max_staff,
			location_type, attributes, is_active
		FROM task_types
		WHERE is_active = TRUE
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询任务类型失败: %w", err)
	}
	defer rows.Close()

	taskTypes := make(map[string]*model.TaskType)
	for rows.Next() {
		tt := &model.TaskType{}
		var blocksJSON, reqQualsJSON, prefQualsJSON, resourcesJSON, attrsJSON []byte
		if err := rows.Scan(
			&tt.Code, &tt.DisplayName, &blocksJSON, &reqQualsJSON,
			&prefQualsJSON, &resourcesJSON, &tt.MinStaff, &tt.MaxStaff,
			&tt.LocationType, &attrsJSON, &tt.IsActive,
		); err != nil {
			return nil, fmt.Errorf("扫描任务类型失败: %w", err)
		}
		json.Unmarshal(blocksJSON, &tt.DefaultBlocks)
		json.Unmarshal(reqQualsJSON, &tt.RequiredQuals)
		json.Unmarshal(prefQualsJSON, &tt.PreferredQuals)
		json.Unmarshal(resourcesJSON, &tt.RequiredResources)
		json.Unmarshal(attrsJSON, &tt.Attributes)
		taskTypes[tt.Code] = tt
	}
	return taskTypes, nil
}

// loadEvents 读取排班表的待排事件
func (r *SnapshotRepository) loadEvents(ctx context.Context, scheduleID uuid.UUID) ([]*model.Event, error) {
	query := `
		SELECT id, schedule_id, type_code, subject_name, location_type, duration_hours,
			time_constraint, required_qualifications, preferred_qualifications,
			required_resources, priority, status, notes, created_at, updated_at
		FROM events
		WHERE schedule_id = $1 AND deleted_at IS NULL
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("查询待排事件失败: %w", err)
	}
	defer rows.Close()

	var events []*model.Event
	for rows.Next() {
		ev := &model.Event{}
		var tcJSON, reqQualsJSON, prefQualsJSON, resourcesJSON []byte
		if err := rows.Scan(
			&ev.ID, &ev.ScheduleID, &ev.TypeCode, &ev.SubjectName, &ev.LocationType,
			&ev.DurationHours, &tcJSON, &reqQualsJSON, &prefQualsJSON,
			&resourcesJSON, &ev.Priority, &ev.Status, &ev.Notes,
			&ev.CreatedAt, &ev.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("扫描待排事件失败: %w", err)
		}
		if err := json.Unmarshal(tcJSON, &ev.TimeConstraint); err != nil {
			return nil, fmt.Errorf("解析事件时间约束失败: %w", err)
		}
		json.Unmarshal(reqQualsJSON, &ev.RequiredQuals)
		json.Unmarshal(prefQualsJSON, &ev.PreferredQuals)
		json.Unmarshal(resourcesJSON, &ev.RequiredResources)
		events = append(events, ev)
	}
	return events, nil
}

// loadRules 读取启用的排班规则
func (r *SnapshotRepository) loadRules(ctx context.Context) ([]*model.Rule, error) {
	query := `
		SELECT id, natural_text, template_type, scope, hard_or_soft,
			weight, body, exceptions, is_active, created_at, updated_at
		FROM rules
		WHERE is_active = TRUE AND deleted_at IS NULL
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询排班规则失败: %w", err)
	}
	defer rows.Close()

	var rules []*model.Rule
	for rows.Next() {
		rule := &model.Rule{}
		var scopeJSON, bodyJSON, exceptionsJSON []byte
		if err := rows.Scan(
			&rule.ID, &rule.NaturalText, &rule.Template, &scopeJSON, &rule.Category,
			&rule.Weight, &bodyJSON, &exceptionsJSON, &rule.IsActive,
			&rule.CreatedAt, &rule.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("扫描排班规则失败: %w", err)
		}
		json.Unmarshal(scopeJSON, &rule.Scope)
		if err := json.Unmarshal(bodyJSON, &rule.Body); err != nil {
			return nil, fmt.Errorf("解析规则内容失败: %w", err)
		}
		json.Unmarshal(exceptionsJSON, &rule.Exceptions)
		rules = append(rules, rule)
	}
	return rules, nil
}

// loadResources 读取启用的共享资源
func (r *SnapshotRepository) loadResources(ctx context.Context) ([]*model.Resource, error) {
	query := `
		SELECT id, type, name, capacity, is_active, created_at, updated_at
		FROM resources
		WHERE is_active = TRUE AND deleted_at IS NULL
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询共享资源失败: %w", err)
	}
	defer rows.Close()

	var resources []*model.Resource
	for rows.Next() {
		res := &model.Resource{}
		if err := rows.Scan(
			&res.ID, &res.Type, &res.Name, &res.Capacity, &res.IsActive,
			&res.CreatedAt, &res.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("扫描共享资源失败: %w", err)
		}
		resources = append(resources, res)
	}
	return resources, nil
}
