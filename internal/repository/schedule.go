// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
)

// Schedule 排班表记录
type Schedule struct {
	ID             uuid.UUID      `json:"id"`
	YearMonth      string         `json:"year_month"` // YYYY-MM
	Status         string         `json:"status"`     // draft/published/archived
	Preset         string         `json:"preset,omitempty"`
	SolveStatus    string         `json:"solve_status,omitempty"`
	Objective      int            `json:"objective"`
	HardViolations int            `json:"hard_violations"`
	SolvedAt       *time.Time     `json:"solved_at,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ScheduleRepositoryInterface 排班表仓储接口
type ScheduleRepositoryInterface interface {
	Create(ctx context.Context, schedule *Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	Update(ctx context.Context, schedule *Schedule) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]*Schedule, int, error)

	GetAssignments(ctx context.Context, scheduleID uuid.UUID) ([]*model.Assignment, error)
	ReplaceAssignments(ctx context.Context, scheduleID uuid.UUID, assignments []*model.Assignment) error
	SetCellLock(ctx context.Context, scheduleID, staffID uuid.UUID, date string, block model.TimeBlock, locked bool) error

	RecordSolveResult(ctx context.Context, solution *model.Solution) error
}

// ScheduleRepository 排班表仓储实现
type ScheduleRepository struct {
	db DB
}

// NewScheduleRepository 创建排班表仓储
func NewScheduleRepository(db DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// Create 创建排班表
func (r *ScheduleRepository) Create(ctx context.Context, schedule *Schedule) error {
	if schedule.ID == uuid.Nil {
		schedule.ID = uuid.New()
	}
	now := time.Now()
	schedule.CreatedAt = now
	schedule.UpdatedAt = now
	if schedule.Status == "" {
		schedule.Status = "draft"
	}

	metadataJSON, _ := json.Marshal(schedule.Metadata)

	query := `
		INSERT INTO schedules (
			id, year_month, status, preset, solve_status,
			objective, hard_violations, solved_at, metadata, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		schedule.ID, schedule.YearMonth, schedule.Status, schedule.Preset, schedule.SolveStatus,
		schedule.Objective, schedule.HardViolations, schedule.SolvedAt, metadataJSON,
		schedule.CreatedAt, schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建排班表失败: %w", err)
	}
	return nil
}

// GetByID 根据ID获取排班表
func (r *ScheduleRepository) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	query := `
		SELECT id, year_month, status, preset, solve_status,
			objective, hard_violations, solved_at, metadata, created_at, updated_at
		FROM schedules
		WHERE id = $1
	`
	return r.scanSchedule(r.db.QueryRowContext(ctx, query, id))
}

// Update 更新排班表
func (r *ScheduleRepository) Update(ctx context.Context, schedule *Schedule) error {
	schedule.UpdatedAt = time.Now()
	metadataJSON, _ := json.Marshal(schedule.Metadata)

	query := `
		UPDATE schedules SET
			status = $2, preset = $3, solve_status = $4, objective = $5,
			hard_violations = $6, solved_at = $7, metadata = $8, updated_at = $9
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		schedule.ID, schedule.Status, schedule.Preset, schedule.SolveStatus,
		schedule.Objective, schedule.HardViolations, schedule.SolvedAt,
		metadataJSON, schedule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新排班表失败: %w", err)
	}
	return nil
}

// Delete 删除排班表及其分配
func (r *ScheduleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM assignments WHERE schedule_id = $1", id); err != nil {
		return fmt.Errorf("删除排班分配失败: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = $1", id); err != nil {
		return fmt.Errorf("删除排班表失败: %w", err)
	}
	return nil
}

// List 列出排班表
func (r *ScheduleRepository) List(ctx context.Context, filter ListFilter) ([]*Schedule, int, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.YearMonth != "" {
		conditions = append(conditions, fmt.Sprintf("year_month = $%d", argNum))
		args = append(args, filter.YearMonth)
		argNum++
	}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, filter.Status)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM schedules %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("统计排班表数量失败: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT id, year_month, status, preset, solve_status,
			objective, hard_violations, solved_at, metadata, created_at, updated_at
		FROM schedules %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, whereClause, filter.OrderBy, filter.OrderDir, argNum, argNum+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询排班表列表失败: %w", err)
	}
	defer rows.Close()

	var schedules []*Schedule
	for rows.Next() {
		s, err := r.scanScheduleFromRows(rows)
		if err != nil {
			return nil, 0, err
		}
		schedules = append(schedules, s)
	}
	return schedules, total, nil
}

// GetAssignments 获取排班表的全部分配
func (r *ScheduleRepository) GetAssignments(ctx context.Context, scheduleID uuid.UUID) ([]*model.Assignment, error) {
	query := `
		SELECT id, schedule_id, staff_id, date, time_block, task_type_code,
			event_id, display_text, is_locked, source, created_at, updated_at
		FROM assignments
		WHERE schedule_id = $1
		ORDER BY date, time_block, staff_id
	`

	rows, err := r.db.QueryContext(ctx, query, scheduleID)
	if err != nil {
		return nil, fmt.Errorf("查询排班分配失败: %w", err)
	}
	defer rows.Close()

	var assignments []*model.Assignment
	for rows.Next() {
		a := &model.Assignment{}
		var eventID sql.NullString
		if err := rows.Scan(
			&a.ID, &a.ScheduleID, &a.StaffID, &a.Date, &a.Block, &a.TaskTypeCode,
			&eventID, &a.DisplayText, &a.Locked, &a.Source, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("扫描排班分配失败: %w", err)
		}
		if eventID.Valid {
			if id, err := uuid.Parse(eventID.String); err == nil {
				a.EventID = &id
			}
		}
		assignments = append(assignments, a)
	}
	return assignments, nil
}

// ReplaceAssignments 以方案分配整体替换排班表分配
// 锁定格位由引擎在方案中保留，整表删除后重写保证格位唯一
func (r *ScheduleRepository) ReplaceAssignments(ctx context.Context, scheduleID uuid.UUID, assignments []*model.Assignment) error {
	if _, err := r.db.ExecContext(ctx, "DELETE FROM assignments WHERE schedule_id = $1", scheduleID); err != nil {
		return fmt.Errorf("清空排班分配失败: %w", err)
	}

	query := `
		INSERT INTO assignments (
			id, schedule_id, staff_id, date, time_block, task_type_code,
			event_id, display_text, is_locked, source, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	now := time.Now()
	for _, a := range assignments {
		id := a.ID
		if id == uuid.Nil {
			id = uuid.New()
		}
		var eventID interface{}
		if a.EventID != nil {
			eventID = *a.EventID
		}
		if _, err := r.db.ExecContext(ctx, query,
			id, scheduleID, a.StaffID, a.Date, a.Block, a.TaskTypeCode,
			eventID, a.DisplayText, a.Locked, a.Source, now, now,
		); err != nil {
			return fmt.Errorf("写入排班分配失败: %w", err)
		}
	}
	return nil
}

// SetCellLock 设置单个格位的锁定状态
func (r *ScheduleRepository) SetCellLock(ctx context.Context, scheduleID, staffID uuid.UUID, date string, block model.TimeBlock, locked bool) error {
	query := `
		UPDATE assignments SET is_locked = $5, updated_at = $6
		WHERE schedule_id = $1 AND staff_id = $2 AND date = $3 AND time_block = $4
	`

	result, err := r.db.ExecContext(ctx, query, scheduleID, staffID, date, block, locked, time.Now())
	if err != nil {
		return fmt.Errorf("更新格位锁定失败: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("格位不存在")
	}
	return nil
}

// RecordSolveResult 记录求解结果摘要
func (r *ScheduleRepository) RecordSolveResult(ctx context.Context, solution *model.Solution) error {
	now := time.Now()
	query := `
		UPDATE schedules SET
			preset = $2, solve_status = $3, objective = $4,
			hard_violations = $5, solved_at = $6, updated_at = $6
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query,
		solution.ScheduleID, solution.Preset, string(solution.Status),
		solution.Objective, solution.HardViolationCount(), now,
	)
	if err != nil {
		return fmt.Errorf("记录求解结果失败: %w", err)
	}
	return nil
}

func (r *ScheduleRepository) scanSchedule(row *sql.Row) (*Schedule, error) {
	s := &Schedule{}
	var metadataJSON []byte

	err := row.Scan(
		&s.ID, &s.YearMonth, &s.Status, &s.Preset, &s.SolveStatus,
		&s.Objective, &s.HardViolations, &s.SolvedAt, &metadataJSON,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("扫描排班表失败: %w", err)
	}

	if len(metadataJSON) > 0 {
		json.Unmarshal(metadataJSON, &s.Metadata)
	}
	return s, nil
}

func (r *ScheduleRepository) scanScheduleFromRows(rows *sql.Rows) (*Schedule, error) {
	s := &Schedule{}
	var metadataJSON []byte

	err := rows.Scan(
		&s.ID, &s.YearMonth, &s.Status, &s.Preset, &s.SolveStatus,
		&s.Objective, &s.HardViolations, &s.SolvedAt, &metadataJSON,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("扫描排班表失败: %w", err)
	}

	if len(metadataJSON) > 0 {
		json.Unmarshal(metadataJSON, &s.Metadata)
	}
	return s, nil
}
