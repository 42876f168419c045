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

// StaffRepository 职员仓储
type StaffRepository struct {
	db DB
}

// NewStaffRepository 创建职员仓储
func NewStaffRepository(db DB) *StaffRepository {
	return &StaffRepository{db: db}
}

// Create 创建职员
func (r *StaffRepository) Create(ctx context.Context, staff *model.Staff) error {
	if staff.ID == uuid.Nil {
		staff.ID = uuid.New()
	}
	now := time.Now()
	staff.CreatedAt = now
	staff.UpdatedAt = now

	qualsJSON, _ := json.Marshal(staff.Qualifications)
	attrsJSON, _ := json.Marshal(staff.Attributes)

	query := `
		INSERT INTO staffs (
			id, name, employment_type, job_category, can_drive, can_bicycle,
			qualifications, attributes, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		staff.ID, staff.Name, staff.EmploymentType, staff.JobCategory,
		staff.CanDrive, staff.CanBicycle, qualsJSON, attrsJSON,
		staff.IsActive, staff.CreatedAt, staff.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("创建职员失败: %w", err)
	}
	return nil
}

// GetByID 根据ID获取职员
func (r *StaffRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Staff, error) {
	query := `
		SELECT id, name, employment_type, job_category, can_drive, can_bicycle,
			qualifications, attributes, is_active, created_at, updated_at
		FROM staffs
		WHERE id = $1 AND deleted_at IS NULL
	`
	return r.scanStaff(r.db.QueryRowContext(ctx, query, id))
}

// Update 更新职员
func (r *StaffRepository) Update(ctx context.Context, staff *model.Staff) error {
	staff.UpdatedAt = time.Now()

	qualsJSON, _ := json.Marshal(staff.Qualifications)
	attrsJSON, _ := json.Marshal(staff.Attributes)

	query := `
		UPDATE staffs SET
			name = $2, employment_type = $3, job_category = $4,
			can_drive = $5, can_bicycle = $6, qualifications = $7,
			attributes = $8, is_active = $9, updated_at = $10
		WHERE id = $1 AND deleted_at IS NULL
	`

	result, err := r.db.ExecContext(ctx, query,
		staff.ID, staff.Name, staff.EmploymentType, staff.JobCategory,
		staff.CanDrive, staff.CanBicycle, qualsJSON, attrsJSON,
		staff.IsActive, staff.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("更新职员失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("职员不存在")
	}
	return nil
}

// Delete 软删除职员
func (r *StaffRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE staffs SET deleted_at = $2 WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.db.ExecContext(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("删除职员失败: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("职员不存在")
	}
	return nil
}

// List 查询职员列表
func (r *StaffRepository) List(ctx context.Context, filter ListFilter) ([]*model.Staff, int, error) {
	conditions := []string{"deleted_at IS NULL"}
	var args []interface{}
	argIndex := 1

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(name ILIKE $%d OR job_category ILIKE $%d)", argIndex, argIndex))
		args = append(args, "%"+filter.Search+"%")
		argIndex++
	}

	if cat, ok := filter.Extra["job_category"].(string); ok && cat != "" {
		conditions = append(conditions, fmt.Sprintf("job_category = $%d", argIndex))
		args = append(args, cat)
		argIndex++
	}

	whereClause := strings.Join(conditions, " AND ")

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM staffs WHERE %s", whereClause)
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("统计职员数量失败: %w", err)
	}

	orderBy := filter.OrderBy
	if orderBy == "" {
		orderBy = "created_at"
	}
	orderDir := filter.OrderDir
	if orderDir == "" {
		orderDir = "desc"
	}

	query := fmt.Sprintf(`
		SELECT id, name, employment_type, job_category, can_drive, can_bicycle,
			qualifications, attributes, is_active, created_at, updated_at
		FROM staffs
		WHERE %s
		ORDER BY %s %s
		LIMIT $%d OFFSET $%d
	`, whereClause, orderBy, orderDir, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("查询职员列表失败: %w", err)
	}
	defer rows.Close()

	var staffs []*model.Staff
	for rows.Next() {
		s, err := r.scanStaffRow(rows)
		if err != nil {
			return nil, 0, err
		}
		staffs = append(staffs, s)
	}
	return staffs, total, nil
}

// ListActive 获取全部在职职员
func (r *StaffRepository) ListActive(ctx context.Context) ([]*model.Staff, error) {
	query := `
		SELECT id, name, employment_type, job_category, can_drive, can_bicycle,
			qualifications, attributes, is_active, created_at, updated_at
		FROM staffs
		WHERE is_active = TRUE AND deleted_at IS NULL
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询在职职员失败: %w", err)
	}
	defer rows.Close()

	var staffs []*model.Staff
	for rows.Next() {
		s, err := r.scanStaffRow(rows)
		if err != nil {
			return nil, err
		}
		staffs = append(staffs, s)
	}
	return staffs, nil
}

func (r *StaffRepository) scanStaff(row *sql.Row) (*model.Staff, error) {
	s := &model.Staff{}
	var qualsJSON, attrsJSON []byte

	err := row.Scan(
		&s.ID, &s.Name, &s.EmploymentType, &s.JobCategory, &s.CanDrive, &s.CanBicycle,
		&qualsJSON, &attrsJSON, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("扫描职员数据失败: %w", err)
	}

	json.Unmarshal(qualsJSON, &s.Qualifications)
	json.Unmarshal(attrsJSON, &s.Attributes)
	return s, nil
}

func (r *StaffRepository) scanStaffRow(rows *sql.Rows) (*model.Staff, error) {
	s := &model.Staff{}
	var qualsJSON, attrsJSON []byte

	err := rows.Scan(
		&s.ID, &s.Name, &s.EmploymentType, &s.JobCategory, &s.CanDrive, &s.CanBicycle,
		&qualsJSON, &attrsJSON, &s.IsActive, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("扫描职员数据失败: %w", err)
	}

	json.Unmarshal(qualsJSON, &s.Qualifications)
	json.Unmarshal(attrsJSON, &s.Attributes)
	return s, nil
}
