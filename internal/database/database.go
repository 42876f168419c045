// Package database 提供数据库连接和管理
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/clinicshift/clinicshift/internal/config"
	"github.com/clinicshift/clinicshift/pkg/logger"

	_ "github.com/lib/pq" // PostgreSQL 驱动
)

// DB 数据库连接封装
type DB struct {
	*sql.DB
	cfg *config.DatabaseConfig
}

// New 创建新的数据库连接
func New(cfg *config.DatabaseConfig) (*DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}

	// 配置连接池
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接测试失败: %w", err)
	}

	logger.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Msg("数据库连接成功")

	return &DB{DB: db, cfg: cfg}, nil
}

// Close 关闭数据库连接
func (db *DB) Close() error {
	if db.DB != nil {
		logger.Info().Msg("关闭数据库连接")
		return db.DB.Close()
	}
	return nil
}

// Health 健康检查
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Transaction 执行事务
func (db *DB) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("事务回滚失败: %v (原始错误: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("事务提交失败: %w", err)
	}

	return nil
}

// Stats 返回数据库统计信息
func (db *DB) Stats() sql.DBStats {
	return db.DB.Stats()
}

// Exec 执行SQL语句
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	start := time.Now()
	result, err := db.DB.ExecContext(ctx, query, args...)
	duration := time.Since(start)

	if duration > 100*time.Millisecond {
		logger.Warn().
			Str("query", truncateQuery(query)).
			Dur("duration", duration).
			Msg("慢SQL查询")
	}

	return result, err
}

// QueryContext 执行查询
func (db *DB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	start := time.Now()
	rows, err := db.DB.QueryContext(ctx, query, args...)
	duration := time.Since(start)

	if duration > 100*time.Millisecond {
		logger.Warn().
			Str("query", truncateQuery(query)).
			Dur("duration", duration).
			Msg("慢SQL查询")
	}

	return rows, err
}

// QueryRowContext 执行单行查询
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return db.DB.QueryRowContext(ctx, query, args...)
}

// truncateQuery 截断长查询
func truncateQuery(query string) string {
	if len(query) > 200 {
		return query[:200] + "..."
	}
	return query
}

// migrations 排班库表结构，按依赖顺序执行
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS staffs (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		employment_type TEXT NOT NULL DEFAULT 'full_time',
		job_category TEXT NOT NULL DEFAULT '',
		can_drive BOOLEAN NOT NULL DEFAULT FALSE,
		can_bicycle BOOLEAN NOT NULL DEFAULT FALSE,
		qualifications JSONB NOT NULL DEFAULT '[]',
		attributes JSONB NOT NULL DEFAULT '{}',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS task_types (
		code TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		default_blocks JSONB NOT NULL DEFAULT '[]',
		required_qualifications JSONB NOT NULL DEFAULT '[]',
		preferred_qualifications JSONB NOT NULL DEFAULT '[]',
		required_resources JSONB NOT NULL DEFAULT '[]',
		min_staff INT NOT NULL DEFAULT 0,
		max_staff INT NOT NULL DEFAULT 0,
		location_type TEXT NOT NULL DEFAULT 'in_clinic',
		attributes JSONB NOT NULL DEFAULT '{}',
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS resources (
		id UUID PRIMARY KEY,
		type TEXT NOT NULL,
		name TEXT NOT NULL,
		capacity INT NOT NULL DEFAULT 1,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS rules (
		id UUID PRIMARY KEY,
		natural_text TEXT NOT NULL,
		template_type TEXT NOT NULL,
		scope JSONB NOT NULL DEFAULT '{}',
		hard_or_soft TEXT NOT NULL DEFAULT 'hard',
		weight INT NOT NULL DEFAULT 0,
		body JSONB NOT NULL DEFAULT '{}',
		exceptions JSONB NOT NULL DEFAULT '[]',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS schedules (
		id UUID PRIMARY KEY,
		year_month TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		preset TEXT NOT NULL DEFAULT '',
		solve_status TEXT NOT NULL DEFAULT '',
		objective INT NOT NULL DEFAULT 0,
		hard_violations INT NOT NULL DEFAULT 0,
		solved_at TIMESTAMPTZ,
		metadata JSONB NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		schedule_id UUID NOT NULL REFERENCES schedules(id),
		type_code TEXT NOT NULL,
		subject_name TEXT NOT NULL DEFAULT '',
		location_type TEXT NOT NULL DEFAULT 'in_clinic',
		duration_hours INT NOT NULL,
		time_constraint JSONB NOT NULL,
		required_qualifications JSONB NOT NULL DEFAULT '[]',
		preferred_qualifications JSONB NOT NULL DEFAULT '[]',
		required_resources JSONB NOT NULL DEFAULT '[]',
		priority TEXT NOT NULL DEFAULT 'medium',
		status TEXT NOT NULL DEFAULT 'unassigned',
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		deleted_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		id UUID PRIMARY KEY,
		schedule_id UUID NOT NULL REFERENCES schedules(id),
		staff_id UUID NOT NULL REFERENCES staffs(id),
		date TEXT NOT NULL,
		time_block TEXT NOT NULL,
		task_type_code TEXT NOT NULL,
		event_id UUID,
		display_text TEXT NOT NULL DEFAULT '',
		is_locked BOOLEAN NOT NULL DEFAULT FALSE,
		source TEXT NOT NULL DEFAULT 'solver',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (schedule_id, staff_id, date, time_block)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_assignments_schedule ON assignments (schedule_id)`,
	`CREATE INDEX IF NOT EXISTS idx_schedules_year_month ON schedules (year_month)`,
	`CREATE INDEX IF NOT EXISTS idx_events_schedule ON events (schedule_id)`,
}

// Migrate 创建排班库表结构（幂等）
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("执行建表语句失败: %w", err)
		}
	}
	logger.Info().Int("statements", len(migrations)).Msg("数据库表结构就绪")
	return nil
}
