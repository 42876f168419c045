// Package model 定义门诊排班引擎的核心数据模型
package model

import (
	"time"

	"github.com/google/uuid"
)

// RuleCategory 规则类别
type RuleCategory string

const (
	RuleHard RuleCategory = "hard" // 硬规则（必须满足）
	RuleSoft RuleCategory = "soft" // 软规则（尽量满足）
)

// HardSeverity 硬性违反的固定严重度基准值
const HardSeverity = 1000

// BaseModel 基础模型（包含通用字段）
type BaseModel struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"-" db:"deleted_at"`
}

// NewBaseModel 创建新的基础模型
func NewBaseModel() BaseModel {
	now := time.Now()
	return BaseModel{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// JSONMap 用于存储 JSONB 数据
type JSONMap map[string]interface{}

// DateRange 日期范围
type DateRange struct {
	StartDate string `json:"start_date"` // YYYY-MM-DD
	EndDate   string `json:"end_date"`   // YYYY-MM-DD
}

// ParseDate 解析 YYYY-MM-DD 日期字符串
func ParseDate(date string) (time.Time, error) {
	return time.Parse("2006-01-02", date)
}

// WeekdayOf 返回日期字符串对应的星期（解析失败返回 -1）
func WeekdayOf(date string) int {
	t, err := ParseDate(date)
	if err != nil {
		return -1
	}
	// 转换为 ISO 习惯：0=周一 .. 6=周日
	wd := int(t.Weekday())
	return (wd + 6) % 7
}

// IsWeekend 检查日期是否为周末
func IsWeekend(date string) bool {
	wd := WeekdayOf(date)
	return wd == 5 || wd == 6
}

// MonthDates 返回某年某月的全部日期（YYYY-MM-DD）
func MonthDates(year, month int) []string {
	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	var dates []string
	for d := first; d.Month() == time.Month(month); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format("2006-01-02"))
	}
	return dates
}

// ParseYearMonth 解析 YYYY-MM 字符串
func ParseYearMonth(yearMonth string) (int, int, error) {
	t, err := time.Parse("2006-01", yearMonth)
	if err != nil {
		return 0, 0, err
	}
	return t.Year(), int(t.Month()), nil
}
