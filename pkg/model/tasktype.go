// Package model 定义门诊排班引擎的核心数据模型
package model

// LocationType 任务地点类型
type LocationType string

const (
	LocationInClinic LocationType = "in_clinic" // 院内
	LocationVisit    LocationType = "visit"     // 外访
	LocationOuting   LocationType = "outing"    // 外出活动
)

// TaskType 任务类型（工作类别的主数据）
type TaskType struct {
	Code              string       `json:"code" db:"code"`
	DisplayName       string       `json:"display_name" db:"display_name"`
	DefaultBlocks     []TimeBlock  `json:"default_blocks" db:"default_blocks"`
	RequiredQuals     []string     `json:"required_qualifications" db:"required_qualifications"`
	PreferredQuals    []string     `json:"preferred_qualifications" db:"preferred_qualifications"`
	RequiredResources []string     `json:"required_resources" db:"required_resources"`
	MinStaff          int          `json:"min_staff" db:"min_staff"`
	MaxStaff          int          `json:"max_staff,omitempty" db:"max_staff"` // 0 表示不限
	LocationType      LocationType `json:"location_type" db:"location_type"`
	Attributes        JSONMap      `json:"attributes,omitempty" db:"attributes"`
	IsActive          bool         `json:"is_active" db:"is_active"`
}

// TaskCodeOff 休息任务的约定编码（锁定为休息的格位保持空闲）
const TaskCodeOff = "off"

// NeedsResource 检查任务类型是否需要某类资源
func (t *TaskType) NeedsResource(resourceType string) bool {
	for _, r := range t.RequiredResources {
		if r == resourceType {
			return true
		}
	}
	return false
}

// IsVisit 检查是否为外访任务
func (t *TaskType) IsVisit() bool {
	return t.LocationType == LocationVisit
}
