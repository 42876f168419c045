// Package model 定义门诊排班引擎的核心数据模型
package model

// 共享资源类型
const (
	ResourceCar     = "car"     // 车辆
	ResourceBicycle = "bicycle" // 自行车
	ResourceRoom    = "room"    // 房间
)

// Resource 共享资源（容量受限的物理对象）
type Resource struct {
	BaseModel
	Type     string `json:"type" db:"type"`
	Name     string `json:"name" db:"name"`
	Capacity int    `json:"capacity" db:"capacity"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

// TotalCapacity 计算一组资源的总容量
func TotalCapacity(resources []*Resource) int {
	total := 0
	for _, r := range resources {
		if r.IsActive {
			total += r.Capacity
		}
	}
	return total
}

// GroupResourcesByType 按类型分组资源
func GroupResourcesByType(resources []*Resource) map[string][]*Resource {
	result := make(map[string][]*Resource)
	for _, r := range resources {
		if r.IsActive {
			result[r.Type] = append(result[r.Type], r)
		}
	}
	return result
}
