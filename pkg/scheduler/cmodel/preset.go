// Package cmodel 构建约束模型：变量域、事件候选与预设权重
package cmodel

import "fmt"

// Preset 求解预设：一组命名的权重配置与独立搜索种子
type Preset struct {
	ID              string  `json:"id"`
	Label           string  `json:"label"`
	WorkloadWeight  int     `json:"workload_weight"`  // 工作量均衡惩罚
	ShortfallWeight int     `json:"shortfall_weight"` // 人数缺口惩罚（软性侧）
	EventScale      float64 `json:"event_scale"`      // 事件未排惩罚倍率
	Seed            int64   `json:"seed"`
}

// 预设标识
const (
	PresetBalanced  = "balanced"
	PresetHardFirst = "hard_first"
	PresetSoftMax   = "soft_max"
)

// Presets 返回全部预设（顺序固定）
func Presets() []Preset {
	return []Preset{
		{
			ID:              PresetBalanced,
			Label:           "均衡",
			WorkloadWeight:  400,
			ShortfallWeight: 300,
			EventScale:      1.0,
			Seed:            42,
		},
		{
			ID:              PresetHardFirst,
			Label:           "硬约束优先",
			WorkloadWeight:  100,
			ShortfallWeight: 800,
			EventScale:      1.5,
			Seed:            137,
		},
		{
			ID:              PresetSoftMax,
			Label:           "软约束最大化",
			WorkloadWeight:  150,
			ShortfallWeight: 500,
			EventScale:      2.0,
			Seed:            271,
		},
	}
}

// PresetByID 按标识查找预设
func PresetByID(id string) (Preset, error) {
	for _, p := range Presets() {
		if p.ID == id {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("未知预设 '%s'", id)
}

// DefaultPreset 返回默认预设
func DefaultPreset() Preset {
	return Presets()[0]
}
