// Package model 定义门诊排班引擎的核心数据模型
package model

// TimeBlock 时间块（一天内固定顺序的时段枚举）
type TimeBlock string

const (
	BlockAM     TimeBlock = "am"     // 上午
	BlockLunch  TimeBlock = "lunch"  // 午休
	BlockPM     TimeBlock = "pm"     // 下午
	Block15     TimeBlock = "15"     // 15点
	Block16     TimeBlock = "16"     // 16点
	Block17     TimeBlock = "17"     // 17点
	Block18Plus TimeBlock = "18plus" // 18点以后
)

// BlockOrder 时间块的固定排序（网格列顺序的唯一依据）
var BlockOrder = []TimeBlock{
	BlockAM, BlockLunch, BlockPM, Block15, Block16, Block17, Block18Plus,
}

// WorkBlocks 工作时间块（不含午休）
var WorkBlocks = []TimeBlock{
	BlockAM, BlockPM, Block15, Block16, Block17, Block18Plus,
}

// LateBlocks 午后晚段时间块（兼职员工不可排）
var LateBlocks = []TimeBlock{Block15, Block16, Block17, Block18Plus}

// blockDurations 各时间块的近似时长（小时），跨块任务按此消耗
var blockDurations = map[TimeBlock]int{
	BlockAM:     3,
	BlockLunch:  1,
	BlockPM:     2,
	Block15:     1,
	Block16:     1,
	Block17:     1,
	Block18Plus: 2,
}

// startHourToBlock 开始小时到时间块的映射
var startHourToBlock = map[int]TimeBlock{
	9: BlockAM, 12: BlockLunch, 13: BlockPM,
	15: Block15, 16: Block16, 17: Block17, 18: Block18Plus,
}

// Index 返回时间块在排序中的位置（未知块返回 -1）
func (b TimeBlock) Index() int {
	for i, blk := range BlockOrder {
		if blk == b {
			return i
		}
	}
	return -1
}

// Valid 检查时间块是否合法
func (b TimeBlock) Valid() bool {
	return b.Index() >= 0
}

// DurationHours 返回时间块时长（小时）
func (b TimeBlock) DurationHours() int {
	if d, ok := blockDurations[b]; ok {
		return d
	}
	return 1
}

// IsWork 检查是否为工作时间块
func (b TimeBlock) IsWork() bool {
	return b.Valid() && b != BlockLunch
}

// IsLate 检查是否为午后晚段时间块
func (b TimeBlock) IsLate() bool {
	for _, lb := range LateBlocks {
		if b == lb {
			return true
		}
	}
	return false
}

// BlockFromStartHour 按开始小时查找时间块
func BlockFromStartHour(hour int) (TimeBlock, bool) {
	b, ok := startHourToBlock[hour]
	return b, ok
}

// SpanBlocks 从起始块开始按时长展开连续时间块
// 任务跨块时依次消耗后续块，直到覆盖 durationHours
func SpanBlocks(start TimeBlock, durationHours int) []TimeBlock {
	idx := start.Index()
	if idx < 0 {
		return nil
	}
	if durationHours <= 0 {
		durationHours = 1
	}
	var blocks []TimeBlock
	remaining := durationHours
	for remaining > 0 && idx < len(BlockOrder) {
		b := BlockOrder[idx]
		blocks = append(blocks, b)
		remaining -= b.DurationHours()
		idx++
	}
	return blocks
}

// Slot 排班格位：(日期, 时间块)
type Slot struct {
	Date  string    `json:"date"` // YYYY-MM-DD
	Block TimeBlock `json:"time_block"`
}

// Before 按 (日期, 时间块顺序) 比较两个格位
func (s Slot) Before(other Slot) bool {
	if s.Date != other.Date {
		return s.Date < other.Date
	}
	return s.Block.Index() < other.Block.Index()
}

// AdjacentTo 检查两个格位是否同日相邻
func (s Slot) AdjacentTo(other Slot) bool {
	if s.Date != other.Date {
		return false
	}
	diff := s.Block.Index() - other.Block.Index()
	return diff == 1 || diff == -1
}
