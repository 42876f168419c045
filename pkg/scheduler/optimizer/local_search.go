// Package optimizer 提供排班局部搜索优化（模拟退火 + 禁忌表）
package optimizer

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/clinicshift/clinicshift/pkg/logger"
	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/scheduler/cmodel"
)

// OptimizationConfig 优化配置
type OptimizationConfig struct {
	MaxIterations    int           `json:"max_iterations"`    // 最大迭代次数
	MaxTime          time.Duration `json:"max_time"`          // 最大运行时间
	InitialTemp      float64       `json:"initial_temp"`      // 模拟退火初始温度
	CoolingRate      float64       `json:"cooling_rate"`      // 冷却速率
	TabuSize         int           `json:"tabu_size"`         // 禁忌表大小
	NeighborhoodSize int           `json:"neighborhood_size"` // 邻域大小
	ParallelWorkers  int           `json:"parallel_workers"`  // 并行工作数
	StopOnPlateau    bool          `json:"stop_on_plateau"`   // 平台期停止
	PlateauThreshold int           `json:"plateau_threshold"` // 平台期阈值（无改进迭代次数）
	Seed             int64         `json:"seed"`              // 随机种子（同种子同输入可复现）
}

// DefaultOptConfig 默认优化配置
func DefaultOptConfig() *OptimizationConfig {
	return &OptimizationConfig{
		MaxIterations:    1000,
		MaxTime:          30 * time.Second,
		InitialTemp:      100.0,
		CoolingRate:      0.99,
		TabuSize:         50,
		NeighborhoodSize: 20,
		ParallelWorkers:  4,
		StopOnPlateau:    true,
		PlateauThreshold: 100,
		Seed:             1,
	}
}

// Evaluation 一次目标函数评估的结果
type Evaluation struct {
	Objective      float64 // 加权惩罚总和（硬性 + 软性）
	HardViolations int
}

// Evaluator 目标函数评估器接口（由求解器基于约束管理器实现）
type Evaluator interface {
	Evaluate(assignments []*model.Assignment) Evaluation
}

// Solution 搜索过程中的一个排班方案
type Solution struct {
	Assignments    []*model.Assignment
	Objective      float64
	HardViolations int
}

// Feasible 检查方案是否满足全部硬约束
func (s *Solution) Feasible() bool {
	return s.HardViolations == 0
}

// Clone 深拷贝方案
func (s *Solution) Clone() *Solution {
	return &Solution{
		Assignments:    model.CloneAssignments(s.Assignments),
		Objective:      s.Objective,
		HardViolations: s.HardViolations,
	}
}

// SearchStats 一次局部搜索的统计
type SearchStats struct {
	Iterations     int
	NeighborsTried int
	PlateauStop    bool
	TimeExhausted  bool
}

// LocalSearchOptimizer 局部搜索优化器
type LocalSearchOptimizer struct {
	config    *OptimizationConfig
	evaluator Evaluator
	neighbors *NeighborhoodGenerator
	tabuList  *TabuList
	rng       *rand.Rand
}

// NewLocalSearchOptimizer 创建局部搜索优化器
// 随机源由配置种子决定，移动合法性由约束模型保证
func NewLocalSearchOptimizer(config *OptimizationConfig, evaluator Evaluator, m *cmodel.Model) *LocalSearchOptimizer {
	if config == nil {
		config = DefaultOptConfig()
	}
	return &LocalSearchOptimizer{
		config:    config,
		evaluator: evaluator,
		neighbors: NewNeighborhoodGenerator(m, rand.New(rand.NewSource(config.Seed+1))),
		tabuList:  NewTabuList(config.TabuSize),
		rng:       rand.New(rand.NewSource(config.Seed)),
	}
}

// Optimize 从初始方案出发做局部搜索，返回找到的最优方案
// 取消时返回当前最优方案和 ctx.Err()
func (o *LocalSearchOptimizer) Optimize(ctx context.Context, initial *Solution) (*Solution, *SearchStats, error) {
	start := time.Now()
	stats := &SearchStats{}

	current := initial.Clone()
	best := current.Clone()

	temperature := o.config.InitialTemp
	noImprovement := 0

	logger.Debug().
		Int("max_iterations", o.config.MaxIterations).
		Dur("max_time", o.config.MaxTime).
		Float64("initial_objective", current.Objective).
		Msg("开始局部搜索")

	for i := 0; i < o.config.MaxIterations; i++ {
		stats.Iterations = i + 1

		select {
		case <-ctx.Done():
			return best, stats, ctx.Err()
		default:
		}

		if time.Since(start) > o.config.MaxTime {
			stats.TimeExhausted = true
			break
		}

		neighbors := o.generateNeighbors(current)
		stats.NeighborsTried += len(neighbors)
		if len(neighbors) == 0 {
			continue
		}

		bestNeighbor := o.evaluateBestNeighbor(neighbors)
		if bestNeighbor == nil {
			continue
		}

		moveKey := hashAssignments(bestNeighbor.Assignments)
		inTabu := o.tabuList.Contains(moveKey)

		// 模拟退火接受准则：更优解直接接受，较差解按温度概率接受
		accept := false
		if bestNeighbor.Objective < current.Objective {
			accept = true
		} else if !inTabu {
			delta := bestNeighbor.Objective - current.Objective
			if o.rng.Float64() < boltzmannProbability(delta, temperature) {
				accept = true
			}
		}

		if accept {
			current = bestNeighbor
			o.tabuList.Add(moveKey)

			if current.Objective < best.Objective {
				best = current.Clone()
				noImprovement = 0
			} else {
				noImprovement++
			}
		} else {
			noImprovement++
		}

		// 目标值归零即已最优，无需继续搜索
		if best.Objective == 0 {
			break
		}

		if o.config.StopOnPlateau && noImprovement >= o.config.PlateauThreshold {
			stats.PlateauStop = true
			break
		}

		temperature *= o.config.CoolingRate
	}

	logger.Debug().
		Float64("initial_objective", initial.Objective).
		Float64("final_objective", best.Objective).
		Int("iterations", stats.Iterations).
		Dur("elapsed", time.Since(start)).
		Msg("局部搜索完成")

	return best, stats, nil
}

// generateNeighbors 生成邻域解
func (o *LocalSearchOptimizer) generateNeighbors(current *Solution) []*Solution {
	neighbors := make([]*Solution, 0, o.config.NeighborhoodSize)
	for i := 0; i < o.config.NeighborhoodSize; i++ {
		if neighbor := o.neighbors.GenerateNeighbor(current); neighbor != nil {
			neighbors = append(neighbors, neighbor)
		}
	}
	return neighbors
}

// evaluateBestNeighbor 评估并返回最优邻域解
func (o *LocalSearchOptimizer) evaluateBestNeighbor(neighbors []*Solution) *Solution {
	var best *Solution
	for _, neighbor := range neighbors {
		ev := o.evaluator.Evaluate(neighbor.Assignments)
		neighbor.Objective = ev.Objective
		neighbor.HardViolations = ev.HardViolations

		if best == nil || neighbor.Objective < best.Objective {
			best = neighbor
		}
	}
	return best
}

// hashAssignments 计算分配集合的哈希（FNV-1a）
func hashAssignments(assignments []*model.Assignment) uint64 {
	if len(assignments) == 0 {
		return 0
	}
	h := fnv.New64a()
	for _, a := range assignments {
		h.Write(a.StaffID[:])
		h.Write([]byte(a.Date))
		h.Write([]byte(a.Block))
		h.Write([]byte(a.TaskTypeCode))
		if a.EventID != nil {
			h.Write(a.EventID[:])
		}
	}
	return h.Sum64()
}

// boltzmannProbability 计算模拟退火的接受概率
// delta: 目标值差 (new - old)，temperature: 当前温度
func boltzmannProbability(delta, temperature float64) float64 {
	if delta <= 0 {
		return 1.0
	}
	if temperature <= 0 {
		return 0.0
	}
	return math.Exp(-delta / temperature)
}

// TabuList 禁忌表（使用 uint64 哈希作为键提高性能）
type TabuList struct {
	items   map[uint64]struct{}
	order   []uint64
	maxSize int
	mu      sync.RWMutex
}

// NewTabuList 创建禁忌表
func NewTabuList(size int) *TabuList {
	return &TabuList{
		items:   make(map[uint64]struct{}),
		order:   make([]uint64, 0, size),
		maxSize: size,
	}
}

// Add 添加到禁忌表
func (t *TabuList) Add(key uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.items[key]; exists {
		return
	}

	// 超出容量时移除最旧的
	if len(t.order) >= t.maxSize {
		oldest := t.order[0]
		t.order = t.order[1:]
		delete(t.items, oldest)
	}

	t.items[key] = struct{}{}
	t.order = append(t.order, key)
}

// Contains 检查是否在禁忌表中
func (t *TabuList) Contains(key uint64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, exists := t.items[key]
	return exists
}

// Clear 清空禁忌表
func (t *TabuList) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.items = make(map[uint64]struct{})
	t.order = t.order[:0]
}
