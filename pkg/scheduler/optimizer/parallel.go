package optimizer

import (
	"context"
	"math/rand"
	"sync"

	"github.com/clinicshift/clinicshift/pkg/logger"
	"github.com/clinicshift/clinicshift/pkg/scheduler/cmodel"
)

// ParallelEvaluator 并行评估器
type ParallelEvaluator struct {
	workers   int
	evaluator Evaluator
}

// NewParallelEvaluator 创建并行评估器
func NewParallelEvaluator(workers int, evaluator Evaluator) *ParallelEvaluator {
	if workers <= 0 {
		workers = 4
	}
	return &ParallelEvaluator{
		workers:   workers,
		evaluator: evaluator,
	}
}

// EvaluationResult 评估结果
type EvaluationResult struct {
	Index    int
	Solution *Solution
}

// EvaluateBatch 并行评估一批方案，目标值写回各方案
func (p *ParallelEvaluator) EvaluateBatch(ctx context.Context, solutions []*Solution) []EvaluationResult {
	if len(solutions) == 0 {
		return nil
	}

	resultChan := make(chan EvaluationResult, len(solutions))
	jobChan := make(chan struct {
		index    int
		solution *Solution
	}, len(solutions))

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobChan {
				select {
				case <-ctx.Done():
					return
				default:
					ev := p.evaluator.Evaluate(job.solution.Assignments)
					job.solution.Objective = ev.Objective
					job.solution.HardViolations = ev.HardViolations
					resultChan <- EvaluationResult{Index: job.index, Solution: job.solution}
				}
			}
		}()
	}

	go func() {
		for i, sol := range solutions {
			jobChan <- struct {
				index    int
				solution *Solution
			}{i, sol}
		}
		close(jobChan)
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]EvaluationResult, len(solutions))
	for result := range resultChan {
		results[result.Index] = result
	}

	return results
}

// FindBest 从结果中找出目标值最小的方案
func (p *ParallelEvaluator) FindBest(results []EvaluationResult) *Solution {
	var best *Solution
	for i := range results {
		sol := results[i].Solution
		if sol == nil {
			continue
		}
		if best == nil || sol.Objective < best.Objective {
			best = sol
		}
	}
	return best
}

// ParallelOptimizer 并行优化器：邻域生成与评估都走工作协程池
type ParallelOptimizer struct {
	config    *OptimizationConfig
	model     *cmodel.Model
	evaluator *ParallelEvaluator
}

// NewParallelOptimizer 创建并行优化器
func NewParallelOptimizer(config *OptimizationConfig, evaluator Evaluator, m *cmodel.Model) *ParallelOptimizer {
	if config == nil {
		config = DefaultOptConfig()
	}
	return &ParallelOptimizer{
		config:    config,
		model:     m,
		evaluator: NewParallelEvaluator(config.ParallelWorkers, evaluator),
	}
}

// OptimizeParallel 并行优化
func (p *ParallelOptimizer) OptimizeParallel(ctx context.Context, initial *Solution) (*Solution, error) {
	current := initial.Clone()
	best := current.Clone()

	logger.Debug().
		Int("workers", p.config.ParallelWorkers).
		Int("neighborhood_size", p.config.NeighborhoodSize).
		Msg("开始并行优化")

	noImprovement := 0

	for iter := 0; iter < p.config.MaxIterations; iter++ {
		select {
		case <-ctx.Done():
			return best, ctx.Err()
		default:
		}

		neighbors := p.generateNeighborsParallel(ctx, current, p.config.NeighborhoodSize)
		if len(neighbors) == 0 {
			continue
		}

		results := p.evaluator.EvaluateBatch(ctx, neighbors)
		bestNeighbor := p.evaluator.FindBest(results)
		if bestNeighbor == nil {
			continue
		}

		if bestNeighbor.Objective < current.Objective {
			current = bestNeighbor.Clone()
			if current.Objective < best.Objective {
				best = current.Clone()
				noImprovement = 0
			}
		} else {
			noImprovement++
		}

		if best.Objective == 0 {
			break
		}
		if p.config.StopOnPlateau && noImprovement >= p.config.PlateauThreshold {
			break
		}
	}

	logger.Debug().
		Float64("initial_objective", initial.Objective).
		Float64("final_objective", best.Objective).
		Msg("并行优化完成")

	return best, nil
}

// generateNeighborsParallel 并行生成邻域解（各工作协程独立随机源）
func (p *ParallelOptimizer) generateNeighborsParallel(ctx context.Context, current *Solution, count int) []*Solution {
	resultChan := make(chan *Solution, count)

	var wg sync.WaitGroup
	batchSize := count / p.config.ParallelWorkers
	if batchSize < 1 {
		batchSize = 1
	}

	for i := 0; i < p.config.ParallelWorkers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()

			localGen := NewNeighborhoodGenerator(p.model,
				rand.New(rand.NewSource(p.config.Seed+int64(worker)*7919)))

			for j := 0; j < batchSize; j++ {
				select {
				case <-ctx.Done():
					return
				default:
					if neighbor := localGen.GenerateNeighbor(current); neighbor != nil {
						resultChan <- neighbor
					}
				}
			}
		}(i)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	results := make([]*Solution, 0, count)
	for neighbor := range resultChan {
		results = append(results, neighbor)
	}

	return results
}

// IslandOptimizer 岛屿模型并行优化器
// 多个独立种子的搜索并行进行，取全局最优
type IslandOptimizer struct {
	config      *OptimizationConfig
	evaluator   Evaluator
	model       *cmodel.Model
	islandCount int
}

// NewIslandOptimizer 创建岛屿模型优化器
func NewIslandOptimizer(config *OptimizationConfig, evaluator Evaluator, m *cmodel.Model, islandCount int) *IslandOptimizer {
	if islandCount < 2 {
		islandCount = 2
	}
	return &IslandOptimizer{
		config:      config,
		evaluator:   evaluator,
		model:       m,
		islandCount: islandCount,
	}
}

// Island 岛屿（独立搜索）
type Island struct {
	ID        int
	Best      *Solution
	Stats     *SearchStats
	Optimizer *LocalSearchOptimizer
}

// OptimizeIslands 岛屿模型并行优化
func (io *IslandOptimizer) OptimizeIslands(ctx context.Context, initial *Solution) (*Solution, error) {
	islands := make([]*Island, io.islandCount)
	for i := 0; i < io.islandCount; i++ {
		cfg := *io.config
		cfg.Seed = io.config.Seed + int64(i)*104729
		islands[i] = &Island{
			ID:        i,
			Best:      initial.Clone(),
			Optimizer: NewLocalSearchOptimizer(&cfg, io.evaluator, io.model),
		}
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < io.islandCount; i++ {
		wg.Add(1)
		go func(island *Island) {
			defer wg.Done()

			result, stats, err := island.Optimizer.Optimize(ctx, initial)
			if err == nil || result != nil {
				mu.Lock()
				island.Best = result
				island.Stats = stats
				mu.Unlock()
			}
		}(islands[i])
	}

	wg.Wait()

	globalBest := islands[0].Best
	for _, island := range islands[1:] {
		if island.Best != nil && island.Best.Objective < globalBest.Objective {
			globalBest = island.Best
		}
	}

	logger.Debug().
		Int("islands", io.islandCount).
		Float64("best_objective", globalBest.Objective).
		Msg("岛屿模型优化完成")

	return globalBest, nil
}
