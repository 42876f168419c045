package optimizer

import (
	"math/rand"

	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/scheduler/cmodel"
)

// MoveType 邻域移动类型
type MoveType int

const (
	MoveSwap       MoveType = iota // 交换两名职员的格位
	MoveRelocate                   // 将分配移到其他格位
	MoveInsert                     // 在空格位插入新分配
	MoveRemove                     // 移除分配
	MoveEventShift                 // 将事件整体移到其他候选放置
	MoveChain                      // 链式轮换职员
)

// NeighborhoodGenerator 邻域生成器
// 所有移动都尊重锁定格位与职员/任务的可行域
type NeighborhoodGenerator struct {
	model       *cmodel.Model
	rng         *rand.Rand
	moveWeights map[MoveType]float64
}

// NewNeighborhoodGenerator 创建邻域生成器
func NewNeighborhoodGenerator(m *cmodel.Model, rng *rand.Rand) *NeighborhoodGenerator {
	return &NeighborhoodGenerator{
		model: m,
		rng:   rng,
		moveWeights: map[MoveType]float64{
			MoveSwap:       0.30,
			MoveRelocate:   0.25,
			MoveInsert:     0.15,
			MoveRemove:     0.10,
			MoveEventShift: 0.15,
			MoveChain:      0.05,
		},
	}
}

// GenerateNeighbor 生成一个邻域解（无合法移动时返回 nil）
func (n *NeighborhoodGenerator) GenerateNeighbor(current *Solution) *Solution {
	if current == nil {
		return nil
	}

	switch n.selectMoveType() {
	case MoveSwap:
		return n.generateSwapMove(current)
	case MoveRelocate:
		return n.generateRelocateMove(current)
	case MoveInsert:
		return n.generateInsertMove(current)
	case MoveRemove:
		return n.generateRemoveMove(current)
	case MoveEventShift:
		return n.generateEventShiftMove(current)
	case MoveChain:
		return n.generateChainMove(current)
	default:
		return n.generateSwapMove(current)
	}
}

// selectMoveType 按权重选择移动类型
func (n *NeighborhoodGenerator) selectMoveType() MoveType {
	r := n.rng.Float64()
	cumulative := 0.0
	for moveType, weight := range n.moveWeights {
		cumulative += weight
		if r < cumulative {
			return moveType
		}
	}
	return MoveSwap
}

// mutableIndexes 返回可被移动改写的分配下标
// 锁定分配、事件放置以及落在锁定/冻结格位上的分配都不可改写
func (n *NeighborhoodGenerator) mutableIndexes(sol *Solution) []int {
	var idxs []int
	for i, a := range sol.Assignments {
		if a.Locked || a.EventID != nil {
			continue
		}
		if !n.model.CellFree(a.StaffID, a.Date, a.Block) {
			continue
		}
		idxs = append(idxs, i)
	}
	return idxs
}

// occupiedCells 返回方案占用的格位集合（skip 下标除外）
func occupiedCells(sol *Solution, skip ...int) map[model.CellKey]bool {
	skipped := make(map[int]bool, len(skip))
	for _, i := range skip {
		skipped[i] = true
	}
	occ := make(map[model.CellKey]bool, len(sol.Assignments))
	for i, a := range sol.Assignments {
		if !skipped[i] {
			occ[a.Cell()] = true
		}
	}
	return occ
}

// cellAdmits 检查职员能否在某分配的格位上承担其任务
func (n *NeighborhoodGenerator) cellAdmits(staff *model.Staff, a *model.Assignment) bool {
	if !staff.CanWorkBlock(a.Block) {
		return false
	}
	if !n.model.CanDo(staff.ID, a.TaskTypeCode) {
		return false
	}
	return n.model.CellFree(staff.ID, a.Date, a.Block)
}

// generateSwapMove 交换两名职员的格位分配
func (n *NeighborhoodGenerator) generateSwapMove(current *Solution) *Solution {
	idxs := n.mutableIndexes(current)
	if len(idxs) < 2 {
		return nil
	}

	neighbor := current.Clone()
	i := idxs[n.rng.Intn(len(idxs))]
	j := idxs[n.rng.Intn(len(idxs))]
	if i == j {
		return nil
	}

	a, b := neighbor.Assignments[i], neighbor.Assignments[j]
	if a.StaffID == b.StaffID {
		return nil
	}
	sa := n.model.Snapshot.StaffByID(a.StaffID)
	sb := n.model.Snapshot.StaffByID(b.StaffID)
	if sa == nil || sb == nil {
		return nil
	}
	if !n.cellAdmits(sb, a) || !n.cellAdmits(sa, b) {
		return nil
	}

	occ := occupiedCells(neighbor, i, j)
	if occ[model.CellKey{StaffID: sb.ID, Date: a.Date, Block: a.Block}] ||
		occ[model.CellKey{StaffID: sa.ID, Date: b.Date, Block: b.Block}] {
		return nil
	}

	a.StaffID, b.StaffID = sb.ID, sa.ID
	return neighbor
}

// generateRelocateMove 将一个分配移到同职员的其他格位
func (n *NeighborhoodGenerator) generateRelocateMove(current *Solution) *Solution {
	idxs := n.mutableIndexes(current)
	if len(idxs) == 0 || len(n.model.Dates) == 0 {
		return nil
	}

	neighbor := current.Clone()
	a := neighbor.Assignments[idxs[n.rng.Intn(len(idxs))]]

	staff := n.model.Snapshot.StaffByID(a.StaffID)
	if staff == nil {
		return nil
	}

	date := n.model.Dates[n.rng.Intn(len(n.model.Dates))]
	block := model.WorkBlocks[n.rng.Intn(len(model.WorkBlocks))]
	if date == a.Date && block == a.Block {
		return nil
	}
	if !domainContains(n.model.CellDomain(staff, date, block), a.TaskTypeCode) {
		return nil
	}
	if occupiedCells(neighbor)[model.CellKey{StaffID: a.StaffID, Date: date, Block: block}] {
		return nil
	}

	a.Date, a.Block = date, block
	return neighbor
}

// generateInsertMove 在随机空格位插入新分配
func (n *NeighborhoodGenerator) generateInsertMove(current *Solution) *Solution {
	if len(n.model.Staffs) == 0 || len(n.model.Dates) == 0 {
		return nil
	}

	staff := n.model.Staffs[n.rng.Intn(len(n.model.Staffs))]
	date := n.model.Dates[n.rng.Intn(len(n.model.Dates))]
	block := model.WorkBlocks[n.rng.Intn(len(model.WorkBlocks))]

	domain := n.model.CellDomain(staff, date, block)
	if len(domain) == 0 {
		return nil
	}
	if occupiedCells(current)[model.CellKey{StaffID: staff.ID, Date: date, Block: block}] {
		return nil
	}

	neighbor := current.Clone()
	neighbor.Assignments = append(neighbor.Assignments, &model.Assignment{
		BaseModel:    model.NewBaseModel(),
		ScheduleID:   n.model.Snapshot.ScheduleID,
		StaffID:      staff.ID,
		Date:         date,
		Block:        block,
		TaskTypeCode: domain[n.rng.Intn(len(domain))],
		Source:       model.SourceSolver,
	})
	return neighbor
}

// generateRemoveMove 移除一个分配
func (n *NeighborhoodGenerator) generateRemoveMove(current *Solution) *Solution {
	idxs := n.mutableIndexes(current)
	if len(idxs) == 0 {
		return nil
	}

	neighbor := current.Clone()
	idx := idxs[n.rng.Intn(len(idxs))]
	neighbor.Assignments = append(neighbor.Assignments[:idx], neighbor.Assignments[idx+1:]...)
	return neighbor
}

// generateEventShiftMove 将事件整体移到另一个候选放置
// 事件的全部跨块分配一起移动，保持放置的原子性
func (n *NeighborhoodGenerator) generateEventShiftMove(current *Solution) *Solution {
	if len(n.model.Events) == 0 {
		return nil
	}

	ev := n.model.Events[n.rng.Intn(len(n.model.Events))]
	candidates := n.model.EventCandidates[ev.ID]
	if len(candidates) == 0 {
		return nil
	}

	neighbor := current.Clone()

	// 摘除事件现有放置；任一放置被锁定或被冻结时整个事件不可移动
	kept := neighbor.Assignments[:0]
	for _, a := range neighbor.Assignments {
		if a.EventID != nil && *a.EventID == ev.ID {
			if a.Locked || !n.model.CellFree(a.StaffID, a.Date, a.Block) {
				return nil
			}
			continue
		}
		kept = append(kept, a)
	}
	neighbor.Assignments = kept

	cand := candidates[n.rng.Intn(len(candidates))]
	occ := occupiedCells(neighbor)
	for _, b := range cand.Blocks {
		if !n.model.CellFree(cand.StaffID, cand.Start.Date, b) {
			return nil
		}
		if occ[model.CellKey{StaffID: cand.StaffID, Date: cand.Start.Date, Block: b}] {
			return nil
		}
	}

	eid := ev.ID
	for _, b := range cand.Blocks {
		neighbor.Assignments = append(neighbor.Assignments, &model.Assignment{
			BaseModel:    model.NewBaseModel(),
			ScheduleID:   n.model.Snapshot.ScheduleID,
			StaffID:      cand.StaffID,
			Date:         cand.Start.Date,
			Block:        b,
			TaskTypeCode: ev.TypeCode,
			EventID:      &eid,
			DisplayText:  ev.Label(),
			Source:       model.SourceSolver,
		})
	}
	return neighbor
}

// generateChainMove 在 2-4 个分配间链式轮换职员
func (n *NeighborhoodGenerator) generateChainMove(current *Solution) *Solution {
	idxs := n.mutableIndexes(current)
	if len(idxs) < 3 {
		return nil
	}

	neighbor := current.Clone()

	chainLen := 2 + n.rng.Intn(3)
	if chainLen > len(idxs) {
		chainLen = len(idxs)
	}
	perm := n.rng.Perm(len(idxs))
	chain := make([]int, chainLen)
	for i := range chain {
		chain[i] = idxs[perm[i]]
	}

	// 链外分配占用的格位；轮换后的落点不得与其冲突，也不得相互冲突
	occ := occupiedCells(neighbor, chain...)

	// 每个分配接收链中下一个分配的职员，末尾回接链首
	first := neighbor.Assignments[chain[0]].StaffID
	for i := 0; i < chainLen; i++ {
		a := neighbor.Assignments[chain[i]]
		var nextStaff = first
		if i < chainLen-1 {
			nextStaff = neighbor.Assignments[chain[i+1]].StaffID
		}
		staff := n.model.Snapshot.StaffByID(nextStaff)
		if staff == nil || !n.cellAdmits(staff, a) {
			return nil
		}
		target := model.CellKey{StaffID: nextStaff, Date: a.Date, Block: a.Block}
		if occ[target] {
			return nil
		}
		occ[target] = true
		a.StaffID = nextStaff
	}
	return neighbor
}

// domainContains 检查任务编码是否在格位域内
func domainContains(domain []string, taskCode string) bool {
	for _, c := range domain {
		if c == taskCode {
			return true
		}
	}
	return false
}

// GenerateBatch 批量生成邻域解
func (n *NeighborhoodGenerator) GenerateBatch(current *Solution, count int) []*Solution {
	results := make([]*Solution, 0, count)
	for i := 0; i < count; i++ {
		if neighbor := n.GenerateNeighbor(current); neighbor != nil {
			results = append(results, neighbor)
		}
	}
	return results
}

// SetMoveWeights 设置移动类型权重
func (n *NeighborhoodGenerator) SetMoveWeights(weights map[MoveType]float64) {
	n.moveWeights = weights
}
