package swap

import (
	"sort"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/model"
	"github.com/clinicshift/clinicshift/pkg/rulecompiler"
	"github.com/clinicshift/clinicshift/pkg/scheduler/cmodel"
)

// Recommender 换班候补推荐器
type Recommender struct {
	evaluator *Evaluator
}

// NewRecommender 创建换班推荐器
func NewRecommender(rules []*rulecompiler.CompiledRule, preset cmodel.Preset) *Recommender {
	return &Recommender{evaluator: NewEvaluator(rules, preset)}
}

// Recommendation 换班推荐
type Recommendation struct {
	TargetStaff   *model.Staff      `json:"target_staff"`
	Counterpart   *model.Assignment `json:"counterpart,omitempty"`
	SwapType      string            `json:"swap_type"` // take_over 接替 / exchange 互换
	Delta         int               `json:"objective_delta"`
	Reason        string            `json:"reason"`
	ImpactSummary string            `json:"impact_summary"`
	Rank          int               `json:"rank"`
}

// Options 推荐选项
type Options struct {
	MaxRecommendations int         // 最大推荐数量
	PreferredStaff     []uuid.UUID // 优先考虑的职员
	ExcludeStaff       []uuid.UUID // 排除的职员
	AllowExchange      bool        // 是否允许互换
	MaxDelta           int         // 目标值最大允许升幅
}

// DefaultOptions 返回默认选项
func DefaultOptions() *Options {
	return &Options{
		MaxRecommendations: 5,
		AllowExchange:      true,
		MaxDelta:           200,
	}
}

// RecommendTargets 为某个格位推荐可接替的职员
func (r *Recommender) RecommendTargets(snapshot *model.Snapshot, source *model.Assignment, options *Options) []Recommendation {
	if options == nil {
		options = DefaultOptions()
	}

	excludeSet := map[uuid.UUID]bool{source.StaffID: true}
	for _, id := range options.ExcludeStaff {
		excludeSet[id] = true
	}
	preferredSet := make(map[uuid.UUID]bool)
	for _, id := range options.PreferredStaff {
		preferredSet[id] = true
	}

	var candidates []Recommendation

	for _, staff := range snapshot.ActiveStaffs() {
		if excludeSet[staff.ID] {
			continue
		}

		ev := r.evaluator.Evaluate(snapshot, &Request{Source: source, TargetStaff: staff})
		if ev.Feasible && ev.ObjectiveDelta <= options.MaxDelta {
			delta := ev.ObjectiveDelta
			// 优先职员给予小幅加成
			if preferredSet[staff.ID] {
				delta -= 50
			}
			candidates = append(candidates, Recommendation{
				TargetStaff:   staff,
				SwapType:      "take_over",
				Delta:         delta,
				Reason:        r.reason(ev),
				ImpactSummary: r.impactSummary(ev),
			})
		}

		if options.AllowExchange {
			candidates = append(candidates, r.exchangeCandidates(snapshot, source, staff, options)...)
		}
	}

	// 目标值升幅小者优先
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Delta < candidates[j].Delta
	})

	if len(candidates) > options.MaxRecommendations {
		candidates = candidates[:options.MaxRecommendations]
	}
	for i := range candidates {
		candidates[i].Rank = i + 1
	}
	return candidates
}

// exchangeCandidates 查找与目标职员的互换候选
func (r *Recommender) exchangeCandidates(snapshot *model.Snapshot, source *model.Assignment, target *model.Staff, options *Options) []Recommendation {
	var candidates []Recommendation

	for _, a := range snapshot.Assignments {
		if a.StaffID != target.ID || !a.IsWork() {
			continue
		}
		// 同一天互换没有意义
		if a.Date == source.Date {
			continue
		}

		ev := r.evaluator.Evaluate(snapshot, &Request{
			Source:      source,
			TargetStaff: target,
			Counterpart: a,
		})
		if !ev.Feasible || ev.ObjectiveDelta > options.MaxDelta {
			continue
		}

		candidates = append(candidates, Recommendation{
			TargetStaff:   target,
			Counterpart:   a,
			SwapType:      "exchange",
			Delta:         ev.ObjectiveDelta,
			Reason:        "互换格位，双方工时保持平衡",
			ImpactSummary: r.impactSummary(ev),
		})
	}

	return candidates
}

// FindCoverFor 为请假职员找到当天各格位的最佳接替
func (r *Recommender) FindCoverFor(snapshot *model.Snapshot, staffID uuid.UUID, date string) []Recommendation {
	var covers []Recommendation

	for _, a := range snapshot.Assignments {
		if a.StaffID != staffID || a.Date != date || !a.IsWork() {
			continue
		}
		recs := r.RecommendTargets(snapshot, a, &Options{
			MaxRecommendations: 1,
			MaxDelta:           500,
		})
		if len(recs) > 0 {
			covers = append(covers, recs[0])
		}
	}

	return covers
}

// reason 生成推荐原因
func (r *Recommender) reason(ev *Evaluation) string {
	if len(ev.Issues) == 0 && ev.ObjectiveDelta <= 0 {
		return "无冲突且排班质量不降低"
	}
	if ev.ObjectiveDelta <= 0 {
		return "换班后整体目标值改善"
	}
	return "可接替，存在少量软规则扣分"
}

// impactSummary 生成影响摘要
func (r *Recommender) impactSummary(ev *Evaluation) string {
	if ev.Impact == nil {
		return "影响较小"
	}
	switch {
	case ev.Impact.TargetHoursChange > 0:
		return "目标职员工时增加"
	case ev.Impact.TargetHoursChange < 0:
		return "目标职员工时减少"
	default:
		return "双方工时不变"
	}
}
