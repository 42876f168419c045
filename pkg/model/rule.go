// Package model 定义门诊排班引擎的核心数据模型
package model

// RuleTemplate 规则模板类型
type RuleTemplate string

const (
	TemplateRecurring    RuleTemplate = "recurring"     // 周期规则（每周二上午…）
	TemplateSpecificDate RuleTemplate = "specific_date" // 指定日期规则
	TemplateHeadcount    RuleTemplate = "headcount"     // 人数规则
	TemplateSkillReq     RuleTemplate = "skill_req"     // 资质要求规则
	TemplateResourceReq  RuleTemplate = "resource_req"  // 资源要求规则
	TemplatePreference   RuleTemplate = "preference"    // 偏好规则
	TemplateAvailability RuleTemplate = "availability"  // 可用性限制规则
)

// Rule 排班规则（持久化形态，body 为模板相关的 JSON 结构）
// body 的具体形状由规则编译器解析为强类型约束说明，引擎核心不直接读取
type Rule struct {
	BaseModel
	NaturalText string       `json:"natural_text" db:"natural_text"`
	Template    RuleTemplate `json:"template_type" db:"template_type"`
	Scope       JSONMap      `json:"scope" db:"scope"`
	Category    RuleCategory `json:"hard_or_soft" db:"hard_or_soft"`
	Weight      int          `json:"weight" db:"weight"` // 1-1000，仅软规则有效
	Body        JSONMap      `json:"body" db:"body"`
	Exceptions  []string     `json:"exceptions" db:"exceptions"` // 暂停适用的日期列表
	IsActive    bool         `json:"is_active" db:"is_active"`
}

// IsHard 检查是否为硬规则
func (r *Rule) IsHard() bool {
	return r.Category == RuleHard
}

// EffectiveWeight 返回规则的有效权重（硬规则使用固定基准值）
func (r *Rule) EffectiveWeight() int {
	if r.IsHard() {
		return HardSeverity
	}
	if r.Weight <= 0 {
		return 100
	}
	return r.Weight
}

// SuspendedOn 检查规则在某日期是否被例外暂停
func (r *Rule) SuspendedOn(date string) bool {
	for _, d := range r.Exceptions {
		if d == date {
			return true
		}
	}
	return false
}
