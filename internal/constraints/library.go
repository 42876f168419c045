// Package constraints 提供规则模板目录
// 前端据此渲染规则编辑器，参数定义与规则编译器的 body 解析保持一致
package constraints

import "github.com/clinicshift/clinicshift/pkg/model"

// TemplateParam 模板参数定义
type TemplateParam struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // int, string, bool, array
	Description string `json:"description"`
	Default     string `json:"default,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

// TemplateDefinition 规则模板定义
type TemplateDefinition struct {
	Template    model.RuleTemplate `json:"template"`
	DisplayName string             `json:"display_name"`
	DefaultKind string             `json:"default_kind"` // hard 或 soft
	Description string             `json:"description"`
	Example     string             `json:"example"` // 自然语言示例
	Params      []TemplateParam    `json:"params"`
}

// LibraryResponse 模板目录响应
type LibraryResponse struct {
	Library []TemplateDefinition `json:"library"`
}

// GetLibrary 返回引擎支持的全部规则模板定义
func GetLibrary() []TemplateDefinition {
	return []TemplateDefinition{
		{
			Template:    model.TemplateRecurring,
			DisplayName: "周期安排",
			DefaultKind: "hard",
			Description: "按星期几和时间块周期性安排某任务，可指定所需人数。",
			Example:     "每周二上午安排1人上门诊",
			Params: []TemplateParam{
				{Name: "task", Type: "string", Description: "任务类型编码", Required: true},
				{Name: "weekdays", Type: "array", Description: "星期列表（0=周一）", Required: true},
				{Name: "blocks", Type: "array", Description: "时间块列表", Required: true},
				{Name: "staff_count", Type: "int", Description: "所需人数", Default: "1"},
			},
		},
		{
			Template:    model.TemplateSpecificDate,
			DisplayName: "指定日期安排",
			DefaultKind: "hard",
			Description: "在某个具体日期的指定时间块安排任务。",
			Example:     "3月15日下午安排2人做健诊",
			Params: []TemplateParam{
				{Name: "task", Type: "string", Description: "任务类型编码", Required: true},
				{Name: "date", Type: "string", Description: "日期（YYYY-MM-DD）", Required: true},
				{Name: "blocks", Type: "array", Description: "时间块列表", Required: true},
				{Name: "staff_count", Type: "int", Description: "所需人数", Default: "1"},
			},
		},
		{
			Template:    model.TemplateHeadcount,
			DisplayName: "人数上下限",
			DefaultKind: "hard",
			Description: "限定某任务在指定时间块的在岗人数范围。",
			Example:     "门诊上午至少2人、至多4人",
			Params: []TemplateParam{
				{Name: "task", Type: "string", Description: "任务类型编码", Required: true},
				{Name: "min", Type: "int", Description: "最少人数"},
				{Name: "max", Type: "int", Description: "最多人数（0 表示不限）", Default: "0"},
				{Name: "blocks", Type: "array", Description: "适用时间块（空为全部）"},
				{Name: "weekdays", Type: "array", Description: "适用星期（空为全部）"},
			},
		},
		{
			Template:    model.TemplateSkillReq,
			DisplayName: "资质要求",
			DefaultKind: "hard",
			Description: "要求承担某任务的职员持有指定资质。",
			Example:     "内视镜检查必须由持内视镜资质者担当",
			Params: []TemplateParam{
				{Name: "task", Type: "string", Description: "任务类型编码", Required: true},
				{Name: "qualifications", Type: "array", Description: "必需资质列表", Required: true},
			},
		},
		{
			Template:    model.TemplateResourceReq,
			DisplayName: "资源占用",
			DefaultKind: "hard",
			Description: "某任务占用指定类型的资源，同一时间块不得超过资源容量。",
			Example:     "上门诊每次占用1台出诊车",
			Params: []TemplateParam{
				{Name: "task", Type: "string", Description: "任务类型编码", Required: true},
				{Name: "resource", Type: "string", Description: "资源类型", Required: true},
				{Name: "count", Type: "int", Description: "占用数量", Default: "1"},
			},
		},
		{
			Template:    model.TemplateAvailability,
			DisplayName: "不可用时段",
			DefaultKind: "hard",
			Description: "声明某职员在指定日期、星期或时间块不可排班。",
			Example:     "佐藤每周三全天休息",
			Params: []TemplateParam{
				{Name: "staff_name", Type: "string", Description: "职员姓名（或给 staff_id）", Required: true},
				{Name: "dates", Type: "array", Description: "具体日期列表"},
				{Name: "weekdays", Type: "array", Description: "星期列表"},
				{Name: "blocks", Type: "array", Description: "时间块列表（空为全天）"},
			},
		},
		{
			Template:    model.TemplatePreference,
			DisplayName: "偏好倾向",
			DefaultKind: "soft",
			Description: "表达职员对任务、星期或时间块的偏好或回避，按权重计入目标函数。",
			Example:     "田中希望尽量不排18点以后的时段",
			Params: []TemplateParam{
				{Name: "staff_name", Type: "string", Description: "职员姓名（或给 staff_id）", Required: true},
				{Name: "task", Type: "string", Description: "任务类型编码（可选）"},
				{Name: "weekdays", Type: "array", Description: "星期列表"},
				{Name: "blocks", Type: "array", Description: "时间块列表"},
				{Name: "avoid", Type: "bool", Description: "true 为回避，false 为倾向", Default: "false"},
			},
		},
	}
}
