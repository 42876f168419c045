// Package rulecompiler 将持久化的排班规则编译为强类型约束说明
package rulecompiler

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicshift/clinicshift/pkg/errors"
	"github.com/clinicshift/clinicshift/pkg/model"
)

// Compiler 规则编译器
// 逐条解析规则 body、解析职员/任务引用，任一规则不合法时整批失败
type Compiler struct {
	snapshot *model.Snapshot
}

// New 创建规则编译器
func New(snapshot *model.Snapshot) *Compiler {
	return &Compiler{snapshot: snapshot}
}

// Compile 编译快照内的全部生效规则
// 返回编译产物；任何 body 形状错误或引用悬空都汇总为 VALIDATION_FAILED
func (c *Compiler) Compile() ([]*CompiledRule, error) {
	ve := &errors.ValidationErrors{}
	var compiled []*CompiledRule

	for _, rule := range c.snapshot.Rules {
		if !rule.IsActive {
			continue
		}

		cr, err := c.compileOne(rule)
		if err != nil {
			ve.Add(fmt.Sprintf("rules[%s]", rule.ID), err.Error())
			continue
		}
		compiled = append(compiled, cr)
	}

	if ve.HasErrors() {
		return nil, ve.ToAppError()
	}
	return compiled, nil
}

// compileOne 编译单条规则
func (c *Compiler) compileOne(rule *model.Rule) (*CompiledRule, error) {
	meta := RuleMeta{
		RuleID:      rule.ID,
		Template:    rule.Template,
		Category:    rule.Category,
		Weight:      rule.EffectiveWeight(),
		NaturalText: rule.NaturalText,
		exceptions:  make(map[string]bool, len(rule.Exceptions)),
	}
	for _, d := range rule.Exceptions {
		if _, err := model.ParseDate(d); err != nil {
			return nil, fmt.Errorf("例外日期 '%s' 格式错误", d)
		}
		meta.exceptions[d] = true
	}

	cr := &CompiledRule{Meta: meta}
	body := bodyReader{m: rule.Body}

	var err error
	switch rule.Template {
	case model.TemplateHeadcount:
		cr.Headcount, err = c.compileHeadcount(body)
	case model.TemplateSkillReq:
		cr.Skill, err = c.compileSkillReq(body)
	case model.TemplateResourceReq:
		cr.Resource, err = c.compileResourceReq(body)
	case model.TemplateAvailability:
		cr.Availability, err = c.compileAvailability(body)
	case model.TemplatePreference:
		cr.Preference, err = c.compilePreference(body)
	case model.TemplateRecurring:
		cr.Recurring, err = c.compileRecurring(body)
	case model.TemplateSpecificDate:
		cr.SpecificDate, err = c.compileSpecificDate(body)
	default:
		err = fmt.Errorf("未知规则模板 '%s'", rule.Template)
	}
	if err != nil {
		return nil, err
	}
	return cr, nil
}

// compileHeadcount 解析人数规则 body
// 形状: {"task": "...", "min": 2, "max": 4, "blocks": [...], "weekdays": [...]}
func (c *Compiler) compileHeadcount(body bodyReader) (*HeadcountSpec, error) {
	task, err := c.resolveTaskCode(body, "task")
	if err != nil {
		return nil, err
	}
	min := body.getInt("min", -1)
	if min < 0 {
		return nil, fmt.Errorf("缺少字段 'min' 或值为负")
	}
	max := body.getInt("max", 0)
	if max > 0 && max < min {
		return nil, fmt.Errorf("'max' (%d) 小于 'min' (%d)", max, min)
	}
	blocks, err := body.getBlocks("blocks")
	if err != nil {
		return nil, err
	}
	weekdays, err := body.getWeekdays("weekdays")
	if err != nil {
		return nil, err
	}
	return &HeadcountSpec{
		TaskCode: task,
		MinStaff: min,
		MaxStaff: max,
		Blocks:   blocks,
		Weekdays: weekdays,
	}, nil
}

// compileSkillReq 解析资质要求规则 body
// 形状: {"task": "...", "qualifications": ["..."]}
func (c *Compiler) compileSkillReq(body bodyReader) (*SkillRequirementSpec, error) {
	task, err := c.resolveTaskCode(body, "task")
	if err != nil {
		return nil, err
	}
	quals := body.getStringSlice("qualifications")
	if len(quals) == 0 {
		return nil, fmt.Errorf("缺少字段 'qualifications'")
	}
	return &SkillRequirementSpec{TaskCode: task, Qualifications: quals}, nil
}

// compileResourceReq 解析资源要求规则 body
// 形状: {"task": "...", "resource": "car", "count": 1}
func (c *Compiler) compileResourceReq(body bodyReader) (*ResourceRequirementSpec, error) {
	task, err := c.resolveTaskCode(body, "task")
	if err != nil {
		return nil, err
	}
	resType := body.getString("resource", "")
	if resType == "" {
		return nil, fmt.Errorf("缺少字段 'resource'")
	}
	if !c.resourceTypeExists(resType) {
		return nil, fmt.Errorf("资源类型 '%s' 不存在", resType)
	}
	count := body.getInt("count", 1)
	if count < 1 {
		count = 1
	}
	return &ResourceRequirementSpec{TaskCode: task, ResourceType: resType, Count: count}, nil
}

// compileAvailability 解析可用性限制规则 body
// 形状: {"staff_name"/"staff_id": ..., "dates": [...], "weekdays": [...], "blocks": [...]}
func (c *Compiler) compileAvailability(body bodyReader) (*AvailabilitySpec, error) {
	staffID, err := c.resolveStaff(body)
	if err != nil {
		return nil, err
	}
	dates := body.getStringSlice("dates")
	for _, d := range dates {
		if _, perr := model.ParseDate(d); perr != nil {
			return nil, fmt.Errorf("日期 '%s' 格式错误", d)
		}
	}
	weekdays, err := body.getWeekdays("weekdays")
	if err != nil {
		return nil, err
	}
	blocks, err := body.getBlocks("blocks")
	if err != nil {
		return nil, err
	}
	return &AvailabilitySpec{
		StaffID:  staffID,
		Dates:    dates,
		Weekdays: weekdays,
		Blocks:   blocks,
	}, nil
}

// compilePreference 解析偏好规则 body
// 形状: {"staff_name"/"staff_id": ..., "task": "...", "weekdays": [...], "blocks": [...], "avoid": false}
func (c *Compiler) compilePreference(body bodyReader) (*PreferenceSpec, error) {
	staffID, err := c.resolveStaff(body)
	if err != nil {
		return nil, err
	}
	task := body.getString("task", "")
	if task != "" {
		if _, ok := c.snapshot.TaskTypes[task]; !ok {
			return nil, fmt.Errorf("任务类型 '%s' 不存在", task)
		}
	}
	weekdays, err := body.getWeekdays("weekdays")
	if err != nil {
		return nil, err
	}
	blocks, err := body.getBlocks("blocks")
	if err != nil {
		return nil, err
	}
	return &PreferenceSpec{
		StaffID:  staffID,
		TaskCode: task,
		Weekdays: weekdays,
		Blocks:   blocks,
		Avoid:    body.getBool("avoid", false),
	}, nil
}

// compileRecurring 解析周期规则 body
// 形状: {"task": "...", "weekdays": [1], "blocks": ["am"], "staff_count": 1}
func (c *Compiler) compileRecurring(body bodyReader) (*RecurringSpec, error) {
	task, err := c.resolveTaskCode(body, "task")
	if err != nil {
		return nil, err
	}
	weekdays, err := body.getWeekdays("weekdays")
	if err != nil {
		return nil, err
	}
	blocks, err := body.getBlocks("blocks")
	if err != nil {
		return nil, err
	}
	count := body.getInt("staff_count", 1)
	if count < 1 {
		count = 1
	}
	return &RecurringSpec{
		TaskCode:   task,
		Weekdays:   weekdays,
		Blocks:     blocks,
		StaffCount: count,
	}, nil
}

// compileSpecificDate 解析指定日期规则 body
// 形状: {"task": "...", "date": "YYYY-MM-DD", "blocks": [...], "staff_count": 1}
func (c *Compiler) compileSpecificDate(body bodyReader) (*SpecificDateSpec, error) {
	task, err := c.resolveTaskCode(body, "task")
	if err != nil {
		return nil, err
	}
	date := body.getString("date", "")
	if date == "" {
		return nil, fmt.Errorf("缺少字段 'date'")
	}
	if _, perr := model.ParseDate(date); perr != nil {
		return nil, fmt.Errorf("日期 '%s' 格式错误", date)
	}
	blocks, err := body.getBlocks("blocks")
	if err != nil {
		return nil, err
	}
	count := body.getInt("staff_count", 1)
	if count < 1 {
		count = 1
	}
	return &SpecificDateSpec{
		TaskCode:   task,
		Date:       date,
		Blocks:     blocks,
		StaffCount: count,
	}, nil
}

// resolveTaskCode 解析并校验任务类型引用
func (c *Compiler) resolveTaskCode(body bodyReader, key string) (string, error) {
	code := body.getString(key, "")
	if code == "" {
		return "", fmt.Errorf("缺少字段 '%s'", key)
	}
	if _, ok := c.snapshot.TaskTypes[code]; !ok {
		return "", fmt.Errorf("任务类型 '%s' 不存在", code)
	}
	return code, nil
}

// resolveStaff 解析职员引用（staff_id 优先，其次 staff_name）
func (c *Compiler) resolveStaff(body bodyReader) (uuid.UUID, error) {
	if idStr := body.getString("staff_id", ""); idStr != "" {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return uuid.Nil, fmt.Errorf("staff_id '%s' 不是合法 UUID", idStr)
		}
		if c.snapshot.StaffByID(id) == nil {
			return uuid.Nil, fmt.Errorf("职员 ID '%s' 不存在", idStr)
		}
		return id, nil
	}

	name := body.getString("staff_name", "")
	if name == "" {
		return uuid.Nil, fmt.Errorf("缺少字段 'staff_id' 或 'staff_name'")
	}
	staff := c.snapshot.StaffByName(name)
	if staff == nil {
		return uuid.Nil, fmt.Errorf("职员 '%s' 不存在", name)
	}
	return staff.ID, nil
}

// resourceTypeExists 检查快照内是否存在该类型的生效资源
func (c *Compiler) resourceTypeExists(resType string) bool {
	for _, r := range c.snapshot.Resources {
		if r.IsActive && r.Type == resType {
			return true
		}
	}
	return false
}

// bodyReader 规则 body 的类型安全读取器
type bodyReader struct {
	m model.JSONMap
}

// getString 读取字符串字段
func (b bodyReader) getString(key, defaultVal string) string {
	if v, ok := b.m[key].(string); ok {
		return v
	}
	return defaultVal
}

// getInt 读取整数字段（兼容 JSON 反序列化产生的 float64）
func (b bodyReader) getInt(key string, defaultVal int) int {
	switch v := b.m[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return defaultVal
}

// getBool 读取布尔字段
func (b bodyReader) getBool(key string, defaultVal bool) bool {
	if v, ok := b.m[key].(bool); ok {
		return v
	}
	return defaultVal
}

// getStringSlice 读取字符串数组字段
func (b bodyReader) getStringSlice(key string) []string {
	var result []string
	switch v := b.m[key].(type) {
	case []string:
		result = append(result, v...)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
	}
	return result
}

// getBlocks 读取并校验时间块数组字段
func (b bodyReader) getBlocks(key string) ([]model.TimeBlock, error) {
	var blocks []model.TimeBlock
	for _, s := range b.getStringSlice(key) {
		blk := model.TimeBlock(s)
		if !blk.Valid() {
			return nil, fmt.Errorf("时间块 '%s' 不合法", s)
		}
		blocks = append(blocks, blk)
	}
	return blocks, nil
}

// getWeekdays 读取并校验星期数组字段（0=周一 .. 6=周日）
func (b bodyReader) getWeekdays(key string) ([]int, error) {
	var weekdays []int
	switch v := b.m[key].(type) {
	case []int:
		weekdays = append(weekdays, v...)
	case []interface{}:
		for _, item := range v {
			switch n := item.(type) {
			case float64:
				weekdays = append(weekdays, int(n))
			case int:
				weekdays = append(weekdays, n)
			}
		}
	}
	for _, w := range weekdays {
		if w < 0 || w > 6 {
			return nil, fmt.Errorf("星期值 %d 超出 0-6 范围", w)
		}
	}
	return weekdays, nil
}
