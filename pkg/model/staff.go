// Package model 定义门诊排班引擎的核心数据模型
package model

// EmploymentType 雇佣类型
type EmploymentType string

const (
	EmploymentFullTime EmploymentType = "full_time" // 全职
	EmploymentPartTime EmploymentType = "part_time" // 兼职
)

// Staff 职员
type Staff struct {
	BaseModel
	Name           string         `json:"name" db:"name"`
	EmploymentType EmploymentType `json:"employment_type" db:"employment_type"`
	JobCategory    string         `json:"job_category" db:"job_category"` // 医师/护士/心理师/事务 等
	CanDrive       bool           `json:"can_drive" db:"can_drive"`
	CanBicycle     bool           `json:"can_bicycle" db:"can_bicycle"`
	Qualifications []string       `json:"qualifications" db:"qualifications"`
	Attributes     JSONMap        `json:"attributes,omitempty" db:"attributes"`
	IsActive       bool           `json:"is_active" db:"is_active"`
}

// HasQualification 检查职员是否具备某资质
func (s *Staff) HasQualification(code string) bool {
	for _, q := range s.Qualifications {
		if q == code {
			return true
		}
	}
	return false
}

// HasAllQualifications 检查职员是否具备全部所需资质
func (s *Staff) HasAllQualifications(codes []string) bool {
	for _, c := range codes {
		if !s.HasQualification(c) {
			return false
		}
	}
	return true
}

// MissingQualifications 返回职员缺少的资质
func (s *Staff) MissingQualifications(codes []string) []string {
	var missing []string
	for _, c := range codes {
		if !s.HasQualification(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// CanUseResource 检查职员是否能使用某类出行资源
func (s *Staff) CanUseResource(resourceType string) bool {
	switch resourceType {
	case ResourceCar:
		return s.CanDrive
	case ResourceBicycle:
		return s.CanBicycle
	default:
		return true
	}
}

// CanWorkBlock 检查职员是否可排某时间块（兼职不排午后晚段）
func (s *Staff) CanWorkBlock(block TimeBlock) bool {
	if s.EmploymentType == EmploymentPartTime && block.IsLate() {
		return false
	}
	return true
}
