package jobs

import (
	"encoding/json"
	"strings"
	"time"
)

// 职位类型枚举，取值与上游保持一致。
const (
	TypeFullTime   = "Full-time"
	TypePartTime   = "Part-time"
	TypeContract   = "Contract"
	TypeInternship = "Internship"
)

// Job 是归一化后的职位数据。上游字段类型松散（skills 可能是字符串或数组），
// 解码时在边界统一成规范形态，过滤/排序管线只处理这里的类型。
type Job struct {
	ID                 string    `json:"id"`
	Title              string    `json:"title"`
	Company            string    `json:"company"`
	Location           string    `json:"location"`
	Type               string    `json:"job_type"`
	Remote             string    `json:"remote"`
	Description        string    `json:"description"`
	SalaryRange        string    `json:"salary_range"`
	Skills             []string  `json:"required_skills"`
	ExperienceRequired string    `json:"experience_required"`
	EducationRequired  string    `json:"education_required"`
	Industry           string    `json:"industry"`
	CreatedAt          time.Time `json:"created_at"`

	// 社区可见性描述。两个字段都缺省时视为对所有人可见（向后兼容）。
	AllCommunities    bool     `json:"all_communities"`
	TargetCommunities []string `json:"target_communities"`
}

// rawJob 承接上游的原始 JSON，字段形态未归一。
type rawJob struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Company            string          `json:"company"`
	Location           string          `json:"location"`
	Type               string          `json:"job_type"`
	Remote             string          `json:"remote"`
	Description        string          `json:"description"`
	SalaryRange        string          `json:"salary_range"`
	Skills             json.RawMessage `json:"required_skills"`
	ExperienceRequired string          `json:"experience_required"`
	EducationRequired  string          `json:"education_required"`
	Industry           string          `json:"industry"`
	CreatedAt          string          `json:"created_at"`
	AllCommunities     bool            `json:"all_communities"`
	TargetCommunities  []string        `json:"target_communities"`
}

// UnmarshalJSON 在边界完成字段归一化。
func (j *Job) UnmarshalJSON(data []byte) error {
	var raw rawJob
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	j.ID = raw.ID
	j.Title = raw.Title
	j.Company = raw.Company
	j.Location = raw.Location
	j.Type = raw.Type
	j.Remote = raw.Remote
	j.Description = raw.Description
	j.SalaryRange = raw.SalaryRange
	j.Skills = normalizeSkills(raw.Skills)
	j.ExperienceRequired = raw.ExperienceRequired
	j.EducationRequired = raw.EducationRequired
	j.Industry = raw.Industry
	j.CreatedAt = parseCreatedAt(raw.CreatedAt)
	j.AllCommunities = raw.AllCommunities
	j.TargetCommunities = raw.TargetCommunities

	return nil
}

// normalizeSkills 接受字符串数组或逗号分隔的单个字符串，统一成数组。
// 无法解析的形态退化为空列表，而不是报错。
func normalizeSkills(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return trimEach(list)
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if strings.TrimSpace(single) == "" {
			return nil
		}
		return trimEach(strings.Split(single, ","))
	}

	return nil
}

func trimEach(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// parseCreatedAt 尽量解析时间戳，失败时返回零值（排序时落到末尾）。
func parseCreatedAt(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
