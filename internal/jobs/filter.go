package jobs

import "strings"

// Criteria 描述一次搜索的全部过滤条件。零值字段表示该谓词对所有职位放行，
// 各谓词相互独立，以逻辑与组合。
type Criteria struct {
	Search     string
	Location   string
	JobType    string
	Experience string
	Field      string

	// SelectedCommunities 为空时不做社区过滤。
	SelectedCommunities []string
}

// 经验档位到判定子串的映射。判定方式是检查 experience_required 自由文本里
// 是否包含这些数字子串，而不是数值解析——老客户端就是这么判的，
// 网关必须返回同样的结果集，所以这里原样保留（包括 "10-15 years" 会因为
// 含 "1" 而命中 entry 的怪癖，见 filter_test.go）。
var experienceBuckets = map[string][]string{
	"entry":     {"0", "1"},
	"mid":       {"2", "3", "4"},
	"senior":    {"5", "6", "7", "8", "9"},
	"executive": {"10", "15", "20"},
}

// 行业过滤的旧名映射表：老数据里的行业名归并到新类目。
// 不在表里的过滤值退化为普通的全等比较。
var fieldAliases = map[string][]string{
	"Technology & IT": {
		"Technology & IT",
		"Information Technology",
		"IT",
		"Software",
		"Artificial Intelligence",
	},
	"Finance & Accounting": {
		"Finance & Accounting",
		"Finance",
		"Accounting",
		"Banking",
	},
	"Healthcare & Medical": {
		"Healthcare & Medical",
		"Healthcare",
		"Medical",
	},
	"Sales & Marketing": {
		"Sales & Marketing",
		"Sales",
		"Marketing",
		"Advertising",
	},
	"Education & Training": {
		"Education & Training",
		"Education",
		"Teaching",
	},
}

// Filter 对职位集合应用全部谓词，返回通过的子集。
// 纯函数：不修改输入，也不依赖任何隐藏状态，同样的输入必得同样的输出。
// 空结果是正常结果，不是错误。
func Filter(list []Job, c Criteria) []Job {
	selected := make(map[string]struct{}, len(c.SelectedCommunities))
	for _, id := range c.SelectedCommunities {
		selected[id] = struct{}{}
	}

	out := make([]Job, 0, len(list))
	for _, job := range list {
		if !matchesSearch(job, c.Search) {
			continue
		}
		if !matchesLocation(job, c.Location) {
			continue
		}
		if !matchesJobType(job, c.JobType) {
			continue
		}
		if !matchesExperience(job, c.Experience) {
			continue
		}
		if !matchesField(job, c.Field) {
			continue
		}
		if !VisibleTo(job, selected) {
			continue
		}
		out = append(out, job)
	}
	return out
}

// matchesSearch 在标题、公司、描述和技能列表里做大小写不敏感的子串匹配。
func matchesSearch(job Job, search string) bool {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return true
	}
	if strings.Contains(strings.ToLower(job.Title), search) {
		return true
	}
	if strings.Contains(strings.ToLower(job.Company), search) {
		return true
	}
	if strings.Contains(strings.ToLower(job.Description), search) {
		return true
	}
	for _, skill := range job.Skills {
		if strings.Contains(strings.ToLower(skill), search) {
			return true
		}
	}
	return false
}

func matchesLocation(job Job, location string) bool {
	location = strings.ToLower(strings.TrimSpace(location))
	if location == "" {
		return true
	}
	return strings.Contains(strings.ToLower(job.Location), location)
}

func matchesJobType(job Job, jobType string) bool {
	if jobType == "" || jobType == "all" {
		return true
	}
	return job.Type == jobType
}

func matchesExperience(job Job, bucket string) bool {
	if bucket == "" || bucket == "all" {
		return true
	}
	needles, ok := experienceBuckets[bucket]
	if !ok {
		return true
	}
	for _, needle := range needles {
		if strings.Contains(job.ExperienceRequired, needle) {
			return true
		}
	}
	return false
}

func matchesField(job Job, field string) bool {
	if field == "" || field == "all" {
		return true
	}
	aliases, ok := fieldAliases[field]
	if !ok {
		return job.Industry == field
	}
	for _, alias := range aliases {
		if job.Industry == alias {
			return true
		}
	}
	return false
}

// VisibleTo 是社区可见性规则的唯一实现，所有调用点共用：
//   - 未选择任何社区：一律可见；
//   - all_communities：一律可见；
//   - 未声明任何定向：一律可见（向后兼容的默认）；
//   - 否则要求 target_communities 与所选集合有交集。
func VisibleTo(job Job, selected map[string]struct{}) bool {
	if len(selected) == 0 {
		return true
	}
	if job.AllCommunities {
		return true
	}
	if len(job.TargetCommunities) == 0 {
		return true
	}
	for _, id := range job.TargetCommunities {
		if _, ok := selected[id]; ok {
			return true
		}
	}
	return false
}
