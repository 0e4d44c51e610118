package jobs

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// 可选排序键。
const (
	SortRelevance = "relevance"
	SortDate      = "date"
	SortSalary    = "salary"
	SortCompany   = "company"
)

// salaryToken 匹配薪资文本里第一个美元金额样式的数字（允许 $ 前缀和千分位逗号）。
var salaryToken = regexp.MustCompile(`\$?\s*(\d[\d,]*)`)

// Sort 按指定键对职位做稳定排序，返回新切片，不修改输入。
//
// relevance 只读取 scores 里已有的分数，缺失按 0 处理——绝不触发计算，
// 排序必须无副作用。未知的排序键按 relevance 处理。
func Sort(list []Job, key string, scores map[string]float64) []Job {
	out := make([]Job, len(list))
	copy(out, list)

	switch key {
	case SortDate:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		})
	case SortSalary:
		sort.SliceStable(out, func(i, j int) bool {
			return salaryValue(out[i].SalaryRange) > salaryValue(out[j].SalaryRange)
		})
	case SortCompany:
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].Company < out[j].Company
		})
	default:
		sort.SliceStable(out, func(i, j int) bool {
			return scores[out[i].ID] > scores[out[j].ID]
		})
	}

	return out
}

// salaryValue 从自由文本薪资里尽力提取一个数字。
// 解析不出来就按 0 参与排序，不报错。
func salaryValue(text string) float64 {
	match := salaryToken.FindStringSubmatch(text)
	if match == nil {
		return 0
	}
	cleaned := strings.ReplaceAll(match[1], ",", "")
	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return value
}
