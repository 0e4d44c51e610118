package community

import (
	"sort"
	"strings"

	"jobgate/internal/upstream"
)

// Mode 控制选择器的单选/多选行为。
type Mode int

const (
	SingleSelect Mode = iota
	MultiSelect
)

// Selector 是社区选择控件的状态模型：选中集合加展示用的搜索词。
// 搜索只影响展示列表，从不改动选中集合。
type Selector struct {
	mode     Mode
	selected map[string]struct{}
	query    string
}

// NewSelector 构造选择器。
func NewSelector(mode Mode) *Selector {
	return &Selector{
		mode:     mode,
		selected: make(map[string]struct{}),
	}
}

// Toggle 多选模式下翻转一个 id：新选中集 = 当前集合与 {id} 的对称差。
// 单选模式下等价于 Choose。
func (s *Selector) Toggle(id string) {
	if s.mode == SingleSelect {
		s.Choose(id)
		return
	}
	if _, ok := s.selected[id]; ok {
		delete(s.selected, id)
	} else {
		s.selected[id] = struct{}{}
	}
}

// Choose 单选：替换整个选中集合。返回 true 表示选择已提交（下拉应当关闭）。
func (s *Selector) Choose(id string) bool {
	s.selected = map[string]struct{}{id: {}}
	return s.mode == SingleSelect
}

// ToggleAll 在空集与全集之间切换：只要还有未选中的就全选，
// 已是全集则清空。不记忆之前的部分选择。
func (s *Selector) ToggleAll(all []upstream.Community) {
	allSelected := len(all) > 0
	for _, c := range all {
		if _, ok := s.selected[c.ID]; !ok {
			allSelected = false
			break
		}
	}

	if allSelected {
		s.selected = make(map[string]struct{})
		return
	}

	s.selected = make(map[string]struct{}, len(all))
	for _, c := range all {
		s.selected[c.ID] = struct{}{}
	}
}

// SetQuery 更新搜索词。
func (s *Selector) SetQuery(query string) {
	s.query = query
}

// Visible 按搜索词过滤展示列表：名称、类目、描述的大小写不敏感子串匹配。
func (s *Selector) Visible(all []upstream.Community) []upstream.Community {
	query := strings.ToLower(strings.TrimSpace(s.query))
	if query == "" {
		return all
	}

	out := make([]upstream.Community, 0, len(all))
	for _, c := range all {
		if strings.Contains(strings.ToLower(c.Name), query) ||
			strings.Contains(strings.ToLower(c.Category), query) ||
			strings.Contains(strings.ToLower(c.Description), query) {
			out = append(out, c)
		}
	}
	return out
}

// IsSelected 查询某个 id 是否在选中集合里。
func (s *Selector) IsSelected(id string) bool {
	_, ok := s.selected[id]
	return ok
}

// Selected 返回排序后的选中 id 列表，保证输出确定。
func (s *Selector) Selected() []string {
	out := make([]string, 0, len(s.selected))
	for id := range s.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
