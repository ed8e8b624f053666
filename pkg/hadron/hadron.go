package hadron

import (
	"fmt"
	"sort"
)

// Species: 登记表条目。Code 为 PDG 编码的字符串形式（与输入文件中的字段逐字比较）。
type Species struct {
	Code  string `json:"code"`
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// Registry: 启动时构建、运行期只读的 code → (index, name) 映射。
// Index 稠密：0..N-1。
type Registry struct {
	byCode  map[string]int
	species []Species
}

// defaultSpecies 为默认统计的强子集合。
var defaultSpecies = []Species{
	{Code: "211", Index: 0, Name: "pion_plus"},
	{Code: "-211", Index: 1, Name: "pion_minus"},
	{Code: "111", Index: 2, Name: "pion_0"},
	{Code: "321", Index: 3, Name: "kaon_plus"},
	{Code: "-321", Index: 4, Name: "kaon_minus"},
	{Code: "2212", Index: 5, Name: "proton"},
	{Code: "-2212", Index: 6, Name: "anti-proton"},
	{Code: "2112", Index: 7, Name: "neutron"},
	{Code: "-2112", Index: 8, Name: "anti-neutron"},
}

// Default 返回默认登记表。
func Default() *Registry {
	r, err := New(defaultSpecies)
	if err != nil {
		panic(err)
	}
	return r
}

// New 校验并构建登记表：code 不得重复，index 必须恰好覆盖 0..N-1。
func New(species []Species) (*Registry, error) {
	if len(species) == 0 {
		return nil, fmt.Errorf("hadron: empty registry")
	}
	sorted := make([]Species, len(species))
	copy(sorted, species)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Index < sorted[j].Index })
	byCode := make(map[string]int, len(sorted))
	for i, s := range sorted {
		if s.Index != i {
			return nil, fmt.Errorf("hadron: indices not dense, expected %d got %d (%s)", i, s.Index, s.Code)
		}
		if s.Code == "" {
			return nil, fmt.Errorf("hadron: empty code at index %d", i)
		}
		if _, dup := byCode[s.Code]; dup {
			return nil, fmt.Errorf("hadron: duplicate code %q", s.Code)
		}
		byCode[s.Code] = s.Index
	}
	return &Registry{byCode: byCode, species: sorted}, nil
}

// Lookup 返回 code 对应的 index；未登记的粒子由调用方静默忽略。
func (r *Registry) Lookup(code string) (int, bool) {
	i, ok := r.byCode[code]
	return i, ok
}

func (r *Registry) Len() int { return len(r.species) }

// Name 返回 index 对应的名称；越界返回空串。
func (r *Registry) Name(index int) string {
	if index < 0 || index >= len(r.species) {
		return ""
	}
	return r.species[index].Name
}

// Species 按 index 升序返回副本。
func (r *Registry) Species() []Species {
	out := make([]Species, len(r.species))
	copy(out, r.species)
	return out
}
