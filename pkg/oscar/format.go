package oscar

import (
	"fmt"
	"strconv"
	"strings"

	"go-hep.org/x/hep/fmom"

	"oscarflow/pkg/contract"
)

// Format: Oscar 2013 变体（带标签的枚举，启动时选定一次）。
type Format int

const (
	SMASH Format = iota + 1
	BHACQGP
)

// 变体名称（配置/CLI 中使用的字面值）。
const (
	NameSMASH   = "SMASH"
	NameBHACQGP = "BHAC-QGP"
)

func (f Format) String() string {
	switch f {
	case SMASH:
		return NameSMASH
	case BHACQGP:
		return NameBHACQGP
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// ParseFormat 严格匹配变体名；未知名称返回 ErrUnknownFormat。
func ParseFormat(name string) (Format, error) {
	switch strings.TrimSpace(name) {
	case NameSMASH:
		return SMASH, nil
	case NameBHACQGP:
		return BHACQGP, nil
	default:
		return 0, fmt.Errorf("%w: %q (expected %s or %s)", contract.ErrUnknownFormat, name, NameSMASH, NameBHACQGP)
	}
}

// Formats 列出全部已知变体名。
func Formats() []string { return []string{NameSMASH, NameBHACQGP} }

// Kind: 行分类结果。
type Kind int

const (
	KindBlank Kind = iota
	KindComment
	KindEventStart
	KindEventEnd
	KindParticle
)

func (k Kind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindComment:
		return "comment"
	case KindEventStart:
		return "event_start"
	case KindEventEnd:
		return "event_end"
	case KindParticle:
		return "particle"
	default:
		return "unknown"
	}
}

const (
	commentMarker = '#'
	// 事件块行：# <event token> <number> <label> ...
	eventTokenField = 1
	eventLabelField = 3
)

// Particle: 粒子行中与分析相关的字段。
// 位置与时间目前不参与分箱，仅保留以备位置切割。
type Particle struct {
	Code       string
	T, X, Y, Z float64
	Mom        fmom.PxPyPzE
}

// Adapter: 某一变体的列偏移与事件标记。值类型，只读。
type Adapter struct {
	format     Format
	codeField  int
	momField   int // E, px, py, pz 连续四列的起点
	eventToken string
	startLabel string
	endLabel   string
}

// NewAdapter 返回变体对应的适配器；未知变体返回 ErrUnknownFormat。
func NewAdapter(f Format) (Adapter, error) {
	switch f {
	case SMASH:
		return Adapter{format: f, codeField: 9, momField: 5, eventToken: "event", startLabel: "out", endLabel: "end"}, nil
	case BHACQGP:
		return Adapter{format: f, codeField: 8, momField: 4, eventToken: "Event", startLabel: "start", endLabel: "end"}, nil
	default:
		return Adapter{}, fmt.Errorf("%w: %v", contract.ErrUnknownFormat, f)
	}
}

// Format 返回适配器对应的变体。
func (a Adapter) Format() Format { return a.format }

// MinParticleFields 为粒子行所需的最少列数。
func (a Adapter) MinParticleFields() int {
	n := a.codeField
	if m := a.momField + 3; m > n {
		n = m
	}
	return n + 1
}

// Classify 根据首列与事件块标记判定行类型。
// 事件块行标签既非 start 也非 end 时返回 ErrStructure。
func (a Adapter) Classify(fields []string) (Kind, error) {
	if len(fields) == 0 {
		return KindBlank, nil
	}
	if fields[0][0] != commentMarker {
		return KindParticle, nil
	}
	if len(fields) <= eventTokenField || fields[eventTokenField] != a.eventToken {
		return KindComment, nil
	}
	if len(fields) <= eventLabelField {
		return KindComment, fmt.Errorf("%w: truncated event line %q", contract.ErrParse, strings.Join(fields, " "))
	}
	switch fields[eventLabelField] {
	case a.startLabel:
		return KindEventStart, nil
	case a.endLabel:
		return KindEventEnd, nil
	default:
		return KindComment, fmt.Errorf("%w: unknown event label %q", contract.ErrStructure, fields[eventLabelField])
	}
}

// Code 取粒子的 PDG 编码字段（逐字，不做数值归一）。
func (a Adapter) Code(fields []string) (string, error) {
	if len(fields) < a.MinParticleFields() {
		return "", fmt.Errorf("%w: particle line has %d fields, want >= %d", contract.ErrParse, len(fields), a.MinParticleFields())
	}
	return fields[a.codeField], nil
}

// Particle 解析位置、时间与四动量。
func (a Adapter) Particle(fields []string) (Particle, error) {
	code, err := a.Code(fields)
	if err != nil {
		return Particle{}, err
	}
	var pos [4]float64
	for i := range pos {
		if pos[i], err = parseField(fields, i); err != nil {
			return Particle{}, err
		}
	}
	var mom [4]float64 // E, px, py, pz
	for i := range mom {
		if mom[i], err = parseField(fields, a.momField+i); err != nil {
			return Particle{}, err
		}
	}
	return Particle{
		Code: code,
		T:    pos[0], X: pos[1], Y: pos[2], Z: pos[3],
		Mom: fmom.NewPxPyPzE(mom[1], mom[2], mom[3], mom[0]),
	}, nil
}

func parseField(fields []string, i int) (float64, error) {
	v, err := strconv.ParseFloat(fields[i], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: field %d %q: %v", contract.ErrParse, i, fields[i], err)
	}
	return v, nil
}
