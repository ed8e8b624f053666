package binning

import (
	"fmt"
	"math"

	"go-hep.org/x/hep/fmom"

	"oscarflow/pkg/histo"
)

// Cuts: 接受窗口。
// 快度直方图要求 PTMin <= pT < PTMax；横动量直方图要求 |y| < Rapidity。
type Cuts struct {
	PTMin    float64
	PTMax    float64
	Rapidity float64
}

// DefaultCuts 等价于不做切割。
func DefaultCuts() Cuts { return Cuts{PTMin: 0, PTMax: 1000, Rapidity: 1000} }

// Kinematics: 由四动量导出的分箱量。
type Kinematics struct {
	Rapidity float64
	PT       float64
	V1       float64
	V2       float64
}

// Reject 说明粒子被排除的原因。
type Reject int

const (
	Accepted Reject = iota
	// RapidityUndefined: (E-pz)(E+pz) <= 0。
	RapidityUndefined
	// AzimuthUndefined: px = py = 0，流角无定义。
	AzimuthUndefined
)

// Kinematic 计算快度、横动量与 v1/v2。
// 不使用 fmom 的 Rapidity：其对 E==|pz| 的处理与这里的排除规则不同。
func Kinematic(p fmom.PxPyPzE) (Kinematics, Reject) {
	e, px, py, pz := p.E(), p.Px(), p.Py(), p.Pz()
	if (e-pz)*(e+pz) <= 0 {
		return Kinematics{}, RapidityUndefined
	}
	y := 0.5 * math.Log((e+pz)/(e-pz))
	pt2 := px*px + py*py
	if pt2 == 0 {
		return Kinematics{}, AzimuthUndefined
	}
	pt := math.Sqrt(pt2)
	return Kinematics{
		Rapidity: y,
		PT:       pt,
		V1:       px / pt,
		V2:       (px*px - py*py) / pt2,
	}, Accepted
}

// Outcome: 单个粒子的分箱结果。两张直方图的接受相互独立。
type Outcome struct {
	Reject     Reject
	InRapidity bool
	InPT       bool
}

// Engine: 纯计算的分箱器；轴与切割在构造后只读，可被多个 worker 共享。
type Engine struct {
	y    histo.Axis
	pt   histo.Axis
	cuts Cuts
}

// New 校验切割窗口并构造 Engine。
func New(y, pt histo.Axis, cuts Cuts) (*Engine, error) {
	if y.Len() == 0 || pt.Len() == 0 {
		return nil, fmt.Errorf("binning: empty axis (y=%d pt=%d)", y.Len(), pt.Len())
	}
	if math.IsNaN(cuts.PTMin) || math.IsNaN(cuts.PTMax) || math.IsNaN(cuts.Rapidity) {
		return nil, fmt.Errorf("binning: NaN cut")
	}
	if !(cuts.PTMin < cuts.PTMax) {
		return nil, fmt.Errorf("binning: pt_min %v must be < pt_max %v", cuts.PTMin, cuts.PTMax)
	}
	return &Engine{y: y, pt: pt, cuts: cuts}, nil
}

func (e *Engine) RapidityAxis() histo.Axis { return e.y }
func (e *Engine) PTAxis() histo.Axis       { return e.pt }
func (e *Engine) Cuts() Cuts               { return e.cuts }

// Bin 返回两条轴上的 bin 与各自是否被接受。
func (e *Engine) Bin(k Kinematics) (yBin int, yOK bool, ptBin int, ptOK bool) {
	yBin, yOK = e.y.Index(k.Rapidity)
	yOK = yOK && k.PT >= e.cuts.PTMin && k.PT < e.cuts.PTMax
	ptBin, ptOK = e.pt.Index(k.PT)
	ptOK = ptOK && math.Abs(k.Rapidity) < e.cuts.Rapidity
	return yBin, yOK, ptBin, ptOK
}

// Fill 将粒子计入 s（事件作用域）。hadron 为登记表 index。
func (e *Engine) Fill(s histo.Spectra, hadron int, p fmom.PxPyPzE) Outcome {
	k, rej := Kinematic(p)
	if rej != Accepted {
		return Outcome{Reject: rej}
	}
	yBin, yOK, ptBin, ptOK := e.Bin(k)
	if yOK {
		s.Y.Fill(hadron, yBin, k.V1, k.V2)
	}
	if ptOK {
		s.PT.Fill(hadron, ptBin, k.V1, k.V2)
	}
	return Outcome{InRapidity: yOK, InPT: ptOK}
}
