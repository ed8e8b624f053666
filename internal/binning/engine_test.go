package binning

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go-hep.org/x/hep/fmom"

	"oscarflow/pkg/histo"
)

func defaultEngine(t *testing.T, cuts Cuts) *Engine {
	t.Helper()
	y, err := histo.RapidityAxis(0.2, 5.1)
	require.NoError(t, err)
	pt, err := histo.PTAxis(0.1, 4)
	require.NoError(t, err)
	e, err := New(y, pt, cuts)
	require.NoError(t, err)
	return e
}

// 以给定快度、px、py 构造质量为 m 的四动量。
func momAt(y, px, py, m float64) fmom.PxPyPzE {
	mt := math.Sqrt(m*m + px*px + py*py)
	return fmom.NewPxPyPzE(px, py, mt*math.Sinh(y), mt*math.Cosh(y))
}

// UT-BIN-01: 运动学量
func TestKinematic(t *testing.T) {
	k, rej := Kinematic(fmom.NewPxPyPzE(0.3, 0, 0, 1))
	require.Equal(t, Accepted, rej)
	assert.Equal(t, 0.0, k.Rapidity)
	assert.InDelta(t, 0.3, k.PT, 1e-15)
	assert.InDelta(t, 1.0, k.V1, 1e-15)
	assert.InDelta(t, 1.0, k.V2, 1e-15)

	k, rej = Kinematic(fmom.NewPxPyPzE(0, -0.5, 0, 1))
	require.Equal(t, Accepted, rej)
	assert.Equal(t, 0.0, k.V1)
	assert.Equal(t, -1.0, k.V2)

	k, rej = Kinematic(momAt(1.5, 0.3, 0.4, 0.14))
	require.Equal(t, Accepted, rej)
	assert.InDelta(t, 1.5, k.Rapidity, 1e-12)
	assert.InDelta(t, 0.5, k.PT, 1e-12)
	assert.InDelta(t, 0.6, k.V1, 1e-12)
	assert.InDelta(t, (0.09-0.16)/0.25, k.V2, 1e-12)
}

// UT-BIN-02: px=py=0 排除于两张直方图
func TestZeroPTExcluded(t *testing.T) {
	e := defaultEngine(t, DefaultCuts())
	s := histo.NewSpectra(9, e.RapidityAxis(), e.PTAxis())
	out := e.Fill(s, 0, fmom.NewPxPyPzE(0, 0, 0.5, 1))
	assert.Equal(t, AzimuthUndefined, out.Reject)
	assert.False(t, out.InRapidity)
	assert.False(t, out.InPT)
	assert.True(t, s.Y.Empty())
	assert.True(t, s.PT.Empty())
}

// UT-BIN-03: E == |pz| 排除；E < |pz| 同样排除
func TestLightlikeExcluded(t *testing.T) {
	e := defaultEngine(t, DefaultCuts())
	s := histo.NewSpectra(9, e.RapidityAxis(), e.PTAxis())
	for _, p := range []fmom.PxPyPzE{
		fmom.NewPxPyPzE(0.3, 0.1, 2, 2),
		fmom.NewPxPyPzE(0.3, 0.1, -2, 2),
		fmom.NewPxPyPzE(0.3, 0.1, 3, 2),
		fmom.NewPxPyPzE(0.3, 0.1, 0, 0),
	} {
		out := e.Fill(s, 1, p)
		assert.Equal(t, RapidityUndefined, out.Reject, "%v", p)
	}
	assert.True(t, s.Y.Empty())
	assert.True(t, s.PT.Empty())
}

// UT-BIN-04: pT 窗口只作用于快度直方图，快度切割只作用于横动量直方图
func TestCutsIndependent(t *testing.T) {
	e := defaultEngine(t, Cuts{PTMin: 0.2, PTMax: 1.0, Rapidity: 0.5})
	s := histo.NewSpectra(9, e.RapidityAxis(), e.PTAxis())

	// pT 在窗口外、|y| 在切割内：只进横动量直方图
	out := e.Fill(s, 0, momAt(0.0, 1.5, 0, 0.14))
	assert.False(t, out.InRapidity)
	assert.True(t, out.InPT)

	// pT 在窗口内、|y| 超出切割：只进快度直方图
	out = e.Fill(s, 0, momAt(2.0, 0.5, 0, 0.14))
	assert.True(t, out.InRapidity)
	assert.False(t, out.InPT)

	// 两者都不满足
	out = e.Fill(s, 0, momAt(2.0, 1.5, 0, 0.14))
	assert.False(t, out.InRapidity)
	assert.False(t, out.InPT)
	assert.Equal(t, Accepted, out.Reject)

	// pT 超出 pT 轴（4 GeV）且 |y| 超出快度轴
	out = e.Fill(s, 0, momAt(6.0, 5.0, 0, 0.14))
	assert.False(t, out.InRapidity)
	assert.False(t, out.InPT)
}

// 窗口为左闭右开
func TestPTWindowClosedOpen(t *testing.T) {
	e := defaultEngine(t, Cuts{PTMin: 0.5, PTMax: 1.0, Rapidity: 1000})
	k := Kinematics{Rapidity: 0, PT: 0.5}
	_, yOK, _, _ := e.Bin(k)
	assert.True(t, yOK)
	k.PT = 1.0
	_, yOK, _, _ = e.Bin(k)
	assert.False(t, yOK)
	k.PT = math.Nextafter(0.5, 0)
	_, yOK, _, _ = e.Bin(k)
	assert.False(t, yOK)

	e = defaultEngine(t, Cuts{PTMin: 0, PTMax: 1000, Rapidity: 1.0})
	_, _, _, ptOK := e.Bin(Kinematics{Rapidity: -1.0, PT: 0.5})
	assert.False(t, ptOK, "|y| < cut 为严格不等式")
	_, _, _, ptOK = e.Bin(Kinematics{Rapidity: math.Nextafter(-1.0, 0), PT: 0.5})
	assert.True(t, ptOK)
}

// UT-BIN-05: 场景中的 π+：y≈0.05、px=0.3、py=0 落在 y 中心 0 的 bin，v1=v2=1
func TestPionScenarioBin(t *testing.T) {
	e := defaultEngine(t, DefaultCuts())
	s := histo.NewSpectra(9, e.RapidityAxis(), e.PTAxis())
	out := e.Fill(s, 0, momAt(0.05, 0.3, 0, 0.138))
	require.True(t, out.InRapidity)
	require.True(t, out.InPT)
	yb, _ := e.RapidityAxis().Index(0.05)
	assert.Equal(t, 25, yb)
	assert.InDelta(t, 0.0, e.RapidityAxis().Centers[yb], 1e-12)
	assert.Equal(t, 1.0, s.Y.At(0, 25, histo.Count))
	assert.InDelta(t, 1.0, s.Y.At(0, 25, histo.V1), 1e-12)
	assert.InDelta(t, 1.0, s.Y.At(0, 25, histo.V2), 1e-12)
	pb, _ := e.PTAxis().Index(0.3)
	assert.Equal(t, 1.0, s.PT.At(0, pb, histo.Count))
}

// UT-BIN-06: 分箱对无关粒子的重排保持确定性
func TestDeterministicUnderReordering(t *testing.T) {
	e := defaultEngine(t, DefaultCuts())
	rng := rand.New(rand.NewSource(7))
	type item struct {
		h int
		p fmom.PxPyPzE
	}
	var items []item
	for i := 0; i < 500; i++ {
		// 取 1/64 的整数倍，保证求和与顺序无关（精确可表示）
		px := float64(rng.Intn(128)-64) / 64
		py := float64(rng.Intn(128)-64) / 64
		items = append(items, item{h: rng.Intn(9), p: momAt(float64(rng.Intn(80)-40)/8, px, py, 0.5)})
	}
	fill := func(order []item) histo.Spectra {
		s := histo.NewSpectra(9, e.RapidityAxis(), e.PTAxis())
		for _, it := range order {
			e.Fill(s, it.h, it.p)
		}
		return s
	}
	a := fill(items)
	shuffled := append([]item(nil), items...)
	rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	b := fill(shuffled)

	approx := cmp.Comparer(func(x, y float64) bool { return math.Abs(x-y) <= 1e-9*math.Max(1, math.Abs(x)) })
	assert.Empty(t, cmp.Diff(a.Y.Table(), b.Y.Table(), approx))
	assert.Empty(t, cmp.Diff(a.PT.Table(), b.PT.Table(), approx))
	// 计数列必须完全一致
	for h := 0; h < 9; h++ {
		for bin := 0; bin < a.Y.Bins(); bin++ {
			require.Equal(t, a.Y.At(h, bin, histo.Count), b.Y.At(h, bin, histo.Count))
		}
	}
}

func TestNewErrors(t *testing.T) {
	y, _ := histo.RapidityAxis(0.2, 5.1)
	pt, _ := histo.PTAxis(0.1, 4)
	_, err := New(y, pt, Cuts{PTMin: 1, PTMax: 1, Rapidity: 1})
	assert.Error(t, err)
	_, err = New(y, pt, Cuts{PTMin: 0, PTMax: 1, Rapidity: math.NaN()})
	assert.Error(t, err)
	_, err = New(histo.Axis{}, pt, DefaultCuts())
	assert.Error(t, err)
}
