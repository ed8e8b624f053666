package histo

import (
	"fmt"
	"math"
)

// Axis: 等宽 bin 的中心点序列。下边界 = Centers[0] - Width/2。
// 运行期只读。
type Axis struct {
	Centers []float64
	Width   float64
}

// RapidityAxis 构造以 0 为中心 bin 中点的对称快度轴。
// bin 数 = int(2*maxAbs/dy) + 1，实际边界按整数个 bin 取整。
func RapidityAxis(dy, maxAbs float64) (Axis, error) {
	if !(dy > 0) || math.IsInf(dy, 0) {
		return Axis{}, fmt.Errorf("histo: rapidity resolution must be > 0, got %v", dy)
	}
	if !(maxAbs >= 0) || math.IsInf(maxAbs, 0) {
		return Axis{}, fmt.Errorf("histo: max rapidity must be >= 0, got %v", maxAbs)
	}
	ny := int(2*maxAbs/dy) + 1
	half := float64(ny) * dy / 2
	return Axis{Centers: linspace(-half+dy/2, half-dy/2, ny), Width: dy}, nil
}

// PTAxis 构造 [0, npT*dpT) 上的横动量轴，npT = int(maxPT/dpT)。
func PTAxis(dpT, maxPT float64) (Axis, error) {
	if !(dpT > 0) || math.IsInf(dpT, 0) {
		return Axis{}, fmt.Errorf("histo: pT resolution must be > 0, got %v", dpT)
	}
	n := int(maxPT / dpT)
	if n < 1 || math.IsInf(maxPT, 0) {
		return Axis{}, fmt.Errorf("histo: max pT %v smaller than one bin of %v", maxPT, dpT)
	}
	return Axis{Centers: linspace(dpT/2, float64(n)*dpT-dpT/2, n), Width: dpT}, nil
}

// Len 返回 bin 数。
func (a Axis) Len() int { return len(a.Centers) }

// Lower 返回轴的下边界。
func (a Axis) Lower() float64 {
	if len(a.Centers) == 0 {
		return 0
	}
	return a.Centers[0] - a.Width/2
}

// Index 返回 floor((x - Lower)/Width)；仅当落在 [0, Len) 内时接受。
// NaN 与 ±Inf 一律拒绝。
func (a Axis) Index(x float64) (int, bool) {
	f := math.Floor((x - a.Lower()) / a.Width)
	if !(f >= 0 && f < float64(len(a.Centers))) {
		return 0, false
	}
	return int(f), true
}

// linspace 与 numpy.linspace 一致：start + i*step，末点精确等于 stop。
func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}
