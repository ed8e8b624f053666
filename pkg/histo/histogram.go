package histo

import (
	"fmt"

	"oscarflow/pkg/contract"
)

// Observable 为第三维索引。
type Observable int

const (
	Count Observable = iota
	V1
	V2
	// NumObservables 为第三维长度。
	NumObservables = 3
)

// Histogram: 稠密三维数组 [hadron][bin][observable]。
// 非并发安全；每个作用域（事件/文件/运行）各持一份。
type Histogram struct {
	hadrons int
	bins    int
	data    []float64
}

// New 创建全零直方图。
func New(hadrons, bins int) *Histogram {
	if hadrons < 0 || bins < 0 {
		panic(fmt.Sprintf("histo: negative shape %dx%d", hadrons, bins))
	}
	return &Histogram{hadrons: hadrons, bins: bins, data: make([]float64, hadrons*bins*NumObservables)}
}

func (h *Histogram) Hadrons() int { return h.hadrons }
func (h *Histogram) Bins() int    { return h.bins }

func (h *Histogram) off(hadron, bin int) int { return (hadron*h.bins + bin) * NumObservables }

// Fill 计数加一，并累加 v1、v2。
func (h *Histogram) Fill(hadron, bin int, v1, v2 float64) {
	o := h.off(hadron, bin)
	h.data[o+int(Count)]++
	h.data[o+int(V1)] += v1
	h.data[o+int(V2)] += v2
}

// At 读取单个格子。
func (h *Histogram) At(hadron, bin int, obs Observable) float64 {
	return h.data[h.off(hadron, bin)+int(obs)]
}

// Merge 逐元素累加 other；形状不一致返回 ErrShapeMismatch。
func (h *Histogram) Merge(other *Histogram) error {
	if other == nil {
		return nil
	}
	if other.hadrons != h.hadrons || other.bins != h.bins {
		return fmt.Errorf("%w: %dx%d vs %dx%d", contract.ErrShapeMismatch, h.hadrons, h.bins, other.hadrons, other.bins)
	}
	for i, v := range other.data {
		h.data[i] += v
	}
	return nil
}

// Reset 清零。
func (h *Histogram) Reset() { clear(h.data) }

// Empty 报告是否全零。
func (h *Histogram) Empty() bool {
	for _, v := range h.data {
		if v != 0 {
			return false
		}
	}
	return true
}

// Table 导出为 [hadron][bin][3] 嵌套切片（持久化用）。
func (h *Histogram) Table() [][][3]float64 {
	out := make([][][3]float64, h.hadrons)
	for i := range out {
		out[i] = make([][3]float64, h.bins)
		for b := range out[i] {
			o := h.off(i, b)
			copy(out[i][b][:], h.data[o:o+NumObservables])
		}
	}
	return out
}

// FromTable 为 Table 的逆过程；行长度不一致时报错。
func FromTable(t [][][3]float64) (*Histogram, error) {
	bins := 0
	if len(t) > 0 {
		bins = len(t[0])
	}
	h := New(len(t), bins)
	for i, row := range t {
		if len(row) != bins {
			return nil, fmt.Errorf("%w: hadron %d has %d bins, want %d", contract.ErrShapeMismatch, i, len(row), bins)
		}
		for b, cell := range row {
			copy(h.data[h.off(i, b):], cell[:])
		}
	}
	return h, nil
}

// Spectra 将同一作用域的快度与横动量直方图配对。
type Spectra struct {
	Y  *Histogram
	PT *Histogram
}

// NewSpectra 按轴长度创建全零 Spectra。
func NewSpectra(hadrons int, y, pt Axis) Spectra {
	return Spectra{Y: New(hadrons, y.Len()), PT: New(hadrons, pt.Len())}
}

// Merge 同时合并两张直方图。
func (s Spectra) Merge(other Spectra) error {
	if err := s.Y.Merge(other.Y); err != nil {
		return fmt.Errorf("rapidity: %w", err)
	}
	if err := s.PT.Merge(other.PT); err != nil {
		return fmt.Errorf("pt: %w", err)
	}
	return nil
}

func (s Spectra) Reset() {
	s.Y.Reset()
	s.PT.Reset()
}
