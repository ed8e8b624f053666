package yoda

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"go-hep.org/x/hep/hbook"

	"oscarflow/pkg/contract"
	"oscarflow/pkg/histo"
	"oscarflow/plugins/encoder/resultjson"
)

// Options: YODA 编码选项。
type Options struct {
	// Prefix: 直方图路径前缀，默认 "/oscarflow"。
	Prefix string `json:"prefix" yaml:"prefix"`
}

// Encoder 将每个 (强子, 轴, 观测量) 输出为一个 hbook.H1D，并以 YODA 文本串联。
// 数值仍为原始累加和：bin 的 SumW 即计数或 v1/v2 之和。
type Encoder struct {
	prefix string
}

var _ contract.Encoder = (*Encoder)(nil)

// New 创建 YODA 编码器。opts 可为 nil。
func New(opts *Options) *Encoder {
	e := &Encoder{prefix: "/oscarflow"}
	if opts != nil && opts.Prefix != "" {
		e.prefix = opts.Prefix
	}
	return e
}

var obsNames = [histo.NumObservables]string{"dN", "v1", "v2"}

// Histograms 按 hadron → (y: dN, v1, v2) → (pT: dN, v1, v2) 的顺序构造直方图。
func (e *Encoder) Histograms(res contract.Result) ([]*hbook.H1D, error) {
	if err := resultjson.Check(res); err != nil {
		return nil, err
	}
	axes := []struct {
		name    string
		centers []float64
		width   float64
		table   [][][3]float64
	}{
		{"y", res.YCenters, res.DY, res.YSpectra},
		{"pT", res.PTCenters, res.DPT, res.PTSpectra},
	}
	var out []*hbook.H1D
	for hi, sp := range res.Hadrons {
		for _, ax := range axes {
			if len(ax.centers) == 0 || ax.width <= 0 {
				return nil, fmt.Errorf("%w: empty %s axis", contract.ErrShapeMismatch, ax.name)
			}
			lo := ax.centers[0] - ax.width/2
			hi2 := lo + float64(len(ax.centers))*ax.width
			for obs := 0; obs < histo.NumObservables; obs++ {
				h := hbook.NewH1D(len(ax.centers), lo, hi2)
				for b, x := range ax.centers {
					if w := ax.table[hi][b][obs]; w != 0 {
						h.Fill(x, w)
					}
				}
				h.Ann["name"] = fmt.Sprintf("%s/%s/%s_%s", e.prefix, sp.Name, obsNames[obs], ax.name)
				h.Ann["Title"] = fmt.Sprintf("%s %s vs %s (raw sum)", sp.Name, obsNames[obs], ax.name)
				h.Ann["pdg"] = sp.Code
				h.Ann["events"] = res.Events
				h.Ann["pt_min_cut"] = res.PTMinCut
				h.Ann["pt_max_cut"] = res.PTMaxCut
				h.Ann["rapidity_cut"] = res.RapidityCut
				out = append(out, h)
			}
		}
	}
	return out, nil
}

func (e *Encoder) Encode(ctx context.Context, res contract.Result) (io.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hs, err := e.Histograms(res)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, h := range hs {
		b, err := h.MarshalYODA()
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", h.Name(), err)
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return &buf, nil
}
