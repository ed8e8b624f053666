// Package plot 将持久化的运行结果渲染为归一化谱图。
// 核心输出保持原始累加和；归一化只在这里发生：
// dN/dy = count / (events·dy)，vn(bin) = vn_sum / count。
package plot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go-hep.org/x/hep/hbook"
	"go-hep.org/x/hep/hplot"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"oscarflow/pkg/contract"
	"oscarflow/pkg/histo"
	"oscarflow/plugins/encoder/resultjson"
)

// Axis 选择快度或横动量轴。
type Axis int

const (
	AxisY Axis = iota
	AxisPT
)

// Figure: 一张图的定义。
type Figure struct {
	Name   string
	Title  string
	XLabel string
	YLabel string
	Axis   Axis
	Obs    histo.Observable
}

// Figures 为 plot 子命令输出的六张图。
var Figures = []Figure{
	{Name: "dndy", Title: "dN/dy", XLabel: "y", YLabel: "dN/dy", Axis: AxisY, Obs: histo.Count},
	{Name: "v1_y", Title: "v1(y)", XLabel: "y", YLabel: "v1", Axis: AxisY, Obs: histo.V1},
	{Name: "v2_y", Title: "v2(y)", XLabel: "y", YLabel: "v2", Axis: AxisY, Obs: histo.V2},
	{Name: "dndpt", Title: "dN/dpT", XLabel: "pT [GeV]", YLabel: "dN/dpT [1/GeV]", Axis: AxisPT, Obs: histo.Count},
	{Name: "v1_pt", Title: "v1(pT)", XLabel: "pT [GeV]", YLabel: "v1", Axis: AxisPT, Obs: histo.V1},
	{Name: "v2_pt", Title: "v2(pT)", XLabel: "pT [GeV]", YLabel: "v2", Axis: AxisPT, Obs: histo.V2},
}

// Options: 渲染选项。
type Options struct {
	// Width/Height: 图像尺寸；为 0 时 6x4 英寸。
	Width  vg.Length
	Height vg.Length
	// Ext: 输出扩展名（.png|.svg|.pdf）；为空取 .png。
	Ext string
}

// Curve: 单个强子在一张图上的归一化曲线。
type Curve struct {
	Hadron string
	Hist   *hbook.H1D
}

// Normalize 计算一张图的全部曲线；没有任何计数的强子被略过。
func Normalize(res contract.Result, f Figure) ([]Curve, error) {
	if err := resultjson.Check(res); err != nil {
		return nil, err
	}
	if res.Events <= 0 {
		return nil, fmt.Errorf("%w: result has %d events", contract.ErrNoEvents, res.Events)
	}
	centers, width, table := res.YCenters, res.DY, res.YSpectra
	if f.Axis == AxisPT {
		centers, width, table = res.PTCenters, res.DPT, res.PTSpectra
	}
	if len(centers) == 0 || width <= 0 {
		return nil, fmt.Errorf("%w: empty axis in %s", contract.ErrShapeMismatch, f.Name)
	}
	lo := centers[0] - width/2
	hi := lo + float64(len(centers))*width
	norm := float64(res.Events) * width

	var out []Curve
	for i, sp := range res.Hadrons {
		rows := table[i]
		total := 0.0
		for _, r := range rows {
			total += r[histo.Count]
		}
		if total == 0 {
			continue
		}
		h := hbook.NewH1D(len(centers), lo, hi)
		for b, x := range centers {
			n := rows[b][histo.Count]
			if n == 0 {
				continue
			}
			if f.Obs == histo.Count {
				h.Fill(x, n/norm)
			} else {
				h.Fill(x, rows[b][f.Obs]/n)
			}
		}
		h.Ann["name"] = sp.Name
		out = append(out, Curve{Hadron: sp.Name, Hist: h})
	}
	return out, nil
}

// Render 把全部图写入 dir，返回输出路径（按 Figures 顺序）。
func Render(ctx context.Context, res contract.Result, dir string, opts Options) ([]string, error) {
	w, h := opts.Width, opts.Height
	if w <= 0 {
		w = 6 * vg.Inch
	}
	if h <= 0 {
		h = 4 * vg.Inch
	}
	ext := strings.ToLower(strings.TrimSpace(opts.Ext))
	if ext == "" {
		ext = ".png"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(Figures))
	for _, f := range Figures {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		curves, err := Normalize(res, f)
		if err != nil {
			return paths, err
		}
		p := hplot.New()
		p.Title.Text = fmt.Sprintf("%s (%d events)", f.Title, res.Events)
		p.Title.Padding = 2 * vg.Millimeter
		p.X.Label.Text = f.XLabel
		p.Y.Label.Text = f.YLabel
		p.Legend.Top = true
		p.Legend.Padding = 2 * vg.Millimeter
		for i, c := range curves {
			hh := hplot.NewH1D(c.Hist)
			hh.LineStyle.Color = plotutil.Color(i)
			hh.LineStyle.Dashes = plotutil.Dashes(i / len(plotutil.DefaultColors))
			p.Add(hh)
			p.Legend.Add(c.Hadron, hh)
		}
		out := filepath.Join(dir, f.Name+ext)
		if err := p.Save(w, h, out); err != nil {
			return paths, fmt.Errorf("save %s: %w", out, err)
		}
		paths = append(paths, out)
	}
	return paths, nil
}
