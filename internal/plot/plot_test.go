package plot

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oscarflow/pkg/contract"
	"oscarflow/pkg/hadron"
)

func sample() contract.Result {
	return contract.Result{
		Info: contract.ResultInfo,
		Hadrons: []hadron.Species{
			{Code: "211", Index: 0, Name: "pion_plus"},
			{Code: "2212", Index: 1, Name: "proton"},
		},
		Events:      2,
		PTMaxCut:    1000,
		RapidityCut: 1000,
		YCenters:    []float64{-0.25, 0.25},
		PTCenters:   []float64{0.25, 0.75},
		DY:          0.5,
		DPT:         0.5,
		YSpectra:    [][][3]float64{{{0, 0, 0}, {2, 1.5, -0.5}}, {{0, 0, 0}, {0, 0, 0}}},
		PTSpectra:   [][][3]float64{{{2, 1.5, -0.5}, {0, 0, 0}}, {{0, 0, 0}, {0, 0, 0}}},
	}
}

// UT-PLT-01: 按事件数与 bin 宽归一化；vn 为每 bin 平均值；无计数的强子略过
func TestNormalize(t *testing.T) {
	res := sample()
	want := map[string]float64{"dndy": 2, "v1_y": 0.75, "v2_y": -0.25}
	for _, f := range Figures[:3] {
		curves, err := Normalize(res, f)
		require.NoError(t, err, f.Name)
		require.Len(t, curves, 1, f.Name)
		assert.Equal(t, "pion_plus", curves[0].Hadron)
		bins := curves[0].Hist.Binning.Bins
		require.Len(t, bins, 2)
		// XY 返回 bin 下边界，中心取 XMid
		x, y := curves[0].Hist.XY(1)
		assert.InDelta(t, 0.0, x, 1e-12)
		assert.InDelta(t, 0.25, bins[1].XMid(), 1e-12)
		assert.InDelta(t, want[f.Name], y, 1e-12, f.Name)
		x, y = curves[0].Hist.XY(0)
		assert.InDelta(t, -0.5, x, 1e-12)
		assert.InDelta(t, -0.25, bins[0].XMid(), 1e-12)
		assert.Zero(t, y, f.Name)
	}

	curves, err := Normalize(res, Figures[3])
	require.NoError(t, err)
	_, y := curves[0].Hist.XY(0)
	assert.InDelta(t, 2.0, y, 1e-12)
}

func TestNormalizeErrors(t *testing.T) {
	res := sample()
	res.Events = 0
	_, err := Normalize(res, Figures[0])
	assert.ErrorIs(t, err, contract.ErrNoEvents)

	res = sample()
	res.YSpectra = res.YSpectra[:1]
	_, err = Normalize(res, Figures[0])
	assert.ErrorIs(t, err, contract.ErrShapeMismatch)
}

// UT-PLT-02: 六张图全部写出
func TestRender(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	paths, err := Render(context.Background(), sample(), dir, Options{})
	require.NoError(t, err)
	require.Len(t, paths, len(Figures))
	for i, p := range paths {
		assert.Equal(t, filepath.Join(dir, Figures[i].Name+".png"), p)
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestRenderCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	paths, err := Render(ctx, sample(), t.TempDir(), Options{Ext: "svg"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, paths)
}
