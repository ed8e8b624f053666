package yoda

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oscarflow/pkg/contract"
	"oscarflow/pkg/hadron"
)

func sample() contract.Result {
	return contract.Result{
		Info:        contract.ResultInfo,
		Hadrons:     []hadron.Species{{Code: "211", Index: 0, Name: "pion_plus"}},
		Events:      2,
		PTMaxCut:    1000,
		RapidityCut: 1000,
		YCenters:    []float64{-0.25, 0.25},
		PTCenters:   []float64{0.25, 0.75},
		DY:          0.5,
		DPT:         0.5,
		YSpectra:    [][][3]float64{{{0, 0, 0}, {2, 1.5, -0.5}}},
		PTSpectra:   [][][3]float64{{{2, 1.5, -0.5}, {0, 0, 0}}},
	}
}

// UT-YODA-01: 每个强子 6 个直方图，bin 的 SumW 等于原始累加和
func TestHistograms(t *testing.T) {
	hs, err := New(nil).Histograms(sample())
	require.NoError(t, err)
	require.Len(t, hs, 6)
	assert.Equal(t, "/oscarflow/pion_plus/dN_y", hs[0].Name())
	assert.Equal(t, "/oscarflow/pion_plus/v2_pT", hs[5].Name())

	x, y := hs[0].XY(1)
	assert.InDelta(t, 0.0, x, 1e-12) // 第二个 bin 下沿
	assert.InDelta(t, 2.0, y, 1e-12)
	_, y = hs[1].XY(1)
	assert.InDelta(t, 1.5, y, 1e-12)
	_, y = hs[2].XY(1)
	assert.InDelta(t, -0.5, y, 1e-12)
	_, y = hs[3].XY(0)
	assert.InDelta(t, 2.0, y, 1e-12)
	assert.Equal(t, 2, hs[0].Len())
	assert.Equal(t, int64(2), hs[0].Ann["events"])
}

// UT-YODA-02: YODA 文本包含全部路径
func TestEncode(t *testing.T) {
	r, err := New(&Options{Prefix: "/run1"}).Encode(context.Background(), sample())
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	s := string(b)
	assert.Equal(t, 6, strings.Count(s, "BEGIN YODA_HISTO1D"))
	for _, p := range []string{"/run1/pion_plus/dN_y", "/run1/pion_plus/v1_y", "/run1/pion_plus/dN_pT"} {
		assert.Contains(t, s, p)
	}
}

func TestEncodeRejectsBadShape(t *testing.T) {
	bad := sample()
	bad.PTCenters = nil
	_, err := New(nil).Encode(context.Background(), bad)
	assert.ErrorIs(t, err, contract.ErrShapeMismatch)

	bad = sample()
	bad.DY = 0
	_, err = New(nil).Encode(context.Background(), bad)
	assert.ErrorIs(t, err, contract.ErrShapeMismatch)
}
