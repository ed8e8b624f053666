package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oscarflow/pkg/contract"
	"oscarflow/pkg/histo"
)

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	y, err := histo.RapidityAxis(0.5, 1)
	require.NoError(t, err)
	pt, err := histo.PTAxis(0.5, 2)
	require.NoError(t, err)
	return NewTracker(2, y, pt)
}

// UT-EVT-01: start → 填充 → end 提交
func TestCommit(t *testing.T) {
	tr := newTracker(t)
	assert.Equal(t, OutsideEvent, tr.State())
	assert.False(t, tr.Start())
	ev, err := tr.Event()
	require.NoError(t, err)
	ev.Y.Fill(1, 2, 0.5, 0.25)
	ev.PT.Fill(1, 0, 0.5, 0.25)
	// 提交前文件作用域不可见
	assert.True(t, tr.Spectra().Y.Empty())

	require.NoError(t, tr.End())
	assert.Equal(t, OutsideEvent, tr.State())
	assert.Equal(t, int64(1), tr.Committed())
	assert.Equal(t, 1.0, tr.Spectra().Y.At(1, 2, histo.Count))
	assert.Equal(t, 0.5, tr.Spectra().PT.At(1, 0, histo.V1))
	// 事件累加器已清零
	assert.True(t, ev.Y.Empty())
	assert.True(t, ev.PT.Empty())
	assert.False(t, tr.Finish())
}

// UT-EVT-02: 事件外的 end 为结构错误
func TestEndWithoutStart(t *testing.T) {
	tr := newTracker(t)
	err := tr.End()
	assert.ErrorIs(t, err, contract.ErrStructure)

	tr.Start()
	require.NoError(t, tr.End())
	assert.ErrorIs(t, tr.End(), contract.ErrStructure, "连续两个 end")
}

// UT-EVT-03: 事件外的粒子行为结构错误
func TestParticleOutsideEvent(t *testing.T) {
	tr := newTracker(t)
	_, err := tr.Event()
	assert.ErrorIs(t, err, contract.ErrStructure)
}

// UT-EVT-04: 未闭合的末尾事件被丢弃
func TestUnterminatedDiscarded(t *testing.T) {
	tr := newTracker(t)
	tr.Start()
	ev, _ := tr.Event()
	ev.Y.Fill(0, 0, 1, 1)
	require.NoError(t, tr.End())

	tr.Start()
	ev, _ = tr.Event()
	ev.Y.Fill(0, 1, 1, 1)
	ev.PT.Fill(0, 1, 1, 1)

	assert.True(t, tr.Finish())
	assert.Equal(t, int64(1), tr.Committed())
	assert.Equal(t, int64(1), tr.Discarded())
	assert.Equal(t, 1.0, tr.Spectra().Y.At(0, 0, histo.Count))
	assert.Equal(t, 0.0, tr.Spectra().Y.At(0, 1, histo.Count))
	assert.True(t, tr.Spectra().PT.Empty())
	assert.Equal(t, OutsideEvent, tr.State())
}

// UT-EVT-05: 未闭合事件后再次 start：旧事件丢弃，新事件从零开始
func TestReopenDiscards(t *testing.T) {
	tr := newTracker(t)
	tr.Start()
	ev, _ := tr.Event()
	ev.Y.Fill(0, 0, 1, 1)

	assert.True(t, tr.Start())
	ev, _ = tr.Event()
	assert.True(t, ev.Y.Empty())
	ev.Y.Fill(1, 1, 1, 1)
	require.NoError(t, tr.End())

	assert.Equal(t, int64(1), tr.Committed())
	assert.Equal(t, int64(1), tr.Discarded())
	assert.Equal(t, 0.0, tr.Spectra().Y.At(0, 0, histo.Count))
	assert.Equal(t, 1.0, tr.Spectra().Y.At(1, 1, histo.Count))
}

// 空事件（start 紧跟 end）计为一个提交事件
func TestEmptyEvent(t *testing.T) {
	tr := newTracker(t)
	tr.Start()
	require.NoError(t, tr.End())
	assert.Equal(t, int64(1), tr.Committed())
	assert.True(t, tr.Spectra().Y.Empty())
	assert.Equal(t, "outside_event", tr.State().String())
}
