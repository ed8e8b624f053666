package event

import (
	"fmt"

	"oscarflow/pkg/contract"
	"oscarflow/pkg/histo"
)

// State: 事件边界状态机的两个状态。
type State int

const (
	OutsideEvent State = iota
	InEvent
)

func (s State) String() string {
	if s == InEvent {
		return "in_event"
	}
	return "outside_event"
}

// Tracker: 事件边界状态机 + 事件作用域累加器。
// - 事件内粒子只写入 event；
// - 遇到 end 时才并入 file（提交），随后清零 event；
// - 未闭合的事件（重复 start 或流结束）整体丢弃。
// 非并发安全：每个文件一个 Tracker。
type Tracker struct {
	state     State
	event     histo.Spectra
	file      histo.Spectra
	committed int64
	discarded int64
}

// NewTracker 按登记表大小与轴长度分配两套直方图。
func NewTracker(hadrons int, y, pt histo.Axis) *Tracker {
	return &Tracker{
		event: histo.NewSpectra(hadrons, y, pt),
		file:  histo.NewSpectra(hadrons, y, pt),
	}
}

func (t *Tracker) State() State { return t.state }

// Start 处理事件开始标记。
// 若上一事件仍未闭合，返回 reopened=true：其贡献已丢弃，新事件从零开始。
func (t *Tracker) Start() (reopened bool) {
	if t.state == InEvent {
		t.discard()
		reopened = true
	}
	t.state = InEvent
	return reopened
}

// End 处理事件结束标记：提交当前事件。
// 事件外遇到 end 为结构错误。
func (t *Tracker) End() error {
	if t.state != InEvent {
		return fmt.Errorf("%w: end of event without matching start", contract.ErrStructure)
	}
	if err := t.file.Merge(t.event); err != nil {
		return err
	}
	t.event.Reset()
	t.committed++
	t.state = OutsideEvent
	return nil
}

// Event 返回当前事件的累加器；事件外的粒子行为结构错误。
func (t *Tracker) Event() (histo.Spectra, error) {
	if t.state != InEvent {
		return histo.Spectra{}, fmt.Errorf("%w: particle line outside of an event", contract.ErrStructure)
	}
	return t.event, nil
}

// Finish 在流结束时调用。若最后一个事件未闭合，丢弃它并返回 true。
func (t *Tracker) Finish() (unterminated bool) {
	if t.state != InEvent {
		return false
	}
	t.discard()
	t.state = OutsideEvent
	return true
}

func (t *Tracker) discard() {
	t.event.Reset()
	t.discarded++
}

// Committed 返回已提交的事件数。
func (t *Tracker) Committed() int64 { return t.committed }

// Discarded 返回被丢弃的未闭合事件数。
func (t *Tracker) Discarded() int64 { return t.discarded }

// Spectra 返回文件作用域的累计结果。调用方在 Finish 之后读取。
func (t *Tracker) Spectra() histo.Spectra { return t.file }
