package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"oscarflow/internal/binning"
	"oscarflow/internal/diag"
	"oscarflow/internal/event"
	"oscarflow/pkg/contract"
	"oscarflow/pkg/hadron"
	"oscarflow/pkg/histo"
	"oscarflow/pkg/oscar"
)

const (
	maxLineBytes  = 1 << 20
	ctxCheckEvery = 1024
)

// Kernel: 单个文件处理所需的只读组件，整次运行共享。
type Kernel struct {
	Adapter oscar.Adapter
	Engine  *binning.Engine
	Hadrons *hadron.Registry
}

// Stats: 单个文件的行/粒子计数。
type Stats struct {
	Lines      int64 `json:"lines"`
	Particles  int64 `json:"particles"`
	Ignored    int64 `json:"ignored"`     // 登记表之外的粒子
	Rejected   int64 `json:"rejected"`    // 运动学无定义（y 或方位角）
	AcceptedY  int64 `json:"accepted_y"`  // 计入快度直方图
	AcceptedPT int64 `json:"accepted_pt"` // 计入横动量直方图
	Discarded  int64 `json:"discarded"`   // 未闭合而丢弃的事件
}

// Add 累加另一份统计。
func (s *Stats) Add(o Stats) {
	s.Lines += o.Lines
	s.Particles += o.Particles
	s.Ignored += o.Ignored
	s.Rejected += o.Rejected
	s.AcceptedY += o.AcceptedY
	s.AcceptedPT += o.AcceptedPT
	s.Discarded += o.Discarded
}

// FileResult: 单个文件的处理结果。Spectra 仅包含已提交事件的贡献。
type FileResult struct {
	FileID       contract.FileID
	Events       int64
	Spectra      histo.Spectra
	Stats        Stats
	Unterminated bool
}

// ProcessFile 逐行处理一个粒子列表文件。
// 返回的错误：ErrStructure（整次运行失败）、ErrParse 或 I/O 错误（仅该文件失败）。
// 零事件是合法的空结果。
func ProcessFile(ctx context.Context, fileID contract.FileID, r io.Reader, k Kernel, logger *diag.Logger) (FileResult, error) {
	return processFile(ctx, fileID, r, k, logger, nil)
}

// processFile: progress 在每次提交事件后以累计事件数调用（可为 nil）。
func processFile(ctx context.Context, fileID contract.FileID, r io.Reader, k Kernel, logger *diag.Logger, progress func(events int64)) (FileResult, error) {
	y, pt := k.Engine.RapidityAxis(), k.Engine.PTAxis()
	tr := event.NewTracker(k.Hadrons.Len(), y, pt)
	res := FileResult{FileID: fileID}
	debug := logger.DebugEnabled()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	var lineNo int64
	fail := func(err error) (FileResult, error) {
		return FileResult{FileID: fileID}, fmt.Errorf("%s:%d: %w", fileID, lineNo, err)
	}
	for sc.Scan() {
		lineNo++
		if lineNo%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return FileResult{FileID: fileID}, err
			}
		}
		fields := strings.Fields(sc.Text())
		kind, err := k.Adapter.Classify(fields)
		if err != nil {
			return fail(err)
		}
		switch kind {
		case oscar.KindBlank, oscar.KindComment:
			continue
		case oscar.KindEventStart:
			if tr.Start() {
				logger.Warn("file_aggregator", string(diag.CodeStructure), "event reopened before end, previous event discarded",
					string(fileID), map[string]string{"line": strconv.FormatInt(lineNo, 10)})
			}
		case oscar.KindEventEnd:
			if err := tr.End(); err != nil {
				return fail(err)
			}
			if debug {
				logger.Debug("file_aggregator", "event committed", string(fileID),
					map[string]string{"event": strconv.FormatInt(tr.Committed(), 10)})
			}
			if progress != nil {
				progress(tr.Committed())
			}
		case oscar.KindParticle:
			ev, err := tr.Event()
			if err != nil {
				return fail(err)
			}
			res.Stats.Particles++
			code, err := k.Adapter.Code(fields)
			if err != nil {
				return fail(err)
			}
			idx, ok := k.Hadrons.Lookup(code)
			if !ok {
				res.Stats.Ignored++
				continue
			}
			p, err := k.Adapter.Particle(fields)
			if err != nil {
				return fail(err)
			}
			out := k.Engine.Fill(ev, idx, p.Mom)
			if out.Reject != binning.Accepted {
				res.Stats.Rejected++
				continue
			}
			if out.InRapidity {
				res.Stats.AcceptedY++
			}
			if out.InPT {
				res.Stats.AcceptedPT++
			}
		}
	}
	if err := sc.Err(); err != nil {
		return fail(err)
	}
	res.Unterminated = tr.Finish()
	res.Stats.Lines = lineNo
	res.Stats.Discarded = tr.Discarded()
	res.Events = tr.Committed()
	res.Spectra = tr.Spectra()
	return res, nil
}
