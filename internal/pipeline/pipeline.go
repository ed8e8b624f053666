package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"oscarflow/internal/diag"
	"oscarflow/pkg/contract"
	"oscarflow/pkg/histo"
)

// - 并发只在此层：每个文件一个 worker（errgroup.SetLimit），组件本身同步、无内部并发。
// - 确定性：文件结果按声明顺序落槽，全部完成后按序归并，结果与并发度无关。
// - 首错取消：结构错误使整次运行失败并取消其余 worker；文件级错误仅跳过该文件。

// Components 聚合运行所需的可替换组件。
type Components struct {
	Reader  contract.Reader
	Encoder contract.Encoder
	Writer  contract.Writer
}

// Settings 运行期配置。
type Settings struct {
	Inputs      []string
	Output      string
	Concurrency int
	Kernel      Kernel
	// Status: 终端提示（可选）。
	Status *diag.Terminal
}

// 文件处理结局
const (
	FileUsed   = "used"
	FileEmpty  = "empty"
	FileFailed = "failed"
)

// FileReport: 单个文件在运行汇总中的记录。
type FileReport struct {
	FileID       contract.FileID `json:"file_id"`
	Status       string          `json:"status"`
	Events       int64           `json:"events"`
	Unterminated bool            `json:"unterminated,omitempty"`
	Stats        Stats           `json:"stats"`
	Err          string          `json:"error,omitempty"`
}

// Totals: 运行作用域累加结果（显式对象，不使用全局状态）。
type Totals struct {
	Events  int64
	Spectra histo.Spectra
	Stats   Stats
	Files   []FileReport
}

// NewTotals 构造空的运行累加器。
func NewTotals(hadrons int, y, pt histo.Axis) *Totals {
	return &Totals{Spectra: histo.NewSpectra(hadrons, y, pt)}
}

// Add 将一个文件结果并入运行累加器。
func (t *Totals) Add(r FileResult) error {
	if err := t.Spectra.Merge(r.Spectra); err != nil {
		return fmt.Errorf("%s: %w", r.FileID, err)
	}
	t.Events += r.Events
	t.Stats.Add(r.Stats)
	return nil
}

type slot struct {
	id  contract.FileID
	res FileResult
	err error
}

// Aggregate 遍历全部输入并归并为运行结果。
// 结构错误立即失败；文件级失败与空文件记为警告后跳过；总事件数为 0 返回 ErrNoEvents。
func Aggregate(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (*Totals, error) {
	if err := sanity(comp, set); err != nil {
		return nil, fmt.Errorf("sanity: %w", err)
	}
	limit := set.Concurrency
	if limit < 1 {
		limit = 1
	}
	k := set.Kernel
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var slots []*slot
	yield := func(fileID contract.FileID, open contract.Opener) error {
		if err := gctx.Err(); err != nil {
			return err
		}
		s := &slot{id: fileID}
		slots = append(slots, s)
		// 达到并发上限时阻塞，对 Reader 形成背压
		g.Go(func() error {
			return processSlot(gctx, s, open, k, set.Status, logger)
		})
		return nil
	}
	iterErr := comp.Reader.Iterate(gctx, set.Inputs, yield)
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if iterErr != nil {
		return nil, fmt.Errorf("reader iterate: %w", iterErr)
	}

	totals := NewTotals(k.Hadrons.Len(), k.Engine.RapidityAxis(), k.Engine.PTAxis())
	for _, s := range slots {
		rep := FileReport{FileID: s.id, Events: s.res.Events, Stats: s.res.Stats, Unterminated: s.res.Unterminated}
		switch {
		case s.err != nil:
			code := diag.Classify(s.err)
			rep.Status, rep.Err = FileFailed, s.err.Error()
			logger.Warn("run_aggregator", string(code), "file skipped: "+s.err.Error(), string(s.id), nil)
			diag.IncError("file_aggregator", string(code))
		case s.res.Events == 0:
			rep.Status = FileEmpty
			logger.Warn("run_aggregator", string(diag.CodeEmpty), "file skipped: no complete events", string(s.id), nil)
		default:
			if err := totals.Add(s.res); err != nil {
				return nil, err
			}
			rep.Status = FileUsed
		}
		diag.AddFile(rep.Status)
		diag.AddEvents(rep.Events, rep.Stats.Discarded)
		diag.AddParticles("ignored", rep.Stats.Ignored)
		diag.AddParticles("rejected", rep.Stats.Rejected)
		diag.AddParticles("accepted_y", rep.Stats.AcceptedY)
		diag.AddParticles("accepted_pt", rep.Stats.AcceptedPT)
		totals.Files = append(totals.Files, rep)
	}
	if totals.Events == 0 {
		return totals, fmt.Errorf("%w: %d input(s) read", contract.ErrNoEvents, len(slots))
	}
	return totals, nil
}

func processSlot(ctx context.Context, s *slot, open contract.Opener, k Kernel, term *diag.Terminal, logger *diag.Logger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	start := time.Now()
	term.FileStart(string(s.id))
	t := logger.StartWith("file_aggregator", "process", string(s.id))
	rc, err := open()
	if err == nil {
		s.res, err = processFile(ctx, s.id, rc, k, logger, func(n int64) { term.FileProgress(string(s.id), n) })
		_ = rc.Close()
	}
	diag.ObserveDuration("file_aggregator", "process", time.Since(start))
	if err != nil {
		term.FileFinish(string(s.id), err, 0, time.Since(start))
		diag.IncOp("file_aggregator", "error", "error")
		// 结构错误与取消终止整次运行；其它错误仅标记该文件
		if errors.Is(err, contract.ErrStructure) || ctx.Err() != nil {
			logger.ErrorWith("file_aggregator", string(diag.Classify(err)), err.Error(), &start, string(s.id))
			return err
		}
		s.err = err
		return nil
	}
	if s.res.Unterminated {
		logger.Warn("file_aggregator", string(diag.CodeStructure), "trailing event without end marker discarded", string(s.id), nil)
	}
	t.FinishKV("process", s.res.Events, map[string]string{
		"particles": strconv.FormatInt(s.res.Stats.Particles, 10),
		"ignored":   strconv.FormatInt(s.res.Stats.Ignored, 10),
		"discarded": strconv.FormatInt(s.res.Stats.Discarded, 10),
	})
	diag.IncOp("file_aggregator", "finish", "success")
	term.FileFinish(string(s.id), nil, s.res.Events, time.Since(start))
	return nil
}

// BuildResult 组装持久化记录。
func BuildResult(t *Totals, k Kernel) contract.Result {
	y, pt := k.Engine.RapidityAxis(), k.Engine.PTAxis()
	cuts := k.Engine.Cuts()
	return contract.Result{
		Info:        contract.ResultInfo,
		Hadrons:     k.Hadrons.Species(),
		Events:      t.Events,
		PTMinCut:    cuts.PTMin,
		PTMaxCut:    cuts.PTMax,
		RapidityCut: cuts.Rapidity,
		YCenters:    append([]float64(nil), y.Centers...),
		PTCenters:   append([]float64(nil), pt.Centers...),
		DY:          y.Width,
		DPT:         pt.Width,
		YSpectra:    t.Spectra.Y.Table(),
		PTSpectra:   t.Spectra.PT.Table(),
	}
}

// Run 执行完整流程：Reader → File Aggregator（并行）→ Run Aggregator（有序归并）→ Encoder → Writer。
// 任何失败都不会写出输出。
func Run(ctx context.Context, comp Components, set Settings, logger *diag.Logger) (*Totals, error) {
	if comp.Encoder == nil || comp.Writer == nil {
		return nil, errors.New("sanity: nil encoder or writer")
	}
	totals, err := Aggregate(ctx, comp, set, logger)
	if err != nil {
		return totals, err
	}

	etimer := logger.Start("encoder", "encode")
	r, err := comp.Encoder.Encode(ctx, BuildResult(totals, set.Kernel))
	if err != nil {
		stageError(logger, "encoder", "encode failed", err)
		return totals, fmt.Errorf("encoder encode: %w", err)
	}
	etimer.Finish("encode", totals.Events)
	diag.IncOp("encoder", "finish", "success")

	wstart := time.Now()
	wtimer := logger.StartWith("writer", "write", set.Output)
	if err := comp.Writer.Write(ctx, contract.ArtifactID(set.Output), r); err != nil {
		stageError(logger, "writer", "write failed", err)
		return totals, fmt.Errorf("writer write: %w", err)
	}
	wtimer.Finish("write", 0)
	diag.IncOp("writer", "finish", "success")
	diag.ObserveDuration("writer", "write", time.Since(wstart))
	return totals, nil
}

func stageError(logger *diag.Logger, comp, msg string, err error) {
	code := diag.Classify(err)
	logger.Error(comp, string(code), msg+": "+err.Error(), nil)
	diag.IncOp(comp, "error", "error")
	if code != diag.CodeUnknown {
		diag.IncError(comp, string(code))
	}
}

func sanity(comp Components, set Settings) error {
	if comp.Reader == nil {
		return errors.New("nil reader")
	}
	if set.Kernel.Engine == nil || set.Kernel.Hadrons == nil {
		return errors.New("nil kernel")
	}
	if set.Kernel.Hadrons.Len() == 0 {
		return errors.New("empty hadron registry")
	}
	return nil
}
