package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	cfgpkg "oscarflow/internal/config"
	"oscarflow/internal/diag"
	"oscarflow/internal/pipeline"
	"oscarflow/internal/plot"
	"oscarflow/pkg/contract"
	"oscarflow/pkg/oscar"
	"oscarflow/pkg/registry"
)

var pipelineRun = pipeline.Run

// 默认命令即 run：位置参数为输入（文件/目录 或 "-" 表示 STDIN，不能与其他输入混用）。
// 子命令：init-config [dir]、plot <result.json>。
func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, loadDotEnv(".env", os.Environ())))
}

// run 执行一次命令行调用并返回进程退出码。
func run(args []string, stdout, stderr io.Writer, environ []string) int {
	root := newRootCmd(stdout, stderr, environ)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	if err == nil {
		return diag.ExitOK
	}
	if !errors.Is(err, context.Canceled) {
		fprintf(stderr, "运行失败: %v\n", err)
	}
	return diag.ExitCode(err)
}

type runFlags struct {
	config      string
	output      string
	format      string
	encoder     string
	metricsFile string
	logLevel    string
	logDir      string
	concurrency int
	verbose     bool
	status      bool
	dy          float64
	maxRapidity float64
	dpt         float64
	maxPT       float64
	ptMin       float64
	ptMax       float64
	rapidityCut float64
}

func newRootCmd(stdout, stderr io.Writer, environ []string) *cobra.Command {
	var f runFlags
	d := cfgpkg.Defaults()
	root := &cobra.Command{
		Use:   "oscarflow [flags] inputs...",
		Short: "从 Oscar 2013 粒子列表计算 dN/dy、dN/dpT 与 v1/v2",
		Long: `oscarflow 读取 SMASH 或 BHAC-QGP 输出的 Oscar 2013 粒子列表，
按强子统计 dN/dy、dN/dpT、v1(y)、v2(y)、v1(pT)、v2(pT) 的原始累加和并写出单个结果记录。

事件规则：只有带结束标记的事件被计入。事件未结束又遇到新的开始标记时，
前一个事件整体丢弃并告警（不与新事件合并）；文件末尾未结束的事件同样丢弃。

退出码：0 成功；1 其它失败；2 没有任何完整事件；3 配置错误；4 输入事件结构错误。`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, f, args, stderr, environ)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", contract.ErrConfig, err)
	})

	fl := root.Flags()
	fl.StringVar(&f.config, "config", "", "配置文件（.yaml/.yml 或 JSON）；缺省依次查找 ./oscarflow.yaml、./config.json")
	fl.StringVarP(&f.output, "output", "o", "", "输出文件路径（默认 "+d.Output+"）")
	fl.StringVarP(&f.format, "format", "t", "", "Oscar 格式："+strings.Join(oscar.Formats(), " | ")+"（默认 "+d.Format+"）")
	fl.IntVarP(&f.concurrency, "concurrency", "j", 0, "同时处理的文件数（默认 1）")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "控制台输出 debug 日志（含每个已提交事件）")
	fl.BoolVar(&f.status, "status", true, "终端状态提示（stderr）。TTY 动态刷新；非 TTY 打点输出")
	fl.StringVar(&f.encoder, "encoder", "", "结果编码："+strings.Join(registry.Names(registry.Encoder), " | "))
	fl.StringVar(&f.metricsFile, "metrics-file", "", "运行结束时写出 prometheus 文本格式指标")
	fl.StringVar(&f.logLevel, "log-level", "", "文件日志级别 debug|info|warn|error")
	fl.StringVar(&f.logDir, "log-dir", "", "轮转日志目录（为空不写文件日志）")
	fl.Float64Var(&f.dy, "dy", *d.Binning.RapidityResolution, "快度 bin 宽")
	fl.Float64Var(&f.maxRapidity, "max-rapidity", *d.Binning.MaxRapidity, "快度轴半宽")
	fl.Float64Var(&f.dpt, "dpt", *d.Binning.PTResolution, "横动量 bin 宽 (GeV)")
	fl.Float64Var(&f.maxPT, "max-pt", *d.Binning.MaxPT, "横动量轴上限 (GeV)")
	fl.Float64Var(&f.ptMin, "pt-min", *d.Cuts.PTMin, "dN/dy 的 pT 下限（含）")
	fl.Float64Var(&f.ptMax, "pt-max", *d.Cuts.PTMax, "dN/dy 的 pT 上限（不含）")
	fl.Float64Var(&f.rapidityCut, "rapidity-cut", *d.Cuts.Rapidity, "dN/dpT 的 |y| 上限（不含）")

	root.AddCommand(newInitCmd(stdout), newPlotCmd(stdout))
	return root
}

// resolveConfig 合并 默认值 < 配置文件 < ENV < CLI。
func resolveConfig(fl *pflag.FlagSet, f runFlags, args, environ []string) (cfgpkg.Config, string, error) {
	file, src, err := cfgpkg.LoadSources(f.config, environ, ".")
	if err != nil {
		return cfgpkg.Config{}, src, err
	}
	cfg := cfgpkg.Merge(cfgpkg.Defaults(), file)
	env, err := cfgpkg.EnvOverlay(environ)
	if err != nil {
		return cfgpkg.Config{}, src, err
	}
	cfg = cfgpkg.Merge(cfg, env)
	return cfgpkg.Merge(cfg, cliOverlay(fl, f, args)), src, nil
}

// cliOverlay 仅收集显式给出的旗标，未给出的不参与覆盖。
func cliOverlay(fl *pflag.FlagSet, f runFlags, args []string) cfgpkg.Config {
	var over cfgpkg.Config
	if len(args) > 0 {
		over.Inputs = args
	}
	over.Format = f.format
	over.Output = f.output
	over.Components.Encoder = f.encoder
	over.MetricsFile = f.metricsFile
	over.Logging = cfgpkg.Logging{Level: f.logLevel, Dir: f.logDir}
	if f.concurrency != 0 {
		over.Concurrency = f.concurrency
	}
	changed := func(name string, v float64) *float64 {
		if !fl.Changed(name) {
			return nil
		}
		return &v
	}
	over.Binning = cfgpkg.Binning{
		RapidityResolution: changed("dy", f.dy),
		MaxRapidity:        changed("max-rapidity", f.maxRapidity),
		PTResolution:       changed("dpt", f.dpt),
		MaxPT:              changed("max-pt", f.maxPT),
	}
	over.Cuts = cfgpkg.Cuts{
		PTMin:    changed("pt-min", f.ptMin),
		PTMax:    changed("pt-max", f.ptMax),
		Rapidity: changed("rapidity-cut", f.rapidityCut),
	}
	return over
}

func runPipeline(cmd *cobra.Command, f runFlags, args []string, stderr io.Writer, environ []string) error {
	start := time.Now()
	cfg, src, err := resolveConfig(cmd.Flags(), f, args, environ)
	if err != nil {
		return err
	}
	if err := cfgpkg.Validate(cfg); err != nil {
		// 打印有效配置，便于诊断
		dumpConfig(stderr, cfg)
		return err
	}

	corrID := uuid.NewString()
	logger := diag.NewLogger(corrID, diag.LoggerOptions{
		Level:   cfg.Logging.Level,
		Dir:     cfg.Logging.Dir,
		Console: stderr,
		Verbose: f.verbose,
	})
	defer logger.Close()

	comp, set, err := cfgpkg.Assemble(cfg)
	if err != nil {
		logger.Error("config", string(diag.Classify(err)), "assemble failed: "+err.Error(), &start)
		return err
	}
	term := diag.NewTerminal(stderr, f.status)
	set.Status = term
	term.RunStart(set.Concurrency, cfg.Format)

	if logger.DebugEnabled() {
		logger.Debug("config", "effective", "", map[string]string{
			"source":       src,
			"format":       cfg.Format,
			"inputs_count": strconv.Itoa(len(cfg.Inputs)),
			"output":       cfg.Output,
			"concurrency":  strconv.Itoa(cfg.Concurrency),
			"reader":       cfg.Components.Reader,
			"encoder":      cfg.Components.Encoder,
			"writer":       cfg.Components.Writer,
		})
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	totals, err := pipelineRun(ctx, comp, set, logger)
	writeMetrics(cfg.MetricsFile, logger)
	if err != nil {
		code := string(diag.Classify(err))
		logger.Error("pipeline", code, "first error: "+err.Error(), &start)
		diag.IncOp("pipeline", "error", "error")
		if code != string(diag.CodeUnknown) {
			diag.IncError("pipeline", code)
		}
		term.RunFinish(false, time.Since(start))
		return err
	}
	logger.InfoFinish("pipeline", "run", start, totals.Events, summary(totals))
	diag.IncOp("pipeline", "finish", "success")
	diag.ObserveDuration("pipeline", "finish", time.Since(start))
	term.RunFinish(true, time.Since(start))
	return nil
}

func summary(t *pipeline.Totals) map[string]string {
	used, skipped := 0, 0
	for _, f := range t.Files {
		if f.Status == pipeline.FileUsed {
			used++
		} else {
			skipped++
		}
	}
	return map[string]string{
		"files_used":    strconv.Itoa(used),
		"files_skipped": strconv.Itoa(skipped),
		"particles":     strconv.FormatInt(t.Stats.Particles, 10),
		"ignored":       strconv.FormatInt(t.Stats.Ignored, 10),
		"rejected":      strconv.FormatInt(t.Stats.Rejected, 10),
		"accepted_y":    strconv.FormatInt(t.Stats.AcceptedY, 10),
		"accepted_pt":   strconv.FormatInt(t.Stats.AcceptedPT, 10),
		"discarded":     strconv.FormatInt(t.Stats.Discarded, 10),
	}
}

// writeMetrics 失败仅记警告，不影响退出码。
func writeMetrics(path string, logger *diag.Logger) {
	if strings.TrimSpace(path) == "" {
		return
	}
	if err := diag.WriteMetrics(path); err != nil {
		logger.Warn("metrics", string(diag.CodeIO), "write metrics failed: "+err.Error(), "", nil)
	}
}

func newInitCmd(stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "init-config [dir]",
		Short: "在 dir（默认当前目录）生成默认 " + cfgpkg.TemplateName + "；已存在时不覆盖",
		Args:  maxArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			p, err := cfgpkg.WriteTemplate(dir)
			if err != nil {
				return fmt.Errorf("%w: %v", contract.ErrConfig, err)
			}
			fprintf(stdout, "%s\n", p)
			return nil
		},
	}
}

func newPlotCmd(stdout io.Writer) *cobra.Command {
	var (
		dir string
		ext string
	)
	cmd := &cobra.Command{
		Use:   "plot <result.json>",
		Short: "把 JSON 结果渲染为六张归一化谱图",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := readResult(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			paths, err := plot.Render(cmd.Context(), res, dir, plot.Options{Ext: ext})
			if err != nil {
				return err
			}
			for _, p := range paths {
				fprintf(stdout, "%s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dir, "dir", "d", "plots", "输出目录")
	cmd.Flags().StringVar(&ext, "ext", ".png", "图片格式 .png|.svg|.pdf")
	return cmd
}

func readResult(ctx context.Context, path string) (contract.Result, error) {
	dec, err := registry.Decoder["json"](nil)
	if err != nil {
		return contract.Result{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return contract.Result{}, err
	}
	defer f.Close()
	return dec.Decode(ctx, bufio.NewReader(f))
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) != n {
			return fmt.Errorf("%w: accepts %d arg(s), received %d", contract.ErrConfig, n, len(args))
		}
		return nil
	}
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(_ *cobra.Command, args []string) error {
		if len(args) > n {
			return fmt.Errorf("%w: accepts at most %d arg(s), received %d", contract.ErrConfig, n, len(args))
		}
		return nil
	}
}

func fprintf(w io.Writer, format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

func dumpConfig(w io.Writer, c cfgpkg.Config) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return
	}
	fprintf(w, "有效配置:\n%s", b)
}

// loadDotEnv 读取 .env 并追加到 environ；已存在于 environ 的键不覆盖。
// 文件不存在或无法解析时原样返回。
func loadDotEnv(path string, environ []string) []string {
	vals, err := godotenv.Read(path)
	if err != nil {
		return environ
	}
	seen := make(map[string]bool, len(environ))
	for _, kv := range environ {
		if eq := strings.IndexByte(kv, '='); eq > 0 {
			seen[kv[:eq]] = true
		}
	}
	keys := make([]string, 0, len(vals))
	for k := range vals {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	out := environ
	for _, k := range keys {
		out = append(out, k+"="+vals[k])
	}
	return out
}
