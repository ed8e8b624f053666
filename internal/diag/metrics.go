package diag

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 进程内指标，注册在私有 registry 上；运行结束可写出为文本文件。
// - oscarflow_op_total{comp,stage,result}
// - oscarflow_errors_total{comp,code}
// - oscarflow_op_duration_seconds{comp,stage}
// - oscarflow_files_total{result}
// - oscarflow_events_total{result}
// - oscarflow_particles_total{result}
var (
	registry = prometheus.NewRegistry()
	factory  = promauto.With(registry)

	opTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oscarflow",
		Name:      "op_total",
		Help:      "Component operations by stage and result.",
	}, []string{"comp", "stage", "result"})

	errorTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oscarflow",
		Name:      "errors_total",
		Help:      "Errors by component and classification code.",
	}, []string{"comp", "code"})

	opDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "oscarflow",
		Name:      "op_duration_seconds",
		Help:      "Duration of component stages.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
	}, []string{"comp", "stage"})

	filesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oscarflow",
		Name:      "files_total",
		Help:      "Input files by outcome (used, empty, failed).",
	}, []string{"result"})

	eventsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oscarflow",
		Name:      "events_total",
		Help:      "Events by outcome (committed, discarded).",
	}, []string{"result"})

	particlesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oscarflow",
		Name:      "particles_total",
		Help:      "Particle lines by outcome.",
	}, []string{"result"})
)

// IncOp 累加操作计数（result=success|error）。
func IncOp(comp, stage, result string) { opTotal.WithLabelValues(comp, stage, result).Inc() }

// IncError 按分类累加错误计数。
func IncError(comp, code string) { errorTotal.WithLabelValues(comp, code).Inc() }

// ObserveDuration 记录阶段耗时。
func ObserveDuration(comp, stage string, d time.Duration) {
	opDuration.WithLabelValues(comp, stage).Observe(d.Seconds())
}

// AddFile 记录一个文件的处理结果。
func AddFile(result string) { filesTotal.WithLabelValues(result).Inc() }

// AddEvents 记录提交与丢弃的事件数。
func AddEvents(committed, discarded int64) {
	eventsTotal.WithLabelValues("committed").Add(float64(committed))
	eventsTotal.WithLabelValues("discarded").Add(float64(discarded))
}

// AddParticles 按结果累加粒子行数（热路径外按文件汇总后调用）。
func AddParticles(result string, n int64) {
	if n > 0 {
		particlesTotal.WithLabelValues(result).Add(float64(n))
	}
}

// WriteMetrics 以 Prometheus 文本格式原子写出全部指标。
func WriteMetrics(path string) error { return prometheus.WriteToTextfile(path, registry) }
