// Package metrics 提供Prometheus监控指标
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/healthloc/healthloc/pkg/model"
)

var (
	// Registry 服务专用注册表
	Registry = prometheus.NewRegistry()

	// HTTPRequests 按方法、路径、状态码统计请求数
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "healthloc_http_requests_total", Help: "HTTP请求总数"},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration 请求延迟
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "healthloc_http_request_duration_seconds", Help: "HTTP请求延迟", Buckets: prometheus.DefBuckets},
		[]string{"method", "path"},
	)

	// Runs 按变体与结果统计运行次数
	Runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "healthloc_runs_total", Help: "规划运行次数"},
		[]string{"variant", "outcome"},
	)
	// RunDuration 运行总耗时
	RunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "healthloc_run_duration_seconds",
			Help:    "规划运行耗时",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"variant"},
	)

	// SolverCalls 按求解器与返回状态统计调用次数
	SolverCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "healthloc_solver_calls_total", Help: "求解器调用次数"},
		[]string{"backend", "status"},
	)
	// SolverDuration 求解器耗时
	SolverDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "healthloc_solver_duration_seconds",
			Help:    "求解器耗时",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120},
		},
		[]string{"backend"},
	)

	// LastObjective 各变体最近一次成功运行的目标值
	LastObjective = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "healthloc_last_objective", Help: "最近一次运行的目标值"},
		[]string{"variant"},
	)
)

var regOnce sync.Once

// RegisterDefault 注册全部指标以及 Go/进程指标
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests, HTTPDuration)
		Registry.MustRegister(Runs, RunDuration)
		Registry.MustRegister(SolverCalls, SolverDuration)
		Registry.MustRegister(LastObjective)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler 返回指标暴露处理器
func Handler() http.Handler {
	RegisterDefault()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordRequestMetrics 记录请求指标
func RecordRequestMetrics(method, path string, status int, duration time.Duration) {
	HTTPRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordObjective 记录目标值
func RecordObjective(variant model.Variant, objective float64) {
	LastObjective.WithLabelValues(string(variant)).Set(objective)
}

// PlannerObserver 把规划器回调写入 Prometheus 指标
type PlannerObserver struct{}

// NewPlannerObserver 创建规划器指标回调
func NewPlannerObserver() *PlannerObserver {
	RegisterDefault()
	return &PlannerObserver{}
}

// ObserveRun 记录一次运行
func (PlannerObserver) ObserveRun(variant model.Variant, outcome string, duration time.Duration) {
	Runs.WithLabelValues(string(variant), outcome).Inc()
	RunDuration.WithLabelValues(string(variant)).Observe(duration.Seconds())
}

// ObserveSolver 记录一次求解器调用
func (PlannerObserver) ObserveSolver(backend, status string, duration time.Duration) {
	SolverCalls.WithLabelValues(backend, status).Inc()
	SolverDuration.WithLabelValues(backend).Observe(duration.Seconds())
}
