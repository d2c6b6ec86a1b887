// Package planner 串联建模、求解与结果解释，一次运行严格按顺序执行
package planner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/healthloc/healthloc/pkg/errors"
	"github.com/healthloc/healthloc/pkg/logger"
	"github.com/healthloc/healthloc/pkg/model"
	"github.com/healthloc/healthloc/pkg/planner/formulate"
	"github.com/healthloc/healthloc/pkg/planner/interpret"
	"github.com/healthloc/healthloc/pkg/solver"
	"github.com/healthloc/healthloc/pkg/solver/lpformat"
	"github.com/healthloc/healthloc/pkg/stats"
)

// 运行结果分类，用于指标
const (
	OutcomeSuccess      = "success"
	OutcomeInvalid      = "invalid"
	OutcomeSolverFailed = "solver_failed"
	OutcomeInconsistent = "inconsistent"
	OutcomeCached       = "cached"
)

// Run 一次完整运行的结果
type Run struct {
	ID          uuid.UUID     `json:"id"`
	Variant     model.Variant `json:"variant"`
	Backend     string        `json:"backend"`
	Status      string        `json:"status"`
	Variables   int           `json:"variables"`
	Constraints int           `json:"constraints"`
	K           int           `json:"k"`
	Alpha       float64       `json:"alpha,omitempty"`
	Gamma       float64       `json:"gamma,omitempty"`
	Objective   float64       `json:"objective"`

	Sectorization *model.Sectorization  `json:"sectorization,omitempty"`
	Flow          *model.PatientFlow    `json:"flow,omitempty"`
	Balance       *stats.BalanceMetrics `json:"balance,omitempty"`
	FlowMetrics   *stats.FlowMetrics    `json:"flow_metrics,omitempty"`

	SolverDuration time.Duration `json:"solver_duration"`
	Duration       time.Duration `json:"duration"`
	CreatedAt      time.Time     `json:"created_at"`
	Cached         bool          `json:"cached"`
}

// Cache 按模型内容缓存运行结果
type Cache interface {
	Get(ctx context.Context, key string) (*Run, bool, error)
	Set(ctx context.Context, key string, run *Run) error
}

// Observer 运行指标回调
type Observer interface {
	ObserveRun(variant model.Variant, outcome string, duration time.Duration)
	ObserveSolver(backend, status string, duration time.Duration)
}

// Config 规划器配置
type Config struct {
	SolverTimeout time.Duration `mapstructure:"solver_timeout" yaml:"solver_timeout" json:"solver_timeout"`
	SweepWorkers  int           `mapstructure:"sweep_workers" yaml:"sweep_workers" json:"sweep_workers"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		SolverTimeout: 60 * time.Second,
		SweepWorkers:  4,
	}
}

// Planner 规划器
type Planner struct {
	factory  solver.Factory
	config   Config
	cache    Cache
	observer Observer
	logger   *logger.PlannerLogger

	balance *stats.BalanceAnalyzer
	flow    *stats.FlowAnalyzer
}

// Option 规划器选项
type Option func(*Planner)

// WithConfig 设置配置
func WithConfig(cfg Config) Option {
	return func(p *Planner) {
		p.config = cfg
	}
}

// WithCache 设置结果缓存
func WithCache(c Cache) Option {
	return func(p *Planner) {
		p.cache = c
	}
}

// WithObserver 设置指标回调
func WithObserver(o Observer) Option {
	return func(p *Planner) {
		p.observer = o
	}
}

// New 创建规划器，每次运行通过 factory 获取独立的求解器实例
func New(factory solver.Factory, opts ...Option) *Planner {
	p := &Planner{
		factory: factory,
		config:  DefaultConfig(),
		logger:  logger.NewPlannerLogger(),
		balance: stats.NewBalanceAnalyzer(),
		flow:    stats.NewFlowAnalyzer(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.config.SweepWorkers <= 0 {
		p.config.SweepWorkers = 1
	}
	return p
}

// RunFixed 给定设施分区（变体A）
func (p *Planner) RunFixed(ctx context.Context, inst *formulate.Instance, cfg formulate.FixedConfig) (*Run, error) {
	return p.run(ctx, model.VariantFixedFacility, func() (*formulate.Formulation, error) {
		return formulate.FixedFacilities(inst, cfg)
	})
}

// RunJoint 选址+分区（变体B）
func (p *Planner) RunJoint(ctx context.Context, inst *formulate.Instance, cfg formulate.JointConfig) (*Run, error) {
	return p.run(ctx, model.VariantJointLocation, func() (*formulate.Formulation, error) {
		return formulate.JointLocation(inst, cfg)
	})
}

// RunFlow 病人转运（变体C）
func (p *Planner) RunFlow(ctx context.Context, inst *formulate.Instance, cfg formulate.FlowConfig) (*Run, error) {
	return p.run(ctx, model.VariantPatientFlow, func() (*formulate.Formulation, error) {
		return formulate.PatientFlow(inst, cfg)
	})
}

func (p *Planner) run(ctx context.Context, variant model.Variant, build func() (*formulate.Formulation, error)) (*Run, error) {
	start := time.Now()
	runID := uuid.New()
	id := runID.String()

	f, err := build()
	if err != nil {
		p.logger.RunFailed(id, err)
		p.observeRun(variant, OutcomeInvalid, time.Since(start))
		return nil, err
	}
	p.logger.StartRun(id, string(variant), f.Instance.N(), f.K)
	p.logger.ModelBuilt(id, f.Model.NumVariables(), f.Model.NumConstraints())

	key := ""
	if p.cache != nil {
		key, err = CacheKey(f)
		if err != nil {
			return nil, err
		}
		cached, ok, err := p.cache.Get(ctx, key)
		if err != nil {
			logger.WithContext(ctx).Warn().Err(err).Str("run_id", id).Msg("读取缓存失败")
		} else if ok {
			cached.ID = runID
			cached.Cached = true
			cached.CreatedAt = time.Now()
			cached.Duration = time.Since(start)
			p.observeRun(variant, OutcomeCached, cached.Duration)
			p.logger.RunComplete(id, cached.Duration, cached.Objective)
			return cached, nil
		}
	}

	solveCtx := ctx
	if p.config.SolverTimeout > 0 {
		var cancel context.CancelFunc
		solveCtx, cancel = context.WithTimeout(ctx, p.config.SolverTimeout)
		defer cancel()
	}

	backend := p.factory()
	res, err := solver.Submit(solveCtx, backend, f.Model)
	if res != nil {
		status := "Optimal"
		if err != nil {
			status = statusOf(err)
		}
		p.logger.SolverFinished(id, res.Backend, status, res.Duration)
		p.observeSolver(res.Backend, status, res.Duration)
	}
	if err != nil {
		p.logger.RunFailed(id, err)
		p.observeRun(variant, OutcomeSolverFailed, time.Since(start))
		return nil, err
	}

	result, err := interpret.Interpret(f, res.Solution)
	if err != nil {
		if errors.Is(err, errors.CodeInconsistentSolution) {
			p.logger.InvariantViolation(id, string(variant), err.Error())
			p.observeRun(variant, OutcomeInconsistent, time.Since(start))
		} else {
			p.logger.RunFailed(id, err)
			p.observeRun(variant, OutcomeSolverFailed, time.Since(start))
		}
		return nil, err
	}

	run := &Run{
		ID:             runID,
		Variant:        variant,
		Backend:        res.Backend,
		Status:         res.Solution.Status.String(),
		Variables:      f.Model.NumVariables(),
		Constraints:    f.Model.NumConstraints(),
		K:              f.K,
		Alpha:          f.Alpha,
		Gamma:          f.Gamma,
		Sectorization:  result.Sectorization,
		Flow:           result.Flow,
		SolverDuration: res.Duration,
		CreatedAt:      time.Now(),
	}
	if result.Sectorization != nil {
		run.Objective = result.Sectorization.Objective
		run.Balance = p.balance.Analyze(result.Sectorization, f.Instance.Territory, f.Instance.Distances)
	}
	if result.Flow != nil {
		run.Objective = result.Flow.Cost
		run.FlowMetrics = p.flow.Analyze(result.Flow, f.Instance.Distances)
	}
	run.Duration = time.Since(start)

	if p.cache != nil {
		if err := p.cache.Set(ctx, key, run); err != nil {
			logger.WithContext(ctx).Warn().Err(err).Str("run_id", id).Msg("写入缓存失败")
		}
	}

	p.logger.RunComplete(id, run.Duration, run.Objective)
	p.observeRun(variant, OutcomeSuccess, run.Duration)
	return run, nil
}

// CacheKey 由变体与 LP 文本计算模型指纹，相同输入得到相同的键
func CacheKey(f *formulate.Formulation) (string, error) {
	h := sha256.New()
	io.WriteString(h, string(f.Variant))
	io.WriteString(h, "\n")
	for _, name := range f.Instance.Territory.Names() {
		io.WriteString(h, name)
		io.WriteString(h, "\n")
	}
	if err := lpformat.Write(h, f.Model); err != nil {
		return "", errors.Wrap(err, errors.CodeInternal, "计算模型指纹失败")
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// WriteLP 把模型以 LP 格式写出，供外部求解器离线使用
func WriteLP(w io.Writer, f *formulate.Formulation) error {
	if err := lpformat.Write(w, f.Model); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "导出 LP 文件失败")
	}
	return nil
}

func statusOf(err error) string {
	if appErr, ok := errors.As(err); ok {
		if s, ok := appErr.Fields["status"].(string); ok {
			return s
		}
	}
	return "Error"
}

func (p *Planner) observeRun(variant model.Variant, outcome string, d time.Duration) {
	if p.observer != nil {
		p.observer.ObserveRun(variant, outcome, d)
	}
}

func (p *Planner) observeSolver(backend, status string, d time.Duration) {
	if p.observer != nil {
		p.observer.ObserveSolver(backend, status, d)
	}
}
