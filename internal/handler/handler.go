// Package handler 提供HTTP请求处理器
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/healthloc/healthloc/internal/config"
	"github.com/healthloc/healthloc/internal/metrics"
	"github.com/healthloc/healthloc/internal/repository"
	"github.com/healthloc/healthloc/pkg/errors"
	"github.com/healthloc/healthloc/pkg/instance"
	"github.com/healthloc/healthloc/pkg/logger"
	"github.com/healthloc/healthloc/pkg/model"
	"github.com/healthloc/healthloc/pkg/planner"
	"github.com/healthloc/healthloc/pkg/planner/formulate"
)

// defaultMemoryRuns 进程内存储保留的运行数
const defaultMemoryRuns = 1000

// RunStore 运行结果存储
type RunStore interface {
	Save(ctx context.Context, run *planner.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*planner.Run, error)
	List(ctx context.Context, filter repository.ListFilter) ([]*repository.RunSummary, int, error)
}

// PlanningHandler 规划处理器
type PlanningHandler struct {
	planner  *planner.Planner
	store    RunStore
	defaults config.PlannerConfig
	timeout  time.Duration
}

// NewPlanningHandler 创建规划处理器，store 为 nil 时使用进程内存储
func NewPlanningHandler(p *planner.Planner, store RunStore, defaults config.PlannerConfig, timeout time.Duration) *PlanningHandler {
	if store == nil {
		store = repository.NewMemoryRunRepository(defaultMemoryRuns)
	}
	return &PlanningHandler{planner: p, store: store, defaults: defaults, timeout: timeout}
}

// SweepRequest alpha 扫描请求：实例字段与变体参数平铺在同一个对象中
type SweepRequest struct {
	instance.File
	Variant model.Variant `json:"variant"`
}

// SweepResponse alpha 扫描响应
type SweepResponse struct {
	Variant  model.Variant        `json:"variant"`
	Points   []planner.SweepPoint `json:"points"`
	Feasible int                  `json:"feasible"`
	Duration string               `json:"duration"`
}

// ListResponse 运行列表响应
type ListResponse struct {
	Runs   []*repository.RunSummary `json:"runs"`
	Total  int                      `json:"total"`
	Offset int                      `json:"offset"`
	Limit  int                      `json:"limit"`
}

// Register 注册路由
func (h *PlanningHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sectorize", h.Sectorize)
	mux.HandleFunc("POST /api/v1/locate", h.Locate)
	mux.HandleFunc("POST /api/v1/patient-flow", h.PatientFlow)
	mux.HandleFunc("POST /api/v1/sweep", h.Sweep)
	mux.HandleFunc("POST /api/v1/lp", h.ExportLP)
	mux.HandleFunc("GET /api/v1/runs", h.ListRuns)
	mux.HandleFunc("GET /api/v1/runs/{id}", h.GetRun)
	mux.HandleFunc("GET /api/v1/runs/{id}/report", h.GetReport)
}

// Sectorize 给定设施的分区（变体A）
func (h *PlanningHandler) Sectorize(w http.ResponseWriter, r *http.Request) {
	f, inst, ok := h.decode(w, r)
	if !ok {
		return
	}
	if f.Fixed == nil {
		respondError(w, errors.InvalidInput("fixed", "缺少设施列表与 alpha"))
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()
	run, err := h.planner.RunFixed(ctx, inst, *f.Fixed)
	h.finish(w, r, run, err)
}

// Locate 选址与分区联合求解（变体B）
func (h *PlanningHandler) Locate(w http.ResponseWriter, r *http.Request) {
	f, inst, ok := h.decode(w, r)
	if !ok {
		return
	}
	if f.Joint == nil {
		respondError(w, errors.InvalidInput("joint", "缺少设施数量 k 与 alpha"))
		return
	}

	ctx, cancel := h.context(r)
	defer cancel()
	run, err := h.planner.RunJoint(ctx, inst, *f.Joint)
	h.finish(w, r, run, err)
}

// PatientFlow 病人转运分配（变体C）
func (h *PlanningHandler) PatientFlow(w http.ResponseWriter, r *http.Request) {
	f, inst, ok := h.decode(w, r)
	if !ok {
		return
	}
	if f.Flow == nil {
		respondError(w, errors.InvalidInput("flow", "缺少设施与需求"))
		return
	}

	cfg := h.flowDefaults(*f.Flow)
	ctx, cancel := h.context(r)
	defer cancel()
	run, err := h.planner.RunFlow(ctx, inst, cfg)
	h.finish(w, r, run, err)
}

// Sweep 在多个 alpha 下求解分区变体，单点无解不影响其他点
func (h *PlanningHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req SweepRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	inst, err := req.Instance()
	if err != nil {
		respondError(w, toAppError(err))
		return
	}

	sweep := planner.SweepRequest{Variant: req.Variant, Alphas: req.Sweep}
	switch req.Variant {
	case model.VariantFixedFacility:
		if req.Fixed == nil {
			respondError(w, errors.InvalidInput("fixed", "缺少设施列表"))
			return
		}
		sweep.Facilities = req.Fixed.Facilities
	case model.VariantJointLocation:
		if req.Joint == nil {
			respondError(w, errors.InvalidInput("joint", "缺少设施数量 k"))
			return
		}
		sweep.K = req.Joint.K
	}

	ctx, cancel := h.context(r)
	defer cancel()
	points, err := h.planner.SweepAlpha(ctx, inst, sweep)
	if err != nil {
		respondError(w, toAppError(err))
		return
	}

	for _, pt := range points {
		if pt.Run != nil {
			h.save(r.Context(), pt.Run)
		}
	}

	respondJSON(w, http.StatusOK, SweepResponse{
		Variant:  req.Variant,
		Points:   points,
		Feasible: len(planner.Feasible(points)),
		Duration: time.Since(start).String(),
	})
}

// ExportLP 只建模不求解，返回 LP 文本；variant 由查询参数指定
func (h *PlanningHandler) ExportLP(w http.ResponseWriter, r *http.Request) {
	f, inst, ok := h.decode(w, r)
	if !ok {
		return
	}

	var (
		form *formulate.Formulation
		err  error
	)
	switch model.Variant(r.URL.Query().Get("variant")) {
	case model.VariantFixedFacility:
		if f.Fixed == nil {
			respondError(w, errors.InvalidInput("fixed", "缺少设施列表与 alpha"))
			return
		}
		form, err = formulate.FixedFacilities(inst, *f.Fixed)
	case model.VariantJointLocation:
		if f.Joint == nil {
			respondError(w, errors.InvalidInput("joint", "缺少设施数量 k 与 alpha"))
			return
		}
		form, err = formulate.JointLocation(inst, *f.Joint)
	case model.VariantPatientFlow:
		if f.Flow == nil {
			respondError(w, errors.InvalidInput("flow", "缺少设施与需求"))
			return
		}
		form, err = formulate.PatientFlow(inst, h.flowDefaults(*f.Flow))
	default:
		respondError(w, errors.InvalidInput("variant", "未知的问题变体"))
		return
	}
	if err != nil {
		respondError(w, toAppError(err))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := planner.WriteLP(w, form); err != nil {
		logger.WithContext(r.Context()).Error().Err(err).Msg("写出 LP 失败")
	}
}

// GetRun 获取运行结果
func (h *PlanningHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// GetReport 获取运行结果的文字报告
func (h *PlanningHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := planner.WriteReport(w, run); err != nil {
		logger.WithContext(r.Context()).Error().Err(err).Msg("写出报告失败")
	}
}

// ListRuns 分页列出运行记录
func (h *PlanningHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repository.DefaultListFilter().
		WithVariant(q.Get("variant")).
		WithStatus(q.Get("status"))
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 100 {
			respondError(w, errors.InvalidInput("limit", "limit 必须在 1 到 100 之间"))
			return
		}
		filter = filter.WithLimit(n)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, errors.InvalidInput("offset", "offset 不能为负"))
			return
		}
		filter = filter.WithOffset(n)
	}
	if v := q.Get("order_by"); v != "" {
		filter.OrderBy = v
		filter.OrderDir = q.Get("order_dir")
	}

	runs, total, err := h.store.List(r.Context(), filter)
	if err != nil {
		respondError(w, toAppError(err))
		return
	}
	if runs == nil {
		runs = []*repository.RunSummary{}
	}
	respondJSON(w, http.StatusOK, ListResponse{Runs: runs, Total: total, Offset: filter.Offset, Limit: filter.Limit})
}

func (h *PlanningHandler) decode(w http.ResponseWriter, r *http.Request) (*instance.File, *formulate.Instance, bool) {
	var f instance.File
	if !decodeJSON(w, r, &f) {
		return nil, nil, false
	}
	inst, err := f.Instance()
	if err != nil {
		respondError(w, toAppError(err))
		return nil, nil, false
	}
	return &f, inst, true
}

func (h *PlanningHandler) lookup(w http.ResponseWriter, r *http.Request) (*planner.Run, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		respondError(w, errors.InvalidInput("id", "运行ID格式错误"))
		return nil, false
	}
	run, err := h.store.GetByID(r.Context(), id)
	if err != nil {
		respondError(w, toAppError(err))
		return nil, false
	}
	return run, true
}

func (h *PlanningHandler) context(r *http.Request) (context.Context, context.CancelFunc) {
	if h.timeout > 0 {
		return context.WithTimeout(r.Context(), h.timeout)
	}
	return context.WithCancel(r.Context())
}

func (h *PlanningHandler) flowDefaults(cfg formulate.FlowConfig) formulate.FlowConfig {
	if cfg.Capacity == 0 {
		cfg.Capacity = h.defaults.FacilityCapacity
	}
	if cfg.MaxTotal == 0 {
		cfg.MaxTotal = h.defaults.MaxPatients
	}
	return cfg
}

func (h *PlanningHandler) finish(w http.ResponseWriter, r *http.Request, run *planner.Run, err error) {
	if err != nil {
		respondError(w, toAppError(err))
		return
	}
	h.save(r.Context(), run)
	metrics.RecordObjective(run.Variant, run.Objective)
	respondJSON(w, http.StatusOK, run)
}

// save 持久化失败只记录日志，不影响本次响应
// 命中缓存的运行也以新ID保存，保证返回的ID可查询
func (h *PlanningHandler) save(ctx context.Context, run *planner.Run) {
	if err := h.store.Save(ctx, run); err != nil {
		logger.WithContext(ctx).Warn().Err(err).Str("run_id", run.ID.String()).Msg("保存运行结果失败")
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		respondError(w, errors.Wrap(err, errors.CodeInvalidInput, "无效的请求格式").WithDetails(err.Error()))
		return false
	}
	return true
}

// respondJSON 返回JSON响应
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError 返回错误响应
func respondError(w http.ResponseWriter, err *errors.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.HTTPStatus)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   true,
		"code":    err.Code,
		"message": err.Message,
		"details": err.Details,
		"fields":  err.Fields,
	})
}

func toAppError(err error) *errors.AppError {
	if appErr, ok := errors.As(err); ok {
		return appErr
	}
	return errors.Wrap(err, errors.CodeInternal, "服务器内部错误")
}
