package handler

import (
	"context"
	"net/http"
	"time"
)

// BuildInfo 构建信息
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	Backend   string `json:"solver_backend"`
}

// HealthChecker 依赖健康检查
type HealthChecker interface {
	Health(ctx context.Context) error
}

// SystemHandler 系统端点
type SystemHandler struct {
	info   BuildInfo
	checks map[string]HealthChecker
}

// NewSystemHandler 创建系统处理器
func NewSystemHandler(info BuildInfo) *SystemHandler {
	return &SystemHandler{info: info, checks: make(map[string]HealthChecker)}
}

// AddCheck 注册依赖检查
func (h *SystemHandler) AddCheck(name string, c HealthChecker) {
	h.checks[name] = c
}

// Register 注册路由
func (h *SystemHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /version", h.Version)
	mux.HandleFunc("GET /api/v1/", h.Index)
}

// Health 健康检查，任一依赖不可用时返回 503
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, c := range h.checks {
		if err := c.Health(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	respondJSON(w, status, map[string]interface{}{
		"status":       overall,
		"service":      "healthloc",
		"dependencies": deps,
	})
}

// Version 版本信息
func (h *SystemHandler) Version(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.info)
}

// Index API 根路由
func (h *SystemHandler) Index(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/v1/" {
		http.NotFound(w, r)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"message": "HealthLoc 医疗设施选址 API v1",
		"endpoints": map[string]interface{}{
			"planning": map[string]string{
				"sectorize":    "POST /api/v1/sectorize",
				"locate":       "POST /api/v1/locate",
				"patient_flow": "POST /api/v1/patient-flow",
				"sweep":        "POST /api/v1/sweep",
				"lp":           "POST /api/v1/lp?variant=",
			},
			"runs": map[string]string{
				"list":   "GET /api/v1/runs",
				"get":    "GET /api/v1/runs/{id}",
				"report": "GET /api/v1/runs/{id}/report",
			},
			"system": map[string]string{
				"health":  "GET /health",
				"version": "GET /version",
				"metrics": "GET /metrics",
			},
		},
	})
}

// CheckFunc 函数形式的健康检查
type CheckFunc func(ctx context.Context) error

// Health 实现 HealthChecker
func (f CheckFunc) Health(ctx context.Context) error {
	return f(ctx)
}
