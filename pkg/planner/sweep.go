package planner

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/healthloc/healthloc/pkg/errors"
	"github.com/healthloc/healthloc/pkg/model"
	"github.com/healthloc/healthloc/pkg/planner/formulate"
)

// SweepRequest 在多个 alpha 下重复求解同一实例
type SweepRequest struct {
	Variant    model.Variant `json:"variant" yaml:"variant"`
	Facilities []string      `json:"facilities,omitempty" yaml:"facilities,omitempty"` // 变体A
	K          int           `json:"k,omitempty" yaml:"k,omitempty"`                   // 变体B
	Alphas     []float64     `json:"alphas" yaml:"alphas"`
}

// SweepPoint 单个 alpha 的结果；求解失败时 Run 为空，Error 记录原因
//
// Comparison 是相对最小可行 alpha 方案的均衡差异，基准点自身为空。
type SweepPoint struct {
	Alpha      float64            `json:"alpha"`
	Run        *Run               `json:"run,omitempty"`
	Error      string             `json:"error,omitempty"`
	Code       errors.Code        `json:"code,omitempty"`
	Comparison map[string]float64 `json:"comparison,omitempty"`
}

// SweepAlpha 并行求解各个 alpha
//
// 各次运行互不共享状态，单个 alpha 无解不会中断其他运行；
// 结果顺序与输入一致。只有 ctx 结束时才返回错误。
func (p *Planner) SweepAlpha(ctx context.Context, inst *formulate.Instance, req SweepRequest) ([]SweepPoint, error) {
	if len(req.Alphas) == 0 {
		return nil, errors.InvalidConfiguration("alphas", "alpha 列表为空")
	}
	if req.Variant != model.VariantFixedFacility && req.Variant != model.VariantJointLocation {
		return nil, errors.InvalidConfiguration("variant", "只有分区变体支持 alpha 扫描").
			WithField("variant", string(req.Variant))
	}

	points := make([]SweepPoint, len(req.Alphas))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.SweepWorkers)

	for i, alpha := range req.Alphas {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			var (
				run *Run
				err error
			)
			switch req.Variant {
			case model.VariantFixedFacility:
				run, err = p.RunFixed(gctx, inst, formulate.FixedConfig{Facilities: req.Facilities, Alpha: alpha})
			default:
				run, err = p.RunJoint(gctx, inst, formulate.JointConfig{K: req.K, Alpha: alpha})
			}

			points[i] = SweepPoint{Alpha: alpha, Run: run}
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				points[i].Error = err.Error()
				points[i].Code = errors.GetCode(err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, errors.CodeTimeout, "alpha 扫描被中断")
	}
	p.compareToBaseline(inst, points)
	return points, nil
}

// compareToBaseline 以最小可行 alpha 的方案为基准比较其余可行点
func (p *Planner) compareToBaseline(inst *formulate.Instance, points []SweepPoint) {
	base := -1
	for i, pt := range points {
		if pt.Run == nil || pt.Run.Sectorization == nil {
			continue
		}
		if base < 0 || pt.Alpha < points[base].Alpha {
			base = i
		}
	}
	if base < 0 {
		return
	}
	for i, pt := range points {
		if i == base || pt.Run == nil || pt.Run.Sectorization == nil {
			continue
		}
		points[i].Comparison = p.balance.CompareSectorizations(
			points[base].Run.Sectorization, pt.Run.Sectorization, inst.Territory, inst.Distances)
	}
}

// Feasible 返回求解成功的点
func Feasible(points []SweepPoint) []SweepPoint {
	var out []SweepPoint
	for _, pt := range points {
		if pt.Run != nil {
			out = append(out, pt)
		}
	}
	return out
}
