// healthloc 命令行工具：读取实例文件，离线建模求解
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/healthloc/healthloc/internal/config"
	"github.com/healthloc/healthloc/pkg/errors"
	"github.com/healthloc/healthloc/pkg/instance"
	"github.com/healthloc/healthloc/pkg/logger"
	"github.com/healthloc/healthloc/pkg/model"
	"github.com/healthloc/healthloc/pkg/planner"
	"github.com/healthloc/healthloc/pkg/planner/formulate"
	"github.com/healthloc/healthloc/pkg/solver"
	"github.com/healthloc/healthloc/pkg/solver/cbc"
)

const usage = `用法: healthloc <命令> [参数]

命令:
  solve    求解实例文件中指定的变体并输出报告
  sweep    在实例文件给出的 alpha 列表上扫描分区变体
  lp       只建模，输出 LP 文件
  convert  把城市表 CSV 转换为 YAML 实例

通用参数:
  -c, --config   配置文件路径（求解器路径、时间上限等）
  --variant      问题变体: fixed_facility/joint_location/patient_flow
  --json         以 JSON 输出
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "solve":
		err = solveCmd(ctx, os.Args[2:], os.Stdout)
	case "sweep":
		err = sweepCmd(ctx, os.Args[2:], os.Stdout)
	case "lp":
		err = lpCmd(os.Args[2:], os.Stdout)
	case "convert":
		err = convertCmd(os.Args[2:], os.Stdout)
	case "-h", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "未知命令: %s\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		if appErr, ok := errors.As(err); ok && len(appErr.Fields) > 0 {
			fields, _ := json.Marshal(appErr.Fields)
			fmt.Fprintf(os.Stderr, "详情: %s\n", fields)
		}
		os.Exit(1)
	}
}

// common 各命令共用的参数
type common struct {
	configPath string
	variant    string
	asJSON     bool
}

func (c *common) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&c.configPath, "config", "c", os.Getenv("HEALTHLOC_CONFIG"), "配置文件路径")
	fs.StringVar(&c.variant, "variant", string(model.VariantFixedFacility), "问题变体: fixed_facility/joint_location/patient_flow")
	fs.BoolVar(&c.asJSON, "json", false, "以 JSON 输出")
}

func (c *common) setup() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, err
	}
	logger.Init(cfg.Log)
	return cfg, nil
}

func newPlanner(cfg *config.Config) *planner.Planner {
	factory := cbc.Factory(cbc.Config{
		Path:      cfg.Solver.Path,
		TimeLimit: cfg.Solver.TimeLimit,
		Threads:   cfg.Solver.Threads,
		WorkDir:   cfg.Solver.WorkDir,
		KeepFiles: cfg.Solver.KeepFiles,
	})
	return newPlannerWith(cfg, factory)
}

func newPlannerWith(cfg *config.Config, factory solver.Factory) *planner.Planner {
	return planner.New(factory, planner.WithConfig(planner.Config{
		SolverTimeout: cfg.Planner.SolverTimeout,
		SweepWorkers:  cfg.Planner.SweepWorkers,
	}))
}

func solveCmd(ctx context.Context, args []string, out io.Writer) error {
	var c common
	fs := pflag.NewFlagSet("solve", pflag.ContinueOnError)
	c.bind(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.InvalidInput("instance", "需要且只需要一个实例文件")
	}

	cfg, err := c.setup()
	if err != nil {
		return err
	}
	return solve(ctx, newPlanner(cfg), cfg, fs.Arg(0), model.Variant(c.variant), c.asJSON, out)
}

func solve(ctx context.Context, p *planner.Planner, cfg *config.Config, path string, variant model.Variant, asJSON bool, out io.Writer) error {
	f, inst, err := load(path)
	if err != nil {
		return err
	}

	var run *planner.Run
	switch variant {
	case model.VariantFixedFacility:
		run, err = p.RunFixed(ctx, inst, fixedConfig(f, cfg))
	case model.VariantJointLocation:
		run, err = p.RunJoint(ctx, inst, jointConfig(f, cfg))
	case model.VariantPatientFlow:
		run, err = p.RunFlow(ctx, inst, flowConfig(f, cfg))
	default:
		return errors.InvalidInput("variant", "未知的问题变体").WithField("variant", string(variant))
	}
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}
	return planner.WriteReport(out, run)
}

func sweepCmd(ctx context.Context, args []string, out io.Writer) error {
	var c common
	fs := pflag.NewFlagSet("sweep", pflag.ContinueOnError)
	c.bind(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.InvalidInput("instance", "需要且只需要一个实例文件")
	}

	cfg, err := c.setup()
	if err != nil {
		return err
	}
	return sweep(ctx, newPlanner(cfg), cfg, fs.Arg(0), model.Variant(c.variant), c.asJSON, out)
}

func sweep(ctx context.Context, p *planner.Planner, cfg *config.Config, path string, variant model.Variant, asJSON bool, out io.Writer) error {
	f, inst, err := load(path)
	if err != nil {
		return err
	}

	req := planner.SweepRequest{Variant: variant, Alphas: f.Sweep}
	if variant == model.VariantJointLocation {
		req.K = jointConfig(f, cfg).K
	} else {
		req.Facilities = fixedConfig(f, cfg).Facilities
	}

	points, err := p.SweepAlpha(ctx, inst, req)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(points)
	}

	fmt.Fprintf(out, "%-10s %-12s %s\n", "alpha", "objective", "status")
	for _, pt := range points {
		if pt.Run == nil {
			fmt.Fprintf(out, "%-10g %-12s %s\n", pt.Alpha, "-", pt.Code)
			continue
		}
		fmt.Fprintf(out, "%-10g %-12.4f %s\n", pt.Alpha, pt.Run.Objective, pt.Run.Status)
	}
	fmt.Fprintf(out, "可行 %d / %d\n", len(planner.Feasible(points)), len(points))
	return nil
}

func lpCmd(args []string, out io.Writer) error {
	var c common
	fs := pflag.NewFlagSet("lp", pflag.ContinueOnError)
	c.bind(fs)
	output := fs.StringP("output", "o", "", "输出文件，默认标准输出")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.InvalidInput("instance", "需要且只需要一个实例文件")
	}

	cfg, err := c.setup()
	if err != nil {
		return err
	}

	if *output != "" {
		file, err := os.Create(*output)
		if err != nil {
			return errors.Wrap(err, errors.CodeInvalidInput, "创建输出文件失败")
		}
		defer file.Close()
		out = file
	}
	return exportLP(cfg, fs.Arg(0), model.Variant(c.variant), out)
}

func exportLP(cfg *config.Config, path string, variant model.Variant, out io.Writer) error {
	f, inst, err := load(path)
	if err != nil {
		return err
	}

	var form *formulate.Formulation
	switch variant {
	case model.VariantFixedFacility:
		form, err = formulate.FixedFacilities(inst, fixedConfig(f, cfg))
	case model.VariantJointLocation:
		form, err = formulate.JointLocation(inst, jointConfig(f, cfg))
	case model.VariantPatientFlow:
		form, err = formulate.PatientFlow(inst, flowConfig(f, cfg))
	default:
		return errors.InvalidInput("variant", "未知的问题变体").WithField("variant", string(variant))
	}
	if err != nil {
		return err
	}
	return planner.WriteLP(out, form)
}

func convertCmd(args []string, out io.Writer) error {
	fs := pflag.NewFlagSet("convert", pflag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.InvalidInput("csv", "需要且只需要一个城市表文件")
	}

	f, err := instance.Load(fs.Arg(0))
	if err != nil {
		return err
	}
	// 先重建一次距离矩阵，确保输出的实例可用
	if _, err := f.Instance(); err != nil {
		return err
	}
	return f.Write(out)
}

func load(path string) (*instance.File, *formulate.Instance, error) {
	f, err := instance.Load(path)
	if err != nil {
		return nil, nil, err
	}
	inst, err := f.Instance()
	if err != nil {
		return nil, nil, err
	}
	return f, inst, nil
}

// fixedConfig 实例未给出 alpha 时使用配置中的默认值
func fixedConfig(f *instance.File, cfg *config.Config) formulate.FixedConfig {
	var c formulate.FixedConfig
	if f.Fixed != nil {
		c = *f.Fixed
	}
	if c.Alpha == 0 {
		c.Alpha = cfg.Planner.DefaultAlpha
	}
	return c
}

func jointConfig(f *instance.File, cfg *config.Config) formulate.JointConfig {
	var c formulate.JointConfig
	if f.Joint != nil {
		c = *f.Joint
	}
	if c.Alpha == 0 {
		c.Alpha = cfg.Planner.DefaultAlpha
	}
	return c
}

func flowConfig(f *instance.File, cfg *config.Config) formulate.FlowConfig {
	var c formulate.FlowConfig
	if f.Flow != nil {
		c = *f.Flow
	}
	if c.Capacity == 0 {
		c.Capacity = cfg.Planner.FacilityCapacity
	}
	if c.MaxTotal == 0 {
		c.MaxTotal = cfg.Planner.MaxPatients
	}
	return c
}
