// Package cbc 通过 COIN-OR CBC 命令行求解 LP 文件
package cbc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/healthloc/healthloc/pkg/mip"
	"github.com/healthloc/healthloc/pkg/solver"
	"github.com/healthloc/healthloc/pkg/solver/lpformat"
)

// Config CBC 配置
type Config struct {
	Path      string        // 可执行文件路径
	TimeLimit time.Duration // 传给 CBC 的时间上限，0 表示不限制
	Threads   int
	WorkDir   string // 临时文件目录，空则使用系统默认
	KeepFiles bool   // 保留 LP 与解文件，便于排查
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{Path: "cbc"}
}

// runFunc 执行外部命令
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Backend CBC 求解器
type Backend struct {
	*solver.Recorder
	cfg Config
	run runFunc

	solved    bool
	values    map[string]float64
	objective float64
}

// New 创建 CBC 求解器
func New(cfg Config) *Backend {
	if cfg.Path == "" {
		cfg.Path = "cbc"
	}
	return &Backend{
		Recorder: solver.NewRecorder("healthloc"),
		cfg:      cfg,
		run:      execRun,
	}
}

// Factory 返回为每次运行创建新实例的工厂
func Factory(cfg Config) solver.Factory {
	return func() solver.Backend {
		return New(cfg)
	}
}

// Name 返回求解器名称
func (b *Backend) Name() string {
	return "cbc"
}

// Optimize 写出 LP 文件、调用 CBC 并解析解文件
func (b *Backend) Optimize(ctx context.Context) (mip.Status, error) {
	dir, err := os.MkdirTemp(b.cfg.WorkDir, "healthloc-cbc-")
	if err != nil {
		return mip.StatusError, fmt.Errorf("创建临时目录失败: %w", err)
	}
	if !b.cfg.KeepFiles {
		defer os.RemoveAll(dir)
	}

	lpPath := filepath.Join(dir, "model.lp")
	solPath := filepath.Join(dir, "model.sol")

	f, err := os.Create(lpPath)
	if err != nil {
		return mip.StatusError, fmt.Errorf("创建 LP 文件失败: %w", err)
	}
	if err := lpformat.Write(f, b.Model()); err != nil {
		f.Close()
		return mip.StatusError, err
	}
	if err := f.Close(); err != nil {
		return mip.StatusError, err
	}

	args := []string{lpPath}
	if b.cfg.TimeLimit > 0 {
		args = append(args, "sec", strconv.Itoa(int(b.cfg.TimeLimit.Seconds())))
	}
	if b.cfg.Threads > 0 {
		args = append(args, "threads", strconv.Itoa(b.cfg.Threads))
	}
	args = append(args, "solve", "solu", solPath)

	if out, err := b.run(ctx, b.cfg.Path, args...); err != nil {
		if ctx.Err() != nil {
			return mip.StatusError, ctx.Err()
		}
		return mip.StatusError, fmt.Errorf("cbc 执行失败: %w: %s", err, truncate(out))
	}

	sol, err := os.Open(solPath)
	if err != nil {
		return mip.StatusError, fmt.Errorf("读取解文件失败: %w", err)
	}
	defer sol.Close()

	status, objective, values, err := ParseSolution(sol)
	if err != nil {
		return mip.StatusError, err
	}
	b.solved = true
	b.objective = objective
	b.values = values
	return status, nil
}

// ValueOf 返回变量取值，CBC 只输出非零变量
func (b *Backend) ValueOf(name string) (float64, error) {
	if !b.solved {
		return 0, fmt.Errorf("尚未求解")
	}
	if _, ok := b.Model().Variable(name); !ok {
		return 0, fmt.Errorf("变量 %s 未声明", name)
	}
	return b.values[name], nil
}

// ObjectiveValue 返回目标函数值
func (b *Backend) ObjectiveValue() (float64, error) {
	if !b.solved {
		return 0, fmt.Errorf("尚未求解")
	}
	return b.objective, nil
}

// ParseSolution 解析 CBC 的 solu 输出
//
// 第一行为状态，例如 "Optimal - objective value 6.42857143"，
// 其后每行为 "序号 变量名 取值 检验数"，不可行的行以 "**" 开头。
func ParseSolution(r io.Reader) (mip.Status, float64, map[string]float64, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return mip.StatusError, 0, nil, err
		}
		return mip.StatusError, 0, nil, fmt.Errorf("解文件为空")
	}

	header := strings.TrimSpace(scanner.Text())
	status := parseStatus(header)
	objective := 0.0
	if idx := strings.LastIndex(header, "objective value"); idx >= 0 {
		raw := strings.TrimSpace(header[idx+len("objective value"):])
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			objective = v
		}
	}

	values := make(map[string]float64)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 && fields[0] == "**" {
			fields = fields[1:]
		}
		if len(fields) < 3 {
			continue
		}
		v, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return mip.StatusError, 0, nil, fmt.Errorf("变量 %s 的取值无效: %q", fields[1], fields[2])
		}
		values[fields[1]] = v
	}
	if err := scanner.Err(); err != nil {
		return mip.StatusError, 0, nil, err
	}
	return status, objective, values, nil
}

func parseStatus(header string) mip.Status {
	h := strings.ToLower(header)
	switch {
	case strings.HasPrefix(h, "optimal"):
		return mip.StatusOptimal
	case strings.Contains(h, "infeasible"):
		return mip.StatusInfeasible
	case strings.Contains(h, "unbounded"):
		return mip.StatusUnbounded
	default:
		return mip.StatusError
	}
}

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func truncate(out []byte) string {
	const max = 512
	if len(out) > max {
		return string(out[len(out)-max:])
	}
	return string(out)
}
