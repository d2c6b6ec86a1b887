// Package config 提供配置管理
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/healthloc/healthloc/pkg/errors"
	"github.com/healthloc/healthloc/pkg/logger"
	"github.com/healthloc/healthloc/pkg/model"
)

// EnvPrefix 环境变量前缀，例如 HEALTHLOC_DATABASE_HOST
const EnvPrefix = "HEALTHLOC"

// Config 应用配置
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Log      logger.Config  `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	API      APIConfig      `mapstructure:"api"`
	Solver   SolverConfig   `mapstructure:"solver"`
	Planner  PlannerConfig  `mapstructure:"planner"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// AppConfig 应用基础配置
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN 返回数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// Addr 返回Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// APIConfig API配置
type APIConfig struct {
	RateLimit int           `mapstructure:"rate_limit"` // 每秒请求数
	Burst     int           `mapstructure:"burst"`
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxBody   int64         `mapstructure:"max_body"`
	Keys      []string      `mapstructure:"keys"` // 为空时不校验 API 密钥
}

// SolverConfig 外部求解器配置
type SolverConfig struct {
	Backend   string        `mapstructure:"backend"` // 目前支持 cbc
	Path      string        `mapstructure:"path"`
	TimeLimit time.Duration `mapstructure:"time_limit"`
	Threads   int           `mapstructure:"threads"`
	WorkDir   string        `mapstructure:"work_dir"`
	KeepFiles bool          `mapstructure:"keep_files"`
}

// PlannerConfig 规划参数
type PlannerConfig struct {
	DefaultAlpha     float64       `mapstructure:"default_alpha"`
	FacilityCapacity int           `mapstructure:"facility_capacity"`
	MaxPatients      int           `mapstructure:"max_patients"`
	SweepWorkers     int           `mapstructure:"sweep_workers"`
	SolverTimeout    time.Duration `mapstructure:"solver_timeout"`
}

// MetricsConfig 监控配置
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// setDefaults 注册全部键的默认值，环境变量只能覆盖已注册的键
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "healthloc")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", 7012)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file_path", "")
	v.SetDefault("log.time_format", time.RFC3339)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "healthloc")
	v.SetDefault("database.user", "healthloc")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("api.rate_limit", 20)
	v.SetDefault("api.burst", 40)
	v.SetDefault("api.timeout", 2*time.Minute)
	v.SetDefault("api.max_body", 4<<20)
	v.SetDefault("api.keys", []string{})

	v.SetDefault("solver.backend", "cbc")
	v.SetDefault("solver.path", "cbc")
	v.SetDefault("solver.time_limit", time.Duration(0))
	v.SetDefault("solver.threads", 0)
	v.SetDefault("solver.work_dir", "")
	v.SetDefault("solver.keep_files", false)

	v.SetDefault("planner.default_alpha", 0.1)
	v.SetDefault("planner.facility_capacity", model.DefaultFacilityCapacity)
	v.SetDefault("planner.max_patients", model.DefaultMaxPatients)
	v.SetDefault("planner.sweep_workers", 4)
	v.SetDefault("planner.solver_timeout", 60*time.Second)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Load 加载配置：默认值 < 配置文件 < 环境变量
//
// path 为空时只使用默认值与环境变量。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidInput, "读取配置文件失败").
				WithField("path", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "解析配置失败")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查配置取值
func (c *Config) Validate() error {
	ve := &errors.ValidationErrors{}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		ve.Add("app.port", "端口超出范围")
	}
	if c.Planner.DefaultAlpha <= 0 {
		ve.Add("planner.default_alpha", "alpha 必须严格为正")
	}
	if c.Planner.FacilityCapacity <= 0 {
		ve.Add("planner.facility_capacity", "设施容量必须为正")
	}
	if c.Planner.MaxPatients < 0 {
		ve.Add("planner.max_patients", "需求上限不能为负")
	}
	if c.Planner.SweepWorkers <= 0 {
		ve.Add("planner.sweep_workers", "并发数必须为正")
	}
	if c.Solver.Backend != "cbc" {
		ve.Add("solver.backend", "不支持的求解器: "+c.Solver.Backend)
	}
	if c.API.RateLimit < 0 {
		ve.Add("api.rate_limit", "限流值不能为负")
	}
	if ve.HasErrors() {
		return ve.ToAppError()
	}
	return nil
}

// IsDevelopment 检查是否为开发环境
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// IsProduction 检查是否为生产环境
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// Addr 返回HTTP监听地址
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}
