package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthloc/healthloc/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "healthloc", cfg.App.Name)
	assert.Equal(t, 7012, cfg.App.Port)
	assert.Equal(t, 0.1, cfg.Planner.DefaultAlpha)
	assert.Equal(t, 100, cfg.Planner.FacilityCapacity)
	assert.Equal(t, 500, cfg.Planner.MaxPatients)
	assert.Equal(t, 4, cfg.Planner.SweepWorkers)
	assert.Equal(t, 60*time.Second, cfg.Planner.SolverTimeout)
	assert.Equal(t, "cbc", cfg.Solver.Backend)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, ":7012", cfg.Addr())
	assert.Empty(t, cfg.API.Keys)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
app:
  env: production
  port: 8080
planner:
  default_alpha: 0.2
  solver_timeout: 5s
redis:
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("HEALTHLOC_APP_PORT", "9090")
	t.Setenv("HEALTHLOC_DATABASE_HOST", "db.internal")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 0.2, cfg.Planner.DefaultAlpha)
	assert.Equal(t, 5*time.Second, cfg.Planner.SolverTimeout)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoad_Invalid(t *testing.T) {
	t.Setenv("HEALTHLOC_PLANNER_DEFAULT_ALPHA", "-1")
	_, err := Load("")
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidationFail, errors.GetCode(err))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "h", Port: 1, User: "u", Password: "p", Name: "n", SSLMode: "disable"}
	assert.Equal(t, "host=h port=1 user=u password=p dbname=n sslmode=disable", c.DSN())
}
