package repository

import (
	"context"
	"fmt"
)

// schema 运行结果表结构
var schema = []string{
	`CREATE TABLE IF NOT EXISTS planning_runs (
		id          UUID PRIMARY KEY,
		variant     TEXT NOT NULL,
		backend     TEXT NOT NULL,
		status      TEXT NOT NULL,
		objective   DOUBLE PRECISION NOT NULL,
		alpha       DOUBLE PRECISION,
		gamma       DOUBLE PRECISION,
		k           INTEGER NOT NULL,
		facilities  TEXT[] NOT NULL,
		duration    BIGINT NOT NULL,
		payload     JSONB NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_planning_runs_variant ON planning_runs (variant, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS planning_sectors (
		run_id      UUID NOT NULL REFERENCES planning_runs(id) ON DELETE CASCADE,
		position    INTEGER NOT NULL,
		facility    TEXT NOT NULL,
		members     TEXT[] NOT NULL,
		population  INTEGER NOT NULL,
		load        DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (run_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS planning_flows (
		run_id      UUID NOT NULL REFERENCES planning_runs(id) ON DELETE CASCADE,
		origin      TEXT NOT NULL,
		destination TEXT NOT NULL,
		patients    INTEGER NOT NULL,
		PRIMARY KEY (run_id, origin, destination)
	)`,
}

// Migrate 创建所需的表
func Migrate(ctx context.Context, db DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("执行第 %d 条建表语句失败: %w", i+1, err)
		}
	}
	return nil
}
