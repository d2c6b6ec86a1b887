// Package repository 提供数据访问层
package repository

import (
	"context"
	"database/sql"
)

// ListFilter 列表查询过滤器
type ListFilter struct {
	Variant  string `json:"variant,omitempty"`
	Status   string `json:"status,omitempty"`
	Offset   int    `json:"offset"`
	Limit    int    `json:"limit"`
	OrderBy  string `json:"order_by,omitempty"`
	OrderDir string `json:"order_dir,omitempty"` // asc/desc
}

// DefaultListFilter 返回默认过滤器
func DefaultListFilter() ListFilter {
	return ListFilter{
		Offset:   0,
		Limit:    20,
		OrderBy:  "created_at",
		OrderDir: "desc",
	}
}

// WithLimit 设置限制
func (f ListFilter) WithLimit(limit int) ListFilter {
	f.Limit = limit
	return f
}

// WithOffset 设置偏移
func (f ListFilter) WithOffset(offset int) ListFilter {
	f.Offset = offset
	return f
}

// WithVariant 设置变体过滤
func (f ListFilter) WithVariant(variant string) ListFilter {
	f.Variant = variant
	return f
}

// WithStatus 设置状态过滤
func (f ListFilter) WithStatus(status string) ListFilter {
	f.Status = status
	return f
}

// DB 数据库接口
type DB interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// TxDB 支持事务的数据库
type TxDB interface {
	DB
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Scanner 行扫描接口
type Scanner interface {
	Scan(dest ...interface{}) error
}

// orderColumns 允许排序的列
var orderColumns = map[string]bool{
	"created_at": true,
	"objective":  true,
	"variant":    true,
	"duration":   true,
}

// orderClause 生成安全的 ORDER BY 子句
func (f ListFilter) orderClause() string {
	col := f.OrderBy
	if !orderColumns[col] {
		col = "created_at"
	}
	dir := "DESC"
	if f.OrderDir == "asc" {
		dir = "ASC"
	}
	return "ORDER BY " + col + " " + dir
}
