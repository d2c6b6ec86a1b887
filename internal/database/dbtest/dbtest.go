// Package dbtest 提供内存中的 database/sql 驱动，按语句返回预设结果
package dbtest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"sync"
)

// Call 一次被执行的语句
type Call struct {
	Query string
	Args  []driver.Value
}

// Result 语句的预设返回
type Result struct {
	Columns      []string
	Rows         [][]driver.Value
	RowsAffected int64
	Err          error
}

// Handler 根据语句与参数生成返回
type Handler func(query string, args []driver.Value) Result

// Driver 记录所有语句的假驱动
type Driver struct {
	mu        sync.Mutex
	handler   Handler
	calls     []Call
	commits   int
	rollbacks int
}

// New 创建假驱动，handler 为 nil 时所有语句成功且无结果行
func New(handler Handler) *Driver {
	if handler == nil {
		handler = func(string, []driver.Value) Result { return Result{RowsAffected: 1} }
	}
	return &Driver{handler: handler}
}

// DB 打开一个使用该驱动的连接池
func (d *Driver) DB() *sql.DB {
	return sql.OpenDB(d)
}

// Connect 实现 driver.Connector
func (d *Driver) Connect(context.Context) (driver.Conn, error) {
	return &conn{d: d}, nil
}

// Driver 实现 driver.Connector
func (d *Driver) Driver() driver.Driver {
	return d
}

// Open 实现 driver.Driver
func (d *Driver) Open(string) (driver.Conn, error) {
	return &conn{d: d}, nil
}

// Calls 返回已执行语句的副本
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

// CallsMatching 返回包含 substr 的语句
func (d *Driver) CallsMatching(substr string) []Call {
	var out []Call
	for _, c := range d.Calls() {
		if strings.Contains(c.Query, substr) {
			out = append(out, c)
		}
	}
	return out
}

// Commits 返回提交次数
func (d *Driver) Commits() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.commits
}

// Rollbacks 返回回滚次数
func (d *Driver) Rollbacks() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rollbacks
}

func (d *Driver) run(query string, args []driver.Value) Result {
	d.mu.Lock()
	d.calls = append(d.calls, Call{Query: query, Args: args})
	h := d.handler
	d.mu.Unlock()
	return h(query, args)
}

type conn struct {
	d *Driver
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return &stmt{c: c, query: query}, nil
}

func (c *conn) Close() error { return nil }

func (c *conn) Begin() (driver.Tx, error) {
	return &tx{d: c.d}, nil
}

func (c *conn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	res := c.d.run(query, values(args))
	if res.Err != nil {
		return nil, res.Err
	}
	return driver.RowsAffected(res.RowsAffected), nil
}

func (c *conn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	res := c.d.run(query, values(args))
	if res.Err != nil {
		return nil, res.Err
	}
	return &rows{columns: res.Columns, data: res.Rows}, nil
}

type stmt struct {
	c     *conn
	query string
}

func (s *stmt) Close() error  { return nil }
func (s *stmt) NumInput() int { return -1 }

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	res := s.c.d.run(s.query, args)
	if res.Err != nil {
		return nil, res.Err
	}
	return driver.RowsAffected(res.RowsAffected), nil
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	res := s.c.d.run(s.query, args)
	if res.Err != nil {
		return nil, res.Err
	}
	return &rows{columns: res.Columns, data: res.Rows}, nil
}

type tx struct {
	d *Driver
}

func (t *tx) Commit() error {
	t.d.mu.Lock()
	t.d.commits++
	t.d.mu.Unlock()
	return nil
}

func (t *tx) Rollback() error {
	t.d.mu.Lock()
	t.d.rollbacks++
	t.d.mu.Unlock()
	return nil
}

type rows struct {
	columns []string
	data    [][]driver.Value
	pos     int
}

func (r *rows) Columns() []string { return r.columns }
func (r *rows) Close() error      { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.pos >= len(r.data) {
		return io.EOF
	}
	row := r.data[r.pos]
	if len(row) != len(dest) {
		return errors.New("dbtest: 列数不匹配")
	}
	copy(dest, row)
	r.pos++
	return nil
}

func values(named []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(named))
	for i, nv := range named {
		out[i] = nv.Value
	}
	return out
}
