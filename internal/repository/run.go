package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/healthloc/healthloc/pkg/errors"
	"github.com/healthloc/healthloc/pkg/planner"
)

// RunSummary 运行列表项
type RunSummary struct {
	ID         uuid.UUID     `json:"id"`
	Variant    string        `json:"variant"`
	Backend    string        `json:"backend"`
	Status     string        `json:"status"`
	Objective  float64       `json:"objective"`
	K          int           `json:"k"`
	Facilities []string      `json:"facilities"`
	Duration   time.Duration `json:"duration"`
	CreatedAt  time.Time     `json:"created_at"`
}

// RunRepositoryInterface 运行结果仓储接口
type RunRepositoryInterface interface {
	Save(ctx context.Context, run *planner.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*planner.Run, error)
	List(ctx context.Context, filter ListFilter) ([]*RunSummary, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// RunRepository 运行结果仓储实现
type RunRepository struct {
	db TxDB
}

// NewRunRepository 创建运行结果仓储
func NewRunRepository(db TxDB) *RunRepository {
	return &RunRepository{db: db}
}

// Save 在一个事务内写入运行结果及其分区/流量明细
func (r *RunRepository) Save(ctx context.Context, run *planner.Run) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "序列化运行结果失败")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "开始事务失败")
	}
	defer tx.Rollback()

	query := `
		INSERT INTO planning_runs (
			id, variant, backend, status, objective, alpha, gamma, k,
			facilities, duration, payload, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = tx.ExecContext(ctx, query,
		run.ID, string(run.Variant), run.Backend, run.Status, run.Objective, run.Alpha, run.Gamma, run.K,
		pq.Array(facilityNames(run)), int64(run.Duration), payload, run.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "写入运行记录失败")
	}

	if s := run.Sectorization; s != nil {
		for pos, sector := range s.Sectors {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO planning_sectors (run_id, position, facility, members, population, load)
				VALUES ($1, $2, $3, $4, $5, $6)
			`, run.ID, pos, sector.FacilityName, pq.Array(sector.MemberNames), sector.Population, sector.Load)
			if err != nil {
				return errors.Wrap(err, errors.CodeDatabaseError, "写入分区明细失败")
			}
		}
	}

	if p := run.Flow; p != nil {
		for _, t := range p.Transfers() {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO planning_flows (run_id, origin, destination, patients)
				VALUES ($1, $2, $3, $4)
			`, run.ID, t.FromName, t.ToName, t.Patients)
			if err != nil {
				return errors.Wrap(err, errors.CodeDatabaseError, "写入流量明细失败")
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "提交事务失败")
	}
	return nil
}

// GetByID 根据ID获取完整运行结果
func (r *RunRepository) GetByID(ctx context.Context, id uuid.UUID) (*planner.Run, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM planning_runs WHERE id = $1`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("运行", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "查询运行记录失败")
	}

	var run planner.Run
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "运行记录内容损坏")
	}
	return &run, nil
}

// List 分页列出运行记录
func (r *RunRepository) List(ctx context.Context, filter ListFilter) ([]*RunSummary, int, error) {
	var conditions []string
	var args []interface{}
	if filter.Variant != "" {
		args = append(args, filter.Variant)
		conditions = append(conditions, fmt.Sprintf("variant = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM planning_runs "+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "统计运行记录失败")
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListFilter().Limit
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT id, variant, backend, status, objective, k, facilities, duration, created_at
		FROM planning_runs %s %s
		LIMIT $%d OFFSET $%d
	`, where, filter.orderClause(), len(args)-1, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "查询运行记录失败")
	}
	defer rows.Close()

	var runs []*RunSummary
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, 0, err
		}
		runs = append(runs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.Wrap(err, errors.CodeDatabaseError, "读取运行记录失败")
	}
	return runs, total, nil
}

// Delete 删除运行记录，明细随外键级联删除
func (r *RunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM planning_runs WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, errors.CodeDatabaseError, "删除运行记录失败")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.NotFound("运行", id.String())
	}
	return nil
}

func scanSummary(row Scanner) (*RunSummary, error) {
	var (
		s        RunSummary
		duration int64
	)
	err := row.Scan(&s.ID, &s.Variant, &s.Backend, &s.Status, &s.Objective, &s.K,
		pq.Array(&s.Facilities), &duration, &s.CreatedAt)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeDatabaseError, "解析运行记录失败")
	}
	s.Duration = time.Duration(duration)
	return &s, nil
}

func facilityNames(run *planner.Run) []string {
	switch {
	case run.Sectorization != nil:
		return run.Sectorization.FacilityNames()
	case run.Flow != nil:
		return run.Flow.FacilityNames
	default:
		return []string{}
	}
}
