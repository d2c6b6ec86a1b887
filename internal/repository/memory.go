package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/healthloc/healthloc/pkg/errors"
	"github.com/healthloc/healthloc/pkg/planner"
)

// MemoryRunRepository 未配置数据库时使用的进程内仓储，超过容量时淘汰最早的记录
type MemoryRunRepository struct {
	mu    sync.RWMutex
	runs  map[uuid.UUID]*planner.Run
	order []uuid.UUID
	limit int
}

// NewMemoryRunRepository 创建进程内仓储，limit <= 0 表示不限容量
func NewMemoryRunRepository(limit int) *MemoryRunRepository {
	return &MemoryRunRepository{
		runs:  make(map[uuid.UUID]*planner.Run),
		limit: limit,
	}
}

// Save 保存运行结果
func (m *MemoryRunRepository) Save(_ context.Context, run *planner.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[run.ID]; !ok {
		m.order = append(m.order, run.ID)
	}
	cp := *run
	m.runs[run.ID] = &cp

	for m.limit > 0 && len(m.order) > m.limit {
		delete(m.runs, m.order[0])
		m.order = m.order[1:]
	}
	return nil
}

// GetByID 根据ID获取运行结果
func (m *MemoryRunRepository) GetByID(_ context.Context, id uuid.UUID) (*planner.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return nil, errors.NotFound("运行", id.String())
	}
	cp := *run
	return &cp, nil
}

// List 按过滤条件分页列出
func (m *MemoryRunRepository) List(_ context.Context, filter ListFilter) ([]*RunSummary, int, error) {
	m.mu.RLock()
	var all []*RunSummary
	for _, id := range m.order {
		run := m.runs[id]
		if filter.Variant != "" && string(run.Variant) != filter.Variant {
			continue
		}
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		all = append(all, &RunSummary{
			ID:         run.ID,
			Variant:    string(run.Variant),
			Backend:    run.Backend,
			Status:     run.Status,
			Objective:  run.Objective,
			K:          run.K,
			Facilities: facilityNames(run),
			Duration:   run.Duration,
			CreatedAt:  run.CreatedAt,
		})
	}
	m.mu.RUnlock()

	asc := filter.OrderDir == "asc"
	sort.SliceStable(all, func(i, j int) bool {
		a, b := all[i], all[j]
		var less bool
		switch filter.OrderBy {
		case "objective":
			less = a.Objective < b.Objective
		case "duration":
			less = a.Duration < b.Duration
		case "variant":
			less = a.Variant < b.Variant
		default:
			less = a.CreatedAt.Before(b.CreatedAt)
		}
		if asc {
			return less
		}
		return !less && !equalKey(a, b, filter.OrderBy)
	})

	total := len(all)
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultListFilter().Limit
	}
	start := filter.Offset
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

// Delete 删除运行记录
func (m *MemoryRunRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[id]; !ok {
		return errors.NotFound("运行", id.String())
	}
	delete(m.runs, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func equalKey(a, b *RunSummary, orderBy string) bool {
	switch orderBy {
	case "objective":
		return a.Objective == b.Objective
	case "duration":
		return a.Duration == b.Duration
	case "variant":
		return a.Variant == b.Variant
	default:
		return a.CreatedAt.Equal(b.CreatedAt)
	}
}

var (
	_ RunRepositoryInterface = (*RunRepository)(nil)
	_ RunRepositoryInterface = (*MemoryRunRepository)(nil)
)
