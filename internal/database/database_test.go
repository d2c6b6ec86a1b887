package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/healthloc/healthloc/internal/database/dbtest"
)

func TestTransaction_Commit(t *testing.T) {
	drv := dbtest.New(nil)
	db := Wrap(drv.DB())
	defer db.Close()

	err := db.Transaction(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.ExecContext(context.Background(), "INSERT INTO planning_runs VALUES ($1)", "x")
		return err
	})
	if err != nil {
		t.Fatalf("事务失败: %v", err)
	}
	if drv.Commits() != 1 || drv.Rollbacks() != 0 {
		t.Errorf("期望提交1次回滚0次，实际 %d/%d", drv.Commits(), drv.Rollbacks())
	}
	if len(drv.CallsMatching("INSERT")) != 1 {
		t.Error("INSERT 语句应被执行")
	}
}

func TestTransaction_Rollback(t *testing.T) {
	drv := dbtest.New(nil)
	db := Wrap(drv.DB())
	defer db.Close()

	boom := errors.New("boom")
	err := db.Transaction(context.Background(), func(tx *sql.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("应返回原始错误，实际 %v", err)
	}
	if drv.Commits() != 0 || drv.Rollbacks() != 1 {
		t.Errorf("期望提交0次回滚1次，实际 %d/%d", drv.Commits(), drv.Rollbacks())
	}
}

func TestTransaction_Panic(t *testing.T) {
	drv := dbtest.New(nil)
	db := Wrap(drv.DB())
	defer db.Close()

	defer func() {
		if recover() == nil {
			t.Error("panic 应继续向上抛出")
		}
		if drv.Rollbacks() != 1 {
			t.Errorf("panic 时应回滚，实际回滚 %d 次", drv.Rollbacks())
		}
	}()
	_ = db.Transaction(context.Background(), func(tx *sql.Tx) error {
		panic("boom")
	})
}

func TestOpen_Health(t *testing.T) {
	drv := dbtest.New(nil)
	db := Wrap(drv.DB())
	defer db.Close()

	db.SetSlowThreshold(time.Nanosecond)
	if err := db.Health(context.Background()); err != nil {
		t.Fatalf("健康检查失败: %v", err)
	}
	if _, err := db.ExecContext(context.Background(), "SELECT 1"); err != nil {
		t.Fatalf("执行失败: %v", err)
	}
}

func TestTruncateQuery(t *testing.T) {
	short := "SELECT 1"
	if truncateQuery(short) != short {
		t.Error("短查询不应截断")
	}
	long := strings.Repeat("x", 300)
	got := truncateQuery(long)
	if len(got) != 203 || !strings.HasSuffix(got, "...") {
		t.Errorf("长查询截断错误: len=%d", len(got))
	}
}
