package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		err      error
		expected int
	}{
		{InvalidConfiguration("alpha", "alpha 必须严格为正"), http.StatusBadRequest},
		{MalformedMatrix(1, 0, "缺少距离值"), http.StatusBadRequest},
		{SolverFailure("Infeasible"), http.StatusUnprocessableEntity},
		{InconsistentSolution("城市未分配"), http.StatusInternalServerError},
		{NotFound("运行", "x"), http.StatusNotFound},
		{New(CodeUnauthorized, "x"), http.StatusUnauthorized},
		{New(CodeTimeout, "x"), http.StatusGatewayTimeout},
		{fmt.Errorf("plain"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(GetCode(tt.err)), func(t *testing.T) {
			if got := GetHTTPStatus(tt.err); got != tt.expected {
				t.Errorf("GetHTTPStatus() = %d, expected %d", got, tt.expected)
			}
		})
	}
}

func TestWrapAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeDatabaseError, "写入失败")

	if !errors.Is(err, cause) {
		t.Error("应能通过 errors.Is 找到原始错误")
	}
	wrapped := fmt.Errorf("外层: %w", err)
	if !Is(wrapped, CodeDatabaseError) {
		t.Error("包装后仍应识别错误码")
	}
	if GetCode(wrapped) != CodeDatabaseError {
		t.Errorf("GetCode() = %s", GetCode(wrapped))
	}
	if appErr, ok := As(wrapped); !ok || appErr.Cause != cause {
		t.Error("As 应返回内层 AppError")
	}
}

func TestSolverFailureStatus(t *testing.T) {
	err := SolverFailure("Unbounded")
	if err.Fields["status"] != "Unbounded" {
		t.Errorf("status 字段错误: %v", err.Fields)
	}
}

func TestValidationErrors(t *testing.T) {
	ve := &ValidationErrors{}
	if ve.HasErrors() {
		t.Error("空集合不应有错误")
	}

	ve.Add("alpha", "alpha 必须严格为正")
	ve.Add("k", "k 超出范围")
	if !ve.HasErrors() {
		t.Fatal("应有错误")
	}

	err := ve.ToAppError()
	if err.Code != CodeValidationFail {
		t.Errorf("Code = %s", err.Code)
	}
	if err.Fields["k"] != "k 超出范围" {
		t.Errorf("字段未合并: %v", err.Fields)
	}
}
