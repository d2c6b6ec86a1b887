package mip

// Status 求解状态
type Status int

const (
	StatusOptimal Status = iota
	StatusInfeasible
	StatusUnbounded
	StatusError
)

// String 返回状态名称
func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "Optimal"
	case StatusInfeasible:
		return "Infeasible"
	case StatusUnbounded:
		return "Unbounded"
	default:
		return "Error"
	}
}

// Solution 求解结果，Values 以建模时声明的变量名为键
type Solution struct {
	Status    Status             `json:"status"`
	Values    map[string]float64 `json:"values"`
	Objective float64            `json:"objective"`
}

// Value 返回变量取值
func (s *Solution) Value(name string) (float64, bool) {
	v, ok := s.Values[name]
	return v, ok
}
