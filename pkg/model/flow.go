package model

// DefaultFacilityCapacity 单个设施可接收的病人数上限
const DefaultFacilityCapacity = 100

// DefaultMaxPatients 需求总量的可接受上限
const DefaultMaxPatients = 500

// PatientFlow 病人转运矩阵（变体C的解释结果）
// Matrix[i][j] 表示来自分区 i、在设施 j 接受治疗的病人数
type PatientFlow struct {
	Facilities    []int    `json:"facilities"`
	FacilityNames []string `json:"facility_names"`
	Demand        []int    `json:"demand"`
	Capacity      int      `json:"capacity"`
	Matrix        [][]int  `json:"matrix"`
	Cost          float64  `json:"cost"`
}

// Transfer 一条转运记录
type Transfer struct {
	From     int    `json:"from"`
	To       int    `json:"to"`
	FromName string `json:"from_name"`
	ToName   string `json:"to_name"`
	Patients int    `json:"patients"`
	Local    bool   `json:"local"`
}

// K 返回设施数量
func (p *PatientFlow) K() int {
	return len(p.Matrix)
}

// Outbound 返回来自分区 i 的病人总数
func (p *PatientFlow) Outbound(i int) int {
	sum := 0
	for _, v := range p.Matrix[i] {
		sum += v
	}
	return sum
}

// Inbound 返回设施 j 接收的病人总数
func (p *PatientFlow) Inbound(j int) int {
	sum := 0
	for i := range p.Matrix {
		sum += p.Matrix[i][j]
	}
	return sum
}

// Local 返回分区 i 在本地接受治疗的病人数
func (p *PatientFlow) Local(i int) int {
	return p.Matrix[i][i]
}

// Transfers 列出所有非零流量，标签只由矩阵下标推导
func (p *PatientFlow) Transfers() []Transfer {
	var out []Transfer
	for i, row := range p.Matrix {
		for j, v := range row {
			if v == 0 {
				continue
			}
			out = append(out, Transfer{
				From:     i,
				To:       j,
				FromName: p.name(i),
				ToName:   p.name(j),
				Patients: v,
				Local:    i == j,
			})
		}
	}
	return out
}

func (p *PatientFlow) name(i int) string {
	if i < len(p.FacilityNames) {
		return p.FacilityNames[i]
	}
	return ""
}
