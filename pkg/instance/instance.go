// Package instance 读取问题实例文件
//
// 支持两种格式：YAML 实例文件（城市、半填距离表与各变体参数），
// 以及原始城市表 CSV（城市名、人口、每个城市一列距离）。
package instance

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"gopkg.in/yaml.v3"

	"github.com/healthloc/healthloc/pkg/distance"
	"github.com/healthloc/healthloc/pkg/errors"
	"github.com/healthloc/healthloc/pkg/model"
	"github.com/healthloc/healthloc/pkg/planner/formulate"
)

// CityEntry 实例文件中的城市
type CityEntry struct {
	Name       string `yaml:"name" json:"name"`
	Population int    `yaml:"population" json:"population"`
}

// File YAML 实例文件
type File struct {
	Name      string      `yaml:"name" json:"name"`
	Triangle  string      `yaml:"triangle" json:"triangle"` // lower/upper，默认 lower
	Cities    []CityEntry `yaml:"cities" json:"cities"`
	Distances [][]string  `yaml:"distances" json:"distances"`

	Fixed *formulate.FixedConfig `yaml:"fixed,omitempty" json:"fixed,omitempty"`
	Joint *formulate.JointConfig `yaml:"joint,omitempty" json:"joint,omitempty"`
	Flow  *formulate.FlowConfig  `yaml:"flow,omitempty" json:"flow,omitempty"`
	Sweep []float64              `yaml:"sweep,omitempty" json:"sweep,omitempty"`
}

// Load 按扩展名读取实例文件：.csv 为城市表，其余按 YAML 解析
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "读取实例文件失败").
			WithField("path", path)
	}
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		f, err := ParseCSV(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		f.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return f, nil
	}
	return Parse(bytes.NewReader(data))
}

// Parse 解析 YAML 实例
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "解析实例文件失败")
	}
	return &f, nil
}

// ParseCSV 解析城市表：表头为 城市列、人口列以及每个城市一列距离
//
// 城市列名可为 Ville/City/Name，人口列名可为 Population/Pop；
// 距离列按出现顺序对应城市顺序，单元格保持原样交给距离矩阵重建。
// 不是合法 UTF-8 的输入按 Latin-1 解码。
func ParseCSV(r io.Reader) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "读取城市表失败")
	}
	if !utf8.Valid(data) {
		data, err = charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidInput, "城市表编码无法识别")
		}
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidInput, "解析城市表失败")
	}
	if len(records) < 2 {
		return nil, errors.InvalidInput("csv", "城市表为空")
	}

	header := records[0]
	nameCol, popCol := -1, -1
	var distCols []int
	for c, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "ville", "city", "name":
			nameCol = c
		case "population", "pop":
			popCol = c
		default:
			distCols = append(distCols, c)
		}
	}
	if nameCol < 0 || popCol < 0 {
		return nil, errors.InvalidInput("csv", "缺少城市列或人口列")
	}

	f := &File{Triangle: distance.Lower.String()}
	for i, rec := range records[1:] {
		if nameCol >= len(rec) || popCol >= len(rec) {
			return nil, errors.InvalidInput("csv", fmt.Sprintf("第 %d 行列数不足", i+2))
		}
		pop, err := strconv.Atoi(strings.TrimSpace(rec[popCol]))
		if err != nil {
			return nil, errors.InvalidInput("population", fmt.Sprintf("第 %d 行人口不是整数: %q", i+2, rec[popCol]))
		}
		f.Cities = append(f.Cities, CityEntry{Name: strings.TrimSpace(rec[nameCol]), Population: pop})

		row := make([]string, len(distCols))
		for k, c := range distCols {
			if c < len(rec) {
				row[k] = rec[c]
			}
		}
		f.Distances = append(f.Distances, row)
	}
	return f, nil
}

// Territory 返回参考区域
func (f *File) Territory() *model.Territory {
	names := make([]string, len(f.Cities))
	pops := make([]int, len(f.Cities))
	for i, c := range f.Cities {
		names[i] = c.Name
		pops[i] = c.Population
	}
	return model.NewTerritory(names, pops)
}

// Instance 重建距离矩阵并构造问题实例
func (f *File) Instance() (*formulate.Instance, error) {
	d, err := distance.Build(f.Distances, distance.ParseTriangle(f.Triangle))
	if err != nil {
		return nil, err
	}
	return formulate.NewInstance(f.Territory(), d)
}

// Write 以 YAML 格式写出实例
func (f *File) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "写出实例文件失败")
	}
	return enc.Close()
}
