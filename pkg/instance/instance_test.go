package instance

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthloc/healthloc/pkg/errors"
)

const sample = `
name: trois-villes
triangle: lower
cities:
  - name: A
    population: 100
  - name: B
    population: 50
  - name: C
    population: 200
distances:
  - ["", "", ""]
  - [5, "", ""]
  - [10, 7, ""]
fixed:
  facilities: [A]
  alpha: 0.2
joint:
  k: 2
  alpha: 0.1
flow:
  facilities: [2, 0]
  demand: [30, 10]
sweep: [0.1, 0.2]
`

func TestParse(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "trois-villes", f.Name)
	require.Len(t, f.Cities, 3)
	assert.Equal(t, "5", f.Distances[1][0])
	require.NotNil(t, f.Fixed)
	assert.Equal(t, []string{"A"}, f.Fixed.Facilities)
	assert.Equal(t, 2, f.Joint.K)
	assert.Equal(t, []int{30, 10}, f.Flow.Demand)
	assert.Equal(t, []float64{0.1, 0.2}, f.Sweep)

	inst, err := f.Instance()
	require.NoError(t, err)
	assert.Equal(t, 3, inst.N())
	assert.Equal(t, 7.0, inst.Distances.At(1, 2))
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse(strings.NewReader("citiez: []\n"))
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestInstance_MalformedMatrix(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)
	f.Distances[2][1] = ""

	_, err = f.Instance()
	assert.Equal(t, errors.CodeMalformedMatrix, errors.GetCode(err))
}

func TestParseCSV(t *testing.T) {
	data := "Ville,Population,A,B,C\n" +
		"A,100,,,\n" +
		"B,50,5,,\n" +
		"C,200,10,7,\n"

	f, err := ParseCSV(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "C", f.Cities[2].Name)
	assert.Equal(t, 200, f.Cities[2].Population)

	inst, err := f.Instance()
	require.NoError(t, err)
	assert.Equal(t, 10.0, inst.Distances.At(0, 2))
}

func TestParseCSV_Latin1(t *testing.T) {
	data := []byte("Ville,Population,Lyon,Saint-\xe9tienne\n" +
		"Lyon,500,,\n" +
		"Saint-\xe9tienne,170,60,\n")

	f, err := ParseCSV(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "Saint-étienne", f.Cities[1].Name)

	idx, ok := f.Territory().IndexOf("Saint-étienne")
	require.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestParseCSV_UTF8Unchanged(t *testing.T) {
	data := "Ville,Population,Besançon,Orléans\nBesançon,110,,\nOrléans,115,250,\n"

	f, err := ParseCSV(strings.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []string{"Besançon", "Orléans"}, f.Territory().Names())
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"空表", "Ville,Population\n"},
		{"缺少人口列", "Ville,A\nA,\n"},
		{"人口非整数", "Ville,Population,A\nA,many,\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(strings.NewReader(tt.data))
			assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
		})
	}
}

func TestLoad_RoundTrip(t *testing.T) {
	f, err := Parse(strings.NewReader(sample))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))

	path := filepath.Join(t.TempDir(), "instance.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, f, loaded)
}

func TestLoad_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "villes.csv")
	require.NoError(t, os.WriteFile(path, []byte("Ville,Population,A,B\nA,1,,\nB,2,3,\n"), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "villes", f.Name)
	assert.Equal(t, "lower", f.Triangle)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}
