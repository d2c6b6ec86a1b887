package lpformat

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/healthloc/healthloc/pkg/mip"
)

func TestWrite(t *testing.T) {
	m := mip.NewModel("demo")
	require.NoError(t, m.AddVariable("x_0", mip.Binary()))
	require.NoError(t, m.AddVariable("x_1", mip.Binary()))
	require.NoError(t, m.AddVariable("y", mip.IntegerRange(0, 100)))
	require.NoError(t, m.AddConstraint("c0", mip.Sum("x_0", "x_1"), mip.Equal, 1))
	require.NoError(t, m.AddConstraint("c1", mip.NewExpr().Plus(1, "x_0").Plus(-1, "x_1"), mip.LessEqual, 0))
	require.NoError(t, m.AddConstraint("c2", mip.NewExpr().Plus(2.5, "y"), mip.GreaterEqual, 5))
	require.NoError(t, m.SetObjective(mip.NewExpr().Plus(5, "x_1").Plus(0.5, "y"), mip.Minimize))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, m))
	out := buf.String()

	expected := []string{
		"\\ Model demo",
		"Minimize",
		" obj: 5 x_1 + 0.5 y",
		"Subject To",
		" c0: 1 x_0 + 1 x_1 = 1",
		" c1: 1 x_0 - 1 x_1 <= 0",
		" c2: 2.5 y >= 5",
		"Bounds",
		" 0 <= y <= 100",
		"Generals",
		" y",
		"Binaries",
		" x_0 x_1",
		"End",
	}
	assert.Equal(t, strings.Join(expected, "\n")+"\n", out)
}

func TestWrite_EmptyObjectiveAndMaximize(t *testing.T) {
	m := mip.NewModel("empty")
	require.NoError(t, m.AddVariable("a", mip.Binary()))
	require.NoError(t, m.SetObjective(mip.NewExpr(), mip.Maximize))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, m))
	assert.Contains(t, buf.String(), "Maximize\n obj: 0 a\n")
}

func TestWrite_LongRowsWrap(t *testing.T) {
	m := mip.NewModel("wide")
	var names []string
	for i := 0; i < 20; i++ {
		name := mip.Name("x", i)
		names = append(names, name)
		require.NoError(t, m.AddVariable(name, mip.Binary()))
	}
	require.NoError(t, m.AddConstraint("c0", mip.Sum(names...), mip.Equal, 1))

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, m))
	for _, line := range strings.Split(buf.String(), "\n") {
		assert.LessOrEqual(t, len(line), 255)
	}
}

func TestWrite_NoVariables(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, mip.NewModel("none")))
}
