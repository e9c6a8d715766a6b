package frame

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

const sampleCSV = `gene,s1,s2,s3
a,1,2,3
b,-0.5,0,1e-3
`

func TestNew(t *testing.T) {
	values := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	f, err := New(values, []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"0", "1", "2"}, f.Columns)
	assert.Equal(t, []string{"x", "y"}, f.Index)

	_, err = New(values, []string{"x"})
	assert.Error(t, err)
	_, err = NewLabeled(values, []string{"x", "y"}, []string{"a"})
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	assert.Equal(t, "gene", f.IndexName)
	assert.Equal(t, []string{"a", "b"}, f.Index)
	assert.Equal(t, []string{"s1", "s2", "s3"}, f.Columns)
	rows, cols := f.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, 3, cols)
	assert.Equal(t, []float64{-0.5, 0, 1e-3}, f.Values.RawRowView(1))
}

func TestReadCSVErrors(t *testing.T) {
	for _, text := range []string{
		"",
		"gene,s1\n",
		"gene\na\n",
		"gene,s1\na,x\n",
		"gene,s1,s2\na,1\n",
	} {
		_, err := ReadCSV(strings.NewReader(text))
		assert.Error(t, err, "input %q", text)
	}
}

func TestCSVRoundTrip(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.WriteCSV(&buf))
	assert.Equal(t, "gene,s1,s2,s3\na,1,2,3\nb,-0.5,0,0.001\n", buf.String())

	path := filepath.Join(t.TempDir(), "frame.csv")
	require.NoError(t, f.WriteCSVFile(path))
	loaded, err := ReadCSVFile(path)
	require.NoError(t, err)
	assert.Equal(t, f.Index, loaded.Index)
	assert.Equal(t, f.Columns, loaded.Columns)
	assert.True(t, mat.Equal(f.Values, loaded.Values))
}

func TestReadCSVFileMissing(t *testing.T) {
	_, err := ReadCSVFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestRender(t *testing.T) {
	values := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5.123456789, 6})
	f, err := New(values, []string{"r0", "r1", "r2"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.Render(&buf, 2))
	out := buf.String()
	assert.Contains(t, out, "r0")
	assert.Contains(t, out, "r1")
	assert.NotContains(t, out, "r2")
	assert.Contains(t, out, "...")

	buf.Reset()
	require.NoError(t, f.Render(&buf, 0))
	out = buf.String()
	assert.Contains(t, out, "r2")
	assert.Contains(t, out, "5.12346")
	assert.NotContains(t, out, "...")
}
