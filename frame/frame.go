// Package frame implements a small labeled table of
// floating-point values backed by a gonum matrix.
package frame

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/mat"
)

// Frame is a matrix with labeled rows and columns.
type Frame struct {
	// IndexName is the header of the index column in CSV
	// files.
	IndexName string

	Index   []string
	Columns []string
	Values  *mat.Dense
}

// New creates a frame whose columns are labeled "0", "1",
// and so on.
func New(values *mat.Dense, index []string) (*Frame, error) {
	_, cols := values.Dims()
	return NewLabeled(values, index, lo.Times(cols, strconv.Itoa))
}

// NewLabeled creates a frame with explicit column labels.
func NewLabeled(values *mat.Dense, index, columns []string) (*Frame, error) {
	rows, cols := values.Dims()
	if len(index) != rows {
		return nil, errors.Errorf("%d index labels for %d rows", len(index), rows)
	}
	if len(columns) != cols {
		return nil, errors.Errorf("%d column labels for %d columns", len(columns), cols)
	}
	return &Frame{Index: index, Columns: columns, Values: values}, nil
}

// ReadCSV reads a frame from CSV data.
//
// The first row holds the column labels and the first
// column holds the index.
// Every other cell must be a number.
func ReadCSV(r io.Reader) (*Frame, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "read csv")
	}
	if len(records) < 2 {
		return nil, errors.New("read csv: need a header and at least one row")
	}
	header := records[0]
	if len(header) < 2 {
		return nil, errors.New("read csv: need an index column and at least one value column")
	}
	body := records[1:]
	values := mat.NewDense(len(body), len(header)-1, nil)
	index := make([]string, len(body))
	for i, record := range body {
		index[i] = record[0]
		for j, cell := range record[1:] {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "read csv: row %d, column %q", i+1, header[j+1])
			}
			values.Set(i, j, v)
		}
	}
	f, err := NewLabeled(values, index, header[1:])
	if err != nil {
		return nil, errors.Wrap(err, "read csv")
	}
	f.IndexName = header[0]
	return f, nil
}

// ReadCSVFile reads a frame from a CSV file.
func ReadCSVFile(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer file.Close()
	return ReadCSV(file)
}

// Dims returns the number of rows and columns.
func (f *Frame) Dims() (rows, cols int) {
	return f.Values.Dims()
}

// WriteCSV writes the frame in the format read by ReadCSV.
func (f *Frame) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(append([]string{f.IndexName}, f.Columns...)); err != nil {
		return errors.Wrap(err, "write csv")
	}
	for i, label := range f.Index {
		record := append([]string{label}, formatRow(f.Values.RawRowView(i), 'g', -1)...)
		if err := writer.Write(record); err != nil {
			return errors.Wrap(err, "write csv")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "write csv")
}

// WriteCSVFile writes the frame to a CSV file.
func (f *Frame) WriteCSVFile(path string) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := f.WriteCSV(file); err != nil {
		file.Close()
		return err
	}
	return errors.WithStack(file.Close())
}

// Render writes a human-readable preview of the frame.
//
// At most maxRows rows are shown, followed by an ellipsis
// row if some were left out.
// If maxRows is not positive, every row is shown.
func (f *Frame) Render(w io.Writer, maxRows int) error {
	table := tablewriter.NewWriter(w)
	table.Header(append([]string{f.IndexName}, f.Columns...))
	shown := len(f.Index)
	if maxRows > 0 && maxRows < shown {
		shown = maxRows
	}
	for i := 0; i < shown; i++ {
		row := append([]string{f.Index[i]}, formatRow(f.Values.RawRowView(i), 'g', 6)...)
		if err := table.Append(row); err != nil {
			return errors.Wrap(err, "render")
		}
	}
	if shown < len(f.Index) {
		ellipsis := lo.Times(len(f.Columns)+1, func(int) string { return "..." })
		if err := table.Append(ellipsis); err != nil {
			return errors.Wrap(err, "render")
		}
	}
	return errors.Wrap(table.Render(), "render")
}

func formatRow(row []float64, format byte, prec int) []string {
	return lo.Map(row, func(v float64, _ int) string {
		return strconv.FormatFloat(v, format, prec, 64)
	})
}
