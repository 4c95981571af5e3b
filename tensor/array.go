// Package tensor holds the canonical instances x features matrix that every
// wire encoding is decoded into before a model sees it.
package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Array is a dense row-major matrix. The zero value is an empty 0x0 array.
type Array struct {
	rows, cols int
	data       []float64
}

// New builds a rows x cols array over data. data is used as-is, not copied.
func New(rows, cols int, data []float64) (Array, error) {
	if rows < 0 || cols < 0 {
		return Array{}, fmt.Errorf("tensor: negative dimensions %dx%d", rows, cols)
	}
	if cols != 0 && rows > len(data)/cols {
		return Array{}, fmt.Errorf("tensor: %dx%d exceeds the %d values given", rows, cols, len(data))
	}
	if rows*cols != len(data) {
		return Array{}, fmt.Errorf("tensor: %dx%d needs %d values, got %d", rows, cols, rows*cols, len(data))
	}
	return Array{rows: rows, cols: cols, data: data}, nil
}

// Zeros returns a rows x cols array of zeros.
func Zeros(rows, cols int) Array {
	return Array{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// FromRows copies rows into a new array. Every row must have the same length.
func FromRows(rows [][]float64) (Array, error) {
	if len(rows) == 0 {
		return Array{}, nil
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return Array{}, fmt.Errorf("tensor: row %d has %d values, want %d", i, len(r), cols)
		}
		data = append(data, r...)
	}
	return Array{rows: len(rows), cols: cols, data: data}, nil
}

// MustFromRows is FromRows for literals in tests and examples.
func MustFromRows(rows [][]float64) Array {
	a, err := FromRows(rows)
	if err != nil {
		panic(err)
	}
	return a
}

// FromMatrix copies any gonum matrix.
func FromMatrix(m mat.Matrix) Array {
	r, c := m.Dims()
	out := Zeros(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.data[i*c+j] = m.At(i, j)
		}
	}
	return out
}

func (a Array) Dims() (rows, cols int) { return a.rows, a.cols }
func (a Array) Rows() int              { return a.rows }
func (a Array) Cols() int              { return a.cols }
func (a Array) Empty() bool            { return a.rows == 0 || a.cols == 0 }

func (a Array) At(i, j int) float64 { return a.data[i*a.cols+j] }

// Row returns a copy of row i.
func (a Array) Row(i int) []float64 {
	out := make([]float64, a.cols)
	copy(out, a.data[i*a.cols:(i+1)*a.cols])
	return out
}

// RowsCopy returns the array as a fresh slice of rows.
func (a Array) RowsCopy() [][]float64 {
	out := make([][]float64, a.rows)
	for i := range out {
		out[i] = a.Row(i)
	}
	return out
}

// Values returns a copy of the row-major values.
func (a Array) Values() []float64 {
	out := make([]float64, len(a.data))
	copy(out, a.data)
	return out
}

// Dense returns a gonum copy of the array, or nil when it is empty since
// gonum does not allow zero-sized matrices.
func (a Array) Dense() *mat.Dense {
	if a.Empty() {
		return nil
	}
	return mat.NewDense(a.rows, a.cols, a.Values())
}

// Equal reports whether a and b have the same shape and values.
func (a Array) Equal(b Array) bool {
	if a.rows != b.rows || a.cols != b.cols {
		return false
	}
	for i := range a.data {
		if a.data[i] != b.data[i] {
			return false
		}
	}
	return true
}

func (a Array) String() string {
	return fmt.Sprintf("Array(%dx%d)%v", a.rows, a.cols, a.RowsCopy())
}
