package sample

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Measurement is a linear functional of a matrix.
type Measurement interface {
	// Sense evaluates the functional at m.
	Sense(m mat.Matrix) float64
	// AddTo adds scale times the gradient of the functional into dst.
	AddTo(dst *mat.Dense, scale float64)
	// Fits reports whether the functional is defined on rows×cols matrices.
	Fits(rows, cols int) error
	// Flatten writes the row-major coefficients of the functional into dst,
	// which has length rows*cols and is zero on entry.
	Flatten(dst []float64, cols int)
}

var (
	_ Measurement = Entry{}
	_ Measurement = Row{}
)

// Entry observes Value times a single cell.
type Entry struct {
	Row, Col int
	Value    float64
}

// NewEntry returns the measurement scale·m[i, j].
func NewEntry(i, j int, scale float64) Entry {
	return Entry{Row: i, Col: j, Value: scale}
}

func (e Entry) Sense(m mat.Matrix) float64 {
	return e.Value * m.At(e.Row, e.Col)
}

func (e Entry) AddTo(dst *mat.Dense, scale float64) {
	dst.Set(e.Row, e.Col, dst.At(e.Row, e.Col)+scale*e.Value)
}

func (e Entry) Fits(rows, cols int) error {
	if e.Row < 0 || e.Row >= rows || e.Col < 0 || e.Col >= cols {
		return fmt.Errorf("%w: entry (%d, %d) outside %dx%d", ErrShape, e.Row, e.Col, rows, cols)
	}
	return nil
}

func (e Entry) Flatten(dst []float64, cols int) {
	dst[e.Row*cols+e.Col] = e.Value
}

// Row observes the dot product of a vector with one row of the matrix.
type Row struct {
	Index  int
	values []float64
}

// NewRow returns the measurement dot(v, m[i, :]). v is copied.
func NewRow(i int, v []float64) Row {
	return Row{Index: i, values: append([]float64(nil), v...)}
}

// RowValue returns a copy of the coefficient vector.
func (r Row) RowValue() []float64 {
	return append([]float64(nil), r.values...)
}

func (r Row) Sense(m mat.Matrix) float64 {
	_, cols := m.Dims()
	if cols != len(r.values) {
		panic(mat.ErrShape)
	}
	var sum float64
	for j, v := range r.values {
		sum += v * m.At(r.Index, j)
	}
	return sum
}

func (r Row) AddTo(dst *mat.Dense, scale float64) {
	floats.AddScaled(dst.RawRowView(r.Index), scale, r.values)
}

func (r Row) Fits(rows, cols int) error {
	if r.Index < 0 || r.Index >= rows {
		return fmt.Errorf("%w: row %d outside %dx%d", ErrShape, r.Index, rows, cols)
	}
	if len(r.values) != cols {
		return fmt.Errorf("%w: row vector has length %d, want %d", ErrShape, len(r.values), cols)
	}
	return nil
}

func (r Row) Flatten(dst []float64, cols int) {
	copy(dst[r.Index*cols:(r.Index+1)*cols], r.values)
}
