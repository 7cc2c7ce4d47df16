// Package sample collects linear observations of an unknown matrix and
// exposes them as a linear operator: forward map, adjoint map and spectral
// norm.
package sample

import (
	"errors"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/yyyoichi/bitstream-go"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrShape  = errors.New("measurement does not fit the sample shape")
	ErrKind   = errors.New("measurement kind is not accepted by the sample set")
	ErrLength = errors.New("measurements and values differ in length")
)

// Kind declares which measurements a Set accepts. It also selects how the
// operator norm is maintained.
type Kind int

const (
	// General accepts any measurement. The norm is recomputed on every call.
	General Kind = iota
	// RowKind accepts Row measurements only. The norm is maintained per row
	// and only rows changed since the last query are recomputed.
	RowKind
	// EntryKind accepts Entry measurements only. The norm is a running
	// maximum of the absolute entry scales.
	EntryKind
)

func (k Kind) String() string {
	switch k {
	case General:
		return "general"
	case RowKind:
		return "row"
	case EntryKind:
		return "entry"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Set is an append-only sequence of (measurement, value) pairs of a
// rows×cols matrix. A Set is not safe for concurrent use.
type Set struct {
	rows, cols int
	kind       Kind

	xs []Measurement
	ys []float64

	norm normKeeper
}

// New returns an empty Set of the given shape and kind.
func New(rows, cols int, kind Kind) *Set {
	if rows <= 0 || cols <= 0 {
		panic(mat.ErrZeroLength)
	}
	s := &Set{rows: rows, cols: cols, kind: kind}
	switch kind {
	case General:
		s.norm = &fullNorm{}
	case RowKind:
		s.norm = newRowNorm(rows)
	case EntryKind:
		s.norm = &entryNorm{}
	default:
		panic(fmt.Sprintf("sample: unknown kind %d", kind))
	}
	return s
}

// NewSet returns a Set accepting any measurement.
func NewSet(rows, cols int) *Set { return New(rows, cols, General) }

// NewRowSet returns a Set of row measurements.
func NewRowSet(rows, cols int) *Set { return New(rows, cols, RowKind) }

// NewEntrySet returns a Set of entry measurements.
func NewEntrySet(rows, cols int) *Set { return New(rows, cols, EntryKind) }

func (s *Set) Dims() (rows, cols int) { return s.rows, s.cols }

func (s *Set) Kind() Kind { return s.kind }

// Len returns the number of observations.
func (s *Set) Len() int { return len(s.xs) }

// Measurement returns the i-th measurement.
func (s *Set) Measurement(i int) Measurement { return s.xs[i] }

// Observed returns a copy of the observed values in insertion order.
func (s *Set) Observed() []float64 {
	return append([]float64(nil), s.ys...)
}

// AddAllObs appends the pairs (xs[i], ys[i]). Either every pair is appended
// or, when some measurement is rejected, none is and the returned error lists
// every rejected pair.
func (s *Set) AddAllObs(xs []Measurement, ys []float64) error {
	if len(xs) != len(ys) {
		return fmt.Errorf("%w: %d measurements, %d values", ErrLength, len(xs), len(ys))
	}
	var result *multierror.Error
	for i, x := range xs {
		if err := s.admit(x); err != nil {
			result = multierror.Append(result, fmt.Errorf("observation %d: %w", i, err))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return err
	}
	for i, x := range xs {
		s.xs = append(s.xs, x)
		s.ys = append(s.ys, ys[i])
		s.norm.observe(x)
	}
	return nil
}

// AddObs appends a single pair.
func (s *Set) AddObs(x Measurement, y float64) error {
	return s.AddAllObs([]Measurement{x}, []float64{y})
}

// AddEntry appends the observation y of scale·m[i, j].
func (s *Set) AddEntry(i, j int, scale, y float64) error {
	return s.AddObs(NewEntry(i, j, scale), y)
}

// AddRow appends the observation y of dot(v, m[i, :]).
func (s *Set) AddRow(i int, v []float64, y float64) error {
	return s.AddObs(NewRow(i, v), y)
}

func (s *Set) admit(x Measurement) error {
	if x == nil {
		return fmt.Errorf("%w: nil measurement", ErrKind)
	}
	switch s.kind {
	case RowKind:
		if _, ok := x.(Row); !ok {
			return fmt.Errorf("%w: %T in a %s set", ErrKind, x, s.kind)
		}
	case EntryKind:
		if _, ok := x.(Entry); !ok {
			return fmt.Errorf("%w: %T in a %s set", ErrKind, x, s.kind)
		}
	}
	return x.Fits(s.rows, s.cols)
}

// Value applies the forward map: the i-th element is the i-th measurement
// evaluated at m.
func (s *Set) Value(m mat.Matrix) []float64 {
	if r, c := m.Dims(); r != s.rows || c != s.cols {
		panic(mat.ErrShape)
	}
	v := make([]float64, len(s.xs))
	for i, x := range s.xs {
		v[i] = x.Sense(m)
	}
	return v
}

// AdjointValue applies the adjoint map to v, which has one element per
// observation.
func (s *Set) AdjointValue(v []float64) *mat.Dense {
	if len(v) != len(s.xs) {
		panic(mat.ErrShape)
	}
	total := mat.NewDense(s.rows, s.cols, nil)
	for i, x := range s.xs {
		x.AddTo(total, v[i])
	}
	return total
}

// RSSGrad returns the gradient of ½‖Value(m) − y‖² at m.
func (s *Set) RSSGrad(m mat.Matrix) *mat.Dense {
	r := s.Value(m)
	floats.Sub(r, s.ys)
	return s.AdjointValue(r)
}

// OpNorm returns the spectral norm of the measurement operator, 0 for an
// empty set.
func (s *Set) OpNorm() (float64, error) {
	return s.norm.opNorm(s)
}

// Mask returns a row-major bitmap of the cells that some measurement depends
// on. It holds rows*cols bits.
func (s *Set) Mask() *bitstream.BitReader[uint64] {
	covered := make([]bool, s.rows*s.cols)
	var flat []float64
	for _, x := range s.xs {
		switch x := x.(type) {
		case Entry:
			covered[x.Row*s.cols+x.Col] = true
		case Row:
			for j, v := range x.values {
				if v != 0 {
					covered[x.Index*s.cols+j] = true
				}
			}
		default:
			if flat == nil {
				flat = make([]float64, s.rows*s.cols)
			} else {
				clear(flat)
			}
			x.Flatten(flat, s.cols)
			for k, v := range flat {
				if v != 0 {
					covered[k] = true
				}
			}
		}
	}
	w := bitstream.NewBitWriter[uint64](0, 0)
	for _, c := range covered {
		w.WriteBool(c)
	}
	r := bitstream.NewBitReader(w.Data(), 0, 0)
	r.SetBits(len(covered))
	return r
}
