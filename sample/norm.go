package sample

import (
	"math"

	"github.com/yyyoichi/impute/internal/svd"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// normKeeper maintains the operator norm of a Set as observations arrive.
type normKeeper interface {
	observe(x Measurement)
	opNorm(s *Set) (float64, error)
}

// fullNorm stacks every flattened measurement and factorizes the result on
// each query.
type fullNorm struct{}

func (fullNorm) observe(Measurement) {}

func (fullNorm) opNorm(s *Set) (float64, error) {
	if len(s.xs) == 0 {
		return 0, nil
	}
	n := s.rows * s.cols
	a := mat.NewDense(len(s.xs), n, nil)
	for i, x := range s.xs {
		x.Flatten(a.RawRowView(i), s.cols)
	}
	return svd.Spectral(a)
}

type rowState uint8

const (
	rowClean rowState = iota
	rowDirty
)

// rowNorm keeps the measurements of each target row in a bucket. Buckets of
// different rows act on disjoint coordinates, so the operator norm is the
// largest per-bucket norm, and only buckets that grew need refactorizing.
//
// Buckets only grow; removing observations would need its own invalidation.
type rowNorm struct {
	buckets [][]Row
	states  []rowState
	norms   []float64

	fresh  bool
	cached float64
}

func newRowNorm(rows int) *rowNorm {
	return &rowNorm{
		buckets: make([][]Row, rows),
		states:  make([]rowState, rows),
		norms:   make([]float64, rows),
		fresh:   true,
	}
}

func (n *rowNorm) observe(x Measurement) {
	r := x.(Row)
	n.buckets[r.Index] = append(n.buckets[r.Index], r)
	n.states[r.Index] = rowDirty
	n.fresh = false
}

func (n *rowNorm) opNorm(s *Set) (float64, error) {
	if n.fresh {
		return n.cached, nil
	}
	for i, st := range n.states {
		if st != rowDirty {
			continue
		}
		if err := n.refresh(i, s.cols); err != nil {
			return 0, err
		}
	}
	n.cached = floats.Max(n.norms)
	n.fresh = true
	return n.cached, nil
}

func (n *rowNorm) refresh(i, cols int) error {
	bucket := n.buckets[i]
	a := mat.NewDense(len(bucket), cols, nil)
	for k, r := range bucket {
		a.SetRow(k, r.values)
	}
	norm, err := svd.Spectral(a)
	if err != nil {
		return err
	}
	n.norms[i] = norm
	n.states[i] = rowClean
	return nil
}

// entryNorm tracks the largest absolute scale seen. For entry measurements
// that is the operator norm as long as no cell is observed twice.
type entryNorm struct {
	max float64
}

func (n *entryNorm) observe(x Measurement) {
	n.max = math.Max(n.max, math.Abs(x.(Entry).Value))
}

func (n *entryNorm) opNorm(*Set) (float64, error) {
	return n.max, nil
}
