// Package lowrank holds matrices in factored form U·diag(S)·V.
//
// An SVD value is never modified after construction. Every operation returns
// a new value with its own backing storage.
package lowrank

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// SVD is a rank-r factorization of a rows×cols matrix.
// U is rows×r with orthonormal columns, S has r non-negative values and
// V is r×cols with orthonormal rows.
type SVD struct {
	U *mat.Dense
	S []float64
	V *mat.Dense
}

// New returns the factorization built from u, s and v.
// The factors are copied. New panics if their ranks disagree.
func New(u mat.Matrix, s []float64, v mat.Matrix) SVD {
	_, uc := u.Dims()
	vr, _ := v.Dims()
	if uc != len(s) || vr != len(s) {
		panic(fmt.Sprintf("lowrank: rank mismatch u=%d s=%d v=%d", uc, len(s), vr))
	}
	return SVD{
		U: mat.DenseCopyOf(u),
		S: append([]float64(nil), s...),
		V: mat.DenseCopyOf(v),
	}
}

// Zero returns the rank-1 factorization of the rows×cols zero matrix.
func Zero(rows, cols int) SVD {
	u := mat.NewDense(rows, 1, nil)
	u.Set(0, 0, 1)
	v := mat.NewDense(1, cols, nil)
	v.Set(0, 0, 1)
	return SVD{U: u, S: []float64{0}, V: v}
}

// FromMatrix factorizes a exactly and drops the components whose singular
// value is not strictly positive.
func FromMatrix(a mat.Matrix) (SVD, error) {
	var f mat.SVD
	if ok := f.Factorize(a, mat.SVDThin); !ok {
		return SVD{}, fmt.Errorf("cannot factorize")
	}
	var u, v mat.Dense
	f.UTo(&u)
	f.VTo(&v)
	s := f.Values(nil)
	return SVD{U: &u, S: s, V: mat.DenseCopyOf(v.T())}.Trim(0), nil
}

// Rank returns the number of components.
func (z SVD) Rank() int { return len(z.S) }

// Dims returns the shape of the reconstructed matrix.
func (z SVD) Dims() (rows, cols int) {
	rows, _ = z.U.Dims()
	_, cols = z.V.Dims()
	return
}

// ToMatrix reconstructs U·diag(S)·V.
func (z SVD) ToMatrix() *mat.Dense {
	var us mat.Dense
	us.Mul(z.U, mat.NewDiagDense(len(z.S), append([]float64(nil), z.S...)))
	var m mat.Dense
	m.Mul(&us, z.V)
	return &m
}

// T returns the factorization of the transposed matrix.
func (z SVD) T() SVD {
	return SVD{
		U: mat.DenseCopyOf(z.V.T()),
		S: append([]float64(nil), z.S...),
		V: mat.DenseCopyOf(z.U.T()),
	}
}

// Trim keeps the leading components. The kept rank is the number of strictly
// positive singular values, capped at r when r > 0, and never less than 1.
//
// Trim does not sort; "leading" means largest only when S is descending.
func (z SVD) Trim(r int) SVD {
	positive := 0
	for _, s := range z.S {
		if s > 0 {
			positive++
		}
	}
	if r <= 0 || r > positive {
		r = positive
	}
	r = max(r, 1)

	rows, cols := z.Dims()
	return SVD{
		U: mat.DenseCopyOf(z.U.Slice(0, rows, 0, r)),
		S: append([]float64(nil), z.S[:r]...),
		V: mat.DenseCopyOf(z.V.Slice(0, r, 0, cols)),
	}
}

// NuclearNorm returns the sum of the singular values.
func (z SVD) NuclearNorm() float64 {
	return floats.Sum(z.S)
}
