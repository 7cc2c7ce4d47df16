package svd

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Factors is the raw output of a factorization: u is rows×k, s has k values
// in descending order and v is k×cols.
type Factors struct {
	U *mat.Dense
	S []float64
	V *mat.Dense
}

// Exact computes the thin SVD of a and keeps the components whose singular
// value is at least level, and at least one component.
// The rank hint is ignored.
func Exact(a mat.Matrix, level float64, _ int) (Factors, error) {
	var result mat.SVD
	if ok := result.Factorize(a, mat.SVDThin); !ok {
		return Factors{}, fmt.Errorf("cannot factorize")
	}
	s := result.Values(nil)

	var u, v mat.Dense
	result.UTo(&u)
	result.VTo(&v)

	k := 0
	for k < len(s) && s[k] >= level {
		k++
	}
	return truncate(&u, s, mat.DenseCopyOf(v.T()), max(k, 1)), nil
}

// Spectral returns the largest singular value of a.
func Spectral(a mat.Matrix) (float64, error) {
	var result mat.SVD
	if ok := result.Factorize(a, mat.SVDNone); !ok {
		return 0, fmt.Errorf("cannot factorize")
	}
	s := result.Values(nil)
	if len(s) == 0 {
		return 0, nil
	}
	return s[0], nil
}

// Randomized approximates the leading singular triplets with a Gaussian
// range finder followed by an exact SVD of the projected matrix.
type Randomized struct {
	// Oversample is added to the sketch size.
	Oversample int
	// PowerIters is the number of subspace iterations applied to the sketch.
	PowerIters int
	// Seed drives the Gaussian test matrix.
	Seed uint64
}

// NewRandomized returns a Randomized factorizer with the usual defaults.
func NewRandomized(seed uint64) *Randomized {
	return &Randomized{Oversample: 10, PowerIters: 2, Seed: seed}
}

// Factorize returns at least rank components (or 10 when rank is not
// positive). The sketch is doubled until its smallest singular value drops
// below level or it spans the whole matrix, so that no component at or
// above level is lost.
func (r *Randomized) Factorize(a mat.Matrix, level float64, rank int) (Factors, error) {
	rows, cols := a.Dims()
	full := min(rows, cols)
	if rank <= 0 {
		rank = 10
	}
	src := rand.NewPCG(r.Seed, r.Seed^0x9e3779b97f4a7c15)
	for k := min(rank+r.Oversample, full); ; k = min(2*k, full) {
		f, err := r.sketch(a, k, src)
		if err != nil {
			return Factors{}, err
		}
		if k == full || f.S[len(f.S)-1] < level {
			n := 0
			for n < len(f.S) && f.S[n] >= level {
				n++
			}
			return truncate(f.U, f.S, f.V, max(n, 1)), nil
		}
	}
}

func (r *Randomized) sketch(a mat.Matrix, k int, src rand.Source) (Factors, error) {
	_, cols := a.Dims()
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	omega := mat.NewDense(cols, k, nil)
	for i := range cols {
		for j := range k {
			omega.Set(i, j, normal.Rand())
		}
	}

	var y mat.Dense
	y.Mul(a, omega)
	q := orthonormal(&y)
	for range r.PowerIters {
		var z mat.Dense
		z.Mul(a.T(), q)
		qz := orthonormal(&z)
		y.Reset()
		y.Mul(a, qz)
		q = orthonormal(&y)
	}

	// b = qᵀ·a is small (k×cols), its exact SVD lifts back through q
	var b mat.Dense
	b.Mul(q.T(), a)
	var result mat.SVD
	if ok := result.Factorize(&b, mat.SVDThin); !ok {
		return Factors{}, fmt.Errorf("cannot factorize sketch")
	}
	var ub, v mat.Dense
	result.UTo(&ub)
	result.VTo(&v)
	var u mat.Dense
	u.Mul(q, &ub)
	return Factors{U: &u, S: result.Values(nil), V: mat.DenseCopyOf(v.T())}, nil
}

// orthonormal returns the thin Q factor of m (rows ≥ cols).
func orthonormal(m *mat.Dense) *mat.Dense {
	rows, cols := m.Dims()
	var qr mat.QR
	qr.Factorize(m)
	var q mat.Dense
	qr.QTo(&q)
	return mat.DenseCopyOf(q.Slice(0, rows, 0, cols))
}

func truncate(u *mat.Dense, s []float64, v *mat.Dense, k int) Factors {
	rows, _ := u.Dims()
	_, cols := v.Dims()
	return Factors{
		U: mat.DenseCopyOf(u.Slice(0, rows, 0, k)),
		S: append([]float64(nil), s[:k]...),
		V: mat.DenseCopyOf(v.Slice(0, k, 0, cols)),
	}
}
