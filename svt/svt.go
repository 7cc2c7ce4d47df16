// Package svt implements singular value thresholding: factorize a matrix,
// shrink its singular values and drop the components that vanish.
package svt

import (
	"fmt"

	"github.com/yyyoichi/impute/internal/svd"
	"github.com/yyyoichi/impute/lowrank"
	"gonum.org/v1/gonum/mat"
)

// Threshold selects how singular values are shrunk.
type Threshold int

const (
	// Soft maps x to max(x-level, 0).
	Soft Threshold = iota
	// Hard zeroes values below level and keeps the rest.
	Hard
)

// Method selects a built-in factorization backend.
type Method int

const (
	// Exact computes a full thin SVD and truncates it.
	Exact Method = iota
	// Randomized computes an approximate truncated SVD directly.
	Randomized
)

// DefaultSeed seeds the randomized backend when no factorizer is given.
var DefaultSeed uint64 = 314159265

// Factorizer returns the leading singular triplets of a. Singular values are
// descending. level and rank are hints: components below level may be
// omitted and rank is the expected number of surviving components (0 when
// unknown).
type Factorizer func(a mat.Matrix, level float64, rank int) (u *mat.Dense, s []float64, v *mat.Dense, err error)

// Config selects the threshold and the factorization. The zero value is soft
// thresholding over an exact SVD.
type Config struct {
	Threshold Threshold
	Method    Method
	// Factorize overrides Method when set.
	Factorize Factorizer
}

// Func is an SVT with a fixed configuration.
type Func func(a mat.Matrix, level float64, rank int) (lowrank.SVD, error)

// SoftThreshold returns x ↦ 0 if x < level else x - level.
func SoftThreshold(level float64) func(float64) float64 {
	return func(x float64) float64 {
		if x < level {
			return 0
		}
		return x - level
	}
}

// HardThreshold returns x ↦ 0 if x < level else x.
func HardThreshold(level float64) func(float64) float64 {
	return func(x float64) float64 {
		if x < level {
			return 0
		}
		return x
	}
}

func (t Threshold) fn(level float64) func(float64) float64 {
	switch t {
	case Soft:
		return SoftThreshold(level)
	case Hard:
		return HardThreshold(level)
	}
	panic(fmt.Sprintf("svt: unknown threshold %d", t))
}

func (t Threshold) String() string {
	switch t {
	case Soft:
		return "soft"
	case Hard:
		return "hard"
	}
	return fmt.Sprintf("Threshold(%d)", int(t))
}

func (m Method) String() string {
	switch m {
	case Exact:
		return "exact"
	case Randomized:
		return "randomized"
	}
	return fmt.Sprintf("Method(%d)", int(m))
}

func (c Config) factorizer() Factorizer {
	if c.Factorize != nil {
		return c.Factorize
	}
	switch c.Method {
	case Exact:
		return fromBackend(svd.Exact)
	case Randomized:
		return fromBackend(svd.NewRandomized(DefaultSeed).Factorize)
	}
	panic(fmt.Sprintf("svt: unknown method %d", c.Method))
}

func fromBackend(f func(mat.Matrix, float64, int) (svd.Factors, error)) Factorizer {
	return func(a mat.Matrix, level float64, rank int) (*mat.Dense, []float64, *mat.Dense, error) {
		r, err := f(a, level, rank)
		if err != nil {
			return nil, nil, nil, err
		}
		return r.U, r.S, r.V, nil
	}
}

// SVT factorizes a, thresholds its singular values at level and trims the
// components that become zero. At least one component is always returned.
func SVT(a mat.Matrix, level float64, rank int, cfg Config) (lowrank.SVD, error) {
	thresh := cfg.Threshold.fn(level)
	u, s, v, err := cfg.factorizer()(a, level, rank)
	if err != nil {
		return lowrank.SVD{}, fmt.Errorf("svt: %w", err)
	}
	shrunk := make([]float64, len(s))
	for i, x := range s {
		shrunk[i] = thresh(x)
	}
	return lowrank.New(u, shrunk, v).Trim(0), nil
}

// Tuned fixes the configuration of SVT.
func Tuned(cfg Config) Func {
	f := cfg.factorizer()
	thresh := cfg.Threshold
	return func(a mat.Matrix, level float64, rank int) (lowrank.SVD, error) {
		return SVT(a, level, rank, Config{Threshold: thresh, Factorize: f})
	}
}
