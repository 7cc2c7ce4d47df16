package impute

import (
	"fmt"

	"github.com/yyyoichi/impute/lowrank"
	"github.com/yyyoichi/impute/svt"
	"gonum.org/v1/gonum/mat"
)

// DefaultTol is the relative change below which an iteration is considered
// converged.
const DefaultTol = 1e-5

// Metrics describes one fixed-point step.
type Metrics struct {
	// Loss is the penalized objective at the new iterate.
	Loss float64
	// DeltaNorm is the Frobenius norm of the change of the iterate.
	DeltaNorm float64
	// OldNorm is the Frobenius norm of the previous iterate.
	OldNorm float64
}

// Plan carries the parameters of a fit to Stepper.Prefit.
type Plan struct {
	Alphas    []float64
	MaxIters  int
	WarmStart bool
	// Tol is the relative convergence tolerance, DefaultTol when zero.
	Tol float64
}

// Stepper is a fixed-point rule for the penalized least-squares problem.
type Stepper interface {
	// Threshold maps the penalty alpha to the SVT level of one step.
	Threshold(alpha float64) float64
	// Prefit validates ds and prepares the iterates for a fit.
	Prefit(ds *Dataset, p Plan) error
	// UpdateOnce advances the iterate by one step at penalty alpha.
	// prevRank is a rank hint for the factorization.
	UpdateOnce(ds *Dataset, alpha float64, prevRank int) (Metrics, error)
	// ShouldStop reports whether the step described by m is final.
	ShouldStop(m Metrics, goal float64) bool
	// Iterates returns the previous and the current iterate.
	Iterates() (zOld, zNew lowrank.SVD)
	// Reset restarts from the zero matrix.
	Reset()
}

// lagrangian holds the state shared by the steppers.
type lagrangian struct {
	rows, cols int
	svt        svt.Func
	tol        float64

	ready      bool
	zOld, zNew lowrank.SVD
}

func newLagrangian(rows, cols int, cfg svt.Config) lagrangian {
	return lagrangian{rows: rows, cols: cols, svt: svt.Tuned(cfg)}
}

func (l *lagrangian) prefit(ds *Dataset, p Plan) error {
	if rows, cols := ds.Dims(); rows != l.rows || cols != l.cols {
		return fmt.Errorf("%w: dataset is %dx%d, stepper is %dx%d", ErrShape, rows, cols, l.rows, l.cols)
	}
	l.tol = p.Tol
	if l.tol == 0 {
		l.tol = DefaultTol
	}
	if !p.WarmStart || !l.ready {
		l.Reset()
	}
	l.ready = true
	return nil
}

func (l *lagrangian) Reset() {
	l.zNew = lowrank.Zero(l.rows, l.cols)
	l.zOld = l.zNew
}

func (l *lagrangian) Iterates() (zOld, zNew lowrank.SVD) {
	return l.zOld, l.zNew
}

// ShouldStop is true once the loss reaches goal or the iterate moved by less
// than sqrt(tol) relative to its previous size.
func (l *lagrangian) ShouldStop(m Metrics, goal float64) bool {
	if m.Loss <= goal {
		return true
	}
	return m.DeltaNorm*m.DeltaNorm < l.tol*m.OldNorm*m.OldNorm
}

// step thresholds y at level, shifts the iterates and measures the move.
func (l *lagrangian) step(ds *Dataset, y mat.Matrix, mOld *mat.Dense, alpha, level float64, prevRank int) (Metrics, error) {
	z, err := l.svt(y, level, prevRank)
	if err != nil {
		return Metrics{}, err
	}
	l.zOld, l.zNew = l.zNew, z

	var delta mat.Dense
	delta.Sub(z.ToMatrix(), mOld)
	return Metrics{
		Loss:      ds.Loss(z, alpha),
		DeltaNorm: mat.Norm(&delta, 2),
		OldNorm:   mat.Norm(mOld, 2),
	}, nil
}
