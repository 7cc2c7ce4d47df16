package impute

import (
	"github.com/yyyoichi/impute/internal/svd"
	"github.com/yyyoichi/impute/lowrank"
	"github.com/yyyoichi/impute/sample"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Dataset is the least-squares problem defined by a sample set.
type Dataset struct {
	Op *sample.Set
}

func NewDataset(op *sample.Set) *Dataset {
	return &Dataset{Op: op}
}

// Dims returns the shape of the unknown matrix.
func (ds *Dataset) Dims() (rows, cols int) {
	return ds.Op.Dims()
}

// RSSGrad returns the gradient of the residual sum of squares at m.
func (ds *Dataset) RSSGrad(m mat.Matrix) *mat.Dense {
	return ds.Op.RSSGrad(m)
}

// Loss returns ½‖Op(z) − y‖² + alpha·‖z‖_*.
func (ds *Dataset) Loss(z lowrank.SVD, alpha float64) float64 {
	r := ds.Op.Value(z.ToMatrix())
	floats.Sub(r, ds.Op.Observed())
	return 0.5*floats.Dot(r, r) + alpha*z.NuclearNorm()
}

// AlphaMax returns the spectral norm of the gradient at zero. At any
// penalty from this value up, the zero matrix solves the penalized problem.
func (ds *Dataset) AlphaMax() (float64, error) {
	rows, cols := ds.Dims()
	return svd.Spectral(ds.RSSGrad(mat.NewDense(rows, cols, nil)))
}
