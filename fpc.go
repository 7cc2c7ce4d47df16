package impute

import (
	"github.com/yyyoichi/impute/svt"
	"gonum.org/v1/gonum/mat"
)

var _ Stepper = (*FPC)(nil)

// FPC is fixed point continuation: a gradient step of length 1/‖A‖²
// followed by thresholding at alpha/‖A‖². It accepts any sample set.
type FPC struct {
	lagrangian
	tau float64
}

// NewFPC returns an FPC stepper for rows×cols matrices.
func NewFPC(rows, cols int, cfg svt.Config) *FPC {
	return &FPC{lagrangian: newLagrangian(rows, cols, cfg), tau: 1}
}

func (f *FPC) Threshold(alpha float64) float64 {
	return f.tau * alpha
}

// Prefit reads the operator norm of the sample set to fix the step size.
func (f *FPC) Prefit(ds *Dataset, p Plan) error {
	norm, err := ds.Op.OpNorm()
	if err != nil {
		return err
	}
	if norm == 0 {
		return ErrNoObservations
	}
	f.tau = 1 / (norm * norm)
	return f.prefit(ds, p)
}

func (f *FPC) UpdateOnce(ds *Dataset, alpha float64, prevRank int) (Metrics, error) {
	if !f.ready {
		return Metrics{}, ErrNotPrefit
	}
	mOld := f.zNew.ToMatrix()

	grad := ds.RSSGrad(mOld)
	grad.Scale(f.tau, grad)
	var y mat.Dense
	y.Sub(mOld, grad)
	return f.step(ds, &y, mOld, alpha, f.Threshold(alpha), prevRank)
}
