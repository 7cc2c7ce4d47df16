package impute

import (
	"fmt"

	"github.com/yyyoichi/impute/sample"
	"github.com/yyyoichi/impute/svt"
	"gonum.org/v1/gonum/mat"
)

var _ Stepper = (*SoftImpute)(nil)

// SoftImpute iterates Z ← SVT_alpha(Z − ∇RSS(Z)). The unit step is only a
// valid proximal step for entry measurements, so SoftImpute refuses any
// other sample set.
type SoftImpute struct {
	lagrangian
}

// NewSoftImpute returns a SoftImpute for rows×cols matrices. The zero
// svt.Config selects soft thresholding over an exact SVD.
func NewSoftImpute(rows, cols int, cfg svt.Config) *SoftImpute {
	return &SoftImpute{lagrangian: newLagrangian(rows, cols, cfg)}
}

func (s *SoftImpute) Threshold(alpha float64) float64 {
	return alpha
}

func (s *SoftImpute) Prefit(ds *Dataset, p Plan) error {
	if err := ensureEntryOp(ds); err != nil {
		return err
	}
	return s.prefit(ds, p)
}

func (s *SoftImpute) UpdateOnce(ds *Dataset, alpha float64, prevRank int) (Metrics, error) {
	if err := ensureEntryOp(ds); err != nil {
		return Metrics{}, err
	}
	if !s.ready {
		return Metrics{}, ErrNotPrefit
	}
	mOld := s.zNew.ToMatrix()

	var y mat.Dense
	y.Sub(mOld, ds.RSSGrad(mOld))
	return s.step(ds, &y, mOld, alpha, s.Threshold(alpha), prevRank)
}

func ensureEntryOp(ds *Dataset) error {
	if k := ds.Op.Kind(); k != sample.EntryKind {
		return fmt.Errorf("%w: got a %s sample set", ErrNotEntryOp, k)
	}
	return nil
}
