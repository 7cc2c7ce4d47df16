// Package impute recovers low-rank matrices from linear observations by
// singular value thresholding along a decreasing penalty schedule.
package impute

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/sirupsen/logrus"
	"github.com/yyyoichi/impute/lowrank"
	"github.com/yyyoichi/impute/svt"
)

var (
	ErrNotEntryOp     = errors.New("stepper requires an entry sample set")
	ErrNotPrefit      = errors.New("stepper has not been prefit")
	ErrEmptySchedule  = errors.New("empty penalty schedule")
	ErrNoObservations = errors.New("sample set has no observations")
	ErrShape          = errors.New("dataset shape does not match the stepper")
)

// Fit runs SoftImpute with soft thresholding over an exact SVD along alphas.
// This is a convenience function that creates an Imputer and calls its Fit method.
func Fit(ctx context.Context, ds *Dataset, alphas []float64, opts ...Option) ([]lowrank.SVD, error) {
	rows, cols := ds.Dims()
	im, err := New(NewSoftImpute(rows, cols, svt.Config{}), opts...)
	if err != nil {
		return nil, err
	}
	return im.Fit(ctx, ds, alphas)
}

// Schedule returns n penalties starting at alphaMax, each decay times the
// previous one.
func Schedule(alphaMax float64, n int, decay float64) []float64 {
	alphas := make([]float64, n)
	for i := range alphas {
		alphas[i] = alphaMax * math.Pow(decay, float64(i))
	}
	return alphas
}

// Imputer drives a Stepper along a penalty schedule.
type Imputer struct {
	stepper   Stepper
	maxIters  int
	warmStart bool
	tol       float64
	goal      float64
	logger    logrus.FieldLogger
}

// New initializes an Imputer around s.
// Without options it runs at most 100 iterations per penalty, warm-starts
// each penalty from the previous solution and discards its log output.
func New(s Stepper, opts ...Option) (*Imputer, error) {
	im := &Imputer{stepper: s}
	if err := im.init(opts...); err != nil {
		return nil, err
	}
	return im, nil
}

func (im *Imputer) init(opts ...Option) error {
	im.maxIters = 100
	im.warmStart = true
	for _, opt := range opts {
		if err := opt(im); err != nil {
			return err
		}
	}
	if im.logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		im.logger = l
	}
	return nil
}

// Fit solves the penalized problem for every alpha in turn and returns one
// estimate per alpha.
//
// Process:
//  1. Prefits the stepper, which validates ds.
//  2. For each alpha, restarts from zero unless warm-starting.
//  3. Steps until ShouldStop holds or the iteration budget is spent. The rank
//     of the current iterate is passed on as a hint.
//  4. Records the current iterate.
//
// Running out of iterations is logged, not returned as an error. ctx is
// checked between iterations; on cancellation the estimates finished so far
// are returned with ctx.Err().
func (im *Imputer) Fit(ctx context.Context, ds *Dataset, alphas []float64) ([]lowrank.SVD, error) {
	if len(alphas) == 0 {
		return nil, ErrEmptySchedule
	}
	plan := Plan{
		Alphas:    alphas,
		MaxIters:  im.maxIters,
		WarmStart: im.warmStart,
		Tol:       im.tol,
	}
	if err := im.stepper.Prefit(ds, plan); err != nil {
		return nil, fmt.Errorf("prefit: %w", err)
	}

	zs := make([]lowrank.SVD, 0, len(alphas))
	for at, alpha := range alphas {
		if !im.warmStart {
			im.stepper.Reset()
		}
		_, z := im.stepper.Iterates()
		var (
			metrics   Metrics
			converged bool
			iters     int
		)
		for iters < im.maxIters {
			if err := ctx.Err(); err != nil {
				return zs, err
			}
			m, err := im.stepper.UpdateOnce(ds, alpha, z.Rank())
			if err != nil {
				return zs, fmt.Errorf("alpha %g: %w", alpha, err)
			}
			metrics = m
			iters++
			_, z = im.stepper.Iterates()
			im.logger.WithFields(logrus.Fields{
				"alpha":      alpha,
				"iter":       iters,
				"loss":       m.Loss,
				"delta_norm": m.DeltaNorm,
				"rank":       z.Rank(),
			}).Debug("impute: step")
			if im.stepper.ShouldStop(m, im.goal) {
				converged = true
				break
			}
		}

		entry := im.logger.WithFields(logrus.Fields{
			"index":     at,
			"alpha":     alpha,
			"iters":     iters,
			"rank":      z.Rank(),
			"loss":      metrics.Loss,
			"converged": converged,
		})
		if converged {
			entry.Info("impute: penalty solved")
		} else {
			entry.Warn("impute: iteration budget exhausted")
		}
		zs = append(zs, z)
	}
	return zs, nil
}
