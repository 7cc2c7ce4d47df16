package impute

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

type Option func(*Imputer) error

// WithMaxIters bounds the number of steps taken for each penalty.
// n must be positive.
func WithMaxIters(n int) Option {
	return func(im *Imputer) error {
		if n < 1 {
			return fmt.Errorf("max iters must be positive, got %d", n)
		}
		im.maxIters = n
		return nil
	}
}

// WithWarmStart selects whether each penalty starts from the previous
// solution (the default) or from the zero matrix.
// Warm starts also carry the last estimate over to the next call of Fit.
func WithWarmStart(warm bool) Option {
	return func(im *Imputer) error {
		im.warmStart = warm
		return nil
	}
}

// WithTol sets the relative change below which a step is final.
// Zero selects DefaultTol.
func WithTol(tol float64) Option {
	return func(im *Imputer) error {
		if tol < 0 {
			return fmt.Errorf("tolerance must not be negative, got %g", tol)
		}
		im.tol = tol
		return nil
	}
}

// WithGoal stops a penalty as soon as the objective drops to goal.
func WithGoal(goal float64) Option {
	return func(im *Imputer) error {
		im.goal = goal
		return nil
	}
}

// WithLogger sends progress to l: one Info (or Warn, when the budget runs
// out) entry per penalty and one Debug entry per step.
func WithLogger(l logrus.FieldLogger) Option {
	return func(im *Imputer) error {
		im.logger = l
		return nil
	}
}
