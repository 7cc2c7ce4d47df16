package main

import (
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/yyyoichi/impute"
	"github.com/yyyoichi/impute/lowrank"
	"github.com/yyyoichi/impute/sample"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	configPath string
	verbose    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate a synthetic problem and recover it",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		logger := logrus.New()
		logger.SetOutput(os.Stderr)
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		}
		return run(cmd, cfg, logger)
	},
}

func init() {
	runCmd.Flags().StringVarP(&configPath, "config", "c", "", "problem description (YAML)")
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log every iteration")
}

func run(cmd *cobra.Command, cfg problemConfig, logger *logrus.Logger) error {
	p := generate(cfg)
	logger.WithFields(logrus.Fields{
		"rows":     cfg.Rows,
		"cols":     cfg.Cols,
		"rank":     cfg.Rank,
		"observed": p.set.Len(),
		"coverage": p.coverage(),
	}).Info("problem generated")

	ds := impute.NewDataset(p.set)
	alphaMax, err := ds.AlphaMax()
	if err != nil {
		return err
	}
	alphas := impute.Schedule(alphaMax, cfg.Alphas, cfg.Decay)

	svtCfg, err := cfg.svtConfig()
	if err != nil {
		return err
	}
	var stepper impute.Stepper
	switch cfg.Solver {
	case "fpc":
		stepper = impute.NewFPC(cfg.Rows, cfg.Cols, svtCfg)
	default:
		stepper = impute.NewSoftImpute(cfg.Rows, cfg.Cols, svtCfg)
	}
	im, err := impute.New(stepper,
		impute.WithMaxIters(cfg.MaxIters),
		impute.WithTol(cfg.Tol),
		impute.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	zs, err := im.Fit(cmd.Context(), ds, alphas)
	report(cmd.OutOrStdout(), alphas, zs, p.truth)
	return err
}

// problem is a rank-k matrix and a noisy sample of its entries.
type problem struct {
	truth *mat.Dense
	set   *sample.Set
}

func generate(cfg problemConfig) problem {
	src := rand.NewPCG(cfg.Seed, cfg.Seed+1)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: src}

	left := mat.NewDense(cfg.Rows, cfg.Rank, nil)
	for i := range cfg.Rows {
		for j := range cfg.Rank {
			left.Set(i, j, normal.Rand())
		}
	}
	right := mat.NewDense(cfg.Rank, cfg.Cols, nil)
	for i := range cfg.Rank {
		for j := range cfg.Cols {
			right.Set(i, j, normal.Rand())
		}
	}
	truth := mat.NewDense(cfg.Rows, cfg.Cols, nil)
	truth.Mul(left, right)

	pick := distuv.Bernoulli{P: cfg.Fraction, Src: src}
	noise := distuv.Normal{Mu: 0, Sigma: cfg.Noise, Src: src}
	set := sample.NewEntrySet(cfg.Rows, cfg.Cols)
	for i := range cfg.Rows {
		for j := range cfg.Cols {
			if pick.Rand() == 0 {
				continue
			}
			y := truth.At(i, j)
			if cfg.Noise > 0 {
				y += noise.Rand()
			}
			if err := set.AddEntry(i, j, 1, y); err != nil {
				panic(err)
			}
		}
	}
	return problem{truth: truth, set: set}
}

// coverage is the fraction of cells touched by at least one observation.
func (p problem) coverage() float64 {
	mask := p.set.Mask()
	var n int
	for k := range mask.Bits() {
		if ok, _ := mask.ReadBitAt(k); ok {
			n++
		}
	}
	return float64(n) / float64(mask.Bits())
}

func relativeError(z lowrank.SVD, truth *mat.Dense) float64 {
	var diff mat.Dense
	diff.Sub(z.ToMatrix(), truth)
	return mat.Norm(&diff, 2) / mat.Norm(truth, 2)
}

func report(w io.Writer, alphas []float64, zs []lowrank.SVD, truth *mat.Dense) {
	fmt.Fprintf(w, "%-4s %-12s %-5s %s\n", "#", "alpha", "rank", "rel.error")
	for i, z := range zs {
		fmt.Fprintf(w, "%-4d %-12.6g %-5d %.6f\n", i, alphas[i], z.Rank(), relativeError(z, truth))
	}
}
