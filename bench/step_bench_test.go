package bench_test

import (
	"math/rand/v2"
	"testing"

	"github.com/yyyoichi/impute"
	"github.com/yyyoichi/impute/sample"
	"github.com/yyyoichi/impute/svt"
)

// BenchmarkUpdateOnce runs single SoftImpute steps over half-observed matrices
func BenchmarkUpdateOnce(b *testing.B) {
	test := []struct {
		name       string
		rows, cols int
		cfg        svt.Config
	}{
		{name: "100x80_exact", rows: 100, cols: 80},
		{name: "100x80_randomized", rows: 100, cols: 80, cfg: svt.Config{Method: svt.Randomized}},
		{name: "400x300_exact", rows: 400, cols: 300},
		{name: "400x300_randomized", rows: 400, cols: 300, cfg: svt.Config{Method: svt.Randomized}},
	}

	for _, tt := range test {
		b.Run(tt.name, func(b *testing.B) {
			ds := halfObserved(b, tt.rows, tt.cols)
			alphaMax, err := ds.AlphaMax()
			if err != nil {
				b.Fatalf("Failed to compute alpha max (%s): %v", tt.name, err)
			}
			s := impute.NewSoftImpute(tt.rows, tt.cols, tt.cfg)
			if err := s.Prefit(ds, impute.Plan{}); err != nil {
				b.Fatalf("Failed to prefit (%s): %v", tt.name, err)
			}

			rank := 0
			for b.Loop() {
				if _, err := s.UpdateOnce(ds, alphaMax/10, rank); err != nil {
					b.Fatalf("Failed to step (%s): %v", tt.name, err)
				}
				_, z := s.Iterates()
				rank = z.Rank()
			}
		})
	}
}

func halfObserved(b *testing.B, rows, cols int) *impute.Dataset {
	b.Helper()
	rd := rand.New(rand.NewPCG(3, 4))
	ss := sample.NewEntrySet(rows, cols)
	for i := range rows {
		for j := range cols {
			if rd.IntN(2) == 0 {
				continue
			}
			if err := ss.AddEntry(i, j, 1, rd.NormFloat64()); err != nil {
				b.Fatal(err)
			}
		}
	}
	return impute.NewDataset(ss)
}
