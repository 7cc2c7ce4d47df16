package sample

import (
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// normTolerance is the agreement required between incremental and full
// recomputation of the operator norm. Both go through the same LAPACK SVD
// on matrices of at most a few hundred entries.
const normTolerance = 1e-9

func randomMatrix(rd *rand.Rand, rows, cols int) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := range rows {
		for j := range cols {
			m.Set(i, j, rd.NormFloat64())
		}
	}
	return m
}

func randomVector(rd *rand.Rand, n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = rd.NormFloat64()
	}
	return v
}

func randomRows(rd *rand.Rand, n, rows, cols int) []Measurement {
	xs := make([]Measurement, n)
	for k := range xs {
		xs[k] = NewRow(rd.IntN(rows), randomVector(rd, cols))
	}
	return xs
}

func TestMeasurement(t *testing.T) {
	m := mat.NewDense(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})

	t.Run("entry", func(t *testing.T) {
		e := NewEntry(1, 2, 0.5)
		assert.Equal(t, 3.0, e.Sense(m))

		acc := mat.NewDense(2, 3, nil)
		e.AddTo(acc, 4)
		e.AddTo(acc, 2)
		assert.Equal(t, 3.0, acc.At(1, 2))
		assert.Equal(t, 3.0, mat.Sum(acc))

		flat := make([]float64, 6)
		e.Flatten(flat, 3)
		assert.Equal(t, []float64{0, 0, 0, 0, 0, 0.5}, flat)
	})

	t.Run("row", func(t *testing.T) {
		v := []float64{1, 0, -1}
		r := NewRow(0, v)
		v[0] = 100
		assert.Equal(t, []float64{1, 0, -1}, r.RowValue())
		assert.Equal(t, -2.0, r.Sense(m))

		acc := mat.NewDense(2, 3, nil)
		r.AddTo(acc, 3)
		assert.Equal(t, []float64{3, 0, -3}, acc.RawRowView(0))
		assert.Equal(t, []float64{0, 0, 0}, acc.RawRowView(1))

		flat := make([]float64, 6)
		r.Flatten(flat, 3)
		assert.Equal(t, []float64{1, 0, -1, 0, 0, 0}, flat)
	})

	t.Run("fits", func(t *testing.T) {
		test := []struct {
			name string
			x    Measurement
			ok   bool
		}{
			{"entry_in", NewEntry(1, 2, 1), true},
			{"entry_row_out", NewEntry(2, 0, 1), false},
			{"entry_col_out", NewEntry(0, 3, 1), false},
			{"entry_negative", NewEntry(-1, 0, 1), false},
			{"row_in", NewRow(1, []float64{1, 2, 3}), true},
			{"row_out", NewRow(2, []float64{1, 2, 3}), false},
			{"row_short", NewRow(0, []float64{1, 2}), false},
		}
		for _, tt := range test {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.x.Fits(2, 3)
				if tt.ok {
					assert.NoError(t, err)
				} else {
					assert.ErrorIs(t, err, ErrShape)
				}
			})
		}
	})
}

func TestSet_AddObs(t *testing.T) {
	t.Run("keeps_order", func(t *testing.T) {
		s := NewSet(3, 3)
		require.NoError(t, s.AddEntry(0, 0, 1, 10))
		require.NoError(t, s.AddRow(1, []float64{1, 1, 1}, 20))
		require.NoError(t, s.AddAllObs(
			[]Measurement{NewEntry(2, 2, 1), NewEntry(0, 1, 2)},
			[]float64{30, 40},
		))
		assert.Equal(t, 4, s.Len())
		assert.Equal(t, []float64{10, 20, 30, 40}, s.Observed())
		assert.Equal(t, NewEntry(0, 1, 2), s.Measurement(3))
	})

	t.Run("length_mismatch", func(t *testing.T) {
		s := NewEntrySet(3, 3)
		err := s.AddAllObs([]Measurement{NewEntry(0, 0, 1)}, nil)
		assert.ErrorIs(t, err, ErrLength)
		assert.Equal(t, 0, s.Len())
	})

	t.Run("rejects_whole_batch", func(t *testing.T) {
		s := NewEntrySet(3, 3)
		err := s.AddAllObs(
			[]Measurement{NewEntry(0, 0, 1), NewEntry(5, 0, 1), NewRow(0, []float64{1, 2, 3}), nil},
			[]float64{1, 2, 3, 4},
		)
		require.Error(t, err)
		var merr *multierror.Error
		require.True(t, errors.As(err, &merr))
		assert.Len(t, merr.Errors, 3)
		assert.ErrorIs(t, merr.Errors[0], ErrShape)
		assert.ErrorIs(t, merr.Errors[1], ErrKind)
		assert.ErrorIs(t, merr.Errors[2], ErrKind)
		assert.Equal(t, 0, s.Len())

		norm, err := s.OpNorm()
		require.NoError(t, err)
		assert.Equal(t, 0.0, norm)
	})

	t.Run("shorthand_kind", func(t *testing.T) {
		rows := NewRowSet(3, 3)
		assert.ErrorIs(t, rows.AddEntry(0, 0, 1, 1), ErrKind)
		assert.ErrorIs(t, rows.AddRow(0, []float64{1, 2}, 1), ErrShape)
		assert.NoError(t, rows.AddRow(0, []float64{1, 2, 3}, 1))

		entries := NewEntrySet(3, 3)
		assert.ErrorIs(t, entries.AddRow(0, []float64{1, 2, 3}, 1), ErrKind)
		assert.NoError(t, entries.AddEntry(2, 2, 1, 1))
	})

	t.Run("bad_shape_panics", func(t *testing.T) {
		assert.Panics(t, func() { NewSet(0, 3) })
		assert.Panics(t, func() { New(3, 3, Kind(7)) })
	})
}

func TestSet_Adjoint(t *testing.T) {
	rd := rand.New(rand.NewPCG(1, 2))
	const rows, cols = 6, 5

	sets := map[string]*Set{
		"general": NewSet(rows, cols),
		"row":     NewRowSet(rows, cols),
		"entry":   NewEntrySet(rows, cols),
	}
	for range 40 {
		i, j := rd.IntN(rows), rd.IntN(cols)
		require.NoError(t, sets["entry"].AddEntry(i, j, rd.NormFloat64(), rd.NormFloat64()))
		require.NoError(t, sets["row"].AddRow(i, randomVector(rd, cols), rd.NormFloat64()))
		if rd.IntN(2) == 0 {
			require.NoError(t, sets["general"].AddEntry(i, j, rd.NormFloat64(), rd.NormFloat64()))
		} else {
			require.NoError(t, sets["general"].AddRow(i, randomVector(rd, cols), rd.NormFloat64()))
		}
	}

	for name, s := range sets {
		t.Run(name, func(t *testing.T) {
			for range 10 {
				m := randomMatrix(rd, rows, cols)
				v := randomVector(rd, s.Len())

				lhs := floats.Dot(s.Value(m), v)
				var rhs float64
				adj := s.AdjointValue(v)
				for i := range rows {
					rhs += floats.Dot(m.RawRowView(i), adj.RawRowView(i))
				}
				assert.InDelta(t, lhs, rhs, 1e-9)
			}
		})
	}

	t.Run("wrong_sizes_panic", func(t *testing.T) {
		s := sets["entry"]
		assert.Panics(t, func() { s.Value(mat.NewDense(rows+1, cols, nil)) })
		assert.Panics(t, func() { s.AdjointValue(make([]float64, s.Len()+1)) })
	})
}

func TestSet_RSSGrad(t *testing.T) {
	s := NewEntrySet(2, 2)
	require.NoError(t, s.AddEntry(0, 0, 1, 3))
	require.NoError(t, s.AddEntry(1, 1, 2, 1))

	m := mat.NewDense(2, 2, []float64{1, 7, 7, 2})
	// residuals: 1-3 = -2, 2*2-1 = 3
	expect := mat.NewDense(2, 2, []float64{-2, 0, 0, 6})
	assert.True(t, mat.Equal(expect, s.RSSGrad(m)))
}

func TestSet_OpNormEquivalence(t *testing.T) {
	rd := rand.New(rand.NewPCG(3, 4))
	const rows, cols = 7, 4

	xs := randomRows(rd, 60, rows, cols)
	ys := randomVector(rd, len(xs))

	for _, batch := range []int{1, 3, 7, 60} {
		t.Run("batch", func(t *testing.T) {
			order := rd.Perm(len(xs))
			full := NewSet(rows, cols)
			incr := NewRowSet(rows, cols)
			for start := 0; start < len(order); start += batch {
				end := min(start+batch, len(order))
				bx := make([]Measurement, 0, end-start)
				by := make([]float64, 0, end-start)
				for _, k := range order[start:end] {
					bx = append(bx, xs[k])
					by = append(by, ys[k])
				}
				require.NoError(t, full.AddAllObs(bx, by))
				require.NoError(t, incr.AddAllObs(bx, by))

				want, err := full.OpNorm()
				require.NoError(t, err)
				got, err := incr.OpNorm()
				require.NoError(t, err)
				assert.InDelta(t, want, got, normTolerance, "batch=%d after %d", batch, end)
			}
		})
	}
}

func TestRowNorm_DirtyTracking(t *testing.T) {
	s := NewRowSet(3, 2)
	n := s.norm.(*rowNorm)
	assert.Equal(t, []rowState{rowClean, rowClean, rowClean}, n.states)

	norm, err := s.OpNorm()
	require.NoError(t, err)
	assert.Equal(t, 0.0, norm)

	require.NoError(t, s.AddRow(1, []float64{3, 4}, 0))
	assert.Equal(t, []rowState{rowClean, rowDirty, rowClean}, n.states)
	assert.False(t, n.fresh)

	norm, err = s.OpNorm()
	require.NoError(t, err)
	assert.InDelta(t, 5.0, norm, 1e-12)
	assert.Equal(t, []rowState{rowClean, rowClean, rowClean}, n.states)
	assert.True(t, n.fresh)

	// a clean row keeps its cached norm even if its bucket is tampered with
	n.buckets[1][0] = NewRow(1, []float64{30, 40})
	require.NoError(t, s.AddRow(2, []float64{1, 0}, 0))
	norm, err = s.OpNorm()
	require.NoError(t, err)
	assert.InDelta(t, 5.0, norm, 1e-12)
	assert.InDeltaSlice(t, []float64{0, 5, 1}, n.norms, 1e-12)

	require.NoError(t, s.AddRow(2, []float64{0, 7}, 0))
	assert.Equal(t, []rowState{rowClean, rowClean, rowDirty}, n.states)
	norm, err = s.OpNorm()
	require.NoError(t, err)
	assert.InDelta(t, 7.0, norm, 1e-12)
}

func TestEntryNorm(t *testing.T) {
	rd := rand.New(rand.NewPCG(5, 6))
	s := NewEntrySet(10, 10)

	var want float64
	for k := range 50 {
		scale := rd.NormFloat64() * 3
		require.NoError(t, s.AddEntry(k/10*2%10, k%10, scale, 0))
		want = max(want, abs(scale))

		got, err := s.OpNorm()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	t.Run("matches_full_for_distinct_cells", func(t *testing.T) {
		full := NewSet(10, 10)
		for i := range s.Len() {
			require.NoError(t, full.AddObs(s.Measurement(i), 0))
		}
		got, err := full.OpNorm()
		require.NoError(t, err)
		assert.InDelta(t, want, got, normTolerance)
	})
}

func TestSet_Mask(t *testing.T) {
	s := NewSet(3, 4)
	require.NoError(t, s.AddEntry(0, 1, 1, 0))
	require.NoError(t, s.AddRow(2, []float64{0, 5, 0, -1}, 0))
	require.NoError(t, s.AddObs(sumMeasurement{}, 0))

	mask := s.Mask()
	assert.Equal(t, 12, mask.Bits())
	expect := []bool{
		true, true, false, false,
		false, false, false, false,
		false, true, false, true,
	}
	for k, want := range expect {
		got, _ := mask.ReadBitAt(k)
		assert.Equal(t, want, got, "cell %d", k)
	}
}

// sumMeasurement observes m[0, 0] + m[0, 1].
type sumMeasurement struct{}

func (sumMeasurement) Sense(m mat.Matrix) float64 { return m.At(0, 0) + m.At(0, 1) }

func (sumMeasurement) AddTo(dst *mat.Dense, scale float64) {
	dst.Set(0, 0, dst.At(0, 0)+scale)
	dst.Set(0, 1, dst.At(0, 1)+scale)
}

func (sumMeasurement) Fits(rows, cols int) error {
	if rows < 1 || cols < 2 {
		return ErrShape
	}
	return nil
}

func (sumMeasurement) Flatten(dst []float64, _ int) {
	dst[0], dst[1] = 1, 1
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
