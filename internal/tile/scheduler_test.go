package tile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/forest-guardian/fractional-cover/internal/endmember"
	"github.com/forest-guardian/fractional-cover/internal/failure"
	"github.com/forest-guardian/fractional-cover/internal/spectral"
	"github.com/forest-guardian/fractional-cover/internal/unmix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// syntheticInput fills a rows x cols scene with a deterministic spread of
// index values, class 1 on even rows and class 2 on odd rows.
func syntheticInput(t *testing.T, rows, cols int) Input {
	t.Helper()
	preset := endmember.DefaultPreset()
	table, err := preset.Table([]int32{1})
	require.NoError(t, err)

	in := Input{
		NDVI:    spectral.NewGrid[float64](rows, cols),
		SWIR32:  spectral.NewGrid[float64](rows, cols),
		Classes: spectral.NewGrid[int32](rows, cols),
		Table:   table,
	}
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			i := r*cols + c
			in.NDVI.Data[i] = math.Sin(float64(i)*0.37)*0.6 + 0.4
			in.SWIR32.Data[i] = math.Cos(float64(i)*0.11)*0.5 + 0.7
			in.Classes.Data[i] = int32(1 + r%2)
		}
	}
	return in
}

func TestPartition(t *testing.T) {
	tests := []struct {
		rows, n    int
		wantBlocks int
	}{
		{10, 3, 3},
		{10, 1, 1},
		{3, 8, 3},
		{1, 4, 1},
		{100, 16, 16},
		{7, 0, 1},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d rows into %d", tt.rows, tt.n), func(t *testing.T) {
			blocks := Partition(tt.rows, tt.n)
			require.Len(t, blocks, tt.wantBlocks)

			next := 0
			for i, b := range blocks {
				assert.Equal(t, i, b.Index)
				assert.Equal(t, next, b.StartRow, "blocks must be contiguous")
				assert.Positive(t, b.Rows())
				assert.LessOrEqual(t, b.Rows()-blocks[len(blocks)-1].Rows(), 1)
				next = b.EndRow
			}
			assert.Equal(t, tt.rows, next, "blocks must cover every row")
		})
	}

	assert.Empty(t, Partition(0, 4))
}

func TestRunSingleAndManyWorkersAgree(t *testing.T) {
	in := syntheticInput(t, 37, 23)

	sequential, seqStats, err := Scheduler{Workers: 1, BlocksPerWorker: 1}.Run(context.Background(), in)
	require.NoError(t, err)

	for _, workers := range []int{2, 3, 8} {
		parallel, stats, err := Scheduler{Workers: workers}.Run(context.Background(), in)
		require.NoError(t, err)

		for b := range sequential.Bands {
			assert.Equal(t, sequential.Bands[b].Data, parallel.Bands[b].Data, "band %d with %d workers", b, workers)
		}
		assert.Equal(t, seqStats.Pixels, stats.Pixels)
		assert.Equal(t, seqStats.Boundary, stats.Boundary)
		assert.Equal(t, workers, stats.Workers)
	}
}

func TestRunMatchesPixelWiseSolve(t *testing.T) {
	in := syntheticInput(t, 9, 5)

	out, stats, err := Scheduler{Workers: 3}.Run(context.Background(), in)
	require.NoError(t, err)

	for r := 0; r < in.NDVI.Rows; r++ {
		for c := 0; c < in.NDVI.Cols; c++ {
			triplet, err := in.Table.Resolve(in.Classes.At(r, c))
			require.NoError(t, err)
			m := endmember.Point{NDVI: in.NDVI.At(r, c), SWIR32: in.SWIR32.At(r, c)}

			got := out.At(r, c)
			want, _ := unmix.NewSystem(triplet).Solve(m)
			assert.Equal(t, want, got, "pixel (%d, %d)", r, c)
			assert.InDelta(t, 1.0, got.Sum(), 1e-6)
		}
	}

	assert.Equal(t, 45, stats.Pixels)
	assert.Equal(t, 25, stats.ForestPixels)
	assert.Equal(t, 20, stats.NonForestPixels)
	assert.Equal(t, stats.Pixels, stats.Interior+stats.Boundary+stats.Fallback)
}

func TestRunWorkerFailureNamesRowRange(t *testing.T) {
	in := syntheticInput(t, 20, 4)
	s := Scheduler{
		Workers:         2,
		BlocksPerWorker: 2,
		blockHook: func(b Block) error {
			if b.StartRow == 10 {
				return errors.New("unexpected array shape")
			}
			return nil
		},
	}

	out, _, err := s.Run(context.Background(), in)

	assert.Nil(t, out)
	var worker *failure.WorkerFailure
	require.True(t, errors.As(err, &worker))
	assert.Equal(t, 10, worker.StartRow)
	assert.Equal(t, 15, worker.EndRow)
}

func TestRunRecoversWorkerPanic(t *testing.T) {
	in := syntheticInput(t, 8, 4)
	s := Scheduler{
		Workers:         4,
		BlocksPerWorker: 1,
		blockHook: func(b Block) error {
			if b.Index == 3 {
				panic("index out of range")
			}
			return nil
		},
	}

	out, _, err := s.Run(context.Background(), in)

	assert.Nil(t, out)
	var worker *failure.WorkerFailure
	require.True(t, errors.As(err, &worker))
	assert.Equal(t, 6, worker.StartRow)
	assert.Equal(t, 8, worker.EndRow)
	assert.Contains(t, worker.Error(), "index out of range")
}

func TestRunCancelled(t *testing.T) {
	in := syntheticInput(t, 16, 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, _, err := Scheduler{Workers: 2}.Run(ctx, in)

	assert.Nil(t, out)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunValidation(t *testing.T) {
	t.Run("unconfigured table", func(t *testing.T) {
		in := syntheticInput(t, 2, 2)
		in.Table = &endmember.Table{}

		_, _, err := Scheduler{}.Run(context.Background(), in)
		assert.ErrorIs(t, err, failure.ErrNotConfigured)
	})

	t.Run("land cover shape", func(t *testing.T) {
		in := syntheticInput(t, 4, 4)
		in.Classes = spectral.NewGrid[int32](4, 3)

		_, _, err := Scheduler{}.Run(context.Background(), in)
		var shape *failure.ShapeMismatchError
		require.True(t, errors.As(err, &shape))
		assert.Equal(t, "land cover", shape.Name)
	})

	t.Run("truncated band", func(t *testing.T) {
		in := syntheticInput(t, 4, 4)
		in.SWIR32.Data = in.SWIR32.Data[:10]

		_, _, err := Scheduler{}.Run(context.Background(), in)
		assert.Error(t, err)
	})
}

func TestRunEmptyRaster(t *testing.T) {
	in := syntheticInput(t, 0, 0)

	out, stats, err := Scheduler{Workers: 2}.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 0, out.Rows)
	assert.Zero(t, stats.Pixels)
}
