package tile

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/forest-guardian/fractional-cover/internal/endmember"
	"github.com/forest-guardian/fractional-cover/internal/failure"
	"github.com/forest-guardian/fractional-cover/internal/unmix"
)

// Block is a contiguous row range [StartRow, EndRow).
type Block struct {
	Index    int
	StartRow int
	EndRow   int
}

func (b Block) Rows() int { return b.EndRow - b.StartRow }

func (b Block) String() string { return fmt.Sprintf("block %d rows [%d, %d)", b.Index, b.StartRow, b.EndRow) }

// Partition splits rows into at most n contiguous, non-empty blocks whose
// sizes differ by at most one row.
func Partition(rows, n int) []Block {
	if rows <= 0 {
		return nil
	}
	n = max(1, min(n, rows))

	blocks := make([]Block, n)
	size, extra := rows/n, rows%n
	start := 0
	for i := range blocks {
		end := start + size
		if i < extra {
			end++
		}
		blocks[i] = Block{Index: i, StartRow: start, EndRow: end}
		start = end
	}
	return blocks
}

type blockResult struct {
	bands [3][]float64
	stats Stats
}

// writeTo copies a finished block into its rows of out. Blocks never overlap
// so concurrent calls touch disjoint cells.
func (r *blockResult) writeTo(out *unmix.Raster, b Block) {
	offset := b.StartRow * out.Cols
	for i := range r.bands {
		copy(out.Bands[i].Data[offset:], r.bands[i])
	}
}

func processBlock(ctx context.Context, b Block, in Input, systems *[2]*unmix.System, hook func(Block) error) (res *blockResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = &failure.WorkerFailure{
				StartRow: b.StartRow, EndRow: b.EndRow,
				Err: fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
			}
		}
	}()

	if hook != nil {
		if err := hook(b); err != nil {
			return nil, &failure.WorkerFailure{StartRow: b.StartRow, EndRow: b.EndRow, Err: err}
		}
	}

	cols := in.NDVI.Cols
	n := b.Rows() * cols
	ndvi := in.NDVI.RowRange(b.StartRow, b.EndRow)
	swir32 := in.SWIR32.RowRange(b.StartRow, b.EndRow)
	classes := in.Classes.RowRange(b.StartRow, b.EndRow)
	if len(ndvi) != n || len(swir32) != n || len(classes) != n {
		return nil, &failure.WorkerFailure{
			StartRow: b.StartRow, EndRow: b.EndRow,
			Err: fmt.Errorf("unexpected block shape: ndvi=%d swir32=%d classes=%d cells, want %d", len(ndvi), len(swir32), len(classes), n),
		}
	}

	res = &blockResult{}
	for i := range res.bands {
		res.bands[i] = make([]float64, n)
	}

	for row := 0; row < b.Rows(); row++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for col := 0; col < cols; col++ {
			i := row*cols + col
			regime := in.Table.RegimeOf(classes[i])
			if regime == endmember.Forest {
				res.stats.ForestPixels++
			} else {
				res.stats.NonForestPixels++
			}

			f, outcome := systems[regime].Solve(endmember.Point{NDVI: ndvi[i], SWIR32: swir32[i]})
			switch outcome {
			case unmix.Interior:
				res.stats.Interior++
			case unmix.Boundary:
				res.stats.Boundary++
			case unmix.Fallback:
				res.stats.Fallback++
			}
			res.bands[endmember.PV][i] = f[endmember.PV]
			res.bands[endmember.NPV][i] = f[endmember.NPV]
			res.bands[endmember.BS][i] = f[endmember.BS]
		}
	}
	res.stats.Pixels = n
	return res, nil
}
