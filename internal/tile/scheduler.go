// Package tile applies the unmixing solver over a whole raster in parallel
// row-blocks and reassembles the results by row offset.
package tile

import (
	"context"
	"fmt"
	"runtime"

	"github.com/forest-guardian/fractional-cover/internal/endmember"
	"github.com/forest-guardian/fractional-cover/internal/failure"
	"github.com/forest-guardian/fractional-cover/internal/spectral"
	"github.com/forest-guardian/fractional-cover/internal/unmix"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

// DefaultBlocksPerWorker splits the raster finer than one block per worker
// so a slow block does not leave the others idle.
const DefaultBlocksPerWorker = 4

// DefaultWorkers uses half of the logical CPUs, at least one.
func DefaultWorkers() int {
	return max(1, runtime.NumCPU()/2)
}

// Input holds the aligned rasters of one run.
type Input struct {
	NDVI    spectral.FloatGrid
	SWIR32  spectral.FloatGrid
	Classes spectral.ClassGrid
	Table   *endmember.Table
}

// Stats counts how pixels were classified and solved.
type Stats struct {
	Pixels          int
	ForestPixels    int
	NonForestPixels int
	Interior        int
	Boundary        int
	Fallback        int
	Blocks          int
	Workers         int
}

func (s *Stats) add(o Stats) {
	s.Pixels += o.Pixels
	s.ForestPixels += o.ForestPixels
	s.NonForestPixels += o.NonForestPixels
	s.Interior += o.Interior
	s.Boundary += o.Boundary
	s.Fallback += o.Fallback
}

// Scheduler runs the solver across row-blocks. The zero value uses
// DefaultWorkers and DefaultBlocksPerWorker without a progress bar.
type Scheduler struct {
	Workers         int
	BlocksPerWorker int
	ShowProgress    bool

	// blockHook runs before each block; tests use it to inject failures.
	blockHook func(Block) error
}

// Run unmixes every pixel. On any failure no raster is returned.
func (s Scheduler) Run(ctx context.Context, in Input) (*unmix.Raster, Stats, error) {
	if err := validate(in); err != nil {
		return nil, Stats{}, err
	}

	workers := s.Workers
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	perWorker := s.BlocksPerWorker
	if perWorker <= 0 {
		perWorker = DefaultBlocksPerWorker
	}

	rows, cols := in.NDVI.Shape()
	blocks := Partition(rows, workers*perWorker)
	out := unmix.NewRaster(rows, cols)

	var systems [2]*unmix.System
	systems[endmember.Forest] = unmix.NewSystem(in.Table.Triplet(endmember.Forest))
	systems[endmember.NonForest] = unmix.NewSystem(in.Table.Triplet(endmember.NonForest))

	var bar *progressbar.ProgressBar
	if s.ShowProgress {
		bar = progressbar.Default(int64(rows), "Unmixing rows")
	}

	blockStats := make([]Stats, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, b := range blocks {
		b := b
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := processBlock(gctx, b, in, &systems, s.blockHook)
			if err != nil {
				return err
			}
			res.writeTo(out, b)
			blockStats[b.Index] = res.stats
			if bar != nil {
				bar.Add(b.Rows())
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, Stats{}, fmt.Errorf("unmixing cancelled: %w", ctx.Err())
		}
		return nil, Stats{}, err
	}
	if bar != nil {
		bar.Finish()
	}

	stats := Stats{Blocks: len(blocks), Workers: workers}
	for _, bs := range blockStats {
		stats.add(bs)
	}
	return out, stats, nil
}

func validate(in Input) error {
	if !in.Table.Configured() {
		return &failure.ConfigurationError{
			Field: "endmember table", Reason: "queried before being configured", Err: failure.ErrNotConfigured,
		}
	}
	if err := in.NDVI.Validate("NDVI"); err != nil {
		return err
	}
	if err := in.SWIR32.Validate("SWIR32"); err != nil {
		return err
	}
	if err := in.Classes.Validate("land cover"); err != nil {
		return err
	}
	if err := spectral.CheckShape("SWIR32", in.SWIR32, "NDVI", in.NDVI); err != nil {
		return err
	}
	return spectral.CheckShape("land cover", in.Classes, "NDVI", in.NDVI)
}
