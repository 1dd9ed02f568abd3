// Package engine is the in-memory entry point of the unmixing pipeline:
// validate inputs, derive indexes, resolve endmembers and solve every pixel.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/forest-guardian/fractional-cover/internal/endmember"
	"github.com/forest-guardian/fractional-cover/internal/spectral"
	"github.com/forest-guardian/fractional-cover/internal/tile"
	"github.com/forest-guardian/fractional-cover/internal/unmix"
)

type Input struct {
	Bands       spectral.Bands
	Classes     spectral.ClassGrid
	ForestCodes []int32
	Preset      endmember.Preset

	// Workers <= 0 selects tile.DefaultWorkers.
	Workers         int
	BlocksPerWorker int
	ShowProgress    bool
}

// RunStats summarizes one run.
type RunStats struct {
	tile.Stats
	NDVISentinels   int
	SWIR32Sentinels int
	Means           unmix.Fractions
	// Conditions holds the 2-norm condition number of each regime's
	// endmember system, indexed by endmember.Regime. Values above
	// unmix.MaxCondition mean every pixel of that regime fell back.
	Conditions      [2]float64
	IndexTime       time.Duration
	UnmixTime       time.Duration
}

type Result struct {
	Fractions *unmix.Raster
	Stats     RunStats
}

// Unmix runs the whole engine. Shape and configuration problems are
// reported before any work is dispatched. On error no raster is returned.
func Unmix(ctx context.Context, in Input) (*Result, error) {
	if err := in.Bands.Validate(); err != nil {
		return nil, err
	}
	if err := in.Classes.Validate("land cover"); err != nil {
		return nil, err
	}
	if err := spectral.CheckShape("land cover", in.Classes, "Red", in.Bands.Red); err != nil {
		return nil, err
	}

	preset := in.Preset
	if err := preset.Finalize(); err != nil {
		return nil, err
	}
	table, err := preset.Table(in.ForestCodes)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	idx, err := spectral.ComputeIndexes(in.Bands, preset.Formula)
	if err != nil {
		return nil, fmt.Errorf("computing indexes: %w", err)
	}
	indexTime := time.Since(start)

	start = time.Now()
	scheduler := tile.Scheduler{
		Workers:         in.Workers,
		BlocksPerWorker: in.BlocksPerWorker,
		ShowProgress:    in.ShowProgress,
	}
	raster, stats, err := scheduler.Run(ctx, tile.Input{
		NDVI:    idx.NDVI,
		SWIR32:  idx.SWIR32,
		Classes: in.Classes,
		Table:   table,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		Fractions: raster,
		Stats: RunStats{
			Stats:           stats,
			NDVISentinels:   idx.NDVISentinels,
			SWIR32Sentinels: idx.SWIR32Sentinels,
			Means:           raster.Means(),
			Conditions:      conditions(table),
			IndexTime:       indexTime,
			UnmixTime:       time.Since(start),
		},
	}, nil
}

func conditions(table *endmember.Table) [2]float64 {
	var c [2]float64
	for _, r := range []endmember.Regime{endmember.NonForest, endmember.Forest} {
		c[r] = unmix.NewSystem(table.Triplet(r)).Condition()
	}
	return c
}
