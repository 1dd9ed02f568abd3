package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/forest-guardian/fractional-cover/internal/engine"
	"github.com/gocarina/gocsv"
)

type RunStatsRow struct {
	Scene           string  `csv:"scene"`
	Pixels          int     `csv:"pixels"`
	ForestPixels    int     `csv:"forest_pixels"`
	NonForestPixels int     `csv:"non_forest_pixels"`
	Interior        int     `csv:"interior"`
	Boundary        int     `csv:"boundary"`
	Fallback        int     `csv:"fallback"`
	NDVISentinels   int     `csv:"ndvi_sentinels"`
	SWIR32Sentinels int     `csv:"swir32_sentinels"`
	MeanPV          float64 `csv:"mean_pv"`
	MeanNPV         float64 `csv:"mean_npv"`
	MeanBS          float64 `csv:"mean_bs"`
	Workers         int     `csv:"workers"`
	Blocks          int     `csv:"blocks"`
	IndexMillis     int64   `csv:"index_ms"`
	UnmixMillis     int64   `csv:"unmix_ms"`
}

func NewRunStatsRow(scene string, s engine.RunStats) RunStatsRow {
	return RunStatsRow{
		Scene:           scene,
		Pixels:          s.Pixels,
		ForestPixels:    s.ForestPixels,
		NonForestPixels: s.NonForestPixels,
		Interior:        s.Interior,
		Boundary:        s.Boundary,
		Fallback:        s.Fallback,
		NDVISentinels:   s.NDVISentinels,
		SWIR32Sentinels: s.SWIR32Sentinels,
		MeanPV:          s.Means[0],
		MeanNPV:         s.Means[1],
		MeanBS:          s.Means[2],
		Workers:         s.Workers,
		Blocks:          s.Blocks,
		IndexMillis:     s.IndexTime.Milliseconds(),
		UnmixMillis:     s.UnmixTime.Milliseconds(),
	}
}

// CreateRunStatsCSV writes rows with a header, replacing any existing file.
func CreateRunStatsCSV(rows []RunStatsRow, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create stats folder: %w", err)
	}
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create stats file: %w", err)
	}
	defer file.Close()

	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return fmt.Errorf("failed to write stats CSV: %w", err)
	}
	return nil
}
