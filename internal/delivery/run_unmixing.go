package delivery

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/forest-guardian/fractional-cover/internal/endmember"
	"github.com/forest-guardian/fractional-cover/internal/engine"
	"github.com/forest-guardian/fractional-cover/internal/properties"
	"github.com/forest-guardian/fractional-cover/internal/raster"
	"github.com/forest-guardian/fractional-cover/internal/spectral"
	"github.com/forest-guardian/fractional-cover/output"
)

// Request describes one scene to unmix.
type Request struct {
	ScenePath     string
	LandCoverPath string
	// OutputPath defaults to ROOT_PATH/data/result/<scene>_fractions.tif.
	OutputPath  string
	Roles       spectral.BandRoles
	ForestCodes string
	// PresetPath selects a YAML endmember preset; empty uses the built-in one.
	PresetPath   string
	Workers      int
	Preview      bool
	ShowProgress bool
}

// Summary is what a finished run leaves behind.
type Summary struct {
	Scene       string             `json:"scene"`
	Output      string             `json:"output"`
	StatsPath   string             `json:"stats_path"`
	PreviewPath string             `json:"preview_path,omitempty"`
	Stats       output.RunStatsRow `json:"stats"`
	FinishedAt  time.Time          `json:"finished_at"`

	// Formula is the SWIR32 formula the preset selected.
	Formula spectral.SWIR32Formula `json:"formula"`
	// Warnings are problems that did not stop the run, such as a land cover
	// that does not line up with the scene.
	Warnings []string `json:"warnings,omitempty"`
	// RunStats is only set on fresh runs; it is not cached.
	RunStats engine.RunStats `json:"-"`
}

func (r Request) outputPath() string {
	if r.OutputPath != "" {
		return r.OutputPath
	}
	base := strings.TrimSuffix(filepath.Base(r.ScenePath), filepath.Ext(r.ScenePath))
	return filepath.Join(properties.RootPath(), "data", "result", base+"_fractions.tif")
}

func siblingPath(path, suffix string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + suffix
}

// ExecuteUnmixing reads the scene and land cover, unmixes them and writes the
// fraction GeoTIFF together with a statistics CSV and an optional preview.
func ExecuteUnmixing(ctx context.Context, req Request) (*Summary, error) {
	if err := req.Roles.Validate(0); err != nil {
		return nil, err
	}
	codes, err := endmember.ParseForestCodes(req.ForestCodes)
	if err != nil {
		return nil, err
	}
	preset, err := endmember.LoadPreset(req.PresetPath)
	if err != nil {
		return nil, fmt.Errorf("loading endmember preset: %w", err)
	}

	scene, err := raster.OpenScene(req.ScenePath, req.Roles)
	if err != nil {
		return nil, err
	}
	classes, landCoverRef, err := raster.ReadLandCover(req.LandCoverPath)
	if err != nil {
		return nil, err
	}
	var warnings []string
	if err := raster.CheckAlignment(scene.GeoRef, landCoverRef, classes.Rows, classes.Cols); err != nil {
		warnings = append(warnings, err.Error())
	}

	result, err := engine.Unmix(ctx, engine.Input{
		Bands:        scene.Bands,
		Classes:      classes,
		ForestCodes:  codes,
		Preset:       preset,
		Workers:      req.Workers,
		ShowProgress: req.ShowProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("unmixing %s: %w", req.ScenePath, err)
	}

	summary := &Summary{
		Scene:     req.ScenePath,
		Output:    req.outputPath(),
		StatsPath: siblingPath(req.outputPath(), "_stats.csv"),
		Stats:     output.NewRunStatsRow(req.ScenePath, result.Stats),
		Formula:   preset.Formula,
		Warnings:  warnings,
		RunStats:  result.Stats,
	}
	if err := raster.WriteFractions(summary.Output, result.Fractions, scene.GeoRef); err != nil {
		return nil, err
	}
	if err := output.CreateRunStatsCSV([]output.RunStatsRow{summary.Stats}, summary.StatsPath); err != nil {
		return nil, err
	}
	if req.Preview {
		summary.PreviewPath = siblingPath(summary.Output, "_preview.png")
		if err := output.CreateFractionPreview(result.Fractions, summary.PreviewPath); err != nil {
			return nil, err
		}
	}
	summary.FinishedAt = time.Now()
	return summary, nil
}
