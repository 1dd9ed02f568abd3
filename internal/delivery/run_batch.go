package delivery

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/forest-guardian/fractional-cover/internal/cache"
	"github.com/forest-guardian/fractional-cover/internal/endmember"
	"github.com/forest-guardian/fractional-cover/internal/notification"
	"github.com/forest-guardian/fractional-cover/internal/spectral"
	"github.com/gammazero/workerpool"
	"github.com/gocarina/gocsv"
	"github.com/schollz/progressbar/v3"
)

/* Example manifest ...

scene,land_cover,output,forest_codes,red_band,nir_band,swir2_band,swir3_band
data/scenes/a.tif,data/landcover/a.tif,,"1,2",3,4,5,6
data/scenes/b.tif,data/landcover/b.tif,data/result/b.tif,1,3,4,5,6

*/

type ManifestRow struct {
	Scene       string `csv:"scene"`
	LandCover   string `csv:"land_cover"`
	Output      string `csv:"output"`
	ForestCodes string `csv:"forest_codes"`
	spectral.BandRoles
}

type BatchOptions struct {
	PresetPath string
	// Concurrency bounds how many scenes run at once; each scene still
	// spreads over Workers row-block workers.
	Concurrency int
	Workers     int
	Preview     bool
	NoCache     bool
}

type SceneFailure struct {
	Scene string
	Err   error
}

type BatchReport struct {
	Completed []Summary
	Cached    []Summary
	Failed    []SceneFailure
}

func (r *BatchReport) Total() int { return len(r.Completed) + len(r.Cached) + len(r.Failed) }

func ReadManifest(path string) ([]*ManifestRow, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	var rows []*ManifestRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return rows, nil
}

// RunBatch unmixes every scene listed in the manifest. A scene is skipped when
// its inputs, configuration and output are unchanged since the last run. It
// only fails as a whole when no scene succeeds.
func RunBatch(ctx context.Context, manifestPath string, opts BatchOptions) (*BatchReport, error) {
	rows, err := ReadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("manifest %s lists no scenes", manifestPath)
	}

	preset, err := endmember.LoadPreset(opts.PresetPath)
	if err != nil {
		return nil, fmt.Errorf("loading endmember preset: %w", err)
	}
	presetYaml := preset.AsYaml()

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	var (
		mu          sync.Mutex
		report      = &BatchReport{}
		runs        = cache.NewFileCache[Summary]("cache/unmixing")
		progressBar = progressbar.Default(int64(len(rows)), "Unmixing scenes")
	)

	wp := workerpool.New(concurrency)
	for _, row := range rows {
		req := Request{
			ScenePath:     row.Scene,
			LandCoverPath: row.LandCover,
			OutputPath:    row.Output,
			Roles:         row.BandRoles,
			ForestCodes:   row.ForestCodes,
			PresetPath:    opts.PresetPath,
			Workers:       opts.Workers,
			Preview:       opts.Preview,
		}
		wp.Submit(func() {
			defer progressBar.Add(1)

			summary, cached, err := runCached(ctx, runs, req, presetYaml, opts.NoCache)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				report.Failed = append(report.Failed, SceneFailure{Scene: req.ScenePath, Err: err})
			case cached:
				report.Cached = append(report.Cached, *summary)
			default:
				report.Completed = append(report.Completed, *summary)
			}
		})
	}
	wp.StopWait()
	progressBar.Finish()

	if len(report.Failed) == report.Total() {
		return report, fmt.Errorf("all %d scenes failed: %s", len(report.Failed), joinFailures(report.Failed))
	}
	if len(report.Failed) > 0 {
		notification.SendDiscordWarnNotification(fmt.Sprintf("Batch %s completed with %d failed scenes.\n%s",
			manifestPath, len(report.Failed), joinFailures(report.Failed)))
	}
	return report, nil
}

func runCached(ctx context.Context, runs cache.CacheService[Summary], req Request, presetYaml string, noCache bool) (*Summary, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	fingerprint, err := cache.Fingerprint(req.ScenePath, req.LandCoverPath)
	if err != nil {
		return nil, false, err
	}
	key := runs.GenerateKey(fingerprint, presetYaml, req.ForestCodes, req.Roles, req.outputPath(), req.Preview)

	if !noCache {
		if summary, ok := runs.Get(key); ok {
			if _, err := os.Stat(summary.Output); err == nil {
				return &summary, true, nil
			}
		}
	}

	summary, err := ExecuteUnmixing(ctx, req)
	if err != nil {
		return nil, false, err
	}
	if err := runs.Set(key, *summary); err != nil {
		return nil, false, fmt.Errorf("caching run of %s: %w", req.ScenePath, err)
	}
	return summary, false, nil
}

func joinFailures(failures []SceneFailure) string {
	lines := make([]string, len(failures))
	for i, f := range failures {
		lines[i] = fmt.Sprintf("%s: %v", f.Scene, f.Err)
	}
	return strings.Join(lines, "\n")
}
