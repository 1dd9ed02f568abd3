package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/airbusgeo/godal"
	"github.com/forest-guardian/fractional-cover/internal/failure"
	"github.com/forest-guardian/fractional-cover/internal/spectral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roles = spectral.BandRoles{Red: 1, NIR: 2, SWIR2: 3, SWIR3: 4}

func writeGeoTIFF[T float64 | int32](t *testing.T, path string, dtype godal.DataType, rows, cols int, bands ...[]T) {
	t.Helper()
	godal.RegisterAll()
	ds, err := godal.Create(godal.GTiff, path, len(bands), dtype, cols, rows)
	require.NoError(t, err)
	require.NoError(t, ds.SetGeoTransform([6]float64{0, 10, 0, 0, 0, -10}))
	for i, band := range ds.Bands() {
		require.NoError(t, band.Write(0, 0, bands[i], cols, rows))
	}
	require.NoError(t, ds.Close())
}

// writeInputs creates a 2x2 four-band scene and a matching land cover where
// the top row is forest (class 1).
func writeInputs(t *testing.T, dir, name string) (scene, landCover string) {
	t.Helper()
	scene = filepath.Join(dir, name+".tif")
	landCover = filepath.Join(dir, name+"_lc.tif")
	writeGeoTIFF(t, scene, godal.Float64, 2, 2,
		[]float64{0.05, 0.08, 0.12, 0.2},
		[]float64{0.45, 0.4, 0.3, 0.25},
		[]float64{0.2, 0.22, 0.25, 0.3},
		[]float64{0.15, 0.2, 0.27, 0.28},
	)
	writeGeoTIFF(t, landCover, godal.Int32, 2, 2, []int32{1, 1, 7, 7})
	return scene, landCover
}

func readBand(t *testing.T, path string, band, n int) []float32 {
	t.Helper()
	ds, err := godal.Open(path)
	require.NoError(t, err)
	defer ds.Close()
	require.Len(t, ds.Bands(), 3)
	buf := make([]float32, n)
	require.NoError(t, ds.Bands()[band].Read(0, 0, buf, 2, n/2))
	return buf
}

func TestExecuteUnmixing(t *testing.T) {
	dir := t.TempDir()
	scene, landCover := writeInputs(t, dir, "scene")
	out := filepath.Join(dir, "result", "scene_fractions.tif")

	summary, err := ExecuteUnmixing(context.Background(), Request{
		ScenePath:     scene,
		LandCoverPath: landCover,
		OutputPath:    out,
		Roles:         roles,
		ForestCodes:   "1, 2",
		Workers:       2,
		Preview:       true,
	})
	require.NoError(t, err)

	assert.Equal(t, out, summary.Output)
	assert.FileExists(t, summary.StatsPath)
	assert.FileExists(t, summary.PreviewPath)
	assert.Equal(t, 4, summary.Stats.Pixels)
	assert.Equal(t, 2, summary.Stats.ForestPixels)
	assert.Equal(t, 2, summary.Stats.NonForestPixels)
	assert.Equal(t, spectral.SWIR32Ratio, summary.Formula)
	assert.Empty(t, summary.Warnings)
	assert.Equal(t, 4, summary.RunStats.Pixels)

	pv, npv, bs := readBand(t, out, 0, 4), readBand(t, out, 1, 4), readBand(t, out, 2, 4)
	for i := range pv {
		assert.InDelta(t, 1.0, float64(pv[i]+npv[i]+bs[i]), 1e-5, "pixel %d", i)
		for _, v := range []float32{pv[i], npv[i], bs[i]} {
			assert.GreaterOrEqual(t, v, float32(0))
		}
	}
}

func TestExecuteUnmixingDefaultOutput(t *testing.T) {
	root := t.TempDir()
	t.Setenv("ROOT_PATH", root)
	scene, landCover := writeInputs(t, t.TempDir(), "tile_07")

	summary, err := ExecuteUnmixing(context.Background(), Request{
		ScenePath: scene, LandCoverPath: landCover, Roles: roles, ForestCodes: "1",
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(root, "data", "result", "tile_07_fractions.tif"), summary.Output)
	assert.FileExists(t, summary.Output)
	assert.Empty(t, summary.PreviewPath)
}

func TestExecuteUnmixingErrors(t *testing.T) {
	dir := t.TempDir()
	scene, _ := writeInputs(t, dir, "scene")

	t.Run("no forest codes", func(t *testing.T) {
		_, err := ExecuteUnmixing(context.Background(), Request{ScenePath: scene, Roles: roles, ForestCodes: " "})
		assert.Equal(t, "configuration", failure.Kind(err))
	})

	t.Run("land cover of another size", func(t *testing.T) {
		landCover := filepath.Join(dir, "small_lc.tif")
		writeGeoTIFF(t, landCover, godal.Int32, 1, 2, []int32{1, 1})

		_, err := ExecuteUnmixing(context.Background(), Request{
			ScenePath: scene, LandCoverPath: landCover, OutputPath: filepath.Join(dir, "x.tif"), Roles: roles, ForestCodes: "1",
		})
		assert.Equal(t, "shape mismatch", failure.Kind(err))
		assert.NoFileExists(t, filepath.Join(dir, "x.tif"))
	})

	t.Run("unassigned band checked before opening files", func(t *testing.T) {
		_, err := ExecuteUnmixing(context.Background(), Request{
			ScenePath: filepath.Join(dir, "missing.tif"), Roles: spectral.BandRoles{Red: 1, NIR: 2, SWIR2: 3}, ForestCodes: "1",
		})
		var config *failure.ConfigurationError
		require.True(t, errors.As(err, &config))
		assert.Equal(t, "SWIR3 band", config.Field)
	})

	t.Run("band outside the file", func(t *testing.T) {
		_, err := ExecuteUnmixing(context.Background(), Request{
			ScenePath: scene, Roles: spectral.BandRoles{Red: 1, NIR: 2, SWIR2: 3, SWIR3: 9}, ForestCodes: "1",
		})
		assert.Equal(t, "configuration", failure.Kind(err))
	})
}

func writeManifest(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "manifest.csv")
	content := "scene,land_cover,output,forest_codes,red_band,nir_band,swir2_band,swir3_band\n"
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestRunBatch(t *testing.T) {
	t.Setenv("ROOT_PATH", t.TempDir())
	dir := t.TempDir()
	scene, landCover := writeInputs(t, dir, "a")
	manifest := writeManifest(t, dir,
		fmt.Sprintf(`%s,%s,%s,"1,2",1,2,3,4`, scene, landCover, filepath.Join(dir, "a_out.tif")),
		fmt.Sprintf(`%s,%s,%s,1,1,2,3,4`, filepath.Join(dir, "missing.tif"), landCover, filepath.Join(dir, "b_out.tif")),
	)

	report, err := RunBatch(context.Background(), manifest, BatchOptions{Concurrency: 2, Workers: 1})
	require.NoError(t, err)
	require.Len(t, report.Completed, 1)
	require.Len(t, report.Failed, 1)
	assert.Empty(t, report.Cached)
	assert.Equal(t, filepath.Join(dir, "missing.tif"), report.Failed[0].Scene)
	assert.FileExists(t, filepath.Join(dir, "a_out.tif"))

	again, err := RunBatch(context.Background(), manifest, BatchOptions{Concurrency: 2, Workers: 1})
	require.NoError(t, err)
	assert.Len(t, again.Cached, 1)
	assert.Empty(t, again.Completed)
	assert.Equal(t, report.Completed[0].Output, again.Cached[0].Output)

	forced, err := RunBatch(context.Background(), manifest, BatchOptions{Workers: 1, NoCache: true})
	require.NoError(t, err)
	assert.Len(t, forced.Completed, 1)
}

func TestRunBatchAllFailed(t *testing.T) {
	t.Setenv("ROOT_PATH", t.TempDir())
	dir := t.TempDir()
	manifest := writeManifest(t, dir, fmt.Sprintf(`%s,%s,,1,1,2,3,4`, filepath.Join(dir, "x.tif"), filepath.Join(dir, "y.tif")))

	report, err := RunBatch(context.Background(), manifest, BatchOptions{})
	assert.ErrorContains(t, err, "all 1 scenes failed")
	require.NotNil(t, report)
	assert.Len(t, report.Failed, 1)
}

func TestReadManifest(t *testing.T) {
	dir := t.TempDir()
	manifest := writeManifest(t, dir, `s.tif,lc.tif,,"1,2",3,4,5,6`)

	rows, err := ReadManifest(manifest)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "1,2", rows[0].ForestCodes)
	assert.Equal(t, spectral.BandRoles{Red: 3, NIR: 4, SWIR2: 5, SWIR3: 6}, rows[0].BandRoles)
}

func TestExecuteUnmixingWarnsOnMisalignedLandCover(t *testing.T) {
	dir := t.TempDir()
	scene, landCover := writeInputs(t, dir, "scene")

	ds, err := godal.Open(landCover, godal.Update())
	require.NoError(t, err)
	require.NoError(t, ds.SetGeoTransform([6]float64{1000, 10, 0, 0, 0, -10}))
	require.NoError(t, ds.Close())

	summary, err := ExecuteUnmixing(context.Background(), Request{
		ScenePath: scene, LandCoverPath: landCover, OutputPath: filepath.Join(dir, "out.tif"), Roles: roles, ForestCodes: "1",
	})
	require.NoError(t, err)
	require.Len(t, summary.Warnings, 1)
	assert.Contains(t, summary.Warnings[0], "differ by more than one pixel")
	assert.FileExists(t, summary.Output)
}
