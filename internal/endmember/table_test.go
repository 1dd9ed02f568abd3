package endmember

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/forest-guardian/fractional-cover/internal/failure"
	"github.com/forest-guardian/fractional-cover/internal/spectral"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	forestTriplet    = Triplet{{NDVI: 0.8, SWIR32: 0.1}, {NDVI: 0.2, SWIR32: 0.6}, {NDVI: 0.1, SWIR32: 0.2}}
	nonForestTriplet = Triplet{{NDVI: 0.6, SWIR32: 0.0}, {NDVI: 0.3, SWIR32: 0.5}, {NDVI: 0.05, SWIR32: 0.15}}
)

func TestTableResolve(t *testing.T) {
	table, err := NewTable(forestTriplet, nonForestTriplet, []int32{2, 7, 2, 70000, -3})
	require.NoError(t, err)

	tests := []struct {
		code int32
		want Regime
	}{
		{2, Forest},
		{7, Forest},
		{70000, Forest},
		{-3, Forest},
		{0, NonForest},
		{3, NonForest},
		{8, NonForest},
		{69999, NonForest},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, table.RegimeOf(tt.code), "code %d", tt.code)

		got, err := table.Resolve(tt.code)
		require.NoError(t, err)
		if tt.want == Forest {
			assert.Equal(t, forestTriplet, got)
		} else {
			assert.Equal(t, nonForestTriplet, got)
		}
	}

	assert.Equal(t, []int32{-3, 2, 7, 70000}, table.ForestCodes())
}

func TestTableEmptyForestCodes(t *testing.T) {
	_, err := NewTable(forestTriplet, nonForestTriplet, nil)

	var config *failure.ConfigurationError
	require.True(t, errors.As(err, &config))
	assert.Equal(t, "forest_codes", config.Field)
}

func TestTableUnconfigured(t *testing.T) {
	var table Table
	_, err := table.Resolve(1)
	assert.ErrorIs(t, err, failure.ErrNotConfigured)

	var nilTable *Table
	_, err = nilTable.Resolve(1)
	assert.ErrorIs(t, err, failure.ErrNotConfigured)
}

func TestParseForestCodes(t *testing.T) {
	codes, err := ParseForestCodes(" 21, 22 ,23,")
	require.NoError(t, err)
	assert.Equal(t, []int32{21, 22, 23}, codes)

	_, err = ParseForestCodes(" , ")
	var config *failure.ConfigurationError
	assert.True(t, errors.As(err, &config))

	_, err = ParseForestCodes("21,forest")
	assert.True(t, errors.As(err, &config))
}

func TestLoadPreset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "preset.yaml")
	contents := `
swir32_formula: normalized
forest:
  pv:  {ndvi: 0.8, swir32: 0.1}
  npv: {ndvi: 0.2, swir32: 0.6}
  bs:  {ndvi: 0.1, swir32: 0.2}
non_forest:
  pv:  {ndvi: 0.6, swir32: 0.0}
  npv: {ndvi: 0.3, swir32: 0.5}
  bs:  {ndvi: 0.05, swir32: 0.15}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	p, err := LoadPreset(path)
	require.NoError(t, err)
	assert.Equal(t, spectral.SWIR32NormalizedDifference, p.Formula)
	assert.Equal(t, forestTriplet, p.Forest.Triplet())
	assert.Equal(t, nonForestTriplet, p.NonForest.Triplet())

	table, err := p.Table([]int32{1})
	require.NoError(t, err)
	assert.Equal(t, forestTriplet, table.Triplet(Forest))
}

func TestLoadPresetRejectsUnknownFormula(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.yaml")
	require.NoError(t, os.WriteFile(path, []byte("swir32_formula: log\n"), 0644))

	_, err := LoadPreset(path)
	var config *failure.ConfigurationError
	assert.True(t, errors.As(err, &config))
}

func TestDefaultPreset(t *testing.T) {
	p, err := LoadPreset("")
	require.NoError(t, err)
	assert.Equal(t, spectral.SWIR32Ratio, p.Formula)
	assert.Equal(t, Point{NDVI: 0.85, SWIR32: 0.74}, p.Forest.PV)
	assert.Equal(t, Point{NDVI: 0.25, SWIR32: 1.05}, p.NonForest.NPV)
	assert.NoError(t, p.Finalize())
}

func TestFinalizeRequiresBothRegimes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preset.yaml")
	contents := `
forest:
  pv:  {ndvi: 0.8, swir32: 0.1}
  npv: {ndvi: 0.2, swir32: 0.6}
  bs:  {ndvi: 0.1, swir32: 0.2}
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	_, err := LoadPreset(path)
	var config *failure.ConfigurationError
	require.True(t, errors.As(err, &config))
	assert.Equal(t, "non_forest", config.Field)
	assert.ErrorIs(t, err, failure.ErrNotConfigured)

	var zero Preset
	assert.ErrorIs(t, zero.Finalize(), failure.ErrNotConfigured)
}

func TestFinalizeAcceptsCollinearTriplet(t *testing.T) {
	p := DefaultPreset()
	p.NonForest = TripletConfig{
		PV:  Point{NDVI: 0.6, SWIR32: 0.6},
		NPV: Point{NDVI: 0.3, SWIR32: 0.3},
		BS:  Point{NDVI: 0.1, SWIR32: 0.1},
	}
	assert.NoError(t, p.Finalize())
}
