package spectral

import (
	"fmt"
	"math"
	"strings"

	"github.com/forest-guardian/fractional-cover/internal/failure"
)

// Sentinel is written wherever an index is undefined: zero denominator or a
// non-finite band value or result.
const Sentinel = 0.0

// SWIR32Formula selects how the SWIR3/SWIR2 index is derived.
type SWIR32Formula string

const (
	// SWIR32NormalizedDifference is (SWIR3 - SWIR2) / (SWIR3 + SWIR2).
	SWIR32NormalizedDifference SWIR32Formula = "normalized"
	// SWIR32Ratio is SWIR3 / SWIR2, kept for endmember presets calibrated on
	// the plain band ratio.
	SWIR32Ratio SWIR32Formula = "ratio"
)

func ParseSWIR32Formula(s string) (SWIR32Formula, error) {
	switch f := SWIR32Formula(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return SWIR32NormalizedDifference, nil
	case SWIR32NormalizedDifference, SWIR32Ratio:
		return f, nil
	}
	return "", failure.NewConfigurationError("swir32_formula", fmt.Sprintf("unknown formula %q", s))
}

// Bands are the four reflectance rasters of one scene.
type Bands struct {
	Red   FloatGrid
	NIR   FloatGrid
	SWIR2 FloatGrid
	SWIR3 FloatGrid
}

// Validate checks every band is well formed and shares the Red band's shape.
func (b Bands) Validate() error {
	named := []struct {
		name string
		grid FloatGrid
	}{{"Red", b.Red}, {"NIR", b.NIR}, {"SWIR2", b.SWIR2}, {"SWIR3", b.SWIR3}}

	for _, n := range named {
		if err := n.grid.Validate(n.name); err != nil {
			return err
		}
		if err := CheckShape(n.name, n.grid, "Red", b.Red); err != nil {
			return err
		}
	}
	return nil
}

// Indexes are the two derived rasters the solver works on.
type Indexes struct {
	NDVI   FloatGrid
	SWIR32 FloatGrid

	// Cells where the sentinel was substituted.
	NDVISentinels   int
	SWIR32Sentinels int
}

// ComputeIndexes derives NDVI and SWIR32 from the four bands. It never emits
// a non-finite value.
func ComputeIndexes(b Bands, formula SWIR32Formula) (*Indexes, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if formula == "" {
		formula = SWIR32NormalizedDifference
	}
	if formula != SWIR32NormalizedDifference && formula != SWIR32Ratio {
		return nil, failure.NewConfigurationError("swir32_formula", fmt.Sprintf("unknown formula %q", formula))
	}

	rows, cols := b.Red.Shape()
	idx := &Indexes{
		NDVI:   NewGrid[float64](rows, cols),
		SWIR32: NewGrid[float64](rows, cols),
	}

	for i := range b.Red.Data {
		v, ok := NormalizedDifference(b.NIR.Data[i], b.Red.Data[i])
		if !ok {
			idx.NDVISentinels++
		}
		idx.NDVI.Data[i] = v

		if formula == SWIR32Ratio {
			v, ok = Ratio(b.SWIR3.Data[i], b.SWIR2.Data[i])
		} else {
			v, ok = NormalizedDifference(b.SWIR3.Data[i], b.SWIR2.Data[i])
		}
		if !ok {
			idx.SWIR32Sentinels++
		}
		idx.SWIR32.Data[i] = v
	}

	return idx, nil
}

// NormalizedDifference returns (a - b) / (a + b), or Sentinel and false when
// the result is undefined.
func NormalizedDifference(a, b float64) (float64, bool) {
	return safeDivide(a-b, a+b)
}

// Ratio returns a / b, or Sentinel and false when the result is undefined.
func Ratio(a, b float64) (float64, bool) {
	return safeDivide(a, b)
}

func safeDivide(num, den float64) (float64, bool) {
	if den == 0 || !finite(num) || !finite(den) {
		return Sentinel, false
	}
	v := num / den
	if !finite(v) {
		return Sentinel, false
	}
	return v, true
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
