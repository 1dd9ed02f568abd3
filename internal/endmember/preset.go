package endmember

import (
	"fmt"
	"math"
	"os"

	"github.com/forest-guardian/fractional-cover/internal/failure"
	"github.com/forest-guardian/fractional-cover/internal/spectral"
	"gopkg.in/yaml.v2"
)

/* Example preset file ...

swir32_formula: ratio
forest:
  pv:  {ndvi: 0.85, swir32: 0.74}
  npv: {ndvi: 0.32, swir32: 1.05}
  bs:  {ndvi: 0.11, swir32: 0.51}
non_forest:
  pv:  {ndvi: 0.72, swir32: 0.74}
  npv: {ndvi: 0.25, swir32: 1.05}
  bs:  {ndvi: 0.11, swir32: 0.51}

*/

type TripletConfig struct {
	PV  Point `yaml:"pv"`
	NPV Point `yaml:"npv"`
	BS  Point `yaml:"bs"`
}

func (c TripletConfig) Triplet() Triplet {
	var t Triplet
	t[PV], t[NPV], t[BS] = c.PV, c.NPV, c.BS
	return t
}

// Preset is a named set of endmembers for both regimes together with the
// SWIR32 formula they were calibrated with.
type Preset struct {
	SWIR32Formula string        `yaml:"swir32_formula"`
	Forest        TripletConfig `yaml:"forest"`
	NonForest     TripletConfig `yaml:"non_forest"`

	Formula spectral.SWIR32Formula `yaml:"-"`
}

// DefaultPreset holds the reference endmembers shipped with the tool. They
// were measured against the SWIR3/SWIR2 band ratio.
func DefaultPreset() Preset {
	p := Preset{
		SWIR32Formula: string(spectral.SWIR32Ratio),
		Forest: TripletConfig{
			PV:  Point{NDVI: 0.85, SWIR32: 0.74},
			NPV: Point{NDVI: 0.32, SWIR32: 1.05},
			BS:  Point{NDVI: 0.11, SWIR32: 0.51},
		},
		NonForest: TripletConfig{
			PV:  Point{NDVI: 0.72, SWIR32: 0.74},
			NPV: Point{NDVI: 0.25, SWIR32: 1.05},
			BS:  Point{NDVI: 0.11, SWIR32: 0.51},
		},
	}
	p.Formula = spectral.SWIR32Ratio
	return p
}

// LoadPreset reads a YAML preset. An empty filename yields DefaultPreset.
func LoadPreset(filename string) (Preset, error) {
	if filename == "" {
		return DefaultPreset(), nil
	}

	var p Preset
	contents, err := os.ReadFile(filename)
	if err != nil {
		return p, fmt.Errorf("read '%s': %w", filename, err)
	}
	if err := yaml.Unmarshal(contents, &p); err != nil {
		return p, fmt.Errorf("parse '%s': %w", filename, err)
	}
	return p, p.Finalize()
}

// Finalize validates the preset and resolves the formula name. A regime whose
// three endmembers are all left at the origin counts as unset.
func (p *Preset) Finalize() error {
	f, err := spectral.ParseSWIR32Formula(p.SWIR32Formula)
	if err != nil {
		return err
	}
	p.Formula = f

	for _, regime := range []struct {
		name string
		c    TripletConfig
		t    Triplet
	}{{"forest", p.Forest, p.Forest.Triplet()}, {"non_forest", p.NonForest, p.NonForest.Triplet()}} {
		if regime.c == (TripletConfig{}) {
			return &failure.ConfigurationError{
				Field: regime.name, Reason: "endmembers were never set", Err: failure.ErrNotConfigured,
			}
		}
		for _, m := range Materials() {
			pt := regime.t.Of(m)
			if !finitePoint(pt) {
				return failure.NewConfigurationError(regime.name+"."+m.String(), "endmember coordinate is not finite")
			}
		}
	}
	return nil
}

// Table builds the lookup table for the given forest class codes.
func (p Preset) Table(forestCodes []int32) (*Table, error) {
	return NewTable(p.Forest.Triplet(), p.NonForest.Triplet(), forestCodes)
}

func (p Preset) AsYaml() string {
	b, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Sprintf("preset not serializable: %v", err)
	}
	return string(b)
}

func finitePoint(p Point) bool {
	for _, v := range []float64{p.NDVI, p.SWIR32} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
