package endmember

import "fmt"

// Material is one of the three mixture components. Its value is also the
// band position in the output raster.
type Material int

const (
	PV Material = iota
	NPV
	BS
)

// Materials returns the components in output band order.
func Materials() [3]Material { return [3]Material{PV, NPV, BS} }

func (m Material) String() string {
	switch m {
	case PV:
		return "PV"
	case NPV:
		return "NPV"
	case BS:
		return "BS"
	}
	return fmt.Sprintf("Material(%d)", int(m))
}

// Regime selects which endmember triplet applies to a pixel.
type Regime int

const (
	NonForest Regime = iota
	Forest
)

func (r Regime) String() string {
	if r == Forest {
		return "forest"
	}
	return "non-forest"
}

// Point is a position in the (NDVI, SWIR32) index space.
type Point struct {
	NDVI   float64 `yaml:"ndvi"`
	SWIR32 float64 `yaml:"swir32"`
}

func (p Point) Sub(q Point) Point { return Point{p.NDVI - q.NDVI, p.SWIR32 - q.SWIR32} }
func (p Point) Dot(q Point) float64 {
	return p.NDVI*q.NDVI + p.SWIR32*q.SWIR32
}

// Dist2 is the squared euclidean distance between p and q.
func (p Point) Dist2(q Point) float64 {
	d := p.Sub(q)
	return d.Dot(d)
}

// Triplet holds the pure PV, NPV and BS points of one regime, indexed by
// Material.
type Triplet [3]Point

func (t Triplet) Of(m Material) Point { return t[m] }

func (t Triplet) String() string {
	return fmt.Sprintf("PV(%.4g, %.4g) NPV(%.4g, %.4g) BS(%.4g, %.4g)",
		t[PV].NDVI, t[PV].SWIR32, t[NPV].NDVI, t[NPV].SWIR32, t[BS].NDVI, t[BS].SWIR32)
}
