package unmix

import (
	"github.com/forest-guardian/fractional-cover/internal/endmember"
	"github.com/forest-guardian/fractional-cover/internal/spectral"
)

// Raster is the 3-band fraction image, bands in endmember.Material order
// (PV, NPV, BS).
type Raster struct {
	Rows  int
	Cols  int
	Bands [3]spectral.FloatGrid
}

func NewRaster(rows, cols int) *Raster {
	r := &Raster{Rows: rows, Cols: cols}
	for i := range r.Bands {
		r.Bands[i] = spectral.NewGrid[float64](rows, cols)
	}
	return r
}

func (r *Raster) Band(m endmember.Material) spectral.FloatGrid { return r.Bands[m] }

func (r *Raster) At(row, col int) Fractions {
	i := row*r.Cols + col
	return Fractions{r.Bands[0].Data[i], r.Bands[1].Data[i], r.Bands[2].Data[i]}
}

func (r *Raster) Set(row, col int, f Fractions) {
	i := row*r.Cols + col
	for b := range r.Bands {
		r.Bands[b].Data[i] = f[b]
	}
}

// Means returns the average fraction of each band.
func (r *Raster) Means() Fractions {
	var sum Fractions
	n := r.Rows * r.Cols
	if n == 0 {
		return sum
	}
	for b := range r.Bands {
		for _, v := range r.Bands[b].Data {
			sum[b] += v
		}
		sum[b] /= float64(n)
	}
	return sum
}
