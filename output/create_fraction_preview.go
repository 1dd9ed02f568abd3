package output

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/forest-guardian/fractional-cover/internal/endmember"
	"github.com/forest-guardian/fractional-cover/internal/properties"
	"github.com/forest-guardian/fractional-cover/internal/unmix"
)

const legendHeight = 24

func channel(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// CreateFractionPreview renders the fractions as a PNG with R = NPV, G = PV
// and B = BS, plus a legend strip under the image.
func CreateFractionPreview(fractions *unmix.Raster, outputPath string) error {
	if fractions.Rows == 0 || fractions.Cols == 0 {
		return fmt.Errorf("cannot preview an empty raster")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create preview folder: %w", err)
	}

	width := max(fractions.Cols, 3*legendHeight*2)
	dc := gg.NewContext(width, fractions.Rows+legendHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for y := 0; y < fractions.Rows; y++ {
		for x := 0; x < fractions.Cols; x++ {
			f := fractions.At(y, x)
			dc.SetRGB(channel(f[endmember.NPV]), channel(f[endmember.PV]), channel(f[endmember.BS]))
			dc.SetPixel(x, y)
		}
	}

	legendY := float64(fractions.Rows) + 4
	for i, m := range endmember.Materials() {
		c := properties.ColorMap[m.String()]
		x := float64(4 + i*legendHeight*2)
		dc.SetRGB255(int(c.R), int(c.G), int(c.B))
		dc.DrawRectangle(x, legendY, 10, 10)
		dc.Fill()
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(m.String(), x+14, legendY+5, 0, 0.5)
	}

	if err := dc.SavePNG(outputPath); err != nil {
		return fmt.Errorf("failed to save preview: %w", err)
	}
	return nil
}
