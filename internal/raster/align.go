package raster

import (
	"fmt"
	"math"
	"strings"
)

// Extent returns xMin, yMax, xMax, yMin of a rows x cols grid.
func (g GeoRef) Extent(rows, cols int) (xMin, yMax, xMax, yMin float64) {
	gt := g.GeoTransform
	xMin, yMax = gt[0], gt[3]
	xMax = gt[0] + float64(cols)*gt[1] + float64(rows)*gt[2]
	yMin = gt[3] + float64(cols)*gt[4] + float64(rows)*gt[5]
	return
}

// CheckAlignment compares the projection and extent of the scene and the land
// cover, both rows x cols. Extents may differ by up to one scene pixel.
// Rasters without georeferencing on either side are not compared.
func CheckAlignment(scene, landCover GeoRef, rows, cols int) error {
	if !scene.HasGeoTransform && !landCover.HasGeoTransform {
		return nil
	}
	if scene.HasGeoTransform != landCover.HasGeoTransform {
		return fmt.Errorf("only one of scene and land cover is georeferenced")
	}
	if strings.TrimSpace(scene.Projection) != strings.TrimSpace(landCover.Projection) {
		return fmt.Errorf("scene and land cover use different coordinate systems")
	}

	tolerance := math.Max(math.Abs(scene.GeoTransform[1]), math.Abs(scene.GeoTransform[5]))
	sx0, sy0, sx1, sy1 := scene.Extent(rows, cols)
	lx0, ly0, lx1, ly1 := landCover.Extent(rows, cols)
	for _, d := range []float64{sx0 - lx0, sy0 - ly0, sx1 - lx1, sy1 - ly1} {
		if math.Abs(d) > tolerance {
			return fmt.Errorf("scene extent [%g, %g, %g, %g] and land cover extent [%g, %g, %g, %g] differ by more than one pixel",
				sx0, sy1, sx1, sy0, lx0, ly1, lx1, ly0)
		}
	}
	return nil
}
