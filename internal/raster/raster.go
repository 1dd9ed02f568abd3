// Package raster moves scenes, land cover and fraction images between
// GeoTIFF files and the in-memory grids used by the engine.
package raster

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/airbusgeo/godal"
	"github.com/forest-guardian/fractional-cover/internal/spectral"
	"github.com/forest-guardian/fractional-cover/internal/unmix"
)

var registerOnce sync.Once

func register() {
	registerOnce.Do(godal.RegisterAll)
}

// GeoRef is the georeferencing copied from the input scene to the output.
type GeoRef struct {
	GeoTransform    [6]float64
	HasGeoTransform bool
	Projection      string
}

type Scene struct {
	Bands     spectral.Bands
	BandCount int
	GeoRef    GeoRef
}

func open(path string) (*godal.Dataset, error) {
	register()
	ds, err := godal.Open(path, godal.ErrLogger(func(ec godal.ErrorCategory, code int, msg string) error {
		if ec == godal.CE_Warning {
			return nil
		}
		return fmt.Errorf("gdal: %s", msg)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return ds, nil
}

// OpenScene reads the four bands assigned by roles. Band numbers are
// 1-based and must exist in the file.
func OpenScene(path string, roles spectral.BandRoles) (*Scene, error) {
	ds, err := open(path)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	structure := ds.Structure()
	if err := roles.Validate(structure.NBands); err != nil {
		return nil, err
	}

	scene := &Scene{BandCount: structure.NBands, GeoRef: readGeoRef(ds)}
	bands := ds.Bands()
	targets := map[spectral.Role]*spectral.FloatGrid{
		spectral.RoleRed:   &scene.Bands.Red,
		spectral.RoleNIR:   &scene.Bands.NIR,
		spectral.RoleSWIR2: &scene.Bands.SWIR2,
		spectral.RoleSWIR3: &scene.Bands.SWIR3,
	}
	for _, role := range spectral.Roles() {
		grid := spectral.NewGrid[float64](structure.SizeY, structure.SizeX)
		if err := bands[roles.Band(role)-1].Read(0, 0, grid.Data, grid.Cols, grid.Rows); err != nil {
			return nil, fmt.Errorf("failed to read %s band %d of %s: %w", role, roles.Band(role), path, err)
		}
		*targets[role] = grid
	}
	return scene, nil
}

// ReadLandCover reads band 1 as integer class codes together with the
// file's georeferencing.
func ReadLandCover(path string) (spectral.ClassGrid, GeoRef, error) {
	ds, err := open(path)
	if err != nil {
		return spectral.ClassGrid{}, GeoRef{}, err
	}
	defer ds.Close()

	structure := ds.Structure()
	if structure.NBands < 1 {
		return spectral.ClassGrid{}, GeoRef{}, fmt.Errorf("land cover %s has no bands", path)
	}
	grid := spectral.NewGrid[int32](structure.SizeY, structure.SizeX)
	if err := ds.Bands()[0].Read(0, 0, grid.Data, grid.Cols, grid.Rows); err != nil {
		return spectral.ClassGrid{}, GeoRef{}, fmt.Errorf("failed to read land cover %s: %w", path, err)
	}
	return grid, readGeoRef(ds), nil
}

// BandInfo describes one band of a multi-band image.
type BandInfo struct {
	Number      int
	Description string
	DataType    string
}

// DescribeBands lists every band with its description, or "Band N" when the
// file carries none, so band roles can be picked by number.
func DescribeBands(path string) ([]BandInfo, error) {
	ds, err := open(path)
	if err != nil {
		return nil, err
	}
	defer ds.Close()

	bands := ds.Bands()
	if len(bands) == 0 {
		return nil, fmt.Errorf("%s has no bands", path)
	}
	infos := make([]BandInfo, len(bands))
	for i, band := range bands {
		desc := strings.TrimSpace(band.Description())
		if desc == "" {
			desc = fmt.Sprintf("Band %d", i+1)
		}
		infos[i] = BandInfo{Number: i + 1, Description: desc, DataType: band.Structure().DataType.String()}
	}
	return infos, nil
}

// WriteFractions writes a 3-band Float32 GeoTIFF in PV, NPV, BS order. The
// file only appears at path once every band has been written.
func WriteFractions(path string, fractions *unmix.Raster, ref GeoRef) (err error) {
	register()
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("failed to create output folder: %w", err)
	}
	tmp := path + ".tmp"
	ds, err := godal.Create(godal.GTiff, tmp, len(fractions.Bands), godal.Float32, fractions.Cols, fractions.Rows)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if ref.HasGeoTransform {
		if err := ds.SetGeoTransform(ref.GeoTransform); err != nil {
			ds.Close()
			return fmt.Errorf("failed to set geotransform: %w", err)
		}
	}
	if ref.Projection != "" {
		if err := ds.SetProjection(ref.Projection); err != nil {
			ds.Close()
			return fmt.Errorf("failed to set projection: %w", err)
		}
	}

	buf := make([]float32, fractions.Rows*fractions.Cols)
	for b, band := range ds.Bands() {
		for i, v := range fractions.Bands[b].Data {
			buf[i] = float32(v)
		}
		if err := band.Write(0, 0, buf, fractions.Cols, fractions.Rows); err != nil {
			ds.Close()
			return fmt.Errorf("failed to write band %d: %w", b+1, err)
		}
	}
	if err := ds.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

// UniqueClasses lists the distinct land-cover codes in ascending order.
func UniqueClasses(g spectral.ClassGrid) []int32 {
	seen := make(map[int32]struct{})
	for _, v := range g.Data {
		seen[v] = struct{}{}
	}
	codes := make([]int32, 0, len(seen))
	for v := range seen {
		codes = append(codes, v)
	}
	slices.Sort(codes)
	return codes
}

func readGeoRef(ds *godal.Dataset) GeoRef {
	var ref GeoRef
	if gt, err := ds.GeoTransform(); err == nil {
		ref.GeoTransform, ref.HasGeoTransform = gt, true
	}
	ref.Projection = ds.Projection()
	return ref
}
