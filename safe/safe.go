// Package safe reads Sentinel-1 GRD products in the SAFE directory layout:
// manifest.safe, annotation/*.xml and one GeoTIFF per polarization under
// measurement/.
package safe

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/stevecastle/sarview/raster"
	"golang.org/x/image/tiff"
)

var (
	// ErrNotProduct is returned when a directory lacks the SAFE layout.
	ErrNotProduct = errors.New("not a SAFE product")
	// ErrUnsupportedProduct is returned for product types other than GRD.
	ErrUnsupportedProduct = errors.New("unsupported product type")
	// ErrMissingPolarization is returned when no measurement exists for a channel.
	ErrMissingPolarization = errors.New("measurement not found for polarization")
)

// Polarizations lists the channel names measurements are matched by, in lookup order.
var Polarizations = []string{"VV", "VH", "HH", "HV"}

// Product is an opened SAFE product. Channels are decoded on first use.
type Product struct {
	Dir          string
	Meta         Metadata
	Measurements map[string]string
	GridPoints   []GridPoint

	mu       sync.Mutex
	channels map[string]raster.ComplexGrid
}

// Name returns the product directory name without the .SAFE suffix.
func (p *Product) Name() string {
	base := filepath.Base(p.Dir)
	return strings.TrimSuffix(strings.TrimSuffix(base, ".SAFE"), ".safe")
}

// IsProduct reports whether dir looks like a SAFE product.
func IsProduct(dir string) bool {
	for _, sub := range []string{"annotation", "measurement"} {
		st, err := os.Stat(filepath.Join(dir, sub))
		if err != nil || !st.IsDir() {
			return false
		}
	}
	return true
}

// Open parses the manifest and annotations of the product in dir and locates
// its measurement files.
func Open(dir string) (*Product, error) {
	if !IsProduct(dir) {
		return nil, fmt.Errorf("%s: %w", dir, ErrNotProduct)
	}
	p := &Product{Dir: dir, channels: map[string]raster.ComplexGrid{}}

	manifest := filepath.Join(dir, "manifest.safe")
	if _, err := os.Stat(manifest); err == nil {
		if err := parseManifest(manifest, &p.Meta); err != nil {
			return nil, err
		}
	}

	annotations, err := filepath.Glob(filepath.Join(dir, "annotation", "*.xml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(annotations)
	for _, path := range annotations {
		a, err := readAnnotation(path)
		if err != nil {
			return nil, err
		}
		a.merge(&p.Meta)
		if len(p.GridPoints) == 0 {
			p.GridPoints = a.Grid
		}
	}

	if t := strings.ToUpper(p.Meta.ProductType); t != "GRD" {
		return nil, fmt.Errorf("%s: %q: %w", p.Name(), p.Meta.ProductType, ErrUnsupportedProduct)
	}

	p.Measurements, err = findMeasurements(filepath.Join(dir, "measurement"), p.Meta.Polarizations)
	if err != nil {
		return nil, err
	}
	log.Printf("Opened %s: %s %s, polarizations %v", p.Name(), p.Meta.Mission, p.Meta.ProductType, p.Available())
	return p, nil
}

func isTIFF(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".tif" || ext == ".tiff"
}

// findMeasurements maps polarization names to measurement files. Files are
// matched by the polarization in their name; warped intermediates are
// skipped. A single unnamed TIFF is attributed to the first listed
// polarization.
func findMeasurements(dir string, listed []string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	found := map[string]string{}
	var unnamed []string
	for _, e := range entries {
		name := strings.ToLower(e.Name())
		if e.IsDir() || !isTIFF(name) || strings.Contains(name, "_warped.") {
			continue
		}
		matched := false
		for _, pol := range Polarizations {
			if strings.Contains(name, strings.ToLower(pol)) {
				if _, dup := found[pol]; !dup {
					found[pol] = filepath.Join(dir, e.Name())
				}
				matched = true
				break
			}
		}
		if !matched {
			unnamed = append(unnamed, filepath.Join(dir, e.Name()))
		}
	}
	if len(found) == 0 && len(unnamed) > 0 && len(listed) > 0 {
		found[strings.ToUpper(listed[0])] = unnamed[0]
	}
	return found, nil
}

// Available lists the polarizations that have a measurement file.
func (p *Product) Available() []string {
	var out []string
	for _, pol := range Polarizations {
		if _, ok := p.Measurements[pol]; ok {
			out = append(out, pol)
		}
	}
	return out
}

// Has reports whether pol has a measurement file.
func (p *Product) Has(pol string) bool {
	_, ok := p.Measurements[strings.ToUpper(pol)]
	return ok
}

// Channel returns the samples of one polarization as a real-valued complex grid.
func (p *Product) Channel(pol string) (raster.ComplexGrid, error) {
	pol = strings.ToUpper(pol)
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.channels[pol]; ok {
		return g, nil
	}
	path, ok := p.Measurements[pol]
	if !ok {
		return raster.ComplexGrid{}, fmt.Errorf("%s %s: %w", p.Name(), pol, ErrMissingPolarization)
	}
	g, err := ReadMeasurement(path)
	if err != nil {
		return raster.ComplexGrid{}, err
	}
	p.channels[pol] = g
	return g, nil
}

// GeoTransform fits a geotransform to the geolocation grid. ok is false when
// the product carries too few tie points.
func (p *Product) GeoTransform() (gt [6]float64, projection string, ok bool) {
	gt, err := FitGeoTransform(p.GridPoints)
	if err != nil {
		log.Printf("No geotransform for %s: %v", p.Name(), err)
		return [6]float64{0, 1, 0, 0, 0, 1}, "", false
	}
	return gt, WGS84, true
}

// ReadMeasurement decodes a single-band TIFF into real-valued complex samples.
func ReadMeasurement(path string) (raster.ComplexGrid, error) {
	f, err := os.Open(path)
	if err != nil {
		return raster.ComplexGrid{}, err
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		return raster.ComplexGrid{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return gridFromImage(img), nil
}

func gridFromImage(img image.Image) raster.ComplexGrid {
	b := img.Bounds()
	g := raster.NewComplexGrid(b.Dy(), b.Dx())
	switch src := img.(type) {
	case *image.Gray16:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				g.Data[y*b.Dx()+x] = complex(float64(src.Gray16At(b.Min.X+x, b.Min.Y+y).Y), 0)
			}
		}
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				g.Data[y*b.Dx()+x] = complex(float64(src.GrayAt(b.Min.X+x, b.Min.Y+y).Y), 0)
			}
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				v := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
				g.Data[y*b.Dx()+x] = complex(float64(v.Y), 0)
			}
		}
	}
	return g
}

// Find returns every SAFE product directory directly under root or nested
// below it, sorted by path. Product directories are not descended into.
func Find(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if IsProduct(path) {
			out = append(out, path)
			return filepath.SkipDir
		}
		return nil
	})
	sort.Strings(out)
	return out, err
}
