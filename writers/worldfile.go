package writers

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// WorldFilePath returns the world file name that accompanies image.
func WorldFilePath(image string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(image), "."))
	base := strings.TrimSuffix(image, filepath.Ext(image))
	var wext string
	switch ext {
	case "":
		wext = "wld"
	case "jpg", "jpeg":
		wext = "jgw"
	case "png":
		wext = "pgw"
	case "tif", "tiff":
		wext = "tfw"
	default:
		wext = ext[:1] + "w"
	}
	return base + "." + wext
}

// WorldFile renders gt in world file order. The origin moves from the pixel
// corner to the pixel centre.
func WorldFile(gt [6]float64) string {
	a, b, d, e := gt[1], gt[2], gt[4], gt[5]
	c := gt[0] + 0.5*a + 0.5*b
	f := gt[3] + 0.5*d + 0.5*e
	var sb strings.Builder
	for _, v := range []float64{a, d, b, e, c, f} {
		fmt.Fprintf(&sb, "%.12f\n", v)
	}
	return sb.String()
}

// WriteWorldFile writes the world file for image and returns its path.
func WriteWorldFile(image string, gt [6]float64) (string, error) {
	path := WorldFilePath(image)
	if err := os.WriteFile(path, []byte(WorldFile(gt)), 0o644); err != nil {
		return "", err
	}
	log.Printf("Wrote world file %s", path)
	return path, nil
}

// PRJPath returns the projection file name that accompanies image.
func PRJPath(image string) string {
	return strings.TrimSuffix(image, filepath.Ext(image)) + ".prj"
}

// WritePRJ writes the projection WKT next to image. Nothing is written for an
// empty projection.
func WritePRJ(image, projection string) (string, error) {
	if strings.TrimSpace(projection) == "" {
		return "", nil
	}
	path := PRJPath(image)
	if err := os.WriteFile(path, []byte(projection), 0o644); err != nil {
		return "", err
	}
	return path, nil
}
