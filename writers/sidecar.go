package writers

import (
	"encoding/json"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// SidecarPath returns the JSON metadata file name that accompanies image.
func SidecarPath(image string) string {
	return strings.TrimSuffix(image, filepath.Ext(image)) + ".json"
}

// Sidecar builds the sidecar document. Keys are lower-cased and values that
// parse as finite numbers are stored as numbers.
func Sidecar(fields map[string]string, gt *[6]float64, projection string) map[string]any {
	doc := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		key := strings.ToLower(k)
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			doc[key] = f
			continue
		}
		doc[key] = v
	}
	if gt != nil {
		doc["geotransform"] = gt[:]
	}
	if projection != "" {
		doc["crs"] = projection
	}
	return doc
}

// WriteSidecar writes the sidecar for image and returns its path.
func WriteSidecar(image string, fields map[string]string, gt *[6]float64, projection string) (string, error) {
	b, err := json.MarshalIndent(Sidecar(fields, gt, projection), "", "  ")
	if err != nil {
		return "", err
	}
	path := SidecarPath(image)
	if err := os.WriteFile(path, append(b, '\n'), 0o644); err != nil {
		return "", err
	}
	log.Printf("Wrote metadata %s", path)
	return path, nil
}
