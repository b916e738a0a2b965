// Package appconfig holds sarview's settings: storage paths, rendering
// defaults, batch behaviour and the S3 publishing target. One Config lives
// in memory; Load and Save keep it in sync with config.json.
package appconfig

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/stevecastle/sarview/autoscale"
	"github.com/stevecastle/sarview/pipeline"
	"github.com/stevecastle/sarview/platform"
	"github.com/stevecastle/sarview/raster"
	"github.com/stevecastle/sarview/synrgb"
	"github.com/stevecastle/sarview/writers"
)

// Processing holds the default rendering options applied to conversions.
// Values use the same names as the command-line flags.
type Processing struct {
	Format       string `json:"format"`
	BitDepth     string `json:"bitDepth"`
	Strategy     string `json:"strategy"`
	Size         string `json:"size"`
	Pad          bool   `json:"pad"`
	Mode         string `json:"mode"`
	Polarization string `json:"polarization"`
	ReportChart  bool   `json:"reportChart"`
	Sidecar      bool   `json:"sidecar"`
}

type Batch struct {
	Concurrency     int  `json:"concurrency"`
	ContinueOnError bool `json:"continueOnError"`
}

// S3 is the publishing target. Empty credentials fall back to the default
// AWS chain.
type S3 struct {
	Bucket          string `json:"bucket"`
	Prefix          string `json:"prefix"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint"`
	AccessKeyID     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	UsePathStyle    bool   `json:"usePathStyle"`
}

type Config struct {
	DBPath     string `json:"dbPath"`
	OutputPath string `json:"outputPath"` // converted scenes
	WorkPath   string `json:"workPath"`   // fetched archives and unpacked products
	ListenAddr string `json:"listenAddr"`

	Processing Processing `json:"processing"`
	Batch      Batch      `json:"batch"`
	S3         S3         `json:"s3"`

	JWTSecret string `json:"jwtSecret"`
}

var (
	mu      sync.RWMutex
	current Config
)

// Get returns a copy of the in-memory config.
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Set replaces the in-memory config without saving it.
func Set(c Config) {
	mu.Lock()
	defer mu.Unlock()
	current = c
}

func defaultOutputPath() string {
	return filepath.Join(platform.UserHomeDir(), platform.AppName)
}

// DefaultDBPath is sarview.db in the platform data directory.
func DefaultDBPath() string {
	return filepath.Join(platform.GetDataDir(), "sarview.db")
}

// DefaultProcessing renders 8-bit CLAHE GeoTIFFs of the VV/VH pair at source
// size.
func DefaultProcessing() Processing {
	return Processing{
		Format:       "tiff",
		BitDepth:     "8",
		Strategy:     "clahe",
		Size:         "original",
		Mode:         "default",
		Polarization: "multiband",
		Sidecar:      true,
	}
}

func defaultConfig() Config {
	return Config{
		DBPath:     DefaultDBPath(),
		OutputPath: defaultOutputPath(),
		WorkPath:   platform.GetCacheDir(),
		ListenAddr: "127.0.0.1:8090",
		Processing: DefaultProcessing(),
		Batch:      Batch{Concurrency: 2, ContinueOnError: true},
		S3:         S3{Region: "us-east-1"},
		JWTSecret:  uuid.NewString(),
	}
}

// fillDefaults sets every empty field from the defaults. It reports whether
// a field that must stay stable across restarts was generated.
func fillDefaults(c *Config) (generated bool) {
	def := defaultConfig()
	for _, f := range []struct{ v, d *string }{
		{&c.OutputPath, &def.OutputPath},
		{&c.WorkPath, &def.WorkPath},
		{&c.ListenAddr, &def.ListenAddr},
		{&c.Processing.Format, &def.Processing.Format},
		{&c.Processing.BitDepth, &def.Processing.BitDepth},
		{&c.Processing.Strategy, &def.Processing.Strategy},
		{&c.Processing.Size, &def.Processing.Size},
		{&c.Processing.Mode, &def.Processing.Mode},
		{&c.Processing.Polarization, &def.Processing.Polarization},
		{&c.S3.Region, &def.S3.Region},
	} {
		if *f.v == "" {
			*f.v = *f.d
		}
	}
	if c.Batch.Concurrency <= 0 {
		c.Batch.Concurrency = def.Batch.Concurrency
	}
	if c.DBPath == "" {
		c.DBPath, generated = def.DBPath, true
	}
	if c.JWTSecret == "" {
		c.JWTSecret, generated = def.JWTSecret, true
	}
	return generated
}

// ParseSize accepts "original" (or empty) for the source size, or a positive
// long-side length in pixels.
func ParseSize(s string) (int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "original" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid size %q: want \"original\" or a positive pixel count", s)
	}
	return n, nil
}

// Validate checks every option name.
func (p Processing) Validate() error {
	checks := []func() error{
		func() error { _, err := writers.ParseFormat(p.Format); return err },
		func() error { _, err := raster.ParseBitDepth(p.BitDepth); return err },
		func() error { _, err := autoscale.ParseStrategy(p.Strategy); return err },
		func() error { _, err := ParseSize(p.Size); return err },
		func() error { _, err := synrgb.ParseMode(p.Mode); return err },
		func() error { _, err := pipeline.ParsePolarization(p.Polarization); return err },
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}
