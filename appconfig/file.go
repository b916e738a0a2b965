package appconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/stevecastle/sarview/platform"
)

// Dir returns the directory holding config.json. Tests point it elsewhere.
var Dir = platform.GetDataDir

// Path is the config file location.
func Path() string { return filepath.Join(Dir(), "config.json") }

// Load reads config.json, fills missing fields with defaults, validates the
// processing options and makes the result current. A missing file is
// created with defaults. The database directory is created as well.
func Load() (Config, string, error) {
	path := Path()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		c := defaultConfig()
		if err := ensureDBDir(c); err != nil {
			return Config{}, path, err
		}
		if _, err := Save(c); err != nil {
			return Config{}, path, fmt.Errorf("create default config: %w", err)
		}
		return c, path, nil
	}
	if err != nil {
		return Config{}, path, fmt.Errorf("read config %s: %w", path, err)
	}

	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, path, fmt.Errorf("parse config %s: %w", path, err)
	}
	generated := fillDefaults(&c)
	if err := c.Processing.Validate(); err != nil {
		return Config{}, path, fmt.Errorf("invalid processing settings in %s: %w", path, err)
	}
	if err := ensureDBDir(c); err != nil {
		return Config{}, path, err
	}
	if generated {
		if _, err := Save(c); err != nil {
			log.Printf("Warning: failed to save generated config fields: %v", err)
		}
	}
	Set(c)
	return c, path, nil
}

func ensureDBDir(c Config) error {
	dir := filepath.Dir(c.DBPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory %s: %w", dir, err)
	}
	return nil
}

// Save writes c over config.json and makes it current. Keys in the file that
// Config does not know are kept.
func Save(c Config) (string, error) {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return path, fmt.Errorf("create config directory: %w", err)
	}

	onDisk := map[string]any{}
	if data, err := os.ReadFile(path); err == nil {
		// a corrupt file is replaced
		_ = json.Unmarshal(data, &onDisk)
	}
	ours, err := toMap(c)
	if err != nil {
		return path, err
	}
	out, err := json.MarshalIndent(mergeMaps(onDisk, ours), "", "  ")
	if err != nil {
		return path, fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return path, fmt.Errorf("write config: %w", err)
	}
	Set(c)
	return path, nil
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	m := map[string]any{}
	return m, json.Unmarshal(data, &m)
}

// mergeMaps copies src onto dst, descending into objects present in both,
// and returns dst.
func mergeMaps(dst, src map[string]any) map[string]any {
	for k, v := range src {
		sub, srcIsObj := v.(map[string]any)
		existing, dstIsObj := dst[k].(map[string]any)
		if srcIsObj && dstIsObj {
			dst[k] = mergeMaps(existing, sub)
			continue
		}
		dst[k] = v
	}
	return dst
}
