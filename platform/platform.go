// Package platform resolves the per-OS directories sarview keeps its
// database, configuration and downloaded products in.
package platform

import (
	"os"
	"path/filepath"

	"github.com/pkg/browser"
)

// AppName names the data and cache directories.
const AppName = "sarview"

// AppDisplayName is used where the OS convention favours a readable name.
const AppDisplayName = "SAR View"

// Version is written into the provenance fields of every output.
const Version = "0.4.0"

// GetDataDir returns the directory holding config.json and the job database.
// Windows: %APPDATA%\SAR View
// Linux: $XDG_DATA_HOME/sarview or ~/.local/share/sarview
// macOS: ~/Library/Application Support/SAR View
func GetDataDir() string {
	return getDataDir()
}

// GetCacheDir returns the directory product archives are downloaded to and
// unpacked in.
func GetCacheDir() string {
	return getCacheDir()
}

// OpenFile opens a rendered image with the default viewer.
func OpenFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	return browser.OpenFile(abs)
}

// UserHomeDir returns the user's home directory, or "." when it is unknown.
func UserHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
