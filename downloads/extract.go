package downloads

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/stevecastle/sarview/safe"
)

var (
	ErrUnsupportedArchive = errors.New("unsupported archive type")
	ErrNoProduct          = errors.New("archive contains no SAFE product")
	// ErrUnsafePath is returned for entries that would land outside the
	// destination directory.
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

// archiveEntry is the part of zip.File and sevenzip.File extraction needs.
type archiveEntry struct {
	name string
	info fs.FileInfo
	open func() (io.ReadCloser, error)
}

// safeJoin joins an archive entry name onto destDir, rejecting absolute
// names and names that climb out of it.
func safeJoin(destDir, name string) (string, error) {
	name = filepath.FromSlash(name)
	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", fmt.Errorf("%s: %w", name, ErrUnsafePath)
	}
	p := filepath.Join(destDir, name)
	rel, err := filepath.Rel(destDir, p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", name, ErrUnsafePath)
	}
	return p, nil
}

func writeEntry(e archiveEntry, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	rc, err := e.open()
	if err != nil {
		return fmt.Errorf("open %s in archive: %w", e.name, err)
	}
	defer rc.Close()
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", e.name, err)
	}
	return out.Close()
}

// extract writes entries under destDir, reporting every tenth entry.
func extract(entries []archiveEntry, destDir string, report ProgressCallback) error {
	for i, e := range entries {
		if report != nil && i%10 == 0 {
			report(Progress{
				Status:  StatusExtracting,
				Message: fmt.Sprintf("Extracting %d/%d files...", i+1, len(entries)),
				Percent: 100 * float64(i) / float64(len(entries)),
			})
		}
		dest, err := safeJoin(destDir, e.name)
		if err != nil {
			return err
		}
		if e.info.IsDir() {
			err = os.MkdirAll(dest, 0o755)
		} else {
			err = writeEntry(e, dest)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func extractZip(archivePath, destDir string, report ProgressCallback) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip archive: %w", err)
	}
	defer r.Close()
	entries := make([]archiveEntry, len(r.File))
	for i, f := range r.File {
		entries[i] = archiveEntry{name: f.Name, info: f.FileInfo(), open: f.Open}
	}
	return extract(entries, destDir, report)
}

func extract7z(archivePath, destDir string, report ProgressCallback) error {
	r, err := sevenzip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open 7z archive: %w", err)
	}
	defer r.Close()
	entries := make([]archiveEntry, len(r.File))
	for i, f := range r.File {
		entries[i] = archiveEntry{name: f.Name, info: f.FileInfo(), open: f.Open}
	}
	return extract(entries, destDir, report)
}

// Unpack extracts a zip or 7z product archive into destDir and returns the
// SAFE directory inside it. A SAFE directory is returned unchanged.
func Unpack(archivePath, destDir string, report ProgressCallback) (string, error) {
	if safe.IsProduct(archivePath) {
		return archivePath, nil
	}
	var err error
	switch strings.ToLower(filepath.Ext(archivePath)) {
	case ".zip":
		err = extractZip(archivePath, destDir, report)
	case ".7z":
		err = extract7z(archivePath, destDir, report)
	default:
		return "", fmt.Errorf("%s: %w", filepath.Base(archivePath), ErrUnsupportedArchive)
	}
	if err != nil {
		return "", err
	}
	products, err := safe.Find(destDir)
	if err != nil {
		return "", err
	}
	if len(products) == 0 {
		return "", fmt.Errorf("%s: %w", filepath.Base(archivePath), ErrNoProduct)
	}
	return products[0], nil
}
