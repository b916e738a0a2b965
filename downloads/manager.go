// Package downloads fetches Sentinel-1 product archives over HTTP, unpacks
// them and reports progress on the event stream.
package downloads

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/stevecastle/sarview/stream"
)

type fetchEntry struct {
	progress Progress
	cancel   context.CancelFunc // nil once the fetch returned
}

// Manager runs product fetches and keeps their last progress report.
type Manager struct {
	mu      sync.RWMutex
	fetches map[string]*fetchEntry
}

func NewManager() *Manager {
	return &Manager{fetches: make(map[string]*fetchEntry)}
}

var manager = NewManager()

// GetManager returns the process-wide Manager.
func GetManager() *Manager { return manager }

// Fetch downloads rawURL into workDir, unpacks it and returns the SAFE
// product directory. id, usually the job ID, names the fetch in reports.
func (m *Manager) Fetch(ctx context.Context, id, rawURL, workDir string) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	m.fetches[id] = &fetchEntry{progress: Progress{ID: id, URL: rawURL, Status: StatusPending}, cancel: cancel}
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		if e, ok := m.fetches[id]; ok {
			e.cancel = nil
		}
		m.mu.Unlock()
	}()

	report := func(p Progress) {
		p.ID, p.URL = id, rawURL
		m.set(id, p)
	}
	product, err := download(ctx, rawURL, workDir, report)
	switch {
	case err == nil:
		report(Progress{Status: StatusComplete, Message: "Product ready", Percent: 100, Product: product})
		return product, nil
	case errors.Is(ctx.Err(), context.Canceled):
		report(Progress{Status: StatusCancelled, Message: "Fetch cancelled"})
	default:
		report(Progress{Status: StatusError, Message: "Fetch failed", Error: err.Error()})
	}
	return "", err
}

func download(ctx context.Context, rawURL, workDir string, report ProgressCallback) (string, error) {
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", err
	}
	archive := filepath.Join(workDir, FileName(rawURL))
	meter := newSpeedMeter()
	report(Progress{Status: StatusDownloading, Message: "Starting download..."})

	err := DownloadWithRetry(ctx, archive, rawURL, func(done, total int64) {
		p := Progress{Status: StatusDownloading, BytesDownloaded: done, TotalBytes: total, Speed: meter.observe(done)}
		p.Message = FormatBytes(done)
		if total > 0 {
			p.Percent = 100 * float64(done) / float64(total)
			p.Message = fmt.Sprintf("%s of %s at %s", FormatBytes(done), FormatBytes(total), FormatSpeed(p.Speed))
		}
		report(p)
	})
	if err != nil {
		return "", err
	}
	log.Printf("Downloaded %s", archive)
	return Unpack(archive, ProductDir(workDir, rawURL), report)
}

// ProductDir is the directory the archive at rawURL is unpacked into.
func ProductDir(workDir, rawURL string) string {
	name := FileName(rawURL)
	return filepath.Join(workDir, strings.TrimSuffix(name, filepath.Ext(name)))
}

// Cancel stops a running fetch and reports whether one was running.
func (m *Manager) Cancel(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.fetches[id]
	if !ok || e.cancel == nil {
		return false
	}
	e.cancel()
	return true
}

// List returns every fetch's progress ordered by ID.
func (m *Manager) List() []Progress {
	m.mu.RLock()
	out := make([]Progress, 0, len(m.fetches))
	for _, e := range m.fetches {
		out = append(out, e.progress)
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *Manager) Get(id string) (Progress, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if e, ok := m.fetches[id]; ok {
		return e.progress, true
	}
	return Progress{}, false
}

// Forget drops every fetch that is no longer running.
func (m *Manager) Forget() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, e := range m.fetches {
		if e.cancel == nil {
			delete(m.fetches, id)
		}
	}
}

func (m *Manager) set(id string, p Progress) {
	m.mu.Lock()
	if e, ok := m.fetches[id]; ok {
		e.progress = p
	}
	m.mu.Unlock()
	stream.Publish("fetch-progress", p)
}
