// Package catalog records converted scenes in the sqlite database so the
// server can list what has been produced and where it was written.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Scene is one row of the scenes table.
type Scene struct {
	Product          string    `json:"product"`
	Source           string    `json:"source"`
	Output           string    `json:"output"`
	Files            []string  `json:"files"`
	Label            string    `json:"label"`
	Platform         string    `json:"platform,omitempty"`
	AcquisitionStart string    `json:"acquisition_start,omitempty"`
	Strategy         string    `json:"strategy"`
	Format           string    `json:"format"`
	Cols             int       `json:"cols"`
	Rows             int       `json:"rows"`
	ConvertedAt      time.Time `json:"converted_at"`
	// Exists is true when the output file is still on disk. It is not stored.
	Exists bool `json:"exists"`
}

const schema = `
CREATE TABLE IF NOT EXISTS scenes (
	product TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	output TEXT NOT NULL,
	files TEXT, -- JSON array
	label TEXT,
	platform TEXT,
	acquisition_start TEXT,
	strategy TEXT,
	format TEXT,
	cols INTEGER,
	rows INTEGER,
	converted_at DATETIME NOT NULL
)`

// EnsureSchema creates the scenes table if it does not exist.
func EnsureSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create scenes table: %w", err)
	}
	return nil
}

// Record inserts or replaces the row for s.Product.
func Record(ctx context.Context, db *sql.DB, s Scene) error {
	files, err := json.Marshal(s.Files)
	if err != nil {
		return err
	}
	if s.ConvertedAt.IsZero() {
		s.ConvertedAt = time.Now()
	}
	_, err = db.ExecContext(ctx, `
		INSERT INTO scenes (product, source, output, files, label, platform, acquisition_start, strategy, format, cols, rows, converted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(product) DO UPDATE SET
			source = excluded.source, output = excluded.output, files = excluded.files,
			label = excluded.label, platform = excluded.platform, acquisition_start = excluded.acquisition_start,
			strategy = excluded.strategy, format = excluded.format, cols = excluded.cols, rows = excluded.rows,
			converted_at = excluded.converted_at`,
		s.Product, s.Source, s.Output, string(files), s.Label, s.Platform, s.AcquisitionStart,
		s.Strategy, s.Format, s.Cols, s.Rows, s.ConvertedAt.UTC())
	if err != nil {
		return fmt.Errorf("record scene %s: %w", s.Product, err)
	}
	return nil
}

const selectColumns = `SELECT product, source, output, files, label, platform, acquisition_start, strategy, format, cols, rows, converted_at FROM scenes`

type scanner interface {
	Scan(dest ...any) error
}

func scanScene(r scanner) (Scene, error) {
	var s Scene
	var files, label, platform, start, strategy, format sql.NullString
	var cols, rows sql.NullInt64
	err := r.Scan(&s.Product, &s.Source, &s.Output, &files, &label, &platform, &start, &strategy, &format, &cols, &rows, &s.ConvertedAt)
	if err != nil {
		return Scene{}, err
	}
	if files.Valid && files.String != "" {
		if err := json.Unmarshal([]byte(files.String), &s.Files); err != nil {
			return Scene{}, fmt.Errorf("scene %s files: %w", s.Product, err)
		}
	}
	s.Label, s.Platform, s.AcquisitionStart = label.String, platform.String, start.String
	s.Strategy, s.Format = strategy.String, format.String
	s.Cols, s.Rows = int(cols.Int64), int(rows.Int64)
	return s, nil
}

// Get fetches one scene. It returns nil without error when the product is unknown.
func Get(db *sql.DB, product string) (*Scene, error) {
	s, err := scanScene(db.QueryRow(selectColumns+` WHERE product = ?`, product))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	s.Exists = CheckFileExists(s.Output)
	return &s, nil
}

// escapeLikePattern escapes special LIKE characters so that user input is treated
// as a literal substring. It escapes %, _ and the escape character itself (\).
func escapeLikePattern(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// List returns up to limit scenes ordered by newest conversion first. search
// matches product, label or platform as a substring. The boolean reports
// whether more rows follow.
func List(db *sql.DB, offset, limit int, search string) ([]Scene, bool, error) {
	query := selectColumns
	var args []any
	if search = strings.TrimSpace(search); search != "" {
		p := "%" + escapeLikePattern(search) + "%"
		query += ` WHERE product LIKE ? ESCAPE '\' OR label LIKE ? ESCAPE '\' OR platform LIKE ? ESCAPE '\'`
		args = append(args, p, p, p)
	}
	query += ` ORDER BY converted_at DESC, product LIMIT ? OFFSET ?`
	args = append(args, limit+1, offset)

	rows, err := db.Query(query, args...) // one extra row tells whether there are more
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	var scenes []Scene
	var outputs []string
	for rows.Next() {
		s, err := scanScene(rows)
		if err != nil {
			return nil, false, err
		}
		scenes = append(scenes, s)
		outputs = append(outputs, s.Output)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}

	hasMore := len(scenes) > limit
	if hasMore {
		scenes = scenes[:limit]
		outputs = outputs[:limit]
	}
	exists := CheckFilesExistConcurrent(outputs)
	for i := range scenes {
		scenes[i].Exists = exists[scenes[i].Output]
	}
	return scenes, hasMore, nil
}

// Remove deletes the row for product. Output files are left on disk.
func Remove(ctx context.Context, db *sql.DB, product string) (bool, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM scenes WHERE product = ?`, product)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CheckFileExists checks if a file exists at the given path.
func CheckFileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// CheckFilesExistConcurrent checks file existence for multiple paths concurrently.
func CheckFilesExistConcurrent(paths []string) map[string]bool {
	out := make(map[string]bool, len(paths))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, p := range paths {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			ok := CheckFileExists(p)
			mu.Lock()
			out[p] = ok
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	return out
}

// Prune removes scenes whose output file no longer exists and returns the
// products removed. progress, when not nil, is called after each removal.
func Prune(ctx context.Context, db *sql.DB, progress func(removed int)) ([]string, error) {
	rows, err := db.QueryContext(ctx, `SELECT product, output FROM scenes`)
	if err != nil {
		return nil, err
	}
	outputs := map[string]string{}
	var paths []string
	for rows.Next() {
		var product, output string
		if err := rows.Scan(&product, &output); err != nil {
			rows.Close()
			return nil, err
		}
		outputs[product] = output
		paths = append(paths, output)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	exists := CheckFilesExistConcurrent(paths)
	var removed []string
	for product, output := range outputs {
		if exists[output] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if _, err := Remove(ctx, db, product); err != nil {
			return removed, fmt.Errorf("remove %s: %w", product, err)
		}
		removed = append(removed, product)
		if progress != nil {
			progress(len(removed))
		}
	}
	sort.Strings(removed)
	return removed, nil
}
