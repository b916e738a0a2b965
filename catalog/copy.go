package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Conflict names an sqlite conflict resolution for Copy.
type Conflict string

const (
	ConflictIgnore   Conflict = "IGNORE"
	ConflictAbort    Conflict = "ABORT"
	ConflictReplace  Conflict = "REPLACE"
	ConflictRollback Conflict = "ROLLBACK"
	ConflictFail     Conflict = "FAIL"
)

// ParseConflict accepts a conflict name in any case.
func ParseConflict(s string) (Conflict, error) {
	c := Conflict(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case ConflictIgnore, ConflictAbort, ConflictReplace, ConflictRollback, ConflictFail:
		return c, nil
	}
	return "", fmt.Errorf("invalid conflict %q; use ignore|abort|replace|rollback|fail", s)
}

const matchClause = ` WHERE product LIKE ? ESCAPE '\' OR platform LIKE ? ESCAPE '\'`

// CountMatching returns the number of scenes whose product or platform
// contains search. An empty search matches every scene.
func CountMatching(ctx context.Context, db *sql.DB, search string) (int, error) {
	p := "%" + escapeLikePattern(search) + "%"
	var n int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scenes`+matchClause, p, p).Scan(&n)
	return n, err
}

// Copy copies the matching scenes of db into the database file at destPath,
// creating its scenes table when missing, and returns the rows inserted.
// db must be limited to one open connection so the attachment stays visible.
func Copy(ctx context.Context, db *sql.DB, destPath, search string, conflict Conflict) (int64, error) {
	if _, err := ParseConflict(string(conflict)); err != nil {
		return 0, err
	}
	if _, err := db.ExecContext(ctx, `ATTACH DATABASE ? AS dest`, destPath); err != nil {
		return 0, fmt.Errorf("attach dest: %w", err)
	}
	defer db.ExecContext(context.Background(), `DETACH DATABASE dest`)

	destSchema := strings.Replace(schema, "EXISTS scenes", "EXISTS dest.scenes", 1)
	if _, err := db.ExecContext(ctx, destSchema); err != nil {
		return 0, fmt.Errorf("create dest.scenes: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	p := "%" + escapeLikePattern(search) + "%"
	res, err := tx.ExecContext(ctx, fmt.Sprintf(
		`INSERT OR %s INTO dest.scenes SELECT * FROM main.scenes`+matchClause, conflict), p, p)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("insert: %w", err)
	}
	affected, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return affected, nil
}
