// Command catalogcopy copies processed-scene catalog rows from one sarview
// database into another.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	_ "modernc.org/sqlite"

	"github.com/stevecastle/sarview/catalog"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// openSource opens the source catalog on a single connection, which Copy
// needs for its ATTACH.
func openSource(ctx context.Context, path string) (*sql.DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("catalogcopy", flag.ContinueOnError)
	fs.SetOutput(stderr)
	src := fs.String("source", "", "source database")
	dst := fs.String("dest", "", "destination database, created if missing")
	match := fs.String("match", "", "copy only scenes whose product or platform contains this text")
	onConflict := fs.String("on-conflict", "ignore", "when a product already exists: ignore|abort|replace|rollback|fail")
	dryRun := fs.Bool("dry-run", false, "count matching scenes without writing")
	verbose := fs.Bool("v", false, "verbose logging")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: catalogcopy -source src.db -dest dest.db [flags]")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *src == "" || *dst == "" {
		fs.Usage()
		return 2
	}
	conflict, err := catalog.ParseConflict(*onConflict)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	logger := log.New(io.Discard, "", log.LstdFlags)
	if *verbose || *dryRun {
		logger.SetOutput(stderr)
	}

	db, err := openSource(ctx, *src)
	if err != nil {
		fmt.Fprintf(stderr, "open source: %v\n", err)
		return 1
	}
	defer db.Close()

	n, err := catalog.CountMatching(ctx, db, *match)
	if err != nil {
		fmt.Fprintf(stderr, "count scenes: %v\n", err)
		return 1
	}
	logger.Printf("%d scene(s) in %s match %q", n, *src, *match)
	if *dryRun {
		fmt.Fprintf(stdout, "Would copy up to %d scene(s).\n", n)
		return 0
	}

	copied, err := catalog.Copy(ctx, db, *dst, *match, conflict)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	logger.Printf("on conflict %s", conflict)
	fmt.Fprintf(stdout, "Copied %d scene(s) into %s.\n", copied, *dst)
	return 0
}
