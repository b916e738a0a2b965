// Command sarview-server runs the conversion job server: a persistent job
// queue with runners, the scenes catalog and a JSON API with an event stream.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/browser"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/stevecastle/sarview/appconfig"
	"github.com/stevecastle/sarview/auth"
	"github.com/stevecastle/sarview/catalog"
	"github.com/stevecastle/sarview/jobqueue"
	"github.com/stevecastle/sarview/runners"
	"github.com/stevecastle/sarview/stream"
)

// Dependencies are shared by every handler.
type Dependencies struct {
	Queue *jobqueue.Queue
	DB    *sql.DB
	Auth  *auth.Service
}

// openDB opens the sqlite database at path and creates the catalog schema.
func openDB(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout=5000&_pragma=journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := catalog.EnsureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// newDependencies opens the auth service, with its default admin user, and
// the job queue on db.
func newDependencies(db *sql.DB, cfg appconfig.Config) (*Dependencies, error) {
	authSvc := auth.NewService(db, cfg.JWTSecret)
	if err := authSvc.EnsureSchema(); err != nil {
		return nil, err
	}
	queue := jobqueue.NewQueueWithDB(db)
	log.Printf("Job queue restored with %d jobs", len(queue.GetJobs()))
	return &Dependencies{Queue: queue, DB: db, Auth: authSvc}, nil
}

func main() {
	addr := flag.String("addr", "", "listen address (default from config)")
	open := flag.Bool("open", false, "open the API health page in a browser once listening")
	flag.Parse()

	cfg, cfgPath, err := appconfig.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Printf("Loaded config from %s", cfgPath)
	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	db, err := openDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()
	log.Printf("Using database %s", cfg.DBPath)

	deps, err := newDependencies(db, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := serve(ctx, cfg.ListenAddr, deps, *open); err != nil {
		log.Printf("sarview-server: %v", err)
	}
}

// serve runs the API and the job runners until ctx is done or the listener
// fails, then shuts everything down in order.
func serve(ctx context.Context, addr string, deps *Dependencies, open bool) error {
	workers := runners.New(deps.Queue)
	srv := &http.Server{
		Addr:              addr,
		Handler:           newServer(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("Listening on %s", addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutting down...")
		workers.Shutdown()
		stream.Shutdown()
		if err := deps.Queue.SaveAllJobsToDB(); err != nil {
			log.Printf("Error saving jobs: %v", err)
		}
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if open {
		if err := browser.OpenURL("http://" + localAddr(addr) + "/health"); err != nil {
			log.Printf("Could not open browser: %v", err)
		}
	}

	err := g.Wait()
	log.Println("sarview server stopped")
	return err
}

// localAddr turns a listen address such as ":8090" into a dialable host:port.
func localAddr(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "localhost" + listen
	}
	return listen
}
