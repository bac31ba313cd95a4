// Command twind builds an in-process twin of an SDN topology discovered
// by a remote producer and keeps it synchronized.
//
// Exit codes: 0 on clean shutdown, 1 when the initial snapshot cannot
// be fetched/validated or setup fails.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"netmirror/internal/config"
	"netmirror/internal/fetch"
	"netmirror/internal/journal"
	"netmirror/internal/status"
	"netmirror/internal/syncer"
	"netmirror/internal/telemetry"
	"netmirror/internal/topo"
	"netmirror/internal/twin"
	"netmirror/internal/twin/emulator"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "config file path (default: search standard locations)")
	producer := flag.String("producer", "", "producer base URL (overrides config)")
	snapshotFile := flag.String("snapshot-file", "", "snapshot file for offline replay (overrides config)")
	enableSync := flag.Bool("sync", false, "enable continuous topology synchronization")
	addr := flag.String("addr", "", "status HTTP listen address (overrides config)")
	interval := flag.Duration("interval", 0, "sync interval (overrides config)")
	flag.Parse()

	log.SetFlags(log.LstdFlags)
	log.Println("Starting twind...")

	cfg, path, err := loadConfig(*configPath)
	if err != nil {
		log.Printf("Config error: %v", err)
		return 1
	}
	if path != "" {
		log.Printf("Config loaded from %s", path)
	}
	if *producer != "" {
		cfg.ProducerURL = *producer
	}
	if *snapshotFile != "" {
		cfg.SnapshotFile = *snapshotFile
	}
	if *addr != "" {
		cfg.StatusAddr = *addr
	}

	// Initial snapshot: the startup path accepts the full blocking
	// retry cost once.
	initial, fetchOnce, fileSource, err := initialSnapshot(cfg)
	if err != nil {
		log.Printf("ERROR: invalid topology data, cannot create twin: %v", err)
		log.Printf("Ensure the producer is running and the network has been discovered")
		return 1
	}

	// Build the twin environment and capture its handles.
	env := emulator.New(initial)
	state := twin.Capture(env, initial)
	reconciler := twin.NewReconciler(env)

	if ok, total := env.PingAll(); total > 0 && ok < total {
		log.Printf("WARNING: only %d/%d host pairs reachable after bring-up", ok, total)
	}
	telemetry.LastAppliedVersion.Set(float64(initial.Version))

	var jnl *journal.Journal
	if cfg.JournalPath != "" {
		jnl, err = journal.Open(cfg.JournalPath)
		if err != nil {
			log.Printf("Failed to open journal: %v", err)
			return 1
		}
		defer jnl.Close()
		log.Printf("Journal opened: %s", cfg.JournalPath)
	}

	loop := syncer.New(fetchOnce, reconciler, state, initial)
	loop.WithInterval(cfg.SyncIntervalDuration())
	if *interval > 0 {
		loop.WithInterval(*interval)
	}
	if jnl != nil {
		loop.WithRecorder(jnl)
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()

	if *enableSync {
		loop.Start()
		if fileSource != nil {
			go func() {
				if err := fileSource.Watch(watchCtx, loop.Trigger); err != nil && watchCtx.Err() == nil {
					log.Printf("Snapshot watcher stopped: %v", err)
				}
			}()
		}
	}

	var server *http.Server
	if cfg.StatusAddr != "" {
		server = &http.Server{
			Addr:         cfg.StatusAddr,
			Handler:      status.NewHandler(loop, jnl).Routes(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Printf("Status server listening on %s", cfg.StatusAddr)
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				log.Printf("Status server error: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	watchCancel()
	loop.Stop()

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Status server shutdown error: %v", err)
		}
	}

	log.Println("Twin stopped")
	return 0
}

func loadConfig(path string) (*config.Config, string, error) {
	if path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// initialSnapshot performs the startup fetch and returns the snapshot
// together with the single-attempt silent fetch the sync loop will use.
func initialSnapshot(cfg *config.Config) (*topo.Snapshot, syncer.FetchFunc, *fetch.FileSource, error) {
	ctx := context.Background()

	if cfg.SnapshotFile != "" {
		source := fetch.NewFileSource(cfg.SnapshotFile)
		snap, err := source.Read()
		if err != nil {
			return nil, nil, nil, err
		}
		log.Printf("Topology loaded from %s (version %d)", cfg.SnapshotFile, snap.Version)
		fetchOnce := func(context.Context) (*topo.Snapshot, error) { return source.Read() }
		return snap, fetchOnce, source, nil
	}

	client := fetch.NewClient(cfg.ProducerURL)
	snap, err := client.Fetch(ctx, fetch.Options{
		MaxRetries: cfg.Startup.MaxRetries,
		RetryDelay: cfg.RetryDelayDuration(),
	})
	if err != nil {
		return nil, nil, nil, err
	}

	fetchOnce := func(ctx context.Context) (*topo.Snapshot, error) {
		return client.Fetch(ctx, fetch.Options{MaxRetries: 1, Silent: true})
	}
	return snap, fetchOnce, nil, nil
}
