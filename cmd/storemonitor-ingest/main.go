package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chrissnell/storemonitor/internal/constants"
	"github.com/chrissnell/storemonitor/internal/ingest"
	"github.com/chrissnell/storemonitor/internal/log"
	"github.com/chrissnell/storemonitor/internal/managers"
	"github.com/chrissnell/storemonitor/pkg/config"

	_ "time/tzdata"
)

func main() {
	cfgFile := flag.String("config", "config.yaml", "Path to the YAML configuration file")
	dataDir := flag.String("data", ".", "Directory containing store_status.csv, menu_hours.csv and timezones.csv")
	batchSize := flag.Int("batch", 1000, "Number of rows to insert per batch")
	debug := flag.Bool("debug", false, "Turn on debugging output")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("storemonitor-ingest %s\n", constants.Version)
		os.Exit(0)
	}

	filename, _ := filepath.Abs(*cfgFile)
	cfgData, err := config.NewYAMLProvider(filename).LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(log.Options{Debug: *debug || cfgData.Log.Debug}); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfgData, *dataDir, *batchSize); err != nil {
		log.Errorf("Ingestion failed: %v", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfgData *config.ConfigData, dataDir string, batchSize int) error {
	store, err := managers.OpenStore(ctx, cfgData.Storage)
	if err != nil {
		return fmt.Errorf("could not open %s storage backend: %w", cfgData.Storage.Backend, err)
	}
	defer store.Close()

	log.Infof("Connected to %s storage", cfgData.Storage.Backend)

	started := time.Now()
	in := ingest.New(store, batchSize, cfgData.Monitor.DefaultTimezone, log.GetSugaredLogger())

	sum, err := in.LoadDir(ctx, dataDir)
	if err != nil {
		return err
	}

	log.Infow("Ingestion completed successfully",
		"observations", sum.Observations,
		"business_hours", sum.BusinessHours,
		"timezones", sum.Timezones,
		"elapsed", time.Since(started).Round(time.Millisecond).String(),
	)
	return nil
}
