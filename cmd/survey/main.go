package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/banshee-data/sonar.survey/internal/config"
	"github.com/banshee-data/sonar.survey/internal/db"
	"github.com/banshee-data/sonar.survey/internal/fsutil"
	"github.com/banshee-data/sonar.survey/internal/survey/export"
	"github.com/banshee-data/sonar.survey/internal/survey/pipeline"
	"github.com/banshee-data/sonar.survey/internal/survey/projection"
	"github.com/banshee-data/sonar.survey/internal/version"
)

type options struct {
	configPath string
	dbPath     string
	ascPath    string
	startTime  string
	workers    int
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	var opts options
	flag.StringVar(&opts.configPath, "config", getEnv("SURVEY_CONFIG", ""), "path to survey config (.json, .yaml or .yml)")
	flag.StringVar(&opts.dbPath, "db", getEnv("SURVEY_DB", ""), "sqlite database for run results (overrides output.db_path)")
	flag.StringVar(&opts.ascPath, "asc", "", "ASC point export path (overrides output.asc_path)")
	flag.StringVar(&opts.startTime, "start", "", "survey start time in seconds (overrides start_time)")
	flag.IntVar(&opts.workers, "workers", 0, "parallel geolocation workers (overrides geolocation.workers)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := run(ctx, opts, fsutil.OSFileSystem{})
	if err != nil {
		log.Fatalf("survey failed: %v", err)
	}

	s := res.Summary
	fmt.Printf("run %s: %d lines, %d points, zones %v\n", res.RunID, s.Lines, s.Points, s.Zones)
	if s.Points > 0 {
		fmt.Printf("altitude min %.3f max %.3f mean %.3f stddev %.3f\n",
			s.MinAltitude, s.MaxAltitude, s.MeanAltitude, s.StdDevAltitude)
	}
	if len(res.RangeErrors) > 0 || res.NotFused > 0 {
		fmt.Printf("dropped %d detections with invalid range, %d unfused lines\n", len(res.RangeErrors), res.NotFused)
	}
}

// loadConfig reads the config file when one is given and applies flag
// overrides on top.
func loadConfig(opts options) (*config.SurveyConfig, error) {
	cfg := config.EmptySurveyConfig()
	if opts.configPath != "" {
		loaded, err := config.LoadSurveyConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.dbPath != "" {
		cfg.SetDBPath(opts.dbPath)
	}
	if opts.ascPath != "" {
		cfg.SetASCPath(opts.ascPath)
	}
	if opts.startTime != "" {
		cfg.SetStartTime(opts.startTime)
	}
	if opts.workers > 0 {
		cfg.SetWorkers(opts.workers)
	}
	return cfg, cfg.Validate()
}

func run(ctx context.Context, opts options, filesystem fsutil.FileSystem) (*pipeline.Result, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	var sinks []pipeline.Sink
	if path := cfg.GetDBPath(); path != "" {
		store, err := db.OpenDB(path)
		if err != nil {
			return nil, fmt.Errorf("open db: %w", err)
		}
		defer store.Close()
		sinks = append(sinks, store.Sink())
	}
	if path := cfg.GetASCPath(); path != "" {
		sinks = append(sinks, export.NewASCWriter(filesystem, path))
	}

	runner := pipeline.NewRunner(filesystem, projection.NewUTM(projection.NewZoneCache()), sinks...)
	return runner.Run(ctx, cfg)
}
