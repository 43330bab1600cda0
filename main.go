package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"VisionTag/internal/config"
	"VisionTag/internal/ingest"
	"VisionTag/internal/logger"
	mdb "VisionTag/internal/mongo"
	"VisionTag/internal/report"
)

var (
	jsonDir = flag.StringP("dir", "d", "", "Directory of *.json documents (overrides JSON_DIR)")
	keep    = flag.Bool("keep", false, "Don't clear the collection before loading")
	noLoad  = flag.Bool("no-load", false, "Skip loading and only run the queries")
	only    = flag.IntSliceP("query", "q", nil, "Run only these query ids")
)

func init() {
	_ = godotenv.Load() // .env
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()
	cfg := config.Load()
	if *jsonDir != "" {
		cfg.JSONDir = *jsonDir
	}
	if *keep {
		cfg.ClearDB = false
	}
	log := logger.WithLevel(logger.New(), cfg.LogLevel)
	ctx := context.Background()

	mc, err := mdb.NewClient(ctx, cfg.MongoURI, cfg.MongoDB, cfg.ConnectTimeout)
	if err != nil {
		log.Error().Err(err).Msg("mongo connect failed")
		return 1
	}
	defer mc.Close(ctx)

	if !*noLoad {
		if _, err := ingest.RunAll(ctx, cfg, mc, os.Stdout, log); err != nil {
			log.Error().Err(err).Msg("load failed")
			return 1
		}
	}

	rn := report.NewRunner(mc.Tagged(cfg.Collection), log)
	if err := rn.Run(ctx, os.Stdout, report.Select(report.Queries(), *only)); err != nil {
		log.Error().Err(err).Msg("report finished with failed queries")
		return 1
	}
	return 0
}
