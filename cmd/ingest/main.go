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
)

var (
	jsonDir = flag.StringP("dir", "d", "", "Directory of *.json documents (overrides JSON_DIR)")
	keep    = flag.Bool("keep", false, "Don't clear the collection before loading")
	strict  = flag.Bool("strict", false, "Exit non-zero when any file was skipped")
)

func init() {
	// .env is optional
	_ = godotenv.Load()
}

func main() {
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
		log.Fatal().Err(err).Msg("mongo connect failed")
	}

	sum, err := ingest.RunAll(ctx, cfg, mc, os.Stdout, log)
	mc.Close(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("ingest failed")
	}
	for _, fe := range sum.Failed {
		log.Warn().Str("file", fe.Name).Err(fe.Err).Msg("skipped")
	}
	log.Info().Int("loaded", sum.Loaded).Int("skipped", len(sum.Failed)).
		Strs("duplicates", sum.Duplicates).Msg("ingest done")
	if *strict && len(sum.Failed) > 0 {
		os.Exit(2)
	}
}
