package main

import (
	"context"
	"os"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"

	"VisionTag/internal/config"
	"VisionTag/internal/logger"
	mdb "VisionTag/internal/mongo"
	"VisionTag/internal/report"
)

var only = flag.IntSliceP("query", "q", nil, "Run only these query ids")

func init() {
	_ = godotenv.Load()
}

func main() {
	flag.Parse()
	cfg := config.Load()
	log := logger.WithLevel(logger.New(), cfg.LogLevel)
	ctx := context.Background()

	mc, err := mdb.NewClient(ctx, cfg.MongoURI, cfg.MongoDB, cfg.ConnectTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect failed")
	}

	err = report.NewRunner(mc.Tagged(cfg.Collection), log).
		Run(ctx, os.Stdout, report.Select(report.Queries(), *only))
	mc.Close(ctx)
	if err != nil {
		log.Error().Err(err).Msg("report finished with failed queries")
		os.Exit(1)
	}
}
