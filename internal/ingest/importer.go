package ingest

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"VisionTag/internal/config"
	"VisionTag/internal/logger"
	mdb "VisionTag/internal/mongo"
)

// RunAll loads the configured source into the tagged collection.
func RunAll(ctx context.Context, cfg config.Config, mc *mdb.Client, out io.Writer, log zerolog.Logger) (*Summary, error) {
	src, where, err := SourceFor(cfg)
	if err != nil {
		return nil, err
	}
	log = logger.WithFields(log, map[string]interface{}{
		"source":     where,
		"collection": cfg.Collection,
	})
	log.Info().Bool("clear", cfg.ClearDB).Msg("ingest start")

	l := NewLoader(src, mc.Tagged(cfg.Collection), Options{
		ClearDB:   cfg.ClearDB,
		BatchSize: cfg.BatchSize,
		Out:       out,
	}, log)
	return l.Run(ctx)
}
