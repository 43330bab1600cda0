// @title           VisionTag API
// @version         1.0
// @description     Read-only access to the analytical queries over vision-tagged images.
// @BasePath        /
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"VisionTag/internal/config"
	_ "VisionTag/internal/docs"
	httpx "VisionTag/internal/httpx"
	"VisionTag/internal/ingest"
	"VisionTag/internal/logger"
	mdb "VisionTag/internal/mongo"
	"VisionTag/internal/report"
)

func init() {
	_ = godotenv.Load()
}

func main() {
	cfg := config.Load()
	log := logger.WithLevel(logger.New(), cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mc, err := mdb.NewClient(ctx, cfg.MongoURI, cfg.MongoDB, cfg.ConnectTimeout)
	if err != nil {
		log.Fatal().Err(err).Msg("mongo connect failed")
	}
	defer mc.Close(context.Background())

	if cfg.ReloadSchedule != "" {
		var mu sync.Mutex
		c := cron.New()
		_, err = c.AddFunc(cfg.ReloadSchedule, func() {
			if !mu.TryLock() {
				log.Warn().Msg("reload still running, skipping tick")
				return
			}
			defer mu.Unlock()
			sum, err := ingest.RunAll(ctx, cfg, mc, os.Stderr, log)
			if err != nil {
				log.Error().Err(err).Msg("reload failed")
				return
			}
			log.Info().Str("run_id", sum.RunID).Int64("count", sum.Count).Msg("reload completed")
		})
		if err != nil {
			log.Fatal().Err(err).Str("schedule", cfg.ReloadSchedule).Msg("bad reload schedule")
		}
		c.Start()
		defer c.Stop()
	}

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: httpx.NewRouter(httpx.Deps{
			MC:      mc,
			Cfg:     cfg,
			Runner:  report.NewRunner(mc.Tagged(cfg.Collection), log),
			Queries: report.Queries(),
			Log:     log,
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	log.Info().Str("port", cfg.Port).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
}
