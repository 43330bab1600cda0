package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"VisionTag/internal/metrics"
	mdb "VisionTag/internal/mongo"
)

// Store is the part of the tagged collection the loader writes to.
type Store interface {
	EnsureIndexes(ctx context.Context) error
	Clear(ctx context.Context) (int64, error)
	BulkUpsert(ctx context.Context, docs []mdb.TaggedDoc) (mdb.UpsertResult, error)
	Count(ctx context.Context) (int64, error)
}

type Options struct {
	ClearDB   bool
	BatchSize int
	// Out receives the human readable progress lines; nil discards them.
	Out io.Writer
}

type Summary struct {
	RunID        string
	Files        int
	Loaded       int
	Matched      int64
	Upserted     int64
	Cleared      int64
	Failed       []*FileError
	Duplicates   []string
	DistinctURLs int
	Count        int64
}

type Loader struct {
	src   Source
	store Store
	opts  Options
	log   zerolog.Logger
}

func NewLoader(src Source, store Store, opts Options, log zerolog.Logger) *Loader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 500
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Loader{src: src, store: store, opts: opts, log: log}
}

// Run loads every document of the source. Per-file problems land in
// Summary.Failed and never stop the run; database errors do.
func (l *Loader) Run(ctx context.Context) (*Summary, error) {
	sum := &Summary{RunID: uuid.NewString()}
	log := l.log.With().Str("run_id", sum.RunID).Logger()

	if err := l.run(ctx, sum, log); err != nil {
		metrics.IngestRuns.WithLabelValues("failed").Inc()
		return sum, err
	}
	metrics.IngestRuns.WithLabelValues("ok").Inc()
	metrics.CollectionDocuments.Set(float64(sum.Count))
	return sum, nil
}

func (l *Loader) run(ctx context.Context, sum *Summary, log zerolog.Logger) error {
	if l.opts.ClearDB {
		n, err := l.store.Clear(ctx)
		if err != nil {
			return fmt.Errorf("clear collection: %w", err)
		}
		sum.Cleared = n
		log.Info().Int64("deleted", n).Msg("collection cleared")
	}
	if err := l.store.EnsureIndexes(ctx); err != nil {
		return fmt.Errorf("ensure indexes: %w", err)
	}

	names, err := l.src.List(ctx)
	if err != nil {
		return fmt.Errorf("list source: %w", err)
	}

	fail := func(name string, err error) {
		fe := &FileError{Name: name, Err: err}
		sum.Failed = append(sum.Failed, fe)
		status := "failed"
		if errors.Is(err, ErrMalformedRecord) {
			status = "malformed"
		}
		metrics.IngestFiles.WithLabelValues(status).Inc()
		log.Warn().Str("file", name).Err(err).Msg("file skipped")
	}

	firstFile := map[string]string{}
	dups := mapset.NewThreadUnsafeSet[string]()
	batch := make([]mdb.TaggedDoc, 0, l.opts.BatchSize)
	batchFiles := make([]string, 0, l.opts.BatchSize)

	commit := func() error {
		if len(batch) == 0 {
			return nil
		}
		res, err := l.store.BulkUpsert(ctx, batch)
		if err != nil {
			return fmt.Errorf("upsert batch: %w", err)
		}
		for _, i := range slices.Sorted(maps.Keys(res.Failed)) {
			fail(batchFiles[i], res.Failed[i])
		}
		ok := len(batch) - len(res.Failed)
		sum.Loaded += ok
		sum.Matched += res.Matched
		sum.Upserted += res.Upserted
		metrics.IngestFiles.WithLabelValues("loaded").Add(float64(ok))
		log.Debug().Int("docs", len(batch)).Int64("matched", res.Matched).
			Int64("upserted", res.Upserted).Msg("batch written")
		batch = batch[:0]
		batchFiles = batchFiles[:0]
		return nil
	}

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		sum.Files++
		fmt.Fprintln(l.opts.Out, "Loading", name, "into mongo")

		data, err := l.src.Read(ctx, name)
		if err != nil {
			fail(name, fmt.Errorf("read: %w", err))
			continue
		}
		doc, err := parseTagged(data)
		if err != nil {
			fail(name, err)
			continue
		}
		if first, ok := firstFile[doc.URL]; ok {
			dups.Add(doc.URL)
			log.Warn().Str("file", name).Str("url", doc.URL).
				Str("first_file", first).Msg("duplicate url, document overwritten")
		} else {
			firstFile[doc.URL] = name
		}

		batch = append(batch, doc)
		batchFiles = append(batchFiles, name)
		if len(batch) >= l.opts.BatchSize {
			if err := commit(); err != nil {
				return err
			}
		}
	}
	if err := commit(); err != nil {
		return err
	}
	sum.DistinctURLs = len(firstFile)
	sum.Duplicates = dups.ToSlice()
	slices.Sort(sum.Duplicates)

	n, err := l.store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	sum.Count = n
	fmt.Fprintln(l.opts.Out, "Mongo now contains", n, "documents")
	log.Info().Int("files", sum.Files).Int("loaded", sum.Loaded).Int("failed", len(sum.Failed)).
		Int("distinct_urls", sum.DistinctURLs).Int64("count", n).Msg("load done")
	return nil
}
