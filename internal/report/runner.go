package report

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"VisionTag/internal/metrics"
)

const (
	bannerPipeline = "***************** Aggregate pipeline ****************"
	bannerResults  = "********************** Results **********************"
	bannerEnd      = "*****************************************************"
)

// Aggregator runs a read-only pipeline against the tagged collection.
type Aggregator interface {
	Name() string
	Aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]bson.D, error)
}

type Runner struct {
	agg Aggregator
	log zerolog.Logger
}

func NewRunner(agg Aggregator, log zerolog.Logger) *Runner {
	return &Runner{agg: agg, log: log}
}

// Exec runs a single query. Empty pipelines return no rows without touching the database.
// Errors come back unwrapped; callers add the query id.
func (r *Runner) Exec(ctx context.Context, q Query) ([]bson.D, error) {
	if len(q.Pipeline) == 0 {
		return nil, nil
	}
	label := strconv.Itoa(q.ID)
	start := time.Now()
	rows, err := r.agg.Aggregate(ctx, q.Pipeline)
	metrics.QueryDuration.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.QueryErrors.WithLabelValues(label).Inc()
		return nil, err
	}
	r.log.Debug().Int("query", q.ID).Int("rows", len(rows)).Dur("took", time.Since(start)).Msg("query done")
	return rows, nil
}

// Run executes qs in order and prints each one to w. A failing query is
// reported in its block and the remaining queries still run; the returned
// error joins every failure.
func (r *Runner) Run(ctx context.Context, w io.Writer, qs []Query) error {
	var errs []error
	for _, q := range qs {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if err := r.print(ctx, w, q); err != nil {
			r.log.Error().Int("query", q.ID).Err(err).Msg("query failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Runner) print(ctx context.Context, w io.Writer, q Query) error {
	fmt.Fprintln(w)
	fmt.Fprintln(w, q.Description)
	fmt.Fprintln(w, bannerPipeline)
	defer fmt.Fprintln(w, bannerEnd)

	def, err := FormatPipeline(r.agg.Name(), q.Pipeline)
	if err != nil {
		fmt.Fprintf(w, "query %d failed: format pipeline: %v\n", q.ID, err)
		return fmt.Errorf("query %d: format pipeline: %w", q.ID, err)
	}
	fmt.Fprintln(w, def)
	fmt.Fprintln(w, bannerResults)

	rows, err := r.Exec(ctx, q)
	if err != nil {
		fmt.Fprintf(w, "query %d failed: %v\n", q.ID, err)
		return fmt.Errorf("query %d: %w", q.ID, err)
	}
	for _, row := range rows {
		s, err := FormatDoc(row)
		if err != nil {
			return fmt.Errorf("query %d: format result: %w", q.ID, err)
		}
		fmt.Fprintln(w, s)
	}
	return nil
}

// FormatPipeline renders the pipeline as the aggregate command a shell would send.
func FormatPipeline(collection string, p mongo.Pipeline) (string, error) {
	if p == nil {
		p = mongo.Pipeline{}
	}
	return FormatDoc(bson.D{
		{Key: "aggregate", Value: collection},
		{Key: "pipeline", Value: p},
	})
}

// FormatDoc renders a document as indented relaxed extended JSON.
func FormatDoc(doc any) (string, error) {
	b, err := bson.MarshalExtJSONIndent(doc, false, false, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
