package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"VisionTag/internal/config"
	"VisionTag/internal/report"
)

type stubAgg struct {
	last mongo.Pipeline
	rows []bson.D
	err  error
}

func (s *stubAgg) Name() string { return "googleTagged" }

func (s *stubAgg) Aggregate(_ context.Context, p mongo.Pipeline) ([]bson.D, error) {
	s.last = p
	return s.rows, s.err
}

func newTestRouter(agg *stubAgg, perMinute int) http.Handler {
	return NewRouter(Deps{
		Cfg:     config.Config{Collection: "googleTagged", RatePerMinute: perMinute},
		Runner:  report.NewRunner(agg, zerolog.Nop()),
		Queries: report.Queries(),
		Log:     zerolog.Nop(),
	})
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestRouter(&stubAgg{}, 100), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "googleTagged", body["collection"])
}

func TestQueriesList(t *testing.T) {
	rec := get(t, newTestRouter(&stubAgg{}, 100), "/queries")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []struct {
			ID       int              `json:"id"`
			Pipeline []map[string]any `json:"pipeline"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 9)
	assert.Equal(t, 8, body.Items[8].ID)
	assert.Contains(t, body.Items[1].Pipeline[0], "$count")
}

func TestQueryRun_PaginatesAndSanitizes(t *testing.T) {
	agg := &stubAgg{rows: []bson.D{
		{{Key: "url", Value: "a"}, {Key: "description", Value: "<script>x</script>Bridge<b>!</b>"}},
	}}
	rec := get(t, newTestRouter(agg, 100), "/queries/0?page=3&limit=5")
	require.Equal(t, http.StatusOK, rec.Code)

	n := len(agg.last)
	require.Greater(t, n, 2)
	assert.Equal(t, bson.D{{Key: "$skip", Value: int64(10)}}, agg.last[n-2])
	assert.Equal(t, bson.D{{Key: "$limit", Value: int64(5)}}, agg.last[n-1])
	assert.Len(t, report.Queries()[0].Pipeline, n-2)

	var body struct {
		Query int              `json:"query"`
		Items []map[string]any `json:"items"`
		Meta  PageMeta         `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 0, body.Query)
	require.Len(t, body.Items, 1)
	assert.Equal(t, "Bridge!", body.Items[0]["description"])
	assert.Equal(t, PageMeta{Page: 3, Limit: 5, Count: 1}, body.Meta)
}

func TestQueryRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
		err  error
		want int
	}{
		{name: "unknown id", path: "/queries/42", want: http.StatusNotFound},
		{name: "bad id", path: "/queries/first", want: http.StatusBadRequest},
		{name: "database failure", path: "/queries/6", err: errors.New("no primary"), want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestRouter(&stubAgg{err: tt.err}, 100), tt.path)
			assert.Equal(t, tt.want, rec.Code)

			var body HTTPError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestRouter(&stubAgg{}, 1)

	assert.Equal(t, http.StatusOK, get(t, h, "/queries").Code)
	rec := get(t, h, "/queries")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimit_SkipsHealthAndMetrics(t *testing.T) {
	h := newTestRouter(&stubAgg{}, 1)

	assert.Equal(t, http.StatusOK, get(t, h, "/queries").Code)
	for range 3 {
		assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
		assert.Equal(t, http.StatusOK, get(t, h, "/metrics").Code)
	}
	assert.Equal(t, http.StatusTooManyRequests, get(t, h, "/queries").Code)
}

func TestQueryRun_KeepsURLQueryStrings(t *testing.T) {
	url := "https://img.example.com/p.jpg?w=1&h=2"
	agg := &stubAgg{rows: []bson.D{
		{{Key: "url", Value: url}, {Key: "description", Value: "Tom & Jerry's <i>bridge</i>"}},
	}}
	rec := get(t, newTestRouter(agg, 100), "/queries/0")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Items []map[string]any `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Items, 1)
	assert.Equal(t, url, body.Items[0]["url"])
	assert.Equal(t, "Tom & Jerry's bridge", body.Items[0]["description"])
}

func TestSanitizeValue_Nested(t *testing.T) {
	in := bson.D{
		{Key: "a", Value: bson.A{"<i>x</i>", int32(1)}},
		{Key: "m", Value: bson.M{"k": "<b>y</b>"}},
		{Key: "d", Value: bson.D{{Key: "s", Value: "plain"}}},
	}
	out := sanitizeValue(in).(bson.D)

	assert.Equal(t, bson.A{"x", int32(1)}, out[0].Value)
	assert.Equal(t, bson.M{"k": "y"}, out[1].Value)
	assert.Equal(t, bson.D{{Key: "s", Value: "plain"}}, out[2].Value)
}
