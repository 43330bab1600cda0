package ingest

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	mdb "VisionTag/internal/mongo"
)

// memSource serves documents from memory in insertion order.
type memSource struct {
	names   []string
	files   map[string]string
	readErr map[string]error
	listErr error
}

func newMemSource() *memSource {
	return &memSource{files: map[string]string{}, readErr: map[string]error{}}
}

func (s *memSource) add(name, body string) *memSource {
	s.names = append(s.names, name)
	s.files[name] = body
	return s
}

func (s *memSource) List(context.Context) ([]string, error) { return s.names, s.listErr }

func (s *memSource) Read(_ context.Context, name string) ([]byte, error) {
	if err := s.readErr[name]; err != nil {
		return nil, err
	}
	return []byte(s.files[name]), nil
}

// memStore keeps one document per url, like the unique-index upsert does.
type memStore struct {
	docs      map[string]bson.D
	batches   int
	cleared   bool
	failURL   map[string]error
	upsertErr error
}

func newMemStore() *memStore {
	return &memStore{docs: map[string]bson.D{}, failURL: map[string]error{}}
}

func (m *memStore) EnsureIndexes(context.Context) error { return nil }

func (m *memStore) Clear(context.Context) (int64, error) {
	n := int64(len(m.docs))
	m.docs = map[string]bson.D{}
	m.cleared = true
	return n, nil
}

func (m *memStore) BulkUpsert(_ context.Context, docs []mdb.TaggedDoc) (mdb.UpsertResult, error) {
	m.batches++
	res := mdb.UpsertResult{Failed: map[int]error{}}
	if m.upsertErr != nil {
		return res, m.upsertErr
	}
	for i, d := range docs {
		if err := m.failURL[d.URL]; err != nil {
			res.Failed[i] = err
			continue
		}
		if _, ok := m.docs[d.URL]; ok {
			res.Matched++
		} else {
			res.Upserted++
		}
		m.docs[d.URL] = d.Doc
	}
	return res, nil
}

func (m *memStore) Count(context.Context) (int64, error) { return int64(len(m.docs)), nil }

func newTestLoader(src Source, store Store, opts Options) *Loader {
	return NewLoader(src, store, opts, zerolog.Nop())
}

func TestLoader_LoadsAndReportsCount(t *testing.T) {
	src := newMemSource().
		add("a.json", `{"url":"a","response":{"labelAnnotations":[]}}`).
		add("b.json", `{"url":"b"}`)
	store := newMemStore()
	out := &bytes.Buffer{}

	sum, err := newTestLoader(src, store, Options{ClearDB: true, Out: out}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sum.Files)
	assert.Equal(t, 2, sum.Loaded)
	assert.Equal(t, int64(2), sum.Count)
	assert.Equal(t, int64(2), sum.Upserted)
	assert.NotEmpty(t, sum.RunID)
	assert.Contains(t, out.String(), "Loading a.json into mongo\n")
	assert.Contains(t, out.String(), "Mongo now contains 2 documents\n")
}

func TestLoader_Idempotent(t *testing.T) {
	src := newMemSource().
		add("a.json", `{"url":"a"}`).
		add("b.json", `{"url":"b"}`)
	store := newMemStore()
	l := newTestLoader(src, store, Options{ClearDB: false})

	_, err := l.Run(context.Background())
	require.NoError(t, err)
	sum, err := l.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), sum.Count)
	assert.Equal(t, int64(2), sum.Matched)
	assert.Equal(t, int64(0), sum.Upserted)
}

func TestLoader_DuplicateURLAcrossFiles(t *testing.T) {
	src := newMemSource().
		add("1.json", `{"url":"a","v":1}`).
		add("2.json", `{"url":"a","v":2}`).
		add("3.json", `{"url":"c"}`)
	store := newMemStore()

	sum, err := newTestLoader(src, store, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, sum.DistinctURLs)
	assert.Equal(t, int64(sum.DistinctURLs), sum.Count)
	assert.Equal(t, []string{"a"}, sum.Duplicates)
	assert.Equal(t, bson.D{{Key: "url", Value: "a"}, {Key: "v", Value: int32(2)}}, store.docs["a"])
}

func TestLoader_PerFileErrorsDoNotAbort(t *testing.T) {
	src := newMemSource().
		add("good.json", `{"url":"a"}`).
		add("nourl.json", `{"response":{}}`).
		add("broken.json", `{"url":`).
		add("gone.json", ``).
		add("rejected.json", `{"url":"r"}`).
		add("last.json", `{"url":"z"}`)
	src.readErr["gone.json"] = os.ErrNotExist
	store := newMemStore()
	store.failURL["r"] = errors.New("write error 2: bad field")

	sum, err := newTestLoader(src, store, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, sum.Files)
	assert.Equal(t, 2, sum.Loaded)
	assert.Equal(t, int64(2), sum.Count)

	failed := map[string]error{}
	for _, fe := range sum.Failed {
		failed[fe.Name] = fe
	}
	require.Len(t, failed, 4)
	assert.ErrorIs(t, failed["nourl.json"], ErrMalformedRecord)
	assert.ErrorIs(t, failed["broken.json"], ErrInvalidJSON)
	assert.ErrorIs(t, failed["gone.json"], os.ErrNotExist)
	assert.Contains(t, failed["rejected.json"].Error(), "bad field")
}

func TestLoader_ClearDB(t *testing.T) {
	store := newMemStore()
	store.docs["old"] = bson.D{{Key: "url", Value: "old"}}
	src := newMemSource().add("a.json", `{"url":"a"}`)

	sum, err := newTestLoader(src, store, Options{ClearDB: true}).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, store.cleared)
	assert.Equal(t, int64(1), sum.Cleared)
	assert.Equal(t, int64(1), sum.Count)

	store.docs["old"] = bson.D{{Key: "url", Value: "old"}}
	sum, err = newTestLoader(src, store, Options{ClearDB: false}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), sum.Count)
}

func TestLoader_Batches(t *testing.T) {
	src := newMemSource()
	for _, u := range []string{"a", "b", "c", "d", "e"} {
		src.add(u+".json", `{"url":"`+u+`"}`)
	}
	store := newMemStore()

	sum, err := newTestLoader(src, store, Options{BatchSize: 2}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, store.batches)
	assert.Equal(t, 5, sum.Loaded)
}

func TestLoader_DatabaseErrorIsFatal(t *testing.T) {
	src := newMemSource().add("a.json", `{"url":"a"}`)
	store := newMemStore()
	store.upsertErr = errors.New("connection refused")

	_, err := newTestLoader(src, store, Options{}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert batch")
}

func TestLoader_ListErrorIsFatal(t *testing.T) {
	src := newMemSource()
	src.listErr = os.ErrPermission

	_, err := newTestLoader(src, newMemStore(), Options{}).Run(context.Background())
	assert.ErrorIs(t, err, os.ErrPermission)
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.json"), []byte(`{"url":"b"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"url":"a"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`x`), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub", "c.json"), []byte(`{"url":"c"}`), 0o644))

	src := DirSource{Dir: dir}
	names, err := src.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")}, names)

	data, err := src.Read(context.Background(), names[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"url":"a"}`, string(data))
}

func TestDirSource_Missing(t *testing.T) {
	_, err := DirSource{Dir: filepath.Join(t.TempDir(), "nope")}.List(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoader_FromDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.json"), []byte(`{"url":"a"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a2.json"), []byte(`{"url":"a"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"nourl":true}`), 0o644))

	sum, err := newTestLoader(DirSource{Dir: dir}, newMemStore(), Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Count)
	require.Len(t, sum.Failed, 1)
	assert.Equal(t, filepath.Join(dir, "bad.json"), sum.Failed[0].Name)
}
