package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.mongodb.org/mongo-driver/bson"

	mdb "VisionTag/internal/mongo"
)

var (
	// ErrMalformedRecord marks valid JSON that is not an object with a non-empty string url.
	ErrMalformedRecord = errors.New("malformed record")
	ErrInvalidJSON     = errors.New("invalid json")
)

// FileError ties a load failure to the file it came from.
type FileError struct {
	Name string
	Err  error
}

func (e *FileError) Error() string { return fmt.Sprintf("%s: %v", e.Name, e.Err) }

func (e *FileError) Unwrap() error { return e.Err }

// parseTagged validates the raw document with gjson before decoding it to BSON,
// so shape errors are reported without a full decode.
func parseTagged(data []byte) (mdb.TaggedDoc, error) {
	if !gjson.ValidBytes(data) {
		return mdb.TaggedDoc{}, ErrInvalidJSON
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return mdb.TaggedDoc{}, fmt.Errorf("%w: top level is not an object", ErrMalformedRecord)
	}
	u := root.Get("url")
	if !u.Exists() {
		return mdb.TaggedDoc{}, fmt.Errorf("%w: missing url", ErrMalformedRecord)
	}
	if u.Type != gjson.String || strings.TrimSpace(u.Str) == "" {
		return mdb.TaggedDoc{}, fmt.Errorf("%w: url must be a non-empty string", ErrMalformedRecord)
	}

	var doc bson.D
	if err := bson.UnmarshalExtJSON(data, false, &doc); err != nil {
		return mdb.TaggedDoc{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	// _id is immutable on existing documents
	out := doc[:0]
	for _, e := range doc {
		if e.Key != "_id" {
			out = append(out, e)
		}
	}
	return mdb.TaggedDoc{URL: u.Str, Doc: out}, nil
}
