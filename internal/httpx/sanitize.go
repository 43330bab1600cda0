package httpx

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
	"go.mongodb.org/mongo-driver/bson"
)

// descriptions and page titles come from scraped web pages
var strictPolicy = bluemonday.StrictPolicy()

// sanitizeValue strips markup from every string inside v, recursing into documents and arrays.
// The policy escapes entities for HTML output; responses are JSON, so they are
// unescaped again and urls keep their query strings intact.
func sanitizeValue(v any) any {
	switch t := v.(type) {
	case string:
		return html.UnescapeString(strictPolicy.Sanitize(t))
	case bson.D:
		out := make(bson.D, len(t))
		for i, e := range t {
			out[i] = bson.E{Key: e.Key, Value: sanitizeValue(e.Value)}
		}
		return out
	case bson.M:
		out := make(bson.M, len(t))
		for k, e := range t {
			out[k] = sanitizeValue(e)
		}
		return out
	case bson.A:
		out := make(bson.A, len(t))
		for i, e := range t {
			out[i] = sanitizeValue(e)
		}
		return out
	default:
		return v
	}
}
