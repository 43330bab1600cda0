package report

import (
	mapset "github.com/deckarep/golang-set/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Query is one fixed analytical question. An empty Pipeline means the query
// is not defined yet and is skipped by the runner.
type Query struct {
	ID          int
	Description string
	Pipeline    mongo.Pipeline
}

const (
	bridgeMid      = "/m/015kr"
	newYorkMid     = "/m/059rby"
	newYorkCityMid = "/m/02nd_"
	minLandmark    = 0.6
	topN           = 10
)

// field paths of the vision response
const (
	fLabels    = "response.labelAnnotations"
	fLandmarks = "response.landmarkAnnotations"
	fWeb       = "response.webDetection"
	fEntities  = fWeb + ".webEntities"
	fPages     = fWeb + ".pagesWithMatchingImages"
)

func ref(path string) string { return "$" + path }

func orEmpty(expr any) bson.M { return bson.M{"$ifNull": bson.A{expr, bson.A{}}} }

// imagesOnPage is the set of image urls a page shows, as seen from the
// document listing it: the document's own url plus the page's full and
// partial matches. page is the expression prefix of the page element.
func imagesOnPage(page string) bson.M {
	return bson.M{"$setUnion": bson.A{
		bson.A{"$url"},
		orEmpty(page + ".fullMatchingImages.url"),
		orEmpty(page + ".partialMatchingImages.url"),
	}}
}

// referencedImages is every image url a document names: its own url, the
// web detection matches, and the matches listed under each page.
func referencedImages() bson.M {
	return bson.M{"$setUnion": bson.A{
		bson.A{"$url"},
		orEmpty(ref(fWeb + ".fullMatchingImages.url")),
		orEmpty(ref(fWeb + ".partialMatchingImages.url")),
		bson.M{"$reduce": bson.M{
			"input":        orEmpty(ref(fPages)),
			"initialValue": bson.A{},
			"in": bson.M{"$setUnion": bson.A{
				"$$value",
				orEmpty("$$this.fullMatchingImages.url"),
				orEmpty("$$this.partialMatchingImages.url"),
			}},
		}},
	}}
}

// pageImageSets groups pages across documents: one output document per page
// url with the union of the images every listing document sees on it.
func pageImageSets() mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$unwind", Value: ref(fPages)}},
		{{Key: "$project", Value: bson.M{
			"page":   ref(fPages + ".url"),
			"images": imagesOnPage(ref(fPages)),
		}}},
		{{Key: "$match", Value: bson.M{"page": bson.M{"$type": "string"}}}},
		{{Key: "$unwind", Value: "$images"}},
		{{Key: "$group", Value: bson.M{
			"_id":    "$page",
			"images": bson.M{"$addToSet": "$images"},
		}}},
	}
}

// distinctCount counts distinct values of key after unwinding each path in order.
func distinctCount(key any, unwind ...string) bson.A {
	out := bson.A{}
	for _, p := range unwind {
		out = append(out, bson.D{{Key: "$unwind", Value: ref(p)}})
	}
	return append(out,
		bson.D{{Key: "$group", Value: bson.M{"_id": key}}},
		bson.D{{Key: "$count", Value: "n"}},
	)
}

func facetCount(name string) bson.M {
	return bson.M{"$ifNull": bson.A{bson.M{"$arrayElemAt": bson.A{"$" + name + ".n", 0}}, 0}}
}

func Queries() []Query {
	return []Query{
		{
			ID: 0,
			Description: `Query 0. List all of the Images that are associated with the
Label with an id of "/m/015kr" (which has the description
"bridge") ordered by the score of the association between them
from highest score to lowest`,
			Pipeline: mongo.Pipeline{
				{{Key: "$unwind", Value: ref(fLabels)}},
				{{Key: "$project", Value: bson.D{
					{Key: "url", Value: 1},
					{Key: "mid", Value: ref(fLabels + ".mid")},
					{Key: "score", Value: ref(fLabels + ".score")},
				}}},
				{{Key: "$match", Value: bson.M{"mid": bridgeMid}}},
				{{Key: "$sort", Value: bson.D{{Key: "score", Value: -1}, {Key: "url", Value: 1}}}},
				{{Key: "$project", Value: bson.M{"_id": 0}}},
			},
		},
		{
			ID:          1,
			Description: `Query 1. Count the total number of JSON documents in the database`,
			Pipeline: mongo.Pipeline{
				{{Key: "$count", Value: "documents"}},
			},
		},
		{
			ID: 2,
			Description: `Query 2. Count the number of unique Labels, Landmarks, Locations,
Pages, and WebEntities in the database.`,
			Pipeline: mongo.Pipeline{
				{{Key: "$facet", Value: bson.D{
					{Key: "labels", Value: distinctCount(ref(fLabels+".mid"), fLabels)},
					{Key: "landmarks", Value: distinctCount(ref(fLandmarks+".mid"), fLandmarks)},
					{Key: "locations", Value: distinctCount(bson.D{
						{Key: "latitude", Value: ref(fLandmarks + ".locations.latLng.latitude")},
						{Key: "longitude", Value: ref(fLandmarks + ".locations.latLng.longitude")},
					}, fLandmarks, fLandmarks+".locations")},
					{Key: "pages", Value: distinctCount(ref(fPages+".url"), fPages)},
					{Key: "webEntities", Value: distinctCount(ref(fEntities+".entityId"), fEntities)},
				}}},
				{{Key: "$project", Value: bson.D{
					{Key: "labels", Value: facetCount("labels")},
					{Key: "landmarks", Value: facetCount("landmarks")},
					{Key: "locations", Value: facetCount("locations")},
					{Key: "pages", Value: facetCount("pages")},
					{Key: "webEntities", Value: facetCount("webEntities")},
				}}},
			},
		},
		{
			ID: 3,
			Description: `Query 3. Count the total number of unique images in the database.
This should include both those that have been directly submitted
to the google cloud vision API as well as those that are referred
to in the returned analyses.`,
			Pipeline: mongo.Pipeline{
				{{Key: "$project", Value: bson.M{"_id": 0, "images": referencedImages()}}},
				{{Key: "$unwind", Value: "$images"}},
				{{Key: "$group", Value: bson.M{"_id": "$images"}}},
				{{Key: "$count", Value: "uniqueImages"}},
			},
		},
		{
			ID: 4,
			Description: `Query 4. List the 10 most frequent WebEntities that are applied
to the same Images as the Label with an id of "/m/015kr" (which
has the description "bridge"). List them in descending order of
the number of times they appear together, followed by their entityId
alphabetically`,
			Pipeline: mongo.Pipeline{
				{{Key: "$match", Value: bson.M{fLabels + ".mid": bridgeMid}}},
				{{Key: "$unwind", Value: ref(fEntities)}},
				{{Key: "$match", Value: bson.M{fEntities + ".entityId": bson.M{"$type": "string"}}}},
				{{Key: "$group", Value: bson.M{
					"_id":         ref(fEntities + ".entityId"),
					"description": bson.M{"$first": ref(fEntities + ".description")},
					"images":      bson.M{"$addToSet": "$url"},
				}}},
				{{Key: "$project", Value: bson.D{
					{Key: "_id", Value: 0},
					{Key: "entityId", Value: "$_id"},
					{Key: "description", Value: 1},
					{Key: "count", Value: bson.M{"$size": "$images"}},
				}}},
				{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "entityId", Value: 1}}}},
				{{Key: "$limit", Value: topN}},
			},
		},
		{
			ID: 5,
			Description: `Query 5. Find Images associated with Landmarks that are not "New
York" (id "/m/059rby") or "New York City" (id "/m/02nd_") with
an association score of at least 0.6 ordered alphabetically by
landmark description and then by image URL.`,
			Pipeline: mongo.Pipeline{
				{{Key: "$unwind", Value: ref(fLandmarks)}},
				{{Key: "$match", Value: bson.M{
					fLandmarks + ".mid":   bson.M{"$nin": bson.A{newYorkMid, newYorkCityMid}},
					fLandmarks + ".score": bson.M{"$gte": minLandmark},
				}}},
				{{Key: "$project", Value: bson.D{
					{Key: "_id", Value: 0},
					{Key: "url", Value: 1},
					{Key: "mid", Value: ref(fLandmarks + ".mid")},
					{Key: "description", Value: ref(fLandmarks + ".description")},
					{Key: "score", Value: ref(fLandmarks + ".score")},
				}}},
				{{Key: "$sort", Value: bson.D{{Key: "description", Value: 1}, {Key: "url", Value: 1}}}},
			},
		},
		{
			ID: 6,
			Description: `Query 6. List the 10 Labels that have been applied to the most
Images along with the number of Images each has been applied to
sorted by the number of Images each has been applied to from
most to least.`,
			Pipeline: mongo.Pipeline{
				{{Key: "$unwind", Value: ref(fLabels)}},
				{{Key: "$group", Value: bson.M{
					"_id":         ref(fLabels + ".mid"),
					"description": bson.M{"$first": ref(fLabels + ".description")},
					"images":      bson.M{"$addToSet": "$url"},
				}}},
				{{Key: "$project", Value: bson.D{
					{Key: "_id", Value: 0},
					{Key: "mid", Value: "$_id"},
					{Key: "description", Value: 1},
					{Key: "count", Value: bson.M{"$size": "$images"}},
				}}},
				{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "mid", Value: 1}}}},
				{{Key: "$limit", Value: topN}},
			},
		},
		{
			ID: 7,
			Description: `Query 7. List the 10 Pages that are linked to the most Images
through the webEntities.pagesWithMatchingImages JSON property
along with the number of Images linked to each one. Sort them by
count (descending) and then by page URL.`,
			Pipeline: append(pageImageSets(),
				bson.D{{Key: "$project", Value: bson.D{
					{Key: "_id", Value: 0},
					{Key: "page", Value: "$_id"},
					{Key: "count", Value: bson.M{"$size": "$images"}},
				}}},
				bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "page", Value: 1}}}},
				bson.D{{Key: "$limit", Value: topN}},
			),
		},
		{
			ID: 8,
			Description: `Query 8. List the 10 pairs of Images that appear on the most
Pages together through the webEntities.pagesWithMatchingImages
JSON property. Order them by the number of pages that they
appear on together (descending), then by the URL of the
first. Make sure that each pair is only listed once regardless
of which is first and which is second.`,
			Pipeline: append(pageImageSets(),
				bson.D{{Key: "$project", Value: bson.M{"first": "$images", "second": "$images"}}},
				bson.D{{Key: "$unwind", Value: "$first"}},
				bson.D{{Key: "$unwind", Value: "$second"}},
				// keeps one canonical ordering of each unordered pair
				bson.D{{Key: "$match", Value: bson.M{"$expr": bson.M{"$lt": bson.A{"$first", "$second"}}}}},
				bson.D{{Key: "$group", Value: bson.M{
					"_id":   bson.D{{Key: "first", Value: "$first"}, {Key: "second", Value: "$second"}},
					"pages": bson.M{"$sum": 1},
				}}},
				bson.D{{Key: "$project", Value: bson.D{
					{Key: "_id", Value: 0},
					{Key: "first", Value: "$_id.first"},
					{Key: "second", Value: "$_id.second"},
					{Key: "count", Value: "$pages"},
				}}},
				bson.D{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "first", Value: 1}, {Key: "second", Value: 1}}}},
				bson.D{{Key: "$limit", Value: topN}},
			),
		},
	}
}

// Select returns the queries whose id is in ids, in their fixed order. No ids selects all.
func Select(qs []Query, ids []int) []Query {
	if len(ids) == 0 {
		return qs
	}
	want := mapset.NewThreadUnsafeSet(ids...)
	var out []Query
	for _, q := range qs {
		if want.Contains(q.ID) {
			out = append(out, q)
		}
	}
	return out
}

func Find(qs []Query, id int) (Query, bool) {
	for _, q := range qs {
		if q.ID == id {
			return q, true
		}
	}
	return Query{}, false
}
