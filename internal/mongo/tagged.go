package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TaggedDoc is one vision-tagging result keyed by its image url. Doc holds the
// whole parsed JSON object and is written with $set.
type TaggedDoc struct {
	URL string
	Doc bson.D
}

// UpsertResult mirrors the bulk write counters. Failed maps an index of the
// input slice to the per-document write error the server reported for it.
type UpsertResult struct {
	Matched  int64
	Modified int64
	Upserted int64
	Failed   map[int]error
}

type TaggedCollection struct {
	col *mongo.Collection
}

func (c *Client) Tagged(name string) *TaggedCollection {
	return &TaggedCollection{col: c.DB.Collection(name)}
}

func (t *TaggedCollection) Name() string { return t.col.Name() }

func (t *TaggedCollection) EnsureIndexes(ctx context.Context) error {
	_, err := t.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "url", Value: 1}},
			Options: options.Index().SetName("uniq_url").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "response.labelAnnotations.mid", Value: 1}},
			Options: options.Index().SetName("label_mid"),
		},
	})
	return err
}

// Clear deletes every document and returns how many were removed.
func (t *TaggedCollection) Clear(ctx context.Context) (int64, error) {
	res, err := t.col.DeleteMany(ctx, bson.D{})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

func (t *TaggedCollection) BulkUpsert(ctx context.Context, docs []TaggedDoc) (UpsertResult, error) {
	out := UpsertResult{Failed: map[int]error{}}
	if len(docs) == 0 {
		return out, nil
	}
	writes := make([]mongo.WriteModel, 0, len(docs))
	for _, d := range docs {
		w := mongo.NewUpdateOneModel().
			SetFilter(bson.M{"url": d.URL}).
			SetUpdate(bson.M{"$set": d.Doc}).
			SetUpsert(true)
		writes = append(writes, w)
	}

	res, err := t.col.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false))
	if res != nil {
		out.Matched = res.MatchedCount
		out.Modified = res.ModifiedCount
		out.Upserted = res.UpsertedCount
	}
	if err == nil {
		return out, nil
	}

	var bwe mongo.BulkWriteException
	if !errors.As(err, &bwe) || bwe.WriteConcernError != nil || len(bwe.WriteErrors) == 0 {
		return out, err
	}
	for _, we := range bwe.WriteErrors {
		out.Failed[we.Index] = fmt.Errorf("write error %d: %s", we.Code, we.Message)
	}
	return out, nil
}

func (t *TaggedCollection) Count(ctx context.Context) (int64, error) {
	return t.col.CountDocuments(ctx, bson.D{})
}

// Aggregate runs pipeline and materializes every result document in emission order.
func (t *TaggedCollection) Aggregate(ctx context.Context, pipeline mongo.Pipeline) ([]bson.D, error) {
	cur, err := t.col.Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(true))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var items []bson.D
	if err := cur.All(ctx, &items); err != nil {
		return nil, err
	}
	return items, nil
}
