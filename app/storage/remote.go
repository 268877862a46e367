package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var _ Storage = (*Remote)(nil)

// Remote maps blob keys onto documents in a MongoDB collection, giving the
// engine object-store semantics (put/get/delete/list-by-prefix). Non-ASCII
// key segments are percent-escaped so keys stay plain ASCII object names.
type Remote struct {
	client *mongo.Client
	blobs  *mongo.Collection
}

type blobDoc struct {
	Key       string    `bson:"_id"`
	Data      []byte    `bson:"data"`
	UpdatedAt time.Time `bson:"updated_at"`
}

func NewRemote(ctx context.Context, uri, database string) (*Remote, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Remote{
		client: client,
		blobs:  client.Database(database).Collection("blobs"),
	}, nil
}

func (r *Remote) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

func (r *Remote) Read(ctx context.Context, key string) ([]byte, error) {
	var doc blobDoc
	err := r.blobs.FindOne(ctx, bson.M{"_id": escapeKey(key)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return doc.Data, nil
}

func (r *Remote) Write(ctx context.Context, key string, data []byte) error {
	doc := blobDoc{
		Key:       escapeKey(key),
		Data:      data,
		UpdatedAt: time.Now().UTC(),
	}

	opts := options.Replace().SetUpsert(true)
	if _, err := r.blobs.ReplaceOne(ctx, bson.M{"_id": doc.Key}, doc, opts); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	return nil
}

func (r *Remote) Delete(ctx context.Context, key string) error {
	if _, err := r.blobs.DeleteOne(ctx, bson.M{"_id": escapeKey(key)}); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (r *Remote) List(ctx context.Context, prefix string) ([]string, error) {
	escaped := escapeKey(strings.TrimSuffix(prefix, "/")) + "/"

	filter := bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(escaped)}}
	opts := options.Find().SetProjection(bson.M{"_id": 1})

	cursor, err := r.blobs.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}
	defer cursor.Close(ctx)

	var names []string
	for cursor.Next(ctx) {
		var doc struct {
			Key string `bson:"_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode blob key: %w", err)
		}

		name := strings.TrimPrefix(doc.Key, escaped)
		// Only direct children, list is not recursive
		if name == "" || strings.Contains(name, "/") {
			continue
		}
		names = append(names, unescapeSegment(name))
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
	}

	return names, nil
}

func (r *Remote) Exists(ctx context.Context, key string) (bool, error) {
	count, err := r.blobs.CountDocuments(ctx, bson.M{"_id": escapeKey(key)}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", key, err)
	}
	return count > 0, nil
}

func (r *Remote) DeleteTree(ctx context.Context, prefix string) error {
	escaped := escapeKey(strings.TrimSuffix(prefix, "/")) + "/"

	filter := bson.M{"_id": bson.M{"$regex": "^" + regexp.QuoteMeta(escaped)}}
	if _, err := r.blobs.DeleteMany(ctx, filter); err != nil {
		return fmt.Errorf("failed to delete tree %s: %w", prefix, err)
	}

	return nil
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}

func unescapeSegment(segment string) string {
	unescaped, err := url.PathUnescape(segment)
	if err != nil {
		return segment
	}
	return unescaped
}
