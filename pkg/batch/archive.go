package batch

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Archive settings. The JSON report file next to the outputs stays the
// durable record; the archive is a convenience history across runs.
const (
	archiveDatabase   = "slideforge"
	archiveCollection = "reports"
	archiveTimeout    = 10 * time.Second
)

// ArchiveReport stores a finalized report in the MongoDB instance at uri.
// Failures here do not affect the run outcome; the caller logs and moves on.
func ArchiveReport(ctx context.Context, uri string, report *Report) error {
	ctx, cancel := context.WithTimeout(ctx, archiveTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(ctx) }()

	coll := client.Database(archiveDatabase).Collection(archiveCollection)
	_, err = coll.InsertOne(ctx, report)
	return err
}
