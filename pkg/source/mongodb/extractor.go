package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/surrealdb/surreal-sync/pkg/checkpoint"
	"github.com/surrealdb/surreal-sync/pkg/errs"
	"github.com/surrealdb/surreal-sync/pkg/log"
	"github.com/surrealdb/surreal-sync/pkg/types"
)

// ChangeStreamExtractor implements full-collection scan plus resumable
// change-stream incremental sync against a MongoDB replica set. The source
// must be a replica set (or sharded cluster); change streams are
// unavailable against a standalone server.
type ChangeStreamExtractor struct {
	cfg    Config
	client *mongo.Client
	db     *mongo.Database

	resumeToken bson.Raw
	clusterTime time.Time
}

// NewChangeStreamExtractor creates a MongoDB extractor. Initialize must be
// called before use.
func NewChangeStreamExtractor(client *mongo.Client, cfg Config) *ChangeStreamExtractor {
	return &ChangeStreamExtractor{cfg: cfg, client: client, db: client.Database(cfg.Database)}
}

// Initialize verifies connectivity and resolves the tracked collection list.
func (e *ChangeStreamExtractor) Initialize(ctx context.Context) error {
	if err := e.client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("%w: ping mongodb: %v", errs.ErrResource, err)
	}
	log.WithSource("mongodb").Info().Strs("collections", e.cfg.Collections).Msg("change stream extractor initialized")
	return nil
}

func (e *ChangeStreamExtractor) trackedCollections(ctx context.Context) ([]string, error) {
	if len(e.cfg.Collections) > 0 {
		return e.cfg.Collections, nil
	}
	names, err := e.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("%w: list collections: %v", errs.ErrResource, err)
	}
	return names, nil
}

// PreCheckpoint opens the change stream before the snapshot begins and
// holds its initial resume token, so no write between the snapshot and the
// incremental handoff is ever missed.
func (e *ChangeStreamExtractor) PreCheckpoint(ctx context.Context) (checkpoint.Checkpoint, error) {
	stream, err := e.db.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return checkpoint.Checkpoint{}, fmt.Errorf("%w: open change stream: %v", errs.ErrResource, err)
	}
	defer stream.Close(ctx)

	token := stream.ResumeToken()
	now := time.Now().UTC()
	e.resumeToken = token
	e.clusterTime = now
	return checkpoint.MongoDBCheckpoint(token, now), nil
}

// PostCheckpoint re-reports the resume token captured at PreCheckpoint time;
// the snapshot itself does not advance the stream position.
func (e *ChangeStreamExtractor) PostCheckpoint(ctx context.Context) (checkpoint.Checkpoint, error) {
	return checkpoint.MongoDBCheckpoint(e.resumeToken, e.clusterTime), nil
}

// Snapshot scans every tracked collection with a plain Find cursor.
func (e *ChangeStreamExtractor) Snapshot(ctx context.Context) (<-chan types.Change, <-chan error) {
	out := make(chan types.Change, e.cfg.bufferSize())
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		collections, err := e.trackedCollections(ctx)
		if err != nil {
			errCh <- err
			return
		}

		for _, coll := range collections {
			cursor, err := e.db.Collection(coll).Find(ctx, bson.M{})
			if err != nil {
				errCh <- fmt.Errorf("%w: find on %s: %v", errs.ErrResource, coll, err)
				return
			}

			for cursor.Next(ctx) {
				var doc bson.M
				if err := cursor.Decode(&doc); err != nil {
					cursor.Close(ctx)
					errCh <- fmt.Errorf("%w: decode document: %v", errs.ErrProtocol, err)
					return
				}
				row, err := docToRow(coll, doc)
				if err != nil {
					cursor.Close(ctx)
					errCh <- err
					return
				}
				select {
				case out <- types.Insert(row):
				case <-ctx.Done():
					cursor.Close(ctx)
					return
				}
			}
			cerr := cursor.Err()
			cursor.Close(ctx)
			if cerr != nil {
				errCh <- fmt.Errorf("%w: cursor on %s: %v", errs.ErrTransientUpstream, coll, cerr)
				return
			}
		}
	}()

	return out, errCh
}

// Seek resumes the change stream at a previously emitted resume token.
func (e *ChangeStreamExtractor) Seek(ctx context.Context, from checkpoint.Checkpoint) error {
	if from.Kind != checkpoint.KindMongoDB {
		return fmt.Errorf("%w: mongodb extractor cannot seek to %s checkpoint", errs.ErrCheckpointInvalid, from.Kind)
	}
	e.resumeToken = bson.Raw(from.ResumeToken)
	e.clusterTime = from.TS
	return nil
}

// StreamChanges opens a change stream resuming from the held token (or
// starting at the cluster time the token was captured at, for a cold start)
// and maps insert/replace/update to Upsert and delete to Delete.
func (e *ChangeStreamExtractor) StreamChanges(ctx context.Context) (<-chan types.Change, <-chan error) {
	out := make(chan types.Change, e.cfg.bufferSize())
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		opts := options.ChangeStream().SetMaxAwaitTime(e.cfg.maxAwaitTime()).SetFullDocument(options.UpdateLookup)
		if len(e.resumeToken) > 0 {
			opts.SetResumeAfter(e.resumeToken)
		} else if !e.clusterTime.IsZero() {
			opts.SetStartAtOperationTime(&primitive.Timestamp{T: uint32(e.clusterTime.Unix())})
		}

		stream, err := e.db.Watch(ctx, mongo.Pipeline{}, opts)
		if err != nil {
			errCh <- fmt.Errorf("%w: open change stream: %v", errs.ErrResource, err)
			return
		}
		defer stream.Close(ctx)

		for stream.Next(ctx) {
			var event changeEvent
			if err := stream.Decode(&event); err != nil {
				errCh <- fmt.Errorf("%w: decode change event: %v", errs.ErrProtocol, err)
				return
			}

			change, ok, err := e.eventToChange(event)
			if err != nil {
				errCh <- err
				return
			}
			e.resumeToken = stream.ResumeToken()
			if !ok {
				continue
			}

			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("%w: change stream error: %v", errs.ErrTransientUpstream, err)
		}
	}()

	return out, errCh
}

// CurrentCheckpoint reports the last resume token observed.
func (e *ChangeStreamExtractor) CurrentCheckpoint() checkpoint.Checkpoint {
	return checkpoint.MongoDBCheckpoint(e.resumeToken, e.clusterTime)
}

// Cleanup disconnects the client.
func (e *ChangeStreamExtractor) Cleanup(ctx context.Context) error {
	return e.client.Disconnect(ctx)
}

// changeEvent mirrors the subset of a MongoDB change-stream event document
// surreal-sync needs: the operation, the collection, the document key, and
// (for insert/replace/update) the full post-image.
type changeEvent struct {
	OperationType string `bson:"operationType"`
	Namespace     struct {
		Collection string `bson:"coll"`
	} `bson:"ns"`
	DocumentKey  bson.M      `bson:"documentKey"`
	FullDocument bson.M      `bson:"fullDocument"`
	ClusterTime  primitive.Timestamp `bson:"clusterTime"`
}

// eventToChange maps a decoded change-stream event onto a universal
// Change: insert/replace/update become Upsert(Row), delete
// becomes Delete. ok is false for event types surreal-sync has no mapping
// for (e.g. "invalidate", "drop").
func (e *ChangeStreamExtractor) eventToChange(ev changeEvent) (types.Change, bool, error) {
	if ev.ClusterTime.T != 0 {
		e.clusterTime = time.Unix(int64(ev.ClusterTime.T), 0).UTC()
	}

	switch ev.OperationType {
	case "insert", "replace", "update":
		if ev.FullDocument == nil {
			return types.Change{}, false, nil
		}
		row, err := docToRow(ev.Namespace.Collection, ev.FullDocument)
		if err != nil {
			return types.Change{}, false, err
		}
		return types.Update(row), true, nil
	case "delete":
		idRaw, ok := ev.DocumentKey["_id"]
		if !ok {
			return types.Change{}, false, fmt.Errorf("%w: delete event missing documentKey._id", errs.ErrProtocol)
		}
		id, err := idString(idRaw)
		if err != nil {
			return types.Change{}, false, err
		}
		return types.Delete(ev.Namespace.Collection, []string{"id"}, map[string]types.TypedValue{"id": types.Text(id)}), true, nil
	default:
		return types.Change{}, false, nil
	}
}
