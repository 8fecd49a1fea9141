package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/surrealdb/surreal-sync/pkg/source/mongodb"
	"github.com/surrealdb/surreal-sync/pkg/syncmanager"
)

var fromMongodbCmd = &cobra.Command{
	Use:   "from-mongodb",
	Short: "Sync from MongoDB via change streams",
}

func init() {
	fromMongodbCmd.AddCommand(mongodbFullCmd, mongodbIncrementalCmd)

	for _, cmd := range []*cobra.Command{mongodbFullCmd, mongodbIncrementalCmd} {
		cmd.Flags().String("connection-string", "", "MongoDB connection string (required)")
		cmd.Flags().String("database", "", "Database to track (required)")
		cmd.Flags().StringSlice("collections", nil, "Tracked collections; empty means every collection in --database")
		addTargetFlags(cmd)
		addCheckpointFlags(cmd)
		_ = cmd.MarkFlagRequired("connection-string")
		_ = cmd.MarkFlagRequired("database")
	}
	addIncrementalFlags(mongodbIncrementalCmd)
}

func mongodbConfigFromFlags(cmd *cobra.Command) mongodb.Config {
	connStr, _ := cmd.Flags().GetString("connection-string")
	database, _ := cmd.Flags().GetString("database")
	collections, _ := cmd.Flags().GetStringSlice("collections")
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	return mongodb.Config{
		ConnectionString: connStr,
		Database:         database,
		Collections:      collections,
		BatchSize:        batchSize,
	}
}

func openMongoClient(ctx context.Context, connStr string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(connStr))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}
	return client, nil
}

var mongodbFullCmd = &cobra.Command{
	Use:   "full",
	Short: "Run a consistent initial snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := mongodbConfigFromFlags(cmd)

		client, err := openMongoClient(ctx, cfg.ConnectionString)
		if err != nil {
			return err
		}
		defer client.Disconnect(ctx)

		extractor := mongodb.NewChangeStreamExtractor(client, cfg)

		sinkOpts, sinkVersion, err := sinkOptionsFromFlags(cmd)
		if err != nil {
			return err
		}
		store, _, err := checkpointStoreFromFlags(cmd)
		if err != nil {
			return err
		}

		mgr := syncmanager.New()
		defer mgr.Close()
		logProgress(mgr.Events())

		return mgr.RunFull(ctx, extractor, store, syncmanager.FullOptions{
			SourceName:          "mongodb",
			BatchSize:           sinkOpts.BatchSize,
			SinkOpts:            sinkOpts,
			SinkVersionOverride: sinkVersion,
		})
	},
}

var mongodbIncrementalCmd = &cobra.Command{
	Use:   "incremental",
	Short: "Resume change capture from a resume token",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := mongodbConfigFromFlags(cmd)

		client, err := openMongoClient(ctx, cfg.ConnectionString)
		if err != nil {
			return err
		}
		defer client.Disconnect(ctx)

		extractor := mongodb.NewChangeStreamExtractor(client, cfg)

		from, to, deadline, err := incrementalFromFlags(cmd)
		if err != nil {
			return err
		}
		sinkOpts, sinkVersion, err := sinkOptionsFromFlags(cmd)
		if err != nil {
			return err
		}
		store, _, err := checkpointStoreFromFlags(cmd)
		if err != nil {
			return err
		}

		mgr := syncmanager.New()
		defer mgr.Close()
		logProgress(mgr.Events())

		return mgr.RunIncremental(ctx, extractor, store, syncmanager.IncrementalOptions{
			SourceName:          "mongodb",
			BatchSize:           sinkOpts.BatchSize,
			SinkOpts:            sinkOpts,
			SinkVersionOverride: sinkVersion,
			From:                from,
			To:                  to,
			Deadline:            deadline,
		})
	},
}
