package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/surrealdb/surreal-sync/pkg/pgstate"
	"github.com/surrealdb/surreal-sync/pkg/source/postgresql"
	"github.com/surrealdb/surreal-sync/pkg/syncmanager"
)

var fromPostgresqlTriggerCmd = &cobra.Command{
	Use:   "from-postgresql-trigger",
	Short: "Sync from PostgreSQL via a trigger-based audit table",
}

var fromPostgresqlLogicalCmd = &cobra.Command{
	Use:   "from-postgresql-logical",
	Short: "Sync from PostgreSQL via wal2json logical decoding",
}

func init() {
	fromPostgresqlTriggerCmd.AddCommand(pgTriggerFullCmd, pgTriggerIncrementalCmd)
	fromPostgresqlLogicalCmd.AddCommand(pgLogicalFullCmd, pgLogicalIncrementalCmd)

	for _, cmd := range []*cobra.Command{pgTriggerFullCmd, pgTriggerIncrementalCmd, pgLogicalFullCmd, pgLogicalIncrementalCmd} {
		cmd.Flags().String("connection-string", "", "PostgreSQL connection string (required)")
		cmd.Flags().StringSlice("tables", nil, "Tracked tables; empty means every table in --schema")
		cmd.Flags().String("schema", "public", "Schema to track tables in")
		cmd.Flags().Bool("strict-schema", false, "Fail instead of downgrading unmappable column types to text")
		addTargetFlags(cmd)
		addCheckpointFlags(cmd)
		_ = cmd.MarkFlagRequired("connection-string")
	}
	pgTriggerIncrementalCmd.Flags().Duration("poll-interval", time.Second, "Audit table poll cadence")
	pgTriggerIncrementalCmd.Flags().Duration("audit-gc-interval", 0, "Audit table garbage collection cadence; 0 uses the default")
	addIncrementalFlags(pgTriggerIncrementalCmd)

	pgLogicalFullCmd.Flags().String("slot", "surreal_sync", "Replication slot name")
	pgLogicalIncrementalCmd.Flags().String("slot", "surreal_sync", "Replication slot name")
	addIncrementalFlags(pgLogicalIncrementalCmd)
}

func pgConfigFromFlags(cmd *cobra.Command) postgresql.Config {
	connStr, _ := cmd.Flags().GetString("connection-string")
	tables, _ := cmd.Flags().GetStringSlice("tables")
	schema, _ := cmd.Flags().GetString("schema")
	strict, _ := cmd.Flags().GetBool("strict-schema")
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	return postgresql.Config{
		ConnectionString: connStr,
		Tables:           tables,
		Schema:           schema,
		BatchSize:        batchSize,
		StrictSchema:     strict,
	}
}

func openPgxPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to postgresql: %w", err)
	}
	return pool, nil
}

var pgTriggerFullCmd = &cobra.Command{
	Use:   "full",
	Short: "Run a consistent initial snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := pgConfigFromFlags(cmd)

		pool, err := openPgxPool(ctx, cfg.ConnectionString)
		if err != nil {
			return err
		}
		defer pool.Close()

		extractor := postgresql.NewTriggerExtractor(pool, cfg)

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
			SourceName:          "postgresql-trigger",
			BatchSize:           sinkOpts.BatchSize,
			SinkOpts:            sinkOpts,
			SinkVersionOverride: sinkVersion,
		})
	},
}

var pgTriggerIncrementalCmd = &cobra.Command{
	Use:   "incremental",
	Short: "Resume change capture from a checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := pgConfigFromFlags(cmd)
		cfg.PollInterval, _ = cmd.Flags().GetDuration("poll-interval")

		pool, err := openPgxPool(ctx, cfg.ConnectionString)
		if err != nil {
			return err
		}
		defer pool.Close()

		extractor := postgresql.NewTriggerExtractor(pool, cfg)

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

		gcInterval, _ := cmd.Flags().GetDuration("audit-gc-interval")
		gc := mgr.StartAuditGC("postgresql-trigger", extractor, gcInterval)
		defer gc.Stop()

		return mgr.RunIncremental(ctx, extractor, store, syncmanager.IncrementalOptions{
			SourceName:          "postgresql-trigger",
			BatchSize:           sinkOpts.BatchSize,
			SinkOpts:            sinkOpts,
			SinkVersionOverride: sinkVersion,
			From:                from,
			To:                  to,
			Deadline:            deadline,
		})
	},
}

var pgLogicalFullCmd = &cobra.Command{
	Use:   "full",
	Short: "Run a consistent initial snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := pgConfigFromFlags(cmd)
		slot, _ := cmd.Flags().GetString("slot")

		pool, err := openPgxPool(ctx, cfg.ConnectionString)
		if err != nil {
			return err
		}
		defer pool.Close()

		extractor := postgresql.NewLogicalExtractor(pool, postgresql.LogicalConfig{Config: cfg, Slot: slot})

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
			SourceName:          "postgresql-logical",
			BatchSize:           sinkOpts.BatchSize,
			SinkOpts:            sinkOpts,
			SinkVersionOverride: sinkVersion,
			PGStateID:           pgstate.StateIDFromConnectionString(cfg.ConnectionString, cfg.Schema, slot),
		})
	},
}

var pgLogicalIncrementalCmd = &cobra.Command{
	Use:   "incremental",
	Short: "Resume logical decoding from a checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := pgConfigFromFlags(cmd)
		slot, _ := cmd.Flags().GetString("slot")

		pool, err := openPgxPool(ctx, cfg.ConnectionString)
		if err != nil {
			return err
		}
		defer pool.Close()

		extractor := postgresql.NewLogicalExtractor(pool, postgresql.LogicalConfig{Config: cfg, Slot: slot})

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
			SourceName:          "postgresql-logical",
			BatchSize:           sinkOpts.BatchSize,
			SinkOpts:            sinkOpts,
			SinkVersionOverride: sinkVersion,
			From:                from,
			To:                  to,
			Deadline:            deadline,
			PGStateID:           pgstate.StateIDFromConnectionString(cfg.ConnectionString, cfg.Schema, slot),
		})
	},
}
