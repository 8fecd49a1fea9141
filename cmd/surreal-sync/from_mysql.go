package main

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/spf13/cobra"

	"github.com/surrealdb/surreal-sync/pkg/source/mysql"
	"github.com/surrealdb/surreal-sync/pkg/syncmanager"
)

var fromMysqlCmd = &cobra.Command{
	Use:   "from-mysql",
	Short: "Sync from MySQL via a trigger-based audit table",
}

func init() {
	fromMysqlCmd.AddCommand(mysqlFullCmd, mysqlIncrementalCmd)

	for _, cmd := range []*cobra.Command{mysqlFullCmd, mysqlIncrementalCmd} {
		cmd.Flags().String("connection-string", "", "MySQL DSN, e.g. user:pass@tcp(host:3306)/ (required)")
		cmd.Flags().String("database", "", "Database to track (required)")
		cmd.Flags().StringSlice("tables", nil, "Tracked tables; empty means every table in --database")
		cmd.Flags().StringSlice("boolean-paths", nil, "table.column pairs forced to Bool despite not being TINYINT(1)")
		cmd.Flags().Bool("strict-schema", false, "Fail instead of downgrading unmappable column types to text")
		addTargetFlags(cmd)
		addCheckpointFlags(cmd)
		_ = cmd.MarkFlagRequired("connection-string")
		_ = cmd.MarkFlagRequired("database")
	}
	mysqlIncrementalCmd.Flags().Duration("poll-interval", time.Second, "Audit table poll cadence")
	mysqlIncrementalCmd.Flags().Duration("audit-gc-interval", 0, "Audit table garbage collection cadence; 0 uses the default")
	addIncrementalFlags(mysqlIncrementalCmd)
}

func mysqlConfigFromFlags(cmd *cobra.Command) mysql.Config {
	connStr, _ := cmd.Flags().GetString("connection-string")
	database, _ := cmd.Flags().GetString("database")
	tables, _ := cmd.Flags().GetStringSlice("tables")
	booleanPaths, _ := cmd.Flags().GetStringSlice("boolean-paths")
	strict, _ := cmd.Flags().GetBool("strict-schema")
	batchSize, _ := cmd.Flags().GetInt("batch-size")

	return mysql.Config{
		ConnectionString: connStr,
		Database:         database,
		Tables:           tables,
		BatchSize:        batchSize,
		StrictSchema:     strict,
		BooleanPaths:     booleanPaths,
	}
}

func openMysqlDB(connStr string) (*sql.DB, error) {
	db, err := sql.Open("mysql", connStr)
	if err != nil {
		return nil, fmt.Errorf("connect to mysql: %w", err)
	}
	return db, nil
}

var mysqlFullCmd = &cobra.Command{
	Use:   "full",
	Short: "Run a consistent initial snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := mysqlConfigFromFlags(cmd)

		db, err := openMysqlDB(cfg.ConnectionString)
		if err != nil {
			return err
		}
		defer db.Close()

		extractor := mysql.NewTriggerExtractor(db, cfg)

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
			SourceName:          "mysql",
			BatchSize:           sinkOpts.BatchSize,
			SinkOpts:            sinkOpts,
			SinkVersionOverride: sinkVersion,
		})
	},
}

var mysqlIncrementalCmd = &cobra.Command{
	Use:   "incremental",
	Short: "Resume change capture from a checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := mysqlConfigFromFlags(cmd)
		cfg.PollInterval, _ = cmd.Flags().GetDuration("poll-interval")

		db, err := openMysqlDB(cfg.ConnectionString)
		if err != nil {
			return err
		}
		defer db.Close()

		extractor := mysql.NewTriggerExtractor(db, cfg)

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
		gc := mgr.StartAuditGC("mysql", extractor, gcInterval)
		defer gc.Stop()

		return mgr.RunIncremental(ctx, extractor, store, syncmanager.IncrementalOptions{
			SourceName:          "mysql",
			BatchSize:           sinkOpts.BatchSize,
			SinkOpts:            sinkOpts,
			SinkVersionOverride: sinkVersion,
			From:                from,
			To:                  to,
			Deadline:            deadline,
		})
	},
}
