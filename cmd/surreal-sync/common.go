package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/surrealdb/surreal-sync/pkg/checkpoint"
	"github.com/surrealdb/surreal-sync/pkg/events"
	"github.com/surrealdb/surreal-sync/pkg/sink"
)

// addTargetFlags registers the flags every subcommand needs to open a sink
// connection.
func addTargetFlags(cmd *cobra.Command) {
	cmd.Flags().String("to-endpoint", "http://localhost:8000", "Target SurrealDB RPC endpoint")
	cmd.Flags().String("to-namespace", "", "Target namespace")
	cmd.Flags().String("to-database", "", "Target database")
	cmd.Flags().String("to-username", "root", "Target username")
	cmd.Flags().String("to-password", "root", "Target password")
	cmd.Flags().String("sink-version", "", "Force target SDK generation (v2, v3); empty auto-detects")
	cmd.Flags().Int("batch-size", 500, "Rows applied per batch before progress is committed")
	_ = cmd.MarkFlagRequired("to-namespace")
	_ = cmd.MarkFlagRequired("to-database")
}

// addCheckpointFlags registers the flags controlling where full-sync
// checkpoints are durably recorded.
func addCheckpointFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("emit-checkpoints", true, "Persist FullSyncStart/FullSyncEnd checkpoints to --checkpoint-dir")
	cmd.Flags().String("checkpoint-dir", "./surreal-sync-checkpoints", "Directory checkpoint files are written to")
}

// addIncrementalFlags registers the flags every "incremental" leaf command
// needs beyond the target/checkpoint ones.
func addIncrementalFlags(cmd *cobra.Command) {
	cmd.Flags().String("incremental-from", "", "Checkpoint string to resume from (required)")
	cmd.Flags().String("incremental-to", "", "Checkpoint string to stop at; empty runs until --timeout or cancellation")
	cmd.Flags().Int("timeout", 0, "Seconds to run before stopping; 0 means run until --incremental-to or cancellation (forever for streaming sources)")
	_ = cmd.MarkFlagRequired("incremental-from")
}

func sinkOptionsFromFlags(cmd *cobra.Command) (sink.Options, sink.Version, error) {
	endpoint, _ := cmd.Flags().GetString("to-endpoint")
	namespace, _ := cmd.Flags().GetString("to-namespace")
	database, _ := cmd.Flags().GetString("to-database")
	username, _ := cmd.Flags().GetString("to-username")
	password, _ := cmd.Flags().GetString("to-password")
	batchSize, _ := cmd.Flags().GetInt("batch-size")
	versionFlag, _ := cmd.Flags().GetString("sink-version")

	var version sink.Version
	switch versionFlag {
	case "":
		version = ""
	case string(sink.VersionV2):
		version = sink.VersionV2
	case string(sink.VersionV3):
		version = sink.VersionV3
	default:
		return sink.Options{}, "", fmt.Errorf("invalid --sink-version %q: must be v2, v3, or empty", versionFlag)
	}

	return sink.Options{
		Endpoint:  endpoint,
		Namespace: namespace,
		Database:  database,
		Username:  username,
		Password:  password,
		BatchSize: batchSize,
	}, version, nil
}

func checkpointStoreFromFlags(cmd *cobra.Command) (checkpoint.Store, bool, error) {
	emit, _ := cmd.Flags().GetBool("emit-checkpoints")
	if !emit {
		return noopStore{}, false, nil
	}
	dir, _ := cmd.Flags().GetString("checkpoint-dir")
	store, err := checkpoint.NewFileStore(dir)
	if err != nil {
		return nil, false, fmt.Errorf("open checkpoint store %s: %w", dir, err)
	}
	return store, true, nil
}

// noopStore discards checkpoints when --emit-checkpoints=false. RunFullSync
// always needs a Store, so this keeps the CLI flag meaningful without
// pushing a nil check into the driver.
type noopStore struct{}

func (noopStore) Emit(ctx context.Context, phase checkpoint.Phase, cp checkpoint.Checkpoint) error {
	return nil
}

func (noopStore) ReadFirst(ctx context.Context, phase checkpoint.Phase) (checkpoint.Checkpoint, error) {
	return checkpoint.Checkpoint{}, &checkpoint.ErrNoCheckpoint{Phase: phase}
}

func (noopStore) List(ctx context.Context) ([]checkpoint.CheckpointFile, error) {
	return nil, nil
}

func incrementalFromFlags(cmd *cobra.Command) (from, to checkpoint.Checkpoint, deadline time.Time, err error) {
	fromStr, _ := cmd.Flags().GetString("incremental-from")
	from, err = checkpoint.Parse(fromStr)
	if err != nil {
		return checkpoint.Checkpoint{}, checkpoint.Checkpoint{}, time.Time{}, fmt.Errorf("--incremental-from: %w", err)
	}

	toStr, _ := cmd.Flags().GetString("incremental-to")
	if toStr != "" {
		to, err = checkpoint.Parse(toStr)
		if err != nil {
			return checkpoint.Checkpoint{}, checkpoint.Checkpoint{}, time.Time{}, fmt.Errorf("--incremental-to: %w", err)
		}
	}

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")
	if timeoutSecs > 0 {
		deadline = time.Now().Add(time.Duration(timeoutSecs) * time.Second)
	} else {
		deadline = time.Now().AddDate(100, 0, 0)
	}
	return from, to, deadline, nil
}

// logProgress subscribes to bus and logs every lifecycle event until bus is
// stopped, giving every subcommand a progress display for free without the
// driver or extractor knowing anything about reporting.
func logProgress(bus *events.Broker) {
	sub := bus.Subscribe()
	go func() {
		for ev := range sub {
			fmt.Printf("[%s] %s %s\n", ev.Type, ev.Metadata["source"], ev.Message)
		}
	}()
}
