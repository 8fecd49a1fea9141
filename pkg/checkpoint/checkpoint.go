// Package checkpoint implements the durable, typed checkpoint/resume
// protocol that makes the full-sync-to-incremental-sync handoff lossless.
package checkpoint

import (
	"fmt"
	"time"
)

// Phase labels an emitted checkpoint's role in the full-sync-to-incremental
// handoff. FullSyncStart is captured before the snapshot scan begins;
// FullSyncEnd is captured after it completes. Incremental sync always
// resumes from FullSyncStart so no change between the two is ever missed;
// duplicate records this produces are absorbed by idempotent upsert at the
// sink.
type Phase string

const (
	FullSyncStart Phase = "full_sync_start"
	FullSyncEnd   Phase = "full_sync_end"
)

// Kind identifies a Checkpoint variant.
type Kind string

const (
	KindNeo4j            Kind = "neo4j"
	KindMongoDB          Kind = "mongodb"
	KindPostgresTrigger  Kind = "postgresql"
	KindMySQLTrigger     Kind = "mysql"
	KindPostgresLogical  Kind = "postgresql-logical"
	KindKafka            Kind = "kafka"
)

// Checkpoint is a source-tagged sum type: exactly the fields relevant to
// Kind are populated. It is deliberately not an interface — every variant is
// a plain value and the driver and checkpoint store branch on Kind rather
// than type-asserting, mirroring the fixed variant set in the wire format.
type Checkpoint struct {
	Kind Kind

	// Neo4j
	AsOf time.Time

	// MongoDB
	ResumeToken []byte
	TS          time.Time

	// Postgres_Trigger, MySQL_Trigger
	SequenceID int64

	// Postgres_Logical
	LSN string

	// Kafka: offsets are held by the consumer group itself (manual commit),
	// never persisted through a checkpoint.Store. PartitionOffsets is
	// populated only for progress display/logging.
	PartitionOffsets map[int32]int64
}

// Neo4jCheckpoint constructs a Neo4j-variant checkpoint.
func Neo4jCheckpoint(asOf time.Time) Checkpoint {
	return Checkpoint{Kind: KindNeo4j, AsOf: asOf}
}

// MongoDBCheckpoint constructs a MongoDB-variant checkpoint.
func MongoDBCheckpoint(resumeToken []byte, ts time.Time) Checkpoint {
	return Checkpoint{Kind: KindMongoDB, ResumeToken: resumeToken, TS: ts}
}

// PostgresTriggerCheckpoint constructs a Postgres_Trigger-variant checkpoint.
func PostgresTriggerCheckpoint(sequenceID int64, ts time.Time) Checkpoint {
	return Checkpoint{Kind: KindPostgresTrigger, SequenceID: sequenceID, TS: ts}
}

// MySQLTriggerCheckpoint constructs a MySQL_Trigger-variant checkpoint.
func MySQLTriggerCheckpoint(sequenceID int64, ts time.Time) Checkpoint {
	return Checkpoint{Kind: KindMySQLTrigger, SequenceID: sequenceID, TS: ts}
}

// PostgresLogicalCheckpoint constructs a Postgres_Logical-variant checkpoint.
// lsn must already be in "segment/offset" hex-pair form.
func PostgresLogicalCheckpoint(lsn string) Checkpoint {
	return Checkpoint{Kind: KindPostgresLogical, LSN: lsn}
}

// KafkaCheckpoint constructs a Kafka-variant checkpoint for progress display.
func KafkaCheckpoint(offsets map[int32]int64) Checkpoint {
	return Checkpoint{Kind: KindKafka, PartitionOffsets: offsets}
}

// String renders the checkpoint's canonical ASCII wire form.
func (c Checkpoint) String() string {
	s, err := Serialize(c)
	if err != nil {
		return fmt.Sprintf("<invalid checkpoint: %v>", err)
	}
	return s
}
