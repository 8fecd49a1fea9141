package checkpoint

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownCheckpointKind is returned by Parse when the checkpoint string's
// prefix does not match any known variant.
var ErrUnknownCheckpointKind = errors.New("checkpoint: unknown checkpoint kind")

// Serialize renders cp to its canonical ASCII wire form:
//
//	"neo4j:<rfc3339>"
//	"mongodb:<base64-token>:<rfc3339>"
//	"postgresql:sequence:<int>"
//	"mysql:sequence:<int>"
//	"postgresql-logical:<lsn>"
//
// Kafka checkpoints are never persisted to the wire form; offsets are held
// by the consumer group. Serialize returns an error if called on one.
func Serialize(cp Checkpoint) (string, error) {
	switch cp.Kind {
	case KindNeo4j:
		return fmt.Sprintf("%s:%s", KindNeo4j, cp.AsOf.UTC().Format(time.RFC3339)), nil
	case KindMongoDB:
		token := base64.StdEncoding.EncodeToString(cp.ResumeToken)
		return fmt.Sprintf("%s:%s:%s", KindMongoDB, token, cp.TS.UTC().Format(time.RFC3339)), nil
	case KindPostgresTrigger:
		return fmt.Sprintf("%s:sequence:%d", KindPostgresTrigger, cp.SequenceID), nil
	case KindMySQLTrigger:
		return fmt.Sprintf("%s:sequence:%d", KindMySQLTrigger, cp.SequenceID), nil
	case KindPostgresLogical:
		return fmt.Sprintf("%s:%s", KindPostgresLogical, cp.LSN), nil
	case KindKafka:
		return "", fmt.Errorf("checkpoint: kafka checkpoints are not serializable, offsets are broker-managed")
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCheckpointKind, cp.Kind)
	}
}

// Parse parses a canonical wire-form string back into a Checkpoint. Parsing
// is strict: an unrecognized prefix returns ErrUnknownCheckpointKind, and a
// malformed payload for a recognized prefix returns a wrapping error.
func Parse(s string) (Checkpoint, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return Checkpoint{}, fmt.Errorf("%w: %q", ErrUnknownCheckpointKind, s)
	}
	kind, rest := parts[0], parts[1]

	switch Kind(kind) {
	case KindNeo4j:
		ts, err := time.Parse(time.RFC3339, rest)
		if err != nil {
			return Checkpoint{}, fmt.Errorf("checkpoint: invalid neo4j timestamp %q: %w", rest, err)
		}
		return Neo4jCheckpoint(ts), nil

	case KindMongoDB:
		fields := strings.SplitN(rest, ":", 2)
		if len(fields) != 2 {
			return Checkpoint{}, fmt.Errorf("checkpoint: malformed mongodb checkpoint %q", s)
		}
		token, err := base64.StdEncoding.DecodeString(fields[0])
		if err != nil {
			return Checkpoint{}, fmt.Errorf("checkpoint: invalid mongodb resume token: %w", err)
		}
		ts, err := time.Parse(time.RFC3339, fields[1])
		if err != nil {
			return Checkpoint{}, fmt.Errorf("checkpoint: invalid mongodb timestamp %q: %w", fields[1], err)
		}
		return MongoDBCheckpoint(token, ts), nil

	case KindPostgresTrigger, KindMySQLTrigger:
		fields := strings.SplitN(rest, ":", 2)
		if len(fields) != 2 || fields[0] != "sequence" {
			return Checkpoint{}, fmt.Errorf("checkpoint: malformed %s checkpoint %q", kind, s)
		}
		seq, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return Checkpoint{}, fmt.Errorf("checkpoint: invalid sequence_id %q: %w", fields[1], err)
		}
		if Kind(kind) == KindPostgresTrigger {
			return PostgresTriggerCheckpoint(seq, time.Time{}), nil
		}
		return MySQLTriggerCheckpoint(seq, time.Time{}), nil

	case KindPostgresLogical:
		if _, _, err := parseLSN(rest); err != nil {
			return Checkpoint{}, fmt.Errorf("checkpoint: invalid lsn %q: %w", rest, err)
		}
		return PostgresLogicalCheckpoint(rest), nil

	default:
		return Checkpoint{}, fmt.Errorf("%w: %q", ErrUnknownCheckpointKind, kind)
	}
}

// parseLSN splits a "segment/offset" hex-pair LSN string into its two
// components for comparison.
func parseLSN(lsn string) (segment, offset uint64, err error) {
	parts := strings.SplitN(lsn, "/", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected \"segment/offset\", got %q", lsn)
	}
	segment, err = strconv.ParseUint(parts[0], 16, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid segment %q: %w", parts[0], err)
	}
	offset, err = strconv.ParseUint(parts[1], 16, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid offset %q: %w", parts[1], err)
	}
	return segment, offset, nil
}
