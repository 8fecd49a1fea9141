package checkpoint

import (
	"fmt"
	"time"
)

// Compare returns -1, 0, or 1 as a compares before, equal to, or after b,
// under the variant's monotone order: instants compare chronologically,
// sequence_ids compare numerically, LSNs compare by (segment, offset) as an
// unsigned pair, and resume tokens compare opaquely by their paired instant
// (the token bytes carry no ordering of their own). a and b must be the same
// Kind; comparing across kinds is a programmer error and returns an error
// rather than a guessed ordering.
func Compare(a, b Checkpoint) (int, error) {
	if a.Kind != b.Kind {
		return 0, fmt.Errorf("checkpoint: cannot compare %s against %s", a.Kind, b.Kind)
	}

	switch a.Kind {
	case KindNeo4j:
		return compareTime(a.AsOf, b.AsOf), nil

	case KindMongoDB:
		// Resume tokens are opaque; the paired cluster-time instant is the
		// only thing with a defined order.
		return compareTime(a.TS, b.TS), nil

	case KindPostgresTrigger, KindMySQLTrigger:
		switch {
		case a.SequenceID < b.SequenceID:
			return -1, nil
		case a.SequenceID > b.SequenceID:
			return 1, nil
		default:
			return 0, nil
		}

	case KindPostgresLogical:
		aSeg, aOff, err := parseLSN(a.LSN)
		if err != nil {
			return 0, fmt.Errorf("checkpoint: %w", err)
		}
		bSeg, bOff, err := parseLSN(b.LSN)
		if err != nil {
			return 0, fmt.Errorf("checkpoint: %w", err)
		}
		if aSeg != bSeg {
			if aSeg < bSeg {
				return -1, nil
			}
			return 1, nil
		}
		switch {
		case aOff < bOff:
			return -1, nil
		case aOff > bOff:
			return 1, nil
		default:
			return 0, nil
		}

	case KindKafka:
		return 0, fmt.Errorf("checkpoint: kafka checkpoints are not comparable, offsets are per-partition")

	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCheckpointKind, a.Kind)
	}
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	default:
		return 0
	}
}
