package checkpoint

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeParseRoundTrip(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		cp   Checkpoint
		want string
	}{
		{
			name: "neo4j",
			cp:   Neo4jCheckpoint(ts),
			want: "neo4j:2026-03-01T12:00:00Z",
		},
		{
			name: "postgresql trigger",
			cp:   PostgresTriggerCheckpoint(42, ts),
			want: "postgresql:sequence:42",
		},
		{
			name: "mysql trigger",
			cp:   MySQLTriggerCheckpoint(7, ts),
			want: "mysql:sequence:7",
		},
		{
			name: "postgresql logical",
			cp:   PostgresLogicalCheckpoint("0/1A2B3C"),
			want: "postgresql-logical:0/1A2B3C",
		},
		{
			name: "mongodb",
			cp:   MongoDBCheckpoint([]byte("resume-token-bytes"), ts),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Serialize(tt.cp)
			require.NoError(t, err)
			if tt.want != "" {
				assert.Equal(t, tt.want, s)
			}

			parsed, err := Parse(s)
			require.NoError(t, err)
			assert.Equal(t, tt.cp.Kind, parsed.Kind)

			switch tt.cp.Kind {
			case KindNeo4j:
				assert.True(t, tt.cp.AsOf.Equal(parsed.AsOf))
			case KindMongoDB:
				assert.Equal(t, tt.cp.ResumeToken, parsed.ResumeToken)
				assert.True(t, tt.cp.TS.Equal(parsed.TS))
			case KindPostgresTrigger, KindMySQLTrigger:
				assert.Equal(t, tt.cp.SequenceID, parsed.SequenceID)
			case KindPostgresLogical:
				assert.Equal(t, tt.cp.LSN, parsed.LSN)
			}
		})
	}
}

func TestParseUnknownKind(t *testing.T) {
	_, err := Parse("redis:something")
	assert.ErrorIs(t, err, ErrUnknownCheckpointKind)
}

func TestParseMalformed(t *testing.T) {
	tests := []string{
		"neo4j:not-a-timestamp",
		"postgresql:not-sequence:42",
		"postgresql-logical:not-an-lsn",
		"mongodb:only-one-field",
	}
	for _, s := range tests {
		_, err := Parse(s)
		assert.Error(t, err, s)
	}
}

func TestSerializeKafkaRejected(t *testing.T) {
	_, err := Serialize(KafkaCheckpoint(map[int32]int64{0: 10}))
	assert.Error(t, err)
}
