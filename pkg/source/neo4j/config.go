// Package neo4j implements the full-sync-only Neo4j extractor (spec
// §4.C.5): one Change::Insert per node, label-as-table and
// properties-as-columns, plus a best-effort timestamp-filtered incremental
// mode.
package neo4j

// Config configures the Neo4j extractor.
type Config struct {
	URI      string
	Username string
	Password string
	Database string

	// Labels restricts the scan to these node labels; empty means every
	// label present in the graph.
	Labels []string

	BatchSize  int
	BufferSize int

	// AsOfProperty names the timestamp property incremental mode filters on
	// (e.g. "updated_at"). Best-effort: nodes whose writer never bumped this
	// property are invisible to incremental sync.
	AsOfProperty string
}

func (c Config) batchSize() int {
	if c.BatchSize <= 0 {
		return 500
	}
	return c.BatchSize
}

func (c Config) bufferSize() int {
	if c.BufferSize <= 0 {
		return 1000
	}
	return c.BufferSize
}
