// Package mongodb implements the MongoDB change-stream extractor (spec
// §4.C.4): a full-collection scan for full sync and a resumable change
// stream, keyed on the document's _id, for incremental sync.
package mongodb

import "time"

// Config configures the MongoDB extractor.
type Config struct {
	ConnectionString string
	Database         string
	Collections      []string
	BatchSize        int
	BufferSize       int

	// MaxAwaitTime bounds how long a change-stream Next() call blocks
	// waiting for the next event before the extractor re-checks ctx.
	MaxAwaitTime time.Duration
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

func (c Config) maxAwaitTime() time.Duration {
	if c.MaxAwaitTime <= 0 {
		return 2 * time.Second
	}
	return c.MaxAwaitTime
}
