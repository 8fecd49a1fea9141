// Package mysql implements the MySQL trigger-based audit-table change
// extractor, the same shape as the PostgreSQL trigger
// extractor adapted to MySQL's type system and information_schema surface.
package mysql

import "time"

// Config configures the trigger extractor.
type Config struct {
	ConnectionString string
	Database         string
	Tables           []string
	BatchSize        int
	BufferSize       int
	PollInterval     time.Duration
	StrictSchema     bool

	// BooleanPaths lists additional "table.column" pairs that should be
	// treated as Bool even though MySQL doesn't report them as
	// TINYINT(1); lets an operator configure JSON paths as boolean
	// overrides.
	BooleanPaths []string
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

func (c Config) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return time.Second
	}
	return c.PollInterval
}

func (c Config) booleanOverride(table, column string) bool {
	needle := table + "." + column
	for _, p := range c.BooleanPaths {
		if p == needle {
			return true
		}
	}
	return false
}
