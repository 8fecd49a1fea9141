// Package kafka implements the streaming-only Kafka extractor (spec
// §4.C.6): a sarama consumer group decoding protobuf payloads against a
// user-supplied .proto schema, with batched manual-commit semantics.
package kafka

import "time"

// Config configures the Kafka extractor. There is no full-sync variant:
// Kafka is incremental-only.
type Config struct {
	Brokers       []string
	GroupID       string
	Topic         string
	ProtoFilePath string
	MessageType   string

	// UseMessageKeyAsID uses the Kafka message key (base64-encoded if
	// binary) as the row's primary key. When false, IDField names a field
	// of the decoded payload instead.
	UseMessageKeyAsID bool
	IDField           string

	BatchSize    int
	BufferSize   int
	PollTimeout  time.Duration
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

func (c Config) pollTimeout() time.Duration {
	if c.PollTimeout <= 0 {
		return 3 * time.Second
	}
	return c.PollTimeout
}
