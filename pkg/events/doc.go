/*
Package events provides an in-memory event broker for surreal-sync's progress
and lifecycle notifications.

The events package implements a lightweight event bus for broadcasting sync
lifecycle events (sync start and completion, applied batches, checkpoint
persistence, failures) to interested subscribers, such as the CLI progress
printer, with asynchronous delivery.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Event Broker                   │          │
	│  │  - In-memory message bus                    │          │
	│  │  - Topic-agnostic (all events broadcast)    │          │
	│  │  - Publish waits while the buffer is full   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Event Distribution                 │          │
	│  │                                              │          │
	│  │  Publisher → Event Channel (buffer: 100)    │          │
	│  │       ↓                                      │          │
	│  │  Broadcast Loop                              │          │
	│  │       ↓                                      │          │
	│  │  Subscriber Channels (buffer: 50 each)      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Event Types                       │          │
	│  │                                              │          │
	│  │  Full sync:                                  │          │
	│  │    - full_sync.started                      │          │
	│  │    - full_sync.table_done                   │          │
	│  │    - full_sync.completed                    │          │
	│  │                                              │          │
	│  │  Incremental:                                │          │
	│  │    - incremental.started                    │          │
	│  │    - incremental.batch_applied              │          │
	│  │                                              │          │
	│  │  Checkpoint / health:                        │          │
	│  │    - checkpoint.saved                       │          │
	│  │    - extractor.reconnected                  │          │
	│  │    - sink.retrying                          │          │
	│  │    - sync.failed                            │          │
	│  └────────────────────────────────────────────┘           │
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Subscribers                      │          │
	│  │                                              │          │
	│  │  CLI: one printed line per event            │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Core Components

Event Broker:
  - Central message bus for event distribution
  - Manages subscriber lifecycle
  - Buffered publish channel (100 events); Publish waits while it is full
  - Graceful shutdown via stop channel

Event:
  - ID: Unique event identifier
  - Type: Event type (full_sync.started, sink.retrying, etc.)
  - Timestamp: When event occurred
  - Message: Human-readable description
  - Metadata: Key-value pairs (table, checkpoint, row count, ...)

Subscriber:
  - Channel that receives Event pointers
  - Buffered (50 events) to handle bursts
  - Created via broker.Subscribe(), closed via broker.Unsubscribe()

# Usage

	import "github.com/surrealdb/surreal-sync/pkg/events"

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for event := range sub {
			fmt.Printf("[%s] %s: %s\n", event.Timestamp.Format("15:04:05"), event.Type, event.Message)
		}
	}()

	broker.Publish(&events.Event{
		Type:    events.EventFullSyncTableDone,
		Message: "full sync of public.orders complete",
		Metadata: map[string]string{
			"table": "public.orders",
			"rows":  "182044",
		},
	})

# Event Types Catalog

EventFullSyncStarted / EventFullSyncCompleted:
  - Published by pkg/driver when a full sync or bulk load starts and completes
  - Metadata: source; the completion event also carries rows

EventFullSyncTableDone:
  - Defined for per-table progress; nothing in this repository publishes it

EventIncrementalStarted / EventIncrementalBatch:
  - Published by pkg/driver when an incremental sync starts and after each applied batch
  - Metadata: source; the start event carries from, the batch event carries rows
  - The batch event's Message is the checkpoint reached

EventCheckpointSaved:
  - Published by pkg/driver after a successful checkpoint Store.Emit
  - Metadata: source, phase; the Message is the checkpoint's wire form

EventExtractorReconnect / EventSinkRetrying:
  - Defined for reconnect and retry reporting; nothing in this repository publishes them

EventSyncFailed:
  - Published by pkg/driver when a sync fails (RunIncremental does not publish it
    for initialize, seek or state-transition failures)
  - Metadata: source; the Message is the error text

# Design Patterns

Buffered Publish:
  - Publish sends to a buffered channel (100 events) and returns once the event is queued
  - While that buffer is full, Publish waits for the broadcast loop to make room;
    after Stop it returns without queuing the event

Fan-Out Pattern:
  - Single event broadcast to all subscribers, each with its own channel
  - Full subscriber buffers skip the event rather than blocking the broadcaster

# Limitations

  - In-memory only, no persistence or replay
  - Best-effort delivery: a slow subscriber drops events rather than stalling the sync
  - Not a substitute for the checkpoint store — events are for observability, not
    for recovering sync progress

# See Also

  - pkg/driver for full sync and incremental sync event publication
  - cmd/surreal-sync (logProgress) for the subscriber that prints each event
*/
package events
