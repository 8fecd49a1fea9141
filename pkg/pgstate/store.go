package pgstate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/surrealdb/surreal-sync/pkg/log"
)

// Record is the persisted shape of a state transition.
type Record struct {
	ID        StateID
	State     State
	UpdatedAt time.Time
}

// TargetStore is the minimal target-connection capability pgstate needs: get
// and upsert one record by key. A sink.Sink implementation (or any target
// connection) satisfies this without pgstate importing the sink package
// directly, so the state record and the replicated rows can still share one
// target connection at the call site.
type TargetStore interface {
	GetStateRecord(ctx context.Context, key string) (Record, bool, error)
	PutStateRecord(ctx context.Context, key string, rec Record) error
}

// Store is the durable PG logical-decoding state machine, backed by a
// TargetStore. Like the cluster FSM's command-dispatch, every transition is
// applied under a lock and validated before being persisted — here against a
// single record rather than a replicated log, since one sync process needs
// no distributed consensus over its own state.
type Store struct {
	mu     sync.Mutex
	target TargetStore
	logger zerolog.Logger
}

// New creates a Store backed by target.
func New(target TargetStore) *Store {
	return &Store{target: target, logger: log.WithSource("postgresql-logical")}
}

// ErrInvalidStateTransition is returned when a transition would skip a
// required phase (most importantly, Pending straight to Incremental without
// passing through Initial).
type ErrInvalidStateTransition struct {
	From State
	To   State
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("pgstate: invalid transition from %s to %s", e.From, e.To)
}

// Transition moves id's state record to "to", validating the transition
// against the current persisted state (if any).
func (s *Store) Transition(ctx context.Context, id StateID, to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := id.RecordKey()
	current, exists, err := s.target.GetStateRecord(ctx, key)
	if err != nil {
		return fmt.Errorf("pgstate: read current state: %w", err)
	}

	if exists {
		if err := validateTransition(current.State, to); err != nil {
			return err
		}
	}

	rec := Record{ID: id, State: to, UpdatedAt: time.Now().UTC()}
	if err := s.target.PutStateRecord(ctx, key, rec); err != nil {
		return fmt.Errorf("pgstate: persist state: %w", err)
	}

	s.logger.Info().
		Str("schema", id.Schema).
		Str("slot", id.Slot).
		Str("state", to.String()).
		Msg("pg logical state transitioned")
	return nil
}

// Get returns id's currently persisted state, if any.
func (s *Store) Get(ctx context.Context, id StateID) (State, bool, error) {
	rec, exists, err := s.target.GetStateRecord(ctx, id.RecordKey())
	if err != nil {
		return State{}, false, fmt.Errorf("pgstate: read state: %w", err)
	}
	return rec.State, exists, nil
}

// validateTransition enforces: Pending -> Initial, Initial -> Incremental,
// and a warned Incremental -> Pending for an operator-forced resync. Any
// other pair, including skipping Initial entirely, is rejected.
func validateTransition(from, to State) error {
	switch {
	case from.Phase == PhasePending && to.Phase == PhaseInitial:
		return nil
	case from.Phase == PhaseInitial && to.Phase == PhaseIncremental:
		return nil
	case from.Phase == PhaseIncremental && to.Phase == PhasePending:
		log.WithSource("postgresql-logical").Warn().
			Msg("resetting from incremental to pending, a full resync will occur")
		return nil
	default:
		return &ErrInvalidStateTransition{From: from, To: to}
	}
}
