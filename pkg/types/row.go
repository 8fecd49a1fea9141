package types

import "time"

// Row is a full record from a source table, keyed by its source-reported
// primary key column(s).
type Row struct {
	Table      string
	PrimaryKey []string
	Columns    map[string]TypedValue
}

// ChangeOp identifies which variant of the Change tagged union is populated.
type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
	OpBegin  ChangeOp = "begin"
	OpCommit ChangeOp = "commit"
)

// Change is a single unit handed from an extractor to the driver. Exactly
// the fields relevant to Op are populated; the rest are zero. Begin/Commit
// carry no row payload and exist so a sink can choose to group Insert/Update/
// Delete changes between them into one transactional apply.
type Change struct {
	Op ChangeOp

	// Insert, Update
	Row Row

	// Delete
	Table      string
	PrimaryKey []string
	DeletedKey map[string]TypedValue

	// Begin, Commit
	TxID string
	TS   time.Time

	// Commit only: the LSN/offset/resume-token the checkpoint should advance
	// to once this transaction's changes are durably applied.
	NextCheckpoint string
}

// Insert builds an insert Change.
func Insert(row Row) Change {
	return Change{Op: OpInsert, Row: row}
}

// Update builds an update Change.
func Update(row Row) Change {
	return Change{Op: OpUpdate, Row: row}
}

// Delete builds a delete Change. key identifies the deleted row by its
// primary key column values; the source may not always be able to supply
// the full prior row.
func Delete(table string, primaryKey []string, key map[string]TypedValue) Change {
	return Change{Op: OpDelete, Table: table, PrimaryKey: primaryKey, DeletedKey: key}
}

// PrimaryKeyValue renders r's declared primary key column(s) as the single
// TypedValue the sink keys on: the bare column value for a single-column
// key, or an array value for a composite one. The sink treats the result
// opaquely.
func (r Row) PrimaryKeyValue() TypedValue {
	return CompositeKey(r.PrimaryKey, r.Columns)
}

// CompositeKey builds the TypedValue a driver keys a row or a delete on,
// given the ordered key column names and the column values they index into.
// A single-column key returns that column's value unwrapped; two or more
// columns are packed into an array value, one element per column in order.
func CompositeKey(columns []string, values map[string]TypedValue) TypedValue {
	if len(columns) == 1 {
		return values[columns[0]]
	}
	elems := make([]TypedValue, len(columns))
	var elem UniversalType = TextType{}
	for i, c := range columns {
		elems[i] = values[c]
		if i == 0 {
			elem = values[c].Type
		}
	}
	return Array(elem, elems)
}

// Begin builds a begin Change marking the start of a source transaction.
func Begin(txID string, ts time.Time) Change {
	return Change{Op: OpBegin, TxID: txID, TS: ts}
}

// Commit builds a commit Change marking the end of a source transaction.
// nextCheckpoint is the source's wire-format position once this transaction
// is fully applied; it may be empty if the source has no per-transaction
// position (e.g. a trigger-based audit table commits at row granularity).
func Commit(txID string, ts time.Time, nextCheckpoint string) Change {
	return Change{Op: OpCommit, TxID: txID, TS: ts, NextCheckpoint: nextCheckpoint}
}
