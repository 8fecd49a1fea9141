package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInsertUpdateDelete(t *testing.T) {
	row := Row{
		Table:      "orders",
		PrimaryKey: []string{"id"},
		Columns: map[string]TypedValue{
			"id":     Bool(true),
			"amount": Text("9.99"),
		},
	}

	ins := Insert(row)
	assert.Equal(t, OpInsert, ins.Op)
	assert.Equal(t, row, ins.Row)

	upd := Update(row)
	assert.Equal(t, OpUpdate, upd.Op)

	del := Delete("orders", []string{"id"}, map[string]TypedValue{"id": Text("42")})
	assert.Equal(t, OpDelete, del.Op)
	assert.Equal(t, "orders", del.Table)
	assert.Equal(t, []string{"id"}, del.PrimaryKey)
}

func TestBeginCommit(t *testing.T) {
	ts := time.Unix(1700000000, 0).UTC()

	b := Begin("tx-1", ts)
	assert.Equal(t, OpBegin, b.Op)
	assert.Equal(t, "tx-1", b.TxID)
	assert.Equal(t, ts, b.TS)

	c := Commit("tx-1", ts, "lsn:0/1A2B3C")
	assert.Equal(t, OpCommit, c.Op)
	assert.Equal(t, "lsn:0/1A2B3C", c.NextCheckpoint)
}
