package join

import (
	"github.com/emirpasic/gods/maps/treemap"
	"github.com/spirit-labs/streamjoin/types"
)

const (
	joinRowOverhead   = 48
	joinEntryOverhead = 96
)

// JoinRow is a stored row and the number of live opposite side rows it currently joins with.
type JoinRow struct {
	Row    []any
	Degree uint64
	pkKey  string
}

func (r *JoinRow) IsZeroDegree() bool {
	return r.Degree == 0
}

func (r *JoinRow) size() int {
	s := joinRowOverhead + len(r.pkKey)
	for _, d := range r.Row {
		s += types.DatumSize(d)
	}
	return s
}

type entryState int

const (
	entryClean entryState = iota
	entryDirty
)

// JoinEntryState holds every row stored under one join key, ordered by the row pk.
type JoinEntryState struct {
	rows  *treemap.Map
	bytes int
	vnode uint16
	state entryState
}

// newJoinEntryState creates an empty entry. Its size starts at the cost of caching the key, so keys that
// match nothing still count against the memory target.
func newJoinEntryState(vnode uint16, keyLen int) *JoinEntryState {
	return &JoinEntryState{rows: treemap.NewWithStringComparator(), vnode: vnode, bytes: joinEntryOverhead + keyLen}
}

func (e *JoinEntryState) insert(jr *JoinRow) bool {
	if _, exists := e.rows.Get(jr.pkKey); exists {
		return false
	}
	e.rows.Put(jr.pkKey, jr)
	e.bytes += jr.size()
	return true
}

func (e *JoinEntryState) remove(pkKey string) (*JoinRow, bool) {
	v, ok := e.rows.Get(pkKey)
	if !ok {
		return nil, false
	}
	e.rows.Remove(pkKey)
	jr := v.(*JoinRow) //nolint:forcetypeassert
	e.bytes -= jr.size()
	return jr, true
}

// Rows returns the rows in pk order.
func (e *JoinEntryState) Rows() []*JoinRow {
	res := make([]*JoinRow, 0, e.rows.Size())
	it := e.rows.Iterator()
	for it.Next() {
		res = append(res, it.Value().(*JoinRow)) //nolint:forcetypeassert
	}
	return res
}

func (e *JoinEntryState) Len() int {
	return e.rows.Size()
}

// Bytes is the estimated heap size of the entry and its rows.
func (e *JoinEntryState) Bytes() int {
	return e.bytes
}

func (e *JoinEntryState) IsDirty() bool {
	return e.state == entryDirty
}
