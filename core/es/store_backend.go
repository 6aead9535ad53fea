package es

import "github.com/getdevflow/core-sub003/core/ds"

// RecordGroup is the slice of a batch that belongs to one aggregate.
type RecordGroup struct {
	AggregateID ID
	Records     []Record
}

// First is the playhead the group starts at.
func (g RecordGroup) First() Playhead { return g.Records[0].Playhead }

// GroupRecords splits a batch per aggregate, keeping the order of first
// appearance and the order of records within each aggregate.
func GroupRecords(records []Record) []RecordGroup {
	order := ds.NewSet[ID]()
	byID := map[ID][]Record{}
	for _, r := range records {
		order.Add(r.AggregateID)
		byID[r.AggregateID] = append(byID[r.AggregateID], r)
	}
	out := make([]RecordGroup, 0, order.Len())
	order.ForEach(func(id ID) {
		out = append(out, RecordGroup{AggregateID: id, Records: byID[id]})
	})
	return out
}

// ExpectNext is the optimistic concurrency check backends run inside their
// transaction: next is the playhead the store holds for the aggregate.
func ExpectNext(g RecordGroup, next Playhead) error {
	if first := g.First(); first != next {
		return &ConflictError{AggregateID: g.AggregateID, Expected: first, Actual: next}
	}
	return nil
}
