package reminder

import (
	"container/heap"
	"time"
)

// mainDelivery marks a due entry for the reminder's own target date rather
// than one of its advance notices.
const mainDelivery = -1

// dueEntry is one pending delivery in the due queue. Entries are never
// removed when a reminder changes; they are validated against the record
// when popped and discarded if they no longer match.
type dueEntry struct {
	due        time.Time
	pos        int
	reminderID string
	advance    int
}

// dueQueue is a min-heap of due entries ordered by due time, then by the
// reminder's insertion position.
type dueQueue []dueEntry

func (q dueQueue) Len() int { return len(q) }

func (q dueQueue) Less(i, j int) bool {
	if !q[i].due.Equal(q[j].due) {
		return q[i].due.Before(q[j].due)
	}
	if q[i].pos != q[j].pos {
		return q[i].pos < q[j].pos
	}
	return q[i].advance > q[j].advance
}

func (q dueQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *dueQueue) Push(x any) { *q = append(*q, x.(dueEntry)) }

func (q *dueQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}

// popDue removes and returns every entry due at or before now.
func (q *dueQueue) popDue(now time.Time) []dueEntry {
	var out []dueEntry
	for q.Len() > 0 && !(*q)[0].due.After(now) {
		out = append(out, heap.Pop(q).(dueEntry))
	}
	return out
}

func (q *dueQueue) add(e dueEntry) { heap.Push(q, e) }
