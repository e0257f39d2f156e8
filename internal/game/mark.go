package game

// Mark is a deferred effect. Its handler is looked up by Name in the source
// player's kit when the mark resolves.
type Mark struct {
	Name     string
	Source   Seat
	Target   Seat
	Priority int // higher resolves first
	Quantity int
}

type markEntry struct {
	mark Mark
	dead bool
}

// Queue is an arena of marks. Removal only tombstones an entry so handlers can
// cancel other marks while the queue is being drained.
type Queue struct {
	entries []markEntry
	live    int
}

// Enqueue adds m. If a live mark with the same name and target exists, m is merged
// into it when merge is set (quantities add up) and dropped otherwise.
// It reports whether a new entry was created.
func (q *Queue) Enqueue(m Mark, merge bool) bool {
	if m.Quantity <= 0 {
		m.Quantity = 1
	}
	for i := range q.entries {
		e := &q.entries[i]
		if e.dead || e.mark.Name != m.Name || e.mark.Target != m.Target {
			continue
		}
		if merge {
			e.mark.Quantity += m.Quantity
		}
		return false
	}
	q.entries = append(q.entries, markEntry{mark: m})
	q.live++
	return true
}

// Cancel tombstones every live mark named name on target and returns how many.
func (q *Queue) Cancel(name string, target Seat) int {
	n := 0
	for i := range q.entries {
		e := &q.entries[i]
		if e.dead || e.mark.Name != name || e.mark.Target != target {
			continue
		}
		e.dead = true
		q.live--
		n++
	}
	return n
}

// Pending reports whether a live mark named name targets target.
func (q *Queue) Pending(name string, target Seat) bool {
	for _, e := range q.entries {
		if !e.dead && e.mark.Name == name && e.mark.Target == target {
			return true
		}
	}
	return false
}

// Pop removes and returns the live mark with the highest priority. Equal
// priorities come out in insertion order.
func (q *Queue) Pop() (Mark, bool) {
	best := -1
	for i, e := range q.entries {
		if e.dead {
			continue
		}
		if best < 0 || e.mark.Priority > q.entries[best].mark.Priority {
			best = i
		}
	}
	if best < 0 {
		q.entries = q.entries[:0]
		return Mark{}, false
	}
	q.entries[best].dead = true
	q.live--
	return q.entries[best].mark, true
}

func (q *Queue) Len() int {
	return q.live
}

// Marks returns the live marks in insertion order.
func (q *Queue) Marks() []Mark {
	out := make([]Mark, 0, q.live)
	for _, e := range q.entries {
		if !e.dead {
			out = append(out, e.mark)
		}
	}
	return out
}
