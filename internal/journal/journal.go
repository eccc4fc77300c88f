// Package journal records undo entries for ledger state so that a failed
// operation leaves no partial effects. Components write through Set and
// SetEntry; the outermost End either commits (drops the entries) or replays
// them in reverse.
//
// Values stored through the journal must be treated as immutable: replace a
// *uint256.Int, never mutate it in place, or the undo entry would observe the
// mutation.
package journal

import "errors"

var ErrReentrantCall = errors.New("reentrant call")

// Journal is not safe for concurrent use; callers serialize operations.
type Journal struct {
	entries []func()
	depth   int
}

func New() *Journal {
	return &Journal{}
}

// Begin opens a (possibly nested) atomic section and returns its revert point.
func (j *Journal) Begin() int {
	j.depth++
	return len(j.entries)
}

// End closes the section opened by Begin. A non-nil err reverts every change
// recorded since snap.
func (j *Journal) End(snap int, err error) {
	if err != nil {
		j.revertTo(snap)
	}
	j.depth--
	if j.depth <= 0 {
		j.depth = 0
		j.entries = j.entries[:0]
	}
}

// Record appends an undo function. Outside any section there is nothing to
// revert to, so the entry is dropped.
func (j *Journal) Record(undo func()) {
	if j.depth == 0 {
		return
	}
	j.entries = append(j.entries, undo)
}

// Len reports the number of uncommitted entries.
func (j *Journal) Len() int {
	return len(j.entries)
}

// Depth reports how many atomic sections are open.
func (j *Journal) Depth() int {
	return j.depth
}

func (j *Journal) revertTo(snap int) {
	for i := len(j.entries) - 1; i >= snap; i-- {
		j.entries[i]()
	}
	j.entries = j.entries[:snap]
}

// Set assigns v to *p and records the previous value.
func Set[T any](j *Journal, p *T, v T) {
	old := *p
	j.Record(func() { *p = old })
	*p = v
}

// SetEntry assigns m[k] = v and records the previous entry (or its absence).
func SetEntry[K comparable, V any](j *Journal, m map[K]V, k K, v V) {
	old, existed := m[k]
	j.Record(func() {
		if existed {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}

// Guard rejects re-entry into a component while one of its operations is
// calling out to an untrusted collaborator.
type Guard struct {
	entered bool
}

// Enter marks the component busy; the returned func releases it.
func (g *Guard) Enter() (func(), error) {
	if g.entered {
		return nil, ErrReentrantCall
	}
	g.entered = true
	return func() { g.entered = false }, nil
}

// Entered reports whether an operation is in progress.
func (g *Guard) Entered() bool {
	return g.entered
}
