// Package reconcile keeps a client's local copy of its bookmark list
// consistent with the server while results arrive from two unordered
// sources: direct responses to the client's own requests and the change
// feed. A Replica is not safe for concurrent use; it is meant to be owned
// by a single event loop.
package reconcile

import (
	"go.mongodb.org/mongo-driver/bson/primitive"

	"folios/internal/models"
)

// State is the lifecycle position of one bookmark id in a Replica.
type State int

const (
	Absent State = iota
	Visible
	PendingDeletion
)

func (s State) String() string {
	switch s {
	case Visible:
		return "visible"
	case PendingDeletion:
		return "pending-deletion"
	default:
		return "absent"
	}
}

// Entry is a bookmark as shown to the user.
type Entry struct {
	Bookmark models.Bookmark
	// Pending is set while a delete of this bookmark is in flight.
	Pending bool
}

type Replica struct {
	byID  map[primitive.ObjectID]*Entry
	order []primitive.ObjectID // newest first
}

// NewReplica seeds the replica from a list response. Later duplicates of
// an id are ignored.
func NewReplica(initial []models.Bookmark) *Replica {
	r := &Replica{
		byID:  make(map[primitive.ObjectID]*Entry, len(initial)),
		order: make([]primitive.ObjectID, 0, len(initial)),
	}
	for _, b := range initial {
		if _, ok := r.byID[b.ID]; ok {
			continue
		}
		r.byID[b.ID] = &Entry{Bookmark: b}
		r.order = append(r.order, b.ID)
	}
	return r
}

// ApplyInsert prepends b unless its id is already held. It reports whether
// the replica changed.
func (r *Replica) ApplyInsert(b models.Bookmark) bool {
	if _, ok := r.byID[b.ID]; ok {
		return false
	}
	r.byID[b.ID] = &Entry{Bookmark: b}
	r.order = append([]primitive.ObjectID{b.ID}, r.order...)
	return true
}

// ApplyDelete removes id if present, whether or not it is pending.
func (r *Replica) ApplyDelete(id primitive.ObjectID) bool {
	if _, ok := r.byID[id]; !ok {
		return false
	}
	delete(r.byID, id)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

func (r *Replica) Apply(ev models.ChangeEvent) bool {
	switch ev.Kind {
	case models.ChangeInsert:
		return r.ApplyInsert(ev.Bookmark)
	case models.ChangeDelete:
		return r.ApplyDelete(ev.Bookmark.ID)
	default:
		return false
	}
}

// MarkPending moves a visible bookmark to pending deletion.
func (r *Replica) MarkPending(id primitive.ObjectID) bool {
	e, ok := r.byID[id]
	if !ok || e.Pending {
		return false
	}
	e.Pending = true
	return true
}

// ClearPending rolls a pending deletion back to visible.
func (r *Replica) ClearPending(id primitive.ObjectID) bool {
	e, ok := r.byID[id]
	if !ok || !e.Pending {
		return false
	}
	e.Pending = false
	return true
}

func (r *Replica) State(id primitive.ObjectID) State {
	e, ok := r.byID[id]
	switch {
	case !ok:
		return Absent
	case e.Pending:
		return PendingDeletion
	default:
		return Visible
	}
}

// Entries returns a copy of the replica in display order.
func (r *Replica) Entries() []Entry {
	out := make([]Entry, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.byID[id])
	}
	return out
}

func (r *Replica) Len() int {
	return len(r.order)
}
