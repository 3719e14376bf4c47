package models

type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeDelete ChangeKind = "delete"
)

// ChangeEvent is a single entry of a user's change feed. For deletes only
// Bookmark.ID is guaranteed to be set.
type ChangeEvent struct {
	Kind     ChangeKind `json:"kind"`
	Bookmark Bookmark   `json:"bookmark"`
}
