package models

import "encoding/json"

// Entity names a watched backend collection.
type Entity string

const (
	EntityComment Entity = "comment"
	EntityMessage Entity = "message"
	EntityProfile Entity = "profile"
)

// Op is the kind of change a backend committed.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// ChangeEvent is an asynchronous notification from the backend describing an
// insert/update/delete on a watched collection. Delivery is at least once;
// ordering is guaranteed per entity only, so consumers must apply events
// idempotently.
type ChangeEvent struct {
	Entity Entity          `json:"entity"`
	Op     Op              `json:"operation"`
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`
}

// CommentAfter decodes the post-change comment snapshot.
func (e ChangeEvent) CommentAfter() (Comment, error) {
	var c Comment
	err := json.Unmarshal(e.After, &c)
	return c, err
}

// CommentBefore decodes the pre-change comment snapshot.
func (e ChangeEvent) CommentBefore() (Comment, error) {
	var c Comment
	err := json.Unmarshal(e.Before, &c)
	return c, err
}

// NewCommentEvent builds a comment change event with the snapshots marshalled
// into place. Used by feed producers and tests.
func NewCommentEvent(op Op, before, after *Comment) ChangeEvent {
	ev := ChangeEvent{Entity: EntityComment, Op: op}
	if before != nil {
		ev.Before, _ = json.Marshal(before)
	}
	if after != nil {
		ev.After, _ = json.Marshal(after)
	}
	return ev
}
