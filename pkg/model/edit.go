package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var ErrInvalidEdit = goerr.New("invalid edit request")

// EditType identifies the operation of a biography edit request
type EditType string

const (
	EditTypeRename        EditType = "RENAME"
	EditTypeDelete        EditType = "DELETE"
	EditTypeContentChange EditType = "CONTENT_CHANGE"
	EditTypeAdd           EditType = "ADD"
	EditTypeComment       EditType = "COMMENT"
)

// EditRequest is a single typed operation against a user's biography.
// The target section is addressed by Path; Title carries the new or
// added title for RENAME/ADD. A batch of requests is always applied in
// ascending Timestamp order.
type EditRequest struct {
	Type      EditType   `json:"type"`
	Path      string     `json:"path"`
	Title     string     `json:"title,omitempty"`
	Content   string     `json:"content,omitempty"`
	MemoryIDs []MemoryID `json:"memory_ids,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// Validate rejects malformed requests before any state is mutated
func (e *EditRequest) Validate() error {
	switch e.Type {
	case EditTypeRename:
		if e.Title == "" {
			return goerr.Wrap(ErrInvalidEdit, "rename requires a title", goerr.V("path", e.Path))
		}
	case EditTypeDelete:
		if e.Path == "" {
			return goerr.Wrap(ErrInvalidEdit, "delete requires a path")
		}
	case EditTypeContentChange:
		if e.Path == "" {
			return goerr.Wrap(ErrInvalidEdit, "content change requires a path")
		}
	case EditTypeAdd:
		if e.Title == "" {
			return goerr.Wrap(ErrInvalidEdit, "add requires a title", goerr.V("path", e.Path))
		}
	case EditTypeComment:
		if e.Content == "" {
			return goerr.Wrap(ErrInvalidEdit, "comment requires content", goerr.V("path", e.Path))
		}
	default:
		return goerr.Wrap(ErrInvalidEdit, "unknown edit type", goerr.V("type", e.Type))
	}
	return nil
}
