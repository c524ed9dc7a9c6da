package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrSectionNotFound = goerr.New("section not found")
	ErrDuplicateTitle  = goerr.New("sibling section with the same title already exists")
	ErrRootImmutable   = goerr.New("root section cannot be removed or renamed")
)

// PathSeparator splits a section path into title segments.
const PathSeparator = "/"

type SectionID string

// NewSectionID generates a new unique SectionID
func NewSectionID() SectionID {
	return SectionID(uuid.New().String())
}

// Section is a node in the biography document tree. Children are kept
// in insertion order and addressed by title, so titles must be unique
// among siblings. MemoryIDs record which memories informed the
// section's content; they are references, not foreign keys, and may
// dangle after a bank rebuild.
type Section struct {
	ID          SectionID  `json:"id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	CreatedAt   time.Time  `json:"created_at"`
	LastEdit    time.Time  `json:"last_edit"`
	MemoryIDs   []MemoryID `json:"memory_ids,omitempty"`
	Comments    []string   `json:"comments,omitempty"`
	Subsections []*Section `json:"subsections,omitempty"`

	parent *Section
}

// NewSection creates a section with a fresh ID and timestamps
func NewSection(title, content string) *Section {
	now := time.Now()
	return &Section{
		ID:        NewSectionID(),
		Title:     title,
		Content:   content,
		CreatedAt: now,
		LastEdit:  now,
	}
}

// Parent returns the owning section, nil for the root
func (s *Section) Parent() *Section {
	return s.parent
}

// Child returns the direct subsection with the given title, nil if absent
func (s *Section) Child(title string) *Section {
	for _, sub := range s.Subsections {
		if sub.Title == title {
			return sub
		}
	}
	return nil
}

// Path returns the full path of the section from the root, empty for
// the root itself
func (s *Section) Path() string {
	if s.parent == nil {
		return ""
	}
	segments := []string{}
	for cur := s; cur.parent != nil; cur = cur.parent {
		segments = append([]string{cur.Title}, segments...)
	}
	return strings.Join(segments, PathSeparator)
}

// touch advances LastEdit strictly forward even when the wall clock
// has not moved between two edits
func (s *Section) touch() {
	now := time.Now()
	if !now.After(s.LastEdit) {
		now = s.LastEdit.Add(time.Nanosecond)
	}
	s.LastEdit = now
}

// Biography is the per-user document: a single synthetic root section
// owning the whole tree. Version is 0 until the first successful
// persist; callers use Version < 1 to detect that no biography exists
// yet.
type Biography struct {
	UserID  string   `json:"user_id"`
	Version int      `json:"version"`
	Root    *Section `json:"root"`

	overwrite bool
}

// BiographyOption is a functional option for NewBiography
type BiographyOption func(*Biography)

// WithOverwrite allows AddSection to replace an existing sibling with
// the same title instead of rejecting it. Off by default.
func WithOverwrite() BiographyOption {
	return func(b *Biography) {
		b.overwrite = true
	}
}

// NewBiography creates an empty biography for the user
func NewBiography(userID string, opts ...BiographyOption) *Biography {
	b := &Biography{
		UserID: userID,
		Root:   NewSection("", ""),
	}
	b.Configure(opts...)
	return b
}

// Configure applies options to an already constructed biography,
// typically right after deserialization since policy choices are not
// part of the snapshot.
func (b *Biography) Configure(opts ...BiographyOption) {
	for _, opt := range opts {
		opt(b)
	}
}

// Relink restores parent back-references after deserialization. The
// parent pointer is intentionally not serialized to keep the snapshot
// acyclic.
func (b *Biography) Relink() {
	if b.Root == nil {
		b.Root = NewSection("", "")
	}
	relink(b.Root, nil)
}

func relink(s *Section, parent *Section) {
	s.parent = parent
	for _, sub := range s.Subsections {
		relink(sub, s)
	}
}

// splitPath splits a path into non-empty title segments. The empty
// path yields no segments and therefore resolves to the root.
func splitPath(path string) []string {
	raw := strings.Split(path, PathSeparator)
	segments := make([]string, 0, len(raw))
	for _, seg := range raw {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	return segments
}

// SectionByPath descends the tree segment by segment. The empty path
// always resolves to the root. A missing path returns nil, not an
// error.
func (b *Biography) SectionByPath(path string) *Section {
	cur := b.Root
	for _, seg := range splitPath(path) {
		cur = cur.Child(seg)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// SectionByTitle returns the first section with the given title in
// pre-order traversal. Titles are not unique across the tree; use
// SectionsByTitle when the caller needs to disambiguate.
func (b *Biography) SectionByTitle(title string) *Section {
	return findByTitle(b.Root, title)
}

func findByTitle(s *Section, title string) *Section {
	if s.Title == title && s.parent != nil {
		return s
	}
	for _, sub := range s.Subsections {
		if found := findByTitle(sub, title); found != nil {
			return found
		}
	}
	return nil
}

// SectionsByTitle returns every section with the given title in
// pre-order, so callers can surface ambiguity instead of silently
// taking the first match.
func (b *Biography) SectionsByTitle(title string) []*Section {
	var matches []*Section
	collectByTitle(b.Root, title, &matches)
	return matches
}

func collectByTitle(s *Section, title string, out *[]*Section) {
	if s.Title == title && s.parent != nil {
		*out = append(*out, s)
	}
	for _, sub := range s.Subsections {
		collectByTitle(sub, title, out)
	}
}

// AddSection creates a new section keyed by title under the parent
// resolved by stripping the last segment of path. A missing parent is
// an error and leaves the tree unmodified. A sibling title collision
// is rejected unless the biography was built with WithOverwrite, in
// which case the existing section is replaced in place.
func (b *Biography) AddSection(path, title, content string) (*Section, error) {
	segments := splitPath(path)
	parentPath := ""
	if len(segments) > 1 {
		parentPath = strings.Join(segments[:len(segments)-1], PathSeparator)
	}

	parent := b.SectionByPath(parentPath)
	if parent == nil {
		return nil, goerr.Wrap(ErrSectionNotFound, "parent path does not resolve",
			goerr.V("path", path), goerr.V("parent", parentPath))
	}

	section := NewSection(title, content)
	section.parent = parent

	if existing := parent.Child(title); existing != nil {
		if !b.overwrite {
			return nil, goerr.Wrap(ErrDuplicateTitle, "refusing to overwrite section",
				goerr.V("path", path), goerr.V("title", title))
		}
		for i, sub := range parent.Subsections {
			if sub.Title == title {
				parent.Subsections[i] = section
				break
			}
		}
		return section, nil
	}

	parent.Subsections = append(parent.Subsections, section)
	return section, nil
}

// UpdateSection replaces the content of the section at path and
// advances its LastEdit. A missing path returns ErrSectionNotFound
// and does not mutate the tree; there is no implicit creation.
func (b *Biography) UpdateSection(path, content string) (*Section, error) {
	section := b.SectionByPath(path)
	if section == nil {
		return nil, goerr.Wrap(ErrSectionNotFound, "cannot update missing section",
			goerr.V("path", path))
	}

	section.Content = content
	section.touch()
	return section, nil
}

// RenameSection changes the title of the section at path. The new
// title must not collide with a sibling since children are keyed by
// title.
func (b *Biography) RenameSection(path, newTitle string) (*Section, error) {
	section := b.SectionByPath(path)
	if section == nil {
		return nil, goerr.Wrap(ErrSectionNotFound, "cannot rename missing section",
			goerr.V("path", path))
	}
	if section.parent == nil {
		return nil, goerr.Wrap(ErrRootImmutable, "cannot rename root", goerr.V("path", path))
	}
	if sibling := section.parent.Child(newTitle); sibling != nil && sibling != section {
		return nil, goerr.Wrap(ErrDuplicateTitle, "rename collides with sibling",
			goerr.V("path", path), goerr.V("title", newTitle))
	}

	section.Title = newTitle
	section.touch()
	return section, nil
}

// RemoveSection deletes the section at path and its whole subtree.
// The root cannot be removed.
func (b *Biography) RemoveSection(path string) error {
	section := b.SectionByPath(path)
	if section == nil {
		return goerr.Wrap(ErrSectionNotFound, "cannot remove missing section",
			goerr.V("path", path))
	}
	if section.parent == nil {
		return goerr.Wrap(ErrRootImmutable, "cannot remove root", goerr.V("path", path))
	}

	parent := section.parent
	for i, sub := range parent.Subsections {
		if sub == section {
			parent.Subsections = append(parent.Subsections[:i], parent.Subsections[i+1:]...)
			break
		}
	}
	section.parent = nil
	return nil
}

// CommentSection appends a reviewer comment to the section at path
// without touching its content.
func (b *Biography) CommentSection(path, comment string) (*Section, error) {
	section := b.SectionByPath(path)
	if section == nil {
		return nil, goerr.Wrap(ErrSectionNotFound, "cannot comment on missing section",
			goerr.V("path", path))
	}

	section.Comments = append(section.Comments, comment)
	section.touch()
	return section, nil
}

// MemoryRefs collects every distinct memory ID referenced anywhere in
// the section tree.
func (b *Biography) MemoryRefs() map[MemoryID]struct{} {
	refs := make(map[MemoryID]struct{})
	collectRefs(b.Root, refs)
	return refs
}

func collectRefs(s *Section, refs map[MemoryID]struct{}) {
	for _, id := range s.MemoryIDs {
		refs[id] = struct{}{}
	}
	for _, sub := range s.Subsections {
		collectRefs(sub, refs)
	}
}
