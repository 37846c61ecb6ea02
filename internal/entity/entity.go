package entity

import (
	"context"
	"errors"

	"horse.fit/canon/internal/queryvars"
)

// ErrNotFound is returned by a Resolver when no stored entity matches
// the supplied query variables. Not-found is an expected branch, not a
// failure: the caller routes it to the permalink guesser.
var ErrNotFound = errors.New("entity not found")

// Kind identifies the variant of a resolved entity. The set is closed;
// the canonical URL builder matches on every kind and treats anything
// else as unresolvable.
type Kind string

const (
	KindPost        Kind = "post"
	KindPage        Kind = "page"
	KindAttachment  Kind = "attachment"
	KindTerm        Kind = "term"
	KindAuthor      Kind = "author"
	KindDateArchive Kind = "date_archive"
	KindFrontPage   Kind = "front_page"
	KindPostsPage   Kind = "posts_page"
)

// Status is the visibility classification of an entity. Registration of
// statuses is owned by the surrounding application; this core only
// distinguishes public from everything else.
type Status string

const (
	StatusPublic    Status = "public"
	StatusPrivate   Status = "private"
	StatusProtected Status = "protected"
	StatusInternal  Status = "internal"
)

// Public reports whether the status is the public classification.
func (s Status) Public() bool {
	return s == StatusPublic
}

// Term is a taxonomy term assigned to an entity. The order of terms on
// an Entity is the resolver's natural ordering; the first term of a
// taxonomy is that taxonomy's canonical term for the entity.
type Term struct {
	ID       int64
	Taxonomy string
	Slug     string
}

// Entity is one resolved content record. Which fields are meaningful
// depends on Kind; the zero value of the rest is ignored.
type Entity struct {
	Kind   Kind
	ID     int64
	Slug   string
	Type   string
	Status Status

	// Terms are the assigned taxonomy terms in canonical order.
	Terms []Term

	// Parent is set for attachments.
	Parent *Entity

	// FileURL is the raw attached-file URL for attachments.
	FileURL string

	// Taxonomy is set for term archives.
	Taxonomy string

	// Year, Month and Day describe a date archive. Zero means the
	// component is absent (a year archive has Month == 0).
	Year  int
	Month int
	Day   int
}

// CanonicalTerm returns the entity's canonical term for a taxonomy, or
// false when none is assigned. The resolver owns term ordering; this
// helper only takes the first.
func (e *Entity) CanonicalTerm(taxonomy string) (Term, bool) {
	if e == nil {
		return Term{}, false
	}
	for _, term := range e.Terms {
		if term.Taxonomy == taxonomy {
			return term, true
		}
	}
	return Term{}, false
}

// HasTerm reports whether the given slug names any term of the taxonomy
// assigned to the entity.
func (e *Entity) HasTerm(taxonomy, slug string) bool {
	if e == nil {
		return false
	}
	for _, term := range e.Terms {
		if term.Taxonomy == taxonomy && term.Slug == slug {
			return true
		}
	}
	return false
}

// Resolver resolves normalized query variables to a concrete entity.
// Implementations are expected to be synchronous; a miss is reported as
// ErrNotFound, any other error means the resolver itself failed.
type Resolver interface {
	Resolve(ctx context.Context, vars queryvars.Vars) (*Entity, error)
}

// ViewPermission answers whether the current viewer may see an entity.
// Used for the private-parent attachment rule; callers must treat a
// nil check as "cannot view".
type ViewPermission func(ctx context.Context, e *Entity) bool
