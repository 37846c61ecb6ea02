package canonical

import (
	"context"
	"errors"
	"strings"

	"horse.fit/canon/internal/entity"
	"horse.fit/canon/internal/queryvars"
	"horse.fit/canon/internal/site"
)

// Collaborators are the external services one decision consults. All of
// them are synchronous; the engine guards every call and degrades to a
// deferred decision on failure.
type Collaborators struct {
	Resolver entity.Resolver
	CanView  entity.ViewPermission
	Guesser  *Guesser
}

// Engine evaluates whether a request should be redirected to its
// canonical URL. It is stateless and request-scoped: the snapshot is a
// read-only view of site configuration for the duration of one call.
type Engine struct {
	snap   *site.Snapshot
	collab Collaborators
}

// New builds an engine over a configuration snapshot.
func New(snap *site.Snapshot, collab Collaborators) *Engine {
	return &Engine{snap: snap, collab: collab}
}

// reservedKeys are the query variables this core understands. Anything
// else on a request is requester-supplied data that a redirect must
// carry along, never discard.
var reservedKeys = map[string]struct{}{
	"p":             {},
	"name":          {},
	"pagename":      {},
	"page_id":       {},
	"attachment":    {},
	"attachment_id": {},
	"paged":         {},
	"page":          {},
	"feed":          {},
	"embed":         {},
	"m":             {},
	"year":          {},
	"monthnum":      {},
	"day":           {},
	"author":        {},
	"author_name":   {},
	"post_type":     {},
}

// Resolve runs the full decision pipeline: normalize the variables,
// resolve the entity, build its canonical target and compare. Resolver
// misses route to the permalink guesser; every internal failure comes
// back as a deferred decision, never as an error.
func (e *Engine) Resolve(ctx context.Context, req Request, resolved queryvars.Vars) Decision {
	if e == nil || e.snap == nil || e.collab.Resolver == nil {
		return Deferred()
	}

	vars := queryvars.Normalize(resolved)

	// Embed views are a distinct rendering mode reachable only through
	// their marker suffix. Collapsing them onto the plain permalink
	// would destroy that mode, so they are never redirected.
	if isEmbedRequest(req, vars) {
		return None()
	}

	// A taxonomy filter in operator form (a list where a slug is
	// expected) cannot be expressed in a canonical feed path. Tolerate
	// the shape and leave the request alone.
	if vars.Has("feed") && e.hasOperatorTaxFilter(vars) {
		return Deferred()
	}

	ent, err := e.collab.Resolver.Resolve(ctx, vars)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return e.guess(ctx, req, vars)
		}
		return Deferred()
	}
	if ent == nil {
		return Deferred()
	}

	target, err := Build(ctx, e.snap, ent, vars, e.collab.CanView)
	if err != nil {
		if errors.Is(err, errPrivateParent) {
			// Redirecting to the raw file would leak the private
			// parent's existence through the Location header.
			return None()
		}
		return Deferred()
	}
	if target == nil {
		return Deferred()
	}

	return e.decide(req, target)
}

// decide compares the request against the canonical target. Unrelated
// query parameters the requester supplied are appended to the target
// rather than dropped, and semantically equal query strings (same keys
// and values, any order) never trigger a redirect.
func (e *Engine) decide(req Request, target *Target) Decision {
	if target.Absolute {
		if req.RawURL == target.Path {
			return None()
		}
		return RedirectTo(target.Path)
	}

	canonicalQuery := target.Query.Clone()
	for _, key := range req.Query.Keys() {
		if _, reserved := reservedKeys[key]; reserved {
			continue
		}
		if e.isTaxonomyQueryVar(key) || canonicalQuery.Has(key) {
			continue
		}
		if req.Query.IsList(key) {
			values, _ := req.Query.GetList(key)
			for _, value := range values {
				canonicalQuery.Append(key, value)
			}
			continue
		}
		value, _ := req.Query.Get(key)
		canonicalQuery.Set(key, value)
	}

	canonicalLocation := target.Path
	if encoded := canonicalQuery.Encode(); encoded != "" {
		canonicalLocation += "?" + encoded
	}

	requestLocation := req.Path
	if encoded := req.Query.Encode(); encoded != "" {
		requestLocation += "?" + encoded
	}

	if requestLocation == canonicalLocation {
		return None()
	}

	// Same path, same variables in a different order: textually
	// different but semantically identical, so leave it alone to avoid
	// redirect loops between equivalent spellings.
	if req.Path == target.Path && queryvars.SemanticallyEqual(req.Query, canonicalQuery) {
		return None()
	}

	return RedirectTo(canonicalLocation)
}

func (e *Engine) guess(ctx context.Context, req Request, vars queryvars.Vars) Decision {
	if e.collab.Guesser == nil {
		return Deferred()
	}
	return e.collab.Guesser.Guess(ctx, req, vars)
}

func (e *Engine) isTaxonomyQueryVar(key string) bool {
	for _, tax := range e.snap.Taxonomies {
		qv := tax.QueryVar
		if qv == "" {
			qv = tax.Name
		}
		if qv == key {
			return true
		}
	}
	return false
}

// hasOperatorTaxFilter reports whether any taxonomy query variable
// arrived in list form, the shape operator-style filters take.
func (e *Engine) hasOperatorTaxFilter(vars queryvars.Vars) bool {
	for _, tax := range e.snap.Taxonomies {
		qv := tax.QueryVar
		if qv == "" {
			qv = tax.Name
		}
		if vars.IsList(qv) {
			return true
		}
	}
	return false
}

func isEmbedRequest(req Request, vars queryvars.Vars) bool {
	if value, ok := vars.Get("embed"); ok && strings.EqualFold(strings.TrimSpace(value), "true") {
		return true
	}
	return strings.HasSuffix(req.Path, "/embed/") || strings.HasSuffix(req.Path, "/embed")
}
