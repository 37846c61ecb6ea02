package canonical

import (
	"context"
	"errors"
	"strings"

	"horse.fit/canon/internal/entity"
	"horse.fit/canon/internal/queryvars"
	"horse.fit/canon/internal/site"
)

// CandidateStore searches stored content for a close-enough entity when
// nothing resolved. Implementations report ErrNotFound on a miss and
// must prefer an exact slug match over a prefix match.
type CandidateStore interface {
	FindBySlug(ctx context.Context, slug string, types []string, strict bool) (*entity.Entity, error)
}

// GuessPolicy is the extension seam around guessing. Override runs in
// place of the search when it reports ok; Disabled suppresses the
// guesser entirely. Both are plain injection points, not an event bus.
type GuessPolicy struct {
	Disabled bool
	Strict   bool
	Override func(ctx context.Context, req Request, vars queryvars.Vars) (Decision, bool)
}

// Guesser proposes a redirect for content-shaped requests that resolved
// to nothing.
type Guesser struct {
	snap   *site.Snapshot
	store  CandidateStore
	policy GuessPolicy
}

// NewGuesser builds a guesser over a snapshot and a candidate store.
func NewGuesser(snap *site.Snapshot, store CandidateStore, policy GuessPolicy) *Guesser {
	return &Guesser{snap: snap, store: store, policy: policy}
}

// Guess searches for a near-miss entity and proposes its canonical
// permalink. Every ambiguous or failed branch defers; a 404 is always
// safer than a wrong redirect.
func (g *Guesser) Guess(ctx context.Context, req Request, vars queryvars.Vars) Decision {
	if g == nil || g.snap == nil {
		return Deferred()
	}

	if g.policy.Disabled || g.snap.Options.GuessDisabled {
		return Deferred()
	}

	if g.policy.Override != nil {
		if decision, ok := g.policy.Override(ctx, req, vars); ok {
			return decision
		}
	}

	if g.store == nil {
		return Deferred()
	}

	slug := guessSlug(vars)
	if slug == "" {
		return Deferred()
	}

	types := g.candidateTypes(vars)
	if len(types) == 0 {
		return Deferred()
	}

	strict := g.policy.Strict || g.snap.Options.StrictGuess

	match, err := g.store.FindBySlug(ctx, slug, types, strict)
	if err != nil || match == nil {
		if err != nil && !errors.Is(err, entity.ErrNotFound) {
			// Store failure: under-redirect rather than risk a bad target.
			return Deferred()
		}
		return Deferred()
	}

	target, err := Build(ctx, g.snap, match, queryvars.Vars{}, nil)
	if err != nil || target == nil {
		return Deferred()
	}
	return RedirectTo(target.Location())
}

// candidateTypes builds the post-type set for the search: the request's
// post_type constraint (scalar or list) when present, otherwise every
// registered guessable type. Types that are public but not publicly
// queryable are excluded either way.
func (g *Guesser) candidateTypes(vars queryvars.Vars) []string {
	if requested, ok := vars.GetList("post_type"); ok && len(requested) > 0 {
		return g.snap.GuessableTypes(requested)
	}
	return g.snap.GuessableTypes(g.snap.DefaultGuessTypes())
}

// guessSlug extracts the slug-like variable that makes a request
// content-shaped. Hierarchical page paths contribute their last segment.
func guessSlug(vars queryvars.Vars) string {
	if name, ok := vars.Get("name"); ok && strings.TrimSpace(name) != "" {
		return strings.TrimSpace(name)
	}
	if pagename, ok := vars.Get("pagename"); ok {
		trimmed := strings.Trim(strings.TrimSpace(pagename), "/")
		if trimmed == "" {
			return ""
		}
		if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
			return trimmed[idx+1:]
		}
		return trimmed
	}
	if att, ok := vars.Get("attachment"); ok && strings.TrimSpace(att) != "" {
		return strings.TrimSpace(att)
	}
	return ""
}
