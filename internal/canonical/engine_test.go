package canonical

import (
	"context"
	"strconv"
	"testing"

	"horse.fit/canon/internal/entity"
	"horse.fit/canon/internal/queryvars"
	"horse.fit/canon/internal/rewrite"
	"horse.fit/canon/internal/site"
)

// memoryResolver is a minimal stand-in for the stored-content resolver:
// slug and id lookups over a fixed entity list, front/posts page
// detection, and archive fabrication from date and author variables.
type memoryResolver struct {
	snap     *site.Snapshot
	entities []*entity.Entity
	authors  map[string]bool
	terms    map[string]entity.Term
}

func (r *memoryResolver) Resolve(_ context.Context, vars queryvars.Vars) (*entity.Entity, error) {
	if raw, ok := vars.Get("p"); ok {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, entity.ErrNotFound
		}
		for _, ent := range r.entities {
			if ent.ID == id {
				return r.classify(ent), nil
			}
		}
		return nil, entity.ErrNotFound
	}

	for _, key := range []string{"attachment", "name", "pagename"} {
		slug, ok := vars.Get(key)
		if !ok || slug == "" {
			continue
		}
		for _, ent := range r.entities {
			if ent.Slug == slug {
				return r.classify(ent), nil
			}
		}
		return nil, entity.ErrNotFound
	}

	if slug, ok := vars.Get("category_name"); ok {
		term, exists := r.terms[slug]
		if !exists {
			return nil, entity.ErrNotFound
		}
		return &entity.Entity{Kind: entity.KindTerm, ID: term.ID, Slug: term.Slug, Taxonomy: "category"}, nil
	}

	if name, ok := vars.Get("author_name"); ok {
		if !r.authors[name] {
			return nil, entity.ErrNotFound
		}
		return &entity.Entity{Kind: entity.KindAuthor, Slug: name}, nil
	}

	if raw, ok := vars.Get("year"); ok {
		year, _ := strconv.Atoi(raw)
		month := 0
		if m, ok := vars.Get("monthnum"); ok {
			month, _ = strconv.Atoi(m)
		}
		day := 0
		if d, ok := vars.Get("day"); ok {
			day, _ = strconv.Atoi(d)
		}
		return &entity.Entity{Kind: entity.KindDateArchive, Year: year, Month: month, Day: day}, nil
	}

	if raw, ok := vars.Get("m"); ok && len(raw) >= 6 {
		year, _ := strconv.Atoi(raw[:4])
		month, _ := strconv.Atoi(raw[4:6])
		return &entity.Entity{Kind: entity.KindDateArchive, Year: year, Month: month}, nil
	}

	// No content-identifying variables: the site index handles it.
	return &entity.Entity{Kind: entity.KindFrontPage}, nil
}

func (r *memoryResolver) classify(ent *entity.Entity) *entity.Entity {
	if r.snap.Options.FrontPageID != 0 && ent.ID == r.snap.Options.FrontPageID {
		clone := *ent
		clone.Kind = entity.KindFrontPage
		return &clone
	}
	if r.snap.Options.PostsPageID != 0 && ent.ID == r.snap.Options.PostsPageID {
		clone := *ent
		clone.Kind = entity.KindPostsPage
		return &clone
	}
	return ent
}

type fixture struct {
	snap    *site.Snapshot
	engine  *Engine
	matcher *rewrite.Matcher
}

func newFixture(t *testing.T, snap *site.Snapshot, resolver entity.Resolver, collab Collaborators) *fixture {
	t.Helper()
	collab.Resolver = resolver
	return &fixture{
		snap:    snap,
		engine:  New(snap, collab),
		matcher: rewrite.ForSnapshot(snap),
	}
}

func (f *fixture) resolve(t *testing.T, raw string) Decision {
	t.Helper()
	req, err := ParseRequest(raw)
	if err != nil {
		t.Fatalf("parse request %q: %v", raw, err)
	}
	vars := f.matcher.MergedVars(req.Path, req.Query)
	return f.engine.Resolve(context.Background(), req, vars)
}

func prettySnapshot() *site.Snapshot {
	snap := site.Defaults()
	snap.Options.PermalinkStructure = "/%category%/%postname%/"
	return snap
}

func postWithCategories() *entity.Entity {
	return &entity.Entity{
		Kind:   entity.KindPost,
		ID:     100,
		Slug:   "post0",
		Type:   "post",
		Status: entity.StatusPublic,
		Terms: []entity.Term{
			{ID: 1, Taxonomy: "category", Slug: "cat0"},
			{ID: 3, Taxonomy: "category", Slug: "cat2"},
		},
	}
}

func TestFrontPagePaginationRedirectsToRootForm(t *testing.T) {
	t.Parallel()

	snap := prettySnapshot()
	snap.Options.FrontPageID = 10
	resolver := &memoryResolver{snap: snap, entities: []*entity.Entity{
		{Kind: entity.KindPage, ID: 10, Slug: "front-page", Type: "page", Status: entity.StatusPublic},
	}}
	f := newFixture(t, snap, resolver, Collaborators{})

	got := f.resolve(t, "/front-page/2/")
	if got.Outcome != OutcomeRedirect || got.Location != "/page/2/" {
		t.Fatalf("expected redirect to /page/2/, got %+v", got)
	}

	// Page 1 redirects to the bare root.
	got = f.resolve(t, "/front-page/")
	if got.Outcome != OutcomeRedirect || got.Location != "/" {
		t.Fatalf("expected redirect to /, got %+v", got)
	}
}

func TestFrontPagePaginationIdempotent(t *testing.T) {
	t.Parallel()

	snap := prettySnapshot()
	snap.Options.FrontPageID = 10
	resolver := &memoryResolver{snap: snap, entities: []*entity.Entity{
		{Kind: entity.KindPage, ID: 10, Slug: "front-page", Type: "page", Status: entity.StatusPublic},
	}}
	f := newFixture(t, snap, resolver, Collaborators{})

	first := f.resolve(t, "/front-page/2/")
	if first.Outcome != OutcomeRedirect {
		t.Fatalf("expected a redirect, got %+v", first)
	}
	second := f.resolve(t, first.Location)
	if second.Outcome != OutcomeNone {
		t.Fatalf("expected redirect target to be a fixed point, got %+v", second)
	}
}

func TestPostsPageDropsContentPagination(t *testing.T) {
	t.Parallel()

	snap := prettySnapshot()
	snap.Options.PostsPageID = 11
	resolver := &memoryResolver{snap: snap, entities: []*entity.Entity{
		{Kind: entity.KindPage, ID: 11, Slug: "blog-page", Type: "page", Status: entity.StatusPublic},
	}}
	f := newFixture(t, snap, resolver, Collaborators{})

	got := f.resolve(t, "/blog-page/2/")
	if got.Outcome != OutcomeRedirect || got.Location != "/blog-page/" {
		t.Fatalf("expected content pagination stripped, got %+v", got)
	}

	// List pagination stays supported.
	got = f.resolve(t, "/blog-page/page/2/")
	if got.Outcome != OutcomeNone {
		t.Fatalf("expected list pagination untouched, got %+v", got)
	}
}

func TestCategoryCanonicalization(t *testing.T) {
	t.Parallel()

	snap := prettySnapshot()
	resolver := &memoryResolver{snap: snap, entities: []*entity.Entity{postWithCategories()}}
	f := newFixture(t, snap, resolver, Collaborators{})

	got := f.resolve(t, "/cat2/post0/")
	if got.Outcome != OutcomeRedirect || got.Location != "/cat0/post0/" {
		t.Fatalf("expected redirect to canonical category, got %+v", got)
	}

	got = f.resolve(t, "/cat0/post0/")
	if got.Outcome != OutcomeNone {
		t.Fatalf("expected canonical path untouched, got %+v", got)
	}
}

func TestEmbedRequestsAreExempt(t *testing.T) {
	t.Parallel()

	snap := prettySnapshot()
	resolver := &memoryResolver{snap: snap, entities: []*entity.Entity{postWithCategories()}}
	f := newFixture(t, snap, resolver, Collaborators{})

	got := f.resolve(t, "/cat0/post0/embed/")
	if got.Outcome != OutcomeNone {
		t.Fatalf("expected embed view never redirected, got %+v", got)
	}

	// Even a non-canonical category stays put under /embed/.
	got = f.resolve(t, "/cat2/post0/embed/")
	if got.Outcome != OutcomeNone {
		t.Fatalf("expected embed exemption to beat canonicalization, got %+v", got)
	}
}

func TestQueryPunctuationStripping(t *testing.T) {
	t.Parallel()

	snap := site.Defaults()
	snap.Options.UsingPermalinks = false
	resolver := &memoryResolver{snap: snap, entities: []*entity.Entity{
		{Kind: entity.KindPost, ID: 358, Slug: "some-post", Type: "post", Status: entity.StatusPublic},
	}}
	f := newFixture(t, snap, resolver, Collaborators{})

	for _, raw := range []string{"/?p=358!", "/?p=358%21"} {
		got := f.resolve(t, raw)
		if got.Outcome != OutcomeRedirect || got.Location != "/?p=358" {
			t.Fatalf("request %q: expected redirect to /?p=358, got %+v", raw, got)
		}
	}

	got := f.resolve(t, "/?p=358")
	if got.Outcome != OutcomeNone {
		t.Fatalf("expected clean query untouched, got %+v", got)
	}
}

func TestQueryOrderDoesNotTriggerRedirect(t *testing.T) {
	t.Parallel()

	snap := site.Defaults()
	snap.Options.UsingPermalinks = false
	resolver := &memoryResolver{snap: snap, entities: []*entity.Entity{
		{Kind: entity.KindPost, ID: 358, Slug: "some-post", Type: "post", Status: entity.StatusPublic},
	}}
	f := newFixture(t, snap, resolver, Collaborators{})

	got := f.resolve(t, "/?utm_source=mail&p=358")
	if got.Outcome != OutcomeNone {
		t.Fatalf("expected reordered-but-equal query untouched, got %+v", got)
	}
}

func TestExtraQueryParameterPreservedOnRedirect(t *testing.T) {
	t.Parallel()

	snap := prettySnapshot()
	resolver := &memoryResolver{snap: snap, entities: []*entity.Entity{postWithCategories()}}
	f := newFixture(t, snap, resolver, Collaborators{})

	got := f.resolve(t, "/cat2/post0/?ref=newsletter")
	if got.Outcome != OutcomeRedirect || got.Location != "/cat0/post0/?ref=newsletter" {
		t.Fatalf("expected extra parameter carried to canonical path, got %+v", got)
	}
}

func TestLegacyFeedAliasRedirects(t *testing.T) {
	t.Parallel()

	snap := prettySnapshot()
	resolver := &memoryResolver{snap: snap}
	f := newFixture(t, snap, resolver, Collaborators{})

	got := f.resolve(t, "/?feed=rss")
	if got.Outcome != OutcomeRedirect || got.Location != "/feed/" {
		t.Fatalf("expected legacy rss alias redirected to /feed/, got %+v", got)
	}

	got = f.resolve(t, "/feed/")
	if got.Outcome != OutcomeNone {
		t.Fatalf("expected canonical feed path untouched, got %+v", got)
	}
}

func TestDateArchiveQueryFormRedirects(t *testing.T) {
	t.Parallel()

	snap := prettySnapshot()
	resolver := &memoryResolver{snap: snap}
	f := newFixture(t, snap, resolver, Collaborators{})

	got := f.resolve(t, "/?m=202405")
	if got.Outcome != OutcomeRedirect || got.Location != "/2024/05/" {
		t.Fatalf("expected month query redirected to pretty archive, got %+v", got)
	}

	got = f.resolve(t, "/2024/05/")
	if got.Outcome != OutcomeNone {
		t.Fatalf("expected pretty archive untouched, got %+v", got)
	}
}

func TestOperatorTaxonomyFilterDefersFeedDecision(t *testing.T) {
	t.Parallel()

	snap := prettySnapshot()
	resolver := &memoryResolver{snap: snap}
	f := newFixture(t, snap, resolver, Collaborators{})

	got := f.resolve(t, "/?feed=rss2&category_name%5B%5D=NOT+EXISTS")
	if got.Outcome != OutcomeDefer {
		t.Fatalf("expected operator-shaped taxonomy filter to defer, got %+v", got)
	}
}

func TestAttachmentPagesDisabledRedirectsToFile(t *testing.T) {
	t.Parallel()

	snap := prettySnapshot()
	snap.Options.AttachmentPagesEnabled = false
	parent := postWithCategories()
	resolver := &memoryResolver{snap: snap, entities: []*entity.Entity{
		parent,
		{
			Kind:    entity.KindAttachment,
			ID:      200,
			Slug:    "photo",
			Type:    "attachment",
			Status:  entity.StatusPublic,
			Parent:  parent,
			FileURL: "https://example.com/uploads/photo.jpg",
		},
	}}
	f := newFixture(t, snap, resolver, Collaborators{})

	got := f.resolve(t, "/cat0/post0/photo/")
	if got.Outcome != OutcomeRedirect || got.Location != "https://example.com/uploads/photo.jpg" {
		t.Fatalf("expected redirect to raw file, got %+v", got)
	}
}

func TestAttachmentPrivateParentSuppressesRedirect(t *testing.T) {
	t.Parallel()

	snap := prettySnapshot()
	snap.Options.AttachmentPagesEnabled = false
	parent := postWithCategories()
	parent.Status = entity.StatusPrivate
	resolver := &memoryResolver{snap: snap, entities: []*entity.Entity{
		parent,
		{
			Kind:    entity.KindAttachment,
			ID:      200,
			Slug:    "photo",
			Type:    "attachment",
			Status:  entity.StatusPublic,
			Parent:  parent,
			FileURL: "https://example.com/uploads/photo.jpg",
		},
	}}

	// Logged-out viewer: no permission callback grants access.
	f := newFixture(t, snap, resolver, Collaborators{})
	got := f.resolve(t, "/cat0/post0/photo/")
	if got.Outcome != OutcomeNone {
		t.Fatalf("expected no redirect for unviewable private parent, got %+v", got)
	}

	// A viewer with permission gets the file redirect.
	canView := func(context.Context, *entity.Entity) bool { return true }
	f = newFixture(t, snap, resolver, Collaborators{CanView: canView})
	got = f.resolve(t, "/cat0/post0/photo/")
	if got.Outcome != OutcomeRedirect {
		t.Fatalf("expected permitted viewer to reach the file, got %+v", got)
	}
}

func TestResolverFailureDefers(t *testing.T) {
	t.Parallel()

	snap := prettySnapshot()
	f := newFixture(t, snap, failingResolver{}, Collaborators{})

	got := f.resolve(t, "/cat0/post0/")
	if got.Outcome != OutcomeDefer {
		t.Fatalf("expected resolver failure to defer, got %+v", got)
	}
}

type failingResolver struct{}

func (failingResolver) Resolve(context.Context, queryvars.Vars) (*entity.Entity, error) {
	return nil, context.DeadlineExceeded
}
