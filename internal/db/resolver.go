package db

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"

	"horse.fit/canon/internal/entity"
	"horse.fit/canon/internal/queryvars"
	"horse.fit/canon/internal/site"
)

// EntityResolver resolves normalized query variables against stored
// content. It satisfies both the resolver consulted by the redirect
// engine and the candidate store consulted by the permalink guesser.
type EntityResolver struct {
	pool *Pool
	snap *site.Snapshot
}

func NewEntityResolver(pool *Pool, snap *site.Snapshot) *EntityResolver {
	return &EntityResolver{pool: pool, snap: snap}
}

// Resolve maps query variables to a stored entity. Identifier variables
// are tried in a fixed order; a present identifier that matches nothing
// yields entity.ErrNotFound so the caller can fall through to guessing.
func (r *EntityResolver) Resolve(ctx context.Context, vars queryvars.Vars) (*entity.Entity, error) {
	if raw, ok := vars.Get("p"); ok {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil || id <= 0 {
			return nil, entity.ErrNotFound
		}
		return r.entityByID(ctx, id)
	}

	if slug, ok := scalarVar(vars, "attachment"); ok {
		return r.entityBySlug(ctx, slug, []string{"attachment"})
	}
	if slug, ok := scalarVar(vars, "name"); ok {
		return r.entityBySlug(ctx, slug, r.postSlugTypes(vars))
	}
	if raw, ok := scalarVar(vars, "pagename"); ok {
		segments := strings.Split(strings.Trim(raw, "/"), "/")
		return r.entityBySlug(ctx, segments[len(segments)-1], []string{"page"})
	}

	if ent, ok, err := r.resolveTerm(ctx, vars); ok || err != nil {
		return ent, err
	}

	if slug, ok := scalarVar(vars, "author_name"); ok {
		return r.resolveAuthor(ctx, slug)
	}

	if ent, ok := resolveDateArchive(vars); ok {
		return ent, nil
	}

	if hasIdentifierVars(vars) {
		return nil, entity.ErrNotFound
	}
	return r.frontPage(ctx)
}

// FindBySlug searches public content for a permalink guess. A miss is
// reported as entity.ErrNotFound.
func (r *EntityResolver) FindBySlug(ctx context.Context, slug string, types []string, strict bool) (*entity.Entity, error) {
	rec, err := r.pool.FindGuessCandidate(ctx, slug, types, strict)
	if err != nil {
		if IsNoRows(err) {
			return nil, entity.ErrNotFound
		}
		return nil, err
	}
	return r.entityFromRecord(ctx, rec)
}

func (r *EntityResolver) entityByID(ctx context.Context, id int64) (*entity.Entity, error) {
	rec, err := r.pool.GetPostByID(ctx, id)
	if err != nil {
		if IsNoRows(err) {
			return nil, entity.ErrNotFound
		}
		return nil, err
	}
	return r.entityFromRecord(ctx, rec)
}

func (r *EntityResolver) entityBySlug(ctx context.Context, slug string, types []string) (*entity.Entity, error) {
	rec, err := r.pool.GetPostBySlug(ctx, slug, types)
	if err != nil {
		if IsNoRows(err) {
			return nil, entity.ErrNotFound
		}
		return nil, err
	}
	return r.entityFromRecord(ctx, rec)
}

// postSlugTypes returns the types a bare name lookup may match. A
// post_type variable narrows the set; pages and attachments have their
// own identifiers and are excluded by default.
func (r *EntityResolver) postSlugTypes(vars queryvars.Vars) []string {
	if requested, ok := vars.GetList("post_type"); ok {
		return r.snap.GuessableTypes(requested)
	}
	types := make([]string, 0, len(r.snap.PostTypes))
	for name, pt := range r.snap.PostTypes {
		if name == "page" || name == "attachment" {
			continue
		}
		if pt.Public && pt.PubliclyQueryable {
			types = append(types, name)
		}
	}
	sort.Strings(types)
	return types
}

func (r *EntityResolver) resolveTerm(ctx context.Context, vars queryvars.Vars) (*entity.Entity, bool, error) {
	names := make([]string, 0, len(r.snap.Taxonomies))
	for name := range r.snap.Taxonomies {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		tax := r.snap.Taxonomies[name]
		if tax.QueryVar == "" {
			continue
		}
		slug, ok := scalarVar(vars, tax.QueryVar)
		if !ok {
			continue
		}
		segments := strings.Split(strings.Trim(slug, "/"), "/")
		rec, err := r.pool.GetTermBySlug(ctx, tax.Name, segments[len(segments)-1])
		if err != nil {
			if IsNoRows(err) {
				return nil, true, entity.ErrNotFound
			}
			return nil, true, err
		}
		return &entity.Entity{
			Kind:     entity.KindTerm,
			ID:       rec.TermID,
			Slug:     rec.Slug,
			Status:   entity.StatusPublic,
			Taxonomy: rec.Taxonomy,
		}, true, nil
	}
	return nil, false, nil
}

func (r *EntityResolver) resolveAuthor(ctx context.Context, slug string) (*entity.Entity, error) {
	user, err := r.pool.GetUserByUsername(ctx, slug)
	if err != nil {
		if IsNoRows(err) {
			return nil, entity.ErrNotFound
		}
		return nil, err
	}
	return &entity.Entity{
		Kind:   entity.KindAuthor,
		ID:     user.UserID,
		Slug:   user.Username,
		Status: entity.StatusPublic,
	}, nil
}

func (r *EntityResolver) frontPage(ctx context.Context) (*entity.Entity, error) {
	if id := r.snap.Options.FrontPageID; id > 0 {
		ent, err := r.entityByID(ctx, id)
		if err == nil {
			return ent, nil
		}
		if !errors.Is(err, entity.ErrNotFound) {
			return nil, err
		}
	}
	return &entity.Entity{Kind: entity.KindFrontPage, Status: entity.StatusPublic}, nil
}

func (r *EntityResolver) entityFromRecord(ctx context.Context, rec *PostRecord) (*entity.Entity, error) {
	ent := &entity.Entity{
		ID:     rec.PostID,
		Slug:   rec.Slug,
		Type:   rec.Type,
		Status: entity.Status(rec.Status),
	}

	switch {
	case rec.PostID == r.snap.Options.FrontPageID && rec.PostID > 0:
		ent.Kind = entity.KindFrontPage
	case rec.PostID == r.snap.Options.PostsPageID && rec.PostID > 0:
		ent.Kind = entity.KindPostsPage
	case rec.Type == "page":
		ent.Kind = entity.KindPage
	case rec.Type == "attachment":
		ent.Kind = entity.KindAttachment
	default:
		ent.Kind = entity.KindPost
	}

	terms, err := r.pool.ListPostTerms(ctx, rec.PostID)
	if err != nil {
		return nil, err
	}
	for _, t := range terms {
		ent.Terms = append(ent.Terms, entity.Term{ID: t.TermID, Taxonomy: t.Taxonomy, Slug: t.Slug})
	}

	if ent.Kind == entity.KindAttachment {
		if rec.FileURL != nil {
			ent.FileURL = *rec.FileURL
		}
		if rec.ParentID != nil && *rec.ParentID > 0 {
			parent, err := r.entityByID(ctx, *rec.ParentID)
			if err != nil && !errors.Is(err, entity.ErrNotFound) {
				return nil, err
			}
			ent.Parent = parent
		}
	}

	return ent, nil
}

// resolveDateArchive interprets the compact m variable and the split
// year/monthnum/day variables.
func resolveDateArchive(vars queryvars.Vars) (*entity.Entity, bool) {
	if raw, ok := scalarVar(vars, "m"); ok && len(raw) >= 4 {
		year, err := strconv.Atoi(raw[:4])
		if err != nil {
			return nil, false
		}
		ent := &entity.Entity{Kind: entity.KindDateArchive, Status: entity.StatusPublic, Year: year}
		if len(raw) >= 6 {
			if month, err := strconv.Atoi(raw[4:6]); err == nil {
				ent.Month = month
			}
		}
		if len(raw) >= 8 {
			if day, err := strconv.Atoi(raw[6:8]); err == nil {
				ent.Day = day
			}
		}
		return ent, true
	}

	year, ok := intVar(vars, "year")
	if !ok {
		return nil, false
	}
	ent := &entity.Entity{Kind: entity.KindDateArchive, Status: entity.StatusPublic, Year: year}
	if month, ok := intVar(vars, "monthnum"); ok {
		ent.Month = month
	}
	if day, ok := intVar(vars, "day"); ok {
		ent.Day = day
	}
	return ent, true
}

// hasIdentifierVars reports whether the variables name any concrete
// entity. Without one the request is for the site root.
func hasIdentifierVars(vars queryvars.Vars) bool {
	for _, key := range []string{
		"p", "name", "pagename", "page_id", "attachment", "attachment_id",
		"author_name", "m", "year", "monthnum", "day",
	} {
		if vars.Has(key) {
			return true
		}
	}
	return false
}

func scalarVar(vars queryvars.Vars, key string) (string, bool) {
	if vars.IsList(key) {
		return "", false
	}
	value, ok := vars.Get(key)
	value = strings.TrimSpace(value)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

func intVar(vars queryvars.Vars, key string) (int, bool) {
	raw, ok := scalarVar(vars, key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
