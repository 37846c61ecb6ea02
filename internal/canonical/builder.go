package canonical

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"horse.fit/canon/internal/entity"
	"horse.fit/canon/internal/queryvars"
	"horse.fit/canon/internal/site"
)

// errPrivateParent marks the one case where computing a target would
// itself leak information: an attachment whose parent the viewer may
// not see. The engine turns it into a no-redirect outcome.
var errPrivateParent = errors.New("attachment parent not viewable")

// Target is the single authoritative representation of an entity:
// a site-relative path plus the query variables the canonical form
// still carries. Absolute targets point at a raw file URL instead.
type Target struct {
	Path     string
	Query    queryvars.Vars
	Absolute bool
}

// Location renders the target as a redirect location.
func (t *Target) Location() string {
	if t == nil {
		return ""
	}
	if encoded := t.Query.Encode(); encoded != "" {
		return t.Path + "?" + encoded
	}
	return t.Path
}

// Build computes the canonical target for a resolved entity under the
// given configuration snapshot. The incoming vars supply pagination and
// feed markers; everything consumed here is expressed in the target
// path or query, never silently dropped.
func Build(ctx context.Context, snap *site.Snapshot, ent *entity.Entity, vars queryvars.Vars, canView entity.ViewPermission) (*Target, error) {
	if snap == nil || ent == nil {
		return nil, fmt.Errorf("snapshot and entity are required")
	}

	paged := positiveIntVar(vars, "paged")
	contentPage := positiveIntVar(vars, "page")
	feed := feedVar(vars)

	switch ent.Kind {
	case entity.KindFrontPage:
		return buildFrontPage(paged, contentPage, feed), nil

	case entity.KindPostsPage:
		return buildPostsPage(ent, paged, feed), nil

	case entity.KindPage:
		return buildPage(snap, ent, contentPage, feed), nil

	case entity.KindPost:
		return buildPost(snap, ent, contentPage, feed)

	case entity.KindAttachment:
		return buildAttachment(ctx, snap, ent, canView)

	case entity.KindTerm:
		return buildTerm(snap, ent, paged, feed)

	case entity.KindAuthor:
		return buildAuthor(ent, paged, feed), nil

	case entity.KindDateArchive:
		return buildDateArchive(ent, paged, feed)

	default:
		return nil, fmt.Errorf("unhandled entity kind %q", ent.Kind)
	}
}

// buildFrontPage handles the site root. Pagination on the front page
// lives at the root pagination form, never under the front page's own
// slug, and page 1 carries no marker at all.
func buildFrontPage(paged, contentPage int, feed string) *Target {
	page := paged
	if page == 0 {
		page = contentPage
	}
	if feed != "" {
		return &Target{Path: feedPath("/", feed)}
	}
	if page > 1 {
		return &Target{Path: fmt.Sprintf("/page/%d/", page)}
	}
	return &Target{Path: "/"}
}

// buildPostsPage handles the designated posts page. It supports list
// pagination but has no content-internal multi-page form; any such
// marker is dropped by redirecting to the plain page.
func buildPostsPage(ent *entity.Entity, paged int, feed string) *Target {
	base := "/" + strings.Trim(ent.Slug, "/") + "/"
	if feed != "" {
		return &Target{Path: feedPath(base, feed)}
	}
	if paged > 1 {
		return &Target{Path: fmt.Sprintf("%spage/%d/", base, paged)}
	}
	return &Target{Path: base}
}

func buildPage(snap *site.Snapshot, ent *entity.Entity, contentPage int, feed string) *Target {
	if !snap.Options.UsingPermalinks {
		var q queryvars.Vars
		q.Set("p", strconv.FormatInt(ent.ID, 10))
		if contentPage > 1 {
			q.Set("page", strconv.Itoa(contentPage))
		}
		return &Target{Path: "/", Query: q}
	}

	base := "/" + strings.Trim(ent.Slug, "/") + "/"
	if feed != "" {
		return &Target{Path: feedPath(base, feed)}
	}
	if contentPage > 1 {
		return &Target{Path: fmt.Sprintf("%s%d/", base, contentPage)}
	}
	return &Target{Path: base}
}

func buildPost(snap *site.Snapshot, ent *entity.Entity, contentPage int, feed string) (*Target, error) {
	if !snap.Options.UsingPermalinks {
		var q queryvars.Vars
		q.Set("p", strconv.FormatInt(ent.ID, 10))
		if contentPage > 1 {
			q.Set("page", strconv.Itoa(contentPage))
		}
		return &Target{Path: "/", Query: q}, nil
	}

	base, err := postPermalinkPath(snap, ent)
	if err != nil {
		return nil, err
	}
	if feed != "" {
		return &Target{Path: feedPath(base, feed)}, nil
	}
	if contentPage > 1 {
		return &Target{Path: fmt.Sprintf("%s%d/", base, contentPage)}, nil
	}
	return &Target{Path: base}, nil
}

// buildAttachment prefers the attachment page when pages are enabled.
// With pages disabled the raw file URL is canonical, unless the parent
// is non-public and the viewer lacks permission: redirecting then would
// confirm the parent exists, so no target is produced.
func buildAttachment(ctx context.Context, snap *site.Snapshot, ent *entity.Entity, canView entity.ViewPermission) (*Target, error) {
	if snap.Options.AttachmentPagesEnabled {
		base := "/"
		if ent.Parent != nil {
			parentTarget, err := Build(ctx, snap, ent.Parent, queryvars.Vars{}, canView)
			if err != nil {
				return nil, err
			}
			if !parentTarget.Absolute && parentTarget.Query.Len() == 0 {
				base = parentTarget.Path
			}
		}
		return &Target{Path: base + strings.Trim(ent.Slug, "/") + "/"}, nil
	}

	if ent.Parent != nil && !ent.Parent.Status.Public() {
		if canView == nil || !canView(ctx, ent.Parent) {
			return nil, errPrivateParent
		}
	}

	if strings.TrimSpace(ent.FileURL) == "" {
		return nil, fmt.Errorf("attachment %d has no file URL", ent.ID)
	}
	return &Target{Path: ent.FileURL, Absolute: true}, nil
}

func buildTerm(snap *site.Snapshot, ent *entity.Entity, paged int, feed string) (*Target, error) {
	tax, ok := snap.Taxonomies[ent.Taxonomy]
	if !ok {
		return nil, fmt.Errorf("taxonomy %q is not registered", ent.Taxonomy)
	}
	base := tax.RewriteBase
	if base == "" {
		base = tax.Name
	}

	path := "/" + base + "/" + strings.Trim(ent.Slug, "/") + "/"
	if feed != "" {
		return &Target{Path: feedPath(path, feed)}, nil
	}
	if paged > 1 {
		return &Target{Path: fmt.Sprintf("%spage/%d/", path, paged)}, nil
	}
	return &Target{Path: path}, nil
}

func buildAuthor(ent *entity.Entity, paged int, feed string) *Target {
	path := "/author/" + strings.Trim(ent.Slug, "/") + "/"
	if feed != "" {
		return &Target{Path: feedPath(path, feed)}
	}
	if paged > 1 {
		return &Target{Path: fmt.Sprintf("%spage/%d/", path, paged)}
	}
	return &Target{Path: path}
}

func buildDateArchive(ent *entity.Entity, paged int, feed string) (*Target, error) {
	if ent.Year <= 0 {
		return nil, fmt.Errorf("date archive without a year")
	}

	path := fmt.Sprintf("/%04d/", ent.Year)
	if ent.Month > 0 {
		if ent.Month > 12 {
			return nil, fmt.Errorf("date archive month %d out of range", ent.Month)
		}
		path = fmt.Sprintf("%s%02d/", path, ent.Month)
		if ent.Day > 0 {
			if ent.Day > 31 {
				return nil, fmt.Errorf("date archive day %d out of range", ent.Day)
			}
			path = fmt.Sprintf("%s%02d/", path, ent.Day)
		}
	}

	if feed != "" {
		return &Target{Path: feedPath(path, feed)}, nil
	}
	if paged > 1 {
		return &Target{Path: fmt.Sprintf("%spage/%d/", path, paged)}, nil
	}
	return &Target{Path: path}, nil
}

// postPermalinkPath expands the configured permalink structure for a
// post. The canonical term for a taxonomy token is the first assigned
// term; ordering is owned by the resolver and never re-imposed here.
func postPermalinkPath(snap *site.Snapshot, ent *entity.Entity) (string, error) {
	if pt, ok := snap.PostType(ent.Type); ok && pt.RewriteBase != "" {
		return "/" + strings.Trim(pt.RewriteBase, "/") + "/" + strings.Trim(ent.Slug, "/") + "/", nil
	}

	structure := snap.Options.PermalinkStructure
	if strings.TrimSpace(structure) == "" {
		structure = "/%postname%/"
	}

	segments := strings.Split(strings.Trim(structure, "/"), "/")
	parts := make([]string, 0, len(segments))
	for _, segment := range segments {
		expanded, err := expandStructureToken(segment, ent)
		if err != nil {
			return "", err
		}
		if expanded != "" {
			parts = append(parts, expanded)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("permalink structure %q produced an empty path", structure)
	}
	return "/" + strings.Join(parts, "/") + "/", nil
}

func expandStructureToken(segment string, ent *entity.Entity) (string, error) {
	switch segment {
	case "%postname%":
		if ent.Slug == "" {
			return "", fmt.Errorf("post %d has no slug", ent.ID)
		}
		return ent.Slug, nil
	case "%post_id%":
		return strconv.FormatInt(ent.ID, 10), nil
	case "%category%":
		term, ok := ent.CanonicalTerm("category")
		if !ok {
			return "", fmt.Errorf("post %d has no category for permalink structure", ent.ID)
		}
		return term.Slug, nil
	case "%year%":
		if ent.Year <= 0 {
			return "", fmt.Errorf("post %d has no year for permalink structure", ent.ID)
		}
		return fmt.Sprintf("%04d", ent.Year), nil
	case "%monthnum%":
		if ent.Month <= 0 {
			return "", fmt.Errorf("post %d has no month for permalink structure", ent.ID)
		}
		return fmt.Sprintf("%02d", ent.Month), nil
	case "%day%":
		if ent.Day <= 0 {
			return "", fmt.Errorf("post %d has no day for permalink structure", ent.ID)
		}
		return fmt.Sprintf("%02d", ent.Day), nil
	default:
		if strings.Contains(segment, "%") {
			return "", fmt.Errorf("unsupported permalink token %q", segment)
		}
		return segment, nil
	}
}

// feedPath appends the feed suffix. rss2 is the default feed and gets
// the bare /feed/ form; everything else is named explicitly.
func feedPath(base, feed string) string {
	if feed == "rss2" {
		return base + "feed/"
	}
	return base + "feed/" + feed + "/"
}

func positiveIntVar(vars queryvars.Vars, key string) int {
	value, ok := vars.Get(key)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func feedVar(vars queryvars.Vars) string {
	value, ok := vars.Get("feed")
	if !ok {
		return ""
	}
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case "", "feed", "rss", "rss2":
		if value == "" {
			return ""
		}
		return "rss2"
	case "atom", "rdf":
		return value
	default:
		return value
	}
}
