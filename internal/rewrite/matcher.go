package rewrite

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"horse.fit/canon/internal/queryvars"
	"horse.fit/canon/internal/site"
)

// Rule maps a path pattern to a query-variable template. Templates use
// $1..$n to reference capture groups. Rules are evaluated in order and
// the first match wins.
type Rule struct {
	Name     string
	Pattern  *regexp.Regexp
	Template map[string]string
	Order    []string
}

// Matcher resolves incoming paths to query variables using an ordered
// rule set derived from the site's rewrite configuration. It consumes
// the configuration as given; it is not a rule compiler.
type Matcher struct {
	rules []Rule
}

// Match applies the first matching rule to path. The second return is
// false when no rule matches.
func (m *Matcher) Match(path string) (queryvars.Vars, bool) {
	if m == nil {
		return queryvars.Vars{}, false
	}
	cleaned := "/" + strings.Trim(path, "/")

	for _, rule := range m.rules {
		groups := rule.Pattern.FindStringSubmatch(cleaned)
		if groups == nil {
			continue
		}
		var vars queryvars.Vars
		for _, key := range rule.Order {
			value := expandTemplate(rule.Template[key], groups)
			if value == "" {
				// A bare /feed/ suffix means the default feed.
				if key == "feed" {
					value = "rss2"
				} else {
					continue
				}
			}
			vars.Set(key, value)
		}
		return vars, true
	}
	return queryvars.Vars{}, false
}

func expandTemplate(template string, groups []string) string {
	out := template
	for i := len(groups) - 1; i >= 1; i-- {
		out = strings.ReplaceAll(out, fmt.Sprintf("$%d", i), groups[i])
	}
	return out
}

// ForSnapshot builds the default rule set for a configuration snapshot:
// root pagination and feeds, taxonomy archives, author and date
// archives, custom post-type bases, and the permalink-structure shapes
// for posts and pages (embed, feed, paging and attachment suffixes).
func ForSnapshot(snap *site.Snapshot) *Matcher {
	m := &Matcher{}
	add := func(name, pattern string, pairs ...string) {
		rule := Rule{
			Name:     name,
			Pattern:  regexp.MustCompile(pattern),
			Template: map[string]string{},
		}
		for i := 0; i+1 < len(pairs); i += 2 {
			rule.Template[pairs[i]] = pairs[i+1]
			rule.Order = append(rule.Order, pairs[i])
		}
		m.rules = append(m.rules, rule)
	}

	add("root", `^/$`)
	add("root-paged", `^/page/(\d+)/?$`, "paged", "$1")
	add("root-feed", `^/feed(?:/(rss2|atom|rdf|rss))?/?$`, "feed", "$1")
	add("root-embed", `^/embed/?$`, "embed", "true")

	for _, tax := range taxonomiesInOrder(snap) {
		base := tax.RewriteBase
		if base == "" {
			base = tax.Name
		}
		qv := tax.QueryVar
		if qv == "" {
			qv = tax.Name
		}
		add(tax.Name+"-feed", `^/`+regexp.QuoteMeta(base)+`/(.+?)/feed(?:/(rss2|atom|rdf|rss))?/?$`, qv, "$1", "feed", "$2")
		add(tax.Name+"-paged", `^/`+regexp.QuoteMeta(base)+`/(.+?)/page/(\d+)/?$`, qv, "$1", "paged", "$2")
		add(tax.Name, `^/`+regexp.QuoteMeta(base)+`/(.+?)/?$`, qv, "$1")
	}

	add("author-feed", `^/author/([^/]+)/feed(?:/(rss2|atom|rdf|rss))?/?$`, "author_name", "$1", "feed", "$2")
	add("author-paged", `^/author/([^/]+)/page/(\d+)/?$`, "author_name", "$1", "paged", "$2")
	add("author", `^/author/([^/]+)/?$`, "author_name", "$1")

	add("date-day-paged", `^/(\d{4})/(\d{1,2})/(\d{1,2})/page/(\d+)/?$`, "year", "$1", "monthnum", "$2", "day", "$3", "paged", "$4")
	add("date-day", `^/(\d{4})/(\d{1,2})/(\d{1,2})/?$`, "year", "$1", "monthnum", "$2", "day", "$3")
	add("date-month-feed", `^/(\d{4})/(\d{1,2})/feed(?:/(rss2|atom|rdf|rss))?/?$`, "year", "$1", "monthnum", "$2", "feed", "$3")
	add("date-month-paged", `^/(\d{4})/(\d{1,2})/page/(\d+)/?$`, "year", "$1", "monthnum", "$2", "paged", "$3")
	add("date-month", `^/(\d{4})/(\d{1,2})/?$`, "year", "$1", "monthnum", "$2")
	add("date-year", `^/(\d{4})/?$`, "year", "$1")

	for _, pt := range postTypesInOrder(snap) {
		if pt.RewriteBase == "" {
			continue
		}
		base := regexp.QuoteMeta(strings.Trim(pt.RewriteBase, "/"))
		add(pt.Name+"-embed", `^/`+base+`/([^/]+)/embed/?$`, "post_type", pt.Name, "name", "$1", "embed", "true")
		add(pt.Name+"-page", `^/`+base+`/([^/]+)/(\d+)/?$`, "post_type", pt.Name, "name", "$1", "page", "$2")
		add(pt.Name, `^/`+base+`/([^/]+)/?$`, "post_type", pt.Name, "name", "$1")
	}

	// Single-slug suffix forms go ahead of the structure rules so that
	// /some-page/2/ parses as content pagination rather than as a
	// category-and-postname pair.
	add("slug-embed", `^/([^/]+)/embed/?$`, "name", "$1", "embed", "true")
	add("slug-feed", `^/([^/]+)/feed(?:/(rss2|atom|rdf|rss))?/?$`, "name", "$1", "feed", "$2")
	add("slug-list-paged", `^/([^/]+)/page/(\d+)/?$`, "name", "$1", "paged", "$2")
	add("slug-page", `^/([^/]+)/(\d+)/?$`, "name", "$1", "page", "$2")

	if strings.Contains(snap.Options.PermalinkStructure, "%category%") {
		add("post-embed", `^/(.+?)/([^/]+)/embed/?$`, "category_name", "$1", "name", "$2", "embed", "true")
		add("post-feed", `^/(.+?)/([^/]+)/feed(?:/(rss2|atom|rdf|rss))?/?$`, "category_name", "$1", "name", "$2", "feed", "$3")
		add("post-page", `^/(.+?)/([^/]+)/(\d+)/?$`, "category_name", "$1", "name", "$2", "page", "$3")
		add("post-attachment", `^/(.+?)/([^/]+)/([^/]+)/?$`, "category_name", "$1", "name", "$2", "attachment", "$3")
		add("post", `^/(.+?)/([^/]+)/?$`, "category_name", "$1", "name", "$2")
	}

	add("slug-attachment", `^/([^/]+)/([^/]+)/?$`, "name", "$1", "attachment", "$2")
	add("slug", `^/([^/]+)/?$`, "name", "$1")

	return m
}

// MergedVars matches the path and overlays the literal query-string
// variables, which win over path-derived ones.
func (m *Matcher) MergedVars(path string, query queryvars.Vars) queryvars.Vars {
	vars, _ := m.Match(path)
	for _, key := range query.Keys() {
		if query.IsList(key) {
			values, _ := query.GetList(key)
			vars.Delete(key)
			for _, value := range values {
				vars.Append(key, value)
			}
			continue
		}
		value, _ := query.Get(key)
		vars.Set(key, value)
	}
	return vars
}

func taxonomiesInOrder(snap *site.Snapshot) []site.Taxonomy {
	names := make([]string, 0, len(snap.Taxonomies))
	for name := range snap.Taxonomies {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]site.Taxonomy, 0, len(names))
	for _, name := range names {
		out = append(out, snap.Taxonomies[name])
	}
	return out
}

func postTypesInOrder(snap *site.Snapshot) []site.PostType {
	names := make([]string, 0, len(snap.PostTypes))
	for name := range snap.PostTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]site.PostType, 0, len(names))
	for _, name := range names {
		out = append(out, snap.PostTypes[name])
	}
	return out
}
