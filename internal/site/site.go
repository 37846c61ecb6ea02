package site

import (
	"net/url"
	"sort"
	"strings"
)

// PostType is one registered content type. Public controls whether the
// type has a front-facing presence at all; PubliclyQueryable controls
// whether it may be reached through front-end queries. The two are
// independent: a public but not publicly queryable type never appears
// in permalink guesses.
type PostType struct {
	Name              string `json:"name"`
	Public            bool   `json:"public"`
	PubliclyQueryable bool   `json:"publicly_queryable"`
	RewriteBase       string `json:"rewrite_base,omitempty"`
}

// Taxonomy is one registered term grouping.
type Taxonomy struct {
	Name        string `json:"name"`
	Public      bool   `json:"public"`
	RewriteBase string `json:"rewrite_base,omitempty"`
	QueryVar    string `json:"query_var,omitempty"`
}

// Options carries the site-level settings the resolver reads. All of it
// is owned and synchronized by the surrounding application; this core
// treats a Snapshot as read-only for the duration of one decision.
type Options struct {
	HomeURL                string `json:"home_url"`
	UsingPermalinks        bool   `json:"using_permalinks"`
	PermalinkStructure     string `json:"permalink_structure"`
	FrontPageID            int64  `json:"front_page_id,omitempty"`
	PostsPageID            int64  `json:"posts_page_id,omitempty"`
	AttachmentPagesEnabled bool   `json:"attachment_pages_enabled"`
	StrictGuess            bool   `json:"strict_guess,omitempty"`
	GuessDisabled          bool   `json:"guess_disabled,omitempty"`
}

// Snapshot is the read-only configuration consulted throughout one
// redirect decision.
type Snapshot struct {
	Options    Options             `json:"options"`
	PostTypes  map[string]PostType `json:"post_types"`
	Taxonomies map[string]Taxonomy `json:"taxonomies"`
}

// Defaults returns a snapshot with the built-in content types and
// taxonomies registered and pretty permalinks enabled.
func Defaults() *Snapshot {
	return &Snapshot{
		Options: Options{
			HomeURL:                "http://localhost",
			UsingPermalinks:        true,
			PermalinkStructure:     "/%postname%/",
			AttachmentPagesEnabled: true,
		},
		PostTypes: map[string]PostType{
			"post":       {Name: "post", Public: true, PubliclyQueryable: true},
			"page":       {Name: "page", Public: true, PubliclyQueryable: true},
			"attachment": {Name: "attachment", Public: true, PubliclyQueryable: true},
		},
		Taxonomies: map[string]Taxonomy{
			"category": {Name: "category", Public: true, RewriteBase: "category", QueryVar: "category_name"},
			"post_tag": {Name: "post_tag", Public: true, RewriteBase: "tag", QueryVar: "tag"},
		},
	}
}

// PostType looks up a registered type by name.
func (s *Snapshot) PostType(name string) (PostType, bool) {
	if s == nil {
		return PostType{}, false
	}
	pt, ok := s.PostTypes[name]
	return pt, ok
}

// GuessableTypes filters candidate type names down to the ones allowed
// to appear in permalink guesses. A type must be both public and
// publicly queryable; public alone is not enough.
func (s *Snapshot) GuessableTypes(candidates []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, 0, len(candidates))
	for _, name := range candidates {
		name = strings.TrimSpace(name)
		pt, ok := s.PostTypes[name]
		if !ok || !pt.Public || !pt.PubliclyQueryable {
			continue
		}
		out = append(out, name)
	}
	return out
}

// DefaultGuessTypes returns every registered type eligible for guessing,
// in a stable order with the built-in types first.
func (s *Snapshot) DefaultGuessTypes() []string {
	if s == nil {
		return nil
	}
	ordered := make([]string, 0, len(s.PostTypes))
	for _, builtin := range []string{"post", "page"} {
		if pt, ok := s.PostTypes[builtin]; ok && pt.Public && pt.PubliclyQueryable {
			ordered = append(ordered, builtin)
		}
	}
	names := make([]string, 0, len(s.PostTypes))
	for name := range s.PostTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if name == "post" || name == "page" || name == "attachment" {
			continue
		}
		pt := s.PostTypes[name]
		if pt.Public && pt.PubliclyQueryable {
			ordered = append(ordered, name)
		}
	}
	return ordered
}

// HomePath joins a site-relative path onto the configured home URL.
func (s *Snapshot) HomePath(path string) string {
	home := strings.TrimRight(s.Options.HomeURL, "/")
	if path == "" || path == "/" {
		return home + "/"
	}
	return home + "/" + strings.TrimLeft(path, "/")
}

// HomeHost returns the host portion of the configured home URL.
func (s *Snapshot) HomeHost() string {
	parsed, err := url.Parse(s.Options.HomeURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}
