package queryvars

import (
	"fmt"
	"strconv"
	"strings"
)

// keyAlias maps a legacy variable name to its canonical equivalent.
// Collapsing happens once, up front, so the rest of the resolver only
// ever sees the canonical key.
type keyAlias struct {
	from string
	to   string
}

// valueAlias rewrites a legacy value of a specific key to its canonical form.
type valueAlias struct {
	key  string
	from string
	to   string
}

var keyAliases = []keyAlias{
	{from: "page_id", to: "p"},
	{from: "attachment_id", to: "p"},
}

var valueAliases = []valueAlias{
	{key: "feed", from: "rss", to: "rss2"},
}

// trailingPunct is the set of characters historically appended to URLs
// by auto-linking text processors. Stripped from the end of scalar
// values, in both raw and percent-encoded form.
const trailingPunct = `'";:,.?!()[]{}` + "‘’“”"

// Normalize collapses aliases and strips stray trailing punctuation
// from scalar values. Unrecognized keys pass through untouched in their
// original order. Malformed values are left as-is; normalization never
// fails part-way through.
func Normalize(raw Vars) Vars {
	out := raw.Clone()

	for i := range out.vars {
		if out.vars[i].IsList {
			continue
		}
		out.vars[i].Value = stripTrailingPunct(out.vars[i].Value)
	}

	for _, alias := range keyAliases {
		value, ok := out.Get(alias.from)
		if !ok {
			continue
		}
		if _, exists := out.Get(alias.to); !exists {
			out.Set(alias.to, value)
		}
		out.Delete(alias.from)
	}

	for _, alias := range valueAliases {
		if value, ok := out.Get(alias.key); ok && value == alias.from {
			out.Set(alias.key, alias.to)
		}
	}

	// A numeric post identifier pins the lookup to one row; a post_type
	// constraint alongside it is either redundant or contradicted, and
	// the identifier wins either way.
	if id, ok := out.Get("p"); ok && isPositiveInt(id) && out.Has("post_type") {
		out.Delete("post_type")
	}

	return out
}

func isPositiveInt(value string) bool {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	return err == nil && n > 0
}

func stripTrailingPunct(value string) string {
	trimmed := strings.TrimSpace(value)
	for {
		next := strings.TrimSpace(trimmed)
		next = trimPunctSuffix(next)
		next = trimEncodedPunctSuffix(next)
		if next == trimmed {
			return trimmed
		}
		trimmed = next
	}
}

func trimPunctSuffix(value string) string {
	return strings.TrimRight(value, trailingPunct)
}

// trimEncodedPunctSuffix drops one percent-encoded punctuation sequence
// from the end of the value, if present. Encoded whitespace counts too.
func trimEncodedPunctSuffix(value string) string {
	lower := strings.ToLower(value)
	for _, enc := range encodedPunctSuffixes {
		if strings.HasSuffix(lower, enc) {
			return value[:len(value)-len(enc)]
		}
	}
	return value
}

var encodedPunctSuffixes = buildEncodedSuffixes()

func buildEncodedSuffixes() []string {
	suffixes := make([]string, 0, len(trailingPunct)+4)
	for _, r := range trailingPunct + " \t\n\r" {
		var encoded strings.Builder
		for _, b := range []byte(string(r)) {
			fmt.Fprintf(&encoded, "%%%02x", b)
		}
		suffixes = append(suffixes, encoded.String())
	}
	return suffixes
}
