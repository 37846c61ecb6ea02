package queryvars

import "testing"

func TestNormalizeStripsTrailingPunctuation(t *testing.T) {
	t.Parallel()

	vars := Parse("p=358!")
	normalized := Normalize(vars)
	if got, _ := normalized.Get("p"); got != "358" {
		t.Fatalf("expected p=358 after stripping, got %q", got)
	}

	vars = Parse("p=358%21")
	normalized = Normalize(vars)
	if got, _ := normalized.Get("p"); got != "358" {
		t.Fatalf("expected p=358 after decoding and stripping, got %q", got)
	}
}

func TestNormalizeStripsDoubleEncodedPunctuation(t *testing.T) {
	t.Parallel()

	// %2521 decodes once to the literal text "%21"; the encoded-suffix
	// pass has to catch that form too.
	vars := Parse("p=358%2521")
	normalized := Normalize(vars)
	if got, _ := normalized.Get("p"); got != "358" {
		t.Fatalf("expected p=358 after stripping encoded suffix, got %q", got)
	}
}

func TestNormalizeStripsSmartQuotes(t *testing.T) {
	t.Parallel()

	vars := Parse("name=hello-world%E2%80%9D")
	normalized := Normalize(vars)
	if got, _ := normalized.Get("name"); got != "hello-world" {
		t.Fatalf("expected smart quote stripped, got %q", got)
	}
}

func TestNormalizeCollapsesPageIDAlias(t *testing.T) {
	t.Parallel()

	vars := Parse("page_id=12")
	normalized := Normalize(vars)
	if got, _ := normalized.Get("p"); got != "12" {
		t.Fatalf("expected page_id collapsed to p, got %q", got)
	}
	if normalized.Has("page_id") {
		t.Fatalf("expected page_id removed after collapsing")
	}
}

func TestNormalizeKeepsExistingPOverAlias(t *testing.T) {
	t.Parallel()

	vars := Parse("p=7&attachment_id=9")
	normalized := Normalize(vars)
	if got, _ := normalized.Get("p"); got != "7" {
		t.Fatalf("expected existing p to win over attachment_id, got %q", got)
	}
	if normalized.Has("attachment_id") {
		t.Fatalf("expected attachment_id removed")
	}
}

func TestNormalizeFeedAlias(t *testing.T) {
	t.Parallel()

	vars := Parse("feed=rss")
	normalized := Normalize(vars)
	if got, _ := normalized.Get("feed"); got != "rss2" {
		t.Fatalf("expected legacy rss collapsed to rss2, got %q", got)
	}

	vars = Parse("feed=atom")
	normalized = Normalize(vars)
	if got, _ := normalized.Get("feed"); got != "atom" {
		t.Fatalf("expected atom untouched, got %q", got)
	}
}

func TestNormalizeIdentifierWinsOverPostType(t *testing.T) {
	t.Parallel()

	vars := Parse("p=44&post_type%5B%5D=book&post_type%5B%5D=movie")
	normalized := Normalize(vars)
	if normalized.Has("post_type") {
		t.Fatalf("expected contradicted post_type dropped when numeric id present")
	}
	if got, _ := normalized.Get("p"); got != "44" {
		t.Fatalf("expected identifier preserved, got %q", got)
	}
}

func TestNormalizeLeavesUnknownKeysInOrder(t *testing.T) {
	t.Parallel()

	vars := Parse("zeta=1&alpha=2&p=3")
	normalized := Normalize(vars)
	keys := normalized.Keys()
	if len(keys) != 3 || keys[0] != "zeta" || keys[1] != "alpha" || keys[2] != "p" {
		t.Fatalf("expected original key order preserved, got %v", keys)
	}
}

func TestNormalizeMalformedValueLeftAlone(t *testing.T) {
	t.Parallel()

	vars := Parse("name=%zz-broken")
	normalized := Normalize(vars)
	if got, ok := normalized.Get("name"); !ok || got == "" {
		t.Fatalf("expected malformed value carried through, got %q ok=%t", got, ok)
	}
}
