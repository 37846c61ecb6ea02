package canonical

import (
	"context"
	"testing"

	"horse.fit/canon/internal/entity"
	"horse.fit/canon/internal/queryvars"
	"horse.fit/canon/internal/site"
)

func TestBuildDateArchivePaths(t *testing.T) {
	t.Parallel()

	snap := site.Defaults()
	cases := []struct {
		ent  entity.Entity
		want string
	}{
		{entity.Entity{Kind: entity.KindDateArchive, Year: 2024}, "/2024/"},
		{entity.Entity{Kind: entity.KindDateArchive, Year: 2024, Month: 5}, "/2024/05/"},
		{entity.Entity{Kind: entity.KindDateArchive, Year: 2024, Month: 5, Day: 7}, "/2024/05/07/"},
	}

	for _, tc := range cases {
		target, err := Build(context.Background(), snap, &tc.ent, queryvars.Vars{}, nil)
		if err != nil {
			t.Fatalf("build date archive: %v", err)
		}
		if target.Path != tc.want {
			t.Fatalf("expected %q, got %q", tc.want, target.Path)
		}
	}
}

func TestBuildDateArchiveRejectsImpossibleDates(t *testing.T) {
	t.Parallel()

	snap := site.Defaults()
	ent := entity.Entity{Kind: entity.KindDateArchive, Year: 2024, Month: 19}
	if _, err := Build(context.Background(), snap, &ent, queryvars.Vars{}, nil); err == nil {
		t.Fatalf("expected out-of-range month to fail")
	}
}

func TestBuildFeedVariants(t *testing.T) {
	t.Parallel()

	snap := site.Defaults()
	ent := entity.Entity{Kind: entity.KindFrontPage}

	target, err := Build(context.Background(), snap, &ent, queryvars.Parse("feed=rss2"), nil)
	if err != nil || target.Path != "/feed/" {
		t.Fatalf("expected default feed at /feed/, got %v err=%v", target, err)
	}

	target, err = Build(context.Background(), snap, &ent, queryvars.Parse("feed=atom"), nil)
	if err != nil || target.Path != "/feed/atom/" {
		t.Fatalf("expected named atom feed, got %v err=%v", target, err)
	}
}

func TestBuildTermUsesRewriteBase(t *testing.T) {
	t.Parallel()

	snap := site.Defaults()
	ent := entity.Entity{Kind: entity.KindTerm, Slug: "widgets", Taxonomy: "post_tag"}

	target, err := Build(context.Background(), snap, &ent, queryvars.Parse("paged=2"), nil)
	if err != nil {
		t.Fatalf("build term: %v", err)
	}
	if target.Path != "/tag/widgets/page/2/" {
		t.Fatalf("unexpected term path: %q", target.Path)
	}
}

func TestBuildUnregisteredTaxonomyFails(t *testing.T) {
	t.Parallel()

	snap := site.Defaults()
	ent := entity.Entity{Kind: entity.KindTerm, Slug: "x", Taxonomy: "nope"}
	if _, err := Build(context.Background(), snap, &ent, queryvars.Vars{}, nil); err == nil {
		t.Fatalf("expected unregistered taxonomy to fail")
	}
}

func TestBuildPlainPermalinksUseQueryForm(t *testing.T) {
	t.Parallel()

	snap := site.Defaults()
	snap.Options.UsingPermalinks = false
	ent := entity.Entity{Kind: entity.KindPost, ID: 358, Slug: "some-post", Type: "post", Status: entity.StatusPublic}

	target, err := Build(context.Background(), snap, &ent, queryvars.Vars{}, nil)
	if err != nil {
		t.Fatalf("build plain permalink: %v", err)
	}
	if target.Location() != "/?p=358" {
		t.Fatalf("unexpected plain permalink: %q", target.Location())
	}
}

func TestBuildPostContentPagination(t *testing.T) {
	t.Parallel()

	snap := site.Defaults()
	ent := entity.Entity{Kind: entity.KindPost, ID: 9, Slug: "long-read", Type: "post", Status: entity.StatusPublic}

	target, err := Build(context.Background(), snap, &ent, queryvars.Parse("page=3"), nil)
	if err != nil {
		t.Fatalf("build paginated post: %v", err)
	}
	if target.Path != "/long-read/3/" {
		t.Fatalf("unexpected paginated path: %q", target.Path)
	}
}

func TestBuildUnsupportedStructureTokenFails(t *testing.T) {
	t.Parallel()

	snap := site.Defaults()
	snap.Options.PermalinkStructure = "/%author%/%postname%/"
	ent := entity.Entity{Kind: entity.KindPost, ID: 9, Slug: "x", Type: "post", Status: entity.StatusPublic}

	if _, err := Build(context.Background(), snap, &ent, queryvars.Vars{}, nil); err == nil {
		t.Fatalf("expected unsupported token to fail rather than mis-build")
	}
}

func TestBuildAttachmentPageEnabled(t *testing.T) {
	t.Parallel()

	snap := site.Defaults()
	parent := entity.Entity{Kind: entity.KindPost, ID: 1, Slug: "parent-post", Type: "post", Status: entity.StatusPublic}
	ent := entity.Entity{Kind: entity.KindAttachment, ID: 2, Slug: "photo", Type: "attachment", Status: entity.StatusPublic, Parent: &parent}

	target, err := Build(context.Background(), snap, &ent, queryvars.Vars{}, nil)
	if err != nil {
		t.Fatalf("build attachment page: %v", err)
	}
	if target.Path != "/parent-post/photo/" {
		t.Fatalf("unexpected attachment page path: %q", target.Path)
	}
}
