package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// PostRecord is the read model for one content row.
type PostRecord struct {
	PostID      int64      `json:"post_id"`
	Slug        string     `json:"slug"`
	Title       string     `json:"title"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	ParentID    *int64     `json:"parent_id,omitempty"`
	FileURL     *string    `json:"file_url,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// TermRecord is one term assigned to a post, in natural order.
type TermRecord struct {
	TermID   int64  `json:"term_id"`
	Slug     string `json:"slug"`
	Taxonomy string `json:"taxonomy"`
	Name     string `json:"name"`
}

const postColumns = `
	post_id,
	slug,
	title,
	type,
	status,
	parent_id,
	file_url,
	published_at
`

func scanPost(row *Row) (*PostRecord, error) {
	var rec PostRecord
	if err := row.Scan(
		&rec.PostID,
		&rec.Slug,
		&rec.Title,
		&rec.Type,
		&rec.Status,
		&rec.ParentID,
		&rec.FileURL,
		&rec.PublishedAt,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetPostByID fetches one content row by identifier.
func (p *Pool) GetPostByID(ctx context.Context, id int64) (*PostRecord, error) {
	q := `SELECT ` + postColumns + ` FROM canon.posts WHERE post_id = ?`
	rec, err := scanPost(p.QueryRow(ctx, q, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("get post by id: %w", err)
	}
	return rec, nil
}

// GetPostBySlug fetches one content row by exact slug, restricted to
// the given types. Newest row wins when slugs collide across types.
func (p *Pool) GetPostBySlug(ctx context.Context, slug string, types []string) (*PostRecord, error) {
	if len(types) == 0 {
		return nil, ErrNoRows
	}
	q := `
SELECT ` + postColumns + `
FROM canon.posts
WHERE slug = ? AND type IN ?
ORDER BY published_at DESC NULLS LAST, post_id ASC
LIMIT 1
`
	rec, err := scanPost(p.QueryRow(ctx, q, slug, types))
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("get post by slug: %w", err)
	}
	return rec, nil
}

// ListPostTerms returns a post's terms in natural order: assignment
// order first, then ascending term id. The first term of a taxonomy is
// that taxonomy's canonical term for the post.
func (p *Pool) ListPostTerms(ctx context.Context, postID int64) ([]TermRecord, error) {
	const q = `
SELECT
	t.term_id,
	t.slug,
	t.taxonomy,
	t.name
FROM canon.term_assignments ta
JOIN canon.terms t ON t.term_id = ta.term_id
WHERE ta.post_id = ?
ORDER BY ta.term_order ASC, t.term_id ASC
`
	rows, err := p.Query(ctx, q, postID)
	if err != nil {
		return nil, fmt.Errorf("list post terms: %w", err)
	}
	defer rows.Close()

	var terms []TermRecord
	for rows.Next() {
		var rec TermRecord
		if err := rows.Scan(&rec.TermID, &rec.Slug, &rec.Taxonomy, &rec.Name); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		terms = append(terms, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate terms: %w", err)
	}
	return terms, nil
}

// GetTermBySlug fetches one term of a taxonomy.
func (p *Pool) GetTermBySlug(ctx context.Context, taxonomy, slug string) (*TermRecord, error) {
	const q = `
SELECT term_id, slug, taxonomy, name
FROM canon.terms
WHERE taxonomy = ? AND slug = ?
LIMIT 1
`
	var rec TermRecord
	if err := p.QueryRow(ctx, q, taxonomy, slug).Scan(&rec.TermID, &rec.Slug, &rec.Taxonomy, &rec.Name); err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("get term by slug: %w", err)
	}
	return &rec, nil
}

// FindGuessCandidate searches public content whose slug matches the
// requested one: exact match preferred, then the shortest slug the
// request is a prefix of. Strict mode only accepts exact matches.
func (p *Pool) FindGuessCandidate(ctx context.Context, slug string, types []string, strict bool) (*PostRecord, error) {
	if len(types) == 0 || strings.TrimSpace(slug) == "" {
		return nil, ErrNoRows
	}

	q := `
SELECT ` + postColumns + `
FROM canon.posts
WHERE status = 'public'
  AND type IN ?
  AND (slug = ? OR (? AND slug LIKE ?))
ORDER BY (slug = ?) DESC, LENGTH(slug) ASC, published_at DESC NULLS LAST
LIMIT 1
`
	pattern := likePrefixPattern(slug)
	rec, err := scanPost(p.QueryRow(ctx, q, types, slug, !strict, pattern, slug))
	if err != nil {
		if IsNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("find guess candidate: %w", err)
	}
	return rec, nil
}

// likePrefixPattern escapes LIKE metacharacters so the requested slug
// is matched literally as a prefix.
func likePrefixPattern(slug string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(slug)
	return escaped + "%"
}
