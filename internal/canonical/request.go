package canonical

import (
	"fmt"
	"net/url"
	"strings"

	"horse.fit/canon/internal/queryvars"
)

// Request is one captured incoming URL. Immutable once parsed; the
// resolver never mutates it.
type Request struct {
	RawURL string
	Scheme string
	Host   string
	Path   string
	Query  queryvars.Vars
}

// ParseRequest captures a raw URL, absolute or site-relative, into a
// Request. The query string is decoded into ordered variables; repeated
// scalar keys overwrite per standard query-string semantics.
func ParseRequest(raw string) (Request, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Request{}, fmt.Errorf("request URL is empty")
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return Request{}, fmt.Errorf("parse request URL: %w", err)
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}

	return Request{
		RawURL: trimmed,
		Scheme: parsed.Scheme,
		Host:   parsed.Host,
		Path:   path,
		Query:  queryvars.Parse(parsed.RawQuery),
	}, nil
}
