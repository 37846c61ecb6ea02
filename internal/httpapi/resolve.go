package httpapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"horse.fit/canon/internal/canonical"
)

type resolveResponse struct {
	RequestURL string             `json:"request_url"`
	Decision   canonical.Decision `json:"decision"`
}

// handleResolve answers the canonical form of one requested URL. The
// viewer is detected from the session cookie when present; anonymous
// requests are resolved with no view permission.
func (s *Server) handleResolve(c echo.Context) error {
	raw := strings.TrimSpace(c.QueryParam("url"))
	if raw == "" {
		return failValidation(c, map[string]string{"url": "is required"})
	}

	req, err := canonical.ParseRequest(raw)
	if err != nil {
		return failValidation(c, map[string]string{"url": "must be a valid URL"})
	}

	ctx := c.Request().Context()
	principal, err := s.authenticate(c)
	if err != nil {
		s.logger.Error().Err(err).Msg("viewer detection failed")
		return internalError(c, "Failed to resolve URL")
	}
	if principal != nil {
		ctx = withViewer(ctx, *principal)
	}

	vars := s.matcher.MergedVars(req.Path, req.Query)
	decision := s.engine.Resolve(ctx, req, vars)

	s.logger.Debug().
		Str("request_url", raw).
		Str("outcome", string(decision.Outcome)).
		Str("location", decision.Location).
		Msg("resolved canonical form")

	return success(c, resolveResponse{
		RequestURL: raw,
		Decision:   decision,
	})
}
