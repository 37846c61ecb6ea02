package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/canon/internal/canonical"
	"horse.fit/canon/internal/cli"
	"horse.fit/canon/internal/config"
	"horse.fit/canon/internal/db"
	"horse.fit/canon/internal/logging"
	"horse.fit/canon/internal/rewrite"
	"horse.fit/canon/internal/site"
)

// runResolve evaluates one URL against the stored content and prints
// the redirect decision as JSON. The viewer is anonymous, so private
// content behaves exactly as it would for a logged-out visitor.
func runResolve(args []string) int {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	rawURL := fs.String("url", "", "URL to resolve (required)")
	sitePath := fs.String("site", "", "Site configuration JSON file (overrides SITE_CONFIG_PATH)")
	timeout := fs.Duration("timeout", 10*time.Second, "Resolution timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if strings.TrimSpace(*rawURL) == "" {
		fmt.Fprintln(os.Stderr, "--url is required")
		return 2
	}

	req, err := canonical.ParseRequest(strings.TrimSpace(*rawURL))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid URL: %v\n", err)
		return 2
	}

	if envLoader != nil {
		if _, err := envLoader.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Environment, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		return 1
	}

	snap, err := loadSiteSnapshot(cfg, *sitePath)
	if err != nil {
		logger.Error().Err(err).Msg("load site configuration failed")
		fmt.Fprintf(os.Stderr, "Failed to load site configuration: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Error().Err(err).Msg("resolve failed to connect to database")
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %v\n", err)
		return 1
	}
	defer pool.Close()

	resolver := db.NewEntityResolver(pool, snap)
	matcher := rewrite.ForSnapshot(snap)
	guesser := canonical.NewGuesser(snap, resolver, canonical.GuessPolicy{
		Disabled: snap.Options.GuessDisabled,
		Strict:   snap.Options.StrictGuess,
	})
	engine := canonical.New(snap, canonical.Collaborators{
		Resolver: resolver,
		Guesser:  guesser,
	})

	vars := matcher.MergedVars(req.Path, req.Query)
	decision := engine.Resolve(ctx, req, vars)

	out, err := json.MarshalIndent(map[string]any{
		"request_url": strings.TrimSpace(*rawURL),
		"decision":    decision,
	}, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode decision: %v\n", err)
		return 1
	}
	fmt.Println(string(out))
	return 0
}

// loadSiteSnapshot resolves the site configuration: an explicit flag
// wins over SITE_CONFIG_PATH, and no path at all means the defaults.
func loadSiteSnapshot(cfg *config.Config, override string) (*site.Snapshot, error) {
	path := strings.TrimSpace(override)
	if path == "" && cfg != nil {
		path = strings.TrimSpace(cfg.SiteConfigPath)
	}
	if path == "" {
		return site.Defaults(), nil
	}
	return site.LoadFile(path)
}
