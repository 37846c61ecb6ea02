package site

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed site_config.schema.json
var siteConfigSchemaJSON string

// configDocument is the wire shape of a site configuration file. Post
// types and taxonomies arrive as arrays so the document stays diffable;
// they are folded into registry maps on load.
type configDocument struct {
	ConfigVersion string     `json:"config_version"`
	Options       Options    `json:"options"`
	PostTypes     []PostType `json:"post_types,omitempty"`
	Taxonomies    []Taxonomy `json:"taxonomies,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// LoadFile reads, validates and folds a site configuration document
// into a Snapshot. Registrations in the document are merged over the
// built-in defaults.
func LoadFile(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read site config: %w", err)
	}
	return Parse(raw)
}

// Parse validates a raw site configuration document against the
// embedded schema and folds it into a Snapshot.
func Parse(raw []byte) (*Snapshot, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("decode site config JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize site config JSON: %w", err)
	}

	var doc configDocument
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal site config: %w", err)
	}

	if err := validateSemantics(&doc); err != nil {
		return nil, err
	}

	snap := Defaults()
	snap.Options = doc.Options
	for _, pt := range doc.PostTypes {
		snap.PostTypes[pt.Name] = pt
	}
	for _, tax := range doc.Taxonomies {
		snap.Taxonomies[tax.Name] = tax
	}
	return snap, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource("site_config.schema.json", strings.NewReader(siteConfigSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("site_config.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("document is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("document contains trailing content")
	}

	return value, nil
}

func validateSemantics(doc *configDocument) error {
	if doc == nil {
		return fmt.Errorf("document is nil")
	}

	home := strings.TrimSpace(doc.Options.HomeURL)
	parsed, err := url.Parse(home)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("home_url must be an absolute URL, got %q", doc.Options.HomeURL)
	}

	if doc.Options.UsingPermalinks && strings.TrimSpace(doc.Options.PermalinkStructure) == "" {
		return fmt.Errorf("permalink_structure is required when using_permalinks is true")
	}

	seen := map[string]struct{}{}
	for i, pt := range doc.PostTypes {
		name := strings.TrimSpace(pt.Name)
		if name == "" {
			return fmt.Errorf("post_types[%d].name must not be empty", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("post type %q registered twice", name)
		}
		seen[name] = struct{}{}
	}

	return nil
}
