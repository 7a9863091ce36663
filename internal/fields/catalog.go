package fields

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed rules/default.json rules/schema.json
var ruleFiles embed.FS

// Catalog is the declarative rule configuration, one entry per document type.
type Catalog struct {
	Version       int        `json:"version"`
	DocumentTypes []TypeSpec `json:"documentTypes"`
}

// TypeSpec lists the ordered rules for one document type.
type TypeSpec struct {
	Name    string     `json:"name"`
	Aliases []string   `json:"aliases,omitempty"`
	Rules   []RuleSpec `json:"rules"`
}

// RuleSpec is a single field rule. Label and Value are regular expression
// fragments; matching is always case-insensitive.
type RuleSpec struct {
	Field  string `json:"field"`
	Label  string `json:"label"`
	Value  string `json:"value"`
	Policy Policy `json:"policy,omitempty"`
}

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func catalogSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		raw, err := ruleFiles.ReadFile("rules/schema.json")
		if err != nil {
			schemaErr = fmt.Errorf("read schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("rules.schema.json", bytes.NewReader(raw)); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile("rules.schema.json")
	})
	return schema, schemaErr
}

// ParseCatalog validates raw JSON against the catalog schema and decodes it.
func ParseCatalog(data []byte) (Catalog, error) {
	s, err := catalogSchema()
	if err != nil {
		return Catalog{}, fmt.Errorf("compile schema: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Catalog{}, fmt.Errorf("unmarshal catalog: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return Catalog{}, fmt.Errorf("catalog does not match schema: %w", err)
	}
	var cat Catalog
	if err := json.Unmarshal(data, &cat); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	return cat, nil
}

// Load parses and compiles a catalog.
func Load(data []byte) (*Registry, error) {
	cat, err := ParseCatalog(data)
	if err != nil {
		return nil, err
	}
	return NewRegistry(cat)
}

// LoadFile loads a catalog from disk.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Load(data)
}

// Default returns the registry compiled from the embedded catalog.
func Default() *Registry {
	data, err := ruleFiles.ReadFile("rules/default.json")
	if err != nil {
		panic(fmt.Sprintf("fields: embedded catalog missing: %v", err))
	}
	reg, err := Load(data)
	if err != nil {
		panic(fmt.Sprintf("fields: embedded catalog invalid: %v", err))
	}
	return reg
}
