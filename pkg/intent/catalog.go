package intent

import (
	_ "embed"
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/glimpse/pkg/model"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
	"gopkg.in/yaml.v3"
)

//go:embed intents.yaml
var defaultCatalogRaw []byte

// Definition is one intent of the catalog with its argument schema
type Definition struct {
	Intent      model.Intent
	Description string
	Parameters  *jsonschema.Schema

	resolved    *jsonschema.Resolved
	declaration *genai.FunctionDeclaration
}

// Declaration returns the function declaration offered to Gemini
func (d *Definition) Declaration() *genai.FunctionDeclaration {
	return d.declaration
}

// Validate checks args against the parameter schema
func (d *Definition) Validate(args model.Arguments) error {
	instance := map[string]any{}
	for k, v := range args {
		instance[k] = v
	}
	if err := d.resolved.Validate(instance); err != nil {
		return goerr.Wrap(model.ErrInvalidArgument, "arguments do not satisfy schema",
			goerr.V("intent", d.Intent),
			goerr.V("reason", err.Error()))
	}
	return nil
}

// Catalog is the closed set of intents. It must declare every model.Intent exactly once.
type Catalog struct {
	defs  map[model.Intent]*Definition
	order []model.Intent
}

type catalogFile struct {
	Intents []struct {
		Name        string         `yaml:"name"`
		Description string         `yaml:"description"`
		Parameters  map[string]any `yaml:"parameters"`
	} `yaml:"intents"`
}

// DefaultCatalog loads the embedded intent catalog
func DefaultCatalog() (*Catalog, error) {
	return LoadCatalog(defaultCatalogRaw)
}

// LoadCatalog parses a YAML catalog
func LoadCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, goerr.Wrap(err, "failed to parse intent catalog")
	}

	c := &Catalog{
		defs: make(map[model.Intent]*Definition),
	}

	for _, entry := range file.Intents {
		name := model.Intent(entry.Name)
		if !name.Valid() {
			return nil, goerr.New("intent is not supported", goerr.V("name", entry.Name))
		}
		if _, exists := c.defs[name]; exists {
			return nil, goerr.New("intent is declared twice", goerr.V("name", entry.Name))
		}

		def, err := newDefinition(name, entry.Description, entry.Parameters)
		if err != nil {
			return nil, goerr.Wrap(err, "invalid intent definition", goerr.V("name", entry.Name))
		}

		c.defs[name] = def
		c.order = append(c.order, name)
	}

	for _, name := range model.Intents() {
		if _, ok := c.defs[name]; !ok {
			return nil, goerr.New("intent is missing from catalog", goerr.V("name", name))
		}
	}

	return c, nil
}

func newDefinition(name model.Intent, description string, params map[string]any) (*Definition, error) {
	if params == nil {
		params = map[string]any{"type": "object"}
	}

	// YAML and JSON Schema share a data model, so round-trip through JSON to reuse the
	// schema's own decoder.
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode parameters")
	}
	var schema jsonschema.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return nil, goerr.Wrap(err, "failed to decode parameters as JSON Schema")
	}
	if schema.Type != "object" {
		return nil, goerr.New("parameters must be an object schema", goerr.V("type", schema.Type))
	}

	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve parameter schema")
	}

	genaiSchema, err := convertJSONSchemaToGenai(&schema)
	if err != nil {
		return nil, err
	}

	return &Definition{
		Intent:      name,
		Description: description,
		Parameters:  &schema,
		resolved:    resolved,
		declaration: &genai.FunctionDeclaration{
			Name:        string(name),
			Description: description,
			Parameters:  genaiSchema,
		},
	}, nil
}

// Lookup finds the definition for a function name returned by the classifier
func (c *Catalog) Lookup(name string) (*Definition, bool) {
	def, ok := c.defs[model.Intent(name)]
	return def, ok
}

// Definitions returns every definition in catalog order
func (c *Catalog) Definitions() []*Definition {
	defs := make([]*Definition, 0, len(c.order))
	for _, name := range c.order {
		defs = append(defs, c.defs[name])
	}
	return defs
}

// Tool returns the catalog as a single Gemini tool
func (c *Catalog) Tool() *genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(c.order))
	for _, def := range c.Definitions() {
		decls = append(decls, def.declaration)
	}
	return &genai.Tool{FunctionDeclarations: decls}
}

// Names returns the function names of the catalog
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.order))
	for _, name := range c.order {
		names = append(names, string(name))
	}
	return names
}
