package schema

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schemas/*.json
var bundled embed.FS

var (
	ErrSchemaNotFound = errors.New("schema not found")
	ErrNoSchemas      = errors.New("no schemas found")
)

// Schema is a named JSON Schema document describing one record type.
// The ID is derived from the file stem, never from the document itself.
type Schema struct {
	ID       string
	Document map[string]any
}

// Registry holds loaded schemas in file order.
type Registry struct {
	ids     []string
	schemas map[string]Schema
}

func (r *Registry) Get(id string) (Schema, error) {
	s, ok := r.schemas[id]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %q", ErrSchemaNotFound, id)
	}
	return s, nil
}

// IDs returns schema ids in load order.
func (r *Registry) IDs() []string {
	ids := make([]string, len(r.ids))
	copy(ids, r.ids)
	return ids
}

func (r *Registry) Len() int {
	return len(r.ids)
}

// All returns every schema in load order.
func (r *Registry) All() []Schema {
	out := make([]Schema, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.schemas[id])
	}
	return out
}

// Bundled returns the schema files compiled into the binary.
func Bundled() fs.FS {
	sub, err := fs.Sub(bundled, "schemas")
	if err != nil {
		// the embed pattern guarantees the directory exists
		panic(err)
	}
	return sub
}

// LoadBundled loads the schemas compiled into the binary.
func LoadBundled() (*Registry, error) {
	return Load(Bundled())
}

// Load reads every *.json file at the root of fsys. A single file that is
// not valid JSON, or not a valid JSON Schema, fails the whole load.
func Load(fsys fs.FS) (*Registry, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("reading schema directory: %w", err)
	}

	r := &Registry{
		schemas: make(map[string]Schema),
	}

	compiler := jsonschema.NewCompiler()

	// fs.ReadDir returns entries sorted by filename
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".json" {
			continue
		}

		bs, err := fs.ReadFile(fsys, entry.Name())
		if err != nil {
			return nil, fmt.Errorf("reading schema %q: %w", entry.Name(), err)
		}

		var doc map[string]any
		if err := json.Unmarshal(bs, &doc); err != nil {
			return nil, fmt.Errorf("parsing schema %q: %w", entry.Name(), err)
		}

		if err := compile(compiler, entry.Name(), bs); err != nil {
			return nil, err
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		r.ids = append(r.ids, id)
		r.schemas[id] = Schema{
			ID:       id,
			Document: doc,
		}
	}

	if len(r.ids) == 0 {
		return nil, ErrNoSchemas
	}

	return r, nil
}

func compile(c *jsonschema.Compiler, name string, bs []byte) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(bs))
	if err != nil {
		return fmt.Errorf("parsing schema %q: %w", name, err)
	}
	if err := c.AddResource(name, doc); err != nil {
		return fmt.Errorf("registering schema %q: %w", name, err)
	}
	if _, err := c.Compile(name); err != nil {
		return fmt.Errorf("compiling schema %q: %w", name, err)
	}
	return nil
}
