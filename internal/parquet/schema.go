package parquet

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
)

var ErrNoProperties = errors.New("schema has no properties")

type Field struct {
	Name           string `yaml:"name"`
	Type           string `yaml:"type"`
	ConvertedType  string `yaml:"converted_type,omitempty"`
	RepetitionType string `yaml:"repetition_type"`
}

func (f Field) tag() string {
	parts := []string{
		fmt.Sprintf("name=%s", f.Name),
		fmt.Sprintf("type=%s", f.Type),
	}
	if f.ConvertedType != "" {
		parts = append(parts, fmt.Sprintf("convertedtype=%s", f.ConvertedType))
	}
	if f.RepetitionType != "" {
		parts = append(parts, fmt.Sprintf("repetitiontype=%s", f.RepetitionType))
	}
	return strings.Join(parts, ", ")
}

type Schema []Field

// FromJSONSchema derives a flat parquet schema from an object JSON Schema.
// Fields are sorted by name and are all optional. Properties that are not
// scalars are stored as UTF8 JSON text.
func FromJSONSchema(doc map[string]any) (Schema, error) {
	props, _ := doc["properties"].(map[string]any)
	if len(props) == 0 {
		return nil, ErrNoProperties
	}

	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	s := make(Schema, 0, len(names))
	for _, name := range names {
		prop, _ := props[name].(map[string]any)
		f := Field{
			Name:           name,
			RepetitionType: "OPTIONAL",
		}
		switch jsonType(prop) {
		case "integer":
			f.Type = "INT64"
		case "number":
			f.Type = "DOUBLE"
		case "boolean":
			f.Type = "BOOLEAN"
		default:
			f.Type = "BYTE_ARRAY"
			f.ConvertedType = "UTF8"
		}
		s = append(s, f)
	}
	return s, nil
}

// jsonType returns the first non-null type named by a property.
func jsonType(prop map[string]any) string {
	switch t := prop["type"].(type) {
	case string:
		return t
	case []any:
		for _, v := range t {
			if name, ok := v.(string); ok && name != "null" {
				return name
			}
		}
	}
	return ""
}

func (s Schema) ToGoParquetSchema() []string {
	schema := make([]string, len(s))
	for i, field := range s {
		schema[i] = field.tag()
	}

	return schema
}

// JSONDefinition renders the schema in the JSON form accepted by the
// parquet-go JSON writer.
func (s Schema) JSONDefinition() (string, error) {
	type node struct {
		Tag    string
		Fields []node `json:",omitempty"`
	}

	root := node{
		Tag:    "name=parquet_go_root, repetitiontype=REQUIRED",
		Fields: make([]node, 0, len(s)),
	}
	for _, tag := range s.ToGoParquetSchema() {
		root.Fields = append(root.Fields, node{Tag: tag})
	}

	bs, err := json.Marshal(root)
	if err != nil {
		return "", err
	}
	return string(bs), nil
}
