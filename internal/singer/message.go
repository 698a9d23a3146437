// Package singer implements the subset of the Singer protocol the tap speaks:
// SCHEMA and RECORD messages written one JSON document per line, and the
// catalog document produced by discovery.
package singer

type MessageType string

const (
	TypeSchema MessageType = "SCHEMA"
	TypeRecord MessageType = "RECORD"
)

type SchemaMessage struct {
	Type          MessageType    `json:"type"`
	Stream        string         `json:"stream"`
	Schema        map[string]any `json:"schema"`
	KeyProperties []string       `json:"key_properties"`
}

type RecordMessage struct {
	Type   MessageType    `json:"type"`
	Stream string         `json:"stream"`
	Record map[string]any `json:"record"`
}

func NewSchemaMessage(stream string, schema map[string]any, keyProperties []string) SchemaMessage {
	// key_properties is always a list on the wire, never null
	if keyProperties == nil {
		keyProperties = []string{}
	}
	return SchemaMessage{
		Type:          TypeSchema,
		Stream:        stream,
		Schema:        schema,
		KeyProperties: keyProperties,
	}
}

func NewRecordMessage(stream string, record map[string]any) RecordMessage {
	return RecordMessage{
		Type:   TypeRecord,
		Stream: stream,
		Record: record,
	}
}
