// ABOUTME: Card-terminal JSON payloads: schema validation, overlay text, and archive enrichment
// ABOUTME: The schema is compiled once with santhosh-tekuri/jsonschema and checked per payload

package terminal

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mauromedda/posoverlay/internal/store"
)

// Fields are the payload keys shown on the overlay, in display order.
var Fields = []string{"terminal_code", "card_id", "money", "terminal_model", "serial", "time"}

const schemaURL = "posd://terminal-payload.json"

const schemaJSON = `{
	"type": "object",
	"required": ["terminal_code", "card_id", "money", "terminal_model", "serial", "time"],
	"properties": {
		"terminal_code":  {"type": "string", "maxLength": 8},
		"card_id":        {"type": "string", "maxLength": 20},
		"money":          {"type": "string"},
		"terminal_model": {"type": "string", "maxLength": 16},
		"serial":         {"type": "string", "maxLength": 8},
		"time":           {"type": "string"}
	}
}`

// byteLimits caps fields by encoded length. The schema's maxLength counts
// characters, so a non-ASCII value could pass it while overflowing the field.
var byteLimits = []struct {
	name  string
	limit int
	value func(Payload) string
}{
	{"terminal_code", 8, func(p Payload) string { return p.TerminalCode }},
	{"card_id", 20, func(p Payload) string { return p.CardID }},
	{"terminal_model", 16, func(p Payload) string { return p.TerminalModel }},
	{"serial", 8, func(p Payload) string { return p.Serial }},
}

// Payload is a validated terminal message.
type Payload struct {
	TerminalCode  string `json:"terminal_code"`
	CardID        string `json:"card_id"`
	Money         string `json:"money"`
	TerminalModel string `json:"terminal_model"`
	Serial        string `json:"serial"`
	Time          string `json:"time"`

	fields map[string]any
}

// Validator checks raw payloads against the terminal schema.
type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the payload schema.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add terminal schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile terminal schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Parse decodes and validates one payload.
func (v *Validator) Parse(raw []byte) (Payload, error) {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Payload{}, fmt.Errorf("decode terminal payload: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return Payload{}, fmt.Errorf("invalid terminal payload: %w", err)
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("decode terminal payload: %w", err)
	}
	for _, f := range byteLimits {
		if n := len(f.value(p)); n > f.limit {
			return Payload{}, fmt.Errorf("invalid terminal payload: %s is %d bytes, limit %d", f.name, n, f.limit)
		}
	}
	p.fields = doc.(map[string]any)
	return p, nil
}

// DisplayText renders the payload as "key:value" overlay lines followed by a
// blank line.
func (p Payload) DisplayText() string {
	values := []string{p.TerminalCode, p.CardID, p.Money, p.TerminalModel, p.Serial, p.Time}
	var b strings.Builder
	for i, k := range Fields {
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(values[i])
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	return b.String()
}

// Enrich returns the payload JSON with the source's pos_id, pos_name, and
// relate_channels added. Unknown payload keys are kept.
func (p Payload) Enrich(posID int, posName string, channels []int) ([]byte, error) {
	out := make(map[string]any, len(p.fields)+3)
	for k, v := range p.fields {
		out[k] = v
	}
	if channels == nil {
		channels = []int{}
	}
	out["pos_id"] = posID
	out["pos_name"] = posName
	out["relate_channels"] = channels
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode terminal record: %w", err)
	}
	return data, nil
}

// Record converts the payload into its archive row.
func (p Payload) Record(posID int, posName string, channels []int) store.TerminalRecord {
	return store.TerminalRecord{
		PosID:         posID,
		PosName:       posName,
		Channels:      append([]int(nil), channels...),
		TerminalCode:  p.TerminalCode,
		CardID:        p.CardID,
		Money:         p.Money,
		TerminalModel: p.TerminalModel,
		Serial:        p.Serial,
		Time:          p.Time,
	}
}
