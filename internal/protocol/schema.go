package protocol

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed act.schema.json
var actSchemaRaw []byte

var actSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	const url = "mem://quartermaster/protocol/act.schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, bytes.NewReader(actSchemaRaw)); err != nil {
		return nil, err
	}
	return c.Compile(url)
})

// ValidateAct checks a raw ACT message against the wire schema.
func ValidateAct(raw []byte) error {
	s, err := actSchema()
	if err != nil {
		return fmt.Errorf("act schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return s.Validate(v)
}
