package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

var (
	schemasOnce  sync.Once
	schemasErr   error
	helloSchema  *jsonschema.Schema
	intentSchema *jsonschema.Schema
)

func loadSchemas() error {
	schemasOnce.Do(func() {
		c := jsonschema.NewCompiler()
		for _, name := range []string{"hello.schema.json", "intent.schema.json"} {
			b, err := schemaFS.ReadFile("schemas/" + name)
			if err != nil {
				schemasErr = err
				return
			}
			if err := c.AddResource(name, bytes.NewReader(b)); err != nil {
				schemasErr = err
				return
			}
		}
		if helloSchema, schemasErr = c.Compile("hello.schema.json"); schemasErr != nil {
			return
		}
		intentSchema, schemasErr = c.Compile("intent.schema.json")
	})
	return schemasErr
}

// ValidateHello checks a raw HELLO message against its schema.
func ValidateHello(raw []byte) error {
	return validate(raw, func() *jsonschema.Schema { return helloSchema })
}

// ValidateIntent checks a raw INTENT message against its schema.
func ValidateIntent(raw []byte) error {
	return validate(raw, func() *jsonschema.Schema { return intentSchema })
}

func validate(raw []byte, pick func() *jsonschema.Schema) error {
	if err := loadSchemas(); err != nil {
		return fmt.Errorf("protocol schemas: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return pick().Validate(doc)
}
