package importprofile

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/polyforge/polyforge/internal/types"
)

var (
	schemaOnce sync.Once
	resolved   *jsonschema.Resolved
	schemaErr  error
)

// configSchema lazily derives a JSON Schema from ImportProfileConfig's Go
// struct tags, once per process.
func configSchema() (*jsonschema.Resolved, error) {
	schemaOnce.Do(func() {
		schema, err := jsonschema.For[types.ImportProfileConfig](nil)
		if err != nil {
			schemaErr = fmt.Errorf("importprofile: derive schema: %w", err)
			return
		}
		resolved, schemaErr = schema.Resolve(nil)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("importprofile: resolve schema: %w", schemaErr)
		}
	})
	return resolved, schemaErr
}

// ValidateConfigJSON validates a user-submitted profile config (spec §6
// profile create/update) against the schema derived from
// ImportProfileConfig, before it is unmarshaled and persisted.
func ValidateConfigJSON(raw []byte) error {
	schema, err := configSchema()
	if err != nil {
		return err
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("importprofile: invalid json: %w", err)
	}

	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("importprofile: config validation: %w", err)
	}
	return nil
}
