package registry

import (
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/sage-x-project/sage/pkg/sageerr"
)

// capabilitiesSchema constrains the registry's opaque `capabilities` field
// (spec.md §3: "an opaque serialized list of strings") to a JSON array of
// non-empty strings. Grounded on config/capabilities_validator.go's
// embedded-schema fallback pattern, narrowed from the demo's
// type/version/skills object to the spec's flat string-list shape.
const capabilitiesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "title": "Agent Capabilities",
  "type": "array",
  "items": {
    "type": "string",
    "minLength": 1
  }
}`

// CapabilitiesValidator validates a registry agent's serialized
// capabilities string against a JSON schema before it is stored.
type CapabilitiesValidator struct {
	schema *gojsonschema.Schema
}

// NewCapabilitiesValidator compiles the default capabilities schema.
func NewCapabilitiesValidator() (*CapabilitiesValidator, error) {
	return NewCapabilitiesValidatorWithSchema(capabilitiesSchema)
}

// NewCapabilitiesValidatorWithSchema compiles a caller-supplied JSON schema,
// letting deployments tighten or loosen the default shape.
func NewCapabilitiesValidatorWithSchema(schemaJSON string) (*CapabilitiesValidator, error) {
	loader := gojsonschema.NewStringLoader(schemaJSON)
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, sageerr.Wrap(sageerr.CodeValidation, "failed to compile capabilities schema", err)
	}
	return &CapabilitiesValidator{schema: schema}, nil
}

// Validate checks that capabilities is a JSON document matching the
// configured schema. capabilities is the agent's raw, already
// length-bounded string field.
func (cv *CapabilitiesValidator) Validate(capabilities string) error {
	documentLoader := gojsonschema.NewStringLoader(capabilities)
	result, err := cv.schema.Validate(documentLoader)
	if err != nil {
		return sageerr.Wrap(sageerr.CodeValidation, "capabilities is not valid JSON", err)
	}
	if !result.Valid() {
		var reasons []string
		for _, e := range result.Errors() {
			reasons = append(reasons, e.String())
		}
		return sageerr.New(sageerr.CodeValidation, "capabilities schema violation: "+strings.Join(reasons, "; "))
	}
	return nil
}

// EncodeCapabilities serializes a capability-name list into the registry's
// opaque wire representation.
func EncodeCapabilities(names []string) (string, error) {
	data, err := json.Marshal(names)
	if err != nil {
		return "", sageerr.Wrap(sageerr.CodeValidation, "failed to encode capabilities", err)
	}
	return string(data), nil
}
