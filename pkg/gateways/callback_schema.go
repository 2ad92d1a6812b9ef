package gateways

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// callbackSchema is the shape every gateway callback must satisfy before
// any of its fields are trusted. The gateway's local "success" flag is
// required; a successful callback must also carry the provider payment id
// and the merchant-correlatable id of the session it answers.
const callbackSchema = `{
	"type": "object",
	"properties": {
		"success":      {"type": "boolean"},
		"imp_uid":      {"type": "string", "minLength": 1},
		"merchant_uid": {"type": "string", "minLength": 1},
		"paid_amount":  {"type": "integer", "minimum": 0},
		"error_msg":    {"type": "string"}
	},
	"required": ["success"],
	"if":   {"properties": {"success": {"const": true}}},
	"then": {"required": ["success", "imp_uid", "merchant_uid"]}
}`

var compiledCallbackSchema = gojsonschema.NewStringLoader(callbackSchema)

// ValidateCallback checks the raw callback payload against the schema and
// returns a description of every violation.
func ValidateCallback(raw []byte) error {
	result, err := gojsonschema.Validate(compiledCallbackSchema, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("callback is not valid JSON: %w", err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, e.String())
	}
	return fmt.Errorf("callback schema violation: %s", strings.Join(violations, "; "))
}
