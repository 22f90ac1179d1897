// Package openapi embeds the HTTP API description for runtime distribution.
package openapi

import _ "embed"

// APISpec contains the OpenAPI document for /api/v1.
//
//go:embed secretsanta.yaml
var APISpec []byte

// Spec returns a defensive copy of the embedded OpenAPI YAML.
func Spec() []byte {
	return append([]byte(nil), APISpec...)
}
