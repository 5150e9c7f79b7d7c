// Package api embeds the OpenAPI document served at /openapi.yaml
package api

import _ "embed"

// OpenAPI is the stock engine's OpenAPI 3 document
//
//go:embed openapi.yaml
var OpenAPI []byte
