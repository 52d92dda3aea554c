// Package api embeds the OpenAPI description served by the API server.
package api

import _ "embed"

// OpenAPI is the YAML OpenAPI 3 document
//
//go:embed openapi/openapi.yaml
var OpenAPI []byte
