// Package api carries the OpenAPI document of the tracking API.
package api

import _ "embed"

// OpenAPISpec is the embedded api/openapi.yaml
//
//go:embed openapi.yaml
var OpenAPISpec []byte
