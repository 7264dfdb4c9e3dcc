// Package api holds the OpenAPI contract embedded into the binary, so the
// service starts with the same contract regardless of working directory.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPISpec []byte
