package api

import "embed"

// SpecFS embeds the OpenAPI description served next to the API.
//
//go:embed openapi.yaml
var SpecFS embed.FS
