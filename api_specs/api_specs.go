// Package api_specs embeds the OpenAPI document generated by swag from the
// handler annotations. Regenerate with `go generate` at the module root.
package api_specs

import "embed"

//go:embed swagger.json
var FS embed.FS
