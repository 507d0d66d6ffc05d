// Package content embeds the built-in courses and sprint modules.
package content

import "embed"

// FS holds courses/<course>/... and modules.yaml
//
//go:embed courses modules.yaml
var FS embed.FS

const (
	CoursesDir  = "courses"
	ModulesFile = "modules.yaml"
)
