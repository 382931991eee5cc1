// Package tasks carries the built-in task catalog.
package tasks

import "embed"

// FS holds the built-in task YAML files
//
//go:embed *.yaml
var FS embed.FS
