// Package configs embeds the configuration templates written by
// `graphindex config init`.
//
// Configuration hierarchy (see internal/config Load):
//  1. Hardcoded defaults (internal/config NewConfig)
//  2. User config (~/.config/graphindex/config.yaml)
//  3. Project config (.graphindex.yaml)
//  4. Environment variables (GRAPHINDEX_*)
package configs

import _ "embed"

// ProjectConfigTemplate is written to .graphindex.yaml by `graphindex config init`.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string

// UserConfigTemplate is written to ~/.config/graphindex/config.yaml by
// `graphindex config init --user`. It holds connection settings shared by
// every project on the machine.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
