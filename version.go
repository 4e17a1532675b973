package scribe

import _ "embed"

// Version is the current version of the scribe module.
//
//go:embed VERSION
var Version string
