package rules

import (
	_ "embed"
)

// Default holds default_rules.yaml, baked in at compile time so the scorer
// works without any files on the host.
//
//go:embed default_rules.yaml
var Default []byte
