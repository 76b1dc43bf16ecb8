// Package defaults provides an embedded copy of the default simulator
// configuration for the trafficsim init subcommand.
package defaults

import _ "embed"

//go:generate sh -c "cp ../../examples/config.example.yaml ."

// ConfigYAML is the embedded default configuration file
// (examples/config.example.yaml), written by `trafficsim init`.
//
//go:embed config.example.yaml
var ConfigYAML []byte
