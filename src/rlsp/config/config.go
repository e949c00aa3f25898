// Package config embeds the default configuration files of the rlsp daemon.
package config

import "embed"

// Files holds meta.yaml and the files it lists.
//
//go:embed *.yaml
var Files embed.FS
