// Package utils holds small helpers shared across the CLI and services.
package utils

// Build metadata, stamped at release time via -ldflags.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
