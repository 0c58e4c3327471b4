// Package appfs embeds files needed at runtime (goose migrations).
package appfs

import "embed"

//go:embed migrations
var FS embed.FS
