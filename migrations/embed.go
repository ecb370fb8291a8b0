// Package migrations embeds the goose migrations so the binary can apply them.
package migrations

import "embed"

// FS holds one directory per module.
//
//go:embed asptt/*.sql
var FS embed.FS

const AspttDir = "asptt"
