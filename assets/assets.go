// Package assets embeds the files shipped inside the binaries.
package assets

import "embed"

//go:embed migrations all:templates
var FS embed.FS

const (
	MigrationsDir     = "migrations"
	EmailTemplatesDir = "templates/email"
)
