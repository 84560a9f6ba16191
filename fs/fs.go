// Package appfs embeds the static files the binaries need at runtime.
package appfs

import "embed"

//go:embed migrations/*.sql templates/email/* common-passwords.txt
var FS embed.FS
