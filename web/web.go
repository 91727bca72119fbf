// Package web embeds the HTML shells served at / and /admin.
package web

import "embed"

//go:embed index.html admin.html
var FS embed.FS
