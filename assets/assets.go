// Package assets embeds static data files shipped with the binary.
package assets

import "embed"

//go:embed catalog.json default_rates.json
var FS embed.FS
