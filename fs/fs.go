// Package appfs embeds the static assets shipped with the app binaries:
// DB migrations, email templates and the common-passwords list.
package appfs

import "embed"

//go:embed migrations assets
var FS embed.FS
