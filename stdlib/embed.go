// Package stdlib embeds QSOL's builtin module tree, resolved against
// `stdlib.*` import paths by internal/loader per spec.md §4.1. Grounded
// on the teacher's runtime/native_embed.go embed.FS pattern.
package stdlib

import (
	"embed"
	"io/fs"
)

//go:embed *.qsol
var builtinFS embed.FS

// FS exposes the embedded builtin module tree, rooted the same way a
// `stdlib.a.b` import path maps to `stdlib/a/b.qsol` on a real
// filesystem.
func FS() fs.FS {
	return builtinFS
}
