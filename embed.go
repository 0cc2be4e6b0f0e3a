package main

import (
	"embed"
	"io/fs"
)

//go:embed all:frontend
var frontendFiles embed.FS

// frontendFS returns the control panel rooted at the "frontend" directory.
func frontendFS() (fs.FS, error) {
	return fs.Sub(frontendFiles, "frontend")
}
