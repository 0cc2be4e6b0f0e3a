package tray

import (
	_ "embed"
	"runtime"
)

var runtimeGOOS = runtime.GOOS

//go:embed icon.ico
var iconData []byte

// Icon returns the embedded 32x32 tray icon.
func Icon() []byte {
	return iconData
}

// Supported reports whether the tray is shown on this platform.
func Supported() bool {
	return runtimeGOOS == "windows"
}
