//go:build !linux && !darwin

package main

import (
	"os"
	"time"
)

// Platforms without a portable status-change time fall back to mtime.
func statusChangeTime(info os.FileInfo) time.Time {
	return info.ModTime()
}
